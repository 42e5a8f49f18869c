package execution

import (
	"context"
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
)

// =============================================================================
// COLLABORATORS - Post-commit side effects
// =============================================================================

// Person is a resolved identity for the decision letter.
type Person struct {
	ID   string
	Name string
}

// DocumentRequest is everything the decision letter is rendered from.
type DocumentRequest struct {
	RevisionID  generic.RevisionID
	DecisionID  generic.DecisionID
	CaseID      generic.CaseID
	Beneficiary Person
	Caseworker  Person
	Attestant   Person
	Outcome     benefit.Outcome
	Period      generic.Period
	Lines       []benefit.MonthlyLine
	FreeText    string
}

// NoticeRequest is the input of the advance notice letter ("forhåndsvarsel").
type NoticeRequest struct {
	RevisionID  generic.RevisionID
	CaseID      generic.CaseID
	Beneficiary Person
	Caseworker  Person
	Period      generic.Period
	FreeText    string
}

type DocumentHandle struct {
	ID        generic.DocumentID
	CreatedAt time.Time
}

// DocumentService renders and sends letters.
// GenerateDecisionDocument and GenerateAdvanceNotice are idempotent per
// revision. DraftDecisionDocument stores nothing.
type DocumentService interface {
	GenerateDecisionDocument(ctx context.Context, req DocumentRequest) (DocumentHandle, error)
	GenerateAdvanceNotice(ctx context.Context, req NoticeRequest) (DocumentHandle, error)
	DraftDecisionDocument(ctx context.Context, req DocumentRequest) ([]byte, error)
	Dispatch(ctx context.Context, id generic.DocumentID) error
}

// TaskService closes or hands over the caseworker's task for the revision.
type TaskService interface {
	CloseOrReassignTask(ctx context.Context, caseID generic.CaseID, revisionID generic.RevisionID) error
}

type IdentityLookup interface {
	Beneficiary(ctx context.Context, id generic.BeneficiaryID) (Person, error)
	Caseworker(ctx context.Context, ident generic.NavIdent) (Person, error)
}

// documentRequest builds the letter input for an executed revision.
func documentRequest(e *revision.Executed, beneficiary, caseworker, attestant Person) DocumentRequest {
	req := DocumentRequest{
		RevisionID:  e.ID,
		DecisionID:  e.Execution.DecisionID,
		CaseID:      e.CaseID,
		Beneficiary: beneficiary,
		Caseworker:  caseworker,
		Attestant:   attestant,
		Outcome:     e.Outcome.Class,
		Period:      e.Period,
	}
	if e.Schedule != nil {
		req.Lines = e.Schedule.Lines()
	}
	return req
}
