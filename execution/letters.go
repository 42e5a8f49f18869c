package execution

import (
	"context"
	"fmt"
	"log"

	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
)

// =============================================================================
// LETTERS BEFORE EXECUTION
// =============================================================================

// SendAdvanceNotice renders and dispatches the advance notice of a simulated
// revision. It does not change the revision; the caller records the document.
func (o *Orchestrator) SendAdvanceNotice(ctx context.Context, sim *revision.Simulated, freeText string) (DocumentHandle, error) {
	ben, err := o.identity.Beneficiary(ctx, sim.Beneficiary)
	if err != nil {
		return DocumentHandle{}, wrapIdentity(err)
	}
	cw, err := o.identity.Caseworker(ctx, sim.Caseworker)
	if err != nil {
		return DocumentHandle{}, wrapIdentity(err)
	}
	h, err := o.documents.GenerateAdvanceNotice(ctx, NoticeRequest{
		RevisionID:  sim.ID,
		CaseID:      sim.CaseID,
		Beneficiary: ben,
		Caseworker:  cw,
		Period:      sim.Period,
		FreeText:    freeText,
	})
	if err != nil {
		return DocumentHandle{}, err
	}
	if err := o.documents.Dispatch(ctx, h.ID); err != nil {
		return DocumentHandle{}, err
	}
	log.Printf("[Orchestrator] advance notice %s sent for revision %s", h.ID, sim.ID)
	return h, nil
}

// DraftDecisionLetter renders the decision letter as it would read if the
// revision were executed now. Nothing is stored.
func (o *Orchestrator) DraftDecisionLetter(ctx context.Context, r revision.Revision, freeText string) ([]byte, error) {
	sched := revision.ScheduleOf(r)
	outcome, _ := revision.OutcomeOf(r)
	if sched == nil || revision.SimulationOf(r) == nil || r.Status() == revision.StatusTerminated {
		return nil, &generic.IllegalStateTransitionError{From: string(r.Status()), To: "letter draft"}
	}
	b := r.Base()
	ben, err := o.identity.Beneficiary(ctx, b.Beneficiary)
	if err != nil {
		return nil, wrapIdentity(err)
	}
	cw, err := o.identity.Caseworker(ctx, b.Caseworker)
	if err != nil {
		return nil, wrapIdentity(err)
	}
	req := DocumentRequest{
		RevisionID:  b.ID,
		CaseID:      b.CaseID,
		Beneficiary: ben,
		Caseworker:  cw,
		Outcome:     outcome.Class,
		Period:      b.Period,
		Lines:       sched.Lines(),
		FreeText:    freeText,
	}
	if a := revision.AttestationOf(r); a != nil {
		att, err := o.identity.Caseworker(ctx, a.Attestant)
		if err != nil {
			return nil, wrapIdentity(err)
		}
		req.Attestant = att
	}
	if e, ok := r.(*revision.Executed); ok {
		req.DecisionID = e.Execution.DecisionID
	}
	out, err := o.documents.DraftDecisionDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("draft for revision %s: %w", b.ID, err)
	}
	return out, nil
}
