/*
Package revision owns the lifecycle of a single revision ("revurdering").

STATES:
  Each state is its own type and carries only the data valid in it.

    Created ──calculate──▶ Calculated ──simulate──▶ Simulated
       ▲                      │  ▲                     │
       └──────── edit ────────┘  └──── recalculate ────┤
                                                       │ advance notice decided,
                                                       │ send to attestation
                                                       ▼
         Rejected ◀──reject── PendingAttestation ──approve──▶ Approved
            │                                                    │
            └──recalculate──▶ Calculated              execute ───┘
                                                                 ▼
                                                             Executed

  Terminated is reachable from every state before Approved, and from
  Rejected. Approved only leads to Executed. Executed and Terminated are
  terminal and kept forever for audit.

MUTATION:
  Values are never modified in place. The functions in transitions.go and
  attestation.go are the only way to move between states; each returns a
  new value with Version incremented.

SEE ALSO:
  - transitions.go: caseworker transitions
  - attestation.go: maker-checker governed transitions
  - notice.go: advance notice before attestation
  - outcome.go: supported outcome classes
  - codec.go: persistence encoding
*/
package revision

import (
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

type Status string

const (
	StatusCreated            Status = "created"
	StatusCalculated         Status = "calculated"
	StatusSimulated          Status = "simulated"
	StatusPendingAttestation Status = "pending_attestation"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
	StatusExecuted           Status = "executed"
	StatusTerminated         Status = "terminated"
)

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusTerminated
}

// IsOpen reports whether the revision still blocks its period for new revisions.
func (s Status) IsOpen() bool {
	return !s.IsTerminal()
}

// Cause ("årsak") is why the revision was opened.
type Cause string

const (
	CauseNewInformation             Cause = "new_information"
	CauseBaseAmountRegulation       Cause = "base_amount_regulation"
	CauseControlStatementReceived   Cause = "control_statement_received"
	CauseInformationFromBeneficiary Cause = "information_from_beneficiary"
	CauseInformationFromOther       Cause = "information_from_other"
)

func (c Cause) Valid() bool {
	switch c {
	case CauseNewInformation, CauseBaseAmountRegulation, CauseControlStatementReceived,
		CauseInformationFromBeneficiary, CauseInformationFromOther:
		return true
	}
	return false
}

// Core is shared by every state.
type Core struct {
	ID            generic.RevisionID    `json:"id"`
	CaseID        generic.CaseID        `json:"case_id"`
	Beneficiary   generic.BeneficiaryID `json:"beneficiary"`
	Period        generic.Period        `json:"period"`
	Basis         *generic.DecisionID   `json:"basis,omitempty"` // nil for a bootstrap revision
	Caseworker    generic.NavIdent      `json:"caseworker"`
	Cause         Cause                 `json:"cause"`
	Justification string                `json:"justification"`
	Aspects       benefit.AspectSet     `json:"aspects"`
	Grounds       benefit.Grounds       `json:"grounds"`

	// Every attestation ever made, oldest first. Survives edits.
	AttestationHistory []Attestation `json:"attestation_history,omitempty"`

	AdvanceNotice *AdvanceNotice `json:"advance_notice,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is implemented only by the state types in this package.
type Revision interface {
	Base() Core
	Status() Status
	sealed()
}

// =============================================================================
// RECORDS
// =============================================================================

type AttestationDecision string

const (
	DecisionApproved AttestationDecision = "approved"
	DecisionRejected AttestationDecision = "rejected"
)

// RejectionGrounds is the structured reason an attestant returns a revision.
type RejectionGrounds string

const (
	RejectEligibilityWronglyAssessed RejectionGrounds = "eligibility_wrongly_assessed"
	RejectCalculationWrong           RejectionGrounds = "calculation_wrong"
	RejectDocumentationMissing       RejectionGrounds = "documentation_missing"
	RejectDecisionLetterWrong        RejectionGrounds = "decision_letter_wrong"
	RejectOther                      RejectionGrounds = "other"
)

func (g RejectionGrounds) Valid() bool {
	switch g {
	case RejectEligibilityWronglyAssessed, RejectCalculationWrong, RejectDocumentationMissing,
		RejectDecisionLetterWrong, RejectOther:
		return true
	}
	return false
}

type Attestation struct {
	Attestant generic.NavIdent    `json:"attestant"`
	Decision  AttestationDecision `json:"decision"`
	Grounds   RejectionGrounds    `json:"grounds,omitempty"`
	Comment   string              `json:"comment,omitempty"`
	DecidedAt time.Time           `json:"decided_at"`
}

type ExecutionRecord struct {
	DecisionID      generic.DecisionID `json:"decision_id"`
	ExecutedBy      generic.NavIdent   `json:"executed_by"`
	ExecutedAt      time.Time          `json:"executed_at"`
	LedgerReference string             `json:"ledger_reference,omitempty"` // empty for no-change outcomes
}

// SideEffectStep names a post-commit step.
type SideEffectStep string

const (
	StepDocument SideEffectStep = "document"
	StepDispatch SideEffectStep = "dispatch"
	StepTask     SideEffectStep = "task"
)

// SideEffectSteps in execution order.
var SideEffectSteps = []SideEffectStep{StepDocument, StepDispatch, StepTask}

type SideEffects struct {
	DocumentID          generic.DocumentID `json:"document_id,omitempty"`
	DocumentGeneratedAt *time.Time         `json:"document_generated_at,omitempty"`
	DispatchedAt        *time.Time         `json:"dispatched_at,omitempty"`
	TaskClosedAt        *time.Time         `json:"task_closed_at,omitempty"`
}

func (s SideEffects) Done(step SideEffectStep) bool {
	switch step {
	case StepDocument:
		return s.DocumentGeneratedAt != nil
	case StepDispatch:
		return s.DispatchedAt != nil
	case StepTask:
		return s.TaskClosedAt != nil
	}
	return false
}

// Lacking returns the steps not yet completed, in execution order.
func (s SideEffects) Lacking() []SideEffectStep {
	var out []SideEffectStep
	for _, step := range SideEffectSteps {
		if !s.Done(step) {
			out = append(out, step)
		}
	}
	return out
}

func (s SideEffects) Complete() bool { return len(s.Lacking()) == 0 }

type TerminationRecord struct {
	By            generic.NavIdent `json:"by"`
	At            time.Time        `json:"at"`
	Justification string           `json:"justification"`
}

// =============================================================================
// STATES
// =============================================================================

type Created struct {
	Core
}

type Calculated struct {
	Core
	Schedule *calculation.Schedule
	Outcome  Outcome
}

type Simulated struct {
	Core
	Schedule   *calculation.Schedule
	Outcome    Outcome
	Simulation *simulation.Preview
}

type PendingAttestation struct {
	Core
	Schedule   *calculation.Schedule
	Outcome    Outcome
	Simulation *simulation.Preview
}

type Approved struct {
	Core
	Schedule    *calculation.Schedule
	Outcome     Outcome
	Simulation  *simulation.Preview
	Attestation Attestation
}

// Rejected keeps what was rejected for display; it is editable again.
type Rejected struct {
	Core
	Schedule    *calculation.Schedule
	Outcome     Outcome
	Simulation  *simulation.Preview
	Attestation Attestation
}

type Executed struct {
	Core
	Schedule    *calculation.Schedule
	Outcome     Outcome
	Simulation  *simulation.Preview
	Attestation Attestation
	Execution   ExecutionRecord
	SideEffects SideEffects
}

type Terminated struct {
	Core
	From        Status
	Termination TerminationRecord
}

func (r *Created) Base() Core            { return r.Core }
func (r *Calculated) Base() Core         { return r.Core }
func (r *Simulated) Base() Core          { return r.Core }
func (r *PendingAttestation) Base() Core { return r.Core }
func (r *Approved) Base() Core           { return r.Core }
func (r *Rejected) Base() Core           { return r.Core }
func (r *Executed) Base() Core           { return r.Core }
func (r *Terminated) Base() Core         { return r.Core }

func (r *Created) Status() Status            { return StatusCreated }
func (r *Calculated) Status() Status         { return StatusCalculated }
func (r *Simulated) Status() Status          { return StatusSimulated }
func (r *PendingAttestation) Status() Status { return StatusPendingAttestation }
func (r *Approved) Status() Status           { return StatusApproved }
func (r *Rejected) Status() Status           { return StatusRejected }
func (r *Executed) Status() Status           { return StatusExecuted }
func (r *Terminated) Status() Status         { return StatusTerminated }

func (*Created) sealed()            {}
func (*Calculated) sealed()         {}
func (*Simulated) sealed()          {}
func (*PendingAttestation) sealed() {}
func (*Approved) sealed()           {}
func (*Rejected) sealed()           {}
func (*Executed) sealed()           {}
func (*Terminated) sealed()         {}

// =============================================================================
// ACCESSORS - Read downstream data regardless of state
// =============================================================================

// ScheduleOf returns the attached schedule, or nil.
func ScheduleOf(r Revision) *calculation.Schedule {
	switch v := r.(type) {
	case *Calculated:
		return v.Schedule
	case *Simulated:
		return v.Schedule
	case *PendingAttestation:
		return v.Schedule
	case *Approved:
		return v.Schedule
	case *Rejected:
		return v.Schedule
	case *Executed:
		return v.Schedule
	}
	return nil
}

// SimulationOf returns the attached preview, or nil.
func SimulationOf(r Revision) *simulation.Preview {
	switch v := r.(type) {
	case *Simulated:
		return v.Simulation
	case *PendingAttestation:
		return v.Simulation
	case *Approved:
		return v.Simulation
	case *Rejected:
		return v.Simulation
	case *Executed:
		return v.Simulation
	}
	return nil
}

// AttestationOf returns the current attestation, or nil.
func AttestationOf(r Revision) *Attestation {
	switch v := r.(type) {
	case *Approved:
		a := v.Attestation
		return &a
	case *Rejected:
		a := v.Attestation
		return &a
	case *Executed:
		a := v.Attestation
		return &a
	}
	return nil
}

// OutcomeOf returns the classified outcome; ok is false before calculation.
func OutcomeOf(r Revision) (Outcome, bool) {
	switch v := r.(type) {
	case *Calculated:
		return v.Outcome, true
	case *Simulated:
		return v.Outcome, true
	case *PendingAttestation:
		return v.Outcome, true
	case *Approved:
		return v.Outcome, true
	case *Rejected:
		return v.Outcome, true
	case *Executed:
		return v.Outcome, true
	}
	return Outcome{}, false
}
