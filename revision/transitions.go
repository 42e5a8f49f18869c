package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

func illegal(from Revision, to Status) error {
	return &generic.IllegalStateTransitionError{From: string(from.Status()), To: string(to)}
}

func requireOwner(r Revision, actor generic.NavIdent) error {
	if actor != r.Base().Caseworker {
		return fmt.Errorf("%w: %s does not own revision %s", generic.ErrNotResponsibleCaseworker, actor, r.Base().ID)
	}
	return nil
}

// next copies core for the following state.
func next(c Core, at time.Time) Core {
	c.Version++
	c.UpdatedAt = at
	return c
}

// =============================================================================
// CREATE
// =============================================================================

type NewParams struct {
	ID            generic.RevisionID
	CaseID        generic.CaseID
	Beneficiary   generic.BeneficiaryID
	Period        generic.Period
	Basis         *generic.DecisionID
	Caseworker    generic.NavIdent
	Cause         Cause
	Justification string
	Aspects       benefit.AspectSet
	Grounds       benefit.Grounds
	At            time.Time
}

// New opens a revision. Aspects may be empty here; calculation requires them.
func New(p NewParams) (*Created, error) {
	if p.ID == "" || p.CaseID == "" {
		return nil, fmt.Errorf("%w: revision and case ID are required", generic.ErrInvalidRevisionInput)
	}
	if _, err := generic.NewMonthPeriod(p.Period.Start, p.Period.End); err != nil {
		return nil, err
	}
	if p.Caseworker == "" {
		return nil, fmt.Errorf("%w: caseworker is required", generic.ErrInvalidRevisionInput)
	}
	if err := validateReason(p.Cause, p.Justification); err != nil {
		return nil, err
	}
	aspects, err := benefit.NewAspectSet(p.Aspects...)
	if err != nil {
		return nil, err
	}
	created := &Created{Core: Core{
		ID:            p.ID,
		CaseID:        p.CaseID,
		Beneficiary:   p.Beneficiary,
		Period:        p.Period,
		Basis:         p.Basis,
		Caseworker:    p.Caseworker,
		Cause:         p.Cause,
		Justification: p.Justification,
		Aspects:       aspects,
		Grounds:       p.Grounds,
		Version:       1,
		CreatedAt:     p.At,
		UpdatedAt:     p.At,
	}}
	// Regulations of the base amount are never notified in advance.
	if p.Cause == CauseBaseAmountRegulation {
		created.AdvanceNotice = &AdvanceNotice{State: NoticeNotRequired, DecidedBy: generic.SystemIdent, DecidedAt: p.At}
	}
	return created, nil
}

func validateReason(cause Cause, justification string) error {
	if !cause.Valid() {
		return fmt.Errorf("%w: unknown cause %q", generic.ErrInvalidRevisionInput, cause)
	}
	if strings.TrimSpace(justification) == "" {
		return fmt.Errorf("%w: justification is required", generic.ErrInvalidRevisionInput)
	}
	return nil
}

// =============================================================================
// EDIT
// =============================================================================

// PeriodChange moves the revision to a new period and the decision effective there.
type PeriodChange struct {
	Period generic.Period
	Basis  *generic.DecisionID
}

// Changes lists edits; nil fields are left as they are.
type Changes struct {
	Period        *PeriodChange
	Aspects       *benefit.AspectSet
	Grounds       *benefit.Grounds
	Cause         *Cause
	Justification *string
}

// Edit applies changes and returns the revision to Created, dropping schedule,
// simulation and current attestation.
func Edit(r Revision, actor generic.NavIdent, ch Changes, at time.Time) (*Created, error) {
	switch r.(type) {
	case *Created, *Calculated, *Simulated, *Rejected:
	default:
		return nil, illegal(r, StatusCreated)
	}
	if err := requireOwner(r, actor); err != nil {
		return nil, err
	}

	c := r.Base()
	if ch.Period != nil {
		if _, err := generic.NewMonthPeriod(ch.Period.Period.Start, ch.Period.Period.End); err != nil {
			return nil, err
		}
		c.Period = ch.Period.Period
		c.Basis = ch.Period.Basis
	}
	if ch.Aspects != nil {
		aspects, err := benefit.NewAspectSet((*ch.Aspects)...)
		if err != nil {
			return nil, err
		}
		c.Aspects = aspects
	}
	if ch.Grounds != nil {
		c.Grounds = *ch.Grounds
	}
	if ch.Cause != nil {
		c.Cause = *ch.Cause
	}
	if ch.Justification != nil {
		c.Justification = *ch.Justification
	}
	if err := validateReason(c.Cause, c.Justification); err != nil {
		return nil, err
	}
	return &Created{Core: next(c, at)}, nil
}

// =============================================================================
// CALCULATE
// =============================================================================

// CanCalculate checks state, ownership and aspects before the engine runs.
func CanCalculate(r Revision, actor generic.NavIdent) error {
	switch r.(type) {
	case *Created, *Calculated, *Simulated, *Rejected:
	default:
		return illegal(r, StatusCalculated)
	}
	if err := requireOwner(r, actor); err != nil {
		return err
	}
	if len(r.Base().Aspects) == 0 {
		return generic.ErrMissingRevisionAspects
	}
	return nil
}

// Calculate attaches a freshly computed schedule and its outcome.
func Calculate(r Revision, actor generic.NavIdent, s *calculation.Schedule, outcome Outcome, at time.Time) (*Calculated, error) {
	if err := CanCalculate(r, actor); err != nil {
		return nil, err
	}
	c := r.Base()
	if s == nil || !s.Period.Equal(c.Period) || s.CaseID != c.CaseID {
		return nil, fmt.Errorf("%w: schedule does not belong to revision %s", generic.ErrInvalidCalculationInput, c.ID)
	}
	return &Calculated{Core: next(c, at), Schedule: s, Outcome: outcome}, nil
}

// =============================================================================
// SIMULATE
// =============================================================================

// CanSimulate checks state and ownership before the ledger is called.
func CanSimulate(r Revision, actor generic.NavIdent) (*Calculated, error) {
	calc, ok := r.(*Calculated)
	if !ok {
		return nil, illegal(r, StatusSimulated)
	}
	if err := requireOwner(r, actor); err != nil {
		return nil, err
	}
	return calc, nil
}

// Simulate attaches a preview. It must be keyed to the attached schedule.
func Simulate(r Revision, actor generic.NavIdent, p *simulation.Preview, at time.Time) (*Simulated, error) {
	calc, err := CanSimulate(r, actor)
	if err != nil {
		return nil, err
	}
	if p == nil || p.ScheduleChecksum != calc.Schedule.Checksum {
		actual := ""
		if p != nil {
			actual = p.ScheduleChecksum
		}
		return nil, &generic.SimulationDriftError{Reason: "preview", Expected: calc.Schedule.Checksum, Actual: actual}
	}
	return &Simulated{
		Core:       next(calc.Core, at),
		Schedule:   calc.Schedule,
		Outcome:    calc.Outcome,
		Simulation: p,
	}, nil
}

// =============================================================================
// SEND TO ATTESTATION
// =============================================================================

// SendToAttestation hands a simulated revision to an attestant.
// Outcomes that cannot be one administrative act are refused, and so is a
// revision whose advance notice is not settled.
func SendToAttestation(r Revision, actor generic.NavIdent, at time.Time) (*PendingAttestation, error) {
	sim, ok := r.(*Simulated)
	if !ok {
		return nil, illegal(r, StatusPendingAttestation)
	}
	if err := requireOwner(r, actor); err != nil {
		return nil, err
	}
	if err := unsupported(sim.Outcome); err != nil {
		return nil, err
	}
	if err := requireNoticeDecided(sim); err != nil {
		return nil, err
	}
	return &PendingAttestation{
		Core:       next(sim.Core, at),
		Schedule:   sim.Schedule,
		Outcome:    sim.Outcome,
		Simulation: sim.Simulation,
	}, nil
}

func unsupported(o Outcome) error {
	if o.Supported() {
		return nil
	}
	reasons := make([]string, 0, len(o.Unsupported))
	for _, u := range o.Unsupported {
		reasons = append(reasons, string(u))
	}
	return &generic.UnsupportedOutcomeError{Reasons: reasons}
}

// =============================================================================
// EXECUTE
// =============================================================================

// MarkExecuted records a committed execution. Only Approved may be executed.
func MarkExecuted(r Revision, rec ExecutionRecord) (*Executed, error) {
	ap, ok := r.(*Approved)
	if !ok {
		return nil, illegal(r, StatusExecuted)
	}
	if rec.DecisionID == "" {
		return nil, fmt.Errorf("%w: execution record without decision", generic.ErrInvalidRevisionInput)
	}
	return &Executed{
		Core:        next(ap.Core, rec.ExecutedAt),
		Schedule:    ap.Schedule,
		Outcome:     ap.Outcome,
		Simulation:  ap.Simulation,
		Attestation: ap.Attestation,
		Execution:   rec,
	}, nil
}

// RecordSideEffect marks one post-commit step done. Recording a done step again is a no-op.
func RecordSideEffect(e *Executed, step SideEffectStep, doc generic.DocumentID, at time.Time) *Executed {
	if e.SideEffects.Done(step) {
		return e
	}
	cp := *e
	cp.Core = next(e.Core, at)
	done := at
	switch step {
	case StepDocument:
		cp.SideEffects.DocumentID = doc
		cp.SideEffects.DocumentGeneratedAt = &done
	case StepDispatch:
		cp.SideEffects.DispatchedAt = &done
	case StepTask:
		cp.SideEffects.TaskClosedAt = &done
	}
	return &cp
}

// =============================================================================
// TERMINATE
// =============================================================================

// Terminate abandons a revision, by the responsible caseworker or the
// system. Approved, Executed and Terminated cannot be terminated.
func Terminate(r Revision, actor generic.NavIdent, justification string, at time.Time) (*Terminated, error) {
	switch r.(type) {
	case *Created, *Calculated, *Simulated, *PendingAttestation, *Rejected:
	default:
		return nil, illegal(r, StatusTerminated)
	}
	if actor != generic.SystemIdent {
		if err := requireOwner(r, actor); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(justification) == "" {
		return nil, fmt.Errorf("%w: justification is required to terminate", generic.ErrInvalidRevisionInput)
	}
	return &Terminated{
		Core: next(r.Base(), at),
		From: r.Status(),
		Termination: TerminationRecord{
			By:            actor,
			At:            at,
			Justification: justification,
		},
	}, nil
}
