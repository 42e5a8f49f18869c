/*
Package execution turns an approved revision into a decision.

PURPOSE:
  Execution is the only place a case's timeline changes. It re-validates
  the approved revision against the world as it is now, commits the ledger
  order, the decision and the executed revision as one unit, and then runs
  the post-commit side effects.

EXECUTION STEPS:
  1. Precondition: revision is Approved, executor is not the caseworker.
  2. Drift checks, recomputed every time:
     - schedule recomputed now must have the approved checksum
     - the basis decision must still be effective at the period start
     - a fresh simulation must have the approved preview digest
     - the decision must append to the timeline without a gap
  3. Unit of work (TxRepository.WithTx):
     ledger Execute -> append decision -> save case -> save revision -> audit
  4. Side effects: identities -> document -> dispatch -> task

FAILURE SEMANTICS:
  Before the ledger call         -> error returned, nothing written
  Ledger call fails              -> ledger error, nothing written
  Anything after ledger success  -> *generic.PartialExecutionError. Logged,
                                    counted, never retried. Needs manual
                                    reconciliation against the ledger.
  Side effect fails              -> the revision stays Executed; the step is
                                    listed in Report.Deficiencies and left
                                    for the Reconciler.

CONCURRENCY:
  The caller holds the per-case lock. Case and revision saves are still
  version-checked, so a writer in another process is caught.

SEE ALSO:
  - reconciler.go: re-runs missing side effects
  - revision/attestation.go: RequireDistinctActors
*/
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/simulation"
	"github.com/navikt/su-se-bakover-sub005/store"
)

// StepIdentity is the lookup that precedes the document steps.
const StepIdentity revision.SideEffectStep = "identity"

// Deficiency is a side effect that did not complete.
type Deficiency struct {
	Step revision.SideEffectStep
	Err  error
}

// Report is the result of a committed execution.
type Report struct {
	Revision     *revision.Executed
	Deficiencies []Deficiency
}

// Complete is false when the revision was executed with deficiencies.
func (r *Report) Complete() bool {
	return len(r.Deficiencies) == 0 && r.Revision.SideEffects.Complete()
}

type Orchestrator struct {
	repo      store.TxRepository
	engine    *calculation.Engine
	simulator *simulation.Simulator
	ledger    generic.Ledger
	documents DocumentService
	tasks     TaskService
	identity  IdentityLookup
	clock     generic.Clock
	metrics   *Metrics
}

type Config struct {
	Repo      store.TxRepository
	Engine    *calculation.Engine
	Ledger    generic.Ledger
	Documents DocumentService
	Tasks     TaskService
	Identity  IdentityLookup
	Clock     generic.Clock
	Metrics   *Metrics // optional
}

func NewOrchestrator(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Orchestrator{
		repo:      cfg.Repo,
		engine:    cfg.Engine,
		simulator: simulation.NewSimulator(cfg.Ledger, clock),
		ledger:    cfg.Ledger,
		documents: cfg.Documents,
		tasks:     cfg.Tasks,
		identity:  cfg.Identity,
		clock:     clock,
		metrics:   cfg.Metrics,
	}
}

// =============================================================================
// EXECUTE
// =============================================================================

// Execute commits an approved revision. A nil error means the decision is
// committed; the report tells whether every side effect completed.
func (o *Orchestrator) Execute(ctx context.Context, id generic.RevisionID, executor generic.NavIdent) (*Report, error) {
	start := time.Now()

	r, err := o.repo.LoadRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	approved, ok := r.(*revision.Approved)
	if !ok {
		return nil, &generic.IllegalStateTransitionError{From: string(r.Status()), To: string(revision.StatusExecuted)}
	}
	if err := revision.RequireDistinctActors(approved.Caseworker, executor); err != nil {
		return nil, err
	}

	c, err := o.repo.LoadCase(ctx, approved.CaseID)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	s, grounds, err := o.verify(ctx, approved, c, executor, now)
	if err != nil {
		if errors.Is(err, generic.ErrSimulationDrift) {
			o.metrics.incDrift()
			o.metrics.observeExecution("drift", time.Since(start))
			log.Printf("[Orchestrator] revision %s not executed: %v", id, err)
		}
		return nil, err
	}

	decision := benefit.Decision{
		ID:         generic.NewDecisionID(),
		CaseID:     c.ID,
		Period:     approved.Period,
		Outcome:    approved.Outcome.Class,
		Lines:      s.Lines(),
		Grounds:    grounds,
		RevisionID: approved.ID,
		CreatedAt:  now,
	}
	if err := c.CheckAppend(decision); err != nil {
		log.Printf("[Orchestrator] ALERT revision %s: %v", id, err)
		o.metrics.observeExecution("timeline_gap", time.Since(start))
		return nil, err
	}

	executed, err := o.commit(ctx, approved, c.Version, decision, s, executor, now)
	if err != nil {
		var partial *generic.PartialExecutionError
		switch {
		case errors.As(err, &partial):
			o.metrics.incPartialFailure()
			o.metrics.observeExecution("partial_failure", time.Since(start))
			log.Printf("[Orchestrator] ALERT partial execution of revision %s, ledger ref %s: %v",
				id, partial.LedgerReference, partial.Cause)
		default:
			o.metrics.observeExecution("failed", time.Since(start))
			log.Printf("[Orchestrator] revision %s not executed: %v", id, err)
		}
		return nil, err
	}
	log.Printf("[Orchestrator] revision %s executed as decision %s (%s)", id, decision.ID, decision.Outcome)

	report := o.completeSideEffects(ctx, executed)
	result := "executed"
	if !report.Complete() {
		result = "executed_with_deficiencies"
	}
	o.metrics.observeExecution(result, time.Since(start))
	return report, nil
}

// verify recomputes everything the approval was based on. It returns the
// fresh schedule and the grounds the decision will carry.
func (o *Orchestrator) verify(ctx context.Context, a *revision.Approved, c *benefit.Case, executor generic.NavIdent, now time.Time) (*calculation.Schedule, benefit.Grounds, error) {
	in := calculation.Input{Case: c, Period: a.Period, Aspects: a.Aspects, Supplied: a.Grounds, AsOf: now}
	s, err := o.engine.Calculate(in)
	if err != nil {
		return nil, benefit.Grounds{}, err
	}
	if s.Checksum != a.Schedule.Checksum {
		return nil, benefit.Grounds{}, &generic.SimulationDriftError{Reason: "schedule", Expected: a.Schedule.Checksum, Actual: s.Checksum}
	}

	if err := checkBasis(a, c); err != nil {
		return nil, benefit.Grounds{}, err
	}

	p, err := o.simulator.Simulate(ctx, s, a.Beneficiary, a.ID, executor)
	if err != nil {
		return nil, benefit.Grounds{}, err
	}
	if a.Simulation == nil || p.Digest != a.Simulation.Digest {
		expected := ""
		if a.Simulation != nil {
			expected = a.Simulation.Digest
		}
		return nil, benefit.Grounds{}, &generic.SimulationDriftError{Reason: "ledger", Expected: expected, Actual: p.Digest}
	}

	grounds, err := calculation.ResolveGrounds(in)
	if err != nil {
		return nil, benefit.Grounds{}, err
	}
	return s, grounds, nil
}

func checkBasis(a *revision.Approved, c *benefit.Case) error {
	effective, ok := c.CurrentEffectiveDecision(a.Period.Start)
	switch {
	case a.Basis == nil && !ok:
		return nil
	case a.Basis == nil:
		return &generic.SimulationDriftError{Reason: "basis", Expected: "none", Actual: string(effective.ID)}
	case !ok:
		return &generic.SimulationDriftError{Reason: "basis", Expected: string(*a.Basis), Actual: "none"}
	case effective.ID != *a.Basis:
		return &generic.SimulationDriftError{Reason: "basis", Expected: string(*a.Basis), Actual: string(effective.ID)}
	}
	return nil
}

// commit runs the unit of work. Any failure after the ledger accepted the
// order comes back as a PartialExecutionError.
func (o *Orchestrator) commit(ctx context.Context, a *revision.Approved, caseVersion int, d benefit.Decision, s *calculation.Schedule, executor generic.NavIdent, now time.Time) (*revision.Executed, error) {
	var (
		ledgerDone bool
		ledgerRef  string
		executed   *revision.Executed
	)
	err := o.repo.WithTx(ctx, func(repo store.Repository) error {
		if a.Outcome.Class != benefit.OutcomeNoChange {
			receipt, err := o.ledger.Execute(ctx, simulation.OrderFor(s, a.Beneficiary, a.ID, executor))
			if err != nil {
				if errors.Is(err, generic.ErrLedgerUnavailable) || errors.Is(err, generic.ErrLedgerExecutionFailed) {
					return err
				}
				return fmt.Errorf("%w: %v", generic.ErrLedgerExecutionFailed, err)
			}
			ledgerDone = true
			ledgerRef = receipt.Reference
		}

		c, err := repo.LoadCase(ctx, a.CaseID)
		if err != nil {
			return err
		}
		if c.Version != caseVersion {
			return fmt.Errorf("%w: case %s changed during execution", generic.ErrConcurrentModification, c.ID)
		}
		if err := c.AppendDecision(d); err != nil {
			return err
		}
		if err := repo.SaveCase(ctx, c); err != nil {
			return err
		}

		executed, err = revision.MarkExecuted(a, revision.ExecutionRecord{
			DecisionID:      d.ID,
			ExecutedBy:      executor,
			ExecutedAt:      now,
			LedgerReference: ledgerRef,
		})
		if err != nil {
			return err
		}
		if err := repo.SaveRevision(ctx, executed); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, generic.AuditEntry{
			Timestamp:  now,
			ActorID:    executor,
			Action:     generic.AuditRevisionExecuted,
			CaseID:     a.CaseID,
			RevisionID: a.ID,
			Payload: map[string]string{
				"decision_id":      string(d.ID),
				"outcome":          string(d.Outcome),
				"ledger_reference": ledgerRef,
			},
		})
	})
	if err != nil {
		if ledgerDone {
			return nil, &generic.PartialExecutionError{RevisionID: a.ID, LedgerReference: ledgerRef, Cause: err}
		}
		return nil, err
	}
	return executed, nil
}

// =============================================================================
// SIDE EFFECTS
// =============================================================================

// CompleteSideEffects re-runs the missing steps of an executed revision.
// The caller holds the per-case lock.
func (o *Orchestrator) CompleteSideEffects(ctx context.Context, id generic.RevisionID) (*Report, error) {
	r, err := o.repo.LoadRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	e, ok := r.(*revision.Executed)
	if !ok {
		return nil, &generic.IllegalStateTransitionError{From: string(r.Status()), To: string(revision.StatusExecuted)}
	}
	return o.completeSideEffects(ctx, e), nil
}

// completeSideEffects runs identity lookup, document, dispatch and task in
// that order. Task closure does not depend on the document steps.
func (o *Orchestrator) completeSideEffects(ctx context.Context, e *revision.Executed) *Report {
	rep := &Report{Revision: e}
	fail := func(step revision.SideEffectStep, err error) {
		o.metrics.incSideEffectFailure(string(step))
		log.Printf("[Orchestrator] revision %s: %s step failed: %v", e.ID, step, err)
		rep.Deficiencies = append(rep.Deficiencies, Deficiency{Step: step, Err: err})
	}

	if !rep.Revision.SideEffects.Done(revision.StepDocument) {
		req, err := o.resolveDocumentRequest(ctx, rep.Revision)
		if err != nil {
			fail(StepIdentity, err)
		} else if h, err := o.documents.GenerateDecisionDocument(ctx, req); err != nil {
			fail(revision.StepDocument, err)
		} else if err := o.record(ctx, rep, revision.StepDocument, h.ID); err != nil {
			fail(revision.StepDocument, err)
		}
	}

	if !rep.Revision.SideEffects.Done(revision.StepDispatch) {
		if !rep.Revision.SideEffects.Done(revision.StepDocument) {
			fail(revision.StepDispatch, fmt.Errorf("%w: no document to dispatch", generic.ErrDocumentDispatchFailed))
		} else if err := o.documents.Dispatch(ctx, rep.Revision.SideEffects.DocumentID); err != nil {
			fail(revision.StepDispatch, err)
		} else if err := o.record(ctx, rep, revision.StepDispatch, ""); err != nil {
			fail(revision.StepDispatch, err)
		}
	}

	if !rep.Revision.SideEffects.Done(revision.StepTask) {
		if err := o.tasks.CloseOrReassignTask(ctx, rep.Revision.CaseID, rep.Revision.ID); err != nil {
			fail(revision.StepTask, err)
		} else if err := o.record(ctx, rep, revision.StepTask, ""); err != nil {
			fail(revision.StepTask, err)
		}
	}
	return rep
}

func (o *Orchestrator) resolveDocumentRequest(ctx context.Context, e *revision.Executed) (DocumentRequest, error) {
	ben, err := o.identity.Beneficiary(ctx, e.Beneficiary)
	if err != nil {
		return DocumentRequest{}, wrapIdentity(err)
	}
	cw, err := o.identity.Caseworker(ctx, e.Caseworker)
	if err != nil {
		return DocumentRequest{}, wrapIdentity(err)
	}
	att, err := o.identity.Caseworker(ctx, e.Attestation.Attestant)
	if err != nil {
		return DocumentRequest{}, wrapIdentity(err)
	}
	return documentRequest(e, ben, cw, att), nil
}

func wrapIdentity(err error) error {
	if errors.Is(err, generic.ErrUpstreamIdentityLookupFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", generic.ErrUpstreamIdentityLookupFailed, err)
}

// record persists a completed step and moves the report to the new value.
func (o *Orchestrator) record(ctx context.Context, rep *Report, step revision.SideEffectStep, doc generic.DocumentID) error {
	now := o.clock.Now()
	next := revision.RecordSideEffect(rep.Revision, step, doc, now)
	err := o.repo.WithTx(ctx, func(repo store.Repository) error {
		if err := repo.SaveRevision(ctx, next); err != nil {
			return err
		}
		payload := map[string]string{"step": string(step)}
		if doc != "" {
			payload["document_id"] = string(doc)
		}
		return repo.AppendAudit(ctx, generic.AuditEntry{
			Timestamp:  now,
			ActorID:    generic.SystemIdent,
			Action:     generic.AuditSideEffectCompleted,
			CaseID:     next.CaseID,
			RevisionID: next.ID,
			Payload:    payload,
		})
	})
	if err != nil {
		return fmt.Errorf("record %s step: %w", step, err)
	}
	rep.Revision = next
	return nil
}
