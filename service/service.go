/*
Package service exposes the revision workflow as operations.

PURPOSE:
  Every operation a caseworker, an attestant or the system performs on a
  revision goes through Service. An operation loads fresh state, applies
  exactly one transition from package revision and saves the result
  together with an audit entry.

REVISION FLOW:
  Create ──▶ Recalculate ──▶ Simulate ──▶ advance notice ──▶ SendToAttestation ──▶ SubmitForApproval
     ▲            │               │                                                      │
     └── Update ◀─┴───────────────┘◀──────────────────────────────── rejected ◀─────────┤
                                                                                        ▼
                                                                            approved ──▶ Execute

  The advance notice is either skipped or sent and later resolved. Terminate
  is available before approval and after rejection.

CONCURRENCY:
  Mutations take the per-case lock for their whole duration. The stores
  additionally check versions, so a second process writing the same case
  gets ErrConcurrentModification instead of a lost update.

CREATE RULES:
  - The period must be covered by the case's effective timeline, unless the
    revision is an explicit bootstrap of a case with no decision at the
    period start. A bootstrap period must still attach to the timeline
    without leaving a gap.
  - The basis is the decision effective at the period start.
  - At most one open revision per case may overlap a period.

SEE ALSO:
  - revision/transitions.go: the transitions applied here
  - execution/orchestrator.go: what Execute delegates to
*/
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/simulation"
	"github.com/navikt/su-se-bakover-sub005/store"
)

type Service struct {
	repo         store.TxRepository
	engine       *calculation.Engine
	simulator    *simulation.Simulator
	orchestrator *execution.Orchestrator
	clock        generic.Clock
	locks        *generic.KeyedMutex
}

type Config struct {
	Repo      store.TxRepository
	Rates     calculation.RateTable
	Ledger    generic.Ledger
	Documents execution.DocumentService
	Tasks     execution.TaskService
	Identity  execution.IdentityLookup
	Clock     generic.Clock      // defaults to the system clock
	Metrics   *execution.Metrics // optional
	Locks     *generic.KeyedMutex
}

func New(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = generic.SystemClock{}
	}
	locks := cfg.Locks
	if locks == nil {
		locks = generic.NewKeyedMutex()
	}
	engine := calculation.NewEngine(cfg.Rates)
	return &Service{
		repo:      cfg.Repo,
		engine:    engine,
		simulator: simulation.NewSimulator(cfg.Ledger, clock),
		orchestrator: execution.NewOrchestrator(execution.Config{
			Repo:      cfg.Repo,
			Engine:    engine,
			Ledger:    cfg.Ledger,
			Documents: cfg.Documents,
			Tasks:     cfg.Tasks,
			Identity:  cfg.Identity,
			Clock:     clock,
			Metrics:   cfg.Metrics,
		}),
		clock: clock,
		locks: locks,
	}
}

// Orchestrator is shared with the reconciler.
func (s *Service) Orchestrator() *execution.Orchestrator { return s.orchestrator }

// Locks is shared with the reconciler so sweeps and requests serialise per case.
func (s *Service) Locks() *generic.KeyedMutex { return s.locks }

// =============================================================================
// CASES
// =============================================================================

// CreateCase opens a case, optionally with an initial decision.
func (s *Service) CreateCase(ctx context.Context, beneficiary generic.BeneficiaryID, initial *benefit.Decision) (*benefit.Case, error) {
	if beneficiary == "" {
		return nil, fmt.Errorf("%w: beneficiary is required", generic.ErrInvalidRevisionInput)
	}
	now := s.clock.Now()
	c := benefit.NewCase(generic.NewCaseID(), beneficiary, now)
	if initial != nil {
		d := *initial
		d.CaseID = c.ID
		if d.ID == "" {
			d.ID = generic.NewDecisionID()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if err := c.AppendDecision(d); err != nil {
			return nil, err
		}
	}

	err := s.repo.WithTx(ctx, func(repo store.Repository) error {
		if err := repo.CreateCase(ctx, c); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, generic.AuditEntry{
			Timestamp: now,
			ActorID:   generic.SystemIdent,
			Action:    generic.AuditCaseCreated,
			CaseID:    c.ID,
			Payload:   map[string]string{"decisions": fmt.Sprint(len(c.Decisions))},
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Service] case %s created with %d decision(s)", c.ID, len(c.Decisions))
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, id generic.CaseID) (*benefit.Case, error) {
	return s.repo.LoadCase(ctx, id)
}

func (s *Service) ListCases(ctx context.Context) ([]*benefit.Case, error) {
	return s.repo.ListCases(ctx)
}

// =============================================================================
// CREATE / UPDATE
// =============================================================================

type CreateParams struct {
	CaseID        generic.CaseID
	Period        generic.Period
	Caseworker    generic.NavIdent
	Cause         revision.Cause
	Justification string
	Aspects       benefit.AspectSet
	Grounds       benefit.Grounds

	// Bootstrap opens a revision on a case with no decision at the period start.
	Bootstrap bool
}

// Create opens a revision of part of a case's timeline.
func (s *Service) Create(ctx context.Context, p CreateParams) (*revision.Created, error) {
	unlock := s.locks.Lock(string(p.CaseID))
	defer unlock()

	c, err := s.repo.LoadCase(ctx, p.CaseID)
	if err != nil {
		return nil, err
	}
	if _, err := generic.NewMonthPeriod(p.Period.Start, p.Period.End); err != nil {
		return nil, err
	}
	basis, err := resolveBasis(c, p.Period, p.Bootstrap)
	if err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, c.ID, p.Period, ""); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	created, err := revision.New(revision.NewParams{
		ID:            generic.NewRevisionID(),
		CaseID:        c.ID,
		Beneficiary:   c.Beneficiary,
		Period:        p.Period,
		Basis:         basis,
		Caseworker:    p.Caseworker,
		Cause:         p.Cause,
		Justification: p.Justification,
		Aspects:       p.Aspects,
		Grounds:       p.Grounds,
		At:            now,
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]string{"period": p.Period.String(), "cause": string(p.Cause)}
	if basis != nil {
		payload["basis"] = string(*basis)
	} else {
		payload["bootstrap"] = "true"
	}
	if err := s.save(ctx, created, p.Caseworker, generic.AuditRevisionCreated, payload); err != nil {
		return nil, err
	}
	log.Printf("[Service] revision %s created on case %s for %s", created.ID, c.ID, p.Period)
	return created, nil
}

// resolveBasis returns the decision effective at the period start, or nil for
// an allowed bootstrap.
func resolveBasis(c *benefit.Case, period generic.Period, bootstrap bool) (*generic.DecisionID, error) {
	effective, ok := c.CurrentEffectiveDecision(period.Start)
	if bootstrap {
		if ok {
			return nil, fmt.Errorf("%w: decision %s is effective at %s, bootstrap not allowed",
				generic.ErrInvalidRevisionInput, effective.ID, period.Start)
		}
		if err := c.CheckAppend(benefit.Decision{CaseID: c.ID, Period: period}); err != nil {
			return nil, fmt.Errorf("%w: bootstrap %s does not attach to the timeline of case %s: %v",
				generic.ErrInvalidPeriod, period, c.ID, err)
		}
		return nil, nil
	}
	if !ok || !c.Covered(period) {
		return nil, fmt.Errorf("%w: %s is not covered by the effective timeline of case %s",
			generic.ErrInvalidPeriod, period, c.ID)
	}
	id := effective.ID
	return &id, nil
}

func (s *Service) checkOverlap(ctx context.Context, caseID generic.CaseID, period generic.Period, self generic.RevisionID) error {
	revs, err := s.repo.ListRevisionsByCase(ctx, caseID)
	if err != nil {
		return err
	}
	for _, r := range revs {
		b := r.Base()
		if b.ID == self || !r.Status().IsOpen() {
			continue
		}
		if b.Period.Overlaps(period) {
			return fmt.Errorf("%w: revision %s (%s) covers %s",
				generic.ErrOverlappingOpenRevision, b.ID, r.Status(), b.Period)
		}
	}
	return nil
}

// UpdateParams lists edits; nil fields are left as they are.
type UpdateParams struct {
	Period        *generic.Period
	Aspects       *benefit.AspectSet
	Grounds       *benefit.Grounds
	Cause         *revision.Cause
	Justification *string
}

// Update edits a revision and returns it to Created.
func (s *Service) Update(ctx context.Context, id generic.RevisionID, actor generic.NavIdent, p UpdateParams) (*revision.Created, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ch := revision.Changes{
		Aspects:       p.Aspects,
		Grounds:       p.Grounds,
		Cause:         p.Cause,
		Justification: p.Justification,
	}
	payload := map[string]string{}
	if p.Period != nil && !p.Period.Equal(r.Base().Period) {
		c, err := s.repo.LoadCase(ctx, r.Base().CaseID)
		if err != nil {
			return nil, err
		}
		if _, err := generic.NewMonthPeriod(p.Period.Start, p.Period.End); err != nil {
			return nil, err
		}
		basis, err := resolveBasis(c, *p.Period, r.Base().Basis == nil)
		if err != nil {
			return nil, err
		}
		if err := s.checkOverlap(ctx, c.ID, *p.Period, id); err != nil {
			return nil, err
		}
		ch.Period = &revision.PeriodChange{Period: *p.Period, Basis: basis}
		payload["period"] = p.Period.String()
	}

	edited, err := revision.Edit(r, actor, ch, s.clock.Now())
	if err != nil {
		return nil, err
	}
	payload["from"] = string(r.Status())
	if err := s.save(ctx, edited, actor, generic.AuditRevisionEdited, payload); err != nil {
		return nil, err
	}
	return edited, nil
}

// =============================================================================
// CALCULATE / SIMULATE
// =============================================================================

// Recalculate projects the schedule from the case as it is now and classifies the outcome.
func (s *Service) Recalculate(ctx context.Context, id generic.RevisionID, actor generic.NavIdent) (*revision.Calculated, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := revision.CanCalculate(r, actor); err != nil {
		return nil, err
	}
	b := r.Base()
	c, err := s.repo.LoadCase(ctx, b.CaseID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	sched, err := s.engine.Calculate(calculation.Input{
		Case:     c,
		Period:   b.Period,
		Aspects:  b.Aspects,
		Supplied: b.Grounds,
		AsOf:     now,
	})
	if err != nil {
		return nil, err
	}
	current, _ := c.PaymentLinesFor(b.Period)
	outcome := revision.Classify(sched, current)

	calculated, err := revision.Calculate(r, actor, sched, outcome, now)
	if err != nil {
		return nil, err
	}
	payload := map[string]string{
		"outcome":  string(outcome.Class),
		"checksum": sched.Checksum,
		"total":    sched.Total().String(),
	}
	if !outcome.Supported() {
		payload["unsupported"] = fmt.Sprint(outcome.Unsupported)
	}
	if err := s.save(ctx, calculated, actor, generic.AuditRevisionCalculated, payload); err != nil {
		return nil, err
	}
	return calculated, nil
}

// Simulate previews the schedule against the ledger. On failure the
// revision stays Calculated.
func (s *Service) Simulate(ctx context.Context, id generic.RevisionID, actor generic.NavIdent) (*revision.Simulated, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	calc, err := revision.CanSimulate(r, actor)
	if err != nil {
		return nil, err
	}
	preview, err := s.simulator.Simulate(ctx, calc.Schedule, calc.Beneficiary, calc.ID, actor)
	if err != nil {
		log.Printf("[Service] simulation of revision %s failed (%s): %v", id, simulation.Kind(err), err)
		return nil, err
	}
	simulated, err := revision.Simulate(calc, actor, preview, s.clock.Now())
	if err != nil {
		return nil, err
	}
	payload := map[string]string{"digest": preview.Digest, "total_delta": preview.TotalDelta.String()}
	if err := s.save(ctx, simulated, actor, generic.AuditRevisionSimulated, payload); err != nil {
		return nil, err
	}
	return simulated, nil
}

// =============================================================================
// ADVANCE NOTICE
// =============================================================================

// SkipAdvanceNotice records that the beneficiary is not warned before attestation.
func (s *Service) SkipAdvanceNotice(ctx context.Context, id generic.RevisionID, actor generic.NavIdent) (*revision.Simulated, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	skipped, err := revision.SkipAdvanceNotice(r, actor, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, skipped, actor, generic.AuditAdvanceNoticeSkipped, nil); err != nil {
		return nil, err
	}
	return skipped, nil
}

// SendAdvanceNotice warns the beneficiary and waits for the caseworker to
// resolve the notice. A failed letter leaves the revision untouched.
func (s *Service) SendAdvanceNotice(ctx context.Context, id generic.RevisionID, actor generic.NavIdent, freeText string) (*revision.Simulated, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sim, err := revision.CanSendAdvanceNotice(r, actor)
	if err != nil {
		return nil, err
	}
	h, err := s.orchestrator.SendAdvanceNotice(ctx, sim, freeText)
	if err != nil {
		return nil, err
	}
	noticed, err := revision.AdvanceNoticeSent(sim, actor, h.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	payload := map[string]string{"document_id": string(h.ID)}
	if err := s.save(ctx, noticed, actor, generic.AuditAdvanceNoticeSent, payload); err != nil {
		return nil, err
	}
	return noticed, nil
}

// ResolveAdvanceNotice records what follows a sent notice. Continuing sends
// the revision to attestation, abandoning terminates it, and changed grounds
// leave it Simulated for the caseworker to update.
func (s *Service) ResolveAdvanceNotice(ctx context.Context, id generic.RevisionID, actor generic.NavIdent, to revision.NoticeState, justification string) (revision.Revision, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	resolved, err := revision.ResolveAdvanceNotice(r, actor, to, justification, now)
	if err != nil {
		return nil, err
	}
	// Validate the follow-up before anything is written.
	var follow revision.Revision
	var action generic.AuditAction
	payload := map[string]string{}
	switch to {
	case revision.NoticeContinued:
		pending, err := revision.SendToAttestation(resolved, actor, now)
		if err != nil {
			return nil, err
		}
		follow, action = pending, generic.AuditSentToAttestation
		payload["outcome"] = string(pending.Outcome.Class)
	case revision.NoticeAbandoned:
		terminated, err := revision.Terminate(resolved, actor, justification, now)
		if err != nil {
			return nil, err
		}
		follow, action = terminated, generic.AuditRevisionTerminated
		payload["from"] = string(terminated.From)
		payload["justification"] = justification
	}

	err = s.repo.WithTx(ctx, func(repo store.Repository) error {
		if err := saveIn(ctx, repo, resolved, actor, generic.AuditAdvanceNoticeResolved,
			map[string]string{"resolution": string(to), "justification": justification}); err != nil {
			return err
		}
		if follow == nil {
			return nil
		}
		return saveIn(ctx, repo, follow, actor, action, payload)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Service] advance notice of revision %s resolved as %s by %s", id, to, actor)
	if follow != nil {
		return follow, nil
	}
	return resolved, nil
}

// DraftDecisionLetter previews the decision letter of a simulated or later revision.
func (s *Service) DraftDecisionLetter(ctx context.Context, id generic.RevisionID, freeText string) ([]byte, error) {
	r, err := s.repo.LoadRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.DraftDecisionLetter(ctx, r, freeText)
}

// =============================================================================
// ATTESTATION
// =============================================================================

func (s *Service) SendToAttestation(ctx context.Context, id generic.RevisionID, actor generic.NavIdent) (*revision.PendingAttestation, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pending, err := revision.SendToAttestation(r, actor, s.clock.Now())
	if err != nil {
		return nil, err
	}
	payload := map[string]string{"outcome": string(pending.Outcome.Class)}
	if err := s.save(ctx, pending, actor, generic.AuditSentToAttestation, payload); err != nil {
		return nil, err
	}
	return pending, nil
}

// SubmitForApproval records the attestant's decision. The result is
// *revision.Approved or *revision.Rejected.
func (s *Service) SubmitForApproval(ctx context.Context, id generic.RevisionID, attestant generic.NavIdent, decision revision.AttestationDecision, rejection *revision.Rejection) (revision.Revision, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	next, err := revision.SubmitForApproval(r, attestant, decision, rejection, s.clock.Now())
	if err != nil {
		return nil, err
	}
	action := generic.AuditRevisionApproved
	payload := map[string]string{}
	if decision == revision.DecisionRejected {
		action = generic.AuditRevisionRejected
		payload["grounds"] = string(rejection.Grounds)
		payload["comment"] = rejection.Comment
	}
	if err := s.save(ctx, next, attestant, action, payload); err != nil {
		return nil, err
	}
	log.Printf("[Service] revision %s %s by %s", id, decision, attestant)
	return next, nil
}

// =============================================================================
// EXECUTE / TERMINATE
// =============================================================================

// Execute commits an approved revision. See execution.Orchestrator.
func (s *Service) Execute(ctx context.Context, id generic.RevisionID, executor generic.NavIdent) (*execution.Report, error) {
	_, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.orchestrator.Execute(ctx, id, executor)
}

// CompleteSideEffects re-runs the missing post-commit steps of an executed revision.
func (s *Service) CompleteSideEffects(ctx context.Context, id generic.RevisionID) (*execution.Report, error) {
	_, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.orchestrator.CompleteSideEffects(ctx, id)
}

// Terminate abandons a revision. actor may be generic.SystemIdent.
func (s *Service) Terminate(ctx context.Context, id generic.RevisionID, actor generic.NavIdent, justification string) (*revision.Terminated, error) {
	r, unlock, err := s.lockRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	terminated, err := revision.Terminate(r, actor, justification, s.clock.Now())
	if err != nil {
		return nil, err
	}
	payload := map[string]string{"from": string(terminated.From), "justification": justification}
	if err := s.save(ctx, terminated, actor, generic.AuditRevisionTerminated, payload); err != nil {
		return nil, err
	}
	log.Printf("[Service] revision %s terminated from %s by %s", id, terminated.From, actor)
	return terminated, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id generic.RevisionID) (revision.Revision, error) {
	return s.repo.LoadRevision(ctx, id)
}

func (s *Service) ListByCase(ctx context.Context, caseID generic.CaseID) ([]revision.Revision, error) {
	if _, err := s.repo.LoadCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListRevisionsByCase(ctx, caseID)
}

// Incomplete lists executed revisions with side effects outstanding.
func (s *Service) Incomplete(ctx context.Context) ([]*revision.Executed, error) {
	return s.repo.ListIncomplete(ctx)
}

// History returns the audit trail of a revision, oldest first.
func (s *Service) History(ctx context.Context, id generic.RevisionID) ([]generic.AuditEntry, error) {
	if _, err := s.repo.LoadRevision(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.QueryAudit(ctx, generic.AuditFilter{RevisionID: &id})
}

// =============================================================================
// HELPERS
// =============================================================================

// lockRevision takes the lock of the revision's case and reloads the revision under it.
func (s *Service) lockRevision(ctx context.Context, id generic.RevisionID) (revision.Revision, func(), error) {
	r, err := s.repo.LoadRevision(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(string(r.Base().CaseID))
	r, err = s.repo.LoadRevision(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return r, unlock, nil
}

// save writes the revision and its audit entry in one unit of work.
func (s *Service) save(ctx context.Context, r revision.Revision, actor generic.NavIdent, action generic.AuditAction, payload map[string]string) error {
	return s.repo.WithTx(ctx, func(repo store.Repository) error {
		return saveIn(ctx, repo, r, actor, action, payload)
	})
}

func saveIn(ctx context.Context, repo store.Repository, r revision.Revision, actor generic.NavIdent, action generic.AuditAction, payload map[string]string) error {
	b := r.Base()
	if err := repo.SaveRevision(ctx, r); err != nil {
		return err
	}
	return repo.AppendAudit(ctx, generic.AuditEntry{
		Timestamp:  at(b),
		ActorID:    actor,
		Action:     action,
		CaseID:     b.CaseID,
		RevisionID: b.ID,
		Payload:    payload,
	})
}

func at(c revision.Core) time.Time {
	if c.UpdatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.UpdatedAt
}
