/*
Package simulation previews the payment effect of a projected schedule.

PURPOSE:
  Turn a Schedule into a ledger payment order, ask the external ledger to
  simulate it, and return a deterministic Preview keyed to the schedule's
  checksum. Nothing is written on the ledger side.

FAILURE CLASSES:
  TechnicalFailure         - ledger unreachable or timed out; retry as is
  InconsistentLedgerState  - the ledger's state does not fit the order;
                             recalculate before trying again

  Failures come back as *generic.SimulationFailedError and are never retried
  here. The caller decides.

DRIFT DETECTION:
  Preview.ScheduleChecksum ties the preview to the schedule it was made
  from. Preview.Digest fingerprints the ledger's answer, so the execution
  orchestrator can re-simulate and notice that ledger state moved.
*/
package simulation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

type FailureKind string

const (
	FailureTechnical               FailureKind = "technical"
	FailureInconsistentLedgerState FailureKind = "inconsistent_ledger_state"
)

// Preview is a successful simulation.
type Preview struct {
	ScheduleChecksum string                      `json:"schedule_checksum"`
	Lines            []generic.LedgerPreviewLine `json:"lines"`
	TotalGross       generic.Money               `json:"total_gross"`
	TotalDelta       generic.Money               `json:"total_delta"`
	Digest           string                      `json:"digest"`
	SimulatedAt      time.Time                   `json:"simulated_at"`
}

type Simulator struct {
	Ledger generic.Ledger
	Clock  generic.Clock
}

func NewSimulator(ledger generic.Ledger, clock generic.Clock) *Simulator {
	return &Simulator{Ledger: ledger, Clock: clock}
}

// OrderFor derives the ledger payment order for a schedule.
// The idempotency key is stable for one revision and one schedule.
func OrderFor(s *calculation.Schedule, beneficiary generic.BeneficiaryID, revisionID generic.RevisionID, actor generic.NavIdent) generic.PaymentOrder {
	return generic.PaymentOrder{
		CaseID:           s.CaseID,
		Beneficiary:      beneficiary,
		RevisionID:       revisionID,
		ScheduleChecksum: s.Checksum,
		Lines:            s.PaymentLines(),
		IdempotencyKey:   fmt.Sprintf("revision:%s:%s", revisionID, s.Checksum),
		ActorID:          actor,
	}
}

// Simulate previews the schedule against the ledger.
func (sim *Simulator) Simulate(ctx context.Context, s *calculation.Schedule, beneficiary generic.BeneficiaryID, revisionID generic.RevisionID, actor generic.NavIdent) (*Preview, error) {
	order := OrderFor(s, beneficiary, revisionID, actor)

	lp, err := sim.Ledger.Simulate(ctx, order)
	if err != nil {
		return nil, &generic.SimulationFailedError{Kind: classify(err), Cause: err}
	}

	lines := append([]generic.LedgerPreviewLine(nil), lp.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].Month.Start.Before(lines[j].Month.Start) })

	if err := matchesOrder(order, lines); err != nil {
		return nil, &generic.SimulationFailedError{Kind: generic.ErrInconsistentLedgerState, Cause: err}
	}

	p := &Preview{
		ScheduleChecksum: s.Checksum,
		Lines:            lines,
		TotalGross:       generic.NOK(0),
		TotalDelta:       generic.NOK(0),
		SimulatedAt:      sim.Clock.Now(),
	}
	for _, l := range lines {
		p.TotalGross = p.TotalGross.Add(l.Gross)
		p.TotalDelta = p.TotalDelta.Add(l.Delta)
	}
	p.Digest = digest(p)
	return p, nil
}

// Kind maps a simulation error to its failure class.
func Kind(err error) FailureKind {
	if errors.Is(err, generic.ErrInconsistentLedgerState) {
		return FailureInconsistentLedgerState
	}
	return FailureTechnical
}

func classify(err error) error {
	if errors.Is(err, generic.ErrLedgerInconsistent) {
		return generic.ErrInconsistentLedgerState
	}
	return generic.ErrTechnicalFailure
}

func matchesOrder(order generic.PaymentOrder, lines []generic.LedgerPreviewLine) error {
	if len(lines) != len(order.Lines) {
		return fmt.Errorf("ledger previewed %d months, order has %d", len(lines), len(order.Lines))
	}
	for i, l := range order.Lines {
		if !lines[i].Month.Equal(l.Month) {
			return fmt.Errorf("ledger previewed %s where order has %s", lines[i].Month, l.Month)
		}
		if !lines[i].Gross.Equal(l.Amount) {
			return fmt.Errorf("ledger gross %s differs from ordered %s for %s", lines[i].Gross, l.Amount, l.Month)
		}
	}
	return nil
}

func digest(p *Preview) string {
	body, err := json.Marshal(struct {
		ScheduleChecksum string                      `json:"schedule_checksum"`
		Lines            []generic.LedgerPreviewLine `json:"lines"`
	}{p.ScheduleChecksum, p.Lines})
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
