package simulation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/client/stubs"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

var (
	ctx     = context.Background()
	clock   = &generic.FixedClock{At: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	quarter = generic.Months(generic.NewTimePoint(2024, time.January, 1), 3)
)

func testSchedule() *calculation.Schedule {
	s := &calculation.Schedule{
		CaseID: "case-1",
		Period: quarter,
		SubPeriods: []calculation.SubPeriod{
			{Period: generic.Months(quarter.Start, 2), Amount: generic.NOK(20000)},
			{Period: generic.MonthOf(generic.NewTimePoint(2024, time.March, 1)), Amount: generic.NOK(0),
				StopReasons: []calculation.StopReason{calculation.StopStayAbroad}},
		},
	}
	s.Checksum = calculation.ComputeChecksum(s)
	return s
}

func TestSimulate_PreviewIsKeyedToSchedule(t *testing.T) {
	ledger := stubs.NewLedger(clock)
	for _, m := range quarter.MonthList() {
		ledger.Seed("case-1", m, generic.NOK(24515))
	}
	sim := simulation.NewSimulator(ledger, clock)
	s := testSchedule()

	p, err := sim.Simulate(ctx, s, "12345678901", "rev-1", "Z1")

	require.NoError(t, err)
	assert.Equal(t, s.Checksum, p.ScheduleChecksum)
	require.Len(t, p.Lines, 3)
	assert.Equal(t, "40000", p.TotalGross.String())
	assert.Equal(t, "-33545", p.TotalDelta.String())
	assert.NotEmpty(t, p.Digest)
	assert.Equal(t, clock.At, p.SimulatedAt)
}

func TestSimulate_DigestChangesWhenLedgerMoves(t *testing.T) {
	ledger := stubs.NewLedger(clock)
	sim := simulation.NewSimulator(ledger, clock)
	s := testSchedule()

	before, err := sim.Simulate(ctx, s, "12345678901", "rev-1", "Z1")
	require.NoError(t, err)
	ledger.Seed("case-1", quarter.MonthList()[0], generic.NOK(1000))
	after, err := sim.Simulate(ctx, s, "12345678901", "rev-1", "Z1")
	require.NoError(t, err)

	assert.NotEqual(t, before.Digest, after.Digest)
	assert.Equal(t, before.ScheduleChecksum, after.ScheduleChecksum)
}

func TestSimulate_FailureClasses(t *testing.T) {
	tests := []struct {
		name      string
		ledgerErr error
		want      error
		kind      simulation.FailureKind
	}{
		{"unavailable is technical", fmt.Errorf("timeout: %w", generic.ErrLedgerUnavailable), generic.ErrTechnicalFailure, simulation.FailureTechnical},
		{"unknown is technical", errors.New("connection reset"), generic.ErrTechnicalFailure, simulation.FailureTechnical},
		{"inconsistent", generic.ErrLedgerInconsistent, generic.ErrInconsistentLedgerState, simulation.FailureInconsistentLedgerState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := stubs.NewLedger(clock)
			ledger.FailSimulate(tt.ledgerErr)

			_, err := simulation.NewSimulator(ledger, clock).Simulate(ctx, testSchedule(), "1", "rev-1", "Z1")

			var sf *generic.SimulationFailedError
			require.True(t, errors.As(err, &sf))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, simulation.Kind(err))
			assert.Equal(t, tt.want == generic.ErrTechnicalFailure, generic.IsRetryable(err))
		})
	}
}

// shortLedger answers with fewer months than ordered.
type shortLedger struct{ generic.Ledger }

func (shortLedger) Simulate(_ context.Context, o generic.PaymentOrder) (*generic.LedgerPreview, error) {
	return &generic.LedgerPreview{Lines: []generic.LedgerPreviewLine{{Month: o.Lines[0].Month, Gross: o.Lines[0].Amount}}}, nil
}

func TestSimulate_MismatchedPreviewIsInconsistent(t *testing.T) {
	_, err := simulation.NewSimulator(shortLedger{}, clock).Simulate(ctx, testSchedule(), "1", "rev-1", "Z1")

	assert.ErrorIs(t, err, generic.ErrInconsistentLedgerState)
	assert.False(t, generic.IsRetryable(err))
}

func TestOrderFor_StableIdempotencyKey(t *testing.T) {
	s := testSchedule()

	a := simulation.OrderFor(s, "1", "rev-1", "Z1")
	b := simulation.OrderFor(s, "1", "rev-1", "Z2")

	assert.Equal(t, a.IdempotencyKey, b.IdempotencyKey)
	assert.Equal(t, generic.LineStop, a.Lines[2].Kind)
}
