package stubs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/client/stubs"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

var (
	ctx = context.Background()
	jan = generic.MonthOf(generic.NewTimePoint(2024, time.January, 1))
	feb = generic.MonthOf(generic.NewTimePoint(2024, time.February, 1))
)

func newTestLedger() *stubs.Ledger {
	return stubs.NewLedger(&generic.FixedClock{At: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
}

func order(key string, lines ...generic.PaymentLine) generic.PaymentOrder {
	return generic.PaymentOrder{CaseID: "case-1", RevisionID: "rev-1", IdempotencyKey: key, ActorID: "Z2", Lines: lines}
}

func TestLedger_SimulateShowsDeltaAgainstPaid(t *testing.T) {
	l := newTestLedger()
	l.Seed("case-1", jan, generic.NOK(24515))

	p, err := l.Simulate(ctx, order("k1",
		generic.PaymentLine{Month: jan, Amount: generic.NOK(20000), Kind: generic.LinePayment},
		generic.PaymentLine{Month: feb, Amount: generic.NOK(0), Kind: generic.LineStop},
	))

	require.NoError(t, err)
	require.Len(t, p.Lines, 2)
	assert.Equal(t, "-4515", p.Lines[0].Delta.String())
	assert.Equal(t, "24515", p.Lines[0].PreviouslyPaid.String())
	assert.True(t, p.Lines[1].Delta.IsZero())
	assert.Empty(t, l.Transactions("case-1")[1:], "simulate writes nothing")
}

func TestLedger_ExecuteIsAppendOnlyAndIdempotent(t *testing.T) {
	l := newTestLedger()
	l.Seed("case-1", jan, generic.NOK(24515))
	o := order("k1", generic.PaymentLine{Month: jan, Amount: generic.NOK(20000), Kind: generic.LinePayment})

	first, err := l.Execute(ctx, o)
	require.NoError(t, err)
	again, err := l.Execute(ctx, o)
	require.NoError(t, err)

	assert.Equal(t, first.Reference, again.Reference)
	assert.Equal(t, 1, l.Executions())
	txs := l.Transactions("case-1")
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TxReversal, txs[1].Type)
	assert.Equal(t, "20000", l.PaidFor("case-1", jan).String())
}

func TestLedger_FaultInjection(t *testing.T) {
	l := newTestLedger()
	l.FailExecute(generic.ErrLedgerUnavailable)

	_, err := l.Execute(ctx, order("k1"))
	assert.ErrorIs(t, err, generic.ErrLedgerUnavailable)

	l.FailExecute(nil)
	_, err = l.Execute(ctx, order("k1"))
	assert.NoError(t, err)
}
