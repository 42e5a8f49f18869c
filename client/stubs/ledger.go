/*
Package stubs provides in-process collaborators: payment ledger, document
service, task service and identity lookup.

PURPOSE:
  The server binary and the tests run without the real external systems.
  Each stub honours the collaborator's contract (idempotency, error
  classes) and can be told to fail so failure paths can be exercised.

LEDGER:
  Append-only. Executing an order writes one transaction per month whose
  amount differs from what was already paid; the idempotency key maps to
  the first receipt, so a retried order writes nothing.
*/
package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	mu           sync.RWMutex
	transactions map[generic.CaseID][]generic.LedgerTransaction
	receipts     map[string]*generic.LedgerReceipt // by idempotency key
	clock        generic.Clock

	simulateErr error
	executeErr  error
	executions  int
}

func NewLedger(clock generic.Clock) *Ledger {
	return &Ledger{
		transactions: make(map[generic.CaseID][]generic.LedgerTransaction),
		receipts:     make(map[string]*generic.LedgerReceipt),
		clock:        clock,
	}
}

// FailSimulate makes Simulate return err until called again with nil.
func (l *Ledger) FailSimulate(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.simulateErr = err
}

// FailExecute makes Execute return err until called again with nil.
func (l *Ledger) FailExecute(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.executeErr = err
}

// Seed records an earlier payment for a month, as if paid by another process.
func (l *Ledger) Seed(caseID generic.CaseID, month generic.Period, amount generic.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(generic.LedgerTransaction{
		ID:        generic.TransactionID(generic.NewID()),
		CaseID:    caseID,
		Month:     month,
		Delta:     amount,
		Type:      generic.TxPayment,
		CreatedBy: generic.SystemIdent,
		CreatedAt: l.clock.Now(),
	})
}

func (l *Ledger) Simulate(_ context.Context, order generic.PaymentOrder) (*generic.LedgerPreview, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.simulateErr != nil {
		return nil, l.simulateErr
	}

	preview := &generic.LedgerPreview{}
	for _, line := range order.Lines {
		paid := l.paidLocked(order.CaseID, line.Month)
		gross := line.Amount
		if line.Kind == generic.LineStop {
			gross = generic.NOK(0)
		}
		preview.Lines = append(preview.Lines, generic.LedgerPreviewLine{
			Month:          line.Month,
			Gross:          gross,
			PreviouslyPaid: paid,
			Delta:          gross.Sub(paid),
		})
	}
	return preview, nil
}

func (l *Ledger) Execute(_ context.Context, order generic.PaymentOrder) (*generic.LedgerReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.executeErr != nil {
		return nil, l.executeErr
	}
	if order.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: order without idempotency key", generic.ErrLedgerExecutionFailed)
	}
	if r, ok := l.receipts[order.IdempotencyKey]; ok {
		return r, nil
	}

	now := l.clock.Now()
	receipt := &generic.LedgerReceipt{Reference: "oppdrag-" + generic.NewID(), ExecutedAt: now}
	for _, line := range order.Lines {
		paid := l.paidLocked(order.CaseID, line.Month)
		target := line.Amount
		txType := generic.TxPayment
		if line.Kind == generic.LineStop {
			target = generic.NOK(0)
			txType = generic.TxStop
		}
		delta := target.Sub(paid)
		if delta.IsZero() {
			continue
		}
		if delta.IsNegative() && txType == generic.TxPayment {
			txType = generic.TxReversal
		}
		tx := generic.LedgerTransaction{
			ID:             generic.TransactionID(generic.NewID()),
			CaseID:         order.CaseID,
			Month:          line.Month,
			Delta:          delta,
			Type:           txType,
			ReferenceID:    string(order.RevisionID),
			IdempotencyKey: order.IdempotencyKey,
			CreatedBy:      order.ActorID,
			CreatedAt:      now,
		}
		l.appendLocked(tx)
		receipt.Entries = append(receipt.Entries, tx.ID)
	}
	l.receipts[order.IdempotencyKey] = receipt
	l.executions++
	return receipt, nil
}

// appendLocked keeps transactions sorted by month.
func (l *Ledger) appendLocked(tx generic.LedgerTransaction) {
	txs := l.transactions[tx.CaseID]
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].Month.Start.After(tx.Month.Start)
	})
	txs = append(txs, generic.LedgerTransaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	l.transactions[tx.CaseID] = txs
}

func (l *Ledger) paidLocked(caseID generic.CaseID, month generic.Period) generic.Money {
	total := generic.NOK(0)
	for _, tx := range l.transactions[caseID] {
		if tx.Month.Equal(month) {
			total = total.Add(tx.Delta)
		}
	}
	return total
}

// PaidFor returns the net amount paid for a month.
func (l *Ledger) PaidFor(caseID generic.CaseID, month generic.Period) generic.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paidLocked(caseID, month)
}

// Transactions returns a copy of the case's transactions, sorted by month.
func (l *Ledger) Transactions(caseID generic.CaseID) []generic.LedgerTransaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]generic.LedgerTransaction(nil), l.transactions[caseID]...)
}

// Executions counts orders that wrote to the ledger. Idempotent replays are not counted.
func (l *Ledger) Executions() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.executions
}

var _ generic.Ledger = (*Ledger)(nil)

// =============================================================================
// FAULTS - Shared failure switch for the other stubs
// =============================================================================

type faults struct {
	mu  sync.Mutex
	err error
}

func (f *faults) set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *faults) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func stamp(clock generic.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now()
}
