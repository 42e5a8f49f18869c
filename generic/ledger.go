/*
ledger.go - Contract with the external payment ledger ("oppdrag")

PURPOSE:
  The payment ledger is the external source of truth for money paid to the
  beneficiary. This engine never owns ledger state: it previews payment
  orders (Simulate) and, once a revision is approved, executes them
  (Execute). Executed orders become append-only ledger transactions on the
  ledger side.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: the ledger never edits a transaction; corrections are new
     transactions with opposite sign.
  2. IDEMPOTENT: executing the same order twice with the same idempotency key
     returns the first receipt and writes nothing new.
  3. NOT ROLLBACK-ABLE: once Execute returns success this system cannot undo
     it. A local commit failure after that point is a partial execution.

ERROR CONTRACT:
  Implementations wrap:
  - ErrLedgerUnavailable  for transport/timeouts (retryable)
  - ErrLedgerInconsistent when the ledger's own state rejects the order
  - ErrLedgerExecutionFailed for any other rejected execution

SEE ALSO:
  - simulation/simulator.go: classifies Simulate errors
  - execution/orchestrator.go: calls Execute inside the unit of work
  - client/stubs/ledger.go: in-process implementation
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// PAYMENT ORDER - What we ask the ledger to preview or execute
// =============================================================================

type PaymentLineKind string

const (
	LinePayment PaymentLineKind = "payment" // pay Amount for the month
	LineStop    PaymentLineKind = "stop"    // stop payments for the month
)

// PaymentLine is one month of a payment order.
type PaymentLine struct {
	Month  Period          `json:"month"`
	Amount Money           `json:"amount"`
	Kind   PaymentLineKind `json:"kind"`
}

// PaymentOrder is derived from a projected schedule.
type PaymentOrder struct {
	CaseID           CaseID        `json:"case_id"`
	Beneficiary      BeneficiaryID `json:"beneficiary"`
	RevisionID       RevisionID    `json:"revision_id"`
	ScheduleChecksum string        `json:"schedule_checksum"`
	Lines            []PaymentLine `json:"lines"`
	IdempotencyKey   string        `json:"idempotency_key"`
	ActorID          NavIdent      `json:"actor_id"`
}

// =============================================================================
// LEDGER RESPONSES
// =============================================================================

// LedgerPreviewLine is the ledger's view of one month of the order.
type LedgerPreviewLine struct {
	Month          Period `json:"month"`
	Gross          Money  `json:"gross"`
	PreviouslyPaid Money  `json:"previously_paid"`
	Delta          Money  `json:"delta"`
}

// LedgerPreview is returned by Simulate. Nothing was written.
type LedgerPreview struct {
	Lines []LedgerPreviewLine `json:"lines"`
}

// LedgerReceipt is returned by Execute.
type LedgerReceipt struct {
	Reference  string          `json:"reference"`
	ExecutedAt time.Time       `json:"executed_at"`
	Entries    []TransactionID `json:"entries"`
}

// =============================================================================
// LEDGER TRANSACTION - Append-only record on the ledger side
// =============================================================================

type TransactionID string

type TransactionType string

const (
	TxPayment  TransactionType = "payment"
	TxStop     TransactionType = "stop"
	TxReversal TransactionType = "reversal" // undo of an earlier payment for the same month
)

type LedgerTransaction struct {
	ID             TransactionID
	CaseID         CaseID
	Month          Period
	Delta          Money
	Type           TransactionType
	ReferenceID    string // revision ID
	IdempotencyKey string
	CreatedBy      NavIdent
	CreatedAt      time.Time
}

// =============================================================================
// LEDGER - External collaborator
// =============================================================================

type Ledger interface {
	// Simulate previews the order. Read-only on the ledger side.
	Simulate(ctx context.Context, order PaymentOrder) (*LedgerPreview, error)

	// Execute applies the order. Idempotent by order.IdempotencyKey.
	Execute(ctx context.Context, order PaymentOrder) (*LedgerReceipt, error)
}
