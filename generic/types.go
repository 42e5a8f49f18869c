/*
Package generic provides the shared primitives of the revision engine.

PURPOSE:
  Types that every other package needs and that carry no knowledge of the
  revision workflow itself: money, identifiers, dates and periods, the error
  taxonomy, the audit log contract and the external ledger contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: a NOK amount backed by decimal.Decimal
  - Identifiers: type-safe IDs for cases, revisions, decisions and people
  - NewID: random identifiers for new entities

DESIGN PRINCIPLES:
  1. Precision: money never passes through float64 arithmetic
  2. Type safety: a RevisionID cannot be passed where a CaseID is expected
  3. Day granularity: every date is a calendar day in UTC

SEE ALSO:
  - period.go: month-aligned periods
  - errors.go: error taxonomy
  - ledger.go: external ledger contract
*/
package generic

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Whole or fractional NOK
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NOK(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }

func NewMoney(d decimal.Decimal) Money { return Money{Value: d} }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Add(b Money) Money            { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money            { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money  { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool     { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool        { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool           { return m.Value.Equal(b.Value) }
func (m Money) Round() Money                 { return Money{Value: m.Value.Round(0)} }
func (m Money) String() string               { return m.Value.StringFixed(0) }

// MarshalText keeps amounts as decimal strings in JSON.
func (m Money) MarshalText() ([]byte, error) { return []byte(m.Value.String()), nil }

func (m *Money) UnmarshalText(b []byte) error {
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	m.Value = d
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CaseID string
type RevisionID string
type DecisionID string
type DocumentID string

// BeneficiaryID is the beneficiary's national identity number (fnr).
type BeneficiaryID string

// NavIdent identifies a caseworker or attestant.
type NavIdent string

// SystemIdent performs automatic transitions.
const SystemIdent NavIdent = "system"

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

func NewRevisionID() RevisionID { return RevisionID(NewID()) }
func NewDecisionID() DecisionID { return DecisionID(NewID()) }
func NewCaseID() CaseID         { return CaseID(NewID()) }
