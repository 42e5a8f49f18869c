/*
errors.go - Centralized error types for the revision engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these errors with additional context using %w.

ERROR CATEGORIES:
  1. Input errors       - bad period, missing aspects, unsupported outcome.
                          The caseworker edits and resubmits.
  2. Governance errors  - maker-checker violations. Never bypassable.
  3. State errors       - illegal transitions. Caller and stored state disagree.
  4. Consistency errors - simulation drift (recompute) and timeline gaps (fatal).
  5. Partial execution  - ledger mutated but local commit failed. Fatal,
                          manual reconciliation, never retried automatically.
  6. Collaborator errors - ledger, identity, document and task failures.

Anything not matching a sentinel here is an opaque technical failure.

USAGE:
    if errors.Is(err, generic.ErrSimulationDrift) {
        // recalculate and re-approve
    }

    var ist *generic.IllegalStateTransitionError
    if errors.As(err, &ist) {
        log.Printf("cannot go from %s to %s", ist.From, ist.To)
    }

SEE ALSO:
  - revision/transitions.go: state and input errors
  - execution/orchestrator.go: consistency and partial execution errors
  - api/errors.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Input errors
	ErrInvalidPeriod                 = errors.New("invalid period")
	ErrMissingRevisionAspects        = errors.New("missing revision aspects")
	ErrUnsupportedOutcomeCombination = errors.New("unsupported outcome combination")
	ErrInvalidCalculationInput       = errors.New("invalid calculation input")
	ErrInvalidRevisionInput          = errors.New("invalid revision input")
	ErrOverlappingOpenRevision       = errors.New("an open revision already covers this period")
	ErrAdvanceNoticeUndecided        = errors.New("advance notice not decided")

	// Governance errors
	ErrApproverAndCaseworkerMustDiffer = errors.New("approver and caseworker must differ")
	ErrNotResponsibleCaseworker        = errors.New("actor is not the responsible caseworker")

	// State errors
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// Consistency errors
	ErrSimulationDrift = errors.New("simulation drift")
	ErrTimelineGap     = errors.New("timeline gap")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPartialExecutionFailure: the ledger executed but local state was not committed.
	ErrPartialExecutionFailure = errors.New("partial execution failure")

	// Simulation failure classes
	ErrTechnicalFailure        = errors.New("technical failure")
	ErrInconsistentLedgerState = errors.New("inconsistent ledger state")

	// Ledger collaborator errors. The simulator maps these to the classes above.
	ErrLedgerUnavailable     = errors.New("ledger unavailable")
	ErrLedgerInconsistent    = errors.New("ledger reports inconsistent state")
	ErrLedgerExecutionFailed = errors.New("ledger execution failed")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Side-effect collaborator errors
	ErrUpstreamIdentityLookupFailed = errors.New("upstream identity lookup failed")
	ErrDocumentGenerationFailed     = errors.New("document generation failed")
	ErrDocumentDispatchFailed       = errors.New("document dispatch failed")
	ErrTaskUpdateFailed             = errors.New("task update failed")

	// Not found
	ErrCaseNotFound     = errors.New("case not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrDecisionNotFound = errors.New("decision not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IllegalStateTransitionError names both ends of the rejected transition.
type IllegalStateTransitionError struct {
	From string
	To   string
}

func (e *IllegalStateTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition from %s to %s", e.From, e.To)
}

func (e *IllegalStateTransitionError) Unwrap() error {
	return ErrIllegalStateTransition
}

// UnsupportedOutcomeError lists every reason the outcome cannot be one administrative act.
type UnsupportedOutcomeError struct {
	Reasons []string
}

func (e *UnsupportedOutcomeError) Error() string {
	return fmt.Sprintf("unsupported outcome combination: %s", strings.Join(e.Reasons, ", "))
}

func (e *UnsupportedOutcomeError) Unwrap() error {
	return ErrUnsupportedOutcomeCombination
}

// InvalidCalculationInputError explains why the engine refused its input.
type InvalidCalculationInputError struct {
	Reason string
}

func (e *InvalidCalculationInputError) Error() string {
	return "invalid calculation input: " + e.Reason
}

func (e *InvalidCalculationInputError) Unwrap() error {
	return ErrInvalidCalculationInput
}

// InvalidCalculationInput builds an InvalidCalculationInputError from a format string.
func InvalidCalculationInput(format string, args ...any) error {
	return &InvalidCalculationInputError{Reason: fmt.Sprintf(format, args...)}
}

// SimulationDriftError reports which check found the simulation stale.
type SimulationDriftError struct {
	Reason   string // "schedule", "basis" or "ledger"
	Expected string
	Actual   string
}

func (e *SimulationDriftError) Error() string {
	return fmt.Sprintf("simulation drift (%s): expected %s, got %s", e.Reason, e.Expected, e.Actual)
}

func (e *SimulationDriftError) Unwrap() error {
	return ErrSimulationDrift
}

// TimelineGapError describes a non-contiguous decision append.
type TimelineGapError struct {
	CaseID   CaseID
	PriorEnd TimePoint
	NewStart TimePoint
}

func (e *TimelineGapError) Error() string {
	return fmt.Sprintf("timeline gap on case %s: prior decision ends %s, new decision starts %s",
		e.CaseID, e.PriorEnd, e.NewStart)
}

func (e *TimelineGapError) Unwrap() error {
	return ErrTimelineGap
}

// PartialExecutionError: the ledger accepted the order but the decision was not persisted.
type PartialExecutionError struct {
	RevisionID      RevisionID
	LedgerReference string
	Cause           error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution of revision %s (ledger ref %s): %v",
		e.RevisionID, e.LedgerReference, e.Cause)
}

// Unwrap exposes both the class and the underlying persistence fault.
func (e *PartialExecutionError) Unwrap() []error {
	return []error{ErrPartialExecutionFailure, e.Cause}
}

// SimulationFailedError carries a classified simulator failure.
type SimulationFailedError struct {
	Kind  error // ErrTechnicalFailure or ErrInconsistentLedgerState
	Cause error
}

func (e *SimulationFailedError) Error() string {
	return fmt.Sprintf("simulation failed (%v): %v", e.Kind, e.Cause)
}

func (e *SimulationFailedError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInputError: the caseworker can fix it by editing and resubmitting.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingRevisionAspects) ||
		errors.Is(err, ErrUnsupportedOutcomeCombination) ||
		errors.Is(err, ErrInvalidCalculationInput) ||
		errors.Is(err, ErrInvalidRevisionInput) ||
		errors.Is(err, ErrOverlappingOpenRevision) ||
		errors.Is(err, ErrAdvanceNoticeUndecided)
}

func IsGovernanceError(err error) bool {
	return errors.Is(err, ErrApproverAndCaseworkerMustDiffer) ||
		errors.Is(err, ErrNotResponsibleCaseworker)
}

func IsStateError(err error) bool {
	return errors.Is(err, ErrIllegalStateTransition)
}

func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrSimulationDrift) ||
		errors.Is(err, ErrTimelineGap) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsFatal marks errors that need manual reconciliation and alerting.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPartialExecutionFailure) ||
		errors.Is(err, ErrTimelineGap)
}

// IsRetryable returns true if the same call might succeed unchanged.
func IsRetryable(err error) bool {
	if IsFatal(err) {
		return false
	}
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrTechnicalFailure) ||
		errors.Is(err, ErrLedgerUnavailable) ||
		errors.Is(err, ErrUpstreamIdentityLookupFailed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCaseNotFound) ||
		errors.Is(err, ErrRevisionNotFound) ||
		errors.Is(err, ErrDecisionNotFound)
}
