package api

import (
	"errors"
	"net/http"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

// statusFor maps the domain error taxonomy onto HTTP.
//
//	not found                        -> 404
//	partial execution, timeline gap  -> 500 (fatal, alerted by the orchestrator)
//	governance                       -> 403
//	unsupported outcome, calc input  -> 422
//	other input                      -> 400
//	state, drift, concurrency        -> 409
//	ledger/identity unavailable      -> 503
//	ledger inconsistent or refused   -> 502
func statusFor(err error) (int, string) {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case generic.IsFatal(err):
		return http.StatusInternalServerError, "fatal"
	case generic.IsGovernanceError(err):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, generic.ErrUnsupportedOutcomeCombination),
		errors.Is(err, generic.ErrInvalidCalculationInput),
		errors.Is(err, generic.ErrMissingRevisionAspects),
		errors.Is(err, generic.ErrAdvanceNoticeUndecided):
		return http.StatusUnprocessableEntity, "unprocessable"
	case generic.IsInputError(err):
		return http.StatusBadRequest, "invalid_input"
	case generic.IsStateError(err):
		return http.StatusConflict, "illegal_state"
	case errors.Is(err, generic.ErrSimulationDrift):
		return http.StatusConflict, "simulation_drift"
	case generic.IsConsistencyError(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, generic.ErrTechnicalFailure),
		errors.Is(err, generic.ErrLedgerUnavailable),
		errors.Is(err, generic.ErrUpstreamIdentityLookupFailed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, generic.ErrInconsistentLedgerState),
		errors.Is(err, generic.ErrLedgerInconsistent),
		errors.Is(err, generic.ErrLedgerExecutionFailed):
		return http.StatusBadGateway, "ledger_error"
	}
	return http.StatusInternalServerError, "internal"
}

// writeDomainError writes err with the status its class maps to.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	var unsupported *generic.UnsupportedOutcomeError
	if errors.As(err, &unsupported) {
		resp.Reasons = unsupported.Reasons
	}
	var drift *generic.SimulationDriftError
	if errors.As(err, &drift) {
		resp.Reasons = []string{drift.Reason}
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: http.StatusText(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
