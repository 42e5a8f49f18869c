/*
handlers.go - HTTP API handlers for the revision engine

PURPOSE:
  Exposes case revision via REST. Handles HTTP request/response, JSON
  serialization and actor extraction, and delegates to service.Service.

ENDPOINTS:
  Cases:
    GET    /api/cases                        List cases
    POST   /api/cases                        Create case (optional initial decision)
    GET    /api/cases/{id}                   Case with decisions and timeline
    GET    /api/cases/{id}/revisions         Revisions of a case
    POST   /api/cases/{id}/revisions         Open a revision

  Revisions:
    GET    /api/revisions/{id}               Revision in its current state
    PUT    /api/revisions/{id}               Edit (back to created)
    POST   /api/revisions/{id}/calculate     Recalculate
    POST   /api/revisions/{id}/simulate      Simulate against the ledger
    POST   /api/revisions/{id}/advance-notice               Send or skip the advance notice
    POST   /api/revisions/{id}/advance-notice/resolution    Continue, change grounds or abandon
    POST   /api/revisions/{id}/letter-draft                 Preview the decision letter
    POST   /api/revisions/{id}/send-to-attestation
    POST   /api/revisions/{id}/attest        Approve or reject
    POST   /api/revisions/{id}/execute       Commit an approved revision
    POST   /api/revisions/{id}/terminate     Abandon
    POST   /api/revisions/{id}/complete-side-effects
    GET    /api/revisions/{id}/history       Audit trail

  Reconciliation:
    GET    /api/reconciliation/incomplete    Executed revisions with side effects outstanding
    POST   /api/reconciliation/run           Run one sweep now

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    POST   /api/scenarios/load               Load a demo scenario

ACTOR:
  Every mutation needs the X-Nav-Ident header naming the acting
  caseworker or attestant. Missing header: 401.

ERROR HANDLING:
  Domain errors are mapped by class in errors.go. Body:
  {"error", "code", "details", "reasons"}.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/service"
)

// ActorHeader carries the acting NAV ident.
const ActorHeader = "X-Nav-Ident"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

type Handler struct {
	Service    *service.Service
	Reconciler *execution.Reconciler
	Scenarios  *Scenarios
}

func NewHandler(svc *service.Service, rec *execution.Reconciler, scenarios *Scenarios) *Handler {
	return &Handler{Service: svc, Reconciler: rec, Scenarios: scenarios}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CASE ENDPOINTS
// =============================================================================

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.Service.ListCases(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list cases", err)
		return
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].CreatedAt.Before(cases[j].CreatedAt) })
	out := make([]CaseDTO, 0, len(cases))
	for _, c := range cases {
		out = append(out, toCaseDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	var req CreateCaseRequest
	if !decode(w, r, &req) {
		return
	}
	var initial *benefit.Decision
	if req.InitialDecision != nil {
		in := req.InitialDecision
		initial = &benefit.Decision{
			Period:  in.Period,
			Outcome: in.Outcome,
			Lines:   in.Lines,
			Grounds: in.Grounds,
		}
	}
	c, err := h.Service.CreateCase(r.Context(), generic.BeneficiaryID(req.Beneficiary), initial)
	if err != nil {
		writeDomainError(w, "failed to create case", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCaseDTO(c))
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetCase(r.Context(), generic.CaseID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "failed to load case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

func (h *Handler) ListCaseRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := h.Service.ListByCase(r.Context(), generic.CaseID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "failed to list revisions", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTOs(revs))
}

func (h *Handler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateRevisionRequest
	if !decode(w, r, &req) {
		return
	}
	aspects, err := parseAspects(req.Aspects)
	if err != nil {
		writeDomainError(w, "invalid aspects", err)
		return
	}
	created, err := h.Service.Create(r.Context(), service.CreateParams{
		CaseID:        generic.CaseID(chi.URLParam(r, "id")),
		Period:        req.Period,
		Caseworker:    actor,
		Cause:         revision.Cause(req.Cause),
		Justification: req.Justification,
		Aspects:       aspects,
		Grounds:       req.Grounds,
		Bootstrap:     req.Bootstrap,
	})
	if err != nil {
		writeDomainError(w, "failed to create revision", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRevisionDTO(created))
}

// =============================================================================
// REVISION ENDPOINTS
// =============================================================================

func (h *Handler) GetRevision(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Service.Get(r.Context(), revisionID(r))
	if err != nil {
		writeDomainError(w, "failed to load revision", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(rev))
}

func (h *Handler) UpdateRevision(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req UpdateRevisionRequest
	if !decode(w, r, &req) {
		return
	}
	p := service.UpdateParams{
		Period:        req.Period,
		Grounds:       req.Grounds,
		Justification: req.Justification,
	}
	if req.Cause != nil {
		c := revision.Cause(*req.Cause)
		p.Cause = &c
	}
	if req.Aspects != nil {
		aspects, err := parseAspects(*req.Aspects)
		if err != nil {
			writeDomainError(w, "invalid aspects", err)
			return
		}
		p.Aspects = &aspects
	}
	edited, err := h.Service.Update(r.Context(), revisionID(r), actor, p)
	if err != nil {
		writeDomainError(w, "failed to update revision", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(edited))
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	calculated, err := h.Service.Recalculate(r.Context(), revisionID(r), actor)
	if err != nil {
		writeDomainError(w, "calculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(calculated))
}

func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	simulated, err := h.Service.Simulate(r.Context(), revisionID(r), actor)
	if err != nil {
		writeDomainError(w, "simulation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(simulated))
}

func (h *Handler) SendToAttestation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	pending, err := h.Service.SendToAttestation(r.Context(), revisionID(r), actor)
	if err != nil {
		writeDomainError(w, "failed to send to attestation", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(pending))
}

// AdvanceNotice sends or skips the advance notice of a simulated revision.
func (h *Handler) AdvanceNotice(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req AdvanceNoticeRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		next *revision.Simulated
		err  error
	)
	switch req.Action {
	case "send":
		next, err = h.Service.SendAdvanceNotice(r.Context(), revisionID(r), actor, req.Text)
	case "skip":
		next, err = h.Service.SkipAdvanceNotice(r.Context(), revisionID(r), actor)
	default:
		writeError(w, http.StatusBadRequest, "action must be send or skip", nil)
		return
	}
	if err != nil {
		writeDomainError(w, "advance notice failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(next))
}

func (h *Handler) ResolveAdvanceNotice(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ResolveNoticeRequest
	if !decode(w, r, &req) {
		return
	}
	next, err := h.Service.ResolveAdvanceNotice(r.Context(), revisionID(r), actor,
		revision.NoticeState(req.Resolution), req.Justification)
	if err != nil {
		writeDomainError(w, "failed to resolve advance notice", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(next))
}

func (h *Handler) LetterDraft(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	var req LetterDraftRequest
	if !decode(w, r, &req) {
		return
	}
	id := revisionID(r)
	draft, err := h.Service.DraftDecisionLetter(r.Context(), id, req.FreeText)
	if err != nil {
		writeDomainError(w, "letter draft failed", err)
		return
	}
	writeJSON(w, http.StatusOK, LetterDraftDTO{RevisionID: string(id), Content: string(draft)})
}

func (h *Handler) Attest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req AttestRequest
	if !decode(w, r, &req) {
		return
	}
	decision := revision.AttestationDecision(req.Decision)
	var rejection *revision.Rejection
	switch decision {
	case revision.DecisionApproved:
	case revision.DecisionRejected:
		rejection = &revision.Rejection{Grounds: revision.RejectionGrounds(req.Grounds), Comment: req.Comment}
	default:
		writeError(w, http.StatusBadRequest, "decision must be approved or rejected", nil)
		return
	}
	next, err := h.Service.SubmitForApproval(r.Context(), revisionID(r), actor, decision, rejection)
	if err != nil {
		writeDomainError(w, "attestation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(next))
}

// Execute returns 200 with the report even when side effects are outstanding;
// the decision is committed either way.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rep, err := h.Service.Execute(r.Context(), revisionID(r), actor)
	if err != nil {
		writeDomainError(w, "execution failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req TerminateRequest
	if !decode(w, r, &req) {
		return
	}
	terminated, err := h.Service.Terminate(r.Context(), revisionID(r), actor, req.Justification)
	if err != nil {
		writeDomainError(w, "termination failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionDTO(terminated))
}

func (h *Handler) CompleteSideEffects(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	rep, err := h.Service.CompleteSideEffects(r.Context(), revisionID(r))
	if err != nil {
		writeDomainError(w, "failed to complete side effects", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.History(r.Context(), revisionID(r))
	if err != nil {
		writeDomainError(w, "failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

func (h *Handler) ListIncomplete(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Service.Incomplete(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list incomplete revisions", err)
		return
	}
	out := make([]RevisionDTO, 0, len(pending))
	for _, e := range pending {
		out = append(out, toRevisionDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	if h.Reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciler not configured", nil)
		return
	}
	res, err := h.Reconciler.RunOnce(r.Context())
	if err != nil {
		writeDomainError(w, "reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListScenarios())
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	if h.Scenarios == nil {
		writeError(w, http.StatusServiceUnavailable, "scenarios not configured", nil)
		return
	}
	resp, err := h.Scenarios.Load(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusNotFound, "unknown scenario", err)
			return
		}
		writeDomainError(w, "failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func revisionID(r *http.Request) generic.RevisionID {
	return generic.RevisionID(chi.URLParam(r, "id"))
}

func requireActor(w http.ResponseWriter, r *http.Request) (generic.NavIdent, bool) {
	ident := r.Header.Get(ActorHeader)
	if ident == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ActorHeader+" header", nil)
		return "", false
	}
	return generic.NavIdent(ident), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
