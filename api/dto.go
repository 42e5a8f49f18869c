/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain values that
  already have a stable JSON form (periods, money, grounds, schedules,
  previews) are embedded as they are; everything else is flattened here so
  the revision state types stay out of the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Case:       CaseDTO, SegmentDTO, CreateCaseRequest, DecisionInput
  Revision:   RevisionDTO, CreateRevisionRequest, UpdateRevisionRequest,
              AttestRequest, TerminateRequest
  Execution:  ExecutionReportDTO, DeficiencyDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

// =============================================================================
// CASES
// =============================================================================

type CaseDTO struct {
	ID          string             `json:"id"`
	Beneficiary string             `json:"beneficiary"`
	Version     int                `json:"version"`
	CreatedAt   string             `json:"created_at"`
	Decisions   []benefit.Decision `json:"decisions"`
	Timeline    []SegmentDTO       `json:"timeline"`
}

// SegmentDTO is one stretch of the effective timeline.
type SegmentDTO struct {
	Period     generic.Period  `json:"period"`
	DecisionID string          `json:"decision_id"`
	Outcome    benefit.Outcome `json:"outcome"`
}

type CreateCaseRequest struct {
	Beneficiary     string         `json:"beneficiary"`
	InitialDecision *DecisionInput `json:"initial_decision,omitempty"`
}

// DecisionInput seeds a case with a decision made outside this service.
type DecisionInput struct {
	Period  generic.Period        `json:"period"`
	Outcome benefit.Outcome       `json:"outcome"`
	Lines   []benefit.MonthlyLine `json:"lines"`
	Grounds benefit.Grounds       `json:"grounds"`
}

func toCaseDTO(c *benefit.Case) CaseDTO {
	dto := CaseDTO{
		ID:          string(c.ID),
		Beneficiary: string(c.Beneficiary),
		Version:     c.Version,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		Decisions:   c.Decisions,
		Timeline:    []SegmentDTO{},
	}
	if dto.Decisions == nil {
		dto.Decisions = []benefit.Decision{}
	}
	for _, s := range c.Timeline() {
		dto.Timeline = append(dto.Timeline, SegmentDTO{
			Period:     s.Period,
			DecisionID: string(s.Decision.ID),
			Outcome:    s.Decision.Outcome,
		})
	}
	return dto
}

// =============================================================================
// REVISIONS
// =============================================================================

// RevisionDTO flattens every revision state. Fields a state does not have are omitted.
type RevisionDTO struct {
	ID            string            `json:"id"`
	CaseID        string            `json:"case_id"`
	Status        revision.Status   `json:"status"`
	Version       int               `json:"version"`
	Period        generic.Period    `json:"period"`
	Basis         *string           `json:"basis,omitempty"`
	Caseworker    string            `json:"caseworker"`
	Cause         revision.Cause    `json:"cause"`
	Justification string            `json:"justification"`
	Aspects       benefit.AspectSet `json:"aspects"`
	Grounds       benefit.Grounds   `json:"grounds"`

	Outcome     *revision.Outcome     `json:"outcome,omitempty"`
	Schedule    *calculation.Schedule `json:"schedule,omitempty"`
	Simulation  *simulation.Preview   `json:"simulation,omitempty"`
	Attestation *revision.Attestation `json:"attestation,omitempty"`

	AttestationHistory []revision.Attestation  `json:"attestation_history"`
	AdvanceNotice      *revision.AdvanceNotice `json:"advance_notice,omitempty"`

	Execution   *revision.ExecutionRecord   `json:"execution,omitempty"`
	SideEffects *SideEffectsDTO             `json:"side_effects,omitempty"`
	Termination *revision.TerminationRecord `json:"termination,omitempty"`
	From        revision.Status             `json:"terminated_from,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type SideEffectsDTO struct {
	revision.SideEffects
	Complete bool                      `json:"complete"`
	Lacking  []revision.SideEffectStep `json:"lacking,omitempty"`
}

func toRevisionDTO(r revision.Revision) RevisionDTO {
	b := r.Base()
	dto := RevisionDTO{
		ID:                 string(b.ID),
		CaseID:             string(b.CaseID),
		Status:             r.Status(),
		Version:            b.Version,
		Period:             b.Period,
		Caseworker:         string(b.Caseworker),
		Cause:              b.Cause,
		Justification:      b.Justification,
		Aspects:            b.Aspects,
		Grounds:            b.Grounds,
		Schedule:           revision.ScheduleOf(r),
		Simulation:         revision.SimulationOf(r),
		Attestation:        revision.AttestationOf(r),
		AttestationHistory: b.AttestationHistory,
		AdvanceNotice:      b.AdvanceNotice,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          b.UpdatedAt.Format(time.RFC3339),
	}
	if dto.Aspects == nil {
		dto.Aspects = benefit.AspectSet{}
	}
	if dto.AttestationHistory == nil {
		dto.AttestationHistory = []revision.Attestation{}
	}
	if b.Basis != nil {
		s := string(*b.Basis)
		dto.Basis = &s
	}
	if o, ok := revision.OutcomeOf(r); ok {
		dto.Outcome = &o
	}
	switch v := r.(type) {
	case *revision.Executed:
		exec := v.Execution
		dto.Execution = &exec
		dto.SideEffects = &SideEffectsDTO{
			SideEffects: v.SideEffects,
			Complete:    v.SideEffects.Complete(),
			Lacking:     v.SideEffects.Lacking(),
		}
	case *revision.Terminated:
		term := v.Termination
		dto.Termination = &term
		dto.From = v.From
	}
	return dto
}

func toRevisionDTOs(rs []revision.Revision) []RevisionDTO {
	out := make([]RevisionDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRevisionDTO(r))
	}
	return out
}

type CreateRevisionRequest struct {
	Period        generic.Period  `json:"period"`
	Cause         string          `json:"cause"`
	Justification string          `json:"justification"`
	Aspects       []string        `json:"aspects"`
	Grounds       benefit.Grounds `json:"grounds"`
	Bootstrap     bool            `json:"bootstrap,omitempty"`
}

// UpdateRevisionRequest: absent fields are left unchanged.
type UpdateRevisionRequest struct {
	Period        *generic.Period  `json:"period,omitempty"`
	Cause         *string          `json:"cause,omitempty"`
	Justification *string          `json:"justification,omitempty"`
	Aspects       *[]string        `json:"aspects,omitempty"`
	Grounds       *benefit.Grounds `json:"grounds,omitempty"`
}

type AttestRequest struct {
	Decision string `json:"decision"` // approved | rejected
	Grounds  string `json:"grounds,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type TerminateRequest struct {
	Justification string `json:"justification"`
}

// AdvanceNoticeRequest decides whether the beneficiary is warned before attestation.
type AdvanceNoticeRequest struct {
	Action string `json:"action"` // send | skip
	Text   string `json:"text,omitempty"`
}

type ResolveNoticeRequest struct {
	Resolution    string `json:"resolution"` // continued | grounds_changed | abandoned
	Justification string `json:"justification"`
}

type LetterDraftRequest struct {
	FreeText string `json:"free_text,omitempty"`
}

type LetterDraftDTO struct {
	RevisionID string `json:"revision_id"`
	Content    string `json:"content"`
}

func parseAspects(names []string) (benefit.AspectSet, error) {
	aspects := make([]benefit.Aspect, 0, len(names))
	for _, n := range names {
		a, err := benefit.ParseAspect(n)
		if err != nil {
			return nil, err
		}
		aspects = append(aspects, a)
	}
	return benefit.NewAspectSet(aspects...)
}

// =============================================================================
// EXECUTION
// =============================================================================

type ExecutionReportDTO struct {
	Revision     RevisionDTO     `json:"revision"`
	Complete     bool            `json:"complete"`
	Deficiencies []DeficiencyDTO `json:"deficiencies"`
}

type DeficiencyDTO struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

func toReportDTO(rep *execution.Report) ExecutionReportDTO {
	dto := ExecutionReportDTO{
		Revision:     toRevisionDTO(rep.Revision),
		Complete:     rep.Complete(),
		Deficiencies: []DeficiencyDTO{},
	}
	for _, d := range rep.Deficiencies {
		dto.Deficiencies = append(dto.Deficiencies, DeficiencyDTO{Step: string(d.Step), Error: d.Err.Error()})
	}
	return dto
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditEntryDTO struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	Payload   map[string]string `json:"payload,omitempty"`
}

func toAuditDTOs(entries []generic.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryDTO{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Actor:     string(e.ActorID),
			Action:    string(e.Action),
			Payload:   e.Payload,
		})
	}
	return out
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type LoadScenarioResponse struct {
	Scenario  ScenarioDTO `json:"scenario"`
	CaseID    string      `json:"case_id"`
	Revisions []string    `json:"revision_ids"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details string   `json:"details,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}
