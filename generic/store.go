/*
store.go - Audit log contract

PURPOSE:
  Every revision mutation writes an audit entry in the same unit of work as
  the revision itself. The audit log is append-only and separate from the
  revision payload, so "who did what when" survives even if a revision's
  stored representation changes.

SEE ALSO:
  - store/store.go: repositories that carry an AuditLog
  - service/service.go: writes entries for each operation
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from revisions, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    NavIdent
	Action     AuditAction
	CaseID     CaseID
	RevisionID RevisionID
	Payload    map[string]string // action-specific data
}

type AuditAction string

const (
	AuditRevisionCreated       AuditAction = "revision_created"
	AuditRevisionEdited        AuditAction = "revision_edited"
	AuditRevisionCalculated    AuditAction = "revision_calculated"
	AuditRevisionSimulated     AuditAction = "revision_simulated"
	AuditAdvanceNoticeSent     AuditAction = "advance_notice_sent"
	AuditAdvanceNoticeSkipped  AuditAction = "advance_notice_skipped"
	AuditAdvanceNoticeResolved AuditAction = "advance_notice_resolved"
	AuditSentToAttestation     AuditAction = "revision_sent_to_attestation"
	AuditRevisionApproved      AuditAction = "revision_approved"
	AuditRevisionRejected      AuditAction = "revision_rejected"
	AuditRevisionExecuted      AuditAction = "revision_executed"
	AuditRevisionTerminated    AuditAction = "revision_terminated"
	AuditSideEffectCompleted   AuditAction = "side_effect_completed"
	AuditCaseCreated           AuditAction = "case_created"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	CaseID     *CaseID
	RevisionID *RevisionID
	ActorID    *NavIdent
	Actions    []AuditAction
}

// Matches reports whether the entry passes the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.CaseID != nil && e.CaseID != *f.CaseID {
		return false
	}
	if f.RevisionID != nil && e.RevisionID != *f.RevisionID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		for _, a := range f.Actions {
			if a == e.Action {
				return true
			}
		}
		return false
	}
	return true
}
