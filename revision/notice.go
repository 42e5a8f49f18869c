package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

// =============================================================================
// ADVANCE NOTICE ("forhåndsvarsel")
// =============================================================================
//
// Before a simulated revision goes to attestation the caseworker decides
// whether the beneficiary is warned in advance:
//
//	(none) ──skip──▶ not_required
//	(none) ──send──▶ sent ──resolve──▶ continued | grounds_changed | abandoned
//
// not_required may still be turned into sent. Once sent, the notice can only
// be resolved, and only once. The notice lives on Core, so it survives edits
// and recalculation.

type NoticeState string

const (
	NoticeNotRequired    NoticeState = "not_required"
	NoticeSent           NoticeState = "sent"
	NoticeContinued      NoticeState = "continued"       // continue with the same grounds
	NoticeGroundsChanged NoticeState = "grounds_changed" // the answer changed the grounds
	NoticeAbandoned      NoticeState = "abandoned"       // revision closed without change
)

// Decided reports whether the notice no longer blocks attestation.
func (s NoticeState) Decided() bool {
	return s == NoticeNotRequired || s == NoticeContinued || s == NoticeGroundsChanged
}

// IsResolution reports whether s answers a sent notice.
func (s NoticeState) IsResolution() bool {
	return s == NoticeContinued || s == NoticeGroundsChanged || s == NoticeAbandoned
}

type AdvanceNotice struct {
	State         NoticeState        `json:"state"`
	DocumentID    generic.DocumentID `json:"document_id,omitempty"`
	Justification string             `json:"justification,omitempty"`
	DecidedBy     generic.NavIdent   `json:"decided_by"`
	DecidedAt     time.Time          `json:"decided_at"`
}

func noticeState(c Core) string {
	if c.AdvanceNotice == nil {
		return "none"
	}
	return string(c.AdvanceNotice.State)
}

func illegalNotice(c Core, to NoticeState) error {
	return &generic.IllegalStateTransitionError{From: "notice " + noticeState(c), To: "notice " + string(to)}
}

// canNotify checks the revision side of every notice transition.
func canNotify(r Revision, actor generic.NavIdent) (*Simulated, error) {
	sim, ok := r.(*Simulated)
	if !ok {
		return nil, illegal(r, StatusSimulated)
	}
	if err := requireOwner(r, actor); err != nil {
		return nil, err
	}
	return sim, nil
}

func withNotice(sim *Simulated, n AdvanceNotice, at time.Time) *Simulated {
	cp := *sim
	cp.Core = next(sim.Core, at)
	cp.AdvanceNotice = &n
	return &cp
}

// CanSendAdvanceNotice checks a notice may be sent before the letter is produced.
func CanSendAdvanceNotice(r Revision, actor generic.NavIdent) (*Simulated, error) {
	sim, err := canNotify(r, actor)
	if err != nil {
		return nil, err
	}
	if err := unsupported(sim.Outcome); err != nil {
		return nil, err
	}
	if n := sim.AdvanceNotice; n != nil && n.State != NoticeNotRequired {
		return nil, illegalNotice(sim.Core, NoticeSent)
	}
	return sim, nil
}

// SkipAdvanceNotice records that the beneficiary is not warned in advance.
func SkipAdvanceNotice(r Revision, actor generic.NavIdent, at time.Time) (*Simulated, error) {
	sim, err := canNotify(r, actor)
	if err != nil {
		return nil, err
	}
	if err := unsupported(sim.Outcome); err != nil {
		return nil, err
	}
	if n := sim.AdvanceNotice; n != nil && n.State != NoticeNotRequired {
		return nil, illegalNotice(sim.Core, NoticeNotRequired)
	}
	return withNotice(sim, AdvanceNotice{State: NoticeNotRequired, DecidedBy: actor, DecidedAt: at}, at), nil
}

// AdvanceNoticeSent records the letter that warned the beneficiary.
func AdvanceNoticeSent(r Revision, actor generic.NavIdent, doc generic.DocumentID, at time.Time) (*Simulated, error) {
	sim, err := CanSendAdvanceNotice(r, actor)
	if err != nil {
		return nil, err
	}
	if doc == "" {
		return nil, fmt.Errorf("%w: advance notice without document", generic.ErrInvalidRevisionInput)
	}
	return withNotice(sim, AdvanceNotice{State: NoticeSent, DocumentID: doc, DecidedBy: actor, DecidedAt: at}, at), nil
}

// ResolveAdvanceNotice records what the caseworker does after the
// beneficiary had the chance to answer. An abandoned notice leaves the
// revision Simulated; the caller terminates it.
func ResolveAdvanceNotice(r Revision, actor generic.NavIdent, to NoticeState, justification string, at time.Time) (*Simulated, error) {
	sim, err := canNotify(r, actor)
	if err != nil {
		return nil, err
	}
	if !to.IsResolution() {
		return nil, fmt.Errorf("%w: %q does not resolve an advance notice", generic.ErrInvalidRevisionInput, to)
	}
	n := sim.AdvanceNotice
	if n == nil || n.State != NoticeSent {
		return nil, illegalNotice(sim.Core, to)
	}
	if strings.TrimSpace(justification) == "" {
		return nil, fmt.Errorf("%w: justification is required to resolve an advance notice", generic.ErrInvalidRevisionInput)
	}
	return withNotice(sim, AdvanceNotice{
		State:         to,
		DocumentID:    n.DocumentID,
		Justification: justification,
		DecidedBy:     actor,
		DecidedAt:     at,
	}, at), nil
}

// requireNoticeDecided blocks attestation until the notice is settled.
// A no-change outcome needs no notice.
func requireNoticeDecided(sim *Simulated) error {
	if sim.Outcome.Class == benefit.OutcomeNoChange {
		return nil
	}
	if sim.AdvanceNotice == nil || !sim.AdvanceNotice.State.Decided() {
		return fmt.Errorf("%w: revision %s (notice %s)", generic.ErrAdvanceNoticeUndecided, sim.ID, noticeState(sim.Core))
	}
	return nil
}
