/*
attestation.go - Maker-checker governed transitions

PURPOSE:
  A revision that changes a decision is never finalised by the person who
  prepared it. The attestant approves or rejects a PendingAttestation
  revision; a rejection sends it back to the caseworker for editing or
  recalculation.

  RequireDistinctActors is the single maker-checker check. The attestation
  governor here and the execution orchestrator both call it, so the rule
  cannot drift between the two places.

HISTORY:
  Every attestation is appended to Core.AttestationHistory and kept across
  edits, so a revision rejected twice and approved once shows all three.
*/
package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

// RequireDistinctActors fails when the caseworker tries to check their own work.
func RequireDistinctActors(caseworker, other generic.NavIdent) error {
	if other == "" || other == caseworker {
		return fmt.Errorf("%w: %q prepared the revision", generic.ErrApproverAndCaseworkerMustDiffer, caseworker)
	}
	return nil
}

// Rejection is required when the attestant rejects.
type Rejection struct {
	Grounds RejectionGrounds
	Comment string
}

// SubmitForApproval records the attestant's decision on a pending revision.
// The result is *Approved or *Rejected.
func SubmitForApproval(r Revision, attestant generic.NavIdent, decision AttestationDecision, rejection *Rejection, at time.Time) (Revision, error) {
	pending, ok := r.(*PendingAttestation)
	if !ok {
		to := StatusApproved
		if decision == DecisionRejected {
			to = StatusRejected
		}
		return nil, illegal(r, to)
	}
	if err := RequireDistinctActors(pending.Caseworker, attestant); err != nil {
		return nil, err
	}

	att := Attestation{Attestant: attestant, Decision: decision, DecidedAt: at}
	core := next(pending.Core, at)

	switch decision {
	case DecisionApproved:
		core.AttestationHistory = appendHistory(core.AttestationHistory, att)
		return &Approved{
			Core:        core,
			Schedule:    pending.Schedule,
			Outcome:     pending.Outcome,
			Simulation:  pending.Simulation,
			Attestation: att,
		}, nil

	case DecisionRejected:
		if rejection == nil || !rejection.Grounds.Valid() {
			return nil, fmt.Errorf("%w: rejection needs valid grounds", generic.ErrInvalidRevisionInput)
		}
		if strings.TrimSpace(rejection.Comment) == "" {
			return nil, fmt.Errorf("%w: rejection needs a comment", generic.ErrInvalidRevisionInput)
		}
		att.Grounds = rejection.Grounds
		att.Comment = rejection.Comment
		core.AttestationHistory = appendHistory(core.AttestationHistory, att)
		return &Rejected{
			Core:        core,
			Schedule:    pending.Schedule,
			Outcome:     pending.Outcome,
			Simulation:  pending.Simulation,
			Attestation: att,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown attestation decision %q", generic.ErrInvalidRevisionInput, decision)
}

func appendHistory(h []Attestation, a Attestation) []Attestation {
	out := make([]Attestation, 0, len(h)+1)
	out = append(out, h...)
	return append(out, a)
}
