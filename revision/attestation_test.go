package revision_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

func TestSubmitForApproval_CaseworkerCannotAttestOwnWork(t *testing.T) {
	// GIVEN: a revision pending attestation, prepared by the caseworker
	pending := newPending(t)

	// WHEN: the same caseworker approves it
	_, err := revision.SubmitForApproval(pending, caseworker, revision.DecisionApproved, nil, t0)

	// THEN: maker-checker refuses
	assert.ErrorIs(t, err, generic.ErrApproverAndCaseworkerMustDiffer)
	assert.True(t, generic.IsGovernanceError(err))
}

func TestSubmitForApproval_OnlyFromPending(t *testing.T) {
	_, err := revision.SubmitForApproval(newCreated(t), attestant, revision.DecisionApproved, nil, t0)
	assertIllegal(t, err, revision.StatusCreated, revision.StatusApproved)

	_, err = revision.SubmitForApproval(newApproved(t), attestant, revision.DecisionRejected, nil, t0)
	assertIllegal(t, err, revision.StatusApproved, revision.StatusRejected)
}

func TestSubmitForApproval_RejectionNeedsGroundsAndComment(t *testing.T) {
	tests := []struct {
		name      string
		rejection *revision.Rejection
	}{
		{"no rejection", nil},
		{"unknown grounds", &revision.Rejection{Grounds: "bad_mood", Comment: "x"}},
		{"blank comment", &revision.Rejection{Grounds: revision.RejectOther, Comment: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := revision.SubmitForApproval(newPending(t), attestant, revision.DecisionRejected, tt.rejection, t0)

			assert.ErrorIs(t, err, generic.ErrInvalidRevisionInput)
		})
	}
}

func TestSubmitForApproval_HistorySurvivesRejectAndResubmit(t *testing.T) {
	// GIVEN: a revision rejected once
	rejected := newRejected(t)

	// WHEN: the caseworker recalculates, simulates, resends and it is approved
	s := schedule(sub(time.January, 12, 21000))
	calc, err := revision.Calculate(rejected, caseworker, s, revision.Classify(s, currentLines(24515)), t0)
	require.NoError(t, err)
	sim, err := revision.Simulate(calc, caseworker, &simulation.Preview{ScheduleChecksum: s.Checksum}, t0)
	require.NoError(t, err)
	pending, err := revision.SendToAttestation(sim, caseworker, t0)
	require.NoError(t, err)
	approved, err := revision.SubmitForApproval(pending, attestant, revision.DecisionApproved, nil, t0.Add(time.Hour))
	require.NoError(t, err)

	// THEN: both attestations are on record, oldest first
	history := approved.Base().AttestationHistory
	require.Len(t, history, 2)
	assert.Equal(t, revision.DecisionRejected, history[0].Decision)
	assert.Equal(t, revision.RejectCalculationWrong, history[0].Grounds)
	assert.Equal(t, revision.DecisionApproved, history[1].Decision)
	assert.Len(t, rejected.AttestationHistory, 1, "earlier value is untouched")
}

func TestRequireDistinctActors(t *testing.T) {
	assert.NoError(t, revision.RequireDistinctActors(caseworker, attestant))
	assert.ErrorIs(t, revision.RequireDistinctActors(caseworker, caseworker), generic.ErrApproverAndCaseworkerMustDiffer)
	assert.ErrorIs(t, revision.RequireDistinctActors(caseworker, ""), generic.ErrApproverAndCaseworkerMustDiffer)
}
