package revision_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
)

func lowered(t *testing.T) *revision.Simulated {
	t.Helper()
	return newSimulated(t, schedule(sub(time.January, 12, 20000)))
}

func sent(t *testing.T) *revision.Simulated {
	t.Helper()
	r, err := revision.AdvanceNoticeSent(lowered(t), caseworker, "notice-1", t0)
	require.NoError(t, err)
	return r
}

func assertNoticeIllegal(t *testing.T, err error, from, to string) {
	t.Helper()
	var ist *generic.IllegalStateTransitionError
	require.True(t, errors.As(err, &ist), "expected IllegalStateTransitionError, got %v", err)
	assert.Equal(t, "notice "+from, ist.From)
	assert.Equal(t, "notice "+to, ist.To)
}

func TestSendToAttestation_RequiresAdvanceNoticeDecision(t *testing.T) {
	// GIVEN: a simulated revision lowering the benefit, with no notice decision
	sim := lowered(t)

	// WHEN: it is sent to attestation
	_, err := revision.SendToAttestation(sim, caseworker, t0)

	// THEN: it is refused as something the caseworker must fix
	assert.ErrorIs(t, err, generic.ErrAdvanceNoticeUndecided)
	assert.True(t, generic.IsInputError(err))
}

func TestAdvanceNotice_SentThenContinued(t *testing.T) {
	noticed := sent(t)
	assert.Equal(t, revision.StatusSimulated, noticed.Status())
	require.NotNil(t, noticed.AdvanceNotice)
	assert.Equal(t, revision.NoticeSent, noticed.AdvanceNotice.State)

	// WHEN: sent to attestation before the beneficiary could answer
	_, err := revision.SendToAttestation(noticed, caseworker, t0)
	assert.ErrorIs(t, err, generic.ErrAdvanceNoticeUndecided)

	// AND: the caseworker continues with the same grounds
	resolved, err := revision.ResolveAdvanceNotice(noticed, caseworker, revision.NoticeContinued, "no answer within the deadline", t0)
	require.NoError(t, err)
	pending, err := revision.SendToAttestation(resolved, caseworker, t0)

	// THEN: attestation goes ahead and the notice letter is kept
	require.NoError(t, err)
	assert.Equal(t, revision.NoticeContinued, pending.AdvanceNotice.State)
	assert.Equal(t, generic.DocumentID("notice-1"), pending.AdvanceNotice.DocumentID)
	assert.Equal(t, noticed.Version+2, pending.Version)
}

func TestAdvanceNotice_IllegalTransitions(t *testing.T) {
	t.Run("skip after sending", func(t *testing.T) {
		_, err := revision.SkipAdvanceNotice(sent(t), caseworker, t0)
		assertNoticeIllegal(t, err, "sent", "not_required")
	})

	t.Run("send twice", func(t *testing.T) {
		_, err := revision.AdvanceNoticeSent(sent(t), caseworker, "notice-2", t0)
		assertNoticeIllegal(t, err, "sent", "sent")
	})

	t.Run("resolve without a notice", func(t *testing.T) {
		_, err := revision.ResolveAdvanceNotice(lowered(t), caseworker, revision.NoticeContinued, "x", t0)
		assertNoticeIllegal(t, err, "none", "continued")
	})

	t.Run("resolve twice", func(t *testing.T) {
		resolved, err := revision.ResolveAdvanceNotice(sent(t), caseworker, revision.NoticeGroundsChanged, "new payslips", t0)
		require.NoError(t, err)
		_, err = revision.ResolveAdvanceNotice(resolved, caseworker, revision.NoticeContinued, "x", t0)
		assertNoticeIllegal(t, err, "grounds_changed", "continued")
	})

	t.Run("skip may become sent", func(t *testing.T) {
		skipped := settled(t, lowered(t))
		r, err := revision.AdvanceNoticeSent(skipped, caseworker, "notice-1", t0)
		require.NoError(t, err)
		assert.Equal(t, revision.NoticeSent, r.AdvanceNotice.State)
	})

	t.Run("only simulated revisions", func(t *testing.T) {
		_, err := revision.SkipAdvanceNotice(newCreated(t), caseworker, t0)
		assertIllegal(t, err, revision.StatusCreated, revision.StatusSimulated)
		_, err = revision.AdvanceNoticeSent(newPending(t), caseworker, "notice-1", t0)
		assertIllegal(t, err, revision.StatusPendingAttestation, revision.StatusSimulated)
	})
}

func TestAdvanceNotice_Validation(t *testing.T) {
	_, err := revision.ResolveAdvanceNotice(sent(t), caseworker, revision.NoticeSent, "x", t0)
	assert.ErrorIs(t, err, generic.ErrInvalidRevisionInput)

	_, err = revision.ResolveAdvanceNotice(sent(t), caseworker, revision.NoticeContinued, " ", t0)
	assert.ErrorIs(t, err, generic.ErrInvalidRevisionInput)

	_, err = revision.AdvanceNoticeSent(lowered(t), caseworker, "", t0)
	assert.ErrorIs(t, err, generic.ErrInvalidRevisionInput)

	_, err = revision.SkipAdvanceNotice(lowered(t), stranger, t0)
	assert.ErrorIs(t, err, generic.ErrNotResponsibleCaseworker)
}

func TestAdvanceNotice_AbandonedBlocksAttestation(t *testing.T) {
	abandoned, err := revision.ResolveAdvanceNotice(sent(t), caseworker, revision.NoticeAbandoned, "beneficiary documented no change", t0)
	require.NoError(t, err)

	_, err = revision.SendToAttestation(abandoned, caseworker, t0)
	assert.ErrorIs(t, err, generic.ErrAdvanceNoticeUndecided)

	term, err := revision.Terminate(abandoned, caseworker, "beneficiary documented no change", t0)
	require.NoError(t, err)
	assert.Equal(t, revision.NoticeAbandoned, term.AdvanceNotice.State)
}

func TestAdvanceNotice_UnsupportedOutcomeIsNotNotified(t *testing.T) {
	sim := newSimulated(t, schedule(
		sub(time.January, 3, 24515),
		sub(time.April, 9, 0, calculation.StopDisability),
	))

	_, err := revision.SkipAdvanceNotice(sim, caseworker, t0)

	var uo *generic.UnsupportedOutcomeError
	assert.True(t, errors.As(err, &uo))
}

func TestAdvanceNotice_SurvivesEdit(t *testing.T) {
	why := "payslips arrived"

	edited, err := revision.Edit(sent(t), caseworker, revision.Changes{Justification: &why}, t0)

	require.NoError(t, err)
	require.NotNil(t, edited.AdvanceNotice)
	assert.Equal(t, revision.NoticeSent, edited.AdvanceNotice.State)
}

func TestNew_RegulationNeedsNoAdvanceNotice(t *testing.T) {
	r, err := revision.New(revision.NewParams{
		ID: "rev-1", CaseID: "case-1", Period: year2024, Caseworker: caseworker,
		Cause: revision.CauseBaseAmountRegulation, Justification: "base amount regulated in May",
		Aspects: benefit.AspectSet{benefit.AspectIncome},
	})

	require.NoError(t, err)
	require.NotNil(t, r.AdvanceNotice)
	assert.Equal(t, revision.NoticeNotRequired, r.AdvanceNotice.State)
	assert.Equal(t, generic.SystemIdent, r.AdvanceNotice.DecidedBy)
}
