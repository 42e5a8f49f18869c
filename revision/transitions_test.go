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
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	caseworker generic.NavIdent = "Z111111"
	attestant  generic.NavIdent = "Z222222"
	stranger   generic.NavIdent = "Z999999"
)

var (
	t0       = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	year2024 = generic.Months(generic.NewTimePoint(2024, time.January, 1), 12)
)

func sub(from time.Month, n int, amount int64, reasons ...calculation.StopReason) calculation.SubPeriod {
	return calculation.SubPeriod{
		Period:      generic.Months(generic.NewTimePoint(2024, from, 1), n),
		Amount:      generic.NOK(amount),
		StopReasons: reasons,
	}
}

func schedule(subs ...calculation.SubPeriod) *calculation.Schedule {
	s := &calculation.Schedule{CaseID: "case-1", Period: year2024, SubPeriods: subs}
	s.Checksum = calculation.ComputeChecksum(s)
	return s
}

func currentLines(amount int64) []benefit.MonthlyLine {
	var out []benefit.MonthlyLine
	for _, m := range year2024.MonthList() {
		out = append(out, benefit.MonthlyLine{Month: m, Amount: generic.NOK(amount)})
	}
	return out
}

func newCreated(t *testing.T) *revision.Created {
	t.Helper()
	basis := generic.DecisionID("d1")
	r, err := revision.New(revision.NewParams{
		ID:            "rev-1",
		CaseID:        "case-1",
		Beneficiary:   "12345678901",
		Period:        year2024,
		Basis:         &basis,
		Caseworker:    caseworker,
		Cause:         revision.CauseNewInformation,
		Justification: "new income reported",
		Aspects:       benefit.AspectSet{benefit.AspectIncome},
		At:            t0,
	})
	require.NoError(t, err)
	return r
}

func newCalculated(t *testing.T, s *calculation.Schedule) *revision.Calculated {
	t.Helper()
	outcome := revision.Classify(s, currentLines(24515))
	r, err := revision.Calculate(newCreated(t), caseworker, s, outcome, t0)
	require.NoError(t, err)
	return r
}

func newSimulated(t *testing.T, s *calculation.Schedule) *revision.Simulated {
	t.Helper()
	r, err := revision.Simulate(newCalculated(t, s), caseworker, &simulation.Preview{ScheduleChecksum: s.Checksum}, t0)
	require.NoError(t, err)
	return r
}

// settled records that no advance notice is sent.
func settled(t *testing.T, sim *revision.Simulated) *revision.Simulated {
	t.Helper()
	r, err := revision.SkipAdvanceNotice(sim, caseworker, t0)
	require.NoError(t, err)
	return r
}

func newPending(t *testing.T) *revision.PendingAttestation {
	t.Helper()
	r, err := revision.SendToAttestation(settled(t, newSimulated(t, schedule(sub(time.January, 12, 20000)))), caseworker, t0)
	require.NoError(t, err)
	return r
}

func newApproved(t *testing.T) *revision.Approved {
	t.Helper()
	r, err := revision.SubmitForApproval(newPending(t), attestant, revision.DecisionApproved, nil, t0)
	require.NoError(t, err)
	return r.(*revision.Approved)
}

func newRejected(t *testing.T) *revision.Rejected {
	t.Helper()
	r, err := revision.SubmitForApproval(newPending(t), attestant, revision.DecisionRejected,
		&revision.Rejection{Grounds: revision.RejectCalculationWrong, Comment: "income is annual, not monthly"}, t0)
	require.NoError(t, err)
	return r.(*revision.Rejected)
}

func newExecuted(t *testing.T) *revision.Executed {
	t.Helper()
	r, err := revision.MarkExecuted(newApproved(t), revision.ExecutionRecord{DecisionID: "d2", ExecutedBy: attestant, ExecutedAt: t0})
	require.NoError(t, err)
	return r
}

func newTerminated(t *testing.T) *revision.Terminated {
	t.Helper()
	r, err := revision.Terminate(newCreated(t), caseworker, "opened by mistake", t0)
	require.NoError(t, err)
	return r
}

func assertIllegal(t *testing.T, err error, from, to revision.Status) {
	t.Helper()
	var ist *generic.IllegalStateTransitionError
	require.True(t, errors.As(err, &ist), "expected IllegalStateTransitionError, got %v", err)
	assert.Equal(t, string(from), ist.From)
	assert.Equal(t, string(to), ist.To)
}

// =============================================================================
// CREATE
// =============================================================================

func TestNew_StartsCreatedAtVersionOne(t *testing.T) {
	r := newCreated(t)

	assert.Equal(t, revision.StatusCreated, r.Status())
	assert.Equal(t, 1, r.Version)
	assert.Nil(t, revision.ScheduleOf(r))
}

func TestNew_Validation(t *testing.T) {
	valid := func() revision.NewParams {
		return revision.NewParams{
			ID: "rev-1", CaseID: "case-1", Period: year2024, Caseworker: caseworker,
			Cause: revision.CauseNewInformation, Justification: "x",
		}
	}
	tests := []struct {
		name   string
		mutate func(*revision.NewParams)
		want   error
	}{
		{"period not whole months", func(p *revision.NewParams) {
			p.Period = generic.Period{Start: generic.NewTimePoint(2024, 1, 15), End: generic.NewTimePoint(2024, 3, 31)}
		}, generic.ErrInvalidPeriod},
		{"end before start", func(p *revision.NewParams) {
			p.Period = generic.Period{Start: generic.NewTimePoint(2024, 3, 1), End: generic.NewTimePoint(2024, 1, 31)}
		}, generic.ErrInvalidPeriod},
		{"no caseworker", func(p *revision.NewParams) { p.Caseworker = "" }, generic.ErrInvalidRevisionInput},
		{"unknown cause", func(p *revision.NewParams) { p.Cause = "whim" }, generic.ErrInvalidRevisionInput},
		{"blank justification", func(p *revision.NewParams) { p.Justification = "  " }, generic.ErrInvalidRevisionInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)

			_, err := revision.New(p)

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, generic.IsInputError(err))
		})
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestLifecycle_EveryTransitionBumpsVersion(t *testing.T) {
	// GIVEN: a fresh revision
	// WHEN: it walks Created -> Calculated -> Simulated -> notice skipped -> Pending -> Approved -> Executed
	// THEN: the version goes up by exactly one per step
	s := schedule(sub(time.January, 12, 20000))
	created := newCreated(t)

	calc, err := revision.Calculate(created, caseworker, s, revision.Classify(s, currentLines(24515)), t0)
	require.NoError(t, err)
	sim, err := revision.Simulate(calc, caseworker, &simulation.Preview{ScheduleChecksum: s.Checksum}, t0)
	require.NoError(t, err)
	noticed, err := revision.SkipAdvanceNotice(sim, caseworker, t0)
	require.NoError(t, err)
	pending, err := revision.SendToAttestation(noticed, caseworker, t0)
	require.NoError(t, err)
	approved, err := revision.SubmitForApproval(pending, attestant, revision.DecisionApproved, nil, t0)
	require.NoError(t, err)
	executed, err := revision.MarkExecuted(approved, revision.ExecutionRecord{DecisionID: "d2", ExecutedBy: attestant, ExecutedAt: t0})
	require.NoError(t, err)

	versions := []int{
		created.Version, calc.Version, sim.Version, noticed.Version, pending.Version,
		approved.Base().Version, executed.Version,
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, versions)
	assert.Equal(t, revision.StatusExecuted, executed.Status())
	assert.Equal(t, benefit.OutcomeGranted, executed.Outcome.Class)
	assert.Len(t, executed.AttestationHistory, 1)
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit_DiscardsDownstreamData(t *testing.T) {
	sim := newSimulated(t, schedule(sub(time.January, 12, 20000)))
	aspects := benefit.AspectSet{benefit.AspectIncome, benefit.AspectWealth}

	edited, err := revision.Edit(sim, caseworker, revision.Changes{Aspects: &aspects}, t0)

	require.NoError(t, err)
	assert.Equal(t, revision.StatusCreated, edited.Status())
	assert.Nil(t, revision.ScheduleOf(edited))
	assert.Nil(t, revision.SimulationOf(edited))
	assert.Equal(t, sim.Version+1, edited.Version)
	assert.True(t, edited.Aspects.Equal(aspects))
}

func TestEdit_FromRejectedKeepsAttestationHistory(t *testing.T) {
	rejected := newRejected(t)
	why := "corrected income"

	edited, err := revision.Edit(rejected, caseworker, revision.Changes{Justification: &why}, t0)

	require.NoError(t, err)
	assert.Nil(t, revision.AttestationOf(edited))
	require.Len(t, edited.AttestationHistory, 1)
	assert.Equal(t, revision.DecisionRejected, edited.AttestationHistory[0].Decision)
}

func TestEdit_IllegalStates(t *testing.T) {
	tests := []struct {
		name string
		rev  func(t *testing.T) revision.Revision
	}{
		{"pending attestation", func(t *testing.T) revision.Revision { return newPending(t) }},
		{"approved", func(t *testing.T) revision.Revision { return newApproved(t) }},
		{"executed", func(t *testing.T) revision.Revision { return newExecuted(t) }},
		{"terminated", func(t *testing.T) revision.Revision { return newTerminated(t) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rev(t)

			_, err := revision.Edit(r, caseworker, revision.Changes{}, t0)

			assertIllegal(t, err, r.Status(), revision.StatusCreated)
			assert.True(t, generic.IsStateError(err))
		})
	}
}

func TestEdit_InvalidPeriodLeavesInputError(t *testing.T) {
	r := newCreated(t)
	bad := revision.PeriodChange{Period: generic.Period{Start: generic.NewTimePoint(2024, 2, 2), End: generic.NewTimePoint(2024, 5, 31)}}

	_, err := revision.Edit(r, caseworker, revision.Changes{Period: &bad}, t0)

	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// CALCULATE / SIMULATE
// =============================================================================

func TestCalculate_MissingAspects(t *testing.T) {
	r, err := revision.New(revision.NewParams{
		ID: "rev-1", CaseID: "case-1", Period: year2024, Caseworker: caseworker,
		Cause: revision.CauseNewInformation, Justification: "x",
	})
	require.NoError(t, err)

	err = revision.CanCalculate(r, caseworker)

	assert.ErrorIs(t, err, generic.ErrMissingRevisionAspects)
}

func TestCalculate_AllowedAfterRejection(t *testing.T) {
	s := schedule(sub(time.January, 12, 21000))

	calc, err := revision.Calculate(newRejected(t), caseworker, s, revision.Classify(s, currentLines(24515)), t0)

	require.NoError(t, err)
	assert.Equal(t, s.Checksum, calc.Schedule.Checksum)
	assert.Len(t, calc.AttestationHistory, 1)
}

func TestCalculate_ScheduleForOtherPeriodRejected(t *testing.T) {
	s := &calculation.Schedule{CaseID: "case-1", Period: generic.Months(generic.NewTimePoint(2024, 6, 1), 3)}

	_, err := revision.Calculate(newCreated(t), caseworker, s, revision.Outcome{}, t0)

	assert.ErrorIs(t, err, generic.ErrInvalidCalculationInput)
}

func TestSimulate_PreviewMustMatchSchedule(t *testing.T) {
	calc := newCalculated(t, schedule(sub(time.January, 12, 20000)))

	_, err := revision.Simulate(calc, caseworker, &simulation.Preview{ScheduleChecksum: "stale"}, t0)

	assert.ErrorIs(t, err, generic.ErrSimulationDrift)
}

func TestSimulate_OnlyFromCalculated(t *testing.T) {
	_, err := revision.Simulate(newCreated(t), caseworker, &simulation.Preview{}, t0)

	assertIllegal(t, err, revision.StatusCreated, revision.StatusSimulated)
}

// =============================================================================
// OWNERSHIP
// =============================================================================

func TestOnlyResponsibleCaseworkerMayAct(t *testing.T) {
	s := schedule(sub(time.January, 12, 20000))

	_, errEdit := revision.Edit(newCreated(t), stranger, revision.Changes{}, t0)
	errCalc := revision.CanCalculate(newCreated(t), stranger)
	_, errSim := revision.CanSimulate(newCalculated(t, s), stranger)
	_, errSend := revision.SendToAttestation(newSimulated(t, s), stranger, t0)
	_, errTerm := revision.Terminate(newCreated(t), stranger, "no", t0)

	for _, err := range []error{errEdit, errCalc, errSim, errSend, errTerm} {
		assert.ErrorIs(t, err, generic.ErrNotResponsibleCaseworker)
		assert.True(t, generic.IsGovernanceError(err))
	}
}

// =============================================================================
// SEND TO ATTESTATION
// =============================================================================

func TestSendToAttestation_UnsupportedOutcomeNamesEveryReason(t *testing.T) {
	// GIVEN: a schedule that pays Jan-Mar, stops Apr-Jun on two aspects, then pays again
	s := schedule(
		sub(time.January, 3, 24515),
		sub(time.April, 1, 0, calculation.StopDisability),
		sub(time.May, 2, 0, calculation.StopWealth),
		sub(time.July, 6, 21000),
	)
	sim := newSimulated(t, s)

	// WHEN: the caseworker sends it to attestation
	_, err := revision.SendToAttestation(sim, caseworker, t0)

	// THEN: it is refused with every reason
	var uo *generic.UnsupportedOutcomeError
	require.True(t, errors.As(err, &uo))
	assert.ElementsMatch(t, []string{
		string(revision.UnsupportedStopNotFromFirstMonth),
		string(revision.UnsupportedStopOnMultipleAspects),
		string(revision.UnsupportedPartialStop),
		string(revision.UnsupportedStopWithAmountChange),
	}, uo.Reasons)
	assert.True(t, generic.IsInputError(err))
}

func TestSendToAttestation_NoChangeIsSupported(t *testing.T) {
	sim := newSimulated(t, schedule(sub(time.January, 12, 24515)))

	pending, err := revision.SendToAttestation(sim, caseworker, t0)

	require.NoError(t, err)
	assert.Equal(t, benefit.OutcomeNoChange, pending.Outcome.Class)
}

// =============================================================================
// EXECUTE / SIDE EFFECTS
// =============================================================================

func TestMarkExecuted_OnlyFromApproved(t *testing.T) {
	rec := revision.ExecutionRecord{DecisionID: "d2", ExecutedBy: attestant, ExecutedAt: t0}

	for _, r := range []revision.Revision{newCreated(t), newPending(t), newRejected(t), newTerminated(t)} {
		_, err := revision.MarkExecuted(r, rec)
		assertIllegal(t, err, r.Status(), revision.StatusExecuted)
	}
}

func TestRecordSideEffect(t *testing.T) {
	e := newExecuted(t)
	require.Equal(t, revision.SideEffectSteps, e.SideEffects.Lacking())

	later := t0.Add(time.Minute)
	e2 := revision.RecordSideEffect(e, revision.StepDocument, "doc-1", later)
	e3 := revision.RecordSideEffect(e2, revision.StepDocument, "doc-2", later)

	assert.Equal(t, e.Version+1, e2.Version)
	assert.Same(t, e2, e3, "recording a completed step is a no-op")
	assert.Equal(t, generic.DocumentID("doc-1"), e3.SideEffects.DocumentID)
	assert.Equal(t, []revision.SideEffectStep{revision.StepDispatch, revision.StepTask}, e3.SideEffects.Lacking())
	assert.False(t, e.SideEffects.Done(revision.StepDocument), "original value is untouched")
}

// =============================================================================
// TERMINATE
// =============================================================================

func TestTerminate_FromEveryNonTerminalState(t *testing.T) {
	s := schedule(sub(time.January, 12, 20000))
	states := []revision.Revision{
		newCreated(t), newCalculated(t, s), newSimulated(t, s),
		newPending(t), newRejected(t),
	}
	for _, r := range states {
		t.Run(string(r.Status()), func(t *testing.T) {
			term, err := revision.Terminate(r, caseworker, "superseded", t0)

			require.NoError(t, err)
			assert.Equal(t, r.Status(), term.From)
			assert.Equal(t, r.Base().Version+1, term.Version)
		})
	}
}

func TestTerminate_ApprovedAndTerminalStatesRefused(t *testing.T) {
	// Approved only leads to Executed
	for _, r := range []revision.Revision{newApproved(t), newExecuted(t), newTerminated(t)} {
		_, err := revision.Terminate(r, caseworker, "again", t0)
		assertIllegal(t, err, r.Status(), revision.StatusTerminated)
	}
}

func TestTerminate_SystemMayTerminate(t *testing.T) {
	term, err := revision.Terminate(newPending(t), generic.SystemIdent, "case closed", t0)

	require.NoError(t, err)
	assert.Equal(t, generic.SystemIdent, term.Termination.By)
}

func TestTerminate_RequiresJustification(t *testing.T) {
	_, err := revision.Terminate(newCreated(t), caseworker, "", t0)

	assert.ErrorIs(t, err, generic.ErrInvalidRevisionInput)
}
