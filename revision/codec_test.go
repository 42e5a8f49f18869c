package revision_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/revision"
)

func TestCodec_PreservesStateAndData(t *testing.T) {
	executed := revision.RecordSideEffect(newExecuted(t), revision.StepDocument, "doc-1", t0.Add(time.Minute))

	data, err := revision.Marshal(executed)
	require.NoError(t, err)
	back, err := revision.Unmarshal(data)
	require.NoError(t, err)

	got, ok := back.(*revision.Executed)
	require.True(t, ok, "decoded as %T", back)
	assert.Equal(t, executed.Version, got.Version)
	assert.Equal(t, executed.Schedule.Checksum, got.Schedule.Checksum)
	assert.True(t, executed.Period.Equal(got.Period))
	assert.Equal(t, executed.Outcome, got.Outcome)
	assert.Equal(t, executed.Execution.DecisionID, got.Execution.DecisionID)
	assert.True(t, got.SideEffects.Done(revision.StepDocument))
	assert.False(t, got.SideEffects.Done(revision.StepDispatch))
	assert.Len(t, got.AttestationHistory, 1)
}

func TestCodec_EveryStateDecodesToItsType(t *testing.T) {
	for _, r := range []revision.Revision{
		newCreated(t), newPending(t), newApproved(t), newRejected(t), newTerminated(t),
	} {
		data, err := revision.Marshal(r)
		require.NoError(t, err)

		back, err := revision.Unmarshal(data)

		require.NoError(t, err)
		assert.Equal(t, r.Status(), back.Status())
		assert.Equal(t, r.Base().ID, back.Base().ID)
	}
}

func TestCodec_RejectsIncompleteState(t *testing.T) {
	_, err := revision.Unmarshal([]byte(`{"status":"approved","core":{"id":"rev-1"}}`))
	assert.Error(t, err)

	_, err = revision.Unmarshal([]byte(`{"status":"limbo","core":{"id":"rev-1"}}`))
	assert.Error(t, err)
}
