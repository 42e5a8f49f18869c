package stubs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/client/stubs"
	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

func newTestDocuments() *stubs.Documents {
	return stubs.NewDocuments(&generic.FixedClock{At: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
}

func TestDocuments_AdvanceNoticeIsIdempotentAndDispatchable(t *testing.T) {
	d := newTestDocuments()
	req := execution.NoticeRequest{RevisionID: "rev-1", CaseID: "case-1", Period: jan, FreeText: "heads up"}

	first, err := d.GenerateAdvanceNotice(ctx, req)
	require.NoError(t, err)
	again, err := d.GenerateAdvanceNotice(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	require.NoError(t, d.Dispatch(ctx, first.ID))
	assert.Equal(t, 1, d.Dispatched(first.ID))
	got, ok := d.Notice(first.ID)
	require.True(t, ok)
	assert.Equal(t, "heads up", got.FreeText)
	assert.Zero(t, d.Generated(), "notices are not decision documents")

	assert.ErrorIs(t, d.Dispatch(ctx, "doc-unknown"), generic.ErrDocumentDispatchFailed)
}

func TestDocuments_DraftRendersWithoutStoring(t *testing.T) {
	d := newTestDocuments()

	draft, err := d.DraftDecisionDocument(ctx, execution.DocumentRequest{
		RevisionID:  "rev-1",
		CaseID:      "case-1",
		Beneficiary: execution.Person{ID: "12345678901", Name: "Kari"},
		Caseworker:  execution.Person{ID: "Z1", Name: "Ola"},
		Outcome:     benefit.OutcomeGranted,
		Period:      jan,
		Lines:       []benefit.MonthlyLine{{Month: jan, Amount: generic.NOK(19515)}},
		FreeText:    "Your income went up.",
	})

	require.NoError(t, err)
	text := string(draft)
	assert.Contains(t, text, "Kari (12345678901)")
	assert.Contains(t, text, "2024-01  19515")
	assert.Contains(t, text, "Your income went up.")
	assert.NotContains(t, text, "Attestant:")
	assert.Zero(t, d.Generated())

	d.FailGenerate(errors.New("renderer down"))
	_, err = d.DraftDecisionDocument(ctx, execution.DocumentRequest{RevisionID: "rev-1"})
	assert.ErrorIs(t, err, generic.ErrDocumentGenerationFailed)
}
