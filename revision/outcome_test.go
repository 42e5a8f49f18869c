package revision_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/revision"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		schedule    *calculation.Schedule
		current     []benefit.MonthlyLine
		wantClass   benefit.Outcome
		unsupported []revision.UnsupportedReason
	}{
		{
			name:      "same amounts is no change",
			schedule:  schedule(sub(time.January, 12, 24515)),
			current:   currentLines(24515),
			wantClass: benefit.OutcomeNoChange,
		},
		{
			name:      "changed amount is granted",
			schedule:  schedule(sub(time.January, 6, 24515), sub(time.July, 6, 19515)),
			current:   currentLines(24515),
			wantClass: benefit.OutcomeGranted,
		},
		{
			name:      "bootstrap without current lines is granted",
			schedule:  schedule(sub(time.January, 12, 24515)),
			wantClass: benefit.OutcomeGranted,
		},
		{
			name:      "stop from first month on one aspect",
			schedule:  schedule(sub(time.January, 12, 0, calculation.StopStayAbroad)),
			current:   currentLines(24515),
			wantClass: benefit.OutcomeStopped,
		},
		{
			name:        "stop from a later month",
			schedule:    schedule(sub(time.January, 3, 24515), sub(time.April, 9, 0, calculation.StopWealth)),
			current:     currentLines(24515),
			wantClass:   benefit.OutcomeStopped,
			unsupported: []revision.UnsupportedReason{revision.UnsupportedStopNotFromFirstMonth},
		},
		{
			name:        "stop on two aspects",
			schedule:    schedule(sub(time.January, 12, 0, calculation.StopWealth, calculation.StopDisability)),
			current:     currentLines(24515),
			wantClass:   benefit.OutcomeStopped,
			unsupported: []revision.UnsupportedReason{revision.UnsupportedStopOnMultipleAspects},
		},
		{
			name:      "income reasons count as one aspect",
			schedule:  schedule(sub(time.January, 6, 0, calculation.StopIncomeTooHigh), sub(time.July, 6, 0, calculation.StopBelowMinimum)),
			current:   currentLines(24515),
			wantClass: benefit.OutcomeStopped,
		},
		{
			name:      "stop then resume",
			schedule:  schedule(sub(time.January, 6, 0, calculation.StopStayAbroad), sub(time.July, 6, 24515)),
			current:   currentLines(24515),
			wantClass: benefit.OutcomeStopped,
			unsupported: []revision.UnsupportedReason{
				revision.UnsupportedPartialStop,
			},
		},
		{
			name:      "stop with changed amount before it",
			schedule:  schedule(sub(time.January, 2, 20000), sub(time.March, 10, 0, calculation.StopDisability)),
			current:   currentLines(24515),
			wantClass: benefit.OutcomeStopped,
			unsupported: []revision.UnsupportedReason{
				revision.UnsupportedStopNotFromFirstMonth,
				revision.UnsupportedStopWithAmountChange,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := revision.Classify(tt.schedule, tt.current)

			assert.Equal(t, tt.wantClass, got.Class)
			assert.ElementsMatch(t, tt.unsupported, got.Unsupported)
			assert.Equal(t, len(tt.unsupported) == 0, got.Supported())
		})
	}
}
