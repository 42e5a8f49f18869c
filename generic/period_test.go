package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func TestNewMonthPeriod(t *testing.T) {
	tests := []struct {
		name       string
		start, end generic.TimePoint
		ok         bool
	}{
		{"one month", date(2024, 2, 1), date(2024, 2, 29), true},
		{"several months", date(2024, 1, 1), date(2024, 12, 31), true},
		{"mid-month start", date(2024, 2, 15), date(2024, 3, 31), false},
		{"mid-month end", date(2024, 2, 1), date(2024, 3, 30), false},
		{"end before start", date(2024, 3, 1), date(2024, 1, 31), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generic.NewMonthPeriod(tt.start, tt.end)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
			}
		})
	}
}

func TestMonths(t *testing.T) {
	// GIVEN: A start in the middle of November
	p := generic.Months(date(2023, 11, 20), 3)

	// THEN: The period is snapped to whole months across the year boundary
	assert.Equal(t, "2023-11-01", p.Start.String())
	assert.Equal(t, "2024-01-31", p.End.String())
	require.Len(t, p.MonthList(), 3)
	assert.Equal(t, 30+31+31, p.Days())
}

func TestPeriodRelations(t *testing.T) {
	q1 := generic.Months(date(2024, 1, 1), 3)
	q2 := generic.Months(date(2024, 4, 1), 3)
	febToMay := generic.Months(date(2024, 2, 1), 4)

	assert.False(t, q1.Overlaps(q2))
	assert.True(t, q1.Adjoins(q2))
	assert.True(t, q1.Overlaps(febToMay))
	assert.False(t, q1.ContainsPeriod(febToMay))
	assert.True(t, febToMay.ContainsPeriod(generic.MonthOf(date(2024, 3, 17))))

	in, ok := q1.Intersect(febToMay)
	require.True(t, ok)
	assert.True(t, in.Equal(generic.Months(date(2024, 2, 1), 2)))

	_, ok = q1.Intersect(generic.Months(date(2024, 6, 1), 1))
	assert.False(t, ok)
}

func TestTimePoint_TextRoundTrip(t *testing.T) {
	var tp generic.TimePoint
	require.NoError(t, tp.UnmarshalText([]byte("2024-02-29")))
	assert.True(t, tp.IsLastOfMonth())

	b, err := tp.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", string(b))

	assert.Error(t, tp.UnmarshalText([]byte("29.02.2024")))
}

func TestMoney(t *testing.T) {
	var m generic.Money
	require.NoError(t, m.UnmarshalText([]byte("24515.133")))
	assert.Equal(t, "24515", m.Round().String())
	assert.True(t, m.Sub(generic.NOK(24516)).IsNegative())
	assert.True(t, generic.NOK(5).Add(generic.NOK(-5)).IsZero())
}
