package generic

import "fmt"

// =============================================================================
// PERIOD - Closed date interval [Start, End]
// =============================================================================

// Period is a closed interval of days.
// Benefit decisions and revisions always cover whole calendar months:
//   - Start on the 1st of a month
//   - End on the last day of a month
//
// Use NewMonthPeriod when that constraint must hold.
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod validates that End is not before Start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, end, start)
	}
	return Period{Start: start, End: end}, nil
}

// NewMonthPeriod validates that the period covers whole calendar months.
func NewMonthPeriod(start, end TimePoint) (Period, error) {
	p, err := NewPeriod(start, end)
	if err != nil {
		return Period{}, err
	}
	if !start.IsFirstOfMonth() || !end.IsLastOfMonth() {
		return Period{}, fmt.Errorf("%w: %s must start on the first and end on the last day of a month", ErrInvalidPeriod, p)
	}
	return p, nil
}

// MonthOf returns the calendar month containing t.
func MonthOf(t TimePoint) Period {
	return Period{Start: StartOfMonth(t.Year(), t.Month()), End: EndOfMonth(t.Year(), t.Month())}
}

// Months returns a period spanning n months from the month of start.
func Months(start TimePoint, n int) Period {
	first := StartOfMonth(start.Year(), start.Month())
	last := first.AddMonths(n - 1)
	return Period{Start: first, End: EndOfMonth(last.Year(), last.Month())}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsPeriod returns true if other lies entirely within p.
func (p Period) ContainsPeriod(other Period) bool {
	return p.Contains(other.Start) && p.Contains(other.End)
}

func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Intersect returns the overlap of p and other; ok is false when they are disjoint.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	return Period{Start: start, End: end}, true
}

// Adjoins returns true if other starts the day after p ends.
func (p Period) Adjoins(other Period) bool {
	return p.End.AddDays(1).Equal(other.Start)
}

func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// MonthList returns every calendar month touched by the period, in order.
func (p Period) MonthList() []Period {
	var months []Period
	current := StartOfMonth(p.Start.Year(), p.Start.Month())
	for current.BeforeOrEqual(p.End) {
		months = append(months, MonthOf(current))
		current = current.AddMonths(1)
	}
	return months
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
