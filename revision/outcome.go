package revision

import (
	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
)

// UnsupportedReason names why an outcome cannot be decided as one act.
type UnsupportedReason string

const (
	UnsupportedStopNotFromFirstMonth UnsupportedReason = "stop_not_from_first_month"
	UnsupportedStopOnMultipleAspects UnsupportedReason = "stop_on_multiple_aspects"
	UnsupportedStopWithAmountChange  UnsupportedReason = "stop_combined_with_amount_change"
	UnsupportedPartialStop           UnsupportedReason = "partial_stop"
)

// Outcome is the classified result of a calculation.
type Outcome struct {
	Class       benefit.Outcome     `json:"class"`
	Unsupported []UnsupportedReason `json:"unsupported,omitempty"`
}

func (o Outcome) Supported() bool { return len(o.Unsupported) == 0 }

// Classify compares a schedule with the lines currently effective for its
// period. current may be empty for a bootstrap revision.
//
//	no stopped month, nothing differs  -> no_change
//	no stopped month, something differs -> granted
//	any stopped month                   -> stopped, possibly unsupported
func Classify(s *calculation.Schedule, current []benefit.MonthlyLine) Outcome {
	byMonth := make(map[string]benefit.MonthlyLine, len(current))
	for _, l := range current {
		byMonth[l.Month.Start.String()] = l
	}
	changed := func(m calculation.MonthResult) bool {
		cur, ok := byMonth[m.Month.Start.String()]
		return !ok || cur.Stopped != m.Stopped() || !cur.Amount.Equal(m.Amount)
	}

	months := s.Months()
	var stopped []calculation.MonthResult
	anyChange := false
	for _, m := range months {
		if m.Stopped() {
			stopped = append(stopped, m)
		}
		if changed(m) {
			anyChange = true
		}
	}

	if len(stopped) == 0 {
		if anyChange {
			return Outcome{Class: benefit.OutcomeGranted}
		}
		return Outcome{Class: benefit.OutcomeNoChange}
	}

	out := Outcome{Class: benefit.OutcomeStopped}
	if !months[0].Stopped() {
		out.Unsupported = append(out.Unsupported, UnsupportedStopNotFromFirstMonth)
	}

	aspects := map[benefit.Aspect]struct{}{}
	for _, m := range stopped {
		for _, r := range m.StopReasons {
			aspects[r.Aspect()] = struct{}{}
		}
	}
	if len(aspects) > 1 {
		out.Unsupported = append(out.Unsupported, UnsupportedStopOnMultipleAspects)
	}

	// Once stopped, every later month must stay stopped.
	seenStop := false
	for _, m := range months {
		if m.Stopped() {
			seenStop = true
			continue
		}
		if seenStop {
			out.Unsupported = append(out.Unsupported, UnsupportedPartialStop)
			break
		}
	}

	for _, m := range months {
		if !m.Stopped() && changed(m) {
			out.Unsupported = append(out.Unsupported, UnsupportedStopWithAmountChange)
			break
		}
	}
	return out
}
