package benefit

import (
	"time"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

// Outcome is the administrative result a decision records.
type Outcome string

const (
	OutcomeGranted  Outcome = "granted"   // benefit continues, possibly with new amounts
	OutcomeStopped  Outcome = "stopped"   // benefit stops for the whole period
	OutcomeNoChange Outcome = "no_change" // reviewed, nothing changes
)

// MonthlyLine is the amount a decision fixes for one calendar month.
type MonthlyLine struct {
	Month   generic.Period `json:"month"`
	Amount  generic.Money  `json:"amount"`
	Stopped bool           `json:"stopped"`
}

// Decision ("vedtak") is immutable once appended to a case.
type Decision struct {
	ID         generic.DecisionID `json:"id"`
	CaseID     generic.CaseID     `json:"case_id"`
	Period     generic.Period     `json:"period"`
	Outcome    Outcome            `json:"outcome"`
	Lines      []MonthlyLine      `json:"lines"`
	Grounds    Grounds            `json:"grounds"`
	RevisionID generic.RevisionID `json:"revision_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// LineFor returns the line for the month containing t.
func (d Decision) LineFor(t generic.TimePoint) (MonthlyLine, bool) {
	for _, l := range d.Lines {
		if l.Month.Contains(t) {
			return l, true
		}
	}
	return MonthlyLine{}, false
}
