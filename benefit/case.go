/*
Package benefit holds the Case Aggregate: a beneficiary's case and its
timeline of decisions.

TIMELINE MODEL:
  Decisions are kept in the order they were appended and never edited.
  The effective timeline is derived by overlaying them: a later decision
  supersedes earlier ones for the days it covers.

    appended:  D1 [Jan..Dec]      D2 [May..Jul]
    effective: D1 [Jan..Apr] | D2 [May..Jul] | D1 [Aug..Dec]

  The effective timeline is sorted, has no overlaps and no gaps.

CONTIGUITY:
  AppendDecision accepts a decision only if the day before its start is
  covered by the current timeline (so the prior decision's effective end
  becomes start-1), if it starts exactly where the timeline starts, or if
  the case has no decisions yet. Anything else is a TimelineGap, which
  indicates a bug upstream and is treated as fatal.

MUTATION:
  Only the execution orchestrator appends decisions, inside the unit of
  work that also marks the revision executed. Everything else reads.
*/
package benefit

import (
	"fmt"
	"sort"
	"time"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

type Case struct {
	ID          generic.CaseID        `json:"id"`
	Beneficiary generic.BeneficiaryID `json:"beneficiary"`
	Version     int                   `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	Decisions   []Decision            `json:"decisions"`
}

// NewCase creates an empty case at version 0.
func NewCase(id generic.CaseID, beneficiary generic.BeneficiaryID, createdAt time.Time) *Case {
	return &Case{ID: id, Beneficiary: beneficiary, CreatedAt: createdAt}
}

// Segment is one stretch of the effective timeline.
type Segment struct {
	Period   generic.Period
	Decision Decision
}

// Timeline returns the effective segments sorted by start.
func (c *Case) Timeline() []Segment {
	var segs []Segment
	for _, d := range c.Decisions {
		var next []Segment
		for _, s := range segs {
			if !s.Period.Overlaps(d.Period) {
				next = append(next, s)
				continue
			}
			if s.Period.Start.Before(d.Period.Start) {
				next = append(next, Segment{
					Period:   generic.Period{Start: s.Period.Start, End: d.Period.Start.AddDays(-1)},
					Decision: s.Decision,
				})
			}
			if s.Period.End.After(d.Period.End) {
				next = append(next, Segment{
					Period:   generic.Period{Start: d.Period.End.AddDays(1), End: s.Period.End},
					Decision: s.Decision,
				})
			}
		}
		segs = append(next, Segment{Period: d.Period, Decision: d})
		sort.Slice(segs, func(i, j int) bool { return segs[i].Period.Start.Before(segs[j].Period.Start) })
	}
	return segs
}

// CurrentEffectiveDecision returns the decision covering asOf, if any.
func (c *Case) CurrentEffectiveDecision(asOf generic.TimePoint) (*Decision, bool) {
	for _, s := range c.Timeline() {
		if s.Period.Contains(asOf) {
			d := s.Decision
			return &d, true
		}
	}
	return nil, false
}

// Covered reports whether every day of p is covered by some decision.
func (c *Case) Covered(p generic.Period) bool {
	var periods []generic.Period
	for _, s := range c.Timeline() {
		periods = append(periods, s.Period)
	}
	return Covers(periods, p)
}

// CheckAppend validates contiguity without mutating the case.
func (c *Case) CheckAppend(d Decision) error {
	if d.CaseID != c.ID {
		return fmt.Errorf("decision %s belongs to case %s, not %s", d.ID, d.CaseID, c.ID)
	}
	if _, err := generic.NewPeriod(d.Period.Start, d.Period.End); err != nil {
		return err
	}
	timeline := c.Timeline()
	if len(timeline) == 0 {
		return nil
	}
	if d.Period.Start.Equal(timeline[0].Period.Start) {
		return nil
	}
	dayBefore := d.Period.Start.AddDays(-1)
	for _, s := range timeline {
		if s.Period.Contains(dayBefore) {
			return nil
		}
	}
	return &generic.TimelineGapError{
		CaseID:   c.ID,
		PriorEnd: timeline[len(timeline)-1].Period.End,
		NewStart: d.Period.Start,
	}
}

// AppendDecision adds d to the timeline and bumps the version.
func (c *Case) AppendDecision(d Decision) error {
	if err := c.CheckAppend(d); err != nil {
		return err
	}
	c.Decisions = append(c.Decisions, d)
	c.Version++
	return nil
}

// PaymentLinesFor returns the effective monthly lines for every month of p.
// ok is false if a month is not covered.
func (c *Case) PaymentLinesFor(p generic.Period) ([]MonthlyLine, bool) {
	timeline := c.Timeline()
	var lines []MonthlyLine
	for _, month := range p.MonthList() {
		found := false
		for _, s := range timeline {
			if !s.Period.Contains(month.Start) {
				continue
			}
			line, ok := s.Decision.LineFor(month.Start)
			if !ok {
				line = MonthlyLine{Month: month, Amount: generic.NOK(0), Stopped: true}
			}
			lines = append(lines, line)
			found = true
			break
		}
		if !found {
			return lines, false
		}
	}
	return lines, true
}

// GroundsFor returns the effective grounds clipped to p.
func (c *Case) GroundsFor(p generic.Period) Grounds {
	var out Grounds
	for _, s := range c.Timeline() {
		q, ok := s.Period.Intersect(p)
		if !ok {
			continue
		}
		out = out.Merge(s.Decision.Grounds.ClipTo(q))
	}
	return out
}

// SourcesFor returns the IDs of the decisions effective within p, in timeline order.
func (c *Case) SourcesFor(p generic.Period) []generic.DecisionID {
	var ids []generic.DecisionID
	for _, s := range c.Timeline() {
		if s.Period.Overlaps(p) {
			ids = append(ids, s.Decision.ID)
		}
	}
	return ids
}

func (c *Case) Clone() *Case {
	cp := *c
	cp.Decisions = append([]Decision(nil), c.Decisions...)
	return &cp
}
