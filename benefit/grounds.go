package benefit

import (
	"fmt"
	"sort"

	"github.com/navikt/su-se-bakover-sub005/generic"
)

// =============================================================================
// ASPECTS - The legal dimensions a revision can reconsider
// =============================================================================

type Aspect string

const (
	AspectIncome     Aspect = "income"
	AspectHousehold  Aspect = "household"
	AspectWealth     Aspect = "wealth"
	AspectDisability Aspect = "disability"
	AspectStayAbroad Aspect = "stay_abroad"
)

// AllAspects lists every aspect in display order.
var AllAspects = []Aspect{AspectDisability, AspectHousehold, AspectWealth, AspectIncome, AspectStayAbroad}

func ParseAspect(s string) (Aspect, error) {
	for _, a := range AllAspects {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown aspect %q", generic.ErrInvalidRevisionInput, s)
}

// AspectSet is a sorted set of aspects without duplicates.
type AspectSet []Aspect

// NewAspectSet validates and normalises the given aspects.
func NewAspectSet(aspects ...Aspect) (AspectSet, error) {
	seen := make(map[Aspect]bool)
	var set AspectSet
	for _, a := range aspects {
		if _, err := ParseAspect(string(a)); err != nil {
			return nil, err
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		set = append(set, a)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set, nil
}

func (s AspectSet) Contains(a Aspect) bool {
	for _, x := range s {
		if x == a {
			return true
		}
	}
	return false
}

func (s AspectSet) Equal(other AspectSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// GROUNDS - Facts per aspect, each valid for a period
// =============================================================================

type IncomeKind string

const (
	IncomeWork    IncomeKind = "work"
	IncomePension IncomeKind = "pension"
	IncomeCapital IncomeKind = "capital"
	IncomeOther   IncomeKind = "other"
)

type IncomeGround struct {
	Period  generic.Period `json:"period"`
	Kind    IncomeKind     `json:"kind"`
	Monthly generic.Money  `json:"monthly"`
}

type HouseholdComposition string

const (
	HouseholdAlone      HouseholdComposition = "alone"
	HouseholdCohabiting HouseholdComposition = "cohabiting"
)

type HouseholdGround struct {
	Period      generic.Period       `json:"period"`
	Composition HouseholdComposition `json:"composition"`
}

type WealthGround struct {
	Period generic.Period `json:"period"`
	Amount generic.Money  `json:"amount"`
}

type DisabilityGround struct {
	Period    generic.Period `json:"period"`
	Fulfilled bool           `json:"fulfilled"`
}

type StayAbroadGround struct {
	Period generic.Period `json:"period"`
	Abroad bool           `json:"abroad"`
}

// Grounds holds every fact a calculation reads.
type Grounds struct {
	Income     []IncomeGround     `json:"income,omitempty"`
	Household  []HouseholdGround  `json:"household,omitempty"`
	Wealth     []WealthGround     `json:"wealth,omitempty"`
	Disability []DisabilityGround `json:"disability,omitempty"`
	StayAbroad []StayAbroadGround `json:"stay_abroad,omitempty"`
}

func (g Grounds) IsEmpty() bool {
	return len(g.Supplied()) == 0
}

// Supplied returns the aspects that carry at least one ground.
func (g Grounds) Supplied() []Aspect {
	var out []Aspect
	for _, a := range AllAspects {
		if len(g.PeriodsFor(a)) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// PeriodsFor returns the periods of the grounds supplied for one aspect.
func (g Grounds) PeriodsFor(a Aspect) []generic.Period {
	var out []generic.Period
	switch a {
	case AspectIncome:
		for _, x := range g.Income {
			out = append(out, x.Period)
		}
	case AspectHousehold:
		for _, x := range g.Household {
			out = append(out, x.Period)
		}
	case AspectWealth:
		for _, x := range g.Wealth {
			out = append(out, x.Period)
		}
	case AspectDisability:
		for _, x := range g.Disability {
			out = append(out, x.Period)
		}
	case AspectStayAbroad:
		for _, x := range g.StayAbroad {
			out = append(out, x.Period)
		}
	}
	return out
}

// Replace returns g with the grounds of aspect a taken from src.
func (g Grounds) Replace(a Aspect, src Grounds) Grounds {
	switch a {
	case AspectIncome:
		g.Income = append([]IncomeGround(nil), src.Income...)
	case AspectHousehold:
		g.Household = append([]HouseholdGround(nil), src.Household...)
	case AspectWealth:
		g.Wealth = append([]WealthGround(nil), src.Wealth...)
	case AspectDisability:
		g.Disability = append([]DisabilityGround(nil), src.Disability...)
	case AspectStayAbroad:
		g.StayAbroad = append([]StayAbroadGround(nil), src.StayAbroad...)
	}
	return g
}

// Merge appends other's grounds to g.
func (g Grounds) Merge(other Grounds) Grounds {
	return Grounds{
		Income:     append(append([]IncomeGround(nil), g.Income...), other.Income...),
		Household:  append(append([]HouseholdGround(nil), g.Household...), other.Household...),
		Wealth:     append(append([]WealthGround(nil), g.Wealth...), other.Wealth...),
		Disability: append(append([]DisabilityGround(nil), g.Disability...), other.Disability...),
		StayAbroad: append(append([]StayAbroadGround(nil), g.StayAbroad...), other.StayAbroad...),
	}
}

// ClipTo restricts every ground to p and drops the ones outside it.
func (g Grounds) ClipTo(p generic.Period) Grounds {
	var out Grounds
	for _, x := range g.Income {
		if q, ok := x.Period.Intersect(p); ok {
			x.Period = q
			out.Income = append(out.Income, x)
		}
	}
	for _, x := range g.Household {
		if q, ok := x.Period.Intersect(p); ok {
			x.Period = q
			out.Household = append(out.Household, x)
		}
	}
	for _, x := range g.Wealth {
		if q, ok := x.Period.Intersect(p); ok {
			x.Period = q
			out.Wealth = append(out.Wealth, x)
		}
	}
	for _, x := range g.Disability {
		if q, ok := x.Period.Intersect(p); ok {
			x.Period = q
			out.Disability = append(out.Disability, x)
		}
	}
	for _, x := range g.StayAbroad {
		if q, ok := x.Period.Intersect(p); ok {
			x.Period = q
			out.StayAbroad = append(out.StayAbroad, x)
		}
	}
	return out
}

// Covers reports whether the union of periods covers every day of target.
func Covers(periods []generic.Period, target generic.Period) bool {
	sorted := append([]generic.Period(nil), periods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	next := target.Start
	for _, p := range sorted {
		if p.End.Before(next) {
			continue
		}
		if p.Start.After(next) {
			return false
		}
		next = p.End.AddDays(1)
		if next.After(target.End) {
			return true
		}
	}
	return next.After(target.End)
}
