/*
Package calculation projects a benefit schedule for a revision.

PURPOSE:
  Given a case, a target period, the aspects under revision and any newly
  supplied grounds, compute the amount payable for every month of the
  period and the reasons a month pays nothing.

PURITY:
  Calculate reads only its Input and the engine's rate table. The as-of
  instant is part of the input; it decides which published base amounts
  are visible. Same input, same schedule, same checksum.

GROUNDS RESOLUTION:
  1. Start from the grounds of the decisions effective in the period.
  2. For every aspect under revision that has supplied grounds, replace
     that aspect's grounds entirely with the supplied ones.
  3. Aspects under revision without supplied grounds keep the existing
     grounds (reconsidered, unchanged).

MONTHLY FORMULA:
  annual rate = base amount × factor(household)
  amount      = round(annual rate / 12 − income deductions)

  A month stops (amount 0) when disability is not fulfilled, wealth exceeds
  the limit, the beneficiary stays abroad, the amount is not positive, or the
  amount is below the minimum payable.

SEE ALSO:
  - schedule.go: Schedule, checksum
  - rates.go: RateTable
  - factory/rates.go: loading a RateTable from JSON or YAML
*/
package calculation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

// Input is everything a calculation depends on.
type Input struct {
	Case     *benefit.Case
	Period   generic.Period
	Aspects  benefit.AspectSet
	Supplied benefit.Grounds
	AsOf     time.Time
}

type Engine struct {
	Rates RateTable
}

func NewEngine(rates RateTable) *Engine {
	return &Engine{Rates: rates}
}

var twelve = decimal.NewFromInt(12)

// Calculate projects the schedule for in.Period.
func (e *Engine) Calculate(in Input) (*Schedule, error) {
	if in.Case == nil {
		return nil, generic.InvalidCalculationInput("no case")
	}
	if _, err := generic.NewMonthPeriod(in.Period.Start, in.Period.End); err != nil {
		return nil, generic.InvalidCalculationInput("%v", err)
	}
	if len(in.Aspects) == 0 {
		return nil, generic.ErrMissingRevisionAspects
	}

	grounds, err := ResolveGrounds(in)
	if err != nil {
		return nil, err
	}

	asOf := generic.DateOf(in.AsOf)
	var months []monthCalc
	for _, month := range in.Period.MonthList() {
		mc, err := e.calculateMonth(month, grounds, asOf)
		if err != nil {
			return nil, err
		}
		months = append(months, mc)
	}

	s := &Schedule{
		CaseID:     in.Case.ID,
		Period:     in.Period,
		Sources:    in.Case.SourcesFor(in.Period),
		SubPeriods: merge(months),
		AsOf:       in.AsOf,
	}
	s.Checksum = ComputeChecksum(s)
	return s, nil
}

// ResolveGrounds returns the grounds a calculation reads: the effective grounds
// of the period with each revised aspect replaced by its supplied grounds.
func ResolveGrounds(in Input) (benefit.Grounds, error) {
	for _, a := range in.Supplied.Supplied() {
		if !in.Aspects.Contains(a) {
			return benefit.Grounds{}, generic.InvalidCalculationInput("grounds supplied for %s, which is not under revision", a)
		}
		periods := in.Supplied.PeriodsFor(a)
		for _, p := range periods {
			if !in.Period.ContainsPeriod(p) {
				return benefit.Grounds{}, generic.InvalidCalculationInput("%s ground %s lies outside the revision period %s", a, p, in.Period)
			}
		}
		if !benefit.Covers(periods, in.Period) {
			return benefit.Grounds{}, generic.InvalidCalculationInput("%s grounds do not cover the whole revision period %s", a, in.Period)
		}
	}

	grounds := in.Case.GroundsFor(in.Period)
	for _, a := range in.Aspects {
		if len(in.Supplied.PeriodsFor(a)) > 0 {
			grounds = grounds.Replace(a, in.Supplied)
		}
	}
	return grounds, nil
}

type monthCalc struct {
	month       generic.Period
	amount      generic.Money
	stopReasons []StopReason
	inputs      Inputs
}

func (e *Engine) calculateMonth(month generic.Period, g benefit.Grounds, asOf generic.TimePoint) (monthCalc, error) {
	at := month.Start

	household, ok := findHousehold(g, at)
	if !ok {
		return monthCalc{}, generic.InvalidCalculationInput("no household ground for %s", at)
	}
	disability, ok := findDisability(g, at)
	if !ok {
		return monthCalc{}, generic.InvalidCalculationInput("no disability ground for %s", at)
	}
	base, ok := e.Rates.BaseAmountFor(at, asOf)
	if !ok {
		return monthCalc{}, generic.InvalidCalculationInput("no base amount known on %s for %s", asOf, at)
	}
	factor, err := e.Rates.Factor(household.Composition)
	if err != nil {
		return monthCalc{}, err
	}

	deductions := generic.NOK(0)
	for _, inc := range g.Income {
		if inc.Period.Contains(at) {
			deductions = deductions.Add(inc.Monthly)
		}
	}
	wealth := generic.NOK(0)
	for _, w := range g.Wealth {
		if w.Period.Contains(at) {
			wealth = wealth.Add(w.Amount)
		}
	}

	annual := base.Value.Mul(factor)
	amount := annual.Div(twelve).Sub(deductions).Round()

	var reasons []StopReason
	if !disability.Fulfilled {
		reasons = append(reasons, StopDisability)
	}
	if wealth.GreaterThan(base.Value.Mul(e.Rates.WealthLimitFactor)) {
		reasons = append(reasons, StopWealth)
	}
	for _, s := range g.StayAbroad {
		if s.Period.Contains(at) && s.Abroad {
			reasons = append(reasons, StopStayAbroad)
			break
		}
	}
	minimum := base.Value.Mul(e.Rates.HighFactor).Div(twelve).Mul(e.Rates.MinimumFraction)
	switch {
	case !amount.IsPositive():
		reasons = append(reasons, StopIncomeTooHigh)
	case amount.LessThan(minimum):
		reasons = append(reasons, StopBelowMinimum)
	}
	if len(reasons) > 0 {
		amount = generic.NOK(0)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	return monthCalc{
		month:       month,
		amount:      amount,
		stopReasons: reasons,
		inputs: Inputs{
			Composition: household.Composition,
			BaseAmount:  base.Value,
			AnnualRate:  annual,
			Deductions:  deductions,
			Wealth:      wealth,
		},
	}, nil
}

func findHousehold(g benefit.Grounds, at generic.TimePoint) (benefit.HouseholdGround, bool) {
	for _, h := range g.Household {
		if h.Period.Contains(at) {
			return h, true
		}
	}
	return benefit.HouseholdGround{}, false
}

func findDisability(g benefit.Grounds, at generic.TimePoint) (benefit.DisabilityGround, bool) {
	for _, d := range g.Disability {
		if d.Period.Contains(at) {
			return d, true
		}
	}
	return benefit.DisabilityGround{}, false
}

// merge folds consecutive identical months into sub-periods.
func merge(months []monthCalc) []SubPeriod {
	var out []SubPeriod
	for _, m := range months {
		if n := len(out); n > 0 && sameMonth(out[n-1], m) {
			out[n-1].Period.End = m.month.End
			continue
		}
		out = append(out, SubPeriod{
			Period:      m.month,
			Amount:      m.amount,
			StopReasons: m.stopReasons,
			Inputs:      m.inputs,
		})
	}
	return out
}

func sameMonth(sp SubPeriod, m monthCalc) bool {
	if !sp.Amount.Equal(m.amount) || len(sp.StopReasons) != len(m.stopReasons) {
		return false
	}
	for i := range sp.StopReasons {
		if sp.StopReasons[i] != m.stopReasons[i] {
			return false
		}
	}
	return sp.Inputs.Composition == m.inputs.Composition &&
		sp.Inputs.BaseAmount.Equal(m.inputs.BaseAmount) &&
		sp.Inputs.AnnualRate.Equal(m.inputs.AnnualRate) &&
		sp.Inputs.Deductions.Equal(m.inputs.Deductions) &&
		sp.Inputs.Wealth.Equal(m.inputs.Wealth)
}
