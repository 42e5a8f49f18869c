package calculation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

// BaseAmount is one published value of the national base amount ("grunnbeløp").
// A value applies to months from EffectiveFrom, but calculations only see it
// once the as-of date has reached KnownFrom.
type BaseAmount struct {
	EffectiveFrom generic.TimePoint `json:"effective_from" yaml:"effective_from"`
	KnownFrom     generic.TimePoint `json:"known_from" yaml:"known_from"`
	Value         generic.Money     `json:"value" yaml:"value"`
}

// RateTable holds every constant the engine reads.
type RateTable struct {
	BaseAmounts []BaseAmount

	// Annual rate as a multiple of the base amount
	HighFactor     decimal.Decimal // living alone
	OrdinaryFactor decimal.Decimal // cohabiting

	// Wealth above WealthLimitFactor × base amount stops the benefit
	WealthLimitFactor decimal.Decimal

	// Monthly amounts below MinimumFraction × the high monthly rate are not paid
	MinimumFraction decimal.Decimal
}

// Validate checks factors are positive and base amounts are ordered and unique.
func (rt RateTable) Validate() error {
	if len(rt.BaseAmounts) == 0 {
		return fmt.Errorf("rate table has no base amounts")
	}
	for name, f := range map[string]decimal.Decimal{
		"high_factor":         rt.HighFactor,
		"ordinary_factor":     rt.OrdinaryFactor,
		"wealth_limit_factor": rt.WealthLimitFactor,
	} {
		if !f.IsPositive() {
			return fmt.Errorf("rate table: %s must be positive", name)
		}
	}
	if rt.MinimumFraction.IsNegative() {
		return fmt.Errorf("rate table: minimum_fraction must not be negative")
	}
	seen := make(map[string]bool)
	for _, b := range rt.BaseAmounts {
		if !b.Value.IsPositive() {
			return fmt.Errorf("rate table: base amount from %s must be positive", b.EffectiveFrom)
		}
		if b.KnownFrom.IsZero() {
			return fmt.Errorf("rate table: base amount from %s has no known_from date", b.EffectiveFrom)
		}
		key := b.EffectiveFrom.String() + "/" + b.KnownFrom.String()
		if seen[key] {
			return fmt.Errorf("rate table: duplicate base amount %s", key)
		}
		seen[key] = true
	}
	return nil
}

// BaseAmountFor returns the base amount for month as it was known on asOf.
func (rt RateTable) BaseAmountFor(month, asOf generic.TimePoint) (BaseAmount, bool) {
	candidates := make([]BaseAmount, 0, len(rt.BaseAmounts))
	for _, b := range rt.BaseAmounts {
		if b.EffectiveFrom.BeforeOrEqual(month) && b.KnownFrom.BeforeOrEqual(asOf) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return BaseAmount{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].EffectiveFrom.Equal(candidates[j].EffectiveFrom) {
			return candidates[i].KnownFrom.Before(candidates[j].KnownFrom)
		}
		return candidates[i].EffectiveFrom.Before(candidates[j].EffectiveFrom)
	})
	return candidates[len(candidates)-1], true
}

// Factor returns the annual multiple of the base amount for a household.
func (rt RateTable) Factor(c benefit.HouseholdComposition) (decimal.Decimal, error) {
	switch c {
	case benefit.HouseholdAlone:
		return rt.HighFactor, nil
	case benefit.HouseholdCohabiting:
		return rt.OrdinaryFactor, nil
	default:
		return decimal.Zero, generic.InvalidCalculationInput("unknown household composition %q", c)
	}
}
