package calculation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func testRates() calculation.RateTable {
	return calculation.RateTable{
		BaseAmounts: []calculation.BaseAmount{
			{EffectiveFrom: date(2023, time.May, 1), KnownFrom: date(2023, time.May, 1), Value: generic.NOK(118620)},
			{EffectiveFrom: date(2024, time.May, 1), KnownFrom: date(2024, time.May, 20), Value: generic.NOK(124028)},
		},
		HighFactor:        generic.MustParseDecimal("2.48"),
		OrdinaryFactor:    generic.MustParseDecimal("2.28"),
		WealthLimitFactor: generic.MustParseDecimal("0.5"),
		MinimumFraction:   generic.MustParseDecimal("0.02"),
	}
}

var year2024 = generic.Months(date(2024, time.January, 1), 12)

// newTestCase returns a case with one decision for 2024, living alone, disability fulfilled.
func newTestCase(t *testing.T) *benefit.Case {
	t.Helper()
	c := benefit.NewCase("case-1", "12345678901", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d := benefit.Decision{
		ID:      "d1",
		CaseID:  c.ID,
		Period:  year2024,
		Outcome: benefit.OutcomeGranted,
		Grounds: benefit.Grounds{
			Household:  []benefit.HouseholdGround{{Period: year2024, Composition: benefit.HouseholdAlone}},
			Disability: []benefit.DisabilityGround{{Period: year2024, Fulfilled: true}},
		},
	}
	for _, m := range year2024.MonthList() {
		d.Lines = append(d.Lines, benefit.MonthlyLine{Month: m, Amount: generic.NOK(24515)})
	}
	require.NoError(t, c.AppendDecision(d))
	return c
}

func aspects(t *testing.T, as ...benefit.Aspect) benefit.AspectSet {
	t.Helper()
	set, err := benefit.NewAspectSet(as...)
	require.NoError(t, err)
	return set
}

var asOfMarch = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// =============================================================================
// AMOUNTS
// =============================================================================

func TestCalculate_UnchangedGrounds(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	c := newTestCase(t)
	period := generic.Months(date(2024, time.February, 1), 3)

	s, err := engine.Calculate(calculation.Input{
		Case: c, Period: period, Aspects: aspects(t, benefit.AspectIncome), AsOf: asOfMarch,
	})

	require.NoError(t, err)
	require.Len(t, s.SubPeriods, 1, "identical months merge into one sub-period")
	// 118620 × 2.48 / 12 = 24514.8
	assert.Equal(t, "24515", s.SubPeriods[0].Amount.String())
	assert.True(t, s.SubPeriods[0].Period.Equal(period))
	assert.Equal(t, []generic.DecisionID{"d1"}, s.Sources)
	assert.NotEmpty(t, s.Checksum)
}

func TestCalculate_SuppliedIncomeDeducted(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	c := newTestCase(t)
	period := generic.Months(date(2024, time.February, 1), 2)

	s, err := engine.Calculate(calculation.Input{
		Case:    c,
		Period:  period,
		Aspects: aspects(t, benefit.AspectIncome),
		Supplied: benefit.Grounds{Income: []benefit.IncomeGround{
			{Period: period, Kind: benefit.IncomeWork, Monthly: generic.NOK(5000)},
		}},
		AsOf: asOfMarch,
	})

	require.NoError(t, err)
	months := s.Months()
	require.Len(t, months, 2)
	assert.Equal(t, "19515", months[0].Amount.String())
	assert.False(t, months[0].Stopped())
	assert.Equal(t, "5000", s.SubPeriods[0].Inputs.Deductions.String())
}

func TestCalculate_StopReasons(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	c := newTestCase(t)
	period := generic.Months(date(2024, time.February, 1), 2)

	t.Run("disability not fulfilled", func(t *testing.T) {
		s, err := engine.Calculate(calculation.Input{
			Case: c, Period: period, Aspects: aspects(t, benefit.AspectDisability),
			Supplied: benefit.Grounds{Disability: []benefit.DisabilityGround{{Period: period, Fulfilled: false}}},
			AsOf:     asOfMarch,
		})
		require.NoError(t, err)
		assert.Equal(t, []calculation.StopReason{calculation.StopDisability}, s.SubPeriods[0].StopReasons)
		assert.True(t, s.SubPeriods[0].Amount.IsZero())
	})

	t.Run("income too high", func(t *testing.T) {
		s, err := engine.Calculate(calculation.Input{
			Case: c, Period: period, Aspects: aspects(t, benefit.AspectIncome),
			Supplied: benefit.Grounds{Income: []benefit.IncomeGround{{Period: period, Kind: benefit.IncomeWork, Monthly: generic.NOK(30000)}}},
			AsOf:     asOfMarch,
		})
		require.NoError(t, err)
		assert.Equal(t, []calculation.StopReason{calculation.StopIncomeTooHigh}, s.SubPeriods[0].StopReasons)
	})

	t.Run("below minimum", func(t *testing.T) {
		// 24514.8 - 24100 = 414.8 -> 415, minimum is 490.296
		s, err := engine.Calculate(calculation.Input{
			Case: c, Period: period, Aspects: aspects(t, benefit.AspectIncome),
			Supplied: benefit.Grounds{Income: []benefit.IncomeGround{{Period: period, Kind: benefit.IncomePension, Monthly: generic.NOK(24100)}}},
			AsOf:     asOfMarch,
		})
		require.NoError(t, err)
		assert.Equal(t, []calculation.StopReason{calculation.StopBelowMinimum}, s.SubPeriods[0].StopReasons)
	})

	t.Run("wealth above limit", func(t *testing.T) {
		s, err := engine.Calculate(calculation.Input{
			Case: c, Period: period, Aspects: aspects(t, benefit.AspectWealth),
			Supplied: benefit.Grounds{Wealth: []benefit.WealthGround{{Period: period, Amount: generic.NOK(60000)}}},
			AsOf:     asOfMarch,
		})
		require.NoError(t, err)
		assert.Equal(t, []calculation.StopReason{calculation.StopWealth}, s.SubPeriods[0].StopReasons)
	})
}

// =============================================================================
// DETERMINISM AND AS-OF
// =============================================================================

func TestCalculate_DeterministicChecksum(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	in := calculation.Input{
		Case: newTestCase(t), Period: year2024, Aspects: aspects(t, benefit.AspectIncome), AsOf: asOfMarch,
	}

	a, err := engine.Calculate(in)
	require.NoError(t, err)
	b, err := engine.Calculate(in)
	require.NoError(t, err)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.Equal(t, a.Checksum, calculation.ComputeChecksum(b))
}

func TestCalculate_AsOfControlsVisibleBaseAmount(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	c := newTestCase(t)
	period := generic.Months(date(2024, time.May, 1), 1)
	in := calculation.Input{Case: c, Period: period, Aspects: aspects(t, benefit.AspectIncome)}

	// GIVEN: the 2024 base amount is published on May 20
	in.AsOf = time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	before, err := engine.Calculate(in)
	require.NoError(t, err)

	in.AsOf = time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	stillBefore, err := engine.Calculate(in)
	require.NoError(t, err)

	in.AsOf = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	after, err := engine.Calculate(in)
	require.NoError(t, err)

	// THEN: nothing new between May 10 and May 15, new amount after May 20
	assert.Equal(t, before.Checksum, stillBefore.Checksum)
	assert.NotEqual(t, before.Checksum, after.Checksum)
	assert.Equal(t, "24515", before.SubPeriods[0].Amount.String())
	// 124028 × 2.48 / 12 = 25632.45
	assert.Equal(t, "25632", after.SubPeriods[0].Amount.String())
}

// =============================================================================
// INVALID INPUT
// =============================================================================

func TestCalculate_InvalidInput(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	c := newTestCase(t)
	period := generic.Months(date(2024, time.March, 1), 2)

	tests := []struct {
		name     string
		aspects  benefit.AspectSet
		supplied benefit.Grounds
	}{
		{
			name:    "ground for aspect not under revision",
			aspects: aspects(t, benefit.AspectIncome),
			supplied: benefit.Grounds{Household: []benefit.HouseholdGround{
				{Period: period, Composition: benefit.HouseholdCohabiting},
			}},
		},
		{
			name:    "ground outside revision period",
			aspects: aspects(t, benefit.AspectIncome),
			supplied: benefit.Grounds{Income: []benefit.IncomeGround{
				{Period: generic.Months(date(2024, time.January, 1), 4), Monthly: generic.NOK(1)},
			}},
		},
		{
			name:    "grounds do not cover period",
			aspects: aspects(t, benefit.AspectIncome),
			supplied: benefit.Grounds{Income: []benefit.IncomeGround{
				{Period: generic.Months(date(2024, time.March, 1), 1), Monthly: generic.NOK(1)},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Calculate(calculation.Input{
				Case: c, Period: period, Aspects: tt.aspects, Supplied: tt.supplied, AsOf: asOfMarch,
			})
			assert.ErrorIs(t, err, generic.ErrInvalidCalculationInput)
			assert.True(t, generic.IsInputError(err))
		})
	}
}

func TestCalculate_NoBasisRequiresAllGrounds(t *testing.T) {
	engine := calculation.NewEngine(testRates())
	c := benefit.NewCase("case-2", "fnr", time.Now())
	period := generic.Months(date(2024, time.March, 1), 2)

	_, err := engine.Calculate(calculation.Input{
		Case: c, Period: period, Aspects: aspects(t, benefit.AspectIncome), AsOf: asOfMarch,
	})
	assert.ErrorIs(t, err, generic.ErrInvalidCalculationInput)

	s, err := engine.Calculate(calculation.Input{
		Case:    c,
		Period:  period,
		Aspects: aspects(t, benefit.AspectHousehold, benefit.AspectDisability),
		Supplied: benefit.Grounds{
			Household:  []benefit.HouseholdGround{{Period: period, Composition: benefit.HouseholdCohabiting}},
			Disability: []benefit.DisabilityGround{{Period: period, Fulfilled: true}},
		},
		AsOf: asOfMarch,
	})
	require.NoError(t, err)
	assert.Empty(t, s.Sources)
	// 118620 × 2.28 / 12 = 22537.8
	assert.Equal(t, "22538", s.SubPeriods[0].Amount.String())
}

func TestCalculate_MissingAspects(t *testing.T) {
	engine := calculation.NewEngine(testRates())

	_, err := engine.Calculate(calculation.Input{Case: newTestCase(t), Period: year2024, AsOf: asOfMarch})

	assert.ErrorIs(t, err, generic.ErrMissingRevisionAspects)
}

func TestRateTable_Validate(t *testing.T) {
	assert.NoError(t, testRates().Validate())

	rt := testRates()
	rt.HighFactor = generic.MustParseDecimal("0")
	assert.Error(t, rt.Validate())

	assert.Error(t, calculation.RateTable{}.Validate())
}
