package factory_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/factory"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

func TestParseRates_Default(t *testing.T) {
	f := factory.NewRateFactory()

	rt, err := f.ParseRates(factory.DefaultRatesJSON)

	require.NoError(t, err)
	assert.Len(t, rt.BaseAmounts, 5)
	assert.Equal(t, "2.48", rt.HighFactor.String())

	// Before the 2024 regulation was published, May 2024 still uses the 2023 amount.
	may := generic.NewTimePoint(2024, time.May, 1)
	b, ok := rt.BaseAmountFor(may, generic.NewTimePoint(2024, time.May, 10))
	require.True(t, ok)
	assert.Equal(t, "118620", b.Value.String())

	b, ok = rt.BaseAmountFor(may, generic.NewTimePoint(2024, time.June, 1))
	require.True(t, ok)
	assert.Equal(t, "124028", b.Value.String())
}

func TestParseRates_Errors(t *testing.T) {
	f := factory.NewRateFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{`},
		{"missing factor", `{"ordinary_factor":"2.28","wealth_limit_factor":"0.5","minimum_fraction":"0","base_amounts":[{"effective_from":"2024-05-01","value":"1"}]}`},
		{"bad date", `{"high_factor":"2.48","ordinary_factor":"2.28","wealth_limit_factor":"0.5","minimum_fraction":"0","base_amounts":[{"effective_from":"May","value":"1"}]}`},
		{"no base amounts", `{"high_factor":"2.48","ordinary_factor":"2.28","wealth_limit_factor":"0.5","minimum_fraction":"0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRates(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
high_factor: "2.48"
ordinary_factor: "2.28"
wealth_limit_factor: "0.5"
minimum_fraction: "0.02"
base_amounts:
  - effective_from: "2024-05-01"
    value: "124028"
`), 0o600))

	rt, err := factory.NewRateFactory().LoadFile(path)

	require.NoError(t, err)
	require.Len(t, rt.BaseAmounts, 1)
	assert.True(t, rt.BaseAmounts[0].KnownFrom.Equal(rt.BaseAmounts[0].EffectiveFrom), "known_from defaults to effective_from")
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewRateFactory()
	rt, err := f.ParseRates(factory.DefaultRatesJSON)
	require.NoError(t, err)

	back, err := f.FromJSON(f.ToJSON(rt))

	require.NoError(t, err)
	assert.Equal(t, len(rt.BaseAmounts), len(back.BaseAmounts))
	assert.True(t, rt.OrdinaryFactor.Equal(back.OrdinaryFactor))
}
