package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/factory"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	chdir(t, t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestRatesCommand_PrintsBuiltInTable(t *testing.T) {
	out := run(t, "rates")

	var rj factory.RatesJSON
	require.NoError(t, json.Unmarshal([]byte(out), &rj))
	assert.Equal(t, "2.48", rj.HighFactor)
	assert.NotEmpty(t, rj.BaseAmounts)
}

func TestReconcileCommand_EmptyStore(t *testing.T) {
	out := run(t, "reconcile", "--store", "memory")

	var res execution.SweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, execution.SweepResult{}, res)
}

func TestUnknownStoreIsRejected(t *testing.T) {
	chdir(t, t.TempDir())
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"reconcile", "--store", "postgres"})

	assert.Error(t, cmd.Execute())
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
