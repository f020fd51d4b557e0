// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const runFile = "../../sim/testdata/run.yaml"

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"validate", "--config", runFile}, &out))
	require.Equal(t, "ok: 2 institutions, 4 nodes, 2 links, 3 months from 2021-11\n", out.String())
}

func TestRunCommandWritesMetrics(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "metrics.prom")
	var out bytes.Buffer
	err := run(context.Background(), []string{"run", "--config", runFile, "--months", "2", "--metrics-out", metrics}, &out)
	require.NoError(t, err)

	report := out.String()
	require.Contains(t, report, "2021-11  ministry")
	require.Contains(t, report, "2021-12  market")
	require.NotContains(t, report, "2022-01")

	dump, err := os.ReadFile(metrics)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(dump), "basinflow_solver_attempts_total"))
	require.True(t, strings.Contains(string(dump), "basinflow_market_clears_total"))
}

func TestRunsOnMemoryStoreIsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"runs", "--store", "memory"}, &out))
	require.Equal(t, "id  label  started\n", out.String())
}

func TestUsageErrors(t *testing.T) {
	var out bytes.Buffer
	require.ErrorContains(t, run(context.Background(), nil, &out), "missing command")
	require.ErrorContains(t, run(context.Background(), []string{"plot"}, &out), "unknown command: plot")
	require.Error(t, run(context.Background(), []string{"validate", "--config", "absent.yaml"}, &out))
}
