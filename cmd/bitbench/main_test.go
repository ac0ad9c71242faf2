// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
	"github.com/AleutianAI/bitbench/services/bitbench/reduce"
)

// =============================================================================
// Harness
// =============================================================================

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// lines returns the non-empty stdout lines.
func (r cliResult) lines() []string {
	return strings.Split(strings.TrimRight(r.stdout, "\n"), "\n")
}

func execCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// quick are flags that keep bench runs short.
var quick = []string{"--iters", "1024", "--min-duration", "1ms", "--log-level", "error"}

// =============================================================================
// bench
// =============================================================================

func TestBench_TableAllOps(t *testing.T) {
	res := execCLI(t, append([]string{"bench"}, quick...)...)
	require.Equal(t, faults.ExitOK, res.code, res.stderr)

	lines := res.lines()
	require.Len(t, lines, 1+len(bitops.AllOps()))
	assert.Equal(t, "name iterations elapsed_ns ops_per_sec", lines[0])
	for i, op := range bitops.AllOps() {
		fields := strings.Fields(lines[i+1])
		require.Len(t, fields, 4, lines[i+1])
		assert.Equal(t, op.String(), fields[0])
		iters, err := strconv.ParseInt(fields[1], 10, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, iters, int64(1024))
		ns, err := strconv.ParseInt(fields[2], 10, 64)
		require.NoError(t, err)
		assert.Positive(t, ns)
	}
}

func TestBench_OpsSubsetJSON(t *testing.T) {
	args := append([]string{"bench", "--ops", "XOR,carry", "--samples", "3", "--format", "json"}, quick...)
	res := execCLI(t, args...)
	require.Equal(t, faults.ExitOK, res.code, res.stderr)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc), res.stdout)
	results, ok := doc["results"].([]any)
	require.True(t, ok, "results missing: %v", doc)
	assert.Len(t, results, 2)
	assert.Contains(t, doc, "comparison")
}

func TestBench_StartLogCarriesHost(t *testing.T) {
	res := execCLI(t, "bench", "--ops", "and", "--iters", "1024", "--min-duration", "1ms", "--log-level", "info", "--log-json")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)

	var start map[string]any
	for _, line := range strings.Split(strings.TrimSpace(res.stderr), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil && entry["msg"] == "bench starting" {
			start = entry
		}
	}
	require.NotNil(t, start, res.stderr)
	assert.Contains(t, start, "goarch")
	assert.IsType(t, true, start["popcnt"])
}

func TestBench_UnknownOp(t *testing.T) {
	res := execCLI(t, "bench", "--ops", "mul")
	assert.Equal(t, faults.ExitUsage, res.code)
	assert.Contains(t, res.stderr, "bitbench: ")
	assert.Contains(t, res.stderr, "Usage:")
	assert.Empty(t, res.stdout)
}

func TestBench_NegativeIterations(t *testing.T) {
	res := execCLI(t, "bench", "--iters", "-5")
	assert.Equal(t, faults.ExitUsage, res.code)
}

// =============================================================================
// evolve
// =============================================================================

func TestEvolve_XorRotTrace(t *testing.T) {
	res := execCLI(t, "evolve", "--rule", "xor_rot", "--k", "3", "--init", "HIGH_CONTRAST", "--steps", "4", "--log-level", "error")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)

	lines := res.lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "step popcount entropy complexity hamming", lines[0])

	// HIGH_CONTRAST at width 64: 32 ones, one transition, entropy 1.
	assert.Equal(t, fmt.Sprintf("0 32 1.000000 %.6f 0", 1.0/63), lines[1])
	for i, line := range lines[1:] {
		fields := strings.Fields(line)
		require.Len(t, fields, 5)
		assert.Equal(t, strconv.Itoa(i), fields[0])
	}
}

func TestEvolve_WideExternalIsSeeded(t *testing.T) {
	args := []string{"evolve", "--init", "external", "--width", "256", "--steps", "3", "--seed", "42", "--log-level", "error"}
	first := execCLI(t, args...)
	second := execCLI(t, args...)
	require.Equal(t, faults.ExitOK, first.code, first.stderr)
	assert.Equal(t, first.stdout, second.stdout)

	other := execCLI(t, "evolve", "--init", "external", "--width", "256", "--steps", "3", "--seed", "43", "--log-level", "error")
	assert.NotEqual(t, first.stdout, other.stdout)
}

func TestEvolve_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unsupported width", []string{"--width", "100"}},
		{"negative steps", []string{"--steps", "-1"}},
		{"unknown rule", []string{"--rule", "majority"}},
		{"unknown preset", []string{"--init", "CHAOS"}},
		{"unknown flag", []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execCLI(t, append([]string{"evolve"}, tt.args...)...)
			assert.Equal(t, faults.ExitUsage, res.code, res.stderr)
			assert.Contains(t, res.stderr, "Usage:")
		})
	}
}

// =============================================================================
// reduce
// =============================================================================

func TestReduce_XorMatchesSerialFold(t *testing.T) {
	want := reduce.SerialFold(reduce.FillPattern(4096), bitops.OpXor)
	for _, threads := range []string{"1", "3", "0"} {
		res := execCLI(t, "reduce", "--iters", "4096", "--op", "xor", "--threads", threads, "--log-level", "error")
		require.Equal(t, faults.ExitOK, res.code, res.stderr)

		lines := res.lines()
		require.Len(t, lines, 2)
		assert.Equal(t, "op threads length result majority elapsed_ns", lines[0])
		fields := strings.Fields(lines[1])
		require.Len(t, fields, 6)
		assert.Equal(t, "xor", fields[0])
		assert.Equal(t, "4096", fields[2])
		assert.Equal(t, fmt.Sprintf("0x%016x", want), fields[3])
	}
}

func TestReduce_CarryRejected(t *testing.T) {
	res := execCLI(t, "reduce", "--iters", "64", "--op", "carry", "--log-level", "error")
	assert.Equal(t, faults.ExitContract, res.code)
	assert.Contains(t, res.stderr, "carry")
	assert.NotContains(t, res.stderr, "Usage:")
	assert.Empty(t, res.stdout)

	res = execCLI(t, "reduce", "--iters", "64", "--op", "carry", "--unordered", "--threads", "2", "--log-level", "error")
	assert.Equal(t, faults.ExitOK, res.code, res.stderr)
}

func TestReduce_NegativeThreads(t *testing.T) {
	res := execCLI(t, "reduce", "--threads", "-2")
	assert.Equal(t, faults.ExitUsage, res.code)
}

func TestReduce_ThreadsAboveCap(t *testing.T) {
	res := execCLI(t, "reduce", "--iters", "64", "--threads", "100000000", "--log-level", "error")
	assert.Equal(t, faults.ExitContract, res.code)
	assert.Contains(t, res.stderr, "workers=100000000")
	assert.NotContains(t, res.stderr, "Usage:")
}

// =============================================================================
// cpu, root and configuration
// =============================================================================

func TestCPU(t *testing.T) {
	res := execCLI(t, "cpu")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "goarch ")
	assert.Contains(t, res.stdout, "num_cpu ")
}

func TestRoot_UnknownCommand(t *testing.T) {
	res := execCLI(t, "frobnicate")
	assert.Equal(t, faults.ExitUsage, res.code)
	assert.Contains(t, res.stderr, "unknown command")
}

func TestRoot_Help(t *testing.T) {
	res := execCLI(t, "--help")
	assert.Equal(t, faults.ExitOK, res.code)
	for _, sub := range []string{"bench", "evolve", "reduce", "cpu"} {
		assert.Contains(t, res.stdout, sub)
	}
}

func TestRoot_ErrorIsOneLine(t *testing.T) {
	res := execCLI(t, "reduce", "--op", "nand", "--log-level", "error")
	require.Equal(t, faults.ExitContract, res.code)
	diag := 0
	for _, line := range strings.Split(res.stderr, "\n") {
		if strings.HasPrefix(line, "bitbench: ") {
			diag++
		}
	}
	assert.Equal(t, 1, diag, res.stderr)
}

func TestConfigFile_FlagsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\nreduce:\n  length: 128\n  op: or\n"), 0o600))

	res := execCLI(t, "--config", path, "reduce")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)
	fields := strings.Fields(res.lines()[1])
	assert.Equal(t, "or", fields[0])
	assert.Equal(t, "128", fields[2])

	res = execCLI(t, "--config", path, "reduce", "--op", "and", "--iters", "16")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)
	fields = strings.Fields(res.lines()[1])
	assert.Equal(t, "and", fields[0])
	assert.Equal(t, "16", fields[2])
}

func TestConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evolve:\n  width: 7\n"), 0o600))
	res := execCLI(t, "--config", path, "cpu")
	assert.Equal(t, faults.ExitUsage, res.code)
	assert.Contains(t, res.stderr, "Evolve.Width")
}

// =============================================================================
// Telemetry
// =============================================================================

func TestTelemetry_PromTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitbench.prom")
	res := execCLI(t, "--telemetry", "prometheus", "--prom-textfile", path,
		"reduce", "--iters", "256", "--op", "and", "--threads", "2", "--log-level", "error")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `bitbench_eval_reduce_words_total{op="and"} 256`)
	assert.Contains(t, text, "target_info")
}

func TestTelemetry_TextfileWithoutExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitbench.prom")
	res := execCLI(t, "--prom-textfile", path, "reduce", "--iters", "8", "--op", "nand", "--log-level", "error")
	require.Equal(t, faults.ExitContract, res.code)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `bitbench_eval_errors_total{component="reduce",kind="non_associative_reducer",operation="reduce"} 1`)
}

func TestTelemetry_StdoutExporterWritesStderr(t *testing.T) {
	res := execCLI(t, "--telemetry", "stdout", "evolve", "--steps", "2", "--log-level", "error")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "evolve.record")
	assert.Contains(t, res.stderr, `"Name":"evolve.run"`)
	assert.True(t, strings.HasPrefix(res.stdout, "step popcount"), res.stdout)
}

func TestTelemetry_ReduceRunSpan(t *testing.T) {
	res := execCLI(t, "--telemetry", "stdout", "reduce", "--iters", "64", "--op", "or", "--threads", "2", "--log-level", "error")
	require.Equal(t, faults.ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, `"Name":"reduce.run"`)
	assert.Contains(t, res.stderr, `"Name":"reduce.record"`)

	res = execCLI(t, "--telemetry", "stdout", "reduce", "--iters", "64", "--op", "nand", "--log-level", "error")
	require.Equal(t, faults.ExitContract, res.code)
	assert.Contains(t, res.stderr, `"Name":"reduce.run"`)
	assert.Contains(t, res.stderr, `"Code":"Error"`)
}

func TestTelemetry_UnknownExporter(t *testing.T) {
	res := execCLI(t, "--telemetry", "jaeger", "cpu")
	assert.Equal(t, faults.ExitUsage, res.code)
}
