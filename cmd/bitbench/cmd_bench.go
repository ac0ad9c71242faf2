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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/config"
	"github.com/AleutianAI/bitbench/services/bitbench/eval/benchmark"
	"github.com/AleutianAI/bitbench/services/bitbench/eval/telemetry"
	"github.com/AleutianAI/bitbench/services/bitbench/platform"
)

type benchFlags struct {
	ops         []string
	iters       int64
	samples     int
	seed        uint64
	autoScale   bool
	minDuration time.Duration
}

func (a *app) benchCmd() *cobra.Command {
	var f benchFlags
	d := config.Default().Bench

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time and/or/xor/nand/carry loops and report ops/sec",
		Long: `Runs each operation in a tight loop over a pre-generated input ring and
prints one record per op:

  name iterations elapsed_ns ops_per_sec

With auto-scale on, the iteration count doubles until a sample takes at
least --min-duration. With --samples > 1 the fastest and slowest ops are
compared with Welch's t-test (logged, or embedded in --format json).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBench(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.ops, "ops", d.Ops, "ops to time, comma-separated (default all)")
	fl.Int64Var(&f.iters, "iters", d.Iterations, "operations per timed sample")
	fl.IntVar(&f.samples, "samples", d.Samples, "timed samples per op")
	fl.Uint64Var(&f.seed, "seed", d.Seed, "input ring seed")
	fl.BoolVar(&f.autoScale, "auto-scale", d.AutoScale, "double --iters until a sample reaches --min-duration")
	fl.DurationVar(&f.minDuration, "min-duration", d.MinDuration, "shortest acceptable sample when auto-scaling")
	return cmd
}

func (a *app) runBench(cmd *cobra.Command, f benchFlags) error {
	ctx := cmd.Context()

	ops := make([]string, len(f.ops))
	for i, o := range f.ops {
		ops[i] = strings.ToLower(strings.TrimSpace(o))
	}
	bc := &a.cfg.Bench
	override(cmd, "ops", &bc.Ops, ops)
	override(cmd, "iters", &bc.Iterations, f.iters)
	override(cmd, "samples", &bc.Samples, f.samples)
	override(cmd, "seed", &bc.Seed, f.seed)
	override(cmd, "auto-scale", &bc.AutoScale, f.autoScale)
	override(cmd, "min-duration", &bc.MinDuration, f.minDuration)
	if bc.MaxIterations < bc.Iterations {
		bc.MaxIterations = bc.Iterations
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	selected := bitops.AllOps()
	if len(bc.Ops) > 0 {
		parsed, err := bitops.ParseOps(bc.Ops)
		if err != nil {
			return err
		}
		selected = parsed
	}

	runner, err := benchmark.NewRunner(
		benchmark.WithIterations(bc.Iterations),
		benchmark.WithSamples(bc.Samples),
		benchmark.WithAutoScale(bc.AutoScale),
		benchmark.WithMinDuration(bc.MinDuration),
		benchmark.WithMaxIterations(bc.MaxIterations),
	)
	if err != nil {
		return err
	}
	runner.SetLogger(a.logger.Slog())

	host := platform.Detect()
	a.logger.Info("bench starting", append(host.Attrs(),
		"ops", len(selected),
		"iterations", bc.Iterations,
		"samples", bc.Samples,
		"popcnt", host.Has("popcnt"),
	)...)

	results, err := runner.RunAll(ctx, selected, bc.Seed)
	if err != nil {
		return err
	}
	for _, r := range results {
		a.recordBenchmark(cmd, r)
	}

	comparison := benchmark.Compare(results)
	if bc.Format == "json" {
		return benchmark.NewJSONReporter(a.stdout, true).ReportWithComparison(results, comparison)
	}
	if err := benchmark.NewTableReporter(a.stdout).ReportAll(results); err != nil {
		return err
	}
	if len(results) > 1 {
		a.logger.Info("bench comparison",
			"fastest", comparison.Fastest,
			"slowest", comparison.Slowest,
			"speedup", comparison.Speedup,
			"p_value", comparison.PValue,
			"significant", comparison.Significant,
			"effect_size", comparison.EffectSizeCategory.String(),
		)
	}
	return nil
}

func (a *app) recordBenchmark(cmd *cobra.Command, r *benchmark.Result) {
	err := a.sink.RecordBenchmark(cmd.Context(), &telemetry.BenchmarkData{
		Name:         r.Name,
		Op:           r.Op.String(),
		Timestamp:    time.UnixMilli(r.Timestamp),
		Iterations:   r.Iterations,
		Elapsed:      r.Elapsed,
		OpsPerSecond: r.Throughput.OpsPerSecond,
		Samples:      len(r.Samples),
		Labels:       a.labels(),
	})
	if err != nil {
		a.logger.Warn("failed to record benchmark", "op", r.Name, "error", err)
	}
}
