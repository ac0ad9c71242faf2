// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

const tracerName = "bitbench.eval.benchmark"

// sink receives the accumulator of every timed loop after the clock stops.
var sink atomic.Uint64

// -----------------------------------------------------------------------------
// Runner Options
// -----------------------------------------------------------------------------

// RunOption configures a Runner. Options apply in order, so later options
// override earlier ones.
type RunOption func(*Config)

// WithConfig replaces the whole configuration. Nil is ignored.
func WithConfig(c *Config) RunOption {
	return func(dst *Config) {
		if c != nil {
			*dst = *c
		}
	}
}

// WithIterations sets the operation count per sample. Non-positive values
// are ignored.
func WithIterations(n int64) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.Iterations = n
		}
	}
}

// WithSamples sets the number of timed loops. Non-positive values are ignored.
func WithSamples(n int) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.Samples = n
		}
	}
}

// WithAutoScale enables or disables iteration doubling.
func WithAutoScale(enabled bool) RunOption {
	return func(c *Config) {
		c.AutoScale = enabled
	}
}

// WithMinDuration sets the auto-scale lower bound. Negative values are ignored.
func WithMinDuration(d time.Duration) RunOption {
	return func(c *Config) {
		if d >= 0 {
			c.MinDuration = d
		}
	}
}

// WithMaxIterations caps auto-scaling. Non-positive values are ignored.
func WithMaxIterations(n int64) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.MaxIterations = n
		}
	}
}

// WithOutlierRemoval enables or disables IQR outlier removal.
func WithOutlierRemoval(enabled bool) RunOption {
	return func(c *Config) {
		c.RemoveOutliers = enabled
	}
}

// WithClock overrides the timing source. Nil is ignored.
func WithClock(clock Clock) RunOption {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner executes throughput benchmarks of bitops operations.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	config *Config
	logger *slog.Logger
}

// NewRunner builds a Runner from DefaultConfig and opts.
//
// Outputs:
//   - *Runner: The runner. Nil on error.
//   - error: faults.InvalidArgument if the resulting configuration is invalid.
func NewRunner(opts ...RunOption) (*Runner, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{config: cfg, logger: slog.Default()}, nil
}

// SetLogger replaces the runner's logger. Nil values are ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Config returns a copy of the runner configuration.
func (r *Runner) Config() Config { return *r.config }

// Run benchmarks a single operation.
//
// Description:
//
//	Generates the input ring from seed, then runs Config.Samples timed
//	loops. The first loop may auto-scale the iteration count. Context
//	cancellation is checked between samples, never inside a loop.
//
// Inputs:
//   - ctx: Context for cancellation between samples. Must not be nil.
//   - name: Row label. Empty means op.String().
//   - op: Operation to benchmark.
//   - seed: Input ring seed.
//
// Outputs:
//   - *Result: Timings and throughput. Nil on error.
//   - error: faults.InvalidArgument for an unknown op, faults.ClockFailure
//     for a non-positive elapsed time, or the context error.
func (r *Runner) Run(ctx context.Context, name string, op bitops.Op, seed uint64) (*Result, error) {
	if ctx == nil {
		return nil, faults.New(faults.InvalidArgument, "benchmark.run", "ctx", "context must not be nil")
	}
	k := kernelFor(op)
	if k == nil {
		return nil, faults.New(faults.InvalidArgument, "benchmark.run", op.String(), "unknown operation")
	}
	if name == "" {
		name = op.String()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "benchmark.Runner.Run",
		trace.WithAttributes(
			attribute.String("benchmark.op", op.String()),
			attribute.Int64("benchmark.iterations", r.config.Iterations),
			attribute.Int("benchmark.samples", r.config.Samples),
		),
	)
	defer span.End()

	res, err := r.run(ctx, name, op, k, seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "benchmark failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("benchmark.result.iterations", res.Iterations),
		attribute.Int64("benchmark.result.elapsed_ns", int64(res.Elapsed)),
		attribute.Float64("benchmark.result.ops_per_second", res.Throughput.OpsPerSecond),
	)
	span.SetStatus(codes.Ok, "benchmark completed")
	return res, nil
}

func (r *Runner) run(ctx context.Context, name string, op bitops.Op, k kernel, seed uint64) (*Result, error) {
	cfg := r.config
	clock := cfg.clock()
	in := newRing(seed)

	n := cfg.Iterations
	doublings := 0
	samples := make([]time.Duration, 0, cfg.Samples)
	var acc uint64

	for s := 0; s < cfg.Samples; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		elapsed, out := timeLoop(clock, k, in, n)
		for s == 0 && cfg.AutoScale && elapsed < cfg.MinDuration && n < cfg.MaxIterations && elapsed >= 0 {
			n = doubled(n, cfg.MaxIterations)
			doublings++
			elapsed, out = timeLoop(clock, k, in, n)
		}
		if elapsed <= 0 {
			return nil, faults.New(faults.ClockFailure, "benchmark.run", fmt.Sprintf("elapsed_ns=%d", elapsed),
				"%s loop of %d iterations measured non-positive time", op, n)
		}
		samples = append(samples, elapsed)
		acc = out
	}

	if shortest := slices.Min(samples); shortest < cfg.MinDuration {
		r.logger.Warn("benchmark sample shorter than minimum duration",
			slog.String("op", op.String()),
			slog.Int64("iterations", n),
			slog.Int64("elapsed_ns", shortest.Nanoseconds()),
			slog.Int64("min_duration_ns", cfg.MinDuration.Nanoseconds()),
			slog.Bool("auto_scale", cfg.AutoScale),
		)
	}

	if doublings > 0 {
		r.logger.Debug("benchmark auto-scaled",
			slog.String("op", op.String()),
			slog.Int64("from", cfg.Iterations),
			slog.Int64("to", n),
			slog.Int("doublings", doublings),
		)
	}

	return r.buildResult(name, op, seed, n, doublings, acc, samples), nil
}

// timeLoop brackets exactly one kernel call with the clock and publishes the
// accumulator afterwards.
func timeLoop(clock Clock, k kernel, in *ring, n int64) (time.Duration, uint64) {
	start := clock.Now()
	acc := k(in, n, in[0])
	elapsed := clock.Now().Sub(start)
	sink.Store(acc)
	runtime.KeepAlive(in)
	return elapsed, acc
}

func (r *Runner) buildResult(name string, op bitops.Op, seed uint64, n int64, doublings int, acc uint64, samples []time.Duration) *Result {
	res := &Result{
		Name:       name,
		Op:         op,
		Seed:       seed,
		Iterations: n,
		Doublings:  doublings,
		Checksum:   acc,
		Timestamp:  time.Now().UTC().UnixMilli(),
		RawSamples: samples,
		Samples:    samples,
	}

	if r.config.RemoveOutliers && len(samples) > 4 {
		res.Samples = RemoveOutliers(samples, r.config.OutlierThreshold)
		if removed := len(samples) - len(res.Samples); removed > 0 {
			r.logger.Debug("outliers removed from benchmark",
				slog.String("op", op.String()),
				slog.Int("original_count", len(samples)),
				slog.Int("removed_count", removed),
			)
		}
	}

	if stats, err := CalculateLatencyStats(res.Samples); err == nil {
		res.Latency = stats
	}
	for _, s := range res.Samples {
		res.TotalDuration += s
	}
	res.Elapsed = res.TotalDuration / time.Duration(len(res.Samples))
	if res.Elapsed > 0 {
		res.Throughput.OpsPerSecond = float64(n) / res.Elapsed.Seconds()
		res.Throughput.NsPerOp = float64(res.Elapsed) / float64(n)
	}
	return res
}

// RunAll benchmarks ops in order with the same seed.
//
// Outputs:
//   - []*Result: One result per op, in input order.
//   - error: The first failure. Results gathered before it are discarded.
func (r *Runner) RunAll(ctx context.Context, ops []bitops.Op, seed uint64) ([]*Result, error) {
	results := make([]*Result, 0, len(ops))
	for _, op := range ops {
		res, err := r.Run(ctx, "", op, seed)
		if err != nil {
			return nil, fmt.Errorf("benchmarking %s: %w", op, err)
		}
		r.logger.Info("benchmark completed",
			slog.String("op", op.String()),
			slog.Int64("iterations", res.Iterations),
			slog.Int64("elapsed_ns", int64(res.Elapsed)),
			slog.Float64("ops_per_sec", res.Throughput.OpsPerSecond),
		)
		results = append(results, res)
	}
	return results, nil
}

// Sink returns the accumulator of the most recent timed loop.
func Sink() uint64 { return sink.Load() }

func doubled(n, limit int64) int64 {
	if n > limit/2 {
		return limit
	}
	return n * 2
}
