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
	"fmt"
	"time"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// -----------------------------------------------------------------------------
// Clock
// -----------------------------------------------------------------------------

// Clock supplies monotonic timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock backed by time.Now, which carries a
// monotonic reading.
var SystemClock Clock = systemClock{}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds benchmark configuration.
//
// Description:
//
//	Config controls the iteration count, the number of timed samples, the
//	auto-scale policy and outlier handling. Use DefaultConfig() and override
//	fields, or pass RunOptions to NewRunner.
//
// Thread Safety: Safe for concurrent read access after initialization.
type Config struct {
	// Iterations is the operation count per timed sample.
	// Default: 100_000_000
	Iterations int64

	// Samples is the number of timed loops per operation.
	// Default: 1
	Samples int

	// AutoScale doubles Iterations while the first sample is shorter than
	// MinDuration.
	// Default: true
	AutoScale bool

	// MinDuration is the shortest acceptable sample when AutoScale is on.
	// Default: 10ms
	MinDuration time.Duration

	// MaxIterations caps auto-scaling.
	// Default: 1 << 36
	MaxIterations int64

	// RemoveOutliers drops IQR outliers when more than four samples exist.
	// Default: true
	RemoveOutliers bool

	// OutlierThreshold is the IQR multiplier for outlier detection.
	// Default: 1.5
	OutlierThreshold float64

	// Clock times each loop. Nil means SystemClock.
	Clock Clock
}

// DefaultConfig returns a configuration with default values.
//
// Outputs:
//   - *Config: Configuration with default values. Never nil.
func DefaultConfig() *Config {
	return &Config{
		Iterations:       100_000_000,
		Samples:          1,
		AutoScale:        true,
		MinDuration:      10 * time.Millisecond,
		MaxIterations:    1 << 36,
		RemoveOutliers:   true,
		OutlierThreshold: 1.5,
		Clock:            SystemClock,
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: faults.InvalidArgument naming the offending field, nil if valid.
func (c *Config) Validate() error {
	const op = "benchmark.config"
	switch {
	case c.Iterations <= 0:
		return faults.New(faults.InvalidArgument, op, fmt.Sprintf("iterations=%d", c.Iterations), "iterations must be positive")
	case c.Samples <= 0:
		return faults.New(faults.InvalidArgument, op, fmt.Sprintf("samples=%d", c.Samples), "samples must be positive")
	case c.MinDuration < 0:
		return faults.New(faults.InvalidArgument, op, "min_duration="+c.MinDuration.String(), "min duration must be non-negative")
	case c.MaxIterations <= 0:
		return faults.New(faults.InvalidArgument, op, fmt.Sprintf("max_iterations=%d", c.MaxIterations), "max iterations must be positive")
	case c.OutlierThreshold <= 0:
		return faults.New(faults.InvalidArgument, op, fmt.Sprintf("outlier_threshold=%g", c.OutlierThreshold), "outlier threshold must be positive")
	}
	return nil
}

func (c *Config) clock() Clock {
	if c.Clock == nil {
		return SystemClock
	}
	return c.Clock
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Result holds the outcome of benchmarking one operation.
//
// Description:
//
//	Elapsed is the mean sample duration after outlier removal, and
//	Throughput.OpsPerSecond is Iterations / Elapsed. Raw samples are kept
//	for comparison and custom analysis.
//
// Thread Safety: Safe for concurrent read access after creation.
type Result struct {
	// Name labels the row, usually the op name.
	Name string

	// Op is the benchmarked operation.
	Op bitops.Op

	// Seed generated the input ring.
	Seed uint64

	// Iterations is the operation count per sample actually timed.
	Iterations int64

	// Doublings is how many times auto-scale doubled the iteration count.
	Doublings int

	// Elapsed is the mean sample duration.
	Elapsed time.Duration

	// TotalDuration is the sum of the retained samples.
	TotalDuration time.Duration

	// Latency holds per-sample statistics.
	Latency LatencyStats

	// Throughput holds rate statistics.
	Throughput ThroughputStats

	// Checksum is the final accumulator of the last sample.
	Checksum uint64

	// Timestamp is when the run finished (Unix milliseconds UTC).
	Timestamp int64

	// RawSamples holds every sample duration before outlier removal.
	RawSamples []time.Duration

	// Samples holds the durations used for statistics.
	Samples []time.Duration
}

// ThroughputStats holds throughput statistics.
type ThroughputStats struct {
	// OpsPerSecond counts operation invocations per second.
	OpsPerSecond float64

	// NsPerOp is the mean cost of one invocation.
	NsPerOp float64
}

// LatencyStats holds per-sample duration statistics. Percentiles use linear
// interpolation.
type LatencyStats struct {
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	Median   time.Duration
	StdDev   time.Duration
	Variance float64
	P50      time.Duration
	P90      time.Duration
	P95      time.Duration
	P99      time.Duration
	P999     time.Duration
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

// ComparisonResult ranks benchmark results by throughput.
//
// Description:
//
//	When both the fastest and the slowest result carry at least two samples,
//	Welch's t-test and Cohen's d are computed on their per-operation costs.
//	Otherwise PValue is 1 and Significant is false.
type ComparisonResult struct {
	// Results is keyed by Result.Name.
	Results map[string]*Result

	// Ranking lists names from highest to lowest ops/sec.
	Ranking []string

	// Fastest and Slowest name the ends of the ranking.
	Fastest string
	Slowest string

	// Speedup is fastest ops/sec over slowest ops/sec.
	Speedup float64

	// Significant reports PValue < 1 - ConfidenceLevel.
	Significant bool

	// PValue is the two-tailed p-value from Welch's t-test.
	PValue float64

	// ConfidenceLevel is the level used for Significant.
	ConfidenceLevel float64

	// EffectSize is Cohen's d between the two ends.
	EffectSize float64

	// EffectSizeCategory buckets EffectSize.
	EffectSizeCategory EffectSizeCategory

	// Intervals holds, per result name, the ConfidenceLevel interval of the
	// mean normalized sample. Results with fewer than two samples are absent.
	Intervals map[string]Interval
}

// Interval is a closed duration range.
type Interval struct {
	Lower time.Duration
	Upper time.Duration
}

// Contains reports whether d lies within the interval.
func (i Interval) Contains(d time.Duration) bool {
	return d >= i.Lower && d <= i.Upper
}

// EffectSizeCategory buckets Cohen's d: negligible (<0.2), small (<0.5),
// medium (<0.8), large.
type EffectSizeCategory int

const (
	// EffectNegligible indicates |d| < 0.2.
	EffectNegligible EffectSizeCategory = iota
	// EffectSmall indicates 0.2 <= |d| < 0.5.
	EffectSmall
	// EffectMedium indicates 0.5 <= |d| < 0.8.
	EffectMedium
	// EffectLarge indicates |d| >= 0.8.
	EffectLarge
)

// String returns the category name.
func (e EffectSizeCategory) String() string {
	switch e {
	case EffectNegligible:
		return "negligible"
	case EffectSmall:
		return "small"
	case EffectMedium:
		return "medium"
	case EffectLarge:
		return "large"
	default:
		return "unknown"
	}
}
