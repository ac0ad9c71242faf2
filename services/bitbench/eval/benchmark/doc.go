// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package benchmark measures throughput of the bitwise word operations.
//
// # Overview
//
// A Runner applies one operation N times over a pre-generated input ring,
// threading an accumulator through every call so no iteration can be
// eliminated. Only the loop itself is bracketed by the monotonic clock. The
// final accumulator is published to a package-level sink after the clock
// stops.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Benchmark Harness                        │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                   │
//	│  ┌──────────────┐      ┌──────────────┐      ┌──────────────┐    │
//	│  │   Runner     │──────│    Stats     │──────│   Reporter   │    │
//	│  │              │      │              │      │              │    │
//	│  │ • Input ring │      │ • Latency    │      │ • Table      │    │
//	│  │ • Auto-scale │      │ • Outliers   │      │ • JSON       │    │
//	│  │ • Samples    │      │ • Welch/d    │      │              │    │
//	│  └──────────────┘      └──────────────┘      └──────────────┘    │
//	│                                                                   │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	runner, err := benchmark.NewRunner(
//	    benchmark.WithIterations(100_000_000),
//	    benchmark.WithSamples(5),
//	)
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Run(ctx, "and", bitops.OpAnd, 42)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%.0f ops/sec\n", result.Throughput.OpsPerSecond)
//
// # Auto-scaling
//
// When enabled, a first sample shorter than MinDuration doubles N and retries
// until the bound is met or MaxIterations is reached. Later samples reuse the
// scaled N, and the reported Iterations is the N actually timed.
//
// # Thread Safety
//
// Runner is safe for concurrent use, but concurrent runs compete for the same
// cores and distort each other's timings.
package benchmark
