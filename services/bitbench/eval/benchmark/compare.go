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
	"cmp"
	"slices"
	"time"
)

// DefaultConfidenceLevel is used by Compare.
const DefaultConfidenceLevel = 0.95

// normalizedOps is the common operation count samples are rescaled to before
// significance testing, since auto-scale may time different N per op.
const normalizedOps = 1_000_000

// Compare ranks results by throughput and tests the fastest against the
// slowest.
//
// Description:
//
//	Ranking is by OpsPerSecond descending, ties broken by name. Speedup is
//	fastest over slowest ops/sec. Welch's t-test and Cohen's d run on
//	samples rescaled to the cost of normalizedOps operations, and only when
//	both ends carry at least two samples. Every result with two or more
//	samples also gets a confidence interval over the same rescaled samples,
//	so intervals of different ops are directly comparable.
//
// Inputs:
//   - results: Benchmark results. Nil entries are skipped.
//
// Outputs:
//   - *ComparisonResult: Never nil. Empty when fewer than one result exists.
func Compare(results []*Result) *ComparisonResult {
	cr := &ComparisonResult{
		Results:         make(map[string]*Result, len(results)),
		Intervals:       make(map[string]Interval, len(results)),
		ConfidenceLevel: DefaultConfidenceLevel,
		PValue:          1,
	}

	ranked := make([]*Result, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		cr.Results[r.Name] = r
		ranked = append(ranked, r)
		if n := normalize(r); len(n) >= 2 {
			lo, hi := ConfidenceInterval(n, cr.ConfidenceLevel)
			cr.Intervals[r.Name] = Interval{Lower: lo, Upper: hi}
		}
	}
	slices.SortStableFunc(ranked, func(a, b *Result) int {
		if c := cmp.Compare(b.Throughput.OpsPerSecond, a.Throughput.OpsPerSecond); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	cr.Ranking = make([]string, len(ranked))
	for i, r := range ranked {
		cr.Ranking[i] = r.Name
	}
	if len(ranked) == 0 {
		return cr
	}

	fastest, slowest := ranked[0], ranked[len(ranked)-1]
	cr.Fastest, cr.Slowest = fastest.Name, slowest.Name
	if slowest.Throughput.OpsPerSecond > 0 {
		cr.Speedup = fastest.Throughput.OpsPerSecond / slowest.Throughput.OpsPerSecond
	}

	a, b := normalize(fastest), normalize(slowest)
	if len(ranked) >= 2 && len(a) >= 2 && len(b) >= 2 {
		_, cr.PValue = WelchTTest(a, b)
		cr.Significant = cr.PValue < 1-cr.ConfidenceLevel
		cr.EffectSize = CalculateCohensD(a, b)
		cr.EffectSizeCategory = CategorizeEffectSize(cr.EffectSize)
	}
	return cr
}

// normalize rescales each sample to the time normalizedOps operations take.
func normalize(r *Result) []time.Duration {
	if r.Iterations <= 0 {
		return nil
	}
	scale := float64(normalizedOps) / float64(r.Iterations)
	out := make([]time.Duration, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = time.Duration(float64(s) * scale)
	}
	return out
}
