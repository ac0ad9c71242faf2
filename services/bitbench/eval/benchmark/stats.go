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
	"errors"
	"math"
	"slices"
	"time"
)

// ErrNoSamples indicates that statistics were requested over no samples.
var ErrNoSamples = errors.New("no samples collected")

// CalculateLatencyStats computes min, max, mean, median, population
// variance and percentiles over samples.
//
// Inputs:
//   - samples: Duration samples. Must not be empty.
//
// Outputs:
//   - LatencyStats: Computed statistics.
//   - error: ErrNoSamples if samples is empty.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func CalculateLatencyStats(samples []time.Duration) (LatencyStats, error) {
	if len(samples) == 0 {
		return LatencyStats{}, ErrNoSamples
	}
	sorted := sortedCopy(samples)

	mean := meanOf(samples)
	variance := varianceOf(samples, mean)
	median := percentile(sorted, 0.5)

	return LatencyStats{
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		Mean:     time.Duration(mean),
		Median:   median,
		StdDev:   time.Duration(math.Sqrt(variance)),
		Variance: variance,
		P50:      median,
		P90:      percentile(sorted, 0.9),
		P95:      percentile(sorted, 0.95),
		P99:      percentile(sorted, 0.99),
		P999:     percentile(sorted, 0.999),
	}, nil
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return time.Duration(float64(sorted[lo])*(1-frac) + float64(sorted[hi])*frac)
}

// RemoveOutliers drops samples outside [Q1 - k*IQR, Q3 + k*IQR].
//
// Fewer than four samples are returned unchanged, as is the input when the
// filter would discard more than half of it.
func RemoveOutliers(samples []time.Duration, threshold float64) []time.Duration {
	if len(samples) < 4 {
		return samples
	}
	sorted := sortedCopy(samples)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	margin := time.Duration(threshold * float64(q3-q1))
	lo, hi := q1-margin, q3+margin

	kept := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		if s >= lo && s <= hi {
			kept = append(kept, s)
		}
	}
	if len(kept) < len(samples)/2 {
		return samples
	}
	return kept
}

// CategorizeEffectSize buckets |d| by Cohen's thresholds.
func CategorizeEffectSize(d float64) EffectSizeCategory {
	switch d = math.Abs(d); {
	case d < 0.2:
		return EffectNegligible
	case d < 0.5:
		return EffectSmall
	case d < 0.8:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// CalculateCohensD returns (mean1 - mean2) / pooled stddev, 0 when either
// set is empty or the pooled deviation vanishes.
func CalculateCohensD(samples1, samples2 []time.Duration) float64 {
	n1, n2 := float64(len(samples1)), float64(len(samples2))
	if n1 == 0 || n2 == 0 || n1+n2 <= 2 {
		return 0
	}
	m1, m2 := meanOf(samples1), meanOf(samples2)
	pooled := ((n1-1)*varianceOf(samples1, m1) + (n2-1)*varianceOf(samples2, m2)) / (n1 + n2 - 2)
	sd := math.Sqrt(pooled)
	if sd == 0 {
		return 0
	}
	return (m1 - m2) / sd
}

// WelchTTest performs Welch's unequal-variance t-test.
//
// Outputs:
//   - tStatistic: Negative when samples1 has the lower mean.
//   - pValue: Approximate two-tailed p-value, 1 when either set has fewer
//     than two samples or both have zero variance.
//
// Limitations:
//   - The p-value uses a normal approximation, scaled for df < 30.
func WelchTTest(samples1, samples2 []time.Duration) (tStatistic, pValue float64) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return 0, 1
	}
	n1, n2 := float64(len(samples1)), float64(len(samples2))
	m1, m2 := meanOf(samples1), meanOf(samples2)
	a := varianceOf(samples1, m1) / n1
	b := varianceOf(samples2, m2) / n2

	se := math.Sqrt(a + b)
	if se == 0 {
		return 0, 1
	}
	tStatistic = (m1 - m2) / se

	denom := a*a/(n1-1) + b*b/(n2-1)
	if denom == 0 {
		return tStatistic, 1
	}
	df := (a + b) * (a + b) / denom

	z := math.Abs(tStatistic)
	if df < 30 && df > 2 {
		z *= math.Sqrt(df / (df - 2))
	}
	return tStatistic, 2 * normalCDF(-z)
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ConfidenceInterval returns a symmetric interval around the sample mean.
// Sets of 30 or more use z-scores; smaller sets use t critical values.
func ConfidenceInterval(samples []time.Duration, confidenceLevel float64) (lower, upper time.Duration) {
	switch len(samples) {
	case 0:
		return 0, 0
	case 1:
		return samples[0], samples[0]
	}
	mean := meanOf(samples)
	stdErr := math.Sqrt(varianceOf(samples, mean) / float64(len(samples)))
	margin := criticalValue(len(samples)-1, confidenceLevel) * stdErr
	return time.Duration(mean - margin), time.Duration(mean + margin)
}

// Two-tailed t critical values for df 1..30.
var (
	t90 = [30]float64{6.314, 2.920, 2.353, 2.132, 2.015, 1.943, 1.895, 1.860, 1.833, 1.812,
		1.796, 1.782, 1.771, 1.761, 1.753, 1.746, 1.740, 1.734, 1.729, 1.725,
		1.721, 1.717, 1.714, 1.711, 1.708, 1.706, 1.703, 1.701, 1.699, 1.697}
	t95 = [30]float64{12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
		2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
		2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042}
	t99 = [30]float64{63.657, 9.925, 5.841, 4.604, 4.032, 3.707, 3.499, 3.355, 3.250, 3.169,
		3.106, 3.055, 3.012, 2.977, 2.947, 2.921, 2.898, 2.878, 2.861, 2.845,
		2.831, 2.819, 2.807, 2.797, 2.787, 2.779, 2.771, 2.763, 2.756, 2.750}
)

func criticalValue(df int, level float64) float64 {
	if df >= 29 {
		switch {
		case level >= 0.99:
			return 2.576
		case level >= 0.95:
			return 1.96
		default:
			return 1.645
		}
	}
	df = max(df, 1)
	switch {
	case level >= 0.99:
		return t99[df-1]
	case level >= 0.95:
		return t95[df-1]
	default:
		return t90[df-1]
	}
}

func sortedCopy(samples []time.Duration) []time.Duration {
	out := slices.Clone(samples)
	slices.Sort(out)
	return out
}

func meanOf(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	return sum / float64(len(samples))
}

// varianceOf is the population variance.
func varianceOf(samples []time.Duration, mean float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var acc float64
	for _, s := range samples {
		d := float64(s) - mean
		acc += d * d
	}
	return acc / float64(len(samples))
}
