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
	"testing"
	"time"
)

func ms(vals ...int) []time.Duration {
	out := make([]time.Duration, len(vals))
	for i, v := range vals {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}

func TestCalculateLatencyStats(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if _, err := CalculateLatencyStats(nil); !errors.Is(err, ErrNoSamples) {
			t.Errorf("err = %v, want ErrNoSamples", err)
		}
	})

	t.Run("single", func(t *testing.T) {
		stats, err := CalculateLatencyStats(ms(10))
		if err != nil {
			t.Fatal(err)
		}
		if stats.Min != 10*time.Millisecond || stats.Max != 10*time.Millisecond || stats.P99 != 10*time.Millisecond {
			t.Errorf("single-sample stats = %+v", stats)
		}
		if stats.StdDev != 0 {
			t.Errorf("StdDev = %v, want 0", stats.StdDev)
		}
	})

	t.Run("unsorted input", func(t *testing.T) {
		stats, err := CalculateLatencyStats(ms(50, 10, 30, 20, 40))
		if err != nil {
			t.Fatal(err)
		}
		if stats.Min != 10*time.Millisecond {
			t.Errorf("Min = %v, want 10ms", stats.Min)
		}
		if stats.Max != 50*time.Millisecond {
			t.Errorf("Max = %v, want 50ms", stats.Max)
		}
		if stats.Mean != 30*time.Millisecond {
			t.Errorf("Mean = %v, want 30ms", stats.Mean)
		}
		if stats.Median != 30*time.Millisecond || stats.P50 != stats.Median {
			t.Errorf("Median = %v, P50 = %v, want 30ms", stats.Median, stats.P50)
		}
		// population variance of {10..50} in ms^2 is 200
		wantVar := 200 * float64(time.Millisecond) * float64(time.Millisecond)
		if math.Abs(stats.Variance-wantVar)/wantVar > 1e-9 {
			t.Errorf("Variance = %v, want %v", stats.Variance, wantVar)
		}
		if d := stats.P90 - 46*time.Millisecond; d > time.Nanosecond || d < -time.Nanosecond {
			t.Errorf("P90 = %v, want 46ms", stats.P90)
		}
	})
}

func TestPercentile(t *testing.T) {
	sorted := ms(10, 20, 30, 40)
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 40 * time.Millisecond},
		{0.5, 25 * time.Millisecond},
		{1.0 / 3, 20 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestRemoveOutliers(t *testing.T) {
	t.Run("removes spike", func(t *testing.T) {
		in := ms(10, 11, 12, 11, 10, 12, 1000)
		out := RemoveOutliers(in, 1.5)
		if len(out) != 6 {
			t.Fatalf("len = %d, want 6", len(out))
		}
		for _, s := range out {
			if s == 1000*time.Millisecond {
				t.Error("outlier not removed")
			}
		}
	})

	t.Run("small input unchanged", func(t *testing.T) {
		in := ms(1, 1000, 5)
		if out := RemoveOutliers(in, 1.5); len(out) != 3 {
			t.Errorf("len = %d, want 3", len(out))
		}
	})
}

func TestCategorizeEffectSize(t *testing.T) {
	tests := []struct {
		d    float64
		want EffectSizeCategory
	}{
		{0.1, EffectNegligible},
		{-0.3, EffectSmall},
		{0.6, EffectMedium},
		{-0.9, EffectLarge},
	}
	for _, tt := range tests {
		if got := CategorizeEffectSize(tt.d); got != tt.want {
			t.Errorf("CategorizeEffectSize(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
	if EffectSizeCategory(99).String() != "unknown" {
		t.Error("out-of-range category should be unknown")
	}
}

func TestCalculateCohensD(t *testing.T) {
	fast := ms(10, 11, 12, 11)
	slow := ms(100, 101, 102, 101)
	d := CalculateCohensD(fast, slow)
	if d >= -0.8 {
		t.Errorf("d = %v, want large negative", d)
	}
	if CalculateCohensD(nil, slow) != 0 {
		t.Error("empty set should give 0")
	}
	if CalculateCohensD(ms(5, 5), ms(5, 5)) != 0 {
		t.Error("zero variance should give 0")
	}
}

func TestWelchTTest(t *testing.T) {
	fast := ms(10, 11, 12, 11, 10, 12, 11, 10)
	slow := ms(100, 101, 102, 101, 100, 102, 101, 100)
	tStat, p := WelchTTest(fast, slow)
	if tStat >= 0 {
		t.Errorf("t = %v, want negative", tStat)
	}
	if p >= 0.05 {
		t.Errorf("p = %v, want < 0.05", p)
	}

	if _, p := WelchTTest(ms(1), slow); p != 1 {
		t.Errorf("too few samples p = %v, want 1", p)
	}
	if _, p := WelchTTest(ms(5, 5, 5), ms(5, 5, 5)); p != 1 {
		t.Errorf("zero variance p = %v, want 1", p)
	}
}

func TestConfidenceInterval(t *testing.T) {
	samples := ms(10, 12, 14, 16, 18)
	lower, upper := ConfidenceInterval(samples, 0.95)
	mean := 14 * time.Millisecond
	if lower >= mean || upper <= mean {
		t.Errorf("interval [%v, %v] does not contain mean %v", lower, upper, mean)
	}
	if mean-lower != upper-mean {
		// floating rounding may shift one nanosecond
		if diff := (mean - lower) - (upper - mean); diff > time.Nanosecond || diff < -time.Nanosecond {
			t.Errorf("interval not symmetric: [%v, %v]", lower, upper)
		}
	}

	l99, u99 := ConfidenceInterval(samples, 0.99)
	if u99-l99 <= upper-lower {
		t.Error("99% interval should be wider than 95%")
	}

	if l, u := ConfidenceInterval(ms(7), 0.95); l != 7*time.Millisecond || u != 7*time.Millisecond {
		t.Errorf("single sample interval = [%v, %v]", l, u)
	}
}
