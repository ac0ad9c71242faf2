// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pattern computes scalar metrics over words and wide states:
// normalized popcount, binary Shannon entropy, transition complexity,
// Hamming distance and majority vote.
//
// All functions are deterministic and use float64 arithmetic only where a
// ratio is produced.
package pattern

import (
	"math"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
)

// Sample holds the metrics of one state.
type Sample struct {
	// Width is the bit width the sample was taken over.
	Width int `json:"width"`

	// Popcount is the number of set bits.
	Popcount int `json:"popcount"`

	// P is Popcount / Width, in [0, 1].
	P float64 `json:"p"`

	// Entropy is the binary Shannon entropy of P, in [0, 1].
	Entropy float64 `json:"entropy"`

	// Complexity is transitions / (Width - 1), in [0, 1].
	Complexity float64 `json:"complexity"`
}

// Ratio returns count / width, 0 for a non-positive width.
func Ratio(count, width int) float64 {
	if width <= 0 {
		return 0
	}
	return float64(count) / float64(width)
}

// Entropy returns -p*log2(p) - (1-p)*log2(1-p).
//
// p outside (0, 1) yields 0, so log2(0) is never evaluated. The result is
// clamped to [0, 1] to absorb rounding.
func Entropy(p float64) float64 {
	if !(p > 0 && p < 1) {
		return 0
	}
	h := -p*math.Log2(p) - (1-p)*math.Log2(1-p)
	return clamp01(h)
}

// EntropyWord is the entropy of x's bit distribution.
func EntropyWord(x uint64) float64 {
	return Entropy(Ratio(bitops.Popcount(x), bitops.WordBits))
}

// Hamming returns popcount(a ^ b).
func Hamming(a, b uint64) int {
	return bitops.Popcount(a ^ b)
}

// HammingWide returns the Hamming distance between two states of equal width.
func HammingWide(a, b *bitops.WideState) (int, error) {
	d, err := a.Xor(b)
	if err != nil {
		return 0, err
	}
	return d.Popcount(), nil
}

// ComplexityWord returns Transitions(x) / 63.
func ComplexityWord(x uint64) float64 {
	return clamp01(Ratio(bitops.Transitions(x), bitops.WordBits-1))
}

// Majority reports whether more than half of width bits are set.
func Majority(popcount, width int) bool {
	return popcount > width/2
}

// MajorityWord reports whether more than 32 bits of x are set.
func MajorityWord(x uint64) bool {
	return Majority(bitops.Popcount(x), bitops.WordBits)
}

// SampleWord computes every metric for a word.
func SampleWord(x uint64) Sample {
	pc := bitops.Popcount(x)
	p := Ratio(pc, bitops.WordBits)
	return Sample{
		Width:      bitops.WordBits,
		Popcount:   pc,
		P:          p,
		Entropy:    Entropy(p),
		Complexity: ComplexityWord(x),
	}
}

// SampleWide computes every metric for a wide state.
func SampleWide(s *bitops.WideState) Sample {
	w := s.Width()
	pc := s.Popcount()
	p := Ratio(pc, w)
	return Sample{
		Width:      w,
		Popcount:   pc,
		P:          p,
		Entropy:    Entropy(p),
		Complexity: clamp01(Ratio(s.Transitions(), w-1)),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
