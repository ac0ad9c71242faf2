// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evolve

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
	"github.com/AleutianAI/bitbench/services/bitbench/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWord_XorRotOneStep(t *testing.T) {
	const initial = uint64(0xFFFF0000FFFF0000)
	e, err := New(XorRot(3))
	require.NoError(t, err)

	tr, err := e.RunWord(initial, 1)
	require.NoError(t, err)
	require.Equal(t, 2, tr.Len())

	want := initial ^ bitops.Rotl(initial, 3)
	assert.Equal(t, want, tr.Final())
	assert.Equal(t, uint64(0x0007000700070007), tr.Final())
	assert.Equal(t, []int{pattern.Hamming(initial, want)}, tr.HammingSteps())
}

func TestRun_TraceShape(t *testing.T) {
	start, err := PresetHighContrast.Wide(256, nil)
	require.NoError(t, err)
	e, err := New(OrRot(5))
	require.NoError(t, err)

	tr, err := e.Run(start, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, tr.Len())
	assert.Equal(t, 256, tr.Width())
	assert.True(t, tr.At(0).Equal(start))
	assert.Len(t, tr.Samples(), 11)
	assert.Len(t, tr.HammingSteps(), 10)

	zero, err := e.Run(start, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, zero.Len())
	assert.Nil(t, zero.HammingSteps())
}

func TestRun_InitialNotMutated(t *testing.T) {
	start, _ := PresetAlternating.Wide(128, nil)
	before := start.Clone()
	e, _ := New(NeighborhoodXor())
	_, err := e.Run(start, 5)
	require.NoError(t, err)
	assert.True(t, start.Equal(before))
}

// TestRun_Deterministic runs every rule twice from the same state and
// requires identical traces.
func TestRun_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(12, 34))
	for _, rule := range []Rule{XorRot(3), AndRot(7), OrRot(1), NeighborhoodXor(), PopcountInvert(100)} {
		for _, w := range bitops.SupportedWidths {
			words := make([]uint64, w/64)
			for i := range words {
				words[i] = rng.Uint64()
			}
			start, err := PresetExternal.Wide(w, words)
			require.NoError(t, err)

			e, err := New(rule)
			require.NoError(t, err)
			a, err := e.Run(start, 16)
			require.NoError(t, err)
			b, err := e.Run(start, 16)
			require.NoError(t, err)

			for i := 0; i < a.Len(); i++ {
				require.True(t, a.At(i).Equal(b.At(i)), "%s w=%d step %d", rule, w, i)
			}
			assert.Equal(t, a.Samples(), b.Samples())
		}
	}
}

// TestRun_WideMatchesWord checks width-64 runs agree with RunWord.
func TestRun_WideMatchesWord(t *testing.T) {
	for _, rule := range []Rule{XorRot(3), AndRot(9), OrRot(60), NeighborhoodXor(), PopcountInvert(20)} {
		x := uint64(0x0123456789ABCDEF)
		e, err := New(rule)
		require.NoError(t, err)

		wt, err := e.RunWord(x, 8)
		require.NoError(t, err)
		start, _ := bitops.FromWords(64, []uint64{x})
		tr, err := e.Run(start, 8)
		require.NoError(t, err)

		states := wt.States()
		for i := range states {
			assert.Equal(t, states[i], tr.At(i).Word(0), "%s step %d", rule, i)
		}
		assert.Equal(t, wt.Samples(), tr.Samples())
	}
}

func TestRule_Semantics(t *testing.T) {
	x := uint64(0xF0F0_0000_0000_000F)
	assert.Equal(t, x&bitops.Rotr(x, 4), AndRot(4).ApplyWord(x))
	assert.Equal(t, x|bitops.Rotl(x, 4), OrRot(4).ApplyWord(x))
	assert.Equal(t, bitops.NeighborhoodXorWord(x), NeighborhoodXor().ApplyWord(x))

	pc := bitops.Popcount(x)
	assert.Equal(t, ^x, PopcountInvert(pc-1).ApplyWord(x))
	assert.Equal(t, x, PopcountInvert(pc).ApplyWord(x))

	assert.Equal(t, uint64(0), XorRot(0).ApplyWord(x), "rotation by 0 cancels")
	assert.Equal(t, uint64(0), XorRot(64).ApplyWord(x))
}

func TestPresets(t *testing.T) {
	tests := []struct {
		preset   Preset
		popcount func(w int) int
	}{
		{PresetVoid, func(int) int { return 0 }},
		{PresetMaxOrder, func(w int) int { return w }},
		{PresetAlternating, func(w int) int { return w / 2 }},
		{PresetHighContrast, func(w int) int { return w / 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.preset.String(), func(t *testing.T) {
			for _, w := range bitops.SupportedWidths {
				s, err := tt.preset.Wide(w, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.popcount(w), s.Popcount())
			}
		})
	}

	hc, err := PresetHighContrast.Word(nil)
	require.NoError(t, err)
	assert.Equal(t, bitops.HighContrast, hc)

	alt, _ := PresetAlternating.Wide(512, nil)
	assert.Equal(t, 511, alt.Transitions())

	_, err = PresetExternal.Wide(128, nil)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
	_, err = PresetExternal.Wide(128, []uint64{1})
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
	_, err = PresetVoid.Wide(100, nil)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
}

func TestParsePreset(t *testing.T) {
	for _, name := range PresetNames() {
		p, err := ParsePreset(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}
	p, err := ParsePreset(" max_order ")
	require.NoError(t, err)
	assert.Equal(t, PresetMaxOrder, p)

	_, err = ParsePreset("CHAOS")
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		name      string
		k, thresh int
		want      Rule
		wantErr   bool
	}{
		{name: "xor_rot", k: 3, want: XorRot(3)},
		{name: "AND_ROT", k: 1, want: AndRot(1)},
		{name: "or_rot(5)", k: 1, want: OrRot(5)},
		{name: "neighborhood_xor", want: NeighborhoodXor()},
		{name: "popcount_invert", thresh: 32, want: PopcountInvert(32)},
		{name: "popcount_invert(40)", want: PopcountInvert(40)},
		{name: "popcount_invert", thresh: -1, wantErr: true},
		{name: "xor_rot(x)", wantErr: true},
		{name: "life", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRule(tt.name, tt.k, tt.thresh)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "xor_rot(3)", XorRot(3).String())
	assert.Equal(t, "neighborhood_xor", NeighborhoodXor().String())
}

func TestRun_InvalidArguments(t *testing.T) {
	e, err := New(XorRot(1), WithMaxSteps(100))
	require.NoError(t, err)

	_, err = e.RunWord(1, -1)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
	_, err = e.RunWord(1, 101)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
	_, err = e.Run(nil, 1)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))

	_, err = New(Rule{})
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
}

func TestWithObserver(t *testing.T) {
	var steps []int
	var entropies []float64
	e, err := New(PopcountInvert(40), WithObserver(func(step int, s *bitops.WideState, sm pattern.Sample) {
		steps = append(steps, step)
		entropies = append(entropies, sm.Entropy)
		assert.Equal(t, s.Popcount(), sm.Popcount)
	}))
	require.NoError(t, err)

	tr, err := e.RunWord(^uint64(0), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, steps)
	assert.Equal(t, []uint64{^uint64(0), 0, 0, 0}, tr.States())
	assert.Equal(t, []float64{0, 0, 0, 0}, entropies)
}

func TestWithObserver_MutationDoesNotLeak(t *testing.T) {
	initial, err := PresetHighContrast.Wide(128, nil)
	require.NoError(t, err)
	plain, err := New(XorRot(3))
	require.NoError(t, err)
	want, err := plain.Run(initial, 4)
	require.NoError(t, err)

	e, err := New(XorRot(3), WithObserver(func(_ int, s *bitops.WideState, _ pattern.Sample) {
		s.Fill(0)
		s.SetBit(5, true)
	}))
	require.NoError(t, err)
	got, err := e.Run(initial, 4)
	require.NoError(t, err)

	require.Equal(t, 5, got.Len())
	for i := 0; i < got.Len(); i++ {
		assert.True(t, want.At(i).Equal(got.At(i)), "state %d changed by observer", i)
	}
}
