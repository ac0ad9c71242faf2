// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bitops

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/AleutianAI/bitbench/services/bitbench/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleWords returns edge-case words plus seeded random ones.
func sampleWords(n int) []uint64 {
	rng := rand.New(rand.NewPCG(1, 2))
	out := []uint64{0, AllOnes, Alternating, ^Alternating, HighContrast, 1, 1 << 63}
	for i := 0; i < n; i++ {
		out = append(out, rng.Uint64())
	}
	return out
}

// TestCommutativity verifies and, or, xor commute.
func TestCommutativity(t *testing.T) {
	words := sampleWords(64)
	for _, x := range words {
		for _, y := range words {
			assert.Equal(t, And(x, y), And(y, x))
			assert.Equal(t, Or(x, y), Or(y, x))
			assert.Equal(t, Xor(x, y), Xor(y, x))
		}
	}
}

// TestCarry_NotCommutative witnesses the asymmetry of carry.
func TestCarry_NotCommutative(t *testing.T) {
	assert.Equal(t, uint64(0xF0), Carry(0xFF, 0x0F))
	assert.Equal(t, uint64(0x00), Carry(0x0F, 0xFF))
}

// TestCarry_Complements checks every bit of a qualifies when b = ^a.
func TestCarry_Complements(t *testing.T) {
	assert.Equal(t, uint64(0xAAAAAAAAAAAAAAAA), Carry(0xAAAAAAAAAAAAAAAA, 0x5555555555555555))
}

// TestIdentities verifies the neutral elements and self-inverse of xor.
func TestIdentities(t *testing.T) {
	for _, x := range sampleWords(128) {
		assert.Equal(t, x, And(x, AllOnes))
		assert.Equal(t, x, Or(x, 0))
		assert.Equal(t, x, Xor(x, 0))
		assert.Equal(t, uint64(0), Xor(x, x))
		assert.Equal(t, Not(And(x, x)), Nand(x, x))
	}
}

// TestInvolution verifies not(not(x)) = x and xor(xor(x,y),y) = x.
func TestInvolution(t *testing.T) {
	words := sampleWords(32)
	for _, x := range words {
		assert.Equal(t, x, Not(Not(x)))
		for _, y := range words {
			assert.Equal(t, x, Xor(Xor(x, y), y))
		}
	}
}

// TestRotation_RoundTrip verifies rotr(rotl(x,k),k) = x for all k, including k >= 64.
func TestRotation_RoundTrip(t *testing.T) {
	for _, x := range sampleWords(16) {
		for k := -70; k <= 140; k++ {
			require.Equal(t, x, Rotr(Rotl(x, k), k), "k=%d", k)
		}
		assert.Equal(t, x, Rotl(x, 0))
		assert.Equal(t, x, Rotl(x, 64))
		assert.Equal(t, Rotl(x, 3), Rotl(x, 67))
	}
}

// TestRotl_Formula compares against the shift formula.
func TestRotl_Formula(t *testing.T) {
	x := uint64(0xFFFF0000FFFF0000)
	for k := 1; k < 64; k++ {
		want := (x << uint(k)) | (x >> uint(64-k))
		assert.Equal(t, want, Rotl(x, k), "k=%d", k)
	}
}

// TestTransitions_Bounds verifies the range and the alternating witnesses.
func TestTransitions_Bounds(t *testing.T) {
	assert.Equal(t, 63, Transitions(0xAAAAAAAAAAAAAAAA))
	assert.Equal(t, 63, Transitions(0x5555555555555555))
	assert.Equal(t, 0, Transitions(0))
	assert.Equal(t, 0, Transitions(AllOnes))
	assert.Equal(t, 1, Transitions(HighContrast))

	for _, x := range sampleWords(256) {
		n := Transitions(x)
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, 63)
	}
}

// TestPopcount spot-checks set bit counting.
func TestPopcount(t *testing.T) {
	assert.Equal(t, 0, Popcount(0))
	assert.Equal(t, 64, Popcount(AllOnes))
	assert.Equal(t, 32, Popcount(HighContrast))
	assert.Equal(t, 32, Popcount(Alternating))
}

// TestNeighborhoodXorWord checks interior cells and fixed edges.
func TestNeighborhoodXorWord(t *testing.T) {
	// Single interior bit spreads to both neighbours.
	assert.Equal(t, uint64(0b111<<9), NeighborhoodXorWord(1<<10))

	// Edge cells keep their value; bit 1 sees bit 0.
	assert.Equal(t, uint64(0b11), NeighborhoodXorWord(1))
	assert.Equal(t, uint64(0b11<<62), NeighborhoodXorWord(1<<63))

	// All ones: interior cells are 1^1^1 = 1, edges keep 1.
	assert.Equal(t, AllOnes, NeighborhoodXorWord(AllOnes))
}

func TestOp_Metadata(t *testing.T) {
	tests := []struct {
		op          Op
		name        string
		associative bool
		identity    uint64
		hasIdentity bool
	}{
		{OpAnd, "and", true, AllOnes, true},
		{OpOr, "or", true, 0, true},
		{OpXor, "xor", true, 0, true},
		{OpNand, "nand", false, 0, false},
		{OpCarry, "carry", false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.op.String())
			assert.Equal(t, tt.associative, tt.op.Associative())
			id, ok := tt.op.Identity()
			assert.Equal(t, tt.hasIdentity, ok)
			assert.Equal(t, tt.identity, id)
			require.NotNil(t, tt.op.Func())

			parsed, err := ParseOp(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.op, parsed)
		})
	}

	assert.Nil(t, OpUnknown.Func())
	assert.Equal(t, "op(99)", Op(99).String())
}

// TestOp_IdentityIsNeutral verifies id op x = x for associative ops.
func TestOp_IdentityIsNeutral(t *testing.T) {
	for _, op := range AllOps() {
		id, ok := op.Identity()
		if !ok {
			continue
		}
		fn := op.Func()
		for _, x := range sampleWords(32) {
			assert.Equal(t, x, fn(id, x), op.String())
		}
	}
}

func TestParseOp_Unknown(t *testing.T) {
	_, err := ParseOp("majority")
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "majority")

	op, err := ParseOp("  XOR ")
	require.NoError(t, err)
	assert.Equal(t, OpXor, op)

	ops, err := ParseOps([]string{"and", "carry"})
	require.NoError(t, err)
	assert.Equal(t, []Op{OpAnd, OpCarry}, ops)

	_, err = ParseOps([]string{"and", "nope"})
	assert.Error(t, err)
}

func BenchmarkCarry(b *testing.B) {
	x, y := uint64(0xDEADBEEFCAFEBABE), uint64(0x0123456789ABCDEF)
	for i := 0; i < b.N; i++ {
		x = Carry(x, y) ^ uint64(i)
	}
	sinkWord = x
}

func BenchmarkTransitions(b *testing.B) {
	x := uint64(0xDEADBEEFCAFEBABE)
	n := 0
	for i := 0; i < b.N; i++ {
		n += Transitions(x ^ uint64(i))
	}
	sinkInt = n
}

var (
	sinkWord uint64
	sinkInt  int
)
