// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reduce

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"unsafe"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce_OrSixBits(t *testing.T) {
	words := []uint64{0x01, 0x02, 0x04, 0x08, 0x10, 0x20}
	for _, threads := range []int{1, 2, 3, 6, 12} {
		res, err := Reduce(context.Background(), words, bitops.OpOr, Options{Workers: threads})
		require.NoError(t, err, "threads=%d", threads)
		assert.Equal(t, uint64(0x3F), res.Value, "threads=%d", threads)
		assert.Equal(t, threads, res.Workers)
		assert.Equal(t, 6, res.Length)
	}
}

// TestReduce_MatchesSerialFold checks associative reducers agree with the
// left fold for every thread count.
func TestReduce_MatchesSerialFold(t *testing.T) {
	inputs := map[string][]uint64{
		"empty":   {},
		"single":  {0xDEADBEEF},
		"pattern": FillPattern(1000),
		"odd":     FillPattern(17),
	}
	for name, words := range inputs {
		for _, op := range []bitops.Op{bitops.OpAnd, bitops.OpOr, bitops.OpXor} {
			want := SerialFold(words, op)
			for _, threads := range []int{1, 2, 3, 4, 7, 16, 64} {
				res, err := Reduce(context.Background(), words, op, Options{Workers: threads})
				require.NoError(t, err)
				assert.Equal(t, want, res.Value, "%s %s threads=%d", name, op, threads)
			}
		}
	}
}

func TestReduce_EmptyIsIdentity(t *testing.T) {
	res, err := Reduce(context.Background(), nil, bitops.OpAnd, Options{Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, bitops.AllOnes, res.Value)

	res, err = Reduce(context.Background(), nil, bitops.OpXor, Options{Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Value)
}

func TestReduce_RejectsNonAssociative(t *testing.T) {
	for _, op := range []bitops.Op{bitops.OpCarry, bitops.OpNand} {
		_, err := Reduce(context.Background(), FillPattern(10), op, Options{Workers: 2})
		require.Error(t, err)
		assert.True(t, errors.Is(err, faults.ErrNonAssociativeReducer))
		assert.Contains(t, err.Error(), op.String())
		assert.Equal(t, faults.ExitContract, faults.ExitCode(err))
	}
}

func TestReduce_UnorderedCarry(t *testing.T) {
	words := FillPattern(64)
	res, err := Reduce(context.Background(), words, bitops.OpCarry, Options{Workers: 1, AllowUnordered: true})
	require.NoError(t, err)
	assert.Equal(t, SerialFold(words, bitops.OpCarry), res.Value)

	// More workers than elements leaves empty partitions out of the combine.
	res, err = Reduce(context.Background(), words[:3], bitops.OpCarry, Options{Workers: 8, AllowUnordered: true})
	require.NoError(t, err)
	want := bitops.Carry(bitops.Carry(words[0], words[1]), words[2])
	assert.Equal(t, want, res.Value)
}

func TestReduce_InvalidArguments(t *testing.T) {
	_, err := Reduce(context.Background(), nil, bitops.OpOr, Options{Workers: -1})
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))

	_, err = Reduce(context.Background(), nil, bitops.OpUnknown, Options{})
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
}

func TestReduce_TooManyWorkers(t *testing.T) {
	_, err := Reduce(context.Background(), FillPattern(8), bitops.OpOr, Options{Workers: MaxWorkers + 1})
	assert.ErrorIs(t, err, faults.ErrAllocationFailure)
	assert.Equal(t, faults.ExitContract, faults.ExitCode(err))

	res, err := Reduce(context.Background(), FillPattern(8), bitops.OpOr, Options{Workers: 64})
	require.NoError(t, err)
	assert.Equal(t, SerialFold(FillPattern(8), bitops.OpOr), res.Value)
}

func TestReduce_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Reduce(ctx, FillPattern(100), bitops.OpOr, Options{Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReduce_AutoWorkers(t *testing.T) {
	res, err := Reduce(context.Background(), FillPattern(100), bitops.OpXor, Options{})
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), res.Workers)
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, t  int
		sizes []int
	}{
		{n: 10, t: 3, sizes: []int{4, 3, 3}},
		{n: 6, t: 6, sizes: []int{1, 1, 1, 1, 1, 1}},
		{n: 2, t: 4, sizes: []int{1, 1, 0, 0}},
		{n: 0, t: 2, sizes: []int{0, 0}},
		{n: 5, t: 0, sizes: []int{5}},
	}
	for _, tt := range tests {
		ranges := Partition(tt.n, tt.t)
		require.Len(t, ranges, len(tt.sizes))
		next := 0
		for i, r := range ranges {
			assert.Equal(t, next, r.Start, "contiguous n=%d t=%d", tt.n, tt.t)
			assert.Equal(t, tt.sizes[i], r.Len())
			next = r.End
		}
		assert.Equal(t, tt.n, next, "covers n=%d t=%d", tt.n, tt.t)
	}
}

func TestSlotIsCacheLine(t *testing.T) {
	assert.Equal(t, uintptr(cacheLineSize), unsafe.Sizeof(slot{}))
}

func TestFillPattern(t *testing.T) {
	golden := uint64(0x9E3779B97F4A7C15)
	p := FillPattern(3)
	assert.Equal(t, []uint64{1, golden ^ 2, (2 * golden) ^ 4}, p)
	assert.Equal(t, FillPattern(100), FillPattern(100))
	assert.Empty(t, FillPattern(-1))
}

func BenchmarkReduceXor(b *testing.B) {
	words := FillPattern(1 << 16)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Reduce(ctx, words, bitops.OpXor, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func TestNewPattern(t *testing.T) {
	words, err := NewPattern(8)
	require.NoError(t, err)
	assert.Equal(t, FillPattern(8), words)

	_, err = NewPattern(-1)
	assert.ErrorIs(t, err, faults.ErrInvalidArgument)

	_, err = NewPattern(MaxLength + 1)
	assert.ErrorIs(t, err, faults.ErrAllocationFailure)
	assert.Equal(t, faults.ExitContract, faults.ExitCode(err))
}
