// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reduce folds a word slice with a bitwise operator across a fixed
// pool of workers.
//
// # Description
//
// The input is split into contiguous near-equal partitions. Each worker folds
// its partition left-to-right into its own cache-line padded slot. After all
// workers join, partials are combined in ascending worker index. For AND, OR
// and XOR the result equals the serial left fold for every worker count.
//
// # Thread Safety
//
// Reduce is safe to call concurrently. The input slice is read-only during
// the call and must not be mutated by the caller until Reduce returns.
package reduce

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

const cacheLineSize = 64

// slot is one worker's partial. Padding keeps neighbouring slots on distinct
// cache lines.
type slot struct {
	value uint64
	set   bool
	_     [cacheLineSize - 9]byte
}

// Options configures a reduction.
type Options struct {
	// Workers is the worker count. 0 means runtime.NumCPU().
	Workers int

	// AllowUnordered permits non-associative operators. Each non-empty
	// partition folds from its first element and partials combine in index
	// order, so the result depends on Workers.
	AllowUnordered bool
}

// Result is the outcome of a reduction.
type Result struct {
	// Op is the operator applied.
	Op bitops.Op `json:"-"`

	// Value is the reduced word.
	Value uint64 `json:"value"`

	// Workers is the resolved worker count.
	Workers int `json:"workers"`

	// Length is the input length.
	Length int `json:"length"`

	// Elapsed is the wall time from partitioning to final combine.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Range is a half-open index range [Start, End).
type Range struct {
	Start, End int
}

// Len returns End - Start.
func (r Range) Len() int { return r.End - r.Start }

// Partition splits n elements into t contiguous ranges whose sizes differ by
// at most one. The first n%t ranges get the extra element. Ranges may be
// empty when n < t. t <= 0 is treated as 1.
func Partition(n, t int) []Range {
	if t <= 0 {
		t = 1
	}
	if n < 0 {
		n = 0
	}
	out := make([]Range, t)
	base, extra := n/t, n%t
	start := 0
	for i := 0; i < t; i++ {
		size := base
		if i < extra {
			size++
		}
		out[i] = Range{Start: start, End: start + size}
		start += size
	}
	return out
}

// ResolveWorkers maps 0 to runtime.NumCPU().
func ResolveWorkers(n int) int {
	if n == 0 {
		return runtime.NumCPU()
	}
	return n
}

// Reduce folds words with op across opts.Workers goroutines.
//
// # Inputs
//
//   - ctx: Checked before workers start. Running workers are not interrupted.
//   - words: Input. May be empty, in which case the result is the identity.
//   - op: Reducer. AND, OR and XOR are accepted; others require
//     opts.AllowUnordered.
//   - opts: Worker count and ordering policy.
//
// # Outputs
//
//   - Result: The reduced value with timing. Zero on error.
//   - error: faults.InvalidArgument for a negative worker count or unknown
//     op, faults.AllocationFailure above MaxWorkers,
//     faults.NonAssociativeReducer for a rejected op, or ctx.Err().
//
// # Limitations
//
//   - With AllowUnordered an empty input yields 0 for operators without an
//     identity.
func Reduce(ctx context.Context, words []uint64, op bitops.Op, opts Options) (Result, error) {
	fn := op.Func()
	if fn == nil {
		return Result{}, faults.New(faults.InvalidArgument, "reduce", op.String(), "unknown operator")
	}
	if opts.Workers < 0 {
		return Result{}, faults.New(faults.InvalidArgument, "reduce",
			fmt.Sprintf("workers=%d", opts.Workers), "worker count must be non-negative")
	}
	if opts.Workers > MaxWorkers {
		return Result{}, faults.New(faults.AllocationFailure, "reduce",
			fmt.Sprintf("workers=%d", opts.Workers), "cannot start more than %d workers", MaxWorkers)
	}
	identity, hasIdentity := op.Identity()
	if !op.Associative() && !opts.AllowUnordered {
		return Result{}, faults.New(faults.NonAssociativeReducer, "reduce", op.String(),
			"operator is not associative; enable unordered reduction to force it")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	workers := ResolveWorkers(opts.Workers)
	start := time.Now()
	ranges := Partition(len(words), workers)
	slots := make([]slot, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		if r.Len() == 0 && !hasIdentity {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = foldRange(words[r.Start:r.End], fn, identity, hasIdentity)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var acc slot
	for i := range slots {
		if !slots[i].set {
			continue
		}
		if !acc.set {
			acc = slots[i]
			continue
		}
		acc.value = fn(acc.value, slots[i].value)
	}
	if !acc.set && hasIdentity {
		acc.value = identity
	}

	return Result{
		Op:      op,
		Value:   acc.value,
		Workers: workers,
		Length:  len(words),
		Elapsed: time.Since(start),
	}, nil
}

// foldRange folds part from identity when one exists, otherwise from its
// first element.
func foldRange(part []uint64, fn bitops.Func, identity uint64, hasIdentity bool) slot {
	if hasIdentity {
		acc := identity
		for _, w := range part {
			acc = fn(acc, w)
		}
		return slot{value: acc, set: true}
	}
	if len(part) == 0 {
		return slot{}
	}
	acc := part[0]
	for _, w := range part[1:] {
		acc = fn(acc, w)
	}
	return slot{value: acc, set: true}
}

// SerialFold is the reference left fold. It starts from the identity when op
// has one, otherwise from words[0].
func SerialFold(words []uint64, op bitops.Op) uint64 {
	fn := op.Func()
	if fn == nil {
		return 0
	}
	identity, ok := op.Identity()
	return foldRange(words, fn, identity, ok).value
}

// MaxWorkers bounds the goroutines and slots one Reduce call allocates.
const MaxWorkers = 1 << 16

// MaxLength is the longest word array NewPattern allocates (8 GiB).
const MaxLength = 1 << 30

// NewPattern is FillPattern with a length check.
//
// # Outputs
//
//   - []uint64: FillPattern(n).
//   - error: faults.InvalidArgument for a negative n, faults.AllocationFailure
//     above MaxLength.
func NewPattern(n int) ([]uint64, error) {
	if n < 0 {
		return nil, faults.New(faults.InvalidArgument, "reduce.pattern",
			fmt.Sprintf("length=%d", n), "length must be non-negative")
	}
	if n > MaxLength {
		return nil, faults.New(faults.AllocationFailure, "reduce.pattern",
			fmt.Sprintf("length=%d", n), "cannot allocate more than %d words", MaxLength)
	}
	return FillPattern(n), nil
}

// FillPattern returns n deterministic index-derived words:
// word i = (i * 0x9E3779B97F4A7C15) ^ (1 << (i mod 64)).
func FillPattern(n int) []uint64 {
	if n < 0 {
		n = 0
	}
	out := make([]uint64, n)
	for i := range out {
		u := uint64(i)
		out[i] = (u * 0x9E3779B97F4A7C15) ^ (1 << (u % 64))
	}
	return out
}
