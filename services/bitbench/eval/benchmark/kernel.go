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
	"math/rand/v2"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
)

const (
	ringSize = 256
	ringMask = ringSize - 1
)

// ring is the operand stream cycled by every timed loop.
type ring [ringSize]uint64

// newRing fills a ring from a seeded PCG stream. Equal seeds give equal rings.
func newRing(seed uint64) *ring {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	r := new(ring)
	for i := range r {
		r[i] = rng.Uint64()
	}
	return r
}

// kernel applies one op n times, folding each ring entry into acc.
type kernel func(r *ring, n int64, acc uint64) uint64

// kernelFor returns the loop for op with its body inlined, nil for unknown ops.
func kernelFor(op bitops.Op) kernel {
	switch op {
	case bitops.OpAnd:
		return func(r *ring, n int64, acc uint64) uint64 {
			for i := int64(0); i < n; i++ {
				acc &= r[i&ringMask]
			}
			return acc
		}
	case bitops.OpOr:
		return func(r *ring, n int64, acc uint64) uint64 {
			for i := int64(0); i < n; i++ {
				acc |= r[i&ringMask]
			}
			return acc
		}
	case bitops.OpXor:
		return func(r *ring, n int64, acc uint64) uint64 {
			for i := int64(0); i < n; i++ {
				acc ^= r[i&ringMask]
			}
			return acc
		}
	case bitops.OpNand:
		return func(r *ring, n int64, acc uint64) uint64 {
			for i := int64(0); i < n; i++ {
				acc = ^(acc & r[i&ringMask])
			}
			return acc
		}
	case bitops.OpCarry:
		return func(r *ring, n int64, acc uint64) uint64 {
			for i := int64(0); i < n; i++ {
				acc = (acc ^ r[i&ringMask]) & acc
			}
			return acc
		}
	default:
		return nil
	}
}
