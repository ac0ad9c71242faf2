// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bitops provides pure bitwise transforms on 64-bit words and on
// fixed-width bit arrays.
//
// Word functions are total and never fail. WideState operations reject
// unsupported widths and binary operations between states of different width.
//
// Bit numbering is little-endian throughout: bit 0 is the least significant
// bit of word 0, and shifting or rotating "left" moves bits toward higher
// indices, exactly like the << operator on a single uint64.
package bitops

import "math/bits"

// WordBits is the width of a Word.
const WordBits = 64

const (
	// AllOnes is the word with every bit set.
	AllOnes uint64 = ^uint64(0)

	// Alternating is 0xAAAA..., bit i set for every odd i.
	Alternating uint64 = 0xAAAAAAAAAAAAAAAA

	// HighContrast has the top 32 bits set and the bottom 32 clear.
	HighContrast uint64 = 0xFFFFFFFF00000000

	lowMask63 uint64 = 1<<63 - 1
	edgeBits  uint64 = 1 | 1<<63
)

// And returns a & b.
func And(a, b uint64) uint64 { return a & b }

// Or returns a | b.
func Or(a, b uint64) uint64 { return a | b }

// Xor returns a ^ b.
func Xor(a, b uint64) uint64 { return a ^ b }

// Nand returns ^(a & b).
func Nand(a, b uint64) uint64 { return ^(a & b) }

// Not returns ^x.
func Not(x uint64) uint64 { return ^x }

// Carry returns (a ^ b) & a: the bits of a where a differs from b.
//
// This is not arithmetic carry. It is neither commutative nor associative:
// Carry(0xFF, 0x0F) = 0xF0 while Carry(0x0F, 0xFF) = 0x00.
func Carry(a, b uint64) uint64 { return (a ^ b) & a }

// Rotl rotates x left by k bits. k is reduced modulo 64, negative k rotates right.
func Rotl(x uint64, k int) uint64 {
	return bits.RotateLeft64(x, mod(k, WordBits))
}

// Rotr rotates x right by k bits. k is reduced modulo 64.
func Rotr(x uint64, k int) uint64 {
	return bits.RotateLeft64(x, -mod(k, WordBits))
}

// Popcount returns the number of set bits in x.
func Popcount(x uint64) int { return bits.OnesCount64(x) }

// Transitions counts the adjacent bit pairs (i, i+1), i in 0..62, whose
// values differ. The result is in [0, 63]; both 0xAAAA... and 0x5555...
// reach 63.
func Transitions(x uint64) int {
	return bits.OnesCount64((x ^ (x >> 1)) & lowMask63)
}

// NeighborhoodXorWord applies the three-cell XOR rule to a single word.
//
// next[i] = prev[i-1] ^ prev[i] ^ prev[i+1] for 0 < i < 63; bits 0 and 63
// keep their previous value.
func NeighborhoodXorWord(x uint64) uint64 {
	next := (x << 1) ^ x ^ (x >> 1)
	return next&^edgeBits | x&edgeBits
}

// mod reduces k into [0, n).
func mod(k, n int) int {
	k %= n
	if k < 0 {
		k += n
	}
	return k
}
