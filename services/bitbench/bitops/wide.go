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
	"fmt"
	"math/bits"
	"strings"

	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// SupportedWidths is the closed set of WideState widths.
var SupportedWidths = []int{64, 128, 256, 512, 1024}

// ValidWidth reports whether w is a supported width.
func ValidWidth(w int) bool {
	for _, s := range SupportedWidths {
		if s == w {
			return true
		}
	}
	return false
}

// WideState is an N-bit array with N fixed at construction.
//
// Bit i lives in word i>>6 at position i&63. Transforms return a new state
// and leave the receiver untouched; SetBit and Fill mutate in place.
//
// Thread Safety: Not safe for concurrent mutation.
type WideState struct {
	width int
	words []uint64
}

// NewWideState returns the all-zero state of the given width.
//
// # Outputs
//
//   - *WideState: Zero state.
//   - error: faults.InvalidArgument if width is not supported.
func NewWideState(width int) (*WideState, error) {
	if !ValidWidth(width) {
		return nil, faults.New(faults.InvalidArgument, "bitops.new_wide_state",
			fmt.Sprintf("width=%d", width), "unsupported width, want one of %v", SupportedWidths)
	}
	return newState(width), nil
}

// FromWords builds a state from width/64 words, least significant word first.
// The words are copied.
func FromWords(width int, words []uint64) (*WideState, error) {
	s, err := NewWideState(width)
	if err != nil {
		return nil, err
	}
	if len(words) != len(s.words) {
		return nil, faults.New(faults.InvalidArgument, "bitops.from_words",
			fmt.Sprintf("words=%d", len(words)), "width %d needs %d words", width, len(s.words))
	}
	copy(s.words, words)
	return s, nil
}

// Filled returns a state whose every word equals w.
func Filled(width int, w uint64) (*WideState, error) {
	s, err := NewWideState(width)
	if err != nil {
		return nil, err
	}
	s.Fill(w)
	return s, nil
}

func newState(width int) *WideState {
	return &WideState{width: width, words: make([]uint64, width/WordBits)}
}

// Width returns N.
func (s *WideState) Width() int { return s.width }

// Words returns a copy of the backing words, least significant first.
func (s *WideState) Words() []uint64 {
	out := make([]uint64, len(s.words))
	copy(out, s.words)
	return out
}

// Word returns backing word i.
func (s *WideState) Word(i int) uint64 { return s.words[i] }

// Bit reports whether bit i is set. Out-of-range indices read as zero.
func (s *WideState) Bit(i int) bool {
	if i < 0 || i >= s.width {
		return false
	}
	return s.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// SetBit sets or clears bit i in place. Out-of-range indices are ignored.
func (s *WideState) SetBit(i int, v bool) {
	if i < 0 || i >= s.width {
		return
	}
	if v {
		s.words[i>>6] |= 1 << (uint(i) & 63)
	} else {
		s.words[i>>6] &^= 1 << (uint(i) & 63)
	}
}

// Fill sets every backing word to w in place.
func (s *WideState) Fill(w uint64) {
	for i := range s.words {
		s.words[i] = w
	}
}

// Clone returns an independent copy.
func (s *WideState) Clone() *WideState {
	out := newState(s.width)
	copy(out.words, s.words)
	return out
}

// Equal reports whether o has the same width and bits.
func (s *WideState) Equal(o *WideState) bool {
	if o == nil || s.width != o.width {
		return false
	}
	for i, w := range s.words {
		if o.words[i] != w {
			return false
		}
	}
	return true
}

// String renders the state as hex, most significant word first.
func (s *WideState) String() string {
	var b strings.Builder
	b.WriteString("0x")
	for i := len(s.words) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%016x", s.words[i])
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// Elementwise operations
// -----------------------------------------------------------------------------

// And returns s & o.
func (s *WideState) And(o *WideState) (*WideState, error) {
	return s.zip(o, "bitops.and", And)
}

// Or returns s | o.
func (s *WideState) Or(o *WideState) (*WideState, error) {
	return s.zip(o, "bitops.or", Or)
}

// Xor returns s ^ o.
func (s *WideState) Xor(o *WideState) (*WideState, error) {
	return s.zip(o, "bitops.xor", Xor)
}

// Apply combines s and o word by word with a named operation.
func (s *WideState) Apply(op Op, o *WideState) (*WideState, error) {
	fn := op.Func()
	if fn == nil {
		return nil, faults.New(faults.InvalidArgument, "bitops.apply", op.String(), "unknown operation")
	}
	return s.zip(o, "bitops."+op.String(), fn)
}

// Not returns the complement of s.
func (s *WideState) Not() *WideState {
	out := newState(s.width)
	for i, w := range s.words {
		out.words[i] = ^w
	}
	return out
}

func (s *WideState) zip(o *WideState, op string, fn Func) (*WideState, error) {
	if err := SameWidth(op, s, o); err != nil {
		return nil, err
	}
	out := newState(s.width)
	for i, w := range s.words {
		out.words[i] = fn(w, o.words[i])
	}
	return out, nil
}

// SameWidth returns faults.WidthMismatch unless a and b share a width.
func SameWidth(op string, a, b *WideState) error {
	if a == nil || b == nil {
		return faults.New(faults.InvalidArgument, op, "nil", "wide state must not be nil")
	}
	if a.width != b.width {
		return faults.New(faults.WidthMismatch, op,
			fmt.Sprintf("%d!=%d", a.width, b.width), "operands have different widths")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Shifts and rotations
// -----------------------------------------------------------------------------

// Shl shifts toward higher indices with zero fill. k >= N yields zero.
func (s *WideState) Shl(k uint) *WideState {
	out := newState(s.width)
	if k >= uint(s.width) {
		return out
	}
	wordShift := int(k >> 6)
	bitShift := k & 63
	for i := len(s.words) - 1; i >= wordShift; i-- {
		src := i - wordShift
		v := s.words[src] << bitShift
		if bitShift != 0 && src > 0 {
			v |= s.words[src-1] >> (WordBits - bitShift)
		}
		out.words[i] = v
	}
	return out
}

// Shr shifts toward lower indices with zero fill. k >= N yields zero.
func (s *WideState) Shr(k uint) *WideState {
	out := newState(s.width)
	if k >= uint(s.width) {
		return out
	}
	wordShift := int(k >> 6)
	bitShift := k & 63
	n := len(s.words)
	for i := 0; i < n-wordShift; i++ {
		src := i + wordShift
		v := s.words[src] >> bitShift
		if bitShift != 0 && src+1 < n {
			v |= s.words[src+1] << (WordBits - bitShift)
		}
		out.words[i] = v
	}
	return out
}

// Rotl rotates toward higher indices; k is reduced modulo N.
func (s *WideState) Rotl(k int) *WideState {
	r := mod(k, s.width)
	if r == 0 {
		return s.Clone()
	}
	hi := s.Shl(uint(r))
	lo := s.Shr(uint(s.width - r))
	for i := range hi.words {
		hi.words[i] |= lo.words[i]
	}
	return hi
}

// Rotr rotates toward lower indices; k is reduced modulo N.
func (s *WideState) Rotr(k int) *WideState {
	return s.Rotl(s.width - mod(k, s.width))
}

// -----------------------------------------------------------------------------
// Counting
// -----------------------------------------------------------------------------

// Popcount returns the number of set bits across all N bits.
func (s *WideState) Popcount() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Transitions counts adjacent positions (i, i+1), i in 0..N-2, whose bits differ.
func (s *WideState) Transitions() int {
	n := len(s.words)
	count := 0
	for i, w := range s.words {
		next := w >> 1
		if i+1 < n {
			next |= s.words[i+1] << 63
		}
		d := w ^ next
		if i == n-1 {
			d &= lowMask63
		}
		count += bits.OnesCount64(d)
	}
	return count
}

// NeighborhoodXor applies next[i] = prev[i-1] ^ prev[i] ^ prev[i+1].
//
// Indices outside [0, N) read as zero, and cells 0 and N-1 keep their
// previous value.
func (s *WideState) NeighborhoodXor() *WideState {
	left := s.Shl(1)
	right := s.Shr(1)
	out := newState(s.width)
	for i, w := range s.words {
		out.words[i] = left.words[i] ^ w ^ right.words[i]
	}
	out.SetBit(0, s.Bit(0))
	out.SetBit(s.width-1, s.Bit(s.width-1))
	return out
}
