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
	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/pattern"
)

// Trace is the ordered trajectory of a wide-state run.
type Trace struct {
	rule   Rule
	width  int
	states []*bitops.WideState
}

// Rule returns the rule that produced the trace.
func (t *Trace) Rule() Rule { return t.rule }

// Width returns the state width.
func (t *Trace) Width() int { return t.width }

// Len returns the number of states, steps+1.
func (t *Trace) Len() int { return len(t.states) }

// At returns a copy of state i.
func (t *Trace) At(i int) *bitops.WideState { return t.states[i].Clone() }

// Final returns a copy of the last state.
func (t *Trace) Final() *bitops.WideState { return t.At(len(t.states) - 1) }

// Samples returns the metrics of every state, in order.
func (t *Trace) Samples() []pattern.Sample {
	out := make([]pattern.Sample, len(t.states))
	for i, s := range t.states {
		out[i] = pattern.SampleWide(s)
	}
	return out
}

// HammingSteps returns the distance between each state and its successor.
// The result has Len()-1 entries.
func (t *Trace) HammingSteps() []int {
	if len(t.states) < 2 {
		return nil
	}
	out := make([]int, len(t.states)-1)
	for i := 1; i < len(t.states); i++ {
		// widths are uniform within a trace
		d, _ := pattern.HammingWide(t.states[i-1], t.states[i])
		out[i-1] = d
	}
	return out
}

// WordTrace is the trajectory of a 64-bit run.
type WordTrace struct {
	rule   Rule
	states []uint64
}

// Rule returns the rule that produced the trace.
func (t *WordTrace) Rule() Rule { return t.rule }

// Len returns the number of states, steps+1.
func (t *WordTrace) Len() int { return len(t.states) }

// States returns a copy of the trajectory.
func (t *WordTrace) States() []uint64 {
	out := make([]uint64, len(t.states))
	copy(out, t.states)
	return out
}

// Final returns the last state.
func (t *WordTrace) Final() uint64 { return t.states[len(t.states)-1] }

// Samples returns the metrics of every state, in order.
func (t *WordTrace) Samples() []pattern.Sample {
	out := make([]pattern.Sample, len(t.states))
	for i, x := range t.states {
		out[i] = pattern.SampleWord(x)
	}
	return out
}

// HammingSteps returns the distance between each state and its successor.
func (t *WordTrace) HammingSteps() []int {
	if len(t.states) < 2 {
		return nil
	}
	out := make([]int, len(t.states)-1)
	for i := 1; i < len(t.states); i++ {
		out[i-1] = pattern.Hamming(t.states[i-1], t.states[i])
	}
	return out
}
