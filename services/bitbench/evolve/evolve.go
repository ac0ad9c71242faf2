// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evolve iterates elementary bitwise rules over a 64-bit word or a
// wide state and records the trajectory.
//
// # Description
//
// An Evolver is stateless apart from its rule and options. Given the same
// initial state, rule and step count it always produces the same Trace. It
// owns no randomness: EXTERNAL initial states are generated by the caller.
//
// # Thread Safety
//
// Evolver and Trace are safe for concurrent reads. Run may be called from
// multiple goroutines.
package evolve

import (
	"fmt"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
	"github.com/AleutianAI/bitbench/services/bitbench/pattern"
)

// DefaultMaxSteps bounds a single run so a trace always fits in memory.
const DefaultMaxSteps = 1 << 20

// Observer is called once per produced state, including the initial state at
// step 0. The state is a copy; changing it does not affect the run or its
// trace.
type Observer func(step int, state *bitops.WideState, sample pattern.Sample)

// Option configures an Evolver.
type Option func(*Evolver)

// WithObserver installs a per-step callback.
func WithObserver(fn Observer) Option {
	return func(e *Evolver) { e.observer = fn }
}

// WithMaxSteps overrides DefaultMaxSteps. Non-positive values are ignored.
func WithMaxSteps(n int) Option {
	return func(e *Evolver) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// Evolver applies a Rule repeatedly.
type Evolver struct {
	rule     Rule
	observer Observer
	maxSteps int
}

// New validates rule and returns an Evolver.
func New(rule Rule, opts ...Option) (*Evolver, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	e := &Evolver{rule: rule, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rule returns the configured rule.
func (e *Evolver) Rule() Rule { return e.rule }

// Run evolves initial for steps iterations.
//
// # Inputs
//
//   - initial: Starting state. Not modified.
//   - steps: Number of rule applications. Zero yields a one-state trace.
//
// # Outputs
//
//   - *Trace: steps+1 states, states[0] equal to initial.
//   - error: faults.InvalidArgument for a nil state or a step count outside
//     [0, max steps].
func (e *Evolver) Run(initial *bitops.WideState, steps int) (*Trace, error) {
	if initial == nil {
		return nil, faults.New(faults.InvalidArgument, "evolve.run", "initial", "nil initial state")
	}
	if err := e.checkSteps(steps); err != nil {
		return nil, err
	}

	states := make([]*bitops.WideState, 0, steps+1)
	cur := initial.Clone()
	states = append(states, cur)
	e.observe(0, cur)
	for i := 1; i <= steps; i++ {
		cur = e.rule.ApplyWide(cur)
		states = append(states, cur)
		e.observe(i, cur)
	}
	return &Trace{rule: e.rule, width: initial.Width(), states: states}, nil
}

// RunWord evolves a single word. Behavior matches Run at width 64.
func (e *Evolver) RunWord(initial uint64, steps int) (*WordTrace, error) {
	if err := e.checkSteps(steps); err != nil {
		return nil, err
	}

	states := make([]uint64, 0, steps+1)
	cur := initial
	states = append(states, cur)
	e.observeWord(0, cur)
	for i := 1; i <= steps; i++ {
		cur = e.rule.ApplyWord(cur)
		states = append(states, cur)
		e.observeWord(i, cur)
	}
	return &WordTrace{rule: e.rule, states: states}, nil
}

func (e *Evolver) checkSteps(steps int) error {
	if steps < 0 {
		return faults.New(faults.InvalidArgument, "evolve.run",
			fmt.Sprintf("steps=%d", steps), "steps must be non-negative")
	}
	if steps > e.maxSteps {
		return faults.New(faults.InvalidArgument, "evolve.run",
			fmt.Sprintf("steps=%d", steps), "steps exceed limit %d", e.maxSteps)
	}
	return nil
}

func (e *Evolver) observe(step int, s *bitops.WideState) {
	if e.observer != nil {
		e.observer(step, s.Clone(), pattern.SampleWide(s))
	}
}

func (e *Evolver) observeWord(step int, x uint64) {
	if e.observer == nil {
		return
	}
	s, _ := bitops.FromWords(bitops.WordBits, []uint64{x})
	e.observer(step, s, pattern.SampleWord(x))
}
