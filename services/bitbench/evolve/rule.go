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
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// RuleKind tags an elementary evolution rule.
type RuleKind int

const (
	// RuleUnknown is the zero value.
	RuleUnknown RuleKind = iota
	// RuleXorRot is s' = s ^ rotl(s, k).
	RuleXorRot
	// RuleAndRot is s' = s & rotr(s, k).
	RuleAndRot
	// RuleOrRot is s' = s | rotl(s, k).
	RuleOrRot
	// RuleNeighborhoodXor is the three-cell XOR rule with fixed edges.
	RuleNeighborhoodXor
	// RulePopcountInvert is s' = ^s if popcount(s) > T, else s.
	RulePopcountInvert
)

// String returns the rule name as accepted by ParseRule.
func (k RuleKind) String() string {
	switch k {
	case RuleXorRot:
		return "xor_rot"
	case RuleAndRot:
		return "and_rot"
	case RuleOrRot:
		return "or_rot"
	case RuleNeighborhoodXor:
		return "neighborhood_xor"
	case RulePopcountInvert:
		return "popcount_invert"
	default:
		return fmt.Sprintf("rule_kind(%d)", int(k))
	}
}

// RuleNames lists the accepted rule names.
func RuleNames() []string {
	return []string{"xor_rot", "and_rot", "or_rot", "neighborhood_xor", "popcount_invert"}
}

// Rule is a parameterized evolution rule. It is a value type; the zero Rule
// is invalid.
type Rule struct {
	// Kind selects the transform.
	Kind RuleKind

	// K is the rotation amount for the *_rot rules. Reduced modulo the width.
	K int

	// Threshold is T for popcount_invert. Must be non-negative.
	Threshold int
}

// XorRot returns xor_rot(k).
func XorRot(k int) Rule { return Rule{Kind: RuleXorRot, K: k} }

// AndRot returns and_rot(k).
func AndRot(k int) Rule { return Rule{Kind: RuleAndRot, K: k} }

// OrRot returns or_rot(k).
func OrRot(k int) Rule { return Rule{Kind: RuleOrRot, K: k} }

// NeighborhoodXor returns neighborhood_xor.
func NeighborhoodXor() Rule { return Rule{Kind: RuleNeighborhoodXor} }

// PopcountInvert returns popcount_invert(t).
func PopcountInvert(t int) Rule { return Rule{Kind: RulePopcountInvert, Threshold: t} }

// ParseRule resolves a rule name with its parameters.
//
// # Inputs
//
//   - name: One of RuleNames, case-insensitive. "xor_rot(3)" style inline
//     parameters are accepted and override k or threshold.
//   - k: Rotation amount for the *_rot rules.
//   - threshold: T for popcount_invert.
//
// # Outputs
//
//   - Rule: The parsed rule.
//   - error: faults.InvalidArgument for unknown names or bad parameters.
func ParseRule(name string, k, threshold int) (Rule, error) {
	base := strings.ToLower(strings.TrimSpace(name))
	if open := strings.IndexByte(base, '('); open >= 0 && strings.HasSuffix(base, ")") {
		n, err := strconv.Atoi(base[open+1 : len(base)-1])
		if err != nil {
			return Rule{}, faults.New(faults.InvalidArgument, "evolve.parse_rule", name, "bad rule parameter")
		}
		base = base[:open]
		k, threshold = n, n
	}

	var r Rule
	switch base {
	case "xor_rot":
		r = XorRot(k)
	case "and_rot":
		r = AndRot(k)
	case "or_rot":
		r = OrRot(k)
	case "neighborhood_xor":
		r = NeighborhoodXor()
	case "popcount_invert":
		r = PopcountInvert(threshold)
	default:
		return Rule{}, faults.New(faults.InvalidArgument, "evolve.parse_rule", name,
			"unknown rule, want one of %s", strings.Join(RuleNames(), ", "))
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the rule is well-formed.
func (r Rule) Validate() error {
	switch r.Kind {
	case RuleXorRot, RuleAndRot, RuleOrRot, RuleNeighborhoodXor:
		return nil
	case RulePopcountInvert:
		if r.Threshold < 0 {
			return faults.New(faults.InvalidArgument, "evolve.rule",
				fmt.Sprintf("threshold=%d", r.Threshold), "threshold must be non-negative")
		}
		return nil
	default:
		return faults.New(faults.InvalidArgument, "evolve.rule", r.Kind.String(), "unknown rule kind")
	}
}

// String renders the rule with its parameter, e.g. "xor_rot(3)".
func (r Rule) String() string {
	switch r.Kind {
	case RuleXorRot, RuleAndRot, RuleOrRot:
		return fmt.Sprintf("%s(%d)", r.Kind, r.K)
	case RulePopcountInvert:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Threshold)
	default:
		return r.Kind.String()
	}
}

// ApplyWord computes one step on a word.
func (r Rule) ApplyWord(s uint64) uint64 {
	switch r.Kind {
	case RuleXorRot:
		return s ^ bitops.Rotl(s, r.K)
	case RuleAndRot:
		return s & bitops.Rotr(s, r.K)
	case RuleOrRot:
		return s | bitops.Rotl(s, r.K)
	case RuleNeighborhoodXor:
		return bitops.NeighborhoodXorWord(s)
	case RulePopcountInvert:
		if bitops.Popcount(s) > r.Threshold {
			return ^s
		}
		return s
	default:
		return s
	}
}

// ApplyWide computes one step on a wide state and returns a new state.
func (r Rule) ApplyWide(s *bitops.WideState) *bitops.WideState {
	switch r.Kind {
	case RuleXorRot:
		next, _ := s.Xor(s.Rotl(r.K))
		return next
	case RuleAndRot:
		next, _ := s.And(s.Rotr(r.K))
		return next
	case RuleOrRot:
		next, _ := s.Or(s.Rotl(r.K))
		return next
	case RuleNeighborhoodXor:
		return s.NeighborhoodXor()
	case RulePopcountInvert:
		if s.Popcount() > r.Threshold {
			return s.Not()
		}
		return s.Clone()
	default:
		return s.Clone()
	}
}
