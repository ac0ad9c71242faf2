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
	"strings"

	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// Func is a binary transform on words.
type Func func(a, b uint64) uint64

// Op names one of the binary word transforms.
type Op int

const (
	// OpUnknown is the zero value.
	OpUnknown Op = iota
	// OpAnd is a & b.
	OpAnd
	// OpOr is a | b.
	OpOr
	// OpXor is a ^ b.
	OpXor
	// OpNand is ^(a & b).
	OpNand
	// OpCarry is (a ^ b) & a.
	OpCarry
)

// AllOps lists every named operation in table order.
func AllOps() []Op {
	return []Op{OpAnd, OpOr, OpXor, OpNand, OpCarry}
}

// String returns the lowercase operation name.
func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpNand:
		return "nand"
	case OpCarry:
		return "carry"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Func returns the word function for the operation, nil for OpUnknown.
func (o Op) Func() Func {
	switch o {
	case OpAnd:
		return And
	case OpOr:
		return Or
	case OpXor:
		return Xor
	case OpNand:
		return Nand
	case OpCarry:
		return Carry
	default:
		return nil
	}
}

// Associative reports whether grouping is immaterial for the operation.
// AND, OR and XOR are associative; NAND and carry are not.
func (o Op) Associative() bool {
	switch o {
	case OpAnd, OpOr, OpXor:
		return true
	default:
		return false
	}
}

// Identity returns the fold identity of an associative operation.
// ok is false when the operation has none.
func (o Op) Identity() (id uint64, ok bool) {
	switch o {
	case OpAnd:
		return AllOnes, true
	case OpOr, OpXor:
		return 0, true
	default:
		return 0, false
	}
}

// ParseOp resolves an operation name, case-insensitively.
//
// # Outputs
//
//   - Op: The operation.
//   - error: faults.InvalidArgument naming the input if unknown.
func ParseOp(name string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "and":
		return OpAnd, nil
	case "or":
		return OpOr, nil
	case "xor":
		return OpXor, nil
	case "nand":
		return OpNand, nil
	case "carry":
		return OpCarry, nil
	default:
		return OpUnknown, faults.New(faults.InvalidArgument, "bitops.parse_op", name,
			"unknown operation, want one of and, or, xor, nand, carry")
	}
}

// ParseOps resolves a list of names, preserving order.
func ParseOps(names []string) ([]Op, error) {
	ops := make([]Op, 0, len(names))
	for _, n := range names {
		op, err := ParseOp(n)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
