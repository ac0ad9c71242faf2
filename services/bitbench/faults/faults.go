// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package faults defines the error kinds shared by every bitbench component.
//
// Each kind has a sentinel error so callers can test with errors.Is, and a
// typed *Error that carries the failing operation and the offending argument:
//
//	err := faults.New(faults.NonAssociativeReducer, "reduce", "carry",
//	    "operation is not associative")
//	errors.Is(err, faults.ErrNonAssociativeReducer) // true
//	faults.ExitCode(err)                            // 2
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is the zero value. KindOf returns it for unclassified errors.
	Unknown Kind = iota

	// InvalidArgument covers unknown names, unsupported widths and negative counts.
	InvalidArgument

	// WidthMismatch is a binary operation on wide states of different widths.
	WidthMismatch

	// NonAssociativeReducer is a parallel reduction with carry or nand.
	NonAssociativeReducer

	// ClockFailure is a non-positive elapsed time from the monotonic clock.
	ClockFailure

	// AllocationFailure is an input buffer that could not be allocated.
	AllocationFailure
)

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case InvalidArgument:
		return "invalid_argument"
	case WidthMismatch:
		return "width_mismatch"
	case NonAssociativeReducer:
		return "non_associative_reducer"
	case ClockFailure:
		return "clock_failure"
	case AllocationFailure:
		return "allocation_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// -----------------------------------------------------------------------------
// Sentinels
// -----------------------------------------------------------------------------

var (
	// ErrInvalidArgument is the sentinel for InvalidArgument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrWidthMismatch is the sentinel for WidthMismatch.
	ErrWidthMismatch = errors.New("width mismatch")

	// ErrNonAssociativeReducer is the sentinel for NonAssociativeReducer.
	ErrNonAssociativeReducer = errors.New("non-associative reducer")

	// ErrClockFailure is the sentinel for ClockFailure.
	ErrClockFailure = errors.New("clock failure")

	// ErrAllocationFailure is the sentinel for AllocationFailure.
	ErrAllocationFailure = errors.New("allocation failure")
)

func (k Kind) sentinel() error {
	switch k {
	case InvalidArgument:
		return ErrInvalidArgument
	case WidthMismatch:
		return ErrWidthMismatch
	case NonAssociativeReducer:
		return ErrNonAssociativeReducer
	case ClockFailure:
		return ErrClockFailure
	case AllocationFailure:
		return ErrAllocationFailure
	default:
		return nil
	}
}

// -----------------------------------------------------------------------------
// Typed error
// -----------------------------------------------------------------------------

// Error is a classified failure.
//
// # Description
//
// Error names the operation that failed and the argument that caused it, so
// that the single diagnostic line printed by the CLI identifies the culprit.
// It matches its kind's sentinel with errors.Is and unwraps to Err.
//
// # Example
//
//	var fe *faults.Error
//	if errors.As(err, &fe) {
//	    fmt.Println(fe.Kind, fe.Arg)
//	}
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation that failed (e.g. "reduce", "bitops.xor").
	Op string

	// Arg is the offending argument, if any.
	Arg string

	// Detail is a human-readable explanation.
	Detail string

	// Err is an underlying cause, may be nil.
	Err error
}

// Error returns "op: kind: detail (arg)".
func (e *Error) Error() string {
	msg := e.Kind.sentinel()
	text := e.Kind.String()
	if msg != nil {
		text = msg.Error()
	}
	if e.Op != "" {
		text = e.Op + ": " + text
	}
	if e.Detail != "" {
		text += ": " + e.Detail
	}
	if e.Arg != "" {
		text += fmt.Sprintf(" (%s)", e.Arg)
	}
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind sentinel.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New creates a classified error.
//
// # Inputs
//
//   - kind: Failure kind.
//   - op: Operation name.
//   - arg: Offending argument (may be empty).
//   - format, args: Detail message.
//
// # Outputs
//
//   - *Error: Never nil.
func New(kind Kind, op, arg, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Op:     op,
		Arg:    arg,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Wrap classifies an existing error. Returns nil for a nil err.
func Wrap(err error, kind Kind, op, arg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Arg: arg, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for _, k := range []Kind{InvalidArgument, WidthMismatch, NonAssociativeReducer, ClockFailure, AllocationFailure} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return Unknown
}

// Process exit codes.
const (
	ExitOK       = 0
	ExitUsage    = 1
	ExitContract = 2
)

// ExitCode maps an error onto the process exit code.
//
// # Description
//
// nil maps to 0. InvalidArgument maps to 1 (usage). Every other kind,
// including errors with no classification, maps to 2.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if KindOf(err) == InvalidArgument {
		return ExitUsage
	}
	return ExitContract
}
