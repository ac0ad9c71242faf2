// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilData is returned when nil data is provided to a recording method.
	ErrNilData = errors.New("data must not be nil")

	// ErrSinkClosed is returned when attempting to use a closed sink.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when creating a composite sink with no children.
	ErrNoSinks = errors.New("at least one sink is required")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink records the outcome of bitbench runs.
//
// Description:
//
//	Sink is the single abstraction every subcommand reports through.
//	Implementations decide the export format.
//
// Thread Safety: All implementations must be safe for concurrent use.
type Sink interface {
	// RecordBenchmark records one timed op.
	//
	// Inputs:
	//   - ctx: Must not be nil.
	//   - data: Must not be nil.
	//
	// Outputs:
	//   - error: Non-nil if recording fails or the sink is closed.
	RecordBenchmark(ctx context.Context, data *BenchmarkData) error

	// RecordReduce records one parallel reduction.
	RecordReduce(ctx context.Context, data *ReduceData) error

	// RecordEvolve records one completed evolution.
	RecordEvolve(ctx context.Context, data *EvolveData) error

	// RecordError records a failed operation.
	RecordError(ctx context.Context, data *ErrorData) error

	// Flush forces export of buffered data.
	Flush(ctx context.Context) error

	// Close releases resources. After Close, recording methods return
	// ErrSinkClosed. Idempotent.
	Close() error
}

// -----------------------------------------------------------------------------
// Data Types
// -----------------------------------------------------------------------------

// BenchmarkData is one timed op as reported by the harness.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type BenchmarkData struct {
	// Name is the record label, usually the op name.
	Name string

	// Op is the canonical op name.
	Op string

	// Timestamp is when the measurement completed.
	Timestamp time.Time

	// Iterations is the loop count that was timed.
	Iterations int64

	// Elapsed is the reported (mean) elapsed time.
	Elapsed time.Duration

	// OpsPerSecond is Iterations / Elapsed.
	OpsPerSecond float64

	// Samples is the number of retained samples.
	Samples int

	// Labels are additional key-value pairs, e.g. run_id.
	Labels map[string]string
}

// ReduceData is one parallel reduction.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type ReduceData struct {
	Op        string
	Workers   int
	Length    int
	Elapsed   time.Duration
	Timestamp time.Time
	Labels    map[string]string
}

// EvolveData summarizes one evolution run.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type EvolveData struct {
	// Rule is the rendered rule, e.g. "xor_rot(3)".
	Rule string

	// Kind is the rule name without parameter, used as a metric label.
	Kind string

	Width int
	Steps int

	// FinalPopcount and FinalEntropy describe the last state.
	FinalPopcount int
	FinalEntropy  float64

	Elapsed   time.Duration
	Timestamp time.Time
	Labels    map[string]string
}

// ErrorData describes a failed operation.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type ErrorData struct {
	Timestamp time.Time

	// Component is the subcommand or package that failed.
	Component string

	// Operation is the operation that failed.
	Operation string

	// Kind is the error kind, e.g. "invalid_argument".
	Kind string

	Message string
	Labels  map[string]string
}

// -----------------------------------------------------------------------------
// Composite Sink
// -----------------------------------------------------------------------------

// CompositeSink fans telemetry out to several sinks.
//
// Description:
//
//	Errors from child sinks are joined; one sink's failure does not stop the
//	others from receiving the data.
//
// Thread Safety: Safe for concurrent use.
type CompositeSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink creates a composite sink. Nil children are dropped.
//
// Outputs:
//   - *CompositeSink: Never nil on success.
//   - error: ErrNoSinks if no non-nil sink was provided.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

// children returns the child sinks or ErrSinkClosed.
func (c *CompositeSink) children() ([]Sink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrSinkClosed
	}
	return c.sinks, nil
}

// fanOut calls fn on every child and joins the errors.
func (c *CompositeSink) fanOut(fn func(Sink) error) error {
	sinks, err := c.children()
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordBenchmark forwards to every child sink.
func (c *CompositeSink) RecordBenchmark(ctx context.Context, data *BenchmarkData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.fanOut(func(s Sink) error { return s.RecordBenchmark(ctx, data) })
}

// RecordReduce forwards to every child sink.
func (c *CompositeSink) RecordReduce(ctx context.Context, data *ReduceData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.fanOut(func(s Sink) error { return s.RecordReduce(ctx, data) })
}

// RecordEvolve forwards to every child sink.
func (c *CompositeSink) RecordEvolve(ctx context.Context, data *EvolveData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.fanOut(func(s Sink) error { return s.RecordEvolve(ctx, data) })
}

// RecordError forwards to every child sink.
func (c *CompositeSink) RecordError(ctx context.Context, data *ErrorData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.fanOut(func(s Sink) error { return s.RecordError(ctx, data) })
}

// Flush flushes every child sink concurrently and waits for all of them.
func (c *CompositeSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	sinks, err := c.children()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sinks))
	for i, s := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Flush(ctx)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every child sink. Idempotent.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sinks := c.sinks
	c.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// No-Op Sink
// -----------------------------------------------------------------------------

// NoOpSink accepts and discards all data. It is the default when telemetry
// is disabled.
type NoOpSink struct{}

// NewNoOpSink creates a no-op sink.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

func (n *NoOpSink) RecordBenchmark(ctx context.Context, data *BenchmarkData) error {
	return checkArgs(ctx, data == nil)
}

func (n *NoOpSink) RecordReduce(ctx context.Context, data *ReduceData) error {
	return checkArgs(ctx, data == nil)
}

func (n *NoOpSink) RecordEvolve(ctx context.Context, data *EvolveData) error {
	return checkArgs(ctx, data == nil)
}

func (n *NoOpSink) RecordError(ctx context.Context, data *ErrorData) error {
	return checkArgs(ctx, data == nil)
}

func (n *NoOpSink) Flush(ctx context.Context) error {
	return checkArgs(ctx, false)
}

func (n *NoOpSink) Close() error {
	return nil
}

func checkArgs(ctx context.Context, nilData bool) error {
	if ctx == nil {
		return ErrNilContext
	}
	if nilData {
		return ErrNilData
	}
	return nil
}

// stateGuard tracks the closed flag shared by the concrete sinks.
type stateGuard struct {
	mu     sync.RWMutex
	closed bool
}

// open reports ErrSinkClosed once close has been called.
func (g *stateGuard) open() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrSinkClosed
	}
	return nil
}

// close marks the guard closed and reports whether this call did it.
func (g *stateGuard) close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}

// labelOr returns v, or fallback when v is empty.
func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Verify interface compliance at compile time.
var (
	_ Sink = (*CompositeSink)(nil)
	_ Sink = (*NoOpSink)(nil)
)
