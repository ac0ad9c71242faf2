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
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/AleutianAI/bitbench/services/bitbench/eval/telemetry"

var (
	// ErrOTelInitFailed is returned when instrument creation fails.
	ErrOTelInitFailed = errors.New("opentelemetry initialization failed")

	// ErrInvalidOTelConfig is returned when the OTel configuration is invalid.
	ErrInvalidOTelConfig = errors.New("invalid opentelemetry configuration")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// OTelConfig configures the OpenTelemetry sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type OTelConfig struct {
	// ServiceName is the service name for telemetry. Required.
	ServiceName string

	// ServiceVersion is the instrumentation version. Optional.
	ServiceVersion string

	// TracerProvider is the tracer provider to use.
	// If nil, uses the global tracer provider.
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If nil, uses the global meter provider.
	MeterProvider metric.MeterProvider

	// TraceEnabled enables span creation.
	TraceEnabled bool

	// MetricsEnabled enables instrument recording.
	MetricsEnabled bool
}

// DefaultOTelConfig returns a configuration with tracing and metrics on.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "bitbench",
		ServiceVersion: "1.0.0",
		TraceEnabled:   true,
		MetricsEnabled: true,
	}
}

// Validate checks that the configuration is valid.
func (c *OTelConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// OpenTelemetry Sink
// -----------------------------------------------------------------------------

// OTelSink records bitbench runs as OpenTelemetry spans and instruments.
//
// Description:
//
//	Each record becomes one span stamped with the record's timestamp, plus
//	instrument observations. Which backend receives them is decided by the
//	providers, normally installed by Init.
//
// Thread Safety: Safe for concurrent use.
type OTelSink struct {
	config *OTelConfig
	tracer trace.Tracer
	meter  metric.Meter

	benchElapsed    metric.Float64Histogram
	benchThroughput metric.Float64Histogram
	benchIterations metric.Int64Counter
	reduceElapsed   metric.Float64Histogram
	reduceWords     metric.Int64Counter
	evolveSteps     metric.Int64Counter
	evolveEntropy   metric.Float64Gauge
	errorsTotal     metric.Int64Counter

	guard stateGuard
}

// NewOTelSink creates an OpenTelemetry sink.
//
// Inputs:
//   - config: Must not be nil.
//
// Outputs:
//   - *OTelSink: Never nil on success.
//   - error: ErrInvalidOTelConfig or ErrOTelInitFailed, joined with the cause.
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	if config == nil {
		return nil, ErrInvalidOTelConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidOTelConfig, err)
	}

	cfg := *config
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &OTelSink{
		config: &cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:  mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}

	if cfg.MetricsEnabled {
		if err := s.initializeMetrics(); err != nil {
			return nil, errors.Join(ErrOTelInitFailed, err)
		}
	}
	return s, nil
}

func (s *OTelSink) initializeMetrics() error {
	var err error

	if s.benchElapsed, err = s.meter.Float64Histogram(
		"bench.elapsed",
		metric.WithDescription("Elapsed time of one timed op loop"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if s.benchThroughput, err = s.meter.Float64Histogram(
		"bench.throughput",
		metric.WithDescription("Op throughput"),
		metric.WithUnit("{operation}/s"),
	); err != nil {
		return err
	}

	if s.benchIterations, err = s.meter.Int64Counter(
		"bench.iterations",
		metric.WithDescription("Timed loop iterations"),
		metric.WithUnit("{iteration}"),
	); err != nil {
		return err
	}

	if s.reduceElapsed, err = s.meter.Float64Histogram(
		"reduce.elapsed",
		metric.WithDescription("Wall time of a parallel reduction"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if s.reduceWords, err = s.meter.Int64Counter(
		"reduce.words",
		metric.WithDescription("Words folded by parallel reductions"),
		metric.WithUnit("{word}"),
	); err != nil {
		return err
	}

	if s.evolveSteps, err = s.meter.Int64Counter(
		"evolve.steps",
		metric.WithDescription("Cellular evolution steps"),
		metric.WithUnit("{step}"),
	); err != nil {
		return err
	}

	if s.evolveEntropy, err = s.meter.Float64Gauge(
		"evolve.entropy",
		metric.WithDescription("Shannon entropy of the final evolved state"),
		metric.WithUnit("bit"),
	); err != nil {
		return err
	}

	s.errorsTotal, err = s.meter.Int64Counter(
		"errors.total",
		metric.WithDescription("Failed operations"),
		metric.WithUnit("{error}"),
	)
	return err
}

// labelAttrs renders labels in key order so spans are reproducible.
func labelAttrs(labels map[string]string) []attribute.KeyValue {
	keys := slices.Sorted(maps.Keys(labels))
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, attribute.String("label."+k, labels[k]))
	}
	return out
}

// RecordBenchmark emits a "bench.record" span and bench instruments.
func (s *OTelSink) RecordBenchmark(ctx context.Context, data *BenchmarkData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	op := labelOr(data.Op, labelOr(data.Name, "unknown"))
	attrs := []attribute.KeyValue{attribute.String("bench.op", op)}

	if s.config.TraceEnabled {
		spanAttrs := append(slices.Clone(attrs),
			attribute.String("bench.name", data.Name),
			attribute.Int64("bench.iterations", data.Iterations),
			attribute.Int64("bench.elapsed_ns", data.Elapsed.Nanoseconds()),
			attribute.Float64("bench.ops_per_second", data.OpsPerSecond),
			attribute.Int("bench.samples", data.Samples),
		)
		spanAttrs = append(spanAttrs, labelAttrs(data.Labels)...)
		_, span := s.tracer.Start(ctx, "bench.record",
			trace.WithAttributes(spanAttrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.End()
	}

	if s.config.MetricsEnabled {
		set := metric.WithAttributes(attrs...)
		s.benchElapsed.Record(ctx, data.Elapsed.Seconds(), set)
		s.benchThroughput.Record(ctx, data.OpsPerSecond, set)
		s.benchIterations.Add(ctx, data.Iterations, set)
	}
	return nil
}

// RecordReduce emits a "reduce.record" span and reduce instruments.
func (s *OTelSink) RecordReduce(ctx context.Context, data *ReduceData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.String("reduce.op", labelOr(data.Op, "unknown")),
		attribute.Int("reduce.workers", data.Workers),
	}

	if s.config.TraceEnabled {
		spanAttrs := append(slices.Clone(attrs),
			attribute.Int("reduce.length", data.Length),
			attribute.Int64("reduce.elapsed_ns", data.Elapsed.Nanoseconds()),
		)
		spanAttrs = append(spanAttrs, labelAttrs(data.Labels)...)
		_, span := s.tracer.Start(ctx, "reduce.record",
			trace.WithAttributes(spanAttrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.End()
	}

	if s.config.MetricsEnabled {
		set := metric.WithAttributes(attrs...)
		s.reduceElapsed.Record(ctx, data.Elapsed.Seconds(), set)
		s.reduceWords.Add(ctx, int64(data.Length), set)
	}
	return nil
}

// RecordEvolve emits an "evolve.record" span and evolve instruments.
func (s *OTelSink) RecordEvolve(ctx context.Context, data *EvolveData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.String("evolve.rule", labelOr(data.Kind, labelOr(data.Rule, "unknown"))),
		attribute.Int("evolve.width", data.Width),
	}

	if s.config.TraceEnabled {
		spanAttrs := append(slices.Clone(attrs),
			attribute.String("evolve.rule_full", data.Rule),
			attribute.Int("evolve.steps", data.Steps),
			attribute.Int("evolve.final_popcount", data.FinalPopcount),
			attribute.Float64("evolve.final_entropy", data.FinalEntropy),
		)
		spanAttrs = append(spanAttrs, labelAttrs(data.Labels)...)
		_, span := s.tracer.Start(ctx, "evolve.record",
			trace.WithAttributes(spanAttrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.End()
	}

	if s.config.MetricsEnabled {
		set := metric.WithAttributes(attrs...)
		s.evolveSteps.Add(ctx, int64(data.Steps), set)
		s.evolveEntropy.Record(ctx, data.FinalEntropy, set)
	}
	return nil
}

// RecordError emits an errored "error.record" span and bumps errors.total.
func (s *OTelSink) RecordError(ctx context.Context, data *ErrorData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.String("error.component", labelOr(data.Component, "unknown")),
		attribute.String("error.operation", labelOr(data.Operation, "unknown")),
		attribute.String("error.kind", labelOr(data.Kind, "unknown")),
	}

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "error.record",
			trace.WithAttributes(append(attrs, labelAttrs(data.Labels)...)...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.SetStatus(codes.Error, data.Message)
		span.End()
	}

	if s.config.MetricsEnabled {
		s.errorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	return nil
}

// Flush is a no-op. Providers are flushed by the shutdown func from Init.
func (s *OTelSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return s.guard.open()
}

// Close marks the sink closed. The providers are not shut down. Idempotent.
func (s *OTelSink) Close() error {
	s.guard.close()
	return nil
}

// StartSpan starts a span under the sink's tracer, for wrapping a whole
// subcommand.
func (s *OTelSink) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

var _ Sink = (*OTelSink)(nil)
