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
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidConfig is returned when the Prometheus configuration is invalid.
	ErrInvalidConfig = errors.New("invalid prometheus configuration")

	// ErrRegistrationFailed is returned when metric registration fails.
	ErrRegistrationFailed = errors.New("metric registration failed")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// PrometheusConfig configures the Prometheus sink.
type PrometheusConfig struct {
	// Namespace is the metrics namespace. Required.
	Namespace string

	// Subsystem is the metrics subsystem. Required.
	Subsystem string

	// Registry receives the collectors. If nil, a private registry is
	// created so runs never leak into prometheus.DefaultRegisterer.
	Registry *prometheus.Registry

	// DurationBuckets are histogram buckets in seconds. Nil uses defaults.
	DurationBuckets []float64

	// ThroughputBuckets are histogram buckets in ops/sec. Nil uses defaults.
	ThroughputBuckets []float64
}

// DefaultPrometheusConfig returns the bitbench namespace with buckets sized
// for microbenchmarks (10µs .. 100s, 1e6 .. 1e11 ops/sec).
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:         "bitbench",
		Subsystem:         "eval",
		DurationBuckets:   prometheus.ExponentialBuckets(1e-5, 10, 8),
		ThroughputBuckets: prometheus.ExponentialBuckets(1e6, 10, 6),
	}
}

// Validate checks that required fields are set.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Subsystem == "" {
		return errors.New("subsystem is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Prometheus Sink
// -----------------------------------------------------------------------------

// PrometheusSink exposes bitbench records as Prometheus metrics.
//
// Description:
//
//	A CLI run is short-lived, so nothing scrapes it. The sink's registry is
//	written out with WriteTextfile after the run, in the node_exporter
//	textfile format.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	registry *prometheus.Registry

	benchElapsed    *prometheus.HistogramVec
	benchThroughput *prometheus.HistogramVec
	benchIterations *prometheus.CounterVec
	benchRuns       *prometheus.CounterVec

	reduceElapsed *prometheus.HistogramVec
	reduceWords   *prometheus.CounterVec

	evolveSteps   *prometheus.CounterVec
	evolveEntropy *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	collectors []prometheus.Collector
	guard      stateGuard
}

// NewPrometheusSink creates a Prometheus sink and registers its collectors.
//
// Inputs:
//   - config: Must not be nil.
//
// Outputs:
//   - *PrometheusSink: Never nil on success.
//   - error: ErrInvalidConfig or ErrRegistrationFailed, joined with the cause.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	cfg := *config
	defaults := DefaultPrometheusConfig()
	if cfg.DurationBuckets == nil {
		cfg.DurationBuckets = defaults.DurationBuckets
	}
	if cfg.ThroughputBuckets == nil {
		cfg.ThroughputBuckets = defaults.ThroughputBuckets
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &PrometheusSink{registry: cfg.Registry}

	s.benchElapsed = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "bench_elapsed_seconds",
		Help:      "Elapsed time of one timed op loop in seconds",
		Buckets:   cfg.DurationBuckets,
	}, []string{"op"})

	s.benchThroughput = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "bench_throughput_ops_per_second",
		Help:      "Op throughput in operations per second",
		Buckets:   cfg.ThroughputBuckets,
	}, []string{"op"})

	s.benchIterations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "bench_iterations_total",
		Help:      "Total timed loop iterations",
	}, []string{"op"})

	s.benchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "bench_runs_total",
		Help:      "Total benchmark records",
	}, []string{"op"})

	s.reduceElapsed = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "reduce_elapsed_seconds",
		Help:      "Wall time of a parallel reduction in seconds",
		Buckets:   cfg.DurationBuckets,
	}, []string{"op", "workers"})

	s.reduceWords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "reduce_words_total",
		Help:      "Total words folded by parallel reductions",
	}, []string{"op"})

	s.evolveSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "evolve_steps_total",
		Help:      "Total cellular evolution steps",
	}, []string{"rule", "width"})

	s.evolveEntropy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "evolve_final_entropy_bits",
		Help:      "Shannon entropy of the final evolved state",
	}, []string{"rule", "width"})

	s.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "errors_total",
		Help:      "Total failed operations by kind",
	}, []string{"component", "operation", "kind"})

	s.collectors = []prometheus.Collector{
		s.benchElapsed,
		s.benchThroughput,
		s.benchIterations,
		s.benchRuns,
		s.reduceElapsed,
		s.reduceWords,
		s.evolveSteps,
		s.evolveEntropy,
		s.errorsTotal,
	}
	for _, c := range s.collectors {
		if err := s.registry.Register(c); err != nil {
			return nil, errors.Join(ErrRegistrationFailed, err)
		}
	}

	return s, nil
}

// Registry returns the registry the sink's collectors live in. The OTel
// prometheus exporter can be bound to it so both land in one textfile.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// RecordBenchmark observes elapsed time and throughput for one op.
func (s *PrometheusSink) RecordBenchmark(ctx context.Context, data *BenchmarkData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	op := labelOr(data.Op, labelOr(data.Name, "unknown"))
	s.benchElapsed.WithLabelValues(op).Observe(data.Elapsed.Seconds())
	s.benchThroughput.WithLabelValues(op).Observe(data.OpsPerSecond)
	s.benchIterations.WithLabelValues(op).Add(float64(data.Iterations))
	s.benchRuns.WithLabelValues(op).Inc()
	return nil
}

// RecordReduce observes one reduction.
func (s *PrometheusSink) RecordReduce(ctx context.Context, data *ReduceData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	op := labelOr(data.Op, "unknown")
	s.reduceElapsed.WithLabelValues(op, strconv.Itoa(data.Workers)).Observe(data.Elapsed.Seconds())
	s.reduceWords.WithLabelValues(op).Add(float64(data.Length))
	return nil
}

// RecordEvolve counts steps and sets the final entropy gauge.
func (s *PrometheusSink) RecordEvolve(ctx context.Context, data *EvolveData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	rule := labelOr(data.Kind, labelOr(data.Rule, "unknown"))
	width := strconv.Itoa(data.Width)
	s.evolveSteps.WithLabelValues(rule, width).Add(float64(data.Steps))
	s.evolveEntropy.WithLabelValues(rule, width).Set(data.FinalEntropy)
	return nil
}

// RecordError increments the error counter.
func (s *PrometheusSink) RecordError(ctx context.Context, data *ErrorData) error {
	if err := checkArgs(ctx, data == nil); err != nil {
		return err
	}
	if err := s.guard.open(); err != nil {
		return err
	}

	s.errorsTotal.WithLabelValues(
		labelOr(data.Component, "unknown"),
		labelOr(data.Operation, "unknown"),
		labelOr(data.Kind, "unknown"),
	).Inc()
	return nil
}

// Flush is a no-op; metrics are read from the registry directly.
func (s *PrometheusSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return s.guard.open()
}

// WriteTextfile writes every metric in the registry to path in the text
// exposition format. The write is atomic (temp file plus rename).
func (s *PrometheusSink) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("textfile path is required")
	}
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("writing prometheus textfile %s: %w", path, err)
	}
	return nil
}

// Close unregisters the sink's collectors. Idempotent.
func (s *PrometheusSink) Close() error {
	if !s.guard.close() {
		return nil
	}
	for _, c := range s.collectors {
		s.registry.Unregister(c)
	}
	return nil
}

var _ Sink = (*PrometheusSink)(nil)
