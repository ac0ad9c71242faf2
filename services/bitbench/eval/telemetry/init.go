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
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// Exporter selects where OpenTelemetry data goes.
type Exporter string

const (
	// ExporterNone installs no providers.
	ExporterNone Exporter = "none"

	// ExporterStdout writes spans and metrics as JSON to Config.Writer.
	ExporterStdout Exporter = "stdout"

	// ExporterPrometheus binds OTel metrics to Config.Registry. Traces are
	// not exported in this mode.
	ExporterPrometheus Exporter = "prometheus"
)

// ErrUnknownExporter is returned for an exporter name outside the closed set.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// ParseExporter parses an exporter name, case-insensitively.
func ParseExporter(name string) (Exporter, error) {
	switch e := Exporter(strings.ToLower(strings.TrimSpace(name))); e {
	case ExporterNone, ExporterStdout, ExporterPrometheus:
		return e, nil
	case "":
		return ExporterNone, nil
	default:
		return "", faults.Wrap(fmt.Errorf("%w: %q", ErrUnknownExporter, name),
			faults.InvalidArgument, "telemetry.parse_exporter", name)
	}
}

// Config controls provider setup.
type Config struct {
	// ServiceName identifies this process in resource attributes.
	ServiceName string

	// ServiceVersion is the version string for this process.
	ServiceVersion string

	// RunID is attached to the resource so every span and metric of one
	// invocation can be correlated.
	RunID string

	// Exporter is one of ExporterNone, ExporterStdout, ExporterPrometheus.
	Exporter Exporter

	// Writer receives stdout exporter output. Defaults to os.Stderr so it
	// never interleaves with record output on stdout.
	Writer io.Writer

	// Registry receives the prometheus exporter's collector. Required for
	// ExporterPrometheus.
	Registry *prometheus.Registry
}

// Providers holds the tracer and meter providers built by NewProviders.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdownFuncs []func(context.Context) error
}

// Shutdown flushes and stops every SDK provider. Safe to call on a
// Providers built for ExporterNone.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	return errors.Join(errs...)
}

// NewProviders builds providers for cfg without touching the otel globals.
//
// Description:
//
//	ExporterNone yields no-op providers. ExporterStdout yields SDK providers
//	with stdouttrace and stdoutmetric exporters writing to cfg.Writer.
//	ExporterPrometheus yields a no-op tracer and an SDK meter whose reader
//	is the OTel prometheus exporter registered on cfg.Registry.
//
// Inputs:
//   - ctx: Must not be nil.
//   - cfg: Provider configuration.
//
// Outputs:
//   - *Providers: Never nil on success. Call Shutdown when done.
//   - error: ErrNilContext, an InvalidArgument for a bad exporter, or an
//     exporter construction failure.
func NewProviders(ctx context.Context, cfg Config) (*Providers, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	exp, err := ParseExporter(string(cfg.Exporter))
	if err != nil {
		return nil, err
	}

	p := &Providers{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
	if exp == ExporterNone {
		return p, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", labelOr(cfg.ServiceName, "bitbench")),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("bitbench.run_id", cfg.RunID),
	)

	switch exp {
	case ExporterStdout:
		traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)

		metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		)

		p.TracerProvider, p.MeterProvider = tp, mp
		p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown, mp.Shutdown)

	case ExporterPrometheus:
		if cfg.Registry == nil {
			return nil, faults.New(faults.InvalidArgument, "telemetry.init", string(exp),
				"prometheus exporter requires a registry")
		}
		exporter, err := promexporter.New(promexporter.WithRegisterer(cfg.Registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		p.MeterProvider = mp
		p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	}

	return p, nil
}

// Init builds providers for cfg and installs them as the otel globals.
//
// Example:
//
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// Thread Safety: Call once at process start.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	p, err := NewProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
	return p.Shutdown, nil
}
