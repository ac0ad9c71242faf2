// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/bitbench/pkg/logging"
	"github.com/AleutianAI/bitbench/services/bitbench/config"
	"github.com/AleutianAI/bitbench/services/bitbench/eval/telemetry"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

const (
	serviceName    = "bitbench"
	serviceVersion = "1.0.0"

	shutdownTimeout = 5 * time.Second
)

// =============================================================================
// Application State
// =============================================================================

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath   string
	logLevel     string
	logJSON      bool
	format       string
	telemetry    string
	promTextfile string
}

// app holds everything one invocation needs. It is built fresh per run so
// tests can execute the command tree repeatedly.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flags globalFlags
	cfg   config.Config
	runID string

	// started is set once PersistentPreRunE begins. Errors before that come
	// from cobra's own parsing and are usage errors.
	started bool

	logger   *logging.Logger
	sink     telemetry.Sink
	prom     *telemetry.PrometheusSink
	otel     *telemetry.OTelSink
	shutdown func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		cfg:    config.Default(),
		logger: logging.New(logging.Config{Quiet: true}),
		sink:   telemetry.NewNoOpSink(),
	}
}

// run executes args and returns the process exit code.
//
// # Description
//
// On failure exactly one diagnostic line is written to stderr, followed by
// the usage summary when the failure is a usage error. Telemetry is flushed
// on every path, and the Prometheus textfile, if requested, is written
// before the providers shut down.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err != nil && !a.started && faults.KindOf(err) == faults.Unknown {
		err = faults.Wrap(err, faults.InvalidArgument, "cli", "")
	}
	if err != nil {
		a.recordError(ctx, cmd, err)
	}
	if cerr := a.close(ctx); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil {
		fmt.Fprintf(stderr, "bitbench: %s\n", oneLine(err))
		if faults.ExitCode(err) == faults.ExitUsage && cmd != nil {
			fmt.Fprint(stderr, cmd.UsageString())
		}
	}
	return faults.ExitCode(err)
}

// =============================================================================
// Command Tree
// =============================================================================

func (a *app) rootCmd() *cobra.Command {
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "bitbench",
		Short: "Bitwise microbenchmarks and bit-pattern metrics",
		Long: `bitbench times tight loops of and/or/xor/nand/carry over 64-bit words,
evolves bit states under elementary rules while recording popcount, entropy
and transition complexity, and folds word arrays across a worker pool.

Records are printed to stdout, one per line with a header row.
Diagnostics are printed to stderr.`,
		Version:           serviceVersion,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return faults.Wrap(err, faults.InvalidArgument, "cli.flags", cmd.Name())
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "YAML file with defaults for every subcommand")
	pf.StringVar(&a.flags.logLevel, "log-level", defaults.Log.Level, "diagnostic level: debug, info, warn or error")
	pf.BoolVar(&a.flags.logJSON, "log-json", defaults.Log.JSON, "force JSON diagnostics (default: text on a terminal, JSON otherwise)")
	pf.StringVar(&a.flags.format, "format", defaults.Bench.Format, "bench output format: table or json")
	pf.StringVar(&a.flags.telemetry, "telemetry", defaults.Telemetry.Exporter, "metrics and trace exporter: stdout, prometheus or none")
	pf.StringVar(&a.flags.promTextfile, "prom-textfile", defaults.Telemetry.PromTextfile, "write the Prometheus text exposition to this path after the run")

	root.AddCommand(
		a.benchCmd(),
		a.evolveCmd(),
		a.reduceCmd(),
		a.cpuCmd(),
	)
	return root
}

// setup loads configuration, applies explicitly set global flags and builds
// the logger and telemetry pipeline.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.started = true

	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	override(cmd, "log-level", &cfg.Log.Level, strings.ToLower(a.flags.logLevel))
	override(cmd, "log-json", &cfg.Log.JSON, a.flags.logJSON)
	override(cmd, "format", &cfg.Bench.Format, strings.ToLower(a.flags.format))
	override(cmd, "telemetry", &cfg.Telemetry.Exporter, strings.ToLower(a.flags.telemetry))
	override(cmd, "prom-textfile", &cfg.Telemetry.PromTextfile, a.flags.promTextfile)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return faults.Wrap(err, faults.InvalidArgument, "cli.log_level", cfg.Log.Level)
	}
	format := logging.FormatAuto
	if cfg.Log.JSON {
		format = logging.FormatJSON
	}
	a.runID = uuid.NewString()
	a.logger = logging.New(logging.Config{
		Level:   level,
		Writer:  a.stderr,
		Format:  format,
		Service: serviceName,
	}).With("run_id", a.runID, "command", cmd.Name())

	if err := a.setupTelemetry(cmd.Context()); err != nil {
		return err
	}
	a.logger.Debug("configuration loaded",
		"config", a.flags.configPath,
		"telemetry", cfg.Telemetry.Exporter,
	)
	return nil
}

// setupTelemetry installs the otel globals for the chosen exporter and
// assembles the sink. A Prometheus sink exists when the exporter is
// prometheus or a textfile was requested; both share its registry.
func (a *app) setupTelemetry(ctx context.Context) error {
	exp, err := telemetry.ParseExporter(a.cfg.Telemetry.Exporter)
	if err != nil {
		return err
	}

	var sinks []telemetry.Sink
	tcfg := telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		RunID:          a.runID,
		Exporter:       exp,
		Writer:         a.stderr,
	}
	if exp == telemetry.ExporterPrometheus || a.cfg.Telemetry.PromTextfile != "" {
		prom, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
		if err != nil {
			return fmt.Errorf("create prometheus sink: %w", err)
		}
		a.prom = prom
		tcfg.Registry = prom.Registry()
		sinks = append(sinks, prom)
	}

	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	a.shutdown = shutdown

	if exp != telemetry.ExporterNone {
		ocfg := telemetry.DefaultOTelConfig()
		ocfg.ServiceName = serviceName
		ocfg.ServiceVersion = serviceVersion
		otelSink, err := telemetry.NewOTelSink(ocfg)
		if err != nil {
			return fmt.Errorf("create otel sink: %w", err)
		}
		a.otel = otelSink
		sinks = append(sinks, otelSink)
	}

	if len(sinks) == 0 {
		return nil
	}
	composite, err := telemetry.NewCompositeSink(sinks...)
	if err != nil {
		return err
	}
	a.sink = composite
	return nil
}

// =============================================================================
// Teardown
// =============================================================================

// close flushes the sink, writes the textfile, shuts the providers down and
// closes the sink. Errors are joined.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.sink.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush telemetry: %w", err))
	}
	if path := a.cfg.Telemetry.PromTextfile; a.prom != nil && path != "" {
		if err := a.prom.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write prometheus textfile: %w", err))
		} else {
			a.logger.Debug("prometheus textfile written", "path", path)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if err := a.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// recordError sends a failed command to telemetry. Recording failures are
// logged, not returned.
func (a *app) recordError(ctx context.Context, cmd *cobra.Command, err error) {
	component := serviceName
	if cmd != nil {
		component = cmd.Name()
	}
	operation := ""
	var fe *faults.Error
	if errors.As(err, &fe) {
		operation = fe.Op
	}
	data := &telemetry.ErrorData{
		Timestamp: time.Now(),
		Component: component,
		Operation: operation,
		Kind:      faults.KindOf(err).String(),
		Message:   err.Error(),
		Labels:    a.labels(),
	}
	if rerr := a.sink.RecordError(context.WithoutCancel(ctx), data); rerr != nil {
		a.logger.Warn("failed to record error", "error", rerr)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// labels are attached to every telemetry record of this run.
func (a *app) labels() map[string]string {
	return map[string]string{"run_id": a.runID}
}

// startSpan opens a span covering one subcommand run. Without an otel
// exporter the span is a no-op.
func (a *app) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if a.otel == nil {
		return noop.NewTracerProvider().Tracer(serviceName).Start(ctx, name)
	}
	return a.otel.StartSpan(ctx, name, append(attrs, attribute.String("run_id", a.runID))...)
}

// endSpan marks span failed when err is non-nil and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, faults.KindOf(err).String())
	}
	span.End()
}

// override copies v into dst when the named flag was set on the command line.
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

// oneLine collapses a possibly multi-line error into a single line.
func oneLine(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}
