// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports bitbench run results as metrics and traces.
//
// # Overview
//
// Every subcommand produces a small number of records (one per benchmarked
// op, one per reduction, one per evolution). Those records are handed to a
// Sink, which forwards them to one or more backends:
//
//	┌──────────────┐     ┌───────────────┐     ┌──────────────────────┐
//	│  bench       │     │               │ ──▶ │ PrometheusSink       │
//	│  reduce      │ ──▶ │ CompositeSink │     │  (private registry,  │
//	│  evolve      │     │               │     │   textfile export)   │
//	└──────────────┘     │               │ ──▶ │ OTelSink             │
//	                     └───────────────┘     │  (spans, instruments)│
//	                                           └──────────────────────┘
//
// Init wires the OpenTelemetry providers behind OTelSink to one of the
// exporters "stdout", "prometheus" or "none".
//
// # Usage
//
//	promSink, _ := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
//	shutdown, _ := telemetry.Init(ctx, telemetry.Config{
//	    ServiceName: "bitbench",
//	    Exporter:    telemetry.ExporterPrometheus,
//	    Registry:    promSink.Registry(),
//	})
//	defer shutdown(context.Background())
//
//	otelSink, _ := telemetry.NewOTelSink(telemetry.DefaultOTelConfig())
//	sink, _ := telemetry.NewCompositeSink(promSink, otelSink)
//	defer sink.Close()
//
// # Thread Safety
//
// All sinks are safe for concurrent use. Telemetry never feeds back into
// measured values; it is recorded after each timing completes.
package telemetry
