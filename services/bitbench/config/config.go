// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the defaults for every bitbench subcommand and loads
// overrides from a YAML file.
//
// Priority is flags > file > defaults. The file only supplies defaults; the
// CLI applies a flag on top only when the flag was set explicitly.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// =============================================================================
// Types
// =============================================================================

// Config is the complete bitbench configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Bench     BenchConfig     `yaml:"bench"`
	Evolve    EvolveConfig    `yaml:"evolve"`
	Reduce    ReduceConfig    `yaml:"reduce"`
}

// LogConfig controls diagnostics on stderr.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`

	// JSON forces JSON output. When false the format follows the terminal.
	JSON bool `yaml:"json"`
}

// TelemetryConfig selects the metrics/trace exporter.
type TelemetryConfig struct {
	// Exporter is stdout, prometheus or none.
	Exporter string `yaml:"exporter" validate:"oneof=stdout prometheus none"`

	// PromTextfile, when set, receives the Prometheus text exposition after
	// the run.
	PromTextfile string `yaml:"prom_textfile"`
}

// BenchConfig holds bench defaults.
type BenchConfig struct {
	// Ops lists the ops to time. Empty means all of and/or/xor/nand/carry.
	Ops []string `yaml:"ops" validate:"omitempty,dive,oneof=and or xor nand carry"`

	Iterations    int64         `yaml:"iterations" validate:"gt=0"`
	Samples       int           `yaml:"samples" validate:"gte=1"`
	AutoScale     bool          `yaml:"auto_scale"`
	MinDuration   time.Duration `yaml:"min_duration" validate:"gte=0"`
	MaxIterations int64         `yaml:"max_iterations" validate:"gtefield=Iterations"`
	Seed          uint64        `yaml:"seed"`

	// Format is table or json.
	Format string `yaml:"format" validate:"oneof=table json"`
}

// EvolveConfig holds evolve defaults.
type EvolveConfig struct {
	Rule      string `yaml:"rule" validate:"required"`
	Init      string `yaml:"init" validate:"required"`
	Width     int    `yaml:"width" validate:"oneof=64 128 256 512 1024"`
	Steps     int    `yaml:"steps" validate:"gte=0"`
	K         int    `yaml:"k"`
	Threshold int    `yaml:"threshold" validate:"gte=0"`
	Seed      uint64 `yaml:"seed"`

	// ProgressInterval throttles per-step progress logs.
	ProgressInterval time.Duration `yaml:"progress_interval" validate:"gte=0"`
}

// ReduceConfig holds reduce defaults.
type ReduceConfig struct {
	// Length is the word-array length.
	Length int `yaml:"length" validate:"gte=0"`

	Op string `yaml:"op" validate:"oneof=and or xor nand carry"`

	// Threads is the worker count, 0 for one per CPU.
	Threads int `yaml:"threads" validate:"gte=0"`

	Unordered bool `yaml:"unordered"`
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			Exporter: "none",
		},
		Bench: BenchConfig{
			Iterations:    100_000_000,
			Samples:       1,
			AutoScale:     true,
			MinDuration:   10 * time.Millisecond,
			MaxIterations: 1 << 36,
			Seed:          1,
			Format:        "table",
		},
		Evolve: EvolveConfig{
			Rule:             "xor_rot",
			Init:             "HIGH_CONTRAST",
			Width:            64,
			Steps:            16,
			K:                3,
			Threshold:        32,
			Seed:             1,
			ProgressInterval: time.Second,
		},
		Reduce: ReduceConfig{
			Length: 1 << 20,
			Op:     "xor",
		},
	}
}

// =============================================================================
// Loading and Validation
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path over Default() and validates the result.
//
// # Inputs
//
//   - path: YAML file. Empty returns the validated defaults.
//
// # Outputs
//
//   - Config: The merged configuration.
//   - error: InvalidArgument for an unreadable file, a parse error, an
//     unknown key, or a failed validation.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, faults.Wrap(err, faults.InvalidArgument, "config.load", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, faults.Wrap(fmt.Errorf("parse yaml: %w", err), faults.InvalidArgument, "config.load", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks every field against its tag.
//
// # Outputs
//
//   - error: nil, or an InvalidArgument naming each failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return faults.Wrap(err, faults.InvalidArgument, "config.validate", "")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s=%s (got %v)",
			strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Param(), fe.Value()))
	}
	return faults.New(faults.InvalidArgument, "config.validate", "", "%s", strings.Join(fields, "; "))
}
