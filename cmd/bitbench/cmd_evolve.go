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
	"bufio"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/config"
	"github.com/AleutianAI/bitbench/services/bitbench/eval/telemetry"
	"github.com/AleutianAI/bitbench/services/bitbench/evolve"
	"github.com/AleutianAI/bitbench/services/bitbench/pattern"
)

// evolveHeader is the first line of evolve output.
const evolveHeader = "step popcount entropy complexity hamming"

type evolveFlags struct {
	rule      string
	init      string
	width     int
	steps     int
	k         int
	threshold int
	seed      uint64
}

func (a *app) evolveCmd() *cobra.Command {
	var f evolveFlags
	d := config.Default().Evolve

	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Apply an elementary rule repeatedly and print per-state metrics",
		Long: fmt.Sprintf(`Evolves an initial bit state under a rule and prints one record per state:

  %s

hamming is the distance to the previous state (0 for step 0).

Rules:   %s
Presets: %s

EXTERNAL fills the state from a PCG generator seeded with --seed.`,
			evolveHeader,
			strings.Join(evolve.RuleNames(), ", "),
			strings.Join(evolve.PresetNames(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runEvolve(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.rule, "rule", d.Rule, "evolution rule, optionally with an inline parameter such as xor_rot(5)")
	fl.StringVar(&f.init, "init", d.Init, "initial state preset")
	fl.IntVar(&f.width, "width", d.Width, "state width in bits: 64, 128, 256, 512 or 1024")
	fl.IntVar(&f.steps, "steps", d.Steps, "number of rule applications")
	fl.IntVar(&f.k, "k", d.K, "rotation amount for the *_rot rules")
	fl.IntVar(&f.threshold, "threshold", d.Threshold, "popcount threshold for popcount_invert")
	fl.Uint64Var(&f.seed, "seed", d.Seed, "PRNG seed for the EXTERNAL preset")
	return cmd
}

func (a *app) runEvolve(cmd *cobra.Command, f evolveFlags) error {
	ec := &a.cfg.Evolve
	override(cmd, "rule", &ec.Rule, f.rule)
	override(cmd, "init", &ec.Init, f.init)
	override(cmd, "width", &ec.Width, f.width)
	override(cmd, "steps", &ec.Steps, f.steps)
	override(cmd, "k", &ec.K, f.k)
	override(cmd, "threshold", &ec.Threshold, f.threshold)
	override(cmd, "seed", &ec.Seed, f.seed)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	rule, err := evolve.ParseRule(ec.Rule, ec.K, ec.Threshold)
	if err != nil {
		return err
	}
	preset, err := evolve.ParsePreset(ec.Init)
	if err != nil {
		return err
	}

	var external []uint64
	if preset == evolve.PresetExternal {
		external = randomWords(ec.Width/bitops.WordBits, ec.Seed)
	}
	initial, err := preset.Wide(ec.Width, external)
	if err != nil {
		return err
	}

	progress := &rate.Sometimes{Interval: ec.ProgressInterval}
	ev, err := evolve.New(rule, evolve.WithObserver(func(step int, _ *bitops.WideState, s pattern.Sample) {
		progress.Do(func() {
			a.logger.Debug("evolve progress", "step", step, "of", ec.Steps, "popcount", s.Popcount, "entropy", s.Entropy)
		})
	}))
	if err != nil {
		return err
	}

	a.logger.Info("evolve starting",
		"rule", rule.String(),
		"init", preset.String(),
		"width", ec.Width,
		"steps", ec.Steps,
	)
	_, span := a.startSpan(cmd.Context(), "evolve.run",
		attribute.String("evolve.rule", rule.String()),
		attribute.Int("evolve.width", ec.Width),
		attribute.Int("evolve.steps", ec.Steps),
	)
	start := time.Now()
	trace, err := ev.Run(initial, ec.Steps)
	elapsed := time.Since(start)
	endSpan(span, err)
	if err != nil {
		return err
	}

	if err := writeTrace(a, trace); err != nil {
		return err
	}

	final := pattern.SampleWide(trace.Final())
	err = a.sink.RecordEvolve(cmd.Context(), &telemetry.EvolveData{
		Rule:          rule.String(),
		Kind:          rule.Kind.String(),
		Width:         trace.Width(),
		Steps:         ec.Steps,
		FinalPopcount: final.Popcount,
		FinalEntropy:  final.Entropy,
		Elapsed:       elapsed,
		Timestamp:     time.Now(),
		Labels:        a.labels(),
	})
	if err != nil {
		a.logger.Warn("failed to record evolve run", "error", err)
	}
	a.logger.Info("evolve completed",
		"final_popcount", final.Popcount,
		"final_entropy", final.Entropy,
		"elapsed_ns", elapsed.Nanoseconds(),
	)
	return nil
}

// writeTrace prints the header and one record per state.
func writeTrace(a *app, trace *evolve.Trace) error {
	w := bufio.NewWriter(a.stdout)
	fmt.Fprintln(w, evolveHeader)

	samples := trace.Samples()
	hamming := trace.HammingSteps()
	for i, s := range samples {
		d := 0
		if i > 0 {
			d = hamming[i-1]
		}
		fmt.Fprintf(w, "%d %d %.6f %.6f %d\n", i, s.Popcount, s.Entropy, s.Complexity, d)
	}
	return w.Flush()
}

// randomWords draws n words from a PCG generator. The generator belongs to
// the CLI; the evolver never sees a seed.
func randomWords(n int, seed uint64) []uint64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	words := make([]uint64, n)
	for i := range words {
		words[i] = rng.Uint64()
	}
	return words
}
