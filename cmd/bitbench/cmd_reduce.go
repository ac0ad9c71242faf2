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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/config"
	"github.com/AleutianAI/bitbench/services/bitbench/eval/telemetry"
	"github.com/AleutianAI/bitbench/services/bitbench/pattern"
	"github.com/AleutianAI/bitbench/services/bitbench/reduce"
)

// reduceHeader is the first line of reduce output.
const reduceHeader = "op threads length result majority elapsed_ns"

type reduceFlags struct {
	length    int
	op        string
	threads   int
	unordered bool
}

func (a *app) reduceCmd() *cobra.Command {
	var f reduceFlags
	d := config.Default().Reduce

	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Fold a generated word array across a worker pool",
		Long: `Fills --iters words with a deterministic index pattern, folds them with
--op across --threads workers and prints:

  ` + reduceHeader + `

and, or and xor give the same result for every thread count. carry and nand
are rejected unless --unordered is set, in which case the result depends on
the thread count.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReduce(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.length, "iters", d.Length, "word-array length")
	fl.StringVar(&f.op, "op", d.Op, "reducer: and, or, xor (carry and nand need --unordered)")
	fl.IntVar(&f.threads, "threads", d.Threads, "worker count, 0 for one per CPU")
	fl.BoolVar(&f.unordered, "unordered", d.Unordered, "allow non-associative reducers")
	return cmd
}

func (a *app) runReduce(cmd *cobra.Command, f reduceFlags) error {
	rc := &a.cfg.Reduce
	override(cmd, "iters", &rc.Length, f.length)
	override(cmd, "op", &rc.Op, strings.ToLower(strings.TrimSpace(f.op)))
	override(cmd, "threads", &rc.Threads, f.threads)
	override(cmd, "unordered", &rc.Unordered, f.unordered)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	op, err := bitops.ParseOp(rc.Op)
	if err != nil {
		return err
	}
	words, err := reduce.NewPattern(rc.Length)
	if err != nil {
		return err
	}

	a.logger.Info("reduce starting", "op", op.String(), "threads", rc.Threads, "length", rc.Length)
	ctx, span := a.startSpan(cmd.Context(), "reduce.run",
		attribute.String("reduce.op", op.String()),
		attribute.Int("reduce.length", rc.Length),
	)
	res, err := reduce.Reduce(ctx, words, op, reduce.Options{
		Workers:        rc.Threads,
		AllowUnordered: rc.Unordered,
	})
	if err == nil {
		span.SetAttributes(attribute.Int("reduce.workers", res.Workers))
	}
	endSpan(span, err)
	if err != nil {
		return err
	}
	if !op.Associative() {
		a.logger.Warn("unordered reduction result depends on the thread count", "op", op.String(), "threads", res.Workers)
	}

	err = a.sink.RecordReduce(cmd.Context(), &telemetry.ReduceData{
		Op:        op.String(),
		Workers:   res.Workers,
		Length:    res.Length,
		Elapsed:   res.Elapsed,
		Timestamp: time.Now(),
		Labels:    a.labels(),
	})
	if err != nil {
		a.logger.Warn("failed to record reduce run", "error", err)
	}

	_, err = fmt.Fprintf(a.stdout, "%s\n%s %d %d 0x%016x %t %d\n",
		reduceHeader,
		op.String(),
		res.Workers,
		res.Length,
		res.Value,
		pattern.MajorityWord(res.Value),
		res.Elapsed.Nanoseconds(),
	)
	return err
}
