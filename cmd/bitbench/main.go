// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command bitbench times bitwise word operations, evolves bit states under
// elementary rules, and folds word arrays in parallel.
//
// Usage:
//
//	bitbench bench --ops xor,carry --samples 5
//	bitbench evolve --rule xor_rot --k 3 --init HIGH_CONTRAST --steps 16
//	bitbench reduce --iters 1048576 --op xor --threads 0
//	bitbench cpu
//
// Records go to stdout, one per line with a header. Diagnostics go to stderr.
//
// Exit codes:
//
//	0  success
//	1  usage error: unknown flag or name, unsupported width, negative count
//	2  contract violation: non-associative reducer, width mismatch, clock failure
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
