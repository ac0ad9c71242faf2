// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package platform reports the CPU features relevant to bit operations.
//
// The report is informational. Every kernel in bitbench is scalar, so
// results never depend on what is detected here; only timings might.
package platform

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sys/cpu"
)

// Feature is one detected capability.
type Feature struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// Report describes the host.
type Report struct {
	GOOS     string    `json:"goos"`
	GOARCH   string    `json:"goarch"`
	NumCPU   int       `json:"num_cpu"`
	Go       string    `json:"go"`
	Features []Feature `json:"features"`
}

// Detect probes the running host.
func Detect() Report {
	return Report{
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		NumCPU:   runtime.NumCPU(),
		Go:       runtime.Version(),
		Features: features(runtime.GOARCH),
	}
}

// features lists the flags for arch. Unknown architectures get none.
func features(arch string) []Feature {
	switch arch {
	case "amd64", "386":
		return []Feature{
			{"popcnt", cpu.X86.HasPOPCNT},
			{"bmi1", cpu.X86.HasBMI1},
			{"bmi2", cpu.X86.HasBMI2},
			{"avx2", cpu.X86.HasAVX2},
			{"avx512f", cpu.X86.HasAVX512F},
		}
	case "arm64":
		return []Feature{
			{"asimd", cpu.ARM64.HasASIMD},
			{"sve", cpu.ARM64.HasSVE},
		}
	}
	return nil
}

// Has reports whether the named feature was detected.
func (r Report) Has(name string) bool {
	for _, f := range r.Features {
		if f.Name == name {
			return f.Present
		}
	}
	return false
}

// Present returns the sorted names of detected features.
func (r Report) Present() []string {
	out := make([]string, 0, len(r.Features))
	for _, f := range r.Features {
		if f.Present {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Attrs returns slog-style key-value pairs for logging.
func (r Report) Attrs() []any {
	return []any{
		"goarch", r.GOARCH,
		"num_cpu", r.NumCPU,
		"features", strings.Join(r.Present(), ","),
	}
}

// WriteTo prints one "key value" line per field, then one line per feature
// as "feature name yes|no".
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "goos %s\n", r.GOOS)
	fmt.Fprintf(&b, "goarch %s\n", r.GOARCH)
	fmt.Fprintf(&b, "num_cpu %d\n", r.NumCPU)
	fmt.Fprintf(&b, "go %s\n", r.Go)
	for _, f := range r.Features {
		yes := "no"
		if f.Present {
			yes = "yes"
		}
		fmt.Fprintf(&b, "feature %s %s\n", f.Name, yes)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
