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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/bitbench/services/bitbench/platform"
)

func (a *app) cpuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cpu",
		Short: "Report CPU features relevant to bit operations",
		Long: `Prints the host architecture and the popcount/bit-manipulation/vector
features the CPU advertises. The report is informational: every bitbench
kernel is scalar and produces the same results on any host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := platform.Detect()
			a.logger.Debug("cpu features detected", report.Attrs()...)
			_, err := report.WriteTo(a.stdout)
			return err
		},
	}
}
