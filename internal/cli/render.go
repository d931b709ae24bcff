// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wasmforge/wasmforge/internal/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	detailStyle = lipgloss.NewStyle().PaddingLeft(4)
)

// renderReport prints a per-stage summary of the pipeline run.
func renderReport(report *pipeline.Report, explorerURL string, noColor bool) {
	mark := func(ok bool) string {
		if noColor {
			if ok {
				return "[ok]"
			}
			return "[failed]"
		}
		if ok {
			return okStyle.Render("✓")
		}
		return failStyle.Render("✗")
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Deployment run %s (%s)", report.RunID, report.Network)))

	for _, sr := range report.Stages {
		fmt.Printf("  %s %s\n", mark(sr.Success), sr.Stage)
		if !sr.Success {
			for _, line := range strings.Split(sr.ErrorMessage(), "; ") {
				fmt.Println(detailStyle.Render(line))
			}
		}
		if sr.Stage == pipeline.StageSubmit && sr.Submit != nil && sr.Submit.RetryCount > 0 {
			fmt.Println(detailStyle.Render(fmt.Sprintf("retries: %d", sr.Submit.RetryCount)))
		}
	}

	if report.Terminal {
		hash := report.DeployHash()
		fmt.Printf("\n%s\n", okStyle.Render("Deployment succeeded"))
		fmt.Printf("Deploy hash: %s\n", hash)
		if explorerURL != "" {
			fmt.Println(dimStyle.Render(fmt.Sprintf("%s/deploy/%s", strings.TrimRight(explorerURL, "/"), hash)))
		}
	} else {
		fmt.Printf("\n%s\n", failStyle.Render("Deployment failed"))
	}
}
