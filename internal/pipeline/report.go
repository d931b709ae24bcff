// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ReportWriter renders pipeline reports to YAML files under a reports
// directory. Report files are transient run artifacts, not a database.
type ReportWriter struct {
	dir string
}

// NewReportWriter creates a writer rooted at dir.
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// Write renders the report and returns the path of the written file.
func (w *ReportWriter) Write(report *Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("run-%s.yaml", report.RunID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// Load reads a previously written report file.
func (w *ReportWriter) Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	return &report, nil
}

// StageNames returns the names of the executed stages, in execution order.
func (r *Report) StageNames() []string {
	return lo.Map(r.Stages, func(sr StageResult, _ int) string {
		return sr.Stage.String()
	})
}

// FailedStageNames returns the names of every failed stage.
func (r *Report) FailedStageNames() []string {
	failed := lo.Filter(r.Stages, func(sr StageResult, _ int) bool {
		return !sr.Success
	})
	return lo.Map(failed, func(sr StageResult, _ int) string {
		return sr.Stage.String()
	})
}
