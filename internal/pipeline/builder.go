// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
)

// MaxCapturedOutput limits captured compiler output to prevent memory exhaustion (10MB)
const MaxCapturedOutput = 10 * 1024 * 1024

var (
	buildLog     *zerolog.Logger
	buildLogOnce sync.Once
)

func getBuildLog() *zerolog.Logger {
	buildLogOnce.Do(func() {
		l := logger.GetBuildLogger()
		buildLog = &l
	})
	return buildLog
}

// Builder invokes the external compiler as a scoped child process and locates
// the produced artifact. The compiler is opaque: the builder only interprets
// its exit status and captures combined stdout/stderr for diagnostics.
type Builder struct {
	cfg config.BuildConfig
}

// NewBuilder creates a builder for the configured compiler invocation.
func NewBuilder(cfg config.BuildConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build runs the compiler with a bounded timeout and searches the configured
// candidate output locations for the expected artifact. A build that exits
// cleanly but produces no artifact is always a failure.
func (b *Builder) Build(ctx context.Context) BuildOutcome {
	argv := make([]string, 0, len(b.cfg.Command)+2)
	argv = append(argv, b.cfg.Command...)
	if b.cfg.Target != "" {
		argv = append(argv, "--target", b.cfg.Target)
	}

	buildCtx := ctx
	var cancel context.CancelFunc
	if b.cfg.Timeout > 0 {
		buildCtx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	getBuildLog().Info().
		Strs("command", argv).
		Str("source_root", b.cfg.SourceRoot).
		Msg("Starting build")

	start := time.Now()
	cmd := exec.CommandContext(buildCtx, argv[0], argv[1:]...)
	cmd.Dir = b.cfg.SourceRoot
	rawBytes, runErr := cmd.CombinedOutput()
	rawOutput := truncateString(string(rawBytes), MaxCapturedOutput)
	duration := time.Since(start)

	if runErr != nil {
		var errMsg string
		switch {
		case errors.Is(buildCtx.Err(), context.DeadlineExceeded):
			errMsg = fmt.Sprintf("build timed out after %ds", int(b.cfg.Timeout.Seconds()))
		case buildCtx.Err() != nil:
			errMsg = fmt.Sprintf("build cancelled: %v", buildCtx.Err())
		default:
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				errMsg = fmt.Sprintf("compiler exited with code %d", exitErr.ExitCode())
			} else {
				errMsg = fmt.Sprintf("failed to run compiler: %v", runErr)
			}
		}
		getBuildLog().Error().
			Str("error", errMsg).
			Dur("duration", duration).
			Msg("Build failed")
		return BuildOutcome{Success: false, RawOutput: rawOutput, ErrorMessage: errMsg}
	}

	artifactPath, err := b.locateArtifact()
	if err != nil {
		getBuildLog().Error().Err(err).Msg("Build exited cleanly but produced no artifact")
		return BuildOutcome{Success: false, RawOutput: rawOutput, ErrorMessage: err.Error()}
	}

	getBuildLog().Info().
		Str("artifact", artifactPath).
		Dur("duration", duration).
		Msg("Build completed")
	return BuildOutcome{Success: true, ArtifactPath: artifactPath, RawOutput: rawOutput}
}

// locateArtifact returns the first candidate output location holding a
// non-empty file with the expected artifact name.
func (b *Builder) locateArtifact() (string, error) {
	for _, dir := range b.cfg.CandidateDirs {
		candidate := filepath.Join(b.cfg.SourceRoot, dir, b.cfg.ArtifactName)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() && info.Size() > 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("artifact %s not found after successful build (searched %d locations)",
		b.cfg.ArtifactName, len(b.cfg.CandidateDirs))
}

// truncateString truncates a string to maxLen characters, adding a marker if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n... OUTPUT TRUNCATED ..."
}
