// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
)

var (
	cleanLog     *zerolog.Logger
	cleanLogOnce sync.Once
)

func getCleanLog() *zerolog.Logger {
	cleanLogOnce.Do(func() {
		l := logger.GetCleanLogger()
		cleanLog = &l
	})
	return cleanLog
}

// Cleaner removes stale build output directories before a build.
//
// The underlying filesystem operation is not transactional, so the outcome is
// made all-or-nothing at the reporting level: success is determined by a
// post-removal existence check of every target, and a failed run never reports
// any path as removed. Removed content cannot be restored; the build stage
// regenerates it.
type Cleaner struct {
	paths []string

	// removeAll is swappable for tests that need deterministic removal failures.
	removeAll func(path string) error
}

// NewCleaner creates a cleaner for the configured target paths.
func NewCleaner(cfg config.CleanConfig) *Cleaner {
	return &Cleaner{
		paths:     cfg.Paths,
		removeAll: os.RemoveAll,
	}
}

// Clean forcibly removes each target path in order and verifies afterwards that
// none of them still exist. Invoking Clean when no target exists is a success
// with an empty RemovedPaths, never a failure for having nothing to do.
func (c *Cleaner) Clean(ctx context.Context) CleanOutcome {
	var removed []string
	var failures []string

	for _, path := range c.paths {
		if err := ctx.Err(); err != nil {
			return c.rollback(removed, fmt.Sprintf("clean cancelled: %v", err))
		}

		if !pathExists(path) {
			getCleanLog().Debug().Str("path", path).Msg("Target path does not exist, skipping")
			continue
		}

		getCleanLog().Info().Str("path", path).Msg("Removing target path")
		if err := c.removeAll(path); err != nil {
			// Keep going so the outcome names every failing path, not just the first.
			failures = append(failures, fmt.Sprintf("failed to remove %s: %v", path, err))
			continue
		}
		removed = append(removed, path)
	}

	if len(failures) > 0 {
		return c.rollback(removed, strings.Join(failures, "; "))
	}

	// Success is decided by a post-removal existence check, not by the removal
	// calls themselves.
	for _, path := range c.paths {
		if pathExists(path) {
			return c.rollback(removed, fmt.Sprintf("incomplete removal of %s: path still exists after deletion", path))
		}
	}

	getCleanLog().Info().Strs("removed", removed).Msg("Clean completed")
	return CleanOutcome{Success: true, RemovedPaths: removed}
}

// rollback converts a partial clean into a reported no-op. Deletion is the
// intended terminal state, so nothing can be restored; instead no path is
// reported as removed and the caller is pointed at the build stage to
// regenerate content.
func (c *Cleaner) rollback(removed []string, errMsg string) CleanOutcome {
	if len(removed) > 0 {
		getCleanLog().Warn().
			Strs("removed_before_failure", removed).
			Msg("Partial clean failure; removed content must be regenerated by the build stage")
	}
	getCleanLog().Error().Str("error", errMsg).Msg("Clean failed")
	return CleanOutcome{Success: false, RemovedPaths: []string{}, ErrorMessage: errMsg}
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
