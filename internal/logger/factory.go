// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetPipelineLogger returns a logger for the pipeline orchestrator
func GetPipelineLogger() zerolog.Logger {
	return GetLogger("pipeline")
}

// GetCleanLogger returns a logger for the clean stage
func GetCleanLogger() zerolog.Logger {
	return GetLogger("clean")
}

// GetBuildLogger returns a logger for the build stage
func GetBuildLogger() zerolog.Logger {
	return GetLogger("build")
}

// GetVerifyLogger returns a logger for the verify stage
func GetVerifyLogger() zerolog.Logger {
	return GetLogger("verify")
}

// GetSubmitLogger returns a logger for the submission retrier
func GetSubmitLogger() zerolog.Logger {
	return GetLogger("submit")
}

// GetRPCLogger returns a logger for RPC client operations
func GetRPCLogger() zerolog.Logger {
	return GetLogger("rpc")
}

// GetAPILogger returns a logger for the status server
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}
