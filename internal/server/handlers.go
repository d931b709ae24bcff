// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLatestReport returns the most recent pipeline report.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	report := s.latest()
	if report == nil {
		writeError(w, http.StatusNotFound, "no pipeline run has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleTriggerDeployment starts a pipeline run. Runs are single-flight: if a
// run is already in progress the request is rejected with 409.
func (s *Server) handleTriggerDeployment(w http.ResponseWriter, r *http.Request) {
	if !s.tryBeginRun() {
		writeError(w, http.StatusConflict, "a deployment is already in progress")
		return
	}

	getLog().Info().Str("request_id", GetRequestID(r.Context())).Msg("Deployment triggered")

	// The run outlives the request: it uses a background context so a client
	// disconnect does not abort a deployment in progress.
	go func() {
		report := s.runner.Run(context.Background())
		s.finishRun(report)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
