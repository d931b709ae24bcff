// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the deployment pipeline over a small HTTP surface:
// health, the latest pipeline report, a deployment trigger, and a websocket
// stream of stage lifecycle events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
	"github.com/wasmforge/wasmforge/internal/pipeline"
)

const maxRequestBody = 1 << 20 // 1MB

var (
	srvLog     *zerolog.Logger
	srvLogOnce sync.Once
)

func getLog() *zerolog.Logger {
	srvLogOnce.Do(func() {
		l := logger.GetAPILogger()
		srvLog = &l
	})
	return srvLog
}

// PipelineRunner runs one pipeline execution. Satisfied by *pipeline.Runner.
type PipelineRunner interface {
	Run(ctx context.Context) pipeline.Report
}

// Server is the status server. Pipeline runs triggered through it are
// single-flight: a run in progress rejects further triggers.
type Server struct {
	cfg      *config.AppConfig
	runner   PipelineRunner
	reports  *pipeline.ReportWriter
	registry *ClientRegistry

	httpServer *http.Server

	mu         sync.Mutex
	running    bool
	lastReport *pipeline.Report
}

// NewServer creates a status server around the given runner.
func NewServer(cfg *config.AppConfig, runner PipelineRunner) *Server {
	return &Server{
		cfg:      cfg,
		runner:   runner,
		reports:  pipeline.NewReportWriter(cfg.Reports.Dir),
		registry: NewClientRegistry(),
	}
}

// Registry returns the websocket client registry so the pipeline's event sink
// can be pointed at Broadcast.
func (s *Server) Registry() *ClientRegistry {
	return s.registry
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recovery)
	r.Use(Logger)
	r.Use(MaxBodySize(maxRequestBody))
	r.Use(CORS(s.cfg.Server.AllowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/reports/latest", s.handleLatestReport)
		r.Post("/deployments", s.handleTriggerDeployment)
	})
	r.Get("/ws", HandleWebSocket(s.registry, s.cfg.Server.AllowedOrigins))

	return r
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		getLog().Info().Str("addr", addr).Msg("Status server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// tryBeginRun acquires the single-flight run slot.
func (s *Server) tryBeginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// finishRun releases the run slot and records the report.
func (s *Server) finishRun(report pipeline.Report) {
	s.mu.Lock()
	s.running = false
	s.lastReport = &report
	s.mu.Unlock()

	if path, err := s.reports.Write(&report); err != nil {
		getLog().Error().Err(err).Msg("Failed to write pipeline report")
	} else {
		getLog().Info().Str("path", path).Msg("Pipeline report written")
	}
}

// latest returns the most recent report, if any.
func (s *Server) latest() *pipeline.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}
