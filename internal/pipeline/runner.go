// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
)

var (
	runnerLog     *zerolog.Logger
	runnerLogOnce sync.Once
)

func getRunnerLog() *zerolog.Logger {
	runnerLogOnce.Do(func() {
		l := logger.GetPipelineLogger()
		runnerLog = &l
	})
	return runnerLog
}

// Runner sequences the pipeline stages: Clean, Build, Verify, Prepare, Submit.
// It stops at the first failed stage and returns a Report containing every
// outcome obtained so far. The runner performs no retries itself (that is
// local to the submitter) and no cleanup-on-failure beyond what each stage
// already guarantees: a later stage failing never re-executes an earlier one.
type Runner struct {
	dep config.DeploymentConfig

	cleaner  CleanStage
	builder  BuildStage
	verifier VerifyStage
	preparer PrepareStage
	submit   SubmitStage

	events EventSink
}

// NewRunner wires the concrete stages from configuration. The submission
// client is injected so tests and the status server can substitute endpoints.
func NewRunner(cfg *config.AppConfig, client SubmissionClient) *Runner {
	return &Runner{
		dep:      cfg.Deployment,
		cleaner:  NewCleaner(cfg.Clean),
		builder:  NewBuilder(cfg.Build),
		verifier: NewVerifier(cfg.Verify),
		preparer: NewPreparer(cfg.Prepare, cfg.Deployment),
		submit:   NewSubmitter(client, cfg.Deployment),
	}
}

// NewRunnerWithStages builds a runner from explicit stage implementations.
func NewRunnerWithStages(dep config.DeploymentConfig, clean CleanStage, build BuildStage,
	verify VerifyStage, prepare PrepareStage, submit SubmitStage) *Runner {
	return &Runner{
		dep:      dep,
		cleaner:  clean,
		builder:  build,
		verifier: verify,
		preparer: prepare,
		submit:   submit,
	}
}

// SetEventSink registers a lifecycle event consumer. Must be called before Run.
func (r *Runner) SetEventSink(sink EventSink) {
	r.events = sink
}

// Run executes the pipeline once and returns its report. The context is
// observed between stages at minimum; stages additionally honor it internally.
func (r *Runner) Run(ctx context.Context) Report {
	report := Report{
		RunID:     uuid.New().String(),
		Network:   r.dep.Network,
		ChainName: r.dep.ChainName,
		StartedAt: time.Now().UTC(),
	}

	getRunnerLog().Info().
		Str("run_id", report.RunID).
		Str("network", report.Network).
		Msg("Pipeline run starting")

	var artifactPath, payloadPath string

	stages := []struct {
		stage Stage
		run   func(context.Context) StageResult
	}{
		{StageClean, func(ctx context.Context) StageResult {
			out := r.cleaner.Clean(ctx)
			return StageResult{Stage: StageClean, Success: out.Success, Clean: &out}
		}},
		{StageBuild, func(ctx context.Context) StageResult {
			out := r.builder.Build(ctx)
			artifactPath = out.ArtifactPath
			return StageResult{Stage: StageBuild, Success: out.Success, Build: &out}
		}},
		{StageVerify, func(ctx context.Context) StageResult {
			out := r.verifier.Verify(artifactPath)
			return StageResult{Stage: StageVerify, Success: out.Success, Verify: &out}
		}},
		{StagePrepare, func(ctx context.Context) StageResult {
			out := r.preparer.Prepare(ctx, artifactPath)
			payloadPath = out.PayloadPath
			return StageResult{Stage: StagePrepare, Success: out.Success, Prepare: &out}
		}},
		{StageSubmit, func(ctx context.Context) StageResult {
			out := r.submit.Submit(ctx, payloadPath)
			return StageResult{Stage: StageSubmit, Success: out.Success, Submit: &out}
		}},
	}

	completed := 0
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			getRunnerLog().Warn().
				Str("run_id", report.RunID).
				Str("next_stage", s.stage.String()).
				Msgf("Pipeline cancelled between stages: %v", err)
			break
		}

		r.emit(Event{Type: EventStageStarted, RunID: report.RunID, Stage: s.stage.String(), Time: time.Now().UTC()})

		result := s.run(ctx)
		report.Stages = append(report.Stages, result)

		if !result.Success {
			r.emit(Event{
				Type:  EventStageFailed,
				RunID: report.RunID,
				Stage: s.stage.String(),
				Error: result.ErrorMessage(),
				Time:  time.Now().UTC(),
			})
			getRunnerLog().Error().
				Str("run_id", report.RunID).
				Str("stage", s.stage.String()).
				Str("error", result.ErrorMessage()).
				Msg("Stage failed, halting pipeline")
			break
		}

		r.emit(Event{Type: EventStageCompleted, RunID: report.RunID, Stage: s.stage.String(), Time: time.Now().UTC()})
		completed++
	}

	report.Terminal = completed == len(stages)
	report.CompletedAt = time.Now().UTC()

	r.emit(Event{Type: EventRunCompleted, RunID: report.RunID, Terminal: report.Terminal, Time: time.Now().UTC()})
	getRunnerLog().Info().
		Str("run_id", report.RunID).
		Bool("terminal", report.Terminal).
		Int("stages_completed", completed).
		Str("duration", fmt.Sprintf("%.1fs", report.CompletedAt.Sub(report.StartedAt).Seconds())).
		Msg("Pipeline run finished")

	return report
}

func (r *Runner) emit(ev Event) {
	if r.events != nil {
		r.events(ev)
	}
}
