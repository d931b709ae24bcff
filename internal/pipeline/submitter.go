// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
)

// SubmitState is the submission retrier's state machine state.
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitAttempting
	SubmitBackoff
	SubmitSucceeded
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitIdle:
		return "idle"
	case SubmitAttempting:
		return "attempting"
	case SubmitBackoff:
		return "backoff"
	case SubmitSucceeded:
		return "succeeded"
	case SubmitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmissionClient is the network collaborator accepting a signed payload and
// returning a resource handle or an error.
type SubmissionClient interface {
	PutDeploy(ctx context.Context, payloadPath string) (string, error)
}

var (
	submitLog     *zerolog.Logger
	submitLogOnce sync.Once
)

func getSubmitLog() *zerolog.Logger {
	submitLogOnce.Do(func() {
		l := logger.GetSubmitLogger()
		submitLog = &l
	})
	return submitLog
}

// Submitter submits the prepared payload to the network, retrying transient
// failures with a constant backoff (the observed condition is waiting for
// clock or node catch-up, so exponential growth buys nothing). Terminal
// failures and exhausted retries end the run.
type Submitter struct {
	client   SubmissionClient
	classify Classifier
	dep      config.DeploymentConfig
}

// NewSubmitter creates a submitter using the given network client and the
// default error classifier.
func NewSubmitter(client SubmissionClient, dep config.DeploymentConfig) *Submitter {
	return &Submitter{client: client, classify: DefaultClassifier, dep: dep}
}

// NewSubmitterWithClassifier creates a submitter with a custom classifier.
func NewSubmitterWithClassifier(client SubmissionClient, dep config.DeploymentConfig, classify Classifier) *Submitter {
	return &Submitter{client: client, classify: classify, dep: dep}
}

// Submit drives the state machine to a terminal state. It makes at most
// MaxRetries+1 attempts; the outcome's RetryCount equals attempts made minus
// one. Cancellation during the backoff wait aborts the wait promptly.
func (s *Submitter) Submit(ctx context.Context, payloadPath string) SubmitOutcome {
	state := SubmitIdle
	retryCount := 0
	var lastErr error

	for {
		state = SubmitAttempting
		getSubmitLog().Info().
			Int("attempt", retryCount+1).
			Int("max_attempts", s.dep.MaxRetries+1).
			Msg("Submitting payload")

		attemptCtx := ctx
		var cancel context.CancelFunc
		if s.dep.SubmitTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.dep.SubmitTimeout)
		}
		hash, err := s.client.PutDeploy(attemptCtx, payloadPath)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			state = SubmitSucceeded
			getSubmitLog().Info().
				Str("deploy_hash", hash).
				Int("retry_count", retryCount).
				Str("state", state.String()).
				Msg("Submission succeeded")
			return SubmitOutcome{Success: true, DeployHash: hash, RetryCount: retryCount}
		}
		lastErr = err

		// The caller's cancellation is never retried regardless of how the
		// underlying error would classify.
		if ctx.Err() != nil {
			state = SubmitFailed
			return SubmitOutcome{
				Success:      false,
				RetryCount:   retryCount,
				ErrorMessage: fmt.Sprintf("submission cancelled: %v", ctx.Err()),
			}
		}

		class := s.classify(err)
		getSubmitLog().Warn().
			Err(err).
			Str("classification", class.String()).
			Int("retry_count", retryCount).
			Msg("Submission attempt failed")

		if class != ClassTransient || retryCount >= s.dep.MaxRetries {
			state = SubmitFailed
			return SubmitOutcome{
				Success:      false,
				RetryCount:   retryCount,
				ErrorMessage: fmt.Sprintf("submission failed (%s): %v", class, lastErr),
			}
		}

		state = SubmitBackoff
		getSubmitLog().Info().
			Dur("delay", s.dep.RetryDelay).
			Str("state", state.String()).
			Msg("Waiting before retry")
		if !sleepCtx(ctx, s.dep.RetryDelay) {
			return SubmitOutcome{
				Success:      false,
				RetryCount:   retryCount,
				ErrorMessage: fmt.Sprintf("submission cancelled during backoff: %v", ctx.Err()),
			}
		}
		retryCount++
	}
}

// sleepCtx waits for d or until the context is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
