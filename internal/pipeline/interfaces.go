// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import "context"

// Stage interfaces let the runner be tested against mock stages.

type CleanStage interface {
	Clean(ctx context.Context) CleanOutcome
}

type BuildStage interface {
	Build(ctx context.Context) BuildOutcome
}

type VerifyStage interface {
	Verify(artifactPath string) VerifyOutcome
}

type PrepareStage interface {
	Prepare(ctx context.Context, artifactPath string) PrepareOutcome
}

type SubmitStage interface {
	Submit(ctx context.Context, payloadPath string) SubmitOutcome
}
