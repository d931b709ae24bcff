// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
)

// Preparer produces the signed deploy payload from a verified artifact by
// invoking the external signing client. The credential handle is only checked
// for existence and readability; its contents are never parsed or logged.
type Preparer struct {
	cfg config.PrepareConfig
	dep config.DeploymentConfig
}

// NewPreparer creates a preparer bound to one deployment configuration.
func NewPreparer(cfg config.PrepareConfig, dep config.DeploymentConfig) *Preparer {
	return &Preparer{cfg: cfg, dep: dep}
}

// Prepare runs the signing client against the artifact and validates that the
// payload file was produced and holds valid JSON.
func (p *Preparer) Prepare(ctx context.Context, artifactPath string) PrepareOutcome {
	log := logger.GetSubmitLogger()

	if err := checkReadable(p.dep.SecretKeyPath); err != nil {
		msg := fmt.Sprintf("credential handle %s is not usable: %v", p.dep.SecretKeyPath, err)
		log.Error().Str("error", msg).Msg("Prepare failed")
		return PrepareOutcome{Success: false, ErrorMessage: msg}
	}

	argv := make([]string, 0, len(p.cfg.Command)+10)
	argv = append(argv, p.cfg.Command...)
	argv = append(argv,
		"--chain-name", p.dep.ChainName,
		"--secret-key", p.dep.SecretKeyPath,
		"--payment-amount", p.dep.PaymentAmount,
		"--session-path", artifactPath,
		"--output", p.cfg.PayloadPath,
	)

	prepCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.Timeout > 0 {
		prepCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	log.Info().Str("artifact", artifactPath).Str("output", p.cfg.PayloadPath).Msg("Generating signed deploy payload")

	cmd := exec.CommandContext(prepCtx, argv[0], argv[1:]...)
	rawBytes, runErr := cmd.CombinedOutput()
	rawOutput := truncateString(string(rawBytes), MaxCapturedOutput)

	if runErr != nil {
		var errMsg string
		switch {
		case errors.Is(prepCtx.Err(), context.DeadlineExceeded):
			errMsg = fmt.Sprintf("payload generation timed out after %ds", int(p.cfg.Timeout.Seconds()))
		case prepCtx.Err() != nil:
			errMsg = fmt.Sprintf("payload generation cancelled: %v", prepCtx.Err())
		default:
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				errMsg = fmt.Sprintf("signing client exited with code %d", exitErr.ExitCode())
			} else {
				errMsg = fmt.Sprintf("failed to run signing client: %v", runErr)
			}
		}
		log.Error().Str("error", errMsg).Msg("Prepare failed")
		return PrepareOutcome{Success: false, RawOutput: rawOutput, ErrorMessage: errMsg}
	}

	payload, err := os.ReadFile(p.cfg.PayloadPath)
	if err != nil {
		msg := fmt.Sprintf("payload file not found after signing client exited cleanly: %v", err)
		log.Error().Str("error", msg).Msg("Prepare failed")
		return PrepareOutcome{Success: false, RawOutput: rawOutput, ErrorMessage: msg}
	}
	if len(payload) == 0 || !json.Valid(payload) {
		msg := fmt.Sprintf("payload file %s is empty or not valid JSON", p.cfg.PayloadPath)
		log.Error().Str("error", msg).Msg("Prepare failed")
		return PrepareOutcome{Success: false, RawOutput: rawOutput, ErrorMessage: msg}
	}

	log.Info().Str("payload", p.cfg.PayloadPath).Int("size", len(payload)).Msg("Signed deploy payload ready")
	return PrepareOutcome{Success: true, PayloadPath: p.cfg.PayloadPath, RawOutput: rawOutput}
}

// checkReadable verifies the file exists and can be opened for reading,
// without reading its contents.
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
