// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Stage identifies one discrete phase of the deployment pipeline
type Stage int

const (
	StageClean Stage = iota
	StageBuild
	StageVerify
	StagePrepare
	StageSubmit
)

func (s Stage) String() string {
	switch s {
	case StageClean:
		return "clean"
	case StageBuild:
		return "build"
	case StageVerify:
		return "verify"
	case StagePrepare:
		return "prepare"
	case StageSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

// MarshalYAML renders the stage by name in report files.
func (s Stage) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML parses the stage name written by MarshalYAML.
func (s *Stage) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return s.fromName(name)
}

// MarshalJSON renders the stage by name in API responses.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	return s.fromName(name)
}

func (s *Stage) fromName(name string) error {
	switch name {
	case "clean":
		*s = StageClean
	case "build":
		*s = StageBuild
	case "verify":
		*s = StageVerify
	case "prepare":
		*s = StagePrepare
	case "submit":
		*s = StageSubmit
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
	return nil
}

// CleanOutcome is the result of the clean stage.
// When Success is false, RemovedPaths is always empty: partial removal is never
// exposed as committed state, even if some target paths were actually deleted
// before the failure.
type CleanOutcome struct {
	Success      bool     `yaml:"success" json:"success"`
	RemovedPaths []string `yaml:"removed_paths,omitempty" json:"removed_paths,omitempty"`
	ErrorMessage string   `yaml:"error,omitempty" json:"error,omitempty"`
}

// BuildOutcome is the result of the build stage.
// ArtifactPath is set iff Success is true; the file exists and is non-empty.
type BuildOutcome struct {
	Success      bool   `yaml:"success" json:"success"`
	ArtifactPath string `yaml:"artifact_path,omitempty" json:"artifact_path,omitempty"`
	RawOutput    string `yaml:"raw_output,omitempty" json:"raw_output,omitempty"`
	ErrorMessage string `yaml:"error,omitempty" json:"error,omitempty"`
}

// VerifyOutcome is the result of the verify stage.
// FailedChecks is empty iff Success is true. An unreadable artifact is reported
// via ErrorMessage, not FailedChecks.
type VerifyOutcome struct {
	Success      bool     `yaml:"success" json:"success"`
	RawOutput    string   `yaml:"raw_output,omitempty" json:"raw_output,omitempty"`
	FailedChecks []string `yaml:"failed_checks,omitempty" json:"failed_checks,omitempty"`
	ErrorMessage string   `yaml:"error,omitempty" json:"error,omitempty"`
}

// PrepareOutcome is the result of the prepare stage (signed payload generation).
// PayloadPath is set iff Success is true; the file exists and contains valid JSON.
type PrepareOutcome struct {
	Success      bool   `yaml:"success" json:"success"`
	PayloadPath  string `yaml:"payload_path,omitempty" json:"payload_path,omitempty"`
	RawOutput    string `yaml:"raw_output,omitempty" json:"raw_output,omitempty"`
	ErrorMessage string `yaml:"error,omitempty" json:"error,omitempty"`
}

// SubmitOutcome is the result of the submission retrier.
// RetryCount is the number of attempts made minus one.
type SubmitOutcome struct {
	Success      bool   `yaml:"success" json:"success"`
	DeployHash   string `yaml:"deploy_hash,omitempty" json:"deploy_hash,omitempty"`
	RetryCount   int    `yaml:"retry_count" json:"retry_count"`
	ErrorMessage string `yaml:"error,omitempty" json:"error,omitempty"`
}

// StageResult wraps the typed outcome of one executed stage. Exactly one of the
// outcome pointers is set, matching Stage.
type StageResult struct {
	Stage   Stage           `yaml:"stage" json:"stage"`
	Success bool            `yaml:"success" json:"success"`
	Clean   *CleanOutcome   `yaml:"clean,omitempty" json:"clean,omitempty"`
	Build   *BuildOutcome   `yaml:"build,omitempty" json:"build,omitempty"`
	Verify  *VerifyOutcome  `yaml:"verify,omitempty" json:"verify,omitempty"`
	Prepare *PrepareOutcome `yaml:"prepare,omitempty" json:"prepare,omitempty"`
	Submit  *SubmitOutcome  `yaml:"submit,omitempty" json:"submit,omitempty"`
}

// ErrorMessage returns the error text of the wrapped outcome, if any.
func (sr *StageResult) ErrorMessage() string {
	switch sr.Stage {
	case StageClean:
		return sr.Clean.ErrorMessage
	case StageBuild:
		return sr.Build.ErrorMessage
	case StageVerify:
		return sr.Verify.ErrorMessage
	case StagePrepare:
		return sr.Prepare.ErrorMessage
	case StageSubmit:
		return sr.Submit.ErrorMessage
	default:
		return ""
	}
}

// Report is the aggregated result of one pipeline run: the ordered outcomes of
// every executed stage plus a terminal flag. It is the single source of truth
// for what happened during the run.
type Report struct {
	RunID       string        `yaml:"run_id" json:"run_id"`
	Network     string        `yaml:"network" json:"network"`
	ChainName   string        `yaml:"chain_name" json:"chain_name"`
	StartedAt   time.Time     `yaml:"started_at" json:"started_at"`
	CompletedAt time.Time     `yaml:"completed_at" json:"completed_at"`
	Stages      []StageResult `yaml:"stages" json:"stages"`
	Terminal    bool          `yaml:"terminal" json:"terminal"`
}

// FailedStage returns the first failed stage result, or nil if all executed
// stages succeeded.
func (r *Report) FailedStage() *StageResult {
	for i := range r.Stages {
		if !r.Stages[i].Success {
			return &r.Stages[i]
		}
	}
	return nil
}

// DeployHash returns the resource handle obtained by a successful submission,
// or "" if the run did not reach a successful submit.
func (r *Report) DeployHash() string {
	for i := range r.Stages {
		if r.Stages[i].Stage == StageSubmit && r.Stages[i].Submit != nil {
			return r.Stages[i].Submit.DeployHash
		}
	}
	return ""
}
