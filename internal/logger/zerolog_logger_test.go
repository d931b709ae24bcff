// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
)

func testLogConfig(t *testing.T) *config.LogConfig {
	t.Helper()
	return &config.LogConfig{
		Level:  "DEBUG",
		Format: "json",
		Output: []config.LogOutputConfig{
			{
				Type:    "file",
				Enabled: true,
				Path:    filepath.Join(t.TempDir(), "test.log"),
			},
		},
		Levels: map[string]string{
			"pipeline": "INFO",
			"rpc":      "ERROR",
		},
		Context: config.LogContextConfig{
			IncludeTimestamp: true,
		},
	}
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(testLogConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if len(m.writers) != 1 {
		t.Errorf("expected 1 writer, got %d", len(m.writers))
	}
}

func TestNewManagerCreatesLogDirectory(t *testing.T) {
	cfg := testLogConfig(t)
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "test.log")
	cfg.Output[0].Path = logPath

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if _, err := os.Stat(filepath.Dir(logPath)); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
}

func TestNewManagerRejectsUnknownOutputType(t *testing.T) {
	cfg := testLogConfig(t)
	cfg.Output[0].Type = "syslog"

	if _, err := NewManager(cfg); err == nil {
		t.Error("expected error for unsupported output type")
	}
}

func TestManagerPerPackageLevels(t *testing.T) {
	m, err := NewManager(testLogConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	tests := []struct {
		pkg  string
		want zerolog.Level
	}{
		{"pipeline", zerolog.InfoLevel},
		{"rpc", zerolog.ErrorLevel},
		{"unlisted", zerolog.DebugLevel}, // falls back to the global level
	}

	for _, tt := range tests {
		if got := m.GetLogger(tt.pkg).GetLevel(); got != tt.want {
			t.Errorf("GetLogger(%q) level = %v, want %v", tt.pkg, got, tt.want)
		}
	}
}

func TestManagerCachesPackageLoggers(t *testing.T) {
	m, err := NewManager(testLogConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	first := m.GetLogger("pipeline")
	second := m.GetLogger("pipeline")
	if first.GetLevel() != second.GetLevel() {
		t.Error("cached logger differs from the first one")
	}
	if len(m.packageLoggers) != 1 {
		t.Errorf("expected 1 cached logger, got %d", len(m.packageLoggers))
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	// Without an initialized global manager a discard logger is returned;
	// logging through it must not panic.
	log := GetLogger("pipeline")
	log.Info().Msg("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"FATAL", zerolog.FatalLevel},
		{"PANIC", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
