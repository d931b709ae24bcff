// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Log        LogConfig        `mapstructure:"log"`
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Clean      CleanConfig      `mapstructure:"clean"`
	Build      BuildConfig      `mapstructure:"build"`
	Verify     VerifyConfig     `mapstructure:"verify"`
	Prepare    PrepareConfig    `mapstructure:"prepare"`
	Server     ServerConfig     `mapstructure:"server"`
	Reports    ReportsConfig    `mapstructure:"reports"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  []LogOutputConfig `mapstructure:"output"`
	Levels  map[string]string `mapstructure:"levels"`
	Context LogContextConfig  `mapstructure:"context"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"` // Level at which to include stack trace
}

// DeploymentConfig holds everything the submission side of the pipeline needs.
// It is immutable for the duration of one pipeline run; the orchestrator owns it
// and passes it read-only to each stage.
type DeploymentConfig struct {
	Network       string        `mapstructure:"network"`         // Network identifier, e.g. "casper-test"
	ChainName     string        `mapstructure:"chain_name"`      // Chain name passed to the signing client
	NodeURL       string        `mapstructure:"node_url"`        // RPC endpoint URL
	AuthToken     string        `mapstructure:"auth_token"`      // Optional Authorization header value
	SecretKeyPath string        `mapstructure:"secret_key_path"` // Credential handle; existence-checked, never read
	PaymentAmount string        `mapstructure:"payment_amount"`  // Motes, passed verbatim to the signing client
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"` // Per-attempt timeout
	ExplorerURL   string        `mapstructure:"explorer_url"`   // Base URL for deploy links
}

// CleanConfig holds the target paths removed by the clean stage.
type CleanConfig struct {
	Paths []string `mapstructure:"paths"`
}

// BuildConfig holds compiler invocation configuration.
type BuildConfig struct {
	SourceRoot    string        `mapstructure:"source_root"`
	Command       []string      `mapstructure:"command"`        // Compiler argv; --target appended when Target is set
	Target        string        `mapstructure:"target"`         // Target platform string, e.g. "wasm32-unknown-unknown"
	Timeout       time.Duration `mapstructure:"timeout"`
	ArtifactName  string        `mapstructure:"artifact_name"`  // Expected output file name
	CandidateDirs []string      `mapstructure:"candidate_dirs"` // Ordered output locations searched after a build
}

// VerifyConfig holds artifact verification thresholds.
type VerifyConfig struct {
	MinSizeBytes int64 `mapstructure:"min_size_bytes"`
}

// PrepareConfig holds signing client invocation configuration.
type PrepareConfig struct {
	Command     []string      `mapstructure:"command"`      // Signing client argv prefix, e.g. ["casper-client", "make-deploy"]
	PayloadPath string        `mapstructure:"payload_path"` // Where the signed payload file is written
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds status server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
}

// ReportsConfig holds pipeline report output configuration.
type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/wasmforge/")
		v.AddConfigPath("$HOME/.wasmforge")
	}

	// Configure viper to use environment variables
	v.SetEnvPrefix("WASMFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal the viper configuration into our config struct, overwriting
	// defaults with any values found in the config file or env vars.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "./logs/wasmforge.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: false, // Disabled by default to keep CLI output clean
				},
			},
			Levels: map[string]string{
				"pipeline": "INFO",
				"clean":    "INFO",
				"build":    "INFO",
				"verify":   "INFO",
				"submit":   "INFO",
				"rpc":      "INFO",
				"api":      "INFO",
			},
			Context: LogContextConfig{
				IncludeCaller:     true,
				IncludeTimestamp:  true,
				IncludeStackTrace: "ERROR",
			},
		},
		Deployment: DeploymentConfig{
			Network:       "casper-test",
			ChainName:     "casper-test",
			NodeURL:       "http://localhost:7777/rpc",
			SecretKeyPath: "keys/secret_key.pem",
			PaymentAmount: "100000000000",
			MaxRetries:    3,
			RetryDelay:    5 * time.Second,
			SubmitTimeout: 30 * time.Second,
			ExplorerURL:   "https://testnet.cspr.live",
		},
		Clean: CleanConfig{
			Paths: []string{"target", "wasm"},
		},
		Build: BuildConfig{
			SourceRoot:    ".",
			Command:       []string{"cargo", "build", "--release"},
			Target:        "wasm32-unknown-unknown",
			Timeout:       10 * time.Minute,
			ArtifactName:  "contract.wasm",
			CandidateDirs: []string{"wasm", "target/wasm32-unknown-unknown/release"},
		},
		Verify: VerifyConfig{
			MinSizeBytes: 1024,
		},
		Prepare: PrepareConfig{
			Command:     []string{"casper-client", "make-deploy"},
			PayloadPath: "deploy.json",
			Timeout:     time.Minute,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Reports: ReportsConfig{
			Dir: "./reports",
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	c.Deployment.SecretKeyPath = expandPath(c.Deployment.SecretKeyPath)
	c.Build.SourceRoot = expandPath(c.Build.SourceRoot)
	c.Prepare.PayloadPath = expandPath(c.Prepare.PayloadPath)
	c.Reports.Dir = expandPath(c.Reports.Dir)
	for i, p := range c.Clean.Paths {
		c.Clean.Paths[i] = expandPath(p)
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	path = os.ExpandEnv(path)

	return path
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Deployment.NodeURL == "" {
		return errors.New("deployment.node_url is required")
	}
	if c.Deployment.MaxRetries < 0 {
		return fmt.Errorf("deployment.max_retries must be >= 0, got %d", c.Deployment.MaxRetries)
	}
	if c.Deployment.RetryDelay < 0 {
		return fmt.Errorf("deployment.retry_delay must be >= 0, got %s", c.Deployment.RetryDelay)
	}

	if len(c.Clean.Paths) == 0 {
		return errors.New("clean.paths must name at least one target path")
	}
	if len(c.Build.Command) == 0 {
		return errors.New("build.command is required")
	}
	if c.Build.ArtifactName == "" {
		return errors.New("build.artifact_name is required")
	}
	if len(c.Build.CandidateDirs) == 0 {
		return errors.New("build.candidate_dirs must name at least one output location")
	}
	if len(c.Prepare.Command) == 0 {
		return errors.New("prepare.command is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}
