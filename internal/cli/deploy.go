// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
	"github.com/wasmforge/wasmforge/internal/pipeline"
	"github.com/wasmforge/wasmforge/internal/rpc"
	"github.com/wasmforge/wasmforge/internal/server"
)

type deployOptions struct {
	configPath string
	noColor    bool
}

func deployCommand(args []string) error {
	opts := &deployOptions{}
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := setup(opts.configPath)
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := rpc.NewClient(cfg.Deployment.NodeURL, cfg.Deployment.AuthToken)
	runner := pipeline.NewRunner(cfg, client)

	report := runner.Run(ctx)

	if path, err := pipeline.NewReportWriter(cfg.Reports.Dir).Write(&report); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write report: %v\n", err)
	} else {
		fmt.Printf("Report: %s\n\n", path)
	}

	renderReport(&report, cfg.Deployment.ExplorerURL, opts.noColor)

	if !report.Terminal {
		if failed := report.FailedStage(); failed != nil {
			return fmt.Errorf("deployment failed at %s stage: %s", failed.Stage, failed.ErrorMessage())
		}
		return fmt.Errorf("deployment did not complete")
	}
	return nil
}

func cleanCommand(args []string) error {
	var configPath string
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := pipeline.NewCleaner(cfg.Clean).Clean(ctx)
	if !outcome.Success {
		return fmt.Errorf("clean failed: %s", outcome.ErrorMessage)
	}
	if len(outcome.RemovedPaths) == 0 {
		fmt.Println("Nothing to clean")
	} else {
		for _, p := range outcome.RemovedPaths {
			fmt.Printf("Removed %s\n", p)
		}
	}
	return nil
}

func verifyCommand(args []string) error {
	var configPath string
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("artifact path required\n\nUsage:\n  %s verify <artifact>", appName)
	}
	artifactPath := fs.Arg(0)

	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	outcome := pipeline.NewVerifier(cfg.Verify).Verify(artifactPath)
	fmt.Println(outcome.RawOutput)
	if !outcome.Success {
		if outcome.ErrorMessage != "" {
			return fmt.Errorf("verification failed: %s", outcome.ErrorMessage)
		}
		return fmt.Errorf("verification failed: %d check(s) failed", len(outcome.FailedChecks))
	}
	fmt.Println("Artifact OK")
	return nil
}

func serveCommand(args []string) error {
	var configPath string
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := rpc.NewClient(cfg.Deployment.NodeURL, cfg.Deployment.AuthToken)
	runner := pipeline.NewRunner(cfg, client)

	srv := server.NewServer(cfg, runner)
	runner.SetEventSink(srv.Registry().Broadcast)

	return srv.Start(ctx)
}

// setup loads configuration and initializes logging.
func setup(configPath string) (*config.AppConfig, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
