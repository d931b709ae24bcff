// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
)

const (
	appName    = "wasmforge"
	appVersion = "0.1.0"
)

// Execute runs the CLI application
func Execute() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "deploy":
		return deployCommand(args)
	case "clean":
		return cleanCommand(args)
	case "verify":
		return verifyCommand(args)
	case "serve":
		return serveCommand(args)
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return printUsage()
	}
}

func printUsage() error {
	fmt.Printf(`%s - smart-contract deployment pipeline

Usage:
  %s <command> [arguments]

Commands:
  deploy            Run the full pipeline: clean, build, verify, prepare, submit
  clean             Remove stale build output directories
  verify <artifact> Structurally validate a built WASM artifact
  serve             Start the status server (reports, deploy trigger, event stream)
  version           Print version information
  help              Show this help message

Examples:
  %s deploy
  %s deploy --config deploy.yaml
  %s clean
  %s verify wasm/contract.wasm
  %s serve

`, appName, appName, appName, appName, appName, appName, appName)
	return nil
}
