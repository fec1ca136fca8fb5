// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command handler for the advisor CLI.
//
// Command: config
//
// Examples:
//   advisor config show     Print the effective configuration
//   advisor config init     Write a default config file
//   advisor config path     Print the config file location
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jeranaias/advisor-tui/internal/config"
)

// HandleConfig routes the config subcommands.
func HandleConfig(args Args) {
	switch args.Subcommand {
	case "", "show":
		handleConfigShow(args)
	case "init":
		handleConfigInit()
	case "path":
		handleConfigPath()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: advisor config [show|init|path]")
		os.Exit(1)
	}
}

// handleConfigShow prints the effective configuration: file, environment
// overrides, and defaults combined.
func handleConfigShow(args Args) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if args.JSON {
		// The token is redacted on the way out; show never leaks secrets.
		redacted := *cfg
		if redacted.Backend.AuthToken != "" {
			redacted.Backend.AuthToken = "(set)"
		}
		out, _ := json.MarshalIndent(&redacted, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("Backend URL:          %s\n", cfg.Backend.BaseURL)
	fmt.Printf("Auth token:           %s\n", tokenStatus(cfg.Backend.AuthToken))
	fmt.Printf("Request timeout:      %ds\n", cfg.Backend.TimeoutSecs)
	fmt.Printf("Stream idle timeout:  %ds\n", cfg.Backend.StreamIdleTimeoutSecs)
	fmt.Printf("Theme:                %s\n", cfg.UI.Theme)
	fmt.Printf("Show timestamps:      %t\n", cfg.UI.ShowTimestamps)
	fmt.Printf("Autoscroll threshold: %d\n", cfg.UI.AutoScrollThreshold)
	fmt.Printf("Restore on start:     %t\n", cfg.Session.RestoreOnStart)

	if path, err := cfg.StatePath(); err == nil {
		fmt.Printf("State path:           %s\n", path)
	}
}

// handleConfigInit writes a default config file unless one already exists.
func handleConfigInit() {
	path, err := config.ConfigPathTOML()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return
	}

	if err := config.Save(config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config: %s\n", path)
}

// handleConfigPath prints the config file location.
func handleConfigPath() {
	path, err := config.ConfigPathTOML()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func tokenStatus(token string) string {
	if token == "" {
		return "(not set)"
	}
	return "(set)"
}
