// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestParseDefaultsToTUI(t *testing.T) {
	cmd, _ := parse(nil)
	if cmd != CmdTUI {
		t.Errorf("no args should run the TUI, got %v", cmd)
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{[]string{"chat"}, CmdChat},
		{[]string{"session"}, CmdSession},
		{[]string{"sessions"}, CmdSession},
		{[]string{"config"}, CmdConfig},
		{[]string{"version"}, CmdVersion},
		{[]string{"--version"}, CmdVersion},
		{[]string{"help"}, CmdHelp},
		{[]string{"-h"}, CmdHelp},
		{[]string{"bogus"}, CmdHelp},
	}

	for _, tt := range tests {
		cmd, _ := parse(tt.argv)
		if cmd != tt.want {
			t.Errorf("parse(%v) = %v, want %v", tt.argv, cmd, tt.want)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	cmd, args := parse([]string{"--url", "http://example.test:9000", "--token=abc", "--no-restore", "-q", "chat"})

	if cmd != CmdChat {
		t.Fatalf("expected chat command, got %v", cmd)
	}
	if args.URL != "http://example.test:9000" {
		t.Errorf("URL = %q", args.URL)
	}
	if args.Token != "abc" {
		t.Errorf("Token = %q", args.Token)
	}
	if !args.NoRestore {
		t.Error("NoRestore should be set")
	}
	if !args.Quiet {
		t.Error("Quiet should be set")
	}
}

func TestParseURLEqualsForm(t *testing.T) {
	_, args := parse([]string{"--url=http://localhost:8000"})
	if args.URL != "http://localhost:8000" {
		t.Errorf("URL = %q", args.URL)
	}
}

func TestParseSessionSubcommand(t *testing.T) {
	cmd, args := parse([]string{"session", "clear"})
	if cmd != CmdSession {
		t.Fatalf("expected session command, got %v", cmd)
	}
	if args.Subcommand != "clear" {
		t.Errorf("Subcommand = %q", args.Subcommand)
	}
}

func TestParseConfigSetArguments(t *testing.T) {
	cmd, args := parse([]string{"config", "show"})
	if cmd != CmdConfig {
		t.Fatalf("expected config command, got %v", cmd)
	}
	if args.Subcommand != "show" {
		t.Errorf("Subcommand = %q", args.Subcommand)
	}
}

func TestParseJSONFlag(t *testing.T) {
	_, args := parse([]string{"--json", "session", "show"})
	if !args.JSON {
		t.Error("JSON should be set")
	}
}
