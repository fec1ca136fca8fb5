// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for advisor.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdSession
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool

	// Backend overrides (CLI flags beat config and environment)
	URL   string
	Token string

	// NoRestore skips session restoration at startup
	NoRestore bool

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `advisor - terminal client for the portfolio advisor agent

Advisor is a streaming chat client for the portfolio advisor backend.

It provides:
  - A full-screen TUI with live streaming responses (default)
  - A plain-terminal chat REPL for minimal environments
  - Session continuity across restarts
  - Markdown rendering with syntax-highlighted code blocks

Usage:
  advisor                      Start TUI (default)
  advisor chat                 Interactive plain-terminal chat
  advisor session [show|clear] Session management
  advisor config [show|init|path]
                               Configuration management
  advisor version              Show version information
  advisor help                 Show this help

Chat Commands (during plain-terminal chat):
  /help, /h           Show available commands
  /clear, /c          Clear the conversation (server and local)
  /session, /s        Show the current session identifier
  /quit, /q           Exit chat
  Ctrl+C              Cancel current response
  Ctrl+D              Exit chat

Session Commands:
  advisor session show         Show the stored session and its history
  advisor session clear        Delete the session server-side and locally
    --json                     Output in JSON format (show only)

Config Commands:
  advisor config show          Print the effective configuration
  advisor config init          Write a default config file
  advisor config path          Print the config file location

Global Flags:
  --url URL           Backend base URL (overrides config and ADVISOR_URL)
  --token TOKEN       Bearer token (overrides config and ADVISOR_TOKEN)
  --no-restore        Start a fresh session, skip restoration
  -q, --quiet         Minimal output
  -v, --verbose       Verbose output
  --json              JSON output where supported

Environment:
  ADVISOR_URL         Backend base URL
  ADVISOR_TOKEN       Bearer token
  ADVISOR_THEME       UI theme (dark, light, auto)
  ADVISOR_STATE_PATH  Session state database path
  ADVISOR_NO_RESTORE  Disable session restoration when set

Config file: ~/.advisor/config.toml (or config.json)
`

// Parse parses os.Args and returns the command to run with its arguments.
func Parse() (Command, Args) {
	return parse(os.Args[1:])
}

// parse is the testable core of Parse.
func parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := remaining[0]
	rest := remaining[1:]

	switch cmd {
	case "chat":
		args.Raw = rest
		return CmdChat, args

	case "session", "sessions":
		if len(rest) > 0 {
			args.Subcommand = rest[0]
			args.Raw = rest[1:]
		}
		return CmdSession, args

	case "config":
		parseConfigArgs(&args, rest)
		return CmdConfig, args

	case "version", "-v", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		// Unknown command: show help rather than guessing.
		args.Raw = remaining
		return CmdHelp, args
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	i := 0
	for i < len(argv) {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--no-restore":
			args.NoRestore = true
		case "--url":
			if i+1 < len(argv) {
				i++
				args.URL = argv[i]
			}
		case "--token":
			if i+1 < len(argv) {
				i++
				args.Token = argv[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--url="):
				args.URL = strings.TrimPrefix(arg, "--url=")
			case strings.HasPrefix(arg, "--token="):
				args.Token = strings.TrimPrefix(arg, "--token=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, args
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = remaining[0]
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = remaining[2]
		}
	}
}

// =============================================================================
// TRIVIAL HANDLERS
// =============================================================================

// HandleHelp prints the usage text.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("advisor %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
