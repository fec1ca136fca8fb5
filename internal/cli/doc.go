// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses command-line arguments and implements the non-TUI
// command handlers: the interactive plain-terminal chat, session
// inspection, and configuration management.
//
// The TUI itself lives in internal/ui; main routes to it for the default
// command.
package cli
