// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Session inspection and deletion for the advisor CLI.
//
// Command: session
//
// Examples:
//   advisor session show          Show the stored session and its history
//   advisor session show --json   Machine-readable output
//   advisor session clear         Delete the session server-side and locally
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/advisor-tui/internal/agent"
	"github.com/jeranaias/advisor-tui/internal/config"
	"github.com/jeranaias/advisor-tui/internal/model"
	"github.com/jeranaias/advisor-tui/internal/session"
	"github.com/jeranaias/advisor-tui/internal/util"
)

// HandleSession routes the session subcommands.
func HandleSession(args Args) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, args)

	switch args.Subcommand {
	case "", "show":
		handleSessionShow(cfg, args)
	case "clear", "delete":
		handleSessionClear(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown session subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: advisor session [show|clear]")
		os.Exit(1)
	}
}

// handleSessionShow prints the stored session identifier and, when the
// backend still has it, the session history.
func handleSessionShow(cfg *config.Config, args Args) {
	cache, err := openStateCache(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state: %v\n", err)
		os.Exit(1)
	}
	defer cache.Close()

	id, err := cache.Load()
	if err != nil || id == "" {
		if args.JSON {
			fmt.Println(`{"session_id": null}`)
			return
		}
		fmt.Println("No stored session.")
		return
	}

	var tokenSource agent.TokenSource
	if tok := cfg.Backend.AuthToken; tok != "" {
		tokenSource = func() string { return tok }
	}
	client := agent.NewClient(cfg.Backend.BaseURL, tokenSource)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap, err := client.FetchSession(ctx, id)
	if err != nil {
		fmt.Printf("Session: %s\n", id)
		fmt.Printf("History unavailable: %v\n", err)
		return
	}

	if args.JSON {
		out, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("Session:       %s\n", snap.SessionID)
	if snap.CreatedAt != "" {
		fmt.Printf("Created:       %s\n", snap.CreatedAt)
	}
	if snap.LastActivity != "" {
		fmt.Printf("Last activity: %s\n", snap.LastActivity)
	}
	fmt.Printf("Messages:      %d\n", len(snap.Messages))
	fmt.Println()

	for _, m := range snap.Messages {
		label := "advisor"
		if m.IsUser {
			label = "you"
		}
		fmt.Printf("[%s] %s\n", label, util.TruncateRunes(m.Text, 100))
	}
}

// handleSessionClear deletes the session on the server and forgets the
// stored identifier.
func handleSessionClear(cfg *config.Config) {
	cache, err := openStateCache(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state: %v\n", err)
		os.Exit(1)
	}
	defer cache.Close()

	var tokenSource agent.TokenSource
	if tok := cfg.Backend.AuthToken; tok != "" {
		tokenSource = func() string { return tok }
	}
	client := agent.NewClient(cfg.Backend.BaseURL, tokenSource)

	conv := model.NewConversation()
	store := session.NewStore(client, cache, conv, cfg.Session.Greeting)

	// Adopt the cached identifier so Clear targets the server session too.
	if id, err := cache.Load(); err == nil && id != "" {
		store.Adopt(id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := store.Clear(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Session cleared.")
}
