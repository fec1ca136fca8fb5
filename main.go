// advisor TUI - a streaming terminal client for the portfolio advisor agent.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/advisor-tui/internal/agent"
	"github.com/jeranaias/advisor-tui/internal/cli"
	"github.com/jeranaias/advisor-tui/internal/config"
	"github.com/jeranaias/advisor-tui/internal/model"
	"github.com/jeranaias/advisor-tui/internal/session"
	"github.com/jeranaias/advisor-tui/internal/stream"
	"github.com/jeranaias/advisor-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async streaming callbacks
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()
	setupLogging(args.Verbose)

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdSession:
		cli.HandleSession(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	}
}

// setupLogging routes the standard logger to a debug file under the config
// directory when verbose, and discards it otherwise. Stdout and stderr
// belong to the TUI.
func setupLogging(verbose bool) {
	if !verbose {
		log.SetOutput(io.Discard)
		return
	}
	dir, err := config.ConfigDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		log.SetOutput(io.Discard)
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(f)
	log.Printf("advisor %s starting (commit %s)", Version, GitCommit)
}

// =============================================================================
// TUI WIRING
// =============================================================================

func runTUI(args cli.Args) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Not a terminal. Use 'advisor chat' for plain output.")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyArgs(cfg, args)
	log.Printf("backend %s, restore_on_start=%t", cfg.Backend.BaseURL, cfg.Session.RestoreOnStart)

	var tokenSource agent.TokenSource
	if tok := cfg.Backend.AuthToken; tok != "" {
		tokenSource = func() string { return tok }
	}
	client := agent.NewClient(cfg.Backend.BaseURL, tokenSource)

	conv := model.NewConversation()

	cache, err := openStateCache(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session state: %v\n", err)
		os.Exit(1)
	}
	defer cache.Close()

	store := session.NewStore(client, cache, conv, cfg.Session.Greeting)

	// Controller callbacks fire on the streaming goroutine; forward them
	// into the Bubble Tea loop through the program reference.
	ctrl := stream.NewController(client, conv, stream.Callbacks{
		OnState: func(s stream.State) {
			send(chat.StreamStateMsg{State: s})
		},
		OnUpdate: func(messageID string) {
			send(chat.StreamUpdateMsg{MessageID: messageID})
		},
		OnMetadata: func(messageID string, md model.Metadata) {
			send(chat.StreamMetadataMsg{MessageID: messageID, Metadata: md})
		},
		OnComplete: func(messageID string, md model.Metadata) {
			send(chat.StreamCompleteMsg{MessageID: messageID, Metadata: md})
		},
		OnError: func(messageID, errText string) {
			send(chat.StreamErrorMsg{MessageID: messageID, ErrText: errText})
		},
	})
	if secs := cfg.Backend.StreamIdleTimeoutSecs; secs > 0 {
		ctrl.SetIdleTimeout(time.Duration(secs) * time.Second)
	}

	m := chat.New(chat.Options{
		Conversation:    conv,
		Controller:      ctrl,
		Store:           store,
		ScrollThreshold: cfg.UI.AutoScrollThreshold,
		ShowTimestamps:  cfg.UI.ShowTimestamps,
		RestoreOnStart:  cfg.Session.RestoreOnStart,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	// Pick up config edits while running; invalid edits are ignored by the
	// watcher, valid ones just surface a notice for now.
	watcher := watchConfig()
	if watcher != nil {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running advisor: %v\n", err)
		os.Exit(1)
	}
}

// send forwards a message into the Bubble Tea loop, if it is running.
func send(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// watchConfig starts the config file watcher. Watch failures are not fatal;
// the TUI simply runs with the startup configuration.
func watchConfig() *config.Watcher {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, func(*config.Config) {
		log.Printf("config file changed: %s", path)
		send(chat.ToastMsg{Text: "Configuration reloaded (restart to apply)"})
	})
	if err != nil {
		return nil
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil
	}
	return w
}

// openStateCache opens the session identity cache, degrading to an
// in-memory database when the configured path is unusable.
func openStateCache(cfg *config.Config) (*session.IdentityCache, error) {
	path, err := cfg.StatePath()
	if err == nil {
		if cache, err := session.OpenIdentityCache(path); err == nil {
			return cache, nil
		}
	}
	return session.OpenIdentityCache(":memory:")
}

// applyArgs applies CLI flags on top of the loaded configuration.
func applyArgs(cfg *config.Config, args cli.Args) {
	if args.URL != "" {
		cfg.Backend.BaseURL = args.URL
	}
	if args.Token != "" {
		cfg.Backend.AuthToken = args.Token
	}
	if args.NoRestore {
		cfg.Session.RestoreOnStart = false
	}
}
