// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the advisor CLI.
//
// Handles the "advisor chat" command, a plain-terminal REPL for
// environments where the full-screen TUI is unwanted (dumb terminals,
// scripting, accessibility tooling). Responses stream token by token to
// stdout; the same controller the TUI uses drives the turn lifecycle, so
// cancellation, fallback, and session adoption behave identically.
//
// Command: chat
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear the conversation (server and local)
//   /session, /s        Show the current session identifier
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current response
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/advisor-tui/internal/agent"
	"github.com/jeranaias/advisor-tui/internal/config"
	"github.com/jeranaias/advisor-tui/internal/model"
	"github.com/jeranaias/advisor-tui/internal/session"
	"github.com/jeranaias/advisor-tui/internal/stream"
	"github.com/jeranaias/advisor-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Supports history
// navigation with arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	Config *config.Config
	Quiet  bool

	Client       *agent.Client
	Conversation *model.Conversation
	Store        *session.Store
	Controller   *stream.Controller

	// printed tracks how much of the streaming message has been written to
	// stdout, so each update emits only the delta.
	printed int

	// done is signaled once per turn, whatever the outcome.
	done chan struct{}

	InputCLI *ChatCLI
}

// NewChatSession creates a new chat session from loaded configuration.
func NewChatSession(cfg *config.Config, args Args) (*ChatSession, error) {
	applyOverrides(cfg, args)

	var tokenSource agent.TokenSource
	if tok := cfg.Backend.AuthToken; tok != "" {
		tokenSource = func() string { return tok }
	}
	client := agent.NewClient(cfg.Backend.BaseURL, tokenSource)

	conv := model.NewConversation()

	cache, err := openStateCache(cfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(client, cache, conv, cfg.Session.Greeting)

	s := &ChatSession{
		Config:       cfg,
		Quiet:        args.Quiet,
		Client:       client,
		Conversation: conv,
		Store:        store,
		done:         make(chan struct{}, 1),
		InputCLI:     NewChatCLI(),
	}

	s.Controller = stream.NewController(client, conv, stream.Callbacks{
		OnUpdate:   s.onUpdate,
		OnComplete: s.onComplete,
		OnError:    s.onError,
		OnState:    s.onState,
	})
	if secs := cfg.Backend.StreamIdleTimeoutSecs; secs > 0 {
		s.Controller.SetIdleTimeout(time.Duration(secs) * time.Second)
	}

	return s, nil
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

// =============================================================================
// STREAM CALLBACKS
// =============================================================================

func (s *ChatSession) onUpdate(messageID string) {
	content, ok := s.messageContent(messageID)
	if !ok || len(content) <= s.printed {
		return
	}
	fmt.Print(content[s.printed:])
	s.printed = len(content)
}

func (s *ChatSession) onComplete(messageID string, md model.Metadata) {
	if content, ok := s.messageContent(messageID); ok && len(content) > s.printed {
		fmt.Print(content[s.printed:])
		s.printed = len(content)
	}
	s.Store.Adopt(md.SessionID())
	s.signalDone()
}

func (s *ChatSession) onError(messageID, errText string) {
	if s.printed > 0 {
		fmt.Println()
	}
	fmt.Println(errorStyle.Render(errText))
	s.signalDone()
}

func (s *ChatSession) onState(st stream.State) {
	if st == stream.StateCancelled {
		s.signalDone()
	}
}

func (s *ChatSession) signalDone() {
	select {
	case s.done <- struct{}{}:
	default:
	}
}

func (s *ChatSession) messageContent(id string) (string, bool) {
	for _, m := range s.Conversation.Messages() {
		if m.ID == id {
			return m.Content, true
		}
	}
	return "", false
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

// HandleChat runs the interactive plain-terminal chat.
func HandleChat(args Args) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	s, err := NewChatSession(cfg, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.InputCLI.Close()

	if !args.Quiet {
		fmt.Println(welcomeStyle.Render("Portfolio Advisor"))
		fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))
		fmt.Println()
	}

	// Restore the previous session unless told not to.
	if !args.NoRestore && cfg.Session.RestoreOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		restored := s.Store.Restore(ctx)
		cancel()
		if restored {
			s.printHistory()
		} else {
			s.printGreeting()
		}
	} else {
		s.Conversation.Reset(s.greeting())
		s.printGreeting()
	}

	// Main REPL loop using liner for input history.
	for {
		input, err := s.InputCLI.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C at the prompt: just offer a fresh prompt.
				continue
			}
			// Ctrl+D or terminal closed.
			fmt.Println()
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if s.handleCommand(input) {
				return
			}
			continue
		}

		s.runTurn(input)
	}
}

// runTurn submits one message and streams the response to stdout.
// Ctrl+C cancels the response without exiting the REPL.
func (s *ChatSession) runTurn(text string) {
	s.printed = 0

	// Drain a stale completion signal from a cancelled prior turn.
	select {
	case <-s.done:
	default:
	}

	fmt.Print(labelStyle.Render("advisor> "))
	s.Controller.Submit(context.Background(), text, s.Store.SessionID())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-s.done:
			fmt.Println()
			return
		case <-sigCh:
			s.Controller.Cancel()
			fmt.Println()
			fmt.Println(infoStyle.Render("(cancelled)"))
			return
		}
	}
}

// handleCommand executes a /command. Returns true when the REPL should exit.
func (s *ChatSession) handleCommand(input string) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println(infoStyle.Render("  /clear, /c     Clear the conversation"))
		fmt.Println(infoStyle.Render("  /session, /s   Show the session identifier"))
		fmt.Println(infoStyle.Render("  /quit, /q      Exit chat"))
		fmt.Println(infoStyle.Render("  Ctrl+C         Cancel current response"))

	case "/clear", "/c":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Store.Clear(ctx)
		cancel()
		if err != nil {
			fmt.Println(errorStyle.Render("Clear failed: " + err.Error()))
		} else {
			fmt.Println(infoStyle.Render("Conversation cleared."))
			s.printGreeting()
		}

	case "/session", "/s":
		if id := s.Store.SessionID(); id != "" {
			fmt.Println(infoStyle.Render("Session: " + id))
		} else {
			fmt.Println(infoStyle.Render("No session yet; one is assigned after the first response."))
		}

	default:
		fmt.Println(errorStyle.Render("Unknown command. Type /help for commands."))
	}
	return false
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (s *ChatSession) greeting() string {
	if g := s.Config.Session.Greeting; g != "" {
		return g
	}
	return session.DefaultGreeting
}

func (s *ChatSession) printGreeting() {
	fmt.Println(labelStyle.Render("advisor> ") + s.greeting())
	fmt.Println()
}

// printHistory replays the restored conversation.
func (s *ChatSession) printHistory() {
	if !s.Quiet {
		fmt.Println(infoStyle.Render("Restored previous session."))
		fmt.Println()
	}
	for _, m := range s.Conversation.Messages() {
		label := labelStyle.Render("advisor> ")
		if m.Role == model.RoleUser {
			label = promptStyle.Render("you> ")
		}
		fmt.Println(label + m.Content)
	}
	fmt.Println()
}

// applyOverrides applies CLI flags on top of the loaded configuration.
func applyOverrides(cfg *config.Config, args Args) {
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
