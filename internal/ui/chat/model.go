// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/advisor-tui/internal/markdown"
	"github.com/jeranaias/advisor-tui/internal/model"
	"github.com/jeranaias/advisor-tui/internal/session"
	"github.com/jeranaias/advisor-tui/internal/stream"
	"github.com/jeranaias/advisor-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// The streaming controller runs off the Bubble Tea loop; its callbacks are
// forwarded into the loop as these messages (wired up in main via p.Send).

// StreamStateMsg reports a lifecycle state transition.
type StreamStateMsg struct {
	State stream.State
}

// StreamUpdateMsg reports that the streaming message's text grew.
type StreamUpdateMsg struct {
	MessageID string
}

// StreamMetadataMsg carries metadata that arrived mid-stream.
type StreamMetadataMsg struct {
	MessageID string
	Metadata  model.Metadata
}

// StreamCompleteMsg reports that the turn finished and the message froze.
type StreamCompleteMsg struct {
	MessageID string
	Metadata  model.Metadata
}

// StreamErrorMsg reports that the turn ended in an error. The error text is
// already in the message content; ErrText is for the status surface.
type StreamErrorMsg struct {
	MessageID string
	ErrText   string
}

// SessionRestoredMsg reports the outcome of session restoration at startup.
type SessionRestoredMsg struct {
	Restored bool
}

// SessionClearedMsg reports the outcome of a conversation clear.
type SessionClearedMsg struct {
	Err error
}

// ToastMsg surfaces a transient notification in the status area.
type ToastMsg struct {
	Text    string
	IsError bool
}

// toastExpireMsg hides the toast whose sequence number matches.
type toastExpireMsg struct {
	seq int
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int
	ready  bool

	// Conversation and orchestration
	conversation *model.Conversation
	controller   *stream.Controller
	store        *session.Store
	renderer     *markdown.Renderer

	// Mirrored controller state, updated via StreamStateMsg
	state stream.State

	// Streaming repaint throttle and scroll intent
	gate   *RenderGate
	scroll *AutoScroller

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Key bindings
	keyMap KeyMap

	// Toast notification
	toastText  string
	toastError bool
	toastSeq   int

	// Help overlay
	showHelp bool

	// Display options
	showTimestamps bool
	restoreOnStart bool
}

// Options configures a chat model.
type Options struct {
	Conversation *model.Conversation
	Controller   *stream.Controller
	Store        *session.Store

	// ScrollThreshold is how many lines from the bottom still count as
	// following the tail. Zero uses the default.
	ScrollThreshold int

	// ShowTimestamps prints a timestamp next to each message label.
	ShowTimestamps bool

	// RestoreOnStart fetches the previous session's history during Init.
	RestoreOnStart bool
}

// New creates a new chat model.
func New(opts Options) Model {
	theme := styles.NewTheme()

	input := textinput.New()
	input.Placeholder = "Ask about your portfolio..."
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		theme:          theme,
		conversation:   opts.Conversation,
		controller:     opts.Controller,
		store:          opts.Store,
		renderer:       markdown.NewRenderer(80),
		state:          stream.StateIdle,
		gate:           NewRenderGate(),
		scroll:         NewAutoScroller(opts.ScrollThreshold),
		input:          input,
		spinner:        sp,
		keyMap:         DefaultKeyMap(),
		showTimestamps: opts.ShowTimestamps,
	}

	m.restoreOnStart = opts.RestoreOnStart
	return m
}

// Init starts the spinner, cursor blink, and optionally session restoration.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		textinput.Blink,
	}
	if m.restoreOnStart && m.store != nil {
		cmds = append(cmds, restoreSessionCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// COMMANDS
// =============================================================================

// restoreSessionCmd fetches the previous session's history from the backend.
func restoreSessionCmd(store *session.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return SessionRestoredMsg{Restored: store.Restore(ctx)}
	}
}

// clearSessionCmd deletes the session server-side and resets local state.
func clearSessionCmd(store *session.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return SessionClearedMsg{Err: store.Clear(ctx)}
	}
}

// toastExpireCmd hides the toast after a short display window.
func toastExpireCmd(seq int) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return toastExpireMsg{seq: seq}
	})
}
