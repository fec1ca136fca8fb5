// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamTickMsg:
		return m.handleStreamTick()

	case StreamStateMsg:
		m.state = msg.State
		if msg.State.Terminal() {
			// Paint whatever the throttle was still holding back.
			m.gate.ForceRender()
			m.refreshContent()
		}
		return m, nil

	case StreamUpdateMsg:
		m.gate.MarkDirty()
		return m, nil

	case StreamMetadataMsg:
		// Metadata is rendered from the conversation on the next repaint;
		// nothing to do beyond marking the content dirty.
		m.gate.MarkDirty()
		return m, nil

	case StreamCompleteMsg:
		if m.store != nil {
			m.store.Adopt(msg.Metadata.SessionID())
		}
		m.gate.ForceRender()
		m.refreshContent()
		return m, nil

	case StreamErrorMsg:
		m.gate.ForceRender()
		m.refreshContent()
		return m.showToast("Response failed", true)

	case SessionRestoredMsg:
		m.refreshContent()
		m.viewport.GotoBottom()
		if msg.Restored {
			return m.showToast("Previous session restored", false)
		}
		return m, nil

	case SessionClearedMsg:
		if msg.Err != nil {
			return m.showToast("Clear failed: "+msg.Err.Error(), true)
		}
		m.refreshContent()
		m.viewport.GotoBottom()
		m.scroll.JumpToLatest()
		return m.showToast("Conversation cleared", false)

	case ToastMsg:
		return m.showToast(msg.Text, msg.IsError)

	case toastExpireMsg:
		if msg.seq == m.toastSeq {
			m.toastText = ""
		}
		return m, nil
	}

	// Everything else flows through to the focused components. Mouse wheel
	// scrolling lands here, so the scroll coordinator observes it too.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.observeScroll()
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.controller != nil && m.controller.Busy() {
			m.controller.Cancel()
			m.gate.ForceRender()
			m.refreshContent()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Clear):
		if m.store == nil {
			return m, nil
		}
		return m, clearSessionCmd(m.store)

	case key.Matches(msg, m.keyMap.JumpLatest), key.Matches(msg, m.keyMap.End):
		m.scroll.JumpToLatest()
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keyMap.Up),
		key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp),
		key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.observeScroll()
		return m, cmd
	}

	// Remaining keys edit the input line.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit sends the typed message and starts a new streaming turn.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.controller == nil {
		return m, nil
	}

	sessionID := ""
	if m.store != nil {
		sessionID = m.store.SessionID()
	}
	m.controller.Submit(context.Background(), text, sessionID)

	m.input.Reset()
	m.gate.Reset()
	m.scroll.ResetOnSend()
	m.refreshContent()
	m.viewport.GotoBottom()

	return m, streamTickCmd()
}

// =============================================================================
// STREAMING REPAINT LOOP
// =============================================================================

// handleStreamTick repaints throttled streaming content and keeps the tick
// loop alive while a turn is in flight.
func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.gate.ShouldRender() {
		m.refreshContent()
	}
	if m.controller != nil && m.controller.Busy() {
		return m, streamTickCmd()
	}
	// One final repaint catches tokens that landed after the last gate pass.
	if m.gate.ForceRender() {
		m.refreshContent()
	}
	return m, nil
}

// =============================================================================
// LAYOUT AND CONTENT
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	headerHeight := 1
	statusHeight := 1
	inputHeight := 3
	viewportHeight := msg.Height - headerHeight - statusHeight - inputHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	m.input.Width = msg.Width - 6
	m.renderer.SetWidth(contentWidth(msg.Width))
	m.redrawContent()
}

// contentWidth is the wrap width inside the viewport's horizontal padding.
func contentWidth(terminalWidth int) int {
	w := terminalWidth - 2
	if w < 1 {
		w = 1
	}
	return w
}

// refreshContent re-renders the transcript and auto-scrolls when the user
// is following the tail.
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
	if m.scroll.OnContentDelta() {
		m.viewport.GotoBottom()
	}
}

// redrawContent re-renders without treating it as new content (resize,
// theme change). The scroll position is preserved.
func (m *Model) redrawContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
}

// observeScroll feeds the user's position to the autoscroll coordinator.
func (m *Model) observeScroll() {
	distance := m.viewport.TotalLineCount() - (m.viewport.YOffset + m.viewport.Height)
	if distance < 0 {
		distance = 0
	}
	m.scroll.ObserveScroll(distance)
}

// showToast displays a transient notification.
func (m Model) showToast(text string, isError bool) (tea.Model, tea.Cmd) {
	m.toastSeq++
	m.toastText = text
	m.toastError = isError
	return m, toastExpireCmd(m.toastSeq)
}
