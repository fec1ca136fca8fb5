// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file assembles the chat screen: header, transcript viewport,
// status bar, and input line.
package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/advisor-tui/internal/stream"
	"github.com/jeranaias/advisor-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatusBar(),
		m.renderInput(),
	}

	view := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, view, m.renderHelp())
	}
	return view
}

// renderHeader renders the title bar.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("Portfolio Advisor")

	subtitle := ""
	if m.store != nil {
		if id := m.store.SessionID(); id != "" {
			subtitle = m.theme.HeaderSubtitle.Render("session " + shortID(id))
		}
	}

	line := title
	if subtitle != "" {
		line += "  " + subtitle
	}
	return m.theme.Header.Width(m.width).Render(line)
}

// renderStatusBar renders the single status line between the transcript and
// the input: stream state or toast on the left, shortcuts on the right,
// and the jump-to-latest badge when the user scrolled away from new content.
func (m Model) renderStatusBar() string {
	left := m.renderStatusLeft()

	if m.scroll.ShowJumpBadge() {
		left += " " + m.theme.JumpBadge.Render("New messages below (C-j)")
	}

	right := m.theme.ShortcutKey.Render("C-h") + m.theme.ShortcutDesc.Render(" help")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderStatusLeft() string {
	if m.toastText != "" {
		if m.toastError {
			return m.theme.ToastError.Render(m.toastText)
		}
		return m.theme.Toast.Render(m.toastText)
	}

	switch m.state {
	case stream.StateRequesting, stream.StateThinking:
		return m.spinner.View() + m.theme.ThinkingText.Render(" Thinking... (Esc to cancel)")
	case stream.StateStreamingTokens:
		return m.spinner.View() + m.theme.ThinkingText.Render(" Responding... (Esc to cancel)")
	case stream.StateFinalizing:
		return m.theme.ThinkingText.Render("Finishing...")
	case stream.StateErrored:
		return m.theme.ErrorBody.Render("Last response failed")
	default:
		return m.theme.ShortcutDesc.Render("Ready")
	}
}

// renderInput renders the bordered input line.
func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// renderHelp renders the keyboard shortcut overlay.
func (m Model) renderHelp() string {
	rows := []struct{ k, d string }{
		{"Enter", "send message"},
		{"Esc", "cancel response"},
		{"C-j / End", "jump to latest"},
		{"C-l", "clear conversation"},
		{"PgUp / PgDn", "scroll"},
		{"C-h", "toggle this help"},
		{"C-c", "quit"},
	}

	var out strings.Builder
	for i, r := range rows {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString("  ")
		out.WriteString(m.theme.ShortcutKey.Render(util.PadRight(r.k, 12)))
		out.WriteString(m.theme.ShortcutDesc.Render(r.d))
	}
	return m.theme.Container.Render(out.String())
}

// =============================================================================
// HELPERS
// =============================================================================

// shortID abbreviates a session identifier for the header.
func shortID(id string) string {
	const max = 8
	if len(id) <= max {
		return id
	}
	return id[:max]
}
