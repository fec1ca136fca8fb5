// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file renders the conversation transcript for the viewport.
package chat

import (
	"strings"

	"github.com/jeranaias/advisor-tui/internal/markdown"
	"github.com/jeranaias/advisor-tui/internal/model"
)

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderConversation builds the full transcript text for the viewport.
func (m *Model) renderConversation() string {
	msgs := m.conversation.Messages()
	if len(msgs) == 0 {
		return m.theme.ThinkingText.Render("No messages yet.")
	}

	var out strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(m.renderMessage(msg))
	}
	return out.String()
}

// renderMessage renders one message: a label line, the body, and a note
// for any structured payload the backend attached.
func (m *Model) renderMessage(msg model.Message) string {
	var out strings.Builder
	out.WriteString(m.renderLabel(msg))
	out.WriteString("\n")
	out.WriteString(m.renderBody(msg))
	if note := metadataNote(msg.Metadata); note != "" {
		out.WriteString("\n")
		out.WriteString(m.theme.ThinkingText.Render(note))
	}
	return out.String()
}

// metadataNote summarizes structured metadata the client does not act on
// itself, so the user can see the backend asked for something.
func metadataNote(md model.Metadata) string {
	var parts []string
	if md.ShowForm() {
		parts = append(parts, "form requested")
	}
	if md.HasConfirmationRequest() {
		parts = append(parts, "confirmation requested")
	}
	if md.HasPortfolioSummary() {
		parts = append(parts, "portfolio summary attached")
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// renderLabel renders the sender label with an optional timestamp.
func (m *Model) renderLabel(msg model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.AdvisorLabel.Render(msg.Role.DisplayName())
	}

	if m.showTimestamps && !msg.Timestamp.IsZero() {
		label += " " + m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}
	return label
}

// renderBody renders the message content. User text is shown verbatim;
// agent text goes through markdown stabilization and rendering. A message
// still streaming gets balance-closing so partial constructs display sanely;
// a frozen message is normalized only.
func (m *Model) renderBody(msg model.Message) string {
	if msg.Role == model.RoleUser {
		return m.theme.MessageBody.Render(msg.Content)
	}

	if msg.IsStreaming && msg.IsEmpty() {
		return m.spinner.View() + m.theme.ThinkingText.Render(" Thinking...")
	}

	stabilized := markdown.Stabilize(msg.Content, msg.IsStreaming)
	return m.renderer.Render(stabilized)
}
