// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the HTTP client for the conversational advisor
// backend: the streaming chat endpoint, its non-streaming fallback, and the
// session restore/clear endpoints.
package agent

import (
	"github.com/jeranaias/advisor-tui/internal/model"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType tags a decoded stream event.
type EventType string

const (
	// EventMetadata carries the turn's structured payload before tokens flow.
	EventMetadata EventType = "metadata"
	// EventToken carries one text fragment of the response.
	EventToken EventType = "token"
	// EventComplete is the terminal success event.
	EventComplete EventType = "complete"
	// EventError is the terminal failure event.
	EventError EventType = "error"
)

// StreamEvent is one decoded event from the chat stream. Events arrive in
// send order over a single connection; the client performs no reordering
// and no deduplication.
type StreamEvent struct {
	Type EventType

	// Token fields
	Content string
	Index   int
	IsFinal bool

	// Error field
	ErrorText string

	// Metadata payload (metadata events) or final aggregate (complete).
	Metadata model.Metadata
}

// Terminal reports whether the event ends the stream attempt.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// ChatRequest is the body for both the streaming and fallback endpoints.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the single-shot response from the non-streaming endpoint.
type ChatResponse struct {
	Message             string         `json:"message"`
	SessionID           string         `json:"session_id"`
	UIHints             map[string]any `json:"ui_hints,omitempty"`
	ShowForm            bool           `json:"show_form,omitempty"`
	FormData            map[string]any `json:"form_data,omitempty"`
	PortfolioSummary    map[string]any `json:"portfolio_summary,omitempty"`
	ConfirmationRequest map[string]any `json:"confirmation_request,omitempty"`
}

// Metadata converts the response envelope into message metadata, mirroring
// the fields a metadata stream event would have carried.
func (r *ChatResponse) Metadata() model.Metadata {
	md := model.Metadata{}
	if r.SessionID != "" {
		md["session_id"] = r.SessionID
	}
	if r.UIHints != nil {
		md["ui_hints"] = r.UIHints
	}
	if r.ShowForm {
		md["show_form"] = true
	}
	if r.FormData != nil {
		md["form_data"] = r.FormData
	}
	if r.PortfolioSummary != nil {
		md["portfolio_summary"] = r.PortfolioSummary
	}
	if r.ConfirmationRequest != nil {
		md["confirmation_request"] = r.ConfirmationRequest
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

// =============================================================================
// SESSION TYPES
// =============================================================================

// SessionMessage is one serialized message in a restored session. Field
// names follow the backend's JSON exactly, including the camelCase isUser.
type SessionMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsUser    bool   `json:"isUser"`
	Timestamp string `json:"timestamp"`
}

// SessionSnapshot is the authoritative server-side view of a session.
type SessionSnapshot struct {
	SessionID    string           `json:"session_id"`
	Messages     []SessionMessage `json:"messages"`
	CreatedAt    string           `json:"created_at"`
	LastActivity string           `json:"last_activity"`
}

// ClearResult is the response to a session delete.
type ClearResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}
