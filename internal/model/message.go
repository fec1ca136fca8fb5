// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAgent:
		return "Advisor"
	default:
		return string(r)
	}
}

// =============================================================================
// METADATA TYPE
// =============================================================================

// Metadata holds the structured payload attached to an agent message:
// UI hints, form requests, portfolio summaries, confirmation requests.
// The keys are owned by the backend; the client treats them as opaque
// except for the accessors below.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata map.
func (md Metadata) Clone() Metadata {
	if md == nil {
		return nil
	}
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// SessionID returns the session identifier carried in the metadata, if any.
func (md Metadata) SessionID() string {
	if md == nil {
		return ""
	}
	if id, ok := md["session_id"].(string); ok {
		return id
	}
	return ""
}

// ShowForm reports whether the backend requested the portfolio form.
func (md Metadata) ShowForm() bool {
	if md == nil {
		return false
	}
	show, _ := md["show_form"].(bool)
	return show
}

// HasConfirmationRequest reports whether a confirmation workflow is pending.
func (md Metadata) HasConfirmationRequest() bool {
	if md == nil {
		return false
	}
	v, ok := md["confirmation_request"]
	return ok && v != nil
}

// HasPortfolioSummary reports whether a portfolio summary is attached.
func (md Metadata) HasPortfolioSummary() bool {
	if md == nil {
		return false
	}
	v, ok := md["portfolio_summary"]
	return ok && v != nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Messages are treated as values: while a message is streaming its Content
// grows through copy-and-replace in the owning Conversation, and once the
// streaming flag is cleared the message is frozen. Messages are never
// deleted individually; only a session-wide clear removes them.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content. Mutable (via replacement) while IsStreaming, frozen after.
	Content string `json:"content"`

	// IsStreaming marks the single in-flight placeholder message.
	// At most one message per conversation may have this set.
	IsStreaming bool `json:"-"`

	// Metadata captured from the stream's metadata/complete events.
	Metadata Metadata `json:"metadata,omitempty"`
}

// NewUserMessage creates a new user message with a generated ID.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAgentPlaceholder creates the empty agent message that a stream
// attempt fills in. It is born streaming.
func NewAgentPlaceholder() Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleAgent,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewAgentMessage creates a finalized agent message.
func NewAgentMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAgent,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
