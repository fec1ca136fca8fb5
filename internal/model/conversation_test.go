// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"testing"
)

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversationAppend(t *testing.T) {
	conv := NewConversation()

	conv.Append(NewUserMessage("hello"))
	conv.Append(NewAgentPlaceholder())

	if conv.Len() != 2 {
		t.Fatalf("Expected 2 messages, got %d", conv.Len())
	}

	last, ok := conv.Last()
	if !ok {
		t.Fatal("Last returned no message")
	}
	if !last.IsStreaming {
		t.Error("Placeholder should be streaming")
	}
	if last.Role != RoleAgent {
		t.Errorf("Expected agent role, got %s", last.Role)
	}
}

func TestConversationCopyOnWrite(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("hello"))
	placeholder := NewAgentPlaceholder()
	conv.Append(placeholder)

	// Hold a reference to the sequence before mutation.
	before := conv.Messages()

	if !conv.SetStreamingContent(placeholder.ID, "Hel") {
		t.Fatal("SetStreamingContent should succeed for a streaming message")
	}

	// The old slice must be untouched by the update.
	if before[1].Content != "" {
		t.Errorf("Old sequence mutated in place: %q", before[1].Content)
	}

	after := conv.Messages()
	if after[1].Content != "Hel" {
		t.Errorf("Expected updated content 'Hel', got %q", after[1].Content)
	}
}

func TestConversationFinalizeFreezes(t *testing.T) {
	conv := NewConversation()
	placeholder := NewAgentPlaceholder()
	conv.Append(placeholder)

	md := Metadata{"session_id": "abc-123", "show_form": true}
	if !conv.Finalize(placeholder.ID, "done", md) {
		t.Fatal("Finalize should succeed")
	}

	msg, _ := conv.Last()
	if msg.IsStreaming {
		t.Error("Finalized message should not be streaming")
	}
	if msg.Content != "done" {
		t.Errorf("Expected content 'done', got %q", msg.Content)
	}
	if msg.Metadata.SessionID() != "abc-123" {
		t.Errorf("Expected session id 'abc-123', got %q", msg.Metadata.SessionID())
	}
	if !msg.Metadata.ShowForm() {
		t.Error("Expected show_form metadata to survive finalize")
	}

	// Frozen messages reject further streaming writes.
	if conv.SetStreamingContent(placeholder.ID, "late token") {
		t.Error("SetStreamingContent should be rejected after finalize")
	}
	msg, _ = conv.Last()
	if msg.Content != "done" {
		t.Errorf("Frozen content changed to %q", msg.Content)
	}
}

func TestConversationSingleStreamingInvariant(t *testing.T) {
	conv := NewConversation()
	first := NewAgentPlaceholder()
	conv.Append(first)
	conv.Finalize(first.ID, "first", nil)

	second := NewAgentPlaceholder()
	conv.Append(second)

	streaming := 0
	for _, m := range conv.Messages() {
		if m.IsStreaming {
			streaming++
		}
	}
	if streaming != 1 {
		t.Errorf("Expected exactly 1 streaming message, got %d", streaming)
	}

	got, ok := conv.Streaming()
	if !ok || got.ID != second.ID {
		t.Error("Streaming() should return the live placeholder")
	}
}

func TestConversationReset(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("one"))
	conv.Append(NewAgentMessage("two"))

	conv.Reset("Welcome back")

	if conv.Len() != 1 {
		t.Fatalf("Expected 1 message after reset, got %d", conv.Len())
	}
	msg, _ := conv.Last()
	if msg.Content != "Welcome back" || msg.Role != RoleAgent {
		t.Errorf("Unexpected greeting message: %+v", msg)
	}
}

func TestMessagePreview(t *testing.T) {
	msg := NewAgentMessage("héllo wörld, this is a long message")

	preview := msg.Preview(10)
	if len([]rune(preview)) != 10 {
		t.Errorf("Expected 10-rune preview, got %d runes", len([]rune(preview)))
	}

	short := NewAgentMessage("hi")
	if short.Preview(10) != "hi" {
		t.Errorf("Short message should not be truncated")
	}
}
