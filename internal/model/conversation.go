// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"sync"
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the ordered message history for one chat session.
//
// The message sequence is the single shared resource between the streaming
// controller, the session store, and the UI. Every mutation builds a fresh
// slice and swaps the reference (copy-on-write), so a slice handed out by
// Messages() stays valid and immutable for as long as the caller holds it.
// Insertion order is chronological order and messages are never reordered.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Messages returns the current message sequence. The returned slice is
// never mutated in place; callers may keep or range over it freely.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messages
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Last returns the most recent message and true, or a zero message and
// false when the conversation is empty.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// =============================================================================
// MUTATION (COPY-ON-WRITE)
// =============================================================================

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]Message, len(c.messages)+1)
	copy(next, c.messages)
	next[len(c.messages)] = msg
	c.messages = next
}

// SetStreamingContent replaces the content of the streaming message with
// the given id. Frozen messages are left untouched; a stale update for a
// message that is no longer streaming is silently dropped.
func (c *Conversation) SetStreamingContent(id, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaceLocked(id, func(m Message) (Message, bool) {
		if !m.IsStreaming {
			return m, false
		}
		m.Content = content
		return m, true
	})
}

// Finalize freezes the message with the given id: its content is fixed,
// metadata attached, and the streaming flag cleared.
func (c *Conversation) Finalize(id, content string, md Metadata) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaceLocked(id, func(m Message) (Message, bool) {
		if !m.IsStreaming {
			return m, false
		}
		m.Content = content
		m.Metadata = md.Clone()
		m.IsStreaming = false
		return m, true
	})
}

// Replace swaps the entire message sequence. Used by session restoration.
func (c *Conversation) Replace(msgs []Message) {
	next := make([]Message, len(msgs))
	copy(next, msgs)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = next
}

// Reset clears the history down to a single greeting message.
func (c *Conversation) Reset(greeting string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []Message{{
		ID:        "greeting",
		Role:      RoleAgent,
		Content:   greeting,
		Timestamp: time.Now(),
	}}
}

// Streaming returns the in-flight message and true, if one exists.
func (c *Conversation) Streaming() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].IsStreaming {
			return c.messages[i], true
		}
	}
	return Message{}, false
}

// replaceLocked rebuilds the slice with the message at id transformed.
// Returns false when the id is absent or the transform declined the change.
func (c *Conversation) replaceLocked(id string, fn func(Message) (Message, bool)) bool {
	for i := range c.messages {
		if c.messages[i].ID != id {
			continue
		}
		updated, ok := fn(c.messages[i])
		if !ok {
			return false
		}
		next := make([]Message, len(c.messages))
		copy(next, c.messages)
		next[i] = updated
		c.messages = next
		return true
	}
	return false
}
