// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the mapping between the durable server-issued
// session identifier and the in-memory conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/advisor-tui/internal/agent"
	"github.com/jeranaias/advisor-tui/internal/model"
)

// DefaultGreeting opens a fresh conversation when no server history exists.
const DefaultGreeting = "Hi! I'm your portfolio advisor. Ask me about your holdings, " +
	"performance, or anything else about your investments."

// =============================================================================
// INTERFACES
// =============================================================================

// Fetcher is the slice of the agent client the store needs. The concrete
// *agent.Client satisfies it; tests substitute a fake.
type Fetcher interface {
	FetchSession(ctx context.Context, sessionID string) (*agent.SessionSnapshot, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Cache persists the session identifier between runs.
type Cache interface {
	Load() (string, error)
	Save(id string) error
	Discard() error
}

// =============================================================================
// STORE
// =============================================================================

// Store reconciles the cached session identifier with the server's
// authoritative history. The cached identifier is only trusted after a
// successful restore; any restore failure falls back to a fresh greeting
// conversation without surfacing an error.
// IMPORTANT: use as a pointer; it carries a mutex.
type Store struct {
	mu      sync.Mutex
	backend Fetcher
	cache   Cache
	conv    *model.Conversation

	sessionID string
	greeting  string
}

// NewStore creates a store over the given backend, cache, and conversation.
func NewStore(backend Fetcher, cache Cache, conv *model.Conversation, greeting string) *Store {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	return &Store{
		backend:  backend,
		cache:    cache,
		conv:     conv,
		greeting: greeting,
	}
}

// SessionID returns the adopted session identifier, or "" when none is
// trusted yet.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Adopt records a server-issued identifier after a successful exchange and
// persists it. Empty or unchanged identifiers are ignored.
func (s *Store) Adopt(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.sessionID {
		return
	}
	s.sessionID = id
	// A persistence failure costs continuity on the next run, nothing more.
	_ = s.cache.Save(id)
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore fetches the cached session's history from the server and replaces
// the conversation with it. Idempotent: it may run any number of times
// (startup, terminal focus regained) and always ends in a consistent state,
// either the restored history with the identifier adopted, or a clean
// greeting reset with the identifier discarded. Failures are absorbed;
// a fresh session is never an error. Returns true when a history was
// restored.
func (s *Store) Restore(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.sessionID
	if id == "" {
		cached, err := s.cache.Load()
		if err != nil || cached == "" {
			s.resetLocked()
			return false
		}
		id = cached
	}

	snap, err := s.backend.FetchSession(ctx, id)
	if err != nil || snap == nil || len(snap.Messages) == 0 {
		// Not-found, network failure, or an empty history: the cached
		// identifier is no longer trustworthy. Start a fresh session.
		s.sessionID = ""
		_ = s.cache.Discard()
		s.conv.Reset(s.greeting)
		return false
	}

	s.conv.Replace(restoredMessages(snap.Messages))
	s.sessionID = snap.SessionID
	_ = s.cache.Save(snap.SessionID)
	return true
}

// resetLocked installs the greeting unless the conversation already holds
// local messages worth keeping. Caller holds s.mu.
func (s *Store) resetLocked() {
	if s.conv.Len() == 0 {
		s.conv.Reset(s.greeting)
	}
}

// restoredMessages converts the wire history into conversation messages,
// preserving server order and identifiers.
func restoredMessages(wire []agent.SessionMessage) []model.Message {
	msgs := make([]model.Message, 0, len(wire))
	for _, m := range wire {
		role := model.RoleAgent
		if m.IsUser {
			role = model.RoleUser
		}
		msgs = append(msgs, model.Message{
			ID:        m.ID,
			Role:      role,
			Content:   m.Text,
			Timestamp: parseTimestamp(m.Timestamp),
		})
	}
	return msgs
}

// parseTimestamp handles the backend's ISO-8601 timestamps, with and
// without a zone offset. Unparseable values degrade to the current time
// rather than dropping the message.
func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

// =============================================================================
// CLEAR
// =============================================================================

// Clear deletes the session on the server, then resets local state. On
// server failure the error is returned with the server's reason and local
// state is left untouched; silently orphaning the UI from a still-existing
// server session would desynchronize the two.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID != "" {
		if err := s.backend.ClearSession(ctx, s.sessionID); err != nil {
			// A session the server already forgot is as good as cleared.
			if !errors.Is(err, agent.ErrSessionNotFound) {
				return fmt.Errorf("clear session: %w", err)
			}
		}
	}

	s.sessionID = ""
	_ = s.cache.Discard()
	s.conv.Reset(s.greeting)
	return nil
}
