// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the mapping between the durable server-issued
// session identifier and the in-memory conversation.
package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jeranaias/advisor-tui/internal/agent"
	"github.com/jeranaias/advisor-tui/internal/model"
)

// fakeBackend scripts session fetch and clear behavior.
type fakeBackend struct {
	mu         sync.Mutex
	snapshot   *agent.SessionSnapshot
	fetchErr   error
	clearErr   error
	fetchCalls int
	clearCalls int
	clearedID  string
}

func (f *fakeBackend) FetchSession(ctx context.Context, id string) (*agent.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshot, nil
}

func (f *fakeBackend) ClearSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	f.clearedID = id
	return f.clearErr
}

// memCache is an in-memory Cache for tests.
type memCache struct {
	mu sync.Mutex
	id string
}

func (c *memCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, nil
}

func (c *memCache) Save(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	return nil
}

func (c *memCache) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = ""
	return nil
}

func (c *memCache) value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// twoMessageSnapshot builds a snapshot with one exchange.
func twoMessageSnapshot(id string) *agent.SessionSnapshot {
	return &agent.SessionSnapshot{
		SessionID: id,
		Messages: []agent.SessionMessage{
			{ID: "0", Text: "how am I doing", IsUser: true, Timestamp: "2025-06-01T10:00:00"},
			{ID: "1", Text: "Your portfolio is up.", IsUser: false, Timestamp: "2025-06-01T10:00:05"},
		},
	}
}

// =============================================================================
// RESTORE TESTS
// =============================================================================

func TestRestoreAdoptsCachedSession(t *testing.T) {
	backend := &fakeBackend{snapshot: twoMessageSnapshot("s-1")}
	cache := &memCache{id: "s-1"}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "")

	if !store.Restore(context.Background()) {
		t.Fatal("Expected restore to succeed")
	}

	if store.SessionID() != "s-1" {
		t.Errorf("Expected adopted session s-1, got %q", store.SessionID())
	}
	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 restored messages, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "how am I doing" {
		t.Errorf("First message wrong: %+v", msgs[0])
	}
	if msgs[1].Role != model.RoleAgent {
		t.Errorf("Second message should be agent-authored: %+v", msgs[1])
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("Timestamp must be parsed from the serialized form")
	}
	if msgs[0].Timestamp.Hour() != 10 || msgs[0].Timestamp.Minute() != 0 {
		t.Errorf("Timestamp parsed wrong: %v", msgs[0].Timestamp)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	backend := &fakeBackend{snapshot: twoMessageSnapshot("s-1")}
	cache := &memCache{id: "s-1"}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "")

	store.Restore(context.Background())
	first := conv.Messages()

	store.Restore(context.Background())
	second := conv.Messages()

	if len(first) != len(second) {
		t.Fatalf("Restoration not idempotent: %d vs %d messages", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Content != second[i].Content {
			t.Errorf("Message %d differs across restorations", i)
		}
	}
	if store.SessionID() != "s-1" {
		t.Errorf("Session id changed across restorations: %q", store.SessionID())
	}
}

func TestRestoreNotFoundResetsToGreeting(t *testing.T) {
	backend := &fakeBackend{fetchErr: agent.ErrSessionNotFound}
	cache := &memCache{id: "stale-id"}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "welcome back")

	if store.Restore(context.Background()) {
		t.Fatal("Expected restore to report no history")
	}

	if store.SessionID() != "" {
		t.Errorf("Stale identifier must be discarded, got %q", store.SessionID())
	}
	if cache.value() != "" {
		t.Errorf("Cache must be discarded, still holds %q", cache.value())
	}
	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].Content != "welcome back" {
		t.Errorf("Expected single greeting message, got %+v", msgs)
	}
}

func TestRestoreEmptyHistoryTreatedAsFresh(t *testing.T) {
	backend := &fakeBackend{snapshot: &agent.SessionSnapshot{SessionID: "s-1"}}
	cache := &memCache{id: "s-1"}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "")

	if store.Restore(context.Background()) {
		t.Fatal("Empty history must not count as a restore")
	}
	if store.SessionID() != "" || cache.value() != "" {
		t.Error("Identifier must be discarded on empty history")
	}
	if msgs := conv.Messages(); len(msgs) != 1 {
		t.Errorf("Expected greeting only, got %d messages", len(msgs))
	}
}

func TestRestoreWithoutCachedIDSkipsFetch(t *testing.T) {
	backend := &fakeBackend{}
	cache := &memCache{}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "")

	store.Restore(context.Background())

	if backend.fetchCalls != 0 {
		t.Errorf("No fetch expected without a cached id, got %d", backend.fetchCalls)
	}
	if msgs := conv.Messages(); len(msgs) != 1 || msgs[0].Content != DefaultGreeting {
		t.Errorf("Expected default greeting, got %+v", msgs)
	}
}

func TestRestorePreservesOngoingLocalConversation(t *testing.T) {
	backend := &fakeBackend{}
	cache := &memCache{}
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("unsent thoughts"))
	store := NewStore(backend, cache, conv, "")

	store.Restore(context.Background())

	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].Content != "unsent thoughts" {
		t.Errorf("Local conversation wiped by a no-op restore: %+v", msgs)
	}
}

// =============================================================================
// ADOPT TESTS
// =============================================================================

func TestAdoptPersistsIdentifier(t *testing.T) {
	cache := &memCache{}
	store := NewStore(&fakeBackend{}, cache, model.NewConversation(), "")

	store.Adopt("s-77")

	if store.SessionID() != "s-77" {
		t.Errorf("Expected adopted id s-77, got %q", store.SessionID())
	}
	if cache.value() != "s-77" {
		t.Errorf("Adoption must persist to cache, got %q", cache.value())
	}

	store.Adopt("")
	if store.SessionID() != "s-77" {
		t.Error("Empty identifier must be ignored")
	}
}

// =============================================================================
// CLEAR TESTS
// =============================================================================

func TestClearResetsOnSuccess(t *testing.T) {
	backend := &fakeBackend{snapshot: twoMessageSnapshot("s-1")}
	cache := &memCache{id: "s-1"}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "")
	store.Restore(context.Background())

	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if backend.clearedID != "s-1" {
		t.Errorf("Expected server delete of s-1, got %q", backend.clearedID)
	}
	if store.SessionID() != "" || cache.value() != "" {
		t.Error("Identifier must be discarded after clear")
	}
	if msgs := conv.Messages(); len(msgs) != 1 || msgs[0].Content != DefaultGreeting {
		t.Errorf("Expected greeting after clear, got %+v", msgs)
	}
}

func TestClearFailureLeavesStateUntouched(t *testing.T) {
	backend := &fakeBackend{
		snapshot: twoMessageSnapshot("s-1"),
		clearErr: errors.New("session is locked"),
	}
	cache := &memCache{id: "s-1"}
	conv := model.NewConversation()
	store := NewStore(backend, cache, conv, "")
	store.Restore(context.Background())
	before := conv.Messages()

	err := store.Clear(context.Background())
	if err == nil {
		t.Fatal("Expected clear failure to propagate")
	}

	// A failed delete must not orphan the UI from a live server session.
	if store.SessionID() != "s-1" {
		t.Errorf("Identifier must survive a failed clear, got %q", store.SessionID())
	}
	if cache.value() != "s-1" {
		t.Errorf("Cache must survive a failed clear, got %q", cache.value())
	}
	after := conv.Messages()
	if len(after) != len(before) {
		t.Errorf("Conversation mutated by failed clear: %d vs %d", len(before), len(after))
	}
}

func TestClearToleratesAlreadyForgottenSession(t *testing.T) {
	backend := &fakeBackend{
		snapshot: twoMessageSnapshot("s-1"),
		clearErr: agent.ErrSessionNotFound,
	}
	cache := &memCache{id: "s-1"}
	store := NewStore(backend, cache, model.NewConversation(), "")
	store.Restore(context.Background())

	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("A server that already forgot the session is cleared: %v", err)
	}
	if store.SessionID() != "" {
		t.Error("Identifier must be discarded")
	}
}

func TestClearedSessionNeverReusesIdentifier(t *testing.T) {
	backend := &fakeBackend{snapshot: twoMessageSnapshot("s-old")}
	cache := &memCache{id: "s-old"}
	store := NewStore(backend, cache, model.NewConversation(), "")
	store.Restore(context.Background())

	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	// The next exchange starts without an identifier; the server will issue
	// a fresh one, which the store then adopts.
	if store.SessionID() != "" {
		t.Fatalf("Old identifier leaked after clear: %q", store.SessionID())
	}
	store.Adopt("s-new")
	if store.SessionID() != "s-new" || cache.value() != "s-new" {
		t.Errorf("Fresh identifier not adopted: %q / %q", store.SessionID(), cache.value())
	}
}
