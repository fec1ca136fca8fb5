// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the mapping between the durable server-issued
// session identifier and the in-memory conversation.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// IDENTITY CACHE
// =============================================================================

// sessionKey is the single key this cache stores. The last-known session
// identifier is the only durable client-side state.
const sessionKey = "session_id"

const cacheSchema = `
CREATE TABLE IF NOT EXISTS client_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// IdentityCache persists the last-known session identifier across runs.
type IdentityCache struct {
	db *sql.DB
}

// OpenIdentityCache opens (or creates) the cache database at path.
func OpenIdentityCache(path string) (*IdentityCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &IdentityCache{db: db}, nil
}

// Load returns the cached session identifier, or "" when none is stored.
func (c *IdentityCache) Load() (string, error) {
	var id string
	err := c.db.QueryRow(
		"SELECT value FROM client_state WHERE key = ?", sessionKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session id: %w", err)
	}
	return id, nil
}

// Save stores the session identifier, replacing any previous value.
func (c *IdentityCache) Save(id string) error {
	_, err := c.db.Exec(
		`INSERT INTO client_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		sessionKey, id)
	if err != nil {
		return fmt.Errorf("failed to save session id: %w", err)
	}
	return nil
}

// Discard removes the cached identifier. Discarding an absent value is not
// an error.
func (c *IdentityCache) Discard() error {
	_, err := c.db.Exec("DELETE FROM client_state WHERE key = ?", sessionKey)
	if err != nil {
		return fmt.Errorf("failed to discard session id: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (c *IdentityCache) Close() error {
	return c.db.Close()
}
