// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// the advisor TUI.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }},
		{"bad url", func(c *Config) { c.Backend.BaseURL = "not a url" }},
		{"zero timeout", func(c *Config) { c.Backend.TimeoutSecs = 0 }},
		{"huge timeout", func(c *Config) { c.Backend.TimeoutSecs = 9999 }},
		{"negative idle timeout", func(c *Config) { c.Backend.StreamIdleTimeoutSecs = -1 }},
		{"negative scroll threshold", func(c *Config) { c.UI.AutoScrollThreshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSetDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Backend.BaseURL == "" {
		t.Error("Base URL default missing")
	}
	if cfg.Backend.TimeoutSecs == 0 {
		t.Error("Timeout default missing")
	}
	if cfg.UI.Theme == "" {
		t.Error("Theme default missing")
	}
	if cfg.UI.AutoScrollThreshold == 0 {
		t.Error("Autoscroll threshold default missing")
	}
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromPathTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
version = "1.0.0"

[backend]
base_url = "https://advisor.example.com"
auth_token = "tok-123"
timeout_secs = 30

[ui]
theme = "light"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Backend.BaseURL != "https://advisor.example.com" {
		t.Errorf("Base URL wrong: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.AuthToken != "tok-123" {
		t.Errorf("Auth token wrong: %q", cfg.Backend.AuthToken)
	}
	if cfg.Backend.TimeoutSecs != 30 {
		t.Errorf("Timeout wrong: %d", cfg.Backend.TimeoutSecs)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme wrong: %q", cfg.UI.Theme)
	}
	// Unset fields fall back to defaults.
	if cfg.Backend.StreamIdleTimeoutSecs != 90 {
		t.Errorf("Idle timeout default missing: %d", cfg.Backend.StreamIdleTimeoutSecs)
	}
}

func TestLoadFromPathJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"backend": {"base_url": "http://localhost:9000"}, "ui": {"theme": "auto"}}`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:9000" {
		t.Errorf("Base URL wrong: %q", cfg.Backend.BaseURL)
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("Theme wrong: %q", cfg.UI.Theme)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[ui]
theme = "neon"
`)

	if _, err := LoadFromPath(path); err == nil {
		t.Error("Expected validation failure for bad theme")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADVISOR_URL", "https://override.example.com")
	t.Setenv("ADVISOR_TOKEN", "env-token")
	t.Setenv("ADVISOR_THEME", "light")
	t.Setenv("ADVISOR_NO_RESTORE", "1")

	cfg := Default()
	cfg.Session.RestoreOnStart = true
	cfg.ApplyEnvOverrides()

	if cfg.Backend.BaseURL != "https://override.example.com" {
		t.Errorf("URL override failed: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.AuthToken != "env-token" {
		t.Errorf("Token override failed: %q", cfg.Backend.AuthToken)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme override failed: %q", cfg.UI.Theme)
	}
	if cfg.Session.RestoreOnStart {
		t.Error("ADVISOR_NO_RESTORE must disable restore")
	}
}

// =============================================================================
// SAVING
// =============================================================================

func TestSaveTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Backend.BaseURL = "https://saved.example.com"
	cfg.UI.CompactMode = true

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if loaded.Backend.BaseURL != "https://saved.example.com" {
		t.Errorf("Base URL lost in round trip: %q", loaded.Backend.BaseURL)
	}
	if !loaded.UI.CompactMode {
		t.Error("Compact mode lost in round trip")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("Config file must be 0600, got %o", perm)
		}
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Backend.AuthToken = "secret"

	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if loaded.Backend.AuthToken != "secret" {
		t.Errorf("Token lost in round trip: %q", loaded.Backend.AuthToken)
	}
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[ui]\ntheme = \"dark\"\n")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()
	w.debounce = 50 * time.Millisecond

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, path, "[ui]\ntheme = \"light\"\n")

	select {
	case cfg := <-reloaded:
		if cfg.UI.Theme != "light" {
			t.Errorf("Expected reloaded theme light, got %q", cfg.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watcher never fired")
	}
}

func TestWatcherIgnoresInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[ui]\ntheme = \"dark\"\n")

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()
	w.debounce = 50 * time.Millisecond

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// A broken edit must not produce a callback.
	writeFile(t, path, "[ui]\ntheme = \"neon\"\n")

	select {
	case cfg := <-reloaded:
		t.Errorf("Invalid config delivered: %+v", cfg.UI)
	case <-time.After(500 * time.Millisecond):
	}
}
