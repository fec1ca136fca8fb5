// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements streaming render throttling for smooth, flicker-free
// output while tokens arrive. Token updates are far more frequent than a
// terminal can usefully repaint; the RenderGate batches them and caps the
// repaint rate.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER GATE
// =============================================================================

// RenderGate coalesces token-update notifications into bounded repaints.
// A repaint is due when either:
//  1. The batch threshold of pending updates is reached (e.g. 15 tokens)
//  2. Enough time has passed since the last repaint (e.g. 33ms for 30fps)
//
// The streamed text itself lives in the conversation; the gate only decides
// when the viewport re-reads it. Thread-safe: updates arrive from the
// streaming goroutine while repaints happen on the Bubble Tea loop.
type RenderGate struct {
	mu         sync.Mutex
	pending    int
	lastRender time.Time

	batchSize   int
	minInterval time.Duration
}

// NewRenderGate creates a gate with default settings: 15 updates per batch
// at a 30fps repaint cap.
func NewRenderGate() *RenderGate {
	const (
		defaultBatchSize = 15
		defaultMaxFPS    = 30
	)
	return &RenderGate{
		batchSize:   defaultBatchSize,
		minInterval: time.Second / defaultMaxFPS,
		lastRender:  time.Now(),
	}
}

// MarkDirty records one content update. Called from the streaming goroutine.
func (g *RenderGate) MarkDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending++
}

// ShouldRender reports whether a repaint is due, consuming the pending
// updates when it is. Called from the Bubble Tea loop on each tick.
func (g *RenderGate) ShouldRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == 0 {
		return false
	}
	if g.pending < g.batchSize && time.Since(g.lastRender) < g.minInterval {
		return false
	}

	g.pending = 0
	g.lastRender = time.Now()
	return true
}

// ForceRender consumes any pending updates regardless of thresholds. Used
// at stream end so the final tokens are never left unpainted.
func (g *RenderGate) ForceRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	dirty := g.pending > 0
	g.pending = 0
	g.lastRender = time.Now()
	return dirty
}

// Reset clears pending updates without repainting. Used when a stream is
// cancelled or a new turn starts.
func (g *RenderGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = 0
	g.lastRender = time.Now()
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// StreamTickMsg drives the streaming repaint loop.
type StreamTickMsg struct {
	Time time.Time
}

// streamTickCmd sends StreamTickMsg at ~30fps while a stream is active.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
