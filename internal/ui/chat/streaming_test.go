// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"testing"
	"time"
)

func TestRenderGateNoPendingNoRender(t *testing.T) {
	g := NewRenderGate()

	if g.ShouldRender() {
		t.Error("no pending updates should mean no repaint")
	}
}

func TestRenderGateBatchThreshold(t *testing.T) {
	g := NewRenderGate()
	g.lastRender = time.Now() // interval not yet elapsed

	for i := 0; i < g.batchSize-1; i++ {
		g.MarkDirty()
	}
	if g.ShouldRender() {
		t.Error("below batch threshold within the interval should not repaint")
	}

	g.MarkDirty()
	if !g.ShouldRender() {
		t.Error("reaching the batch threshold should repaint")
	}
	if g.ShouldRender() {
		t.Error("repaint should consume pending updates")
	}
}

func TestRenderGateIntervalElapsed(t *testing.T) {
	g := NewRenderGate()
	g.MarkDirty()
	g.lastRender = time.Now().Add(-time.Second)

	if !g.ShouldRender() {
		t.Error("a single update after the interval should repaint")
	}
}

func TestRenderGateForceRender(t *testing.T) {
	g := NewRenderGate()

	if g.ForceRender() {
		t.Error("force with nothing pending should report clean")
	}

	g.MarkDirty()
	if !g.ForceRender() {
		t.Error("force with pending updates should report dirty")
	}
	if g.ShouldRender() {
		t.Error("force should consume pending updates")
	}
}

func TestRenderGateReset(t *testing.T) {
	g := NewRenderGate()

	for i := 0; i < g.batchSize*2; i++ {
		g.MarkDirty()
	}
	g.Reset()

	if g.ShouldRender() {
		t.Error("reset should discard pending updates")
	}
}

func TestRenderGateConcurrentMarkDirty(t *testing.T) {
	g := NewRenderGate()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.MarkDirty()
			}
		}()
	}
	wg.Wait()

	if !g.ForceRender() {
		t.Error("concurrent updates should leave the gate dirty")
	}
}
