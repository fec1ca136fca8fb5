// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file decides between automatic scrolling and the manual
// "jump to latest" affordance, based on the user's scroll intent.
package chat

// =============================================================================
// AUTOSCROLL COORDINATOR
// =============================================================================

// defaultScrollThreshold is how many lines from the bottom still count as
// "at bottom". A reader who nudged the view a line or two has not left.
const defaultScrollThreshold = 3

// AutoScroller tracks whether the user is following the conversation tail.
//
// While the user is at the bottom, every content delta (a new message, or
// streamed text growing) scrolls the viewport to the latest content. Once
// the user scrolls away, automatic scrolling is suppressed and a "jump to
// latest" badge is surfaced until the user returns to the bottom or invokes
// the badge. Sending a message always re-enables following; the user's own
// action re-establishes intent to follow along.
type AutoScroller struct {
	threshold  int
	away       bool
	pendingNew bool
}

// NewAutoScroller creates a coordinator with the given at-bottom threshold.
// A non-positive threshold uses the default.
func NewAutoScroller(threshold int) *AutoScroller {
	if threshold <= 0 {
		threshold = defaultScrollThreshold
	}
	return &AutoScroller{threshold: threshold}
}

// ObserveScroll records the user's scroll position as lines from the
// bottom. Returning to the bottom re-enables following.
func (a *AutoScroller) ObserveScroll(distanceFromBottom int) {
	if distanceFromBottom <= a.threshold {
		a.away = false
		a.pendingNew = false
		return
	}
	a.away = true
}

// OnContentDelta reports whether the viewport should scroll to the bottom
// for new content. While the user is away it records that unseen content
// exists instead.
func (a *AutoScroller) OnContentDelta() bool {
	if a.away {
		a.pendingNew = true
		return false
	}
	return true
}

// JumpToLatest handles the explicit affordance: following resumes.
func (a *AutoScroller) JumpToLatest() {
	a.away = false
	a.pendingNew = false
}

// ResetOnSend re-enables following for the new turn.
func (a *AutoScroller) ResetOnSend() {
	a.away = false
	a.pendingNew = false
}

// Following reports whether content deltas currently auto-scroll.
func (a *AutoScroller) Following() bool {
	return !a.away
}

// ShowJumpBadge reports whether the "jump to latest" affordance should be
// visible: the user is away and content has arrived they have not seen.
func (a *AutoScroller) ShowJumpBadge() bool {
	return a.away && a.pendingNew
}
