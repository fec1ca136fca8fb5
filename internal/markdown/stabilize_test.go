// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders agent responses, including the incremental
// stabilizer that keeps partially-streamed markdown renderable.
package markdown

import (
	"strings"
	"testing"
)

// =============================================================================
// LINE-BREAK NORMALIZATION TESTS
// =============================================================================

func TestNormalizeBlocksNumberedList(t *testing.T) {
	got := NormalizeBlocks("Here are items: 1. First 2. Second")
	want := "Here are items:\n\n1. First\n\n2. Second"
	if got != want {
		t.Errorf("NormalizeBlocks:\n got %q\nwant %q", got, want)
	}
}

func TestNormalizeBlocksMarkers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"header", "Intro text ## Section", "Intro text\n\n## Section"},
		{"bullet", "options: - first - second", "options:\n\n- first\n\n- second"},
		{"blockquote", "He said: > quoted text", "He said:\n\n> quoted text"},
		{"rule", "done --- next part", "done\n\n--- next part"},
		{"already separated", "line one\n\n1. item", "line one\n\n1. item"},
		{"decimal not a list", "growth was 3.5 percent", "growth was 3.5 percent"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeBlocks(tt.in); got != tt.want {
				t.Errorf("NormalizeBlocks(%q):\n got %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeAppliesAfterStreaming(t *testing.T) {
	// Normalization is structural repair of the source text, so it still
	// runs on finalized content; only the balance closing is skipped.
	in := "Summary: 1. Rebalance 2. Hold"
	want := "Summary:\n\n1. Rebalance\n\n2. Hold"
	if got := Stabilize(in, false); got != want {
		t.Errorf("Stabilize(final):\n got %q\nwant %q", got, want)
	}
}

// =============================================================================
// BALANCE CLOSING TESTS
// =============================================================================

func TestStabilizeClosesNestedEmphasis(t *testing.T) {
	got := Stabilize("**bold and *ital", true)
	want := "**bold and *ital***"
	if got != want {
		t.Errorf("Stabilize:\n got %q\nwant %q", got, want)
	}
}

func TestStabilizeClosesOpenFence(t *testing.T) {
	got := Stabilize("Some code:\n```go\nfunc main() {", true)
	if !strings.HasSuffix(got, "\n```") {
		t.Errorf("Expected fence closed, got %q", got)
	}
	// Inside an open fence, inline markers are literal and stay untouched.
	got = Stabilize("```\nx = y*z", true)
	want := "```\nx = y*z\n```"
	if got != want {
		t.Errorf("Fence body markers:\n got %q\nwant %q", got, want)
	}
}

func TestStabilizeClosesInlineCode(t *testing.T) {
	got := Stabilize("run `advisor chat", true)
	if got != "run `advisor chat`" {
		t.Errorf("Expected inline code closed, got %q", got)
	}
}

func TestStabilizeBalancedTextUnchanged(t *testing.T) {
	tests := []string{
		"plain prose with no markers",
		"**bold** and *italic* and `code`",
		"~~struck~~ and __strong__",
		"a [link](https://example.com) here",
		"```\nfenced\n```",
	}
	for _, in := range tests {
		if got := Stabilize(in, true); got != in {
			t.Errorf("Balanced text modified:\n got %q\nwant %q", got, in)
		}
	}
}

func TestStabilizeFinalSkipsClosing(t *testing.T) {
	in := "deliberately *unbalanced"
	if got := Stabilize(in, false); got != in {
		t.Errorf("Final content must pass through, got %q", got)
	}
}

func TestStabilizeTrailingPartialMarker(t *testing.T) {
	// A lone trailing asterisk is the first half of a marker still in
	// flight; completing it would fabricate a bold pair.
	got := Stabilize("**bold and *", true)
	if strings.Count(got, "**")%2 != 0 {
		t.Errorf("Bold count odd after stabilize: %q", got)
	}
	got = Stabilize("some text *", true)
	if got != "some text " {
		t.Errorf("Expected dangling marker dropped, got %q", got)
	}
}

// =============================================================================
// LINK PATCHING TESTS
// =============================================================================

func TestStabilizePatchesLinks(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"see [the docs", "see [the docs]()"},
		{"see [the docs]", "see [the docs]()"},
		{"see [the docs](https://x.test)", "see [the docs](https://x.test)"},
	}
	for _, tt := range tests {
		if got := Stabilize(tt.in, true); got != tt.want {
			t.Errorf("Stabilize(%q):\n got %q\nwant %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// PARITY PROPERTY
// =============================================================================

// TestStabilizePrefixParity feeds every prefix of realistic responses
// through the stabilizer and checks that no marker family is left with an
// odd count, which is the guarantee the renderer depends on mid-stream.
func TestStabilizePrefixParity(t *testing.T) {
	docs := []string{
		"Here is **bold and *nested italic* text** with `code`.",
		"A fence:\n```python\nx = a * b\n```\nand __strong__ after.",
		"Mix of ~~strike~~, _ital_, and a [link](https://example.com).",
		"List time: 1. **First** 2. *Second* 3. `third`",
	}

	for _, doc := range docs {
		for i := 1; i <= len(doc); i++ {
			got := Stabilize(doc[:i], true)

			if countFences(got)%2 != 0 {
				t.Fatalf("Prefix %q: odd fence count in %q", doc[:i], got)
			}
			if countFences(got) > 0 && strings.HasSuffix(got, "\n```") {
				// Closed-fence output skips inline balancing by design.
				continue
			}
			if countInlineCode(got)%2 != 0 {
				t.Fatalf("Prefix %q: odd inline code count in %q", doc[:i], got)
			}
			if countSingle(got, '*')%2 != 0 {
				t.Fatalf("Prefix %q: odd italic count in %q", doc[:i], got)
			}
			if countDouble(got, "**")%2 != 0 {
				t.Fatalf("Prefix %q: odd bold count in %q", doc[:i], got)
			}
			if countSingle(got, '_')%2 != 0 {
				t.Fatalf("Prefix %q: odd underscore count in %q", doc[:i], got)
			}
			if countDouble(got, "~~")%2 != 0 {
				t.Fatalf("Prefix %q: odd strikethrough count in %q", doc[:i], got)
			}
		}
	}
}
