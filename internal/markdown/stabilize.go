// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders agent responses, including the incremental
// stabilizer that keeps partially-streamed markdown renderable.
//
// The token stream hands us prefixes of a markdown document, so at any
// instant the accumulated text may hold unclosed emphasis, an open code
// fence, or a half-written link. Stabilize produces a render-only working
// copy that closes those constructs; the authoritative buffer is never
// written back. Once streaming ends the closing step is skipped and only
// line-break normalization applies, so the final render is the document
// as sent.
//
// The balancing is a heuristic over marker counts. Literal asterisks,
// underscores, or backticks used as prose will be miscounted; that is an
// accepted approximation, not a correctness guarantee.
package markdown

import (
	"regexp"
	"strings"
)

// =============================================================================
// LINE-BREAK NORMALIZATION
// =============================================================================

// blockMarkerRe finds a block-level marker glued onto the preceding text by
// plain spaces: numbered items, headers, blockquotes, bullets, horizontal
// rules. The upstream stream drops newlines before these markers, so the
// defect is structural and the fix applies to final content too.
var blockMarkerRe = regexp.MustCompile(
	`(\S)[ \t]+((?:-{3,}|\*{3,})(?:[ \t]|$)|(?:\d+\.|#{1,6}|>|[-*+])[ \t])`)

// NormalizeBlocks inserts a paragraph break before block markers that were
// emitted mid-line. Applied unconditionally, streaming or not.
func NormalizeBlocks(text string) string {
	return blockMarkerRe.ReplaceAllString(text, "$1\n\n$2")
}

// =============================================================================
// STABILIZE
// =============================================================================

// Stabilize returns a renderable-safe approximation of text. While
// streaming is true, unbalanced inline marker families are closed on a
// working copy; afterwards only line-break normalization is applied.
func Stabilize(text string, streaming bool) string {
	out := NormalizeBlocks(text)
	if !streaming {
		return out
	}
	return closeUnbalanced(out)
}

// closeUnbalanced appends one closing marker for every family with an odd
// occurrence count, then patches unterminated link syntax.
func closeUnbalanced(text string) string {
	out := trimPartialMarker(text)

	// An odd fence count means we are inside a code block: close it and
	// leave the inline families alone, since their markers are literal
	// text in there.
	if countFences(out)%2 == 1 {
		return out + "\n```"
	}

	if countInlineCode(out)%2 == 1 {
		out += "`"
	}

	// Italic before bold: the inner marker closes first, which is what a
	// well-formed nesting needs ("**bold and *ital" -> "...*ital*" + "**").
	if countSingle(out, '*')%2 == 1 {
		out += "*"
	}
	if countDouble(out, "**")%2 == 1 {
		out += "**"
	}
	if countSingle(out, '_')%2 == 1 {
		out += "_"
	}
	if countDouble(out, "__")%2 == 1 {
		out += "__"
	}
	if countDouble(out, "~~")%2 == 1 {
		out += "~~"
	}

	return patchLinks(out)
}

// trimPartialMarker drops a single dangling marker character from the end
// of the working copy. A lone trailing "*" is almost always the first half
// of a "**" still in flight; completing it would fabricate a bold pair.
func trimPartialMarker(text string) string {
	if text == "" {
		return text
	}
	last := text[len(text)-1]
	switch last {
	case '*', '_', '~':
		if len(text) == 1 || text[len(text)-2] != last {
			return text[:len(text)-1]
		}
	}
	return text
}

// =============================================================================
// MARKER COUNTING
// =============================================================================

// countFences counts triple-backtick fence markers.
func countFences(s string) int {
	return strings.Count(s, "```")
}

// countInlineCode counts single backticks exclusive of fence markers.
func countInlineCode(s string) int {
	return strings.Count(s, "`") - 3*countFences(s)
}

// countDouble counts non-overlapping double markers ("**", "__", "~~").
func countDouble(s, marker string) int {
	return strings.Count(s, marker)
}

// countSingle counts single markers exclusive of their doubled form.
func countSingle(s string, marker byte) int {
	total := strings.Count(s, string(marker))
	double := strings.Count(s, string([]byte{marker, marker}))
	return total - 2*double
}

// =============================================================================
// LINK PATCHING
// =============================================================================

// danglingLinkRe matches a completed [text] at the very end with no (url)
// after it.
var danglingLinkRe = regexp.MustCompile(`\[[^\[\]]*\]$`)

// patchLinks appends an empty link target to unterminated link syntax so
// the renderer does not show raw brackets mid-stream.
func patchLinks(text string) string {
	opens := strings.Count(text, "[")
	closes := strings.Count(text, "]")
	if opens > closes {
		return text + "]()"
	}
	if danglingLinkRe.MatchString(text) {
		return text + "()"
	}
	return text
}
