// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders agent responses.
package markdown

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// MinWidthForMarkdown is the minimum terminal width for glamour rendering.
// Below this, output falls back to plain text with highlighted fences.
const MinWidthForMarkdown = 30

// =============================================================================
// RENDERER
// =============================================================================

// Renderer wraps glamour for terminal markdown output. A renderer is
// rebuilt when the wrap width changes (terminal resize); renders of the
// same finalized message are cached by content.
type Renderer struct {
	mu        sync.Mutex
	renderer  *glamour.TermRenderer
	width     int
	plainMode bool

	cacheKey   string
	cacheValue string
}

// NewRenderer creates a renderer for the given wrap width. When the
// terminal reports no color support, glamour is skipped entirely.
func NewRenderer(width int) *Renderer {
	return &Renderer{
		width:     width,
		plainMode: termenv.EnvColorProfile() == termenv.Ascii,
	}
}

// SetWidth updates the wrap width, invalidating the glamour instance.
func (r *Renderer) SetWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width {
		return
	}
	r.width = width
	r.renderer = nil
	r.cacheKey = ""
}

// Render renders markdown to styled terminal text. On any glamour failure
// the plain fallback is used; rendering never returns an error to callers.
func (r *Renderer) Render(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if content == "" {
		return ""
	}
	if r.plainMode || r.width < MinWidthForMarkdown {
		return renderPlain(content)
	}
	if r.cacheKey == content {
		return r.cacheValue
	}

	if r.renderer == nil {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			return renderPlain(content)
		}
		r.renderer = tr
	}

	rendered, err := r.renderer.Render(content)
	if err != nil {
		return renderPlain(content)
	}
	rendered = strings.TrimRight(rendered, "\n\r\t ")

	r.cacheKey = content
	r.cacheValue = rendered
	return rendered
}

// =============================================================================
// PLAIN FALLBACK
// =============================================================================

// renderPlain emits the content as-is, except fenced code blocks still get
// chroma highlighting so code stays readable without glamour.
func renderPlain(content string) string {
	parts := strings.Split(content, "```")
	if len(parts) == 1 {
		return content
	}

	var out strings.Builder
	for i, part := range parts {
		if i%2 == 0 {
			out.WriteString(part)
			continue
		}
		// Odd segments are fence bodies; the first line may name a language.
		lang := ""
		body := part
		if nl := strings.IndexByte(part, '\n'); nl >= 0 {
			lang = strings.TrimSpace(part[:nl])
			body = part[nl+1:]
		}
		out.WriteString(highlightCode(body, lang))
	}
	return out.String()
}

// highlightCode applies chroma syntax highlighting to a code block.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
