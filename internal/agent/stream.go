// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the HTTP client for the conversational advisor
// backend.
//
// This file implements the chunk parser: it turns the raw byte stream of
// the chat endpoint into an ordered sequence of StreamEvents. Chunks from
// the transport are not aligned with event boundaries, so a carry-over
// buffer holds the unterminated tail of each chunk until the next one
// arrives. The resulting event sequence is identical no matter how the
// bytes were split across chunks.
package agent

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/jeranaias/advisor-tui/internal/model"
)

// =============================================================================
// STREAM CONSTANTS
// =============================================================================

// eventPrefix marks a candidate event line. Lines without it are ignored.
var eventPrefix = []byte("data: ")

// readChunkSize is the transport read size. Deliberately small enough that
// a single logical event regularly spans reads.
const readChunkSize = 4 * 1024

// MaxEventSize caps a single event line (64KB). A line that grows past it
// is dropped as malformed rather than buffered without bound.
const MaxEventSize = 64 * 1024

// =============================================================================
// EVENT SCANNER
// =============================================================================

// EventScanner decodes the chat stream into StreamEvents. It is a one-shot
// consumer: once it returns io.EOF (or any error) it cannot be restarted —
// a retry needs a new attempt and a new scanner.
//
// Malformed candidate lines never abort the stream; they are dropped and
// counted, and scanning continues with the next line.
type EventScanner struct {
	r       io.Reader
	buf     []byte
	carry   []byte   // unterminated tail of the previous chunk
	pending [][]byte // complete lines not yet decoded
	warns   int
	eof     bool
}

// NewEventScanner creates a scanner over a raw response body.
func NewEventScanner(r io.Reader) *EventScanner {
	return &EventScanner{
		r:   r,
		buf: make([]byte, readChunkSize),
	}
}

// Next returns the next decoded event. It returns io.EOF when the
// transport signals end-of-stream, and the transport's error otherwise.
func (s *EventScanner) Next() (StreamEvent, error) {
	for {
		// Drain buffered complete lines first.
		for len(s.pending) > 0 {
			line := s.pending[0]
			s.pending = s.pending[1:]
			if ev, ok := s.decodeLine(line); ok {
				return ev, nil
			}
		}

		if s.eof {
			// The stream ended with an unterminated line: decode it as a
			// final candidate rather than silently discarding bytes.
			if len(s.carry) > 0 {
				line := s.carry
				s.carry = nil
				if ev, ok := s.decodeLine(line); ok {
					return ev, nil
				}
			}
			return StreamEvent{}, io.EOF
		}

		if err := s.fill(); err != nil {
			return StreamEvent{}, err
		}
	}
}

// Warnings returns how many candidate lines were dropped as malformed.
func (s *EventScanner) Warnings() int {
	return s.warns
}

// fill reads one transport chunk, splits completed lines into pending and
// keeps the unterminated remainder in carry.
func (s *EventScanner) fill() error {
	n, err := s.r.Read(s.buf)
	if n > 0 {
		data := append(s.carry, s.buf[:n]...)
		for {
			idx := bytes.IndexByte(data, '\n')
			if idx < 0 {
				break
			}
			s.pending = append(s.pending, data[:idx])
			data = data[idx+1:]
		}
		// Copy the remainder so the next Read cannot alias it.
		s.carry = append([]byte(nil), data...)
		if len(s.carry) > MaxEventSize {
			s.carry = nil
			s.warns++
		}
	}
	if err != nil {
		if err == io.EOF {
			s.eof = true
			return nil
		}
		return err
	}
	return nil
}

// decodeLine decodes one candidate line. Returns false for blank lines,
// lines without the event prefix, and malformed payloads (counted).
func (s *EventScanner) decodeLine(line []byte) (StreamEvent, bool) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return StreamEvent{}, false
	}
	if !bytes.HasPrefix(line, eventPrefix) {
		return StreamEvent{}, false
	}

	payload := bytes.TrimSpace(line[len(eventPrefix):])

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		s.warns++
		return StreamEvent{}, false
	}

	ev, ok := decodeEvent(raw)
	if !ok {
		s.warns++
	}
	return ev, ok
}

// =============================================================================
// EVENT DECODING
// =============================================================================

// decodeEvent maps a decoded JSON document onto a typed StreamEvent.
func decodeEvent(raw map[string]json.RawMessage) (StreamEvent, bool) {
	var typ string
	if t, ok := raw["type"]; ok {
		if json.Unmarshal(t, &typ) != nil {
			return StreamEvent{}, false
		}
	}

	switch EventType(typ) {
	case EventToken:
		ev := StreamEvent{Type: EventToken}
		if v, ok := raw["content"]; ok {
			if json.Unmarshal(v, &ev.Content) != nil {
				return StreamEvent{}, false
			}
		}
		if v, ok := raw["index"]; ok {
			_ = json.Unmarshal(v, &ev.Index)
		}
		if v, ok := raw["is_final"]; ok {
			_ = json.Unmarshal(v, &ev.IsFinal)
		}
		return ev, true

	case EventMetadata, EventComplete:
		ev := StreamEvent{Type: EventType(typ)}
		md := decodeFreeform(raw)
		if len(md) > 0 {
			ev.Metadata = md
		}
		return ev, true

	case EventError:
		ev := StreamEvent{Type: EventError, IsFinal: true}
		if v, ok := raw["error"]; ok {
			_ = json.Unmarshal(v, &ev.ErrorText)
		}
		if v, ok := raw["is_final"]; ok {
			_ = json.Unmarshal(v, &ev.IsFinal)
		}
		return ev, true

	default:
		// Unknown or missing type: treated as malformed.
		return StreamEvent{}, false
	}
}

// decodeFreeform collects every field except the type tag into metadata.
func decodeFreeform(raw map[string]json.RawMessage) model.Metadata {
	md := model.Metadata{}
	for k, v := range raw {
		if k == "type" {
			continue
		}
		var val any
		if json.Unmarshal(v, &val) != nil {
			continue
		}
		md[k] = val
	}
	return md
}
