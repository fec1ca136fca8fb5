// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the HTTP client for the conversational advisor
// backend.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds non-streaming requests. Streaming requests have
	// no client timeout; they are controlled through their context.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps a non-streaming response body.
	MaxResponseSize = 10 * 1024 * 1024

	// submitBurst and submitRate bound how fast turns can be submitted.
	// Rapid-fire submits churn stream attempts for no benefit.
	submitBurst = 3
	submitRate  = rate.Limit(1) // one sustained submit per second
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; stream lifetime is bounded by
	// the attempt's context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the backend base URL is not set.
	ErrNotConfigured = errors.New("advisor backend URL not configured")

	// ErrSessionNotFound indicates the server no longer knows the session.
	ErrSessionNotFound = errors.New("session not found or expired")
)

// ConnectError marks a failure to establish the stream: the request never
// opened, or the server answered non-OK before the first byte was read.
// The controller falls back to the non-streaming endpoint exactly once on
// this error class; mid-stream failures are not wrapped in it.
type ConnectError struct {
	Err error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("stream connect failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// StatusError carries a non-OK HTTP status with the server's body detail.
type StatusError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// =============================================================================
// CLIENT
// =============================================================================

// TokenSource supplies the opaque bearer token for each request. Token
// storage and refresh live elsewhere; an empty return sends no header.
type TokenSource func() string

// Client talks to the advisor backend.
type Client struct {
	baseURL string
	token   TokenSource
	limiter *rate.Limiter

	// Injectable for tests; default to the shared pooled clients.
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client for the given base URL (e.g.
// "https://api.example.com"). The token source may be nil.
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		limiter:      rate.NewLimiter(submitRate, submitBurst),
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
	}
}

// IsConfigured returns true when a base URL is set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// setHeaders applies the common headers, including the bearer token.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamMessage opens one stream attempt for a user turn and invokes the
// callback for every decoded event, in arrival order, until a terminal
// event, end-of-stream, or context cancellation.
//
// Failure to establish the stream is reported as *ConnectError so the
// caller can distinguish it from a mid-stream failure. A cancelled context
// surfaces as the context's error, not as a transport failure.
func (c *Client) StreamMessage(ctx context.Context, req ChatRequest, fn func(StreamEvent)) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/message/stream", bytes.NewReader(body))
	if err != nil {
		return &ConnectError{Err: err}
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Connection", "keep-alive")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ConnectError{Err: &StatusError{
			Status: resp.StatusCode,
			Detail: strings.TrimSpace(string(detail)),
		}}
	}

	return c.processStream(ctx, resp.Body, fn)
}

// processStream drains the scanner, checking the cancellation token on
// every iteration so an abort stops the read loop promptly.
func (c *Client) processStream(ctx context.Context, body io.Reader, fn func(StreamEvent)) error {
	scanner := NewEventScanner(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := scanner.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				// An aborted read is cancellation, not a transport failure.
				return ctx.Err()
			}
			return err
		}

		fn(ev)

		if ev.Terminal() {
			return nil
		}
	}
}

// =============================================================================
// NON-STREAMING FALLBACK
// =============================================================================

// SendMessage performs the single-shot chat call. The controller uses it
// as the one fallback when the stream fails to establish; the REPL can use
// it directly.
func (c *Client) SendMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/message", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out ChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// FetchSession retrieves the authoritative session state by identifier.
// Returns ErrSessionNotFound when the server reports 404.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/chat/session/"+sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSessionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out SessionSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &out, nil
}

// ClearSession deletes the session on the server. A non-success result is
// returned as an error carrying the server's stated reason; callers must
// not discard local state unless this returns nil.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/chat/session/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	var out ClearResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode clear result: %w", err)
	}
	if !out.Success {
		reason := out.Message
		if reason == "" {
			reason = "server declined to clear the session"
		}
		return errors.New(reason)
	}
	return nil
}

// statusError converts an HTTP error response into a *StatusError, pulling
// the detail field from a JSON body when one is present.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Detail string `json:"detail"`
	}
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		detail = payload.Detail
	}

	return &StatusError{Status: resp.StatusCode, Detail: detail}
}
