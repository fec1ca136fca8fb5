// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream orchestrates the per-turn streaming lifecycle between the
// advisor backend and the conversation.
//
// The controller owns the state machine for one user turn:
//
//	idle -> requesting -> thinking -> streaming_tokens -> finalizing
//	     -> {completed | errored | cancelled}
//
// At most one stream attempt is live at a time. Submitting a new turn
// cancels the prior attempt before the new attempt's first network
// operation, and late events from a cancelled attempt are discarded by an
// attempt-identity check rather than by trusting that no more will arrive.
//
// The controller has no dependency on any UI framework. The presentation
// layer wires up the Callbacks slots and renders from the conversation's
// message sequence, which is the only shared mutable resource.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/advisor-tui/internal/agent"
	"github.com/jeranaias/advisor-tui/internal/model"
)

// =============================================================================
// STATES
// =============================================================================

// State identifies where the current turn is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateThinking
	StateStreamingTokens
	StateFinalizing
	StateCompleted
	StateErrored
	StateCancelled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateThinking:
		return "thinking"
	case StateStreamingTokens:
		return "streaming_tokens"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal returns true for states no event can leave.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateCancelled
}

// DefaultIdleTimeout aborts an attempt that produces no events for this
// long, so a silent backend cannot leave the thinking indicator up forever.
const DefaultIdleTimeout = 90 * time.Second

// errIdleTimeout marks a watchdog-triggered abort so it is reported as an
// error rather than swallowed as a user cancellation.
var errIdleTimeout = errors.New("no response from advisor (timed out)")

// =============================================================================
// CALLBACKS
// =============================================================================

// Callbacks are the controller's named notification slots. Any slot may be
// nil. They are invoked from the streaming goroutine; a TUI layer should
// forward them into its event loop rather than touching view state directly.
type Callbacks struct {
	// OnState fires on every state transition.
	OnState func(State)

	// OnUpdate fires when the streaming message's accumulated text grew.
	OnUpdate func(messageID string)

	// OnMetadata fires when a metadata event arrives mid-stream.
	OnMetadata func(messageID string, md model.Metadata)

	// OnComplete fires after the message is finalized with its full text
	// and captured metadata. Session adoption and dependent-data refreshes
	// hang off this slot.
	OnComplete func(messageID string, md model.Metadata)

	// OnError fires when the turn ends in an error. The error text has
	// already been written into the message content.
	OnError func(messageID string, errText string)
}

// =============================================================================
// ATTEMPT
// =============================================================================

// attempt is one logical request/response streaming exchange, bound to
// exactly one placeholder message. The buffer and metadata accumulate on
// the attempt, not on the message; the conversation only ever sees
// published copies.
type attempt struct {
	id        string
	messageID string
	cancel    context.CancelFunc

	buffer   strings.Builder
	metadata model.Metadata

	// terminal is set once a complete or error event has been handled, so
	// the post-stream path does not finalize a second time.
	terminal bool

	// timedOut distinguishes a watchdog abort from a user cancellation.
	timedOut bool

	watchdog *time.Timer
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Backend is the slice of the agent client the controller needs. The
// concrete *agent.Client satisfies it; tests substitute a fake.
type Backend interface {
	StreamMessage(ctx context.Context, req agent.ChatRequest, fn func(agent.StreamEvent)) error
	SendMessage(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

// Controller drives the streaming lifecycle for a conversation.
// IMPORTANT: use as a pointer; it carries a mutex.
type Controller struct {
	mu   sync.Mutex
	live *attempt

	backend Backend
	conv    *model.Conversation
	cb      Callbacks

	state       State
	idleTimeout time.Duration
}

// NewController creates a controller bound to a backend and a conversation.
func NewController(backend Backend, conv *model.Conversation, cb Callbacks) *Controller {
	return &Controller{
		backend:     backend,
		conv:        conv,
		cb:          cb,
		state:       StateIdle,
		idleTimeout: DefaultIdleTimeout,
	}
}

// SetIdleTimeout overrides the watchdog interval. Zero disables it.
func (c *Controller) SetIdleTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idleTimeout = d
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy returns true while an attempt is live.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit starts a new turn: the user message and an agent placeholder are
// appended to the conversation, any prior live attempt is cancelled, and
// exactly one new stream attempt is opened. Returns the placeholder's
// message ID.
func (c *Controller) Submit(ctx context.Context, text, sessionID string) string {
	userMsg := model.NewUserMessage(text)
	placeholder := model.NewAgentPlaceholder()

	attemptCtx, cancel := context.WithCancel(ctx)
	att := &attempt{
		id:        uuid.NewString(),
		messageID: placeholder.ID,
		cancel:    cancel,
	}

	c.mu.Lock()
	// Cancel the prior attempt before this one touches the network, and
	// freeze its message so a late event cannot mutate it.
	if prior := c.live; prior != nil {
		prior.cancel()
		c.conv.Finalize(prior.messageID, prior.buffer.String(), prior.metadata)
	}
	c.live = att
	c.setStateLocked(StateRequesting)
	c.mu.Unlock()

	c.conv.Append(userMsg)
	c.conv.Append(placeholder)

	c.setState(att, StateThinking)
	c.armWatchdog(att)

	go c.run(attemptCtx, att, agent.ChatRequest{Message: text, SessionID: sessionID})

	return placeholder.ID
}

// Cancel aborts the live attempt, if any. Cancellation is not an error:
// the placeholder is frozen at whatever text has arrived and no completion
// or error callback fires.
func (c *Controller) Cancel() {
	c.mu.Lock()
	att := c.live
	if att == nil {
		c.mu.Unlock()
		return
	}
	att.cancel()
	c.live = nil
	c.stopWatchdogLocked(att)
	c.conv.Finalize(att.messageID, att.buffer.String(), att.metadata)
	c.setStateLocked(StateCancelled)
	c.mu.Unlock()
}

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

// run executes one attempt to completion on its own goroutine.
func (c *Controller) run(ctx context.Context, att *attempt, req agent.ChatRequest) {
	defer att.cancel()

	err := c.backend.StreamMessage(ctx, req, func(ev agent.StreamEvent) {
		c.handleEvent(att, ev)
	})

	c.mu.Lock()
	if c.live != att {
		// Superseded, cancelled, or already settled by a terminal event
		// while we were reading; someone else froze the message.
		c.mu.Unlock()
		return
	}
	timedOut := att.timedOut
	c.stopWatchdogLocked(att)
	c.mu.Unlock()

	switch {
	case err == nil:
		// End-of-stream without a terminal event; treat what arrived as
		// the full response.
		c.finalize(att, att.buffer.String(), att.metadata)

	case timedOut:
		c.fail(att, errIdleTimeout.Error())

	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		c.settleCancelled(att)

	case isConnectError(err):
		// The stream never opened. Fall back once to the non-streaming
		// endpoint; a second failure surfaces as an error.
		c.fallback(ctx, att, req)

	default:
		c.fail(att, "Connection lost: "+err.Error())
	}
}

// handleEvent applies one stream event to the live attempt. Events for an
// attempt that is no longer live are discarded.
func (c *Controller) handleEvent(att *attempt, ev agent.StreamEvent) {
	c.mu.Lock()
	if c.live != att || att.terminal {
		c.mu.Unlock()
		return
	}
	if att.watchdog != nil {
		att.watchdog.Reset(c.idleTimeout)
	}

	switch ev.Type {
	case agent.EventMetadata:
		att.metadata = mergeMetadata(att.metadata, ev.Metadata)
		c.setStateLocked(StateStreamingTokens)
		c.mu.Unlock()
		if c.cb.OnMetadata != nil {
			c.cb.OnMetadata(att.messageID, att.metadata.Clone())
		}

	case agent.EventToken:
		if ev.Content == "" {
			c.mu.Unlock()
			return
		}
		att.buffer.WriteString(ev.Content)
		text := att.buffer.String()
		c.setStateLocked(StateStreamingTokens)
		c.mu.Unlock()

		c.conv.SetStreamingContent(att.messageID, text)
		if c.cb.OnUpdate != nil {
			c.cb.OnUpdate(att.messageID)
		}

	case agent.EventComplete:
		att.terminal = true
		att.metadata = mergeMetadata(att.metadata, ev.Metadata)
		text := att.buffer.String()
		md := att.metadata
		c.setStateLocked(StateFinalizing)
		c.mu.Unlock()

		c.finalize(att, text, md)

	case agent.EventError:
		att.terminal = true
		c.mu.Unlock()

		errText := ev.ErrorText
		if errText == "" {
			errText = "the advisor reported an error"
		}
		c.fail(att, "Error: "+errText)

	default:
		c.mu.Unlock()
	}
}

// fallback performs the single non-streaming retry after a connect failure.
func (c *Controller) fallback(ctx context.Context, att *attempt, req agent.ChatRequest) {
	resp, err := c.backend.SendMessage(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			c.settleCancelled(att)
			return
		}
		c.fail(att, "Unable to reach the advisor: "+err.Error())
		return
	}
	c.finalize(att, resp.Message, mergeMetadata(att.metadata, resp.Metadata()))
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// finalize completes the turn: the placeholder is frozen with the full text
// and metadata, and the completion callback fires.
func (c *Controller) finalize(att *attempt, text string, md model.Metadata) {
	if !c.retire(att, StateCompleted) {
		return
	}
	c.conv.Finalize(att.messageID, text, md)
	if c.cb.OnComplete != nil {
		c.cb.OnComplete(att.messageID, md.Clone())
	}
}

// fail ends the turn in the errored state. The error text becomes the
// message content so the failure stays visible in conversation history.
func (c *Controller) fail(att *attempt, errText string) {
	if !c.retire(att, StateErrored) {
		return
	}
	c.conv.Finalize(att.messageID, errText, att.metadata)
	if c.cb.OnError != nil {
		c.cb.OnError(att.messageID, errText)
	}
}

// settleCancelled ends the turn silently: the placeholder keeps whatever
// text arrived, and no callback fires.
func (c *Controller) settleCancelled(att *attempt) {
	if !c.retire(att, StateCancelled) {
		return
	}
	c.conv.Finalize(att.messageID, att.buffer.String(), att.metadata)
}

// retire atomically removes the attempt from the live slot and moves to the
// given terminal state. Returns false if the attempt was already retired,
// in which case whoever retired it has settled the message.
func (c *Controller) retire(att *attempt, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != att {
		return false
	}
	c.live = nil
	c.stopWatchdogLocked(att)
	c.setStateLocked(s)
	return true
}

// =============================================================================
// WATCHDOG
// =============================================================================

// armWatchdog starts the idle timer that aborts a silent attempt.
func (c *Controller) armWatchdog(att *attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idleTimeout <= 0 || c.live != att {
		return
	}
	att.watchdog = time.AfterFunc(c.idleTimeout, func() {
		c.mu.Lock()
		if c.live != att || att.terminal {
			c.mu.Unlock()
			return
		}
		att.timedOut = true
		c.mu.Unlock()
		att.cancel()
	})
}

// stopWatchdogLocked halts the idle timer. Caller holds c.mu.
func (c *Controller) stopWatchdogLocked(att *attempt) {
	if att.watchdog != nil {
		att.watchdog.Stop()
		att.watchdog = nil
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// setState transitions state on behalf of a live attempt.
func (c *Controller) setState(att *attempt, s State) {
	c.mu.Lock()
	if c.live != att {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(s)
	c.mu.Unlock()
}

// setStateLocked records the transition and fires OnState. Caller holds
// c.mu, so OnState must not call back into the controller; forwarding the
// state into an event loop is the intended use.
func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.cb.OnState != nil {
		c.cb.OnState(s)
	}
}

// mergeMetadata folds src into dst, allocating dst on first use.
func mergeMetadata(dst, src model.Metadata) model.Metadata {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(model.Metadata, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// isConnectError reports whether err marks a failure to establish the
// stream, which is the one case that triggers the non-streaming fallback.
func isConnectError(err error) bool {
	var connErr *agent.ConnectError
	return errors.As(err, &connErr)
}
