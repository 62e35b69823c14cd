// Package inputrouter implements the Interactive Input Router:
// it feeds follow-up user messages into the agent's
// stdin from whichever of three mutually exclusive sources is active
// — local TTY, tunnel forwarding, or a headless GUI adapter — and
// guarantees stdin is closed exactly once no matter which exit path
// fires.
package inputrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tim-agents/tim/internal/tim"
)

// Source names which route is currently feeding stdin, mirroring
// tim.InputSourcePolicy.
type Source = tim.InputSourcePolicy

// UserInputEvent is emitted (via OnUserInput, if set) whenever a
// follow-up message is accepted from the GUI route: emitted as a
// structured user_terminal_input event with source gui.
type UserInputEvent struct {
	Source  Source
	Content string
}

// Router owns the agent's stdin pipe for the lifetime of one
// Invocation.
type Router struct {
	stdin  io.WriteCloser
	logger *zap.Logger

	writeMu sync.Mutex // serializes writes so stdin messages stay in submission order

	closeOnce sync.Once
	closed    atomic.Bool

	mu       sync.Mutex
	source   Source
	terminal *terminalReader

	// OnUserInput, if set, is called for every accepted follow-up
	// message from the GUI route (not the tunnel or TTY routes).
	OnUserInput func(UserInputEvent)

	// MirrorToTunnel, if set, is called for every follow-up message
	// accepted from the TTY or GUI route, independent of OnUserInput,
	// so a live tunnel observer sees local input too.
	MirrorToTunnel func(content string)
}

// New wraps stdin. logger may be nil.
func New(stdin io.WriteCloser, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{stdin: stdin, logger: logger}
}

// SinglePrompt writes the initial prompt and immediately closes stdin,
// for non-interactive callers running in single-prompt mode.
func (r *Router) SinglePrompt(prompt string) error {
	if err := r.writeRaw(prompt); err != nil {
		return err
	}
	return r.Close()
}

// WriteInitialPrompt writes the initial prompt without closing stdin,
// for any interactive input-source policy (terminal, tunnel, GUI)
// where follow-up messages are expected afterward.
func (r *Router) WriteInitialPrompt(prompt string) error {
	return r.writeRaw(prompt)
}

// submitFollowup writes one follow-up message as a stream-json user
// message. Fire-and-forget: failures are logged and
// the active reader is stopped, never propagated as a blocking error
// to the stdout-consumer goroutine.
func (r *Router) submitFollowup(content string) {
	if content == "" || r.closed.Load() {
		return
	}
	line, err := json.Marshal(followupMessage{Type: "user", Message: followupPayload{Role: "user", Content: content}})
	if err != nil {
		r.logger.Warn("failed to encode follow-up message", zap.Error(err))
		return
	}
	if err := r.writeRaw(string(line)); err != nil {
		r.logger.Warn("failed to write follow-up to stdin; stopping reader", zap.Error(err))
		r.mu.Lock()
		r.stopTerminalLocked()
		r.mu.Unlock()
	}
}

type followupMessage struct {
	Type    string          `json:"type"`
	Message followupPayload `json:"message"`
}

type followupPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (r *Router) writeRaw(line string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.closed.Load() {
		return nil // silently dropped once the router is closed
	}
	_, err := fmt.Fprintln(r.stdin, line)
	return err
}

// Close closes stdin exactly once, synchronously, regardless of which
// path calls it (success, failure, timeout, panic).
func (r *Router) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.mu.Lock()
		r.stopTerminalLocked()
		r.mu.Unlock()
		err = r.stdin.Close()
	})
	return err
}

// NotifyResult should be called when a result-type message is observed
// in the stdout stream; it closes stdin unless keepOpen is set.
func (r *Router) NotifyResult(keepOpen bool) {
	if keepOpen {
		return
	}
	_ = r.Close()
}

func (r *Router) stopTerminalLocked() {
	if r.terminal != nil {
		r.terminal.stop()
		r.terminal = nil
	}
}
