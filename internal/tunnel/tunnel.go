// Package tunnel implements the optional Tunnel / Output Forwarder:
// a per-Invocation Unix-socket sidecar that mirrors
// formatted agent output and echoed follow-up input to a remote
// observer, and accepts a user_input frame back. Permission prompt
// requests are not sent over the tunnel.
package tunnel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Frame is one line of the tunnel wire protocol, in either direction:
// mirrored output ({"type":"output", ...}) or accepted user input
// ({"type":"user_input","content":"..."}).
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Forwarder is one tunnel sidecar, lifecycle-paired 1:1 with its
// owning Invocation.
type Forwarder struct {
	socketPath string
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup

	// onUserInput is called for each accepted user_input frame; the
	// Input Router registers this to feed the tunnel route.
	onUserInput func(content string)

	// onPromptRequest is stored by SetOnPromptRequest for a remote
	// approval decision ("allow", "allow_session", "always_allow" or
	// "disallow"). Nothing in the Forwarder calls it, and the Permission
	// Broker does not consult it.
	onPromptRequest func(toolName string, input map[string]any) (string, error)
}

// New creates a Forwarder that has not yet started listening.
func New(socketPath string, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{
		socketPath: socketPath,
		logger:     logger.With(zap.String("component", "tunnel")),
		conns:      make(map[net.Conn]struct{}),
	}
}

// SetOnUserInput registers the callback invoked for each accepted
// follow-up message from a remote observer.
func (f *Forwarder) SetOnUserInput(fn func(content string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUserInput = fn
}

// SetOnPromptRequest registers the remote-approval hook.
func (f *Forwarder) SetOnPromptRequest(fn func(toolName string, input map[string]any) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPromptRequest = fn
}

// Start opens the tunnel socket and begins accepting observers.
func (f *Forwarder) Start() error {
	if err := os.MkdirAll(filepath.Dir(f.socketPath), 0o755); err != nil {
		return fmt.Errorf("tunnel: create socket dir: %w", err)
	}
	_ = os.Remove(f.socketPath)

	ln, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("tunnel: listen %s: %w", f.socketPath, err)
	}

	f.mu.Lock()
	f.listener = ln
	f.mu.Unlock()

	f.wg.Add(1)
	go f.acceptLoop(ln)
	return nil
}

func (f *Forwarder) acceptLoop(ln net.Listener) {
	defer f.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			f.mu.Lock()
			closed := f.closed
			f.mu.Unlock()
			if closed {
				return
			}
			f.logger.Warn("accept error", zap.Error(err))
			return
		}
		f.mu.Lock()
		f.conns[conn] = struct{}{}
		f.mu.Unlock()

		f.wg.Add(1)
		go f.handleConn(conn)
	}
}

func (f *Forwarder) handleConn(conn net.Conn) {
	defer f.wg.Done()
	defer func() {
		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var frame Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			continue
		}
		if frame.Type != "user_input" {
			continue
		}
		f.mu.Lock()
		handler := f.onUserInput
		f.mu.Unlock()
		if handler != nil {
			handler(frame.Content)
		}
	}
}

// SendUserInput mirrors a follow-up message the agent received via
// another route (TTY or GUI) to every connected observer, per spec
// §4.6: "so TTY/GUI messages the agent receives are also visible to
// remote observers".
func (f *Forwarder) SendUserInput(content string) {
	f.broadcast(Frame{Type: "user_input_echo", Content: content})
}

// SendOutput mirrors one rendered line of agent output to every
// connected observer.
func (f *Forwarder) SendOutput(rendered string) {
	f.broadcast(Frame{Type: "output", Content: rendered})
}

func (f *Forwarder) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		if _, err := conn.Write(data); err != nil {
			f.logger.Debug("tunnel write failed", zap.Error(err))
		}
	}
}

// Close stops accepting connections, closes every observer connection,
// waits for handlers, and removes the socket file. Idempotent.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	ln := f.listener
	for conn := range f.conns {
		conn.Close()
	}
	f.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	f.wg.Wait()
	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
