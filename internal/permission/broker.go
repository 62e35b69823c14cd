// Package permission implements the Permission Broker: a
// per-Invocation Unix-domain socket server that mediates every
// tool-use permission request the agent's in-process MCP hook raises,
// resolving each via the session allow-rule map, an auto-approve
// probe, or an interactive prompt, and replying on the same
// connection that carried the request.
package permission

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tim-agents/tim/internal/tim"
)

// Config configures a Broker for one Invocation.
type Config struct {
	SocketPath           string
	WorkingDir           string
	AllowedTools         []string
	PromptTimeout        time.Duration
	PromptTimeoutDefault string // "yes" or "no"
	AutoApproveDeletions bool
	Tracked              *tim.TrackedFiles
	SharedStore          RuleLister
	Logger               *zap.Logger
}

// RuleLister is the external-collaborator contract for
// the cross-worktree shared-permissions store: "returns a list of
// allow-rules" for a repository identity. Also satisfied by
// *sharedstore.Store.
type RuleLister interface {
	Rules(ctx context.Context, repoIdentity string) ([]string, error)
	AddRule(ctx context.Context, repoIdentity, rule string) error
}

// Broker serves one Unix-domain socket for the lifetime of an
// Invocation.
type Broker struct {
	cfg     Config
	rules   *RuleSet
	session *terminalSession
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
	closeCh  chan struct{}
}

// New builds a Broker that has not yet started listening.
func New(cfg Config) (*Broker, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("permission: socket path is required")
	}
	if cfg.Tracked == nil {
		cfg.Tracked = tim.NewTrackedFiles()
	}
	if cfg.PromptTimeout == 0 {
		cfg.PromptTimeout = 2 * time.Minute
	}
	if cfg.PromptTimeoutDefault == "" {
		cfg.PromptTimeoutDefault = "no"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rules := NewRuleSet(cfg.AllowedTools)
	if cfg.SharedStore != nil {
		if shared, err := cfg.SharedStore.Rules(context.Background(), repoIdentity(cfg.WorkingDir)); err == nil {
			for _, r := range shared {
				rules.allow(r)
			}
		} else {
			logger.Debug("permission: failed to load shared rules", zap.Error(err))
		}
	}

	return &Broker{
		cfg:     cfg,
		rules:   rules,
		session: newTerminalSession(),
		logger:  logger.With(zap.String("component", "permission.broker")),
		closeCh: make(chan struct{}),
	}, nil
}

// Start opens the Unix-domain socket and begins accepting connections.
func (b *Broker) Start() error {
	if err := os.MkdirAll(filepath.Dir(b.cfg.SocketPath), 0o755); err != nil {
		return fmt.Errorf("permission: create socket dir: %w", err)
	}
	_ = os.Remove(b.cfg.SocketPath) // stale socket from a crashed prior run

	ln, err := net.Listen("unix", b.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("permission: listen %s: %w", b.cfg.SocketPath, err)
	}

	b.mu.Lock()
	b.listener = ln
	b.mu.Unlock()

	b.wg.Add(1)
	go b.acceptLoop(ln)
	return nil
}

func (b *Broker) acceptLoop(ln net.Listener) {
	defer b.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.closeCh:
				return
			default:
			}
			b.logger.Warn("accept error", zap.Error(err))
			return
		}
		b.wg.Add(1)
		go b.handleConnection(conn)
	}
}

// handleConnection implements the per-connection state machine:
// Reading -> parse -> dispatch -> Replying -> Reading, with terminal
// Closed. It maintains its own receive buffer via bufio and silently
// skips lines that fail to parse as JSON, so framing holds regardless
// of how the peer chunks its writes.
func (b *Broker) handleConnection(conn net.Conn) {
	defer b.wg.Done()
	defer conn.Close()

	var writeMu sync.Mutex // serialize writes per connection
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var inflight sync.WaitGroup
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req tim.PermissionRequest
		if err := json.Unmarshal(line, &req); err != nil {
			continue // malformed line: dropped silently
		}

		inflight.Add(1)
		go func(req tim.PermissionRequest) {
			defer inflight.Done()
			resp := b.resolve(context.Background(), req)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := writeResponse(conn, resp); err != nil {
				b.logger.Warn("write response failed", zap.Error(err))
			}
		}(req)
	}
	inflight.Wait()
}

func writeResponse(conn net.Conn, resp tim.PermissionResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

// resolve implements the six-step resolution algorithm.
func (b *Broker) resolve(ctx context.Context, req tim.PermissionRequest) tim.PermissionResponse {
	if req.ToolName == "AskUserQuestion" {
		return b.session.askUserQuestion(ctx, req, b.cfg.PromptTimeout, b.cfg.PromptTimeoutDefault)
	}

	if b.rules.Approved(req) {
		return tim.NewApproval(req.RequestID)
	}

	if req.ToolName == "Bash" && b.cfg.AutoApproveDeletions {
		if cmd, _ := req.Input["command"].(string); cmd != "" {
			if autoApproveDeletion(cmd, b.cfg.WorkingDir, b.cfg.Tracked) {
				return tim.NewApproval(req.RequestID)
			}
		}
	}

	c, err := b.session.promptChoice(ctx, req.ToolName, req.Input, b.cfg.PromptTimeout, b.cfg.PromptTimeoutDefault)
	if err != nil {
		b.logger.Debug("prompt failed", zap.Error(err))
		return tim.NewDenial(req.RequestID)
	}

	switch c {
	case choiceDisallow:
		return tim.NewDenial(req.RequestID)
	case choiceAllow:
		return tim.NewApproval(req.RequestID)
	case choiceAllowSession, choiceAlwaysAllow:
		b.persistApproval(ctx, req, c)
		return tim.NewApproval(req.RequestID)
	default:
		return tim.NewDenial(req.RequestID)
	}
}

// persistApproval persists a user-granted approval: for Bash, a
// secondary prefix-selection prompt chooses what to persist; for other
// tools, the bare tool name is recorded. "Always Allow" additionally
// writes through to the repo-local settings file and the shared store.
func (b *Broker) persistApproval(ctx context.Context, req tim.PermissionRequest, c choice) {
	var ruleStr string
	if req.ToolName == "Bash" {
		cmd, _ := req.Input["command"].(string)
		prefix, err := b.session.promptPrefix(ctx, candidatePrefixes(cmd))
		if err != nil {
			prefix = cmd
		}
		b.rules.AllowBashPrefix(prefix)
		ruleStr = ruleString("Bash", prefix)
	} else {
		b.rules.AllowTool(req.ToolName)
		ruleStr = ruleString(req.ToolName, "")
	}

	if c != choiceAlwaysAllow {
		return
	}

	root := gitRoot(b.cfg.WorkingDir)
	if err := appendAllowRule(root, ruleStr); err != nil {
		b.logger.Debug("failed to persist rule to repo settings", zap.Error(err))
	}
	if b.cfg.SharedStore != nil {
		if err := b.cfg.SharedStore.AddRule(ctx, repoIdentity(b.cfg.WorkingDir), ruleStr); err != nil {
			b.logger.Debug("failed to persist rule to shared store", zap.Error(err))
		}
	}
}

// Rules exposes the live rule map, for diagnostics.
func (b *Broker) Rules() map[string][]string {
	return b.rules.Snapshot()
}

// Close stops accepting connections, waits for in-flight handlers, and
// removes the socket file. Idempotent.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	ln := b.listener
	b.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	b.wg.Wait()
	if err := os.Remove(b.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
