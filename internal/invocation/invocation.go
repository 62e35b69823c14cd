// Package invocation ties the Agent Execution Core's components
// together: it is the Lifecycle & Cleanup component plus the
// top-level orchestration of the whole data flow. One Invocation value
// is created
// per agent run and destroyed when its result future resolves.
package invocation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tim-agents/tim/internal/agentproc"
	"github.com/tim-agents/tim/internal/format"
	"github.com/tim-agents/tim/internal/inputrouter"
	"github.com/tim-agents/tim/internal/permission"
	"github.com/tim-agents/tim/internal/promptrender"
	"github.com/tim-agents/tim/internal/tim"
	"github.com/tim-agents/tim/internal/tunnel"
)

// ProcessFormattedMessages is the caller callback: it
// receives each batch of tim.FormattedMessage produced from one
// stdout read and must not block the stream.
type ProcessFormattedMessages func(batch []tim.FormattedMessage)

// MCPConfigWriter builds the MCP config file content and returns the
// path it wrote to.
// Invocation calls this once per run so the permissions-mcp bridge
// knows which socket to dial.
type MCPConfigWriter func(tempDir, socketPath string) (string, error)

// Options configures one Invocation beyond the shared tim.InvocationConfig.
type Options struct {
	Config            tim.InvocationConfig
	OnMessages        ProcessFormattedMessages
	WriteMCPConfig    MCPConfigWriter
	SharedStore       permission.RuleLister
	TunnelEnabled     bool
	GlobalTunnelBusy  bool // a process-wide tunnel client is already active; avoids loops
	ContextText       string
	PlanID            string
	Logger            *zap.Logger
	PromptTimeout     time.Duration
	PromptTimeoutDefault string
	AutoApproveDeletions bool
}

// Invocation is one end-to-end agent run.
type Invocation struct {
	opts   Options
	id     string
	logger *zap.Logger

	tempDir   string
	tracked   *tim.TrackedFiles
	formatter *format.Formatter
	broker    *permission.Broker
	tunnel    *tunnel.Forwarder
	router    *inputrouter.Router
	agent     *agentproc.Agent

	cleanupMu sync.Mutex
	cleanups  []func() error
	closeOnce sync.Once
}

// New builds an Invocation. Nothing is started yet; call Run. Each
// Invocation gets a fresh ID: cleanup and diagnostics reference "the
// invocation" as a unit, and the ID correlates its log
// lines and temp-dir name across a run).
func New(opts Options) *Invocation {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Invocation{
		opts:      opts,
		id:        id,
		logger:    logger.With(zap.String("component", "invocation"), zap.String("invocation_id", id)),
		tracked:   tim.NewTrackedFiles(),
		formatter: format.New(),
	}
}

// ID returns the Invocation's unique identifier.
func (inv *Invocation) ID() string { return inv.id }

// Run executes the full data flow: render the prompt,
// set up the broker/tunnel sockets and temp dir, spawn the agent,
// stream its stdout through the Formatter, route follow-up input, and
// tear everything down on every exit path.
func (inv *Invocation) Run(ctx context.Context) (tim.InvocationResult, error) {
	defer inv.runCleanups()

	if err := inv.setup(); err != nil {
		return tim.InvocationResult{}, err
	}

	prompt := promptrender.Render(inv.opts.ContextText, inv.opts.PlanID, inv.opts.Config.Mode, inv.opts.Config.Options)

	agentCfg := inv.agentConfig(prompt)
	agent, err := agentproc.Spawn(agentCfg, inv.opts.Config.Capture, inv.logger)
	if err != nil {
		return tim.InvocationResult{}, err
	}
	inv.agent = agent
	inv.registerCleanup("agent stdin", func() error { return agent.Stdin().Close() })

	inv.router = inputrouter.New(agent.Stdin(), inv.logger)
	if inv.tunnel != nil {
		inv.router.MirrorToTunnel = inv.tunnel.SendUserInput
	}
	inv.registerCleanup("input router", func() error { return inv.router.Close() })

	var failure *tim.FailureReport
	var failureMu sync.Mutex

	agent.SetLineHandler(func(line string) {
		msg := inv.formatter.FormatLine(line)
		if inv.tunnel != nil && msg.Rendered != "" {
			inv.tunnel.SendOutput(msg.Rendered)
		}
		for _, p := range msg.FilePaths {
			abs := p
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(inv.opts.Config.WorkingDir, abs)
			}
			inv.tracked.Add(filepath.Clean(abs))
		}
		if msg.Failed {
			failureMu.Lock()
			if failure == nil {
				failure = &tim.FailureReport{Summary: msg.FailedSummary}
			}
			failureMu.Unlock()
		}
		if msg.Type == "result" {
			inv.router.NotifyResult(false)
		}
		if inv.opts.OnMessages != nil {
			inv.opts.OnMessages([]tim.FormattedMessage{msg})
		}
	})

	if err := inv.startInputSource(prompt); err != nil {
		return tim.InvocationResult{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var result tim.InvocationResult
	g.Go(func() error {
		res, waitErr := agent.Wait(gctx)
		if res != nil {
			result.ExitCode = res.ExitCode
			result.KilledByInactivity = res.KilledByInactivity
			result.Stdout = res.Stdout
		}
		result.Err = waitErr
		return nil // a non-nil agent error is surfaced via result.Err, not as a group failure
	})
	_ = g.Wait()

	failureMu.Lock()
	result.Failure = failure
	failureMu.Unlock()
	result.Success = result.Failure == nil && result.Err == nil && result.ExitCode == 0

	return result, nil
}

// setup creates the temp directory and starts the broker/tunnel
// sockets, registering each teardown on the cleanup stack in order of
// acquisition, so teardown unwinds in the opposite order.
func (inv *Invocation) setup() error {
	tempDir, err := os.MkdirTemp("", "tim-invocation-"+inv.id+"-*")
	if err != nil {
		return fmt.Errorf("invocation: create temp dir: %w", err)
	}
	inv.tempDir = tempDir
	inv.registerCleanup("temp dir", func() error { return os.RemoveAll(tempDir) })

	if !inv.opts.Config.AllowAllTools {
		brokerCfg := permission.Config{
			SocketPath:           filepath.Join(tempDir, "permissions.sock"),
			WorkingDir:           inv.opts.Config.WorkingDir,
			AllowedTools:         inv.opts.Config.AllowedTools,
			PromptTimeout:        inv.opts.PromptTimeout,
			PromptTimeoutDefault: inv.opts.PromptTimeoutDefault,
			AutoApproveDeletions: inv.opts.AutoApproveDeletions,
			Tracked:              inv.tracked,
			SharedStore:          inv.opts.SharedStore,
			Logger:               inv.logger,
		}
		broker, err := permission.New(brokerCfg)
		if err != nil {
			return err
		}
		if err := broker.Start(); err != nil {
			return err
		}
		inv.broker = broker
		inv.registerCleanup("broker socket", broker.Close)
	}

	if inv.opts.TunnelEnabled && !inv.opts.GlobalTunnelBusy {
		fwd := tunnel.New(filepath.Join(tempDir, "tunnel.sock"), inv.logger)
		if err := fwd.Start(); err != nil {
			return err
		}
		inv.tunnel = fwd
		inv.registerCleanup("tunnel server", fwd.Close)
	}

	return nil
}

func (inv *Invocation) agentConfig(prompt string) agentproc.Config {
	cfg := inv.opts.Config
	ac := agentproc.Config{
		WorkingDir:        cfg.WorkingDir,
		Mode:              cfg.Mode,
		Model:             cfg.Model,
		AddDirs:           cfg.AddDirs,
		AllowAllTools:     cfg.AllowAllTools,
		AllowedTools:      cfg.AllowedTools,
		DisallowedTools:   cfg.DisallowedTools,
		InitialInactivity: cfg.InitialInactivity,
		SteadyInactivity:  cfg.SteadyInactivity,
	}
	if inv.tunnel != nil {
		ac.TunnelSocketPath = filepath.Join(inv.tempDir, "tunnel.sock")
	}
	if inv.broker != nil && inv.opts.WriteMCPConfig != nil {
		if path, err := inv.opts.WriteMCPConfig(inv.tempDir, filepath.Join(inv.tempDir, "permissions.sock")); err == nil {
			ac.MCPConfigPath = path
		} else {
			inv.logger.Warn("failed to write MCP config", zap.Error(err))
		}
	}
	_ = prompt // the prompt is delivered via the Input Router, not a command-line argument, except in review mode
	if cfg.Mode == tim.ModeReview {
		ac.ReviewPrintArgument = prompt
	}
	return ac
}

// startInputSource wires the configured input-source policy (spec
// §4.3): single-prompt mode writes the prompt and closes stdin
// immediately; any other policy starts the corresponding route and
// leaves stdin open for follow-up messages.
func (inv *Invocation) startInputSource(prompt string) error {
	switch inv.opts.Config.InputSource {
	case tim.InputSourceSinglePrompt, "":
		return inv.router.SinglePrompt(prompt)
	case tim.InputSourceTerminal:
		if err := inv.router.StartTerminal("tim> "); err != nil {
			return err
		}
		return inv.router.WriteInitialPrompt(prompt)
	case tim.InputSourceTunnel:
		if inv.tunnel == nil {
			return fmt.Errorf("invocation: tunnel input source requested but no tunnel is running")
		}
		handler := inv.router.RegisterTunnel()
		inv.tunnel.SetOnUserInput(handler)
		return inv.router.WriteInitialPrompt(prompt)
	case tim.InputSourceGUI:
		_ = inv.router.RegisterGUI()
		inv.registerCleanup("gui input handler", func() error {
			inv.router.ClearGUIHandler()
			return nil
		})
		return inv.router.WriteInitialPrompt(prompt)
	default:
		return fmt.Errorf("invocation: unknown input source %q", inv.opts.Config.InputSource)
	}
}

// registerCleanup pushes a teardown step. Cleanups run in LIFO order
// in runCleanups: reverse of acquisition.
func (inv *Invocation) registerCleanup(name string, fn func() error) {
	inv.cleanupMu.Lock()
	defer inv.cleanupMu.Unlock()
	inv.cleanups = append(inv.cleanups, func() error {
		if err := fn(); err != nil {
			inv.logger.Debug("cleanup step failed", zap.String("step", name), zap.Error(err))
			return err
		}
		return nil
	})
}

// runCleanups runs every registered teardown step in reverse order,
// exactly once, on every exit path.
func (inv *Invocation) runCleanups() {
	inv.closeOnce.Do(func() {
		inv.cleanupMu.Lock()
		steps := append([]func() error(nil), inv.cleanups...)
		inv.cleanupMu.Unlock()

		for i := len(steps) - 1; i >= 0; i-- {
			_ = steps[i]()
		}
	})
}

// Cancel kills the subprocess immediately and runs the cleanup stack;
// it is the caller-initiated cancellation path.
func (inv *Invocation) Cancel() {
	if inv.agent != nil {
		_ = inv.agent.Kill()
	}
	inv.runCleanups()
}
