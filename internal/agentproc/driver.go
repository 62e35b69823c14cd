package agentproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tim-agents/tim/internal/tim"
)

// Result is what Wait resolves with.
type Result struct {
	ExitCode           int
	KilledByInactivity bool
	Stdout             []string
}

// LineHandler is invoked for each line of agent stdout, in order, on a
// single goroutine — the Formatter does no I/O, so this callback must
// not block.
type LineHandler func(line string)

// Agent is one spawned agent process.
type Agent struct {
	cmd    *exec.Cmd
	cfg    Config
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *zap.Logger

	onLine LineHandler

	mu          sync.Mutex
	lines       []string
	capture     tim.CapturePolicy
	lastByte    time.Time
	killedByInactivity bool

	startedOnce sync.Once
	doneCh      chan struct{}
}

// Spawn starts the agent process and writes nothing to its stdin —
// callers use Stdin() plus the Input Router's SinglePrompt/follow-up
// machinery, which owns stdin after spawn.
func Spawn(cfg Config, capture tim.CapturePolicy, logger *zap.Logger) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "."
	}

	cmd := buildCommand(cfg, "")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agentproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agentproc: stdout pipe: %w", err)
	}
	cmd.Stderr = nil // agent stderr is diagnostic only; not part of the formatted stream

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", tim.ErrSpawnFailed, err)
	}

	a := &Agent{
		cmd:      cmd,
		cfg:      cfg,
		stdin:    stdin,
		stdout:   stdout,
		logger:   logger.With(zap.String("component", "agentproc")),
		capture:  capture,
		lastByte: time.Now(),
		doneCh:   make(chan struct{}),
	}
	return a, nil
}

// Stdin exposes the agent's stdin pipe, owned thereafter by the Input
// Router.
func (a *Agent) Stdin() io.WriteCloser { return a.stdin }

// SetLineHandler installs the per-line callback. Must be called before
// Wait.
func (a *Agent) SetLineHandler(fn LineHandler) { a.onLine = fn }

// Wait streams stdout, enforces the inactivity policy, and blocks
// until the process exits or is killed. ctx cancellation kills the
// subprocess immediately.
func (a *Agent) Wait(ctx context.Context) (*Result, error) {
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		a.captureOutput()
	}()

	watchdogCtx, cancelWatchdog := context.WithCancel(context.Background())
	defer cancelWatchdog()
	inactivityCh := make(chan time.Duration, 1)
	go a.watchInactivity(watchdogCtx, inactivityCh)

	exitCh := make(chan error, 1)
	go func() { exitCh <- a.cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = a.Kill()
		<-exitCh
		<-captureDone
		return a.buildResult(false), ctx.Err()

	case threshold := <-inactivityCh:
		a.mu.Lock()
		a.killedByInactivity = true
		a.mu.Unlock()
		_ = a.Kill()
		<-exitCh
		<-captureDone
		return a.buildResult(true), fmt.Errorf("agentproc: killed by inactivity after %v", threshold)

	case err := <-exitCh:
		<-captureDone
		if cfgErr, ok := exitCheck(err); ok {
			if a.cfg.Mode == tim.ModeReview && cfgErr != 0 {
				return a.buildResult(false), fmt.Errorf("%w: exit %d", tim.ErrReviewModeNonZero, cfgErr)
			}
		}
		return a.buildResult(false), nil
	}
}

func exitCheck(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), true
	}
	return -1, false
}

func (a *Agent) buildResult(killedByInactivity bool) *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	exitCode := 0
	if state := a.cmd.ProcessState; state != nil {
		exitCode = state.ExitCode()
	}
	res := &Result{ExitCode: exitCode, KilledByInactivity: killedByInactivity || a.killedByInactivity}
	if a.capture == tim.CaptureAll {
		res.Stdout = append([]string(nil), a.lines...)
	}
	return res
}

// captureOutput reads stdout line by line, feeding each to onLine and,
// when the capture policy calls for it, to the retained buffer.
func (a *Agent) captureOutput() {
	scanner := bufio.NewScanner(a.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		a.mu.Lock()
		a.lastByte = time.Now()
		if a.capture == tim.CaptureAll {
			a.lines = append(a.lines, line)
		}
		a.mu.Unlock()

		if a.onLine != nil {
			a.onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		a.logger.Warn("stdout scan error", zap.Error(err))
	}
}

// watchInactivity implements the two-threshold policy:
// an initial threshold before any byte is seen, then a steady-state
// threshold between bytes. It sends the threshold that fired on ch and
// returns.
func (a *Agent) watchInactivity(ctx context.Context, ch chan<- time.Duration) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	sawFirstByte := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			last := a.lastByte
			a.mu.Unlock()

			if !sawFirstByte {
				if last.After(start) {
					sawFirstByte = true
					continue
				}
				if time.Since(start) >= a.cfg.initialInactivity() {
					ch <- a.cfg.initialInactivity()
					return
				}
				continue
			}

			if time.Since(last) >= a.cfg.steadyInactivity() {
				ch <- a.cfg.steadyInactivity()
				return
			}
		}
	}
}

// Kill forcefully terminates the agent process.
func (a *Agent) Kill() error {
	if a.cmd.Process == nil {
		return nil
	}
	return a.cmd.Process.Kill()
}

// Pid returns the child process id, or 0 if not started.
func (a *Agent) Pid() int {
	if a.cmd.Process == nil {
		return 0
	}
	return a.cmd.Process.Pid
}
