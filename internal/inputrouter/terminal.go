package inputrouter

import (
	"io"
	"sync"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/tim-agents/tim/internal/tim"
)

// terminalReader wraps a *readline.Instance with pause/resume support:
// a transient pause (e.g. a permission prompt stealing the terminal)
// must preserve whatever the user had partially typed, restoring it
// verbatim on resume rather than relying on the OS's own line-editing
// state. It tracks the
// live line buffer itself via a readline.Listener rather than querying
// readline's internal state after the fact.
type terminalReader struct {
	mu      sync.Mutex
	rl      *readline.Instance
	partial string
	done    chan struct{}
	stopped bool
}

// bufferListener implements readline.Listener, mirroring every
// keystroke's resulting line into the owning terminalReader so a pause
// can read it back without reaching into readline internals.
type bufferListener struct{ tr *terminalReader }

func (l bufferListener) OnChange(line []rune, pos int, key rune) ([]rune, int, bool) {
	l.tr.mu.Lock()
	l.tr.partial = string(line)
	l.tr.mu.Unlock()
	return nil, 0, false // false: accept the input unmodified
}

func newTerminalReader(prompt, prefill string) (*terminalReader, error) {
	tr := &terminalReader{done: make(chan struct{})}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		InterruptPrompt:   "^C",
		EOFPrompt:         "",
		HistorySearchFold: true,
		Listener:          bufferListener{tr: tr},
	})
	if err != nil {
		return nil, err
	}
	tr.rl = rl
	tr.partial = prefill
	if prefill != "" {
		rl.Operation.SetBuffer(prefill)
	}
	return tr, nil
}

// StartTerminal begins reading lines from the controlling terminal.
// Starting a second terminal reader stops any existing one first.
func (r *Router) StartTerminal(prompt string) error {
	r.mu.Lock()
	r.stopTerminalLocked()
	tr, err := newTerminalReader(prompt, "")
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.terminal = tr
	r.source = tim.InputSourceTerminal
	r.mu.Unlock()

	go r.runTerminal(tr)
	return nil
}

func (r *Router) runTerminal(tr *terminalReader) {
	defer close(tr.done)
	for {
		line, err := tr.rl.Readline()
		tr.mu.Lock()
		stopped := tr.stopped
		tr.mu.Unlock()
		if stopped {
			return
		}
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				_ = r.Close() // Ctrl-D closes agent stdin
				return
			}
			r.logger.Warn("terminal reader error", zap.Error(err))
			return
		}
		if line != "" {
			r.submitFollowup(line)
			if r.MirrorToTunnel != nil {
				r.MirrorToTunnel(line)
			}
		}
	}
}

// PauseTerminal tears down the readline instance and returns whatever
// partial input the user had typed, so ResumeTerminal can restore it.
func (r *Router) PauseTerminal() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal == nil {
		return ""
	}
	tr := r.terminal
	tr.mu.Lock()
	partial := tr.partial
	tr.mu.Unlock()
	tr.stop()
	r.terminal = nil
	return partial
}

// ResumeTerminal re-creates the reader with the previously captured
// partial buffer re-injected.
func (r *Router) ResumeTerminal(prompt, partial string) error {
	r.mu.Lock()
	r.stopTerminalLocked()
	tr, err := newTerminalReader(prompt, partial)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.terminal = tr
	r.source = tim.InputSourceTerminal
	r.mu.Unlock()

	go r.runTerminal(tr)
	return nil
}

func (tr *terminalReader) stop() {
	tr.mu.Lock()
	if tr.stopped {
		tr.mu.Unlock()
		return
	}
	tr.stopped = true
	tr.mu.Unlock()
	_ = tr.rl.Close()
}
