package inputrouter

import (
	"bufio"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tim-agents/tim/internal/tim"
)

// fakeStdin is an io.WriteCloser backed by a buffered os.Pipe so the
// Router's synchronous writes complete before tests read them back, and
// tests can observe Close.
type fakeStdin struct {
	w      *os.File
	closed chan struct{}
}

func newFakeStdin() (*fakeStdin, *bufio.Reader) {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	fs := &fakeStdin{w: w, closed: make(chan struct{})}
	return fs, bufio.NewReader(r)
}

func (f *fakeStdin) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeStdin) Close() error {
	close(f.closed)
	return f.w.Close()
}

func readLineWithTimeout(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.line
	case <-time.After(5 * time.Second):
		t.Fatal("timed out reading line")
		return ""
	}
}

func TestSinglePromptWritesAndCloses(t *testing.T) {
	stdin, reader := newFakeStdin()
	r := New(stdin, nil)

	require.NoError(t, r.SinglePrompt("do the task"))
	line := readLineWithTimeout(t, reader)
	assert.Equal(t, "do the task\n", line)

	select {
	case <-stdin.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("stdin was not closed by SinglePrompt")
	}
}

func TestWriteInitialPromptDoesNotClose(t *testing.T) {
	stdin, reader := newFakeStdin()
	r := New(stdin, nil)

	require.NoError(t, r.WriteInitialPrompt("hello"))
	readLineWithTimeout(t, reader)

	select {
	case <-stdin.closed:
		t.Fatal("stdin was closed but WriteInitialPrompt should leave it open")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, r.Close())
}

// TestRouterCloseIdempotent checks that Close is idempotent.
func TestRouterCloseIdempotent(t *testing.T) {
	stdin, _ := newFakeStdin()
	r := New(stdin, nil)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestWritesAfterCloseSilentlyDropped(t *testing.T) {
	stdin, _ := newFakeStdin()
	r := New(stdin, nil)
	require.NoError(t, r.Close())

	assert.NoError(t, r.WriteInitialPrompt("too late"))
}

func TestNotifyResultClosesUnlessKeepOpen(t *testing.T) {
	stdin, _ := newFakeStdin()
	r := New(stdin, nil)

	r.NotifyResult(true)
	select {
	case <-stdin.closed:
		t.Fatal("NotifyResult(true) should not close stdin")
	case <-time.After(50 * time.Millisecond):
	}

	r.NotifyResult(false)
	select {
	case <-stdin.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("NotifyResult(false) should close stdin")
	}
}

func TestTunnelRouteFeedsFollowup(t *testing.T) {
	stdin, reader := newFakeStdin()
	r := New(stdin, nil)
	handler := r.RegisterTunnel()
	assert.Equal(t, tim.InputSourceTunnel, r.ActiveSource())

	handler("a follow-up")
	line := readLineWithTimeout(t, reader)
	assert.Contains(t, line, "a follow-up")
	assert.Contains(t, line, `"type":"user"`)
}

func TestGUIRouteMirrorsAndFiresCallback(t *testing.T) {
	stdin, reader := newFakeStdin()
	r := New(stdin, nil)

	var mirrored string
	var event UserInputEvent
	r.MirrorToTunnel = func(content string) { mirrored = content }
	r.OnUserInput = func(e UserInputEvent) { event = e }

	handler := r.RegisterGUI()
	assert.Equal(t, tim.InputSourceGUI, r.ActiveSource())

	handler("gui message")
	readLineWithTimeout(t, reader)

	assert.Equal(t, "gui message", mirrored)
	assert.Equal(t, tim.InputSourceGUI, event.Source)
	assert.Equal(t, "gui message", event.Content)
}

func TestClearGUIHandlerResetsSource(t *testing.T) {
	stdin, _ := newFakeStdin()
	r := New(stdin, nil)
	r.RegisterGUI()
	r.ClearGUIHandler()
	assert.Equal(t, tim.InputSourceNone, r.ActiveSource())
}

// TestSubmitFollowupWriteFailureConcurrentWithTerminalAccessIsRaceFree
// drives submitFollowup's write-failure path (which stops r.terminal)
// concurrently with PauseTerminal, which mutates r.terminal under r.mu. Run with -race to confirm there is no
// unsynchronized access.
func TestSubmitFollowupWriteFailureConcurrentWithTerminalAccessIsRaceFree(t *testing.T) {
	stdin, _ := newFakeStdin()
	r := New(stdin, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = r.PauseTerminal()
		}
	}()

	require.NoError(t, stdin.w.Close()) // subsequent writes fail
	for i := 0; i < 50; i++ {
		r.submitFollowup("late message")
	}
	<-done
}
