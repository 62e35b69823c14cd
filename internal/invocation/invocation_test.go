package invocation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tim-agents/tim/internal/tim"
)

// writeFakeClaude drops an executable "claude" shell script on a fresh
// PATH entry; agentproc's buildCommand (called by agentproc.Spawn)
// hardcodes that binary name, so
// this is the only way to exercise Run end-to-end without a real agent
// CLI installed.
func writeFakeClaude(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunEndToEndSuccess(t *testing.T) {
	writeFakeClaude(t, `cat >/dev/null
echo '{"type":"system","subtype":"init","session_id":"s1"}'
echo '{"type":"result","subtype":"success","total_cost_usd":0.1,"duration_ms":10,"num_turns":1}'
exit 0
`)

	var mu sync.Mutex
	var batches [][]tim.FormattedMessage
	opts := Options{
		Config: tim.InvocationConfig{
			WorkingDir:    t.TempDir(),
			Mode:          tim.ModeNormal,
			AllowAllTools: true,
			InputSource:   tim.InputSourceSinglePrompt,
		},
		ContextText: "do the task",
		PlanID:      "plan-1",
		OnMessages: func(batch []tim.FormattedMessage) {
			mu.Lock()
			batches = append(batches, batch)
			mu.Unlock()
		},
	}

	inv := New(opts)
	result, err := inv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Success)
	assert.Nil(t, result.Failure)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, batches)

	// TestRunEndToEndSuccess also checks cleanup completeness: the
	// per-run temp dir must not survive past Run's return.
	_, statErr := os.Stat(inv.tempDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunDetectsFailure(t *testing.T) {
	writeFakeClaude(t, `cat >/dev/null
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"FAILED: the build broke"}]}}'
echo '{"type":"result","subtype":"success"}'
exit 0
`)

	opts := Options{
		Config: tim.InvocationConfig{
			WorkingDir:    t.TempDir(),
			AllowAllTools: true,
			InputSource:   tim.InputSourceSinglePrompt,
		},
		ContextText: "do the task",
		PlanID:      "plan-1",
	}

	inv := New(opts)
	result, err := inv.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Failure)
	assert.Equal(t, "the build broke", result.Failure.Summary)
	assert.False(t, result.Success)
}

func TestRunNonZeroExitIsNotSuccess(t *testing.T) {
	writeFakeClaude(t, `cat >/dev/null
exit 1
`)

	opts := Options{
		Config: tim.InvocationConfig{
			WorkingDir:    t.TempDir(),
			AllowAllTools: true,
			InputSource:   tim.InputSourceSinglePrompt,
		},
		ContextText: "do the task",
		PlanID:      "plan-1",
	}

	inv := New(opts)
	result, err := inv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.Success)
}

func TestInvocationIDIsStableAndUnique(t *testing.T) {
	inv1 := New(Options{})
	inv2 := New(Options{})
	assert.NotEmpty(t, inv1.ID())
	assert.NotEqual(t, inv1.ID(), inv2.ID())
}

// TestRegisterCleanupRunsInReverseOrder checks ordering: registered
// cleanups run LIFO, exactly once, even across repeated calls.
func TestRegisterCleanupRunsInReverseOrder(t *testing.T) {
	inv := New(Options{})

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		inv.registerCleanup("step", func() error {
			order = append(order, i)
			return nil
		})
	}

	inv.runCleanups()
	inv.runCleanups() // idempotent: second call must not re-run steps

	assert.Equal(t, []int{2, 1, 0}, order)
}
