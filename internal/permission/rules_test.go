package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tim-agents/tim/internal/tim"
)

func TestRuleSetAllowAllSentinel(t *testing.T) {
	rs := NewRuleSet([]string{"Edit"})
	assert.True(t, rs.Approved(tim.PermissionRequest{ToolName: "Edit"}))
	assert.False(t, rs.Approved(tim.PermissionRequest{ToolName: "Write"}))
}

func TestRuleSetBashPrefixMatching(t *testing.T) {
	rs := NewRuleSet(nil)
	rs.AllowBashPrefix("git status")

	assert.True(t, rs.Approved(tim.PermissionRequest{
		ToolName: "Bash",
		Input:    map[string]any{"command": "git status --short"},
	}))
	assert.False(t, rs.Approved(tim.PermissionRequest{
		ToolName: "Bash",
		Input:    map[string]any{"command": "git push origin main"},
	}))
}

// TestRuleMonotonicity checks that approving a rule never revokes a
// previously approved one, and a
// narrower prefix added after an allow-all for the same tool is a
// no-op rather than narrowing it.
func TestRuleMonotonicity(t *testing.T) {
	rs := NewRuleSet(nil)
	rs.AllowBashPrefix("git status")
	rs.AllowTool("Bash") // widen to allow-all
	rs.AllowBashPrefix("rm -rf")

	req := tim.PermissionRequest{ToolName: "Bash", Input: map[string]any{"command": "rm -rf /tmp/x"}}
	assert.True(t, rs.Approved(req))

	snap := rs.Snapshot()
	require.Len(t, snap["Bash"], 1)
	assert.NotEqual(t, "rm -rf", snap["Bash"][0]) // widen wasn't undone by the later narrower add
}

func TestRuleSetDistinctPrefixesNoDuplicate(t *testing.T) {
	rs := NewRuleSet(nil)
	rs.AllowBashPrefix("npm test")
	rs.AllowBashPrefix("npm test")
	rs.AllowBashPrefix("npm run build")

	snap := rs.Snapshot()
	assert.Len(t, snap["Bash"], 2)
}

func TestSplitBashRule(t *testing.T) {
	tool, prefix, ok := splitBashRule("Bash(git status)")
	require.True(t, ok)
	assert.Equal(t, "Bash", tool)
	assert.Equal(t, "git status", prefix)

	tool, _, ok = splitBashRule("Edit")
	assert.False(t, ok)
	assert.Equal(t, "Edit", tool)
}
