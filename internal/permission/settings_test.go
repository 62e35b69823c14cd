package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRepoSettingsMissingFileYieldsSkeleton(t *testing.T) {
	root := t.TempDir()
	s := loadRepoSettings(root)
	assert.Empty(t, s.Permissions.Allow)
	assert.Empty(t, s.Permissions.Deny)
}

func TestLoadRepoSettingsMalformedYieldsFreshSkeleton(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".claude"), 0o755))
	require.NoError(t, os.WriteFile(settingsPath(root), []byte("not json"), 0o644))

	s := loadRepoSettings(root)
	assert.Empty(t, s.Permissions.Allow)
}

func TestAppendAllowRuleCreatesFileAndAvoidsDuplicates(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, appendAllowRule(root, "Edit"))
	require.NoError(t, appendAllowRule(root, "Bash(git status)"))
	require.NoError(t, appendAllowRule(root, "Edit")) // duplicate, no-op

	s := loadRepoSettings(root)
	assert.Equal(t, []string{"Edit", "Bash(git status)"}, s.Permissions.Allow)
}

func TestRuleStringRendersBashPrefixParens(t *testing.T) {
	assert.Equal(t, "Bash(git status)", ruleString("Bash", "git status"))
	assert.Equal(t, "Bash", ruleString("Bash", ""))
	assert.Equal(t, "Edit", ruleString("Edit", ""))
}
