package permission

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// repoIdentity resolves the key used to look up a working directory's
// rules in the cross-worktree shared-permissions store, whose entries
// are keyed by repository identity and persist across invocations.
// Prefers the origin remote URL (stable across worktrees and clones of
// the same repo); falls back to the git toplevel path, then to the
// working directory itself when git is unavailable.
func repoIdentity(workingDir string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if remote := gitOutput(ctx, workingDir, "remote", "get-url", "origin"); remote != "" {
		return remote
	}
	if root := gitOutput(ctx, workingDir, "rev-parse", "--show-toplevel"); root != "" {
		return root
	}
	return workingDir
}

func gitOutput(ctx context.Context, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// gitRoot resolves the repository root for settings-file placement,
// falling back to workingDir when not inside a git repository.
func gitRoot(workingDir string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if root := gitOutput(ctx, workingDir, "rev-parse", "--show-toplevel"); root != "" {
		return root
	}
	return workingDir
}
