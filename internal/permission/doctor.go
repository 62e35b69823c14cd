package permission

import "context"

// Report is the read-only diagnostic snapshot `tim agent doctor` prints:
// the allow-rule map in resolution order (session seed, repo-persistent,
// shared-store) for a given working directory, grounded on the
// teacher's cmd/vc/status.go and cmd/vc/doctor.go diagnostic commands.
type Report struct {
	WorkingDir   string
	RepoRoot     string
	RepoIdentity string
	SessionRules map[string][]string // rules an explicit --allowed-tools flag would seed
	RepoRules    []string            // <repo-root>/.claude/settings.local.json permissions.allow[]
	SharedRules  []string            // cross-worktree shared-permissions store, if configured
}

// Diagnose builds a Report without starting a Broker or mutating any
// state. shared may be nil when no shared-permissions store is
// configured.
func Diagnose(ctx context.Context, workingDir string, sessionSeed []string, shared RuleLister) Report {
	root := gitRoot(workingDir)
	identity := repoIdentity(workingDir)

	rules := NewRuleSet(sessionSeed)

	rep := Report{
		WorkingDir:   workingDir,
		RepoRoot:     root,
		RepoIdentity: identity,
		SessionRules: rules.Snapshot(),
		RepoRules:    loadRepoSettings(root).Permissions.Allow,
	}
	if shared != nil {
		if r, err := shared.Rules(ctx, identity); err == nil {
			rep.SharedRules = r
		}
	}
	return rep
}
