package permission

import (
	"path/filepath"
	"strings"

	"github.com/tim-agents/tim/internal/tim"
)

// autoApproveDeletion approves an `rm` command without prompting only
// when every positional argument, resolved against workingDir, names a
// file the agent itself wrote earlier in this Invocation.
func autoApproveDeletion(command, workingDir string, tracked *tim.TrackedFiles) bool {
	tokens := tokenizeShellCommand(command)
	if len(tokens) == 0 || tokens[0] != "rm" {
		return false
	}

	var positional []string
	for _, tok := range tokens[1:] {
		if strings.HasPrefix(tok, "-") {
			continue // flag, e.g. -f, -rf
		}
		if hasGlobChars(tok) {
			return false
		}
		positional = append(positional, tok)
	}
	if len(positional) == 0 {
		return false
	}

	for _, tok := range positional {
		abs := tok
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workingDir, abs)
		}
		abs = filepath.Clean(abs)
		if !tracked.Contains(abs) {
			return false
		}
	}
	return true
}
