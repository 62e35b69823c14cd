package permission

import "strings"

// candidatePrefixes computes the prefix choices offered by the
// secondary prefix-selection prompt: from
// "git status --short" it offers "git", "git status", and the exact
// command, in increasing specificity, with duplicates collapsed.
func candidatePrefixes(command string) []string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for i := 1; i <= len(fields); i++ {
		add(strings.Join(fields[:i], " "))
	}
	add(command)
	return out
}
