package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tim-agents/tim/internal/tim"
)

func TestTokenizeShellCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "rm foo.txt", []string{"rm", "foo.txt"}},
		{"single-quoted", `rm 'a file.txt'`, []string{"rm", "a file.txt"}},
		{"double-quoted-escape", `rm "a \"b\" c"`, []string{"rm", `a "b" c`}},
		{"backslash-escape-bare", `rm a\ b.txt`, []string{"rm", "a b.txt"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tokenizeShellCommand(tc.in))
		})
	}
}

func TestHasGlobChars(t *testing.T) {
	assert.True(t, hasGlobChars("*.txt"))
	assert.True(t, hasGlobChars("file?.go"))
	assert.True(t, hasGlobChars("[abc].txt"))
	assert.False(t, hasGlobChars("plain.txt"))
}

// TestAutoApproveSafety checks that only rm commands whose every
// positional argument resolves
// to a previously tracked (agent-written) file are approved silently.
func TestAutoApproveSafety(t *testing.T) {
	tracked := tim.NewTrackedFiles()
	tracked.Add("/work/generated.txt")

	assert.True(t, autoApproveDeletion("rm generated.txt", "/work", tracked))
	assert.True(t, autoApproveDeletion("rm -f generated.txt", "/work", tracked))
	assert.False(t, autoApproveDeletion("rm /etc/passwd", "/work", tracked))
	assert.False(t, autoApproveDeletion("rm *.txt", "/work", tracked))
	assert.False(t, autoApproveDeletion("rm untracked.txt", "/work", tracked))
	assert.False(t, autoApproveDeletion("ls generated.txt", "/work", tracked))
}

func TestAutoApproveDeletionMultipleArgsAllMustBeTracked(t *testing.T) {
	tracked := tim.NewTrackedFiles()
	tracked.Add("/work/a.txt")
	tracked.Add("/work/b.txt")

	assert.True(t, autoApproveDeletion("rm a.txt b.txt", "/work", tracked))
	tracked2 := tim.NewTrackedFiles()
	tracked2.Add("/work/a.txt")
	assert.False(t, autoApproveDeletion("rm a.txt b.txt", "/work", tracked2))
}
