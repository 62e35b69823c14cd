package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tim-agents/tim/internal/config"
	"github.com/tim-agents/tim/internal/permission"
	"github.com/tim-agents/tim/internal/sharedstore"
)

var doctorFlags struct {
	allowedTools []string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Print the allow-rule sources for a working directory",
	Long: `doctor is a read-only diagnostic: it prints the working directory,
the repository root and identity, and three allow-rule sources (a session
seed from --allowed-tools, the repo-local .claude/settings.local.json, and
the cross-worktree shared-permissions store) without starting a broker or
spawning an agent. The Permission Broker itself loads only the session
seed and the shared store.`,
	RunE: runAgentDoctor,
}

func init() {
	doctorCmd.Flags().StringSliceVar(&doctorFlags.allowedTools, "allowed-tools", nil, "tool names that would seed the session allow-rule map")
	agentCmd.AddCommand(doctorCmd)
}

func runAgentDoctor(cmd *cobra.Command, args []string) error {
	workdir := flagWorkdir
	if workdir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workdir = cwd
		}
	}

	var shared permission.RuleLister
	if path, err := config.SharedStorePath(); err == nil {
		if store, err := sharedstore.Open(path); err == nil {
			defer store.Close()
			shared = store
		}
	}

	report := permission.Diagnose(cmd.Context(), workdir, doctorFlags.allowedTools, shared)

	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Printf("%s Working directory: %s\n", cyan("→"), report.WorkingDir)
	fmt.Printf("%s Repository root:   %s\n", cyan("→"), report.RepoRoot)
	fmt.Printf("%s Repository identity: %s\n", cyan("→"), report.RepoIdentity)

	fmt.Printf("\n%s Session rule seed\n", cyan("→"))
	if len(report.SessionRules) == 0 {
		fmt.Println("  (none)")
	}
	for tool, prefixes := range report.SessionRules {
		fmt.Printf("  %s %s: %v\n", green("✓"), tool, prefixes)
	}

	fmt.Printf("\n%s Repo-persistent rules (.claude/settings.local.json)\n", cyan("→"))
	if len(report.RepoRules) == 0 {
		fmt.Println("  (none)")
	}
	for _, rule := range report.RepoRules {
		fmt.Printf("  %s %s\n", green("✓"), rule)
	}

	fmt.Printf("\n%s Shared-permissions store rules\n", cyan("→"))
	if len(report.SharedRules) == 0 {
		fmt.Println("  (none)")
	}
	for _, rule := range report.SharedRules {
		fmt.Printf("  %s %s\n", green("✓"), rule)
	}

	return nil
}
