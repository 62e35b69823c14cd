// Command tim drives one coding-agent subprocess end to end: it renders
// the orchestration prompt, spawns the agent CLI, mediates its tool-use
// permission requests, routes follow-up input, and streams formatted
// output — or exposes any of those pieces individually via subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagWorkdir  string
	flagLogLevel string
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "tim",
	Short: "Drive and observe coding-agent subprocess invocations",
	Long: `tim launches a coding agent CLI as a managed child process: it
renders the orchestration prompt, streams the agent's stream-json
stdout through a formatter, mediates tool-use permission requests over
a Unix-domain socket, and routes follow-up input from a terminal,
remote tunnel, or GUI adapter back into the agent's stdin.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkdir, "workdir", "", "working directory for the agent process (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "force JSON log encoding even on a terminal")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
