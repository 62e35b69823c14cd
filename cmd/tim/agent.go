package main

import "github.com/spf13/cobra"

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Drive a single coding-agent subprocess invocation",
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
