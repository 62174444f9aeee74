package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Multi-agent swarm orchestrator",
	Long: `Nexus executes goals with a swarm of role-specialized LLM agents.

A goal is decomposed into a dependency graph of tasks, dispatched wave by
wave to planner, researcher, executor, critic, and coordinator agents, and
synthesized into a single answer. Tasks can run speculatively across
several agents with a consensus round picking the result.

Pre-built task graphs can be supplied as YAML instead of letting the
planner decompose the goal.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(versionCmd)
}
