// Command forgeman is the CLI front end for the control plane: it
// registers projects, drives the task lifecycle, and forwards terminal and
// framework-update requests to the same request-surface functions the
// control plane's own daemon would call directly.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forgeman",
	Short: "Multi-agent coding assistant control plane",
	Long: `forgeman drives a local multi-agent coding assistant's control plane:
registering projects, creating and supervising tasks, previewing and
merging worktree branches, and hosting terminals.

Available command groups:
  project    register, list, and remove projects
  task       create, start, stop, and review tasks
  worktree   inspect, preview, merge, and discard a task's worktree
  terminal   open and attach to daemon-hosted terminals
  framework  check for and apply framework updates
  serve      run the control plane in the foreground

Use "forgeman [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(worktreeCmd)
	rootCmd.AddCommand(terminalCmd)
	rootCmd.AddCommand(frameworkCmd)
}
