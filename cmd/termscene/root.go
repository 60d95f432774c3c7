package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root cobra command with all subcommands.
// Grounded on internal/cmd/root.go's NewRootCmd.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "termscene",
		Short: "Wrap a PTY-driven program and record/inspect its screen history",
		Long: `termscene wraps an interactive command run under a pseudo-terminal,
interprets its evolving screen as a stream of semantic events, and can
record or replay that history as a dump file.`,
	}

	rootCmd.AddCommand(newRecordCmd(), newDumpCmd())
	return rootCmd
}
