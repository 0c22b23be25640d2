package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for dupescan
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dupescan",
		Short: "Find duplicate files by content",
		Long: `Dupescan walks a directory tree, groups files by size and hashes
the files that share a size to find byte-identical duplicates.

Directory listing, hashing and content search each run on the fastest
backend available on this machine (in-process, external tool, or portable
fallback) and fall back to the next tier transparently when one fails.`,
		Version: Version,
		// main prints the error; silence cobra's copy and the usage text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewFindCommand())
	cmd.AddCommand(NewGrepCommand())
	cmd.AddCommand(NewBackendsCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
