package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harrison/dupescan/internal/enumerate"
)

// NewFindCommand creates the find command
func NewFindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <root> <glob>",
		Short: "List files below a directory matching a glob",
		Long: `Find files whose path below root matches a glob pattern.

Patterns support ** for any number of directories. A pattern without a
slash matches file names at any depth.

Examples:
  dupescan find . '*.go'
  dupescan find ~/src '**/testdata/**' --max-results 20
  dupescan find /var/log '*.gz' --json`,
		Args: cobra.ExactArgs(2),
		RunE: runFind,
	}

	addConfigFlag(cmd)
	cmd.Flags().Int("max-results", 100, "Maximum number of matches to print (0 = all)")
	cmd.Flags().Int("max-depth", 0, "Directory depth limit (0 = unlimited, 1 = root only)")
	cmd.Flags().Bool("hidden", false, "Include dot-files and descend into dot-directories")
	cmd.Flags().Bool("json", false, "Print the result as JSON")

	return cmd
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	hidden, _ := cmd.Flags().GetBool("hidden")
	asJSON, _ := cmd.Flags().GetBool("json")
	if maxResults < 0 {
		return fmt.Errorf("--max-results must be >= 0, got %d", maxResults)
	}
	if maxDepth < 0 {
		return fmt.Errorf("--max-depth must be >= 0, got %d", maxDepth)
	}

	enumerator := enumerate.New(configuredRegistry(cfg))
	result, err := enumerator.Search(cmd.Context(), args[0], enumerate.SearchOptions{
		Pattern:       args[1],
		MaxResults:    maxResults,
		MaxDepth:      maxDepth,
		IncludeHidden: hidden || cfg.IncludeHidden,
	})
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printSearchResult(out, result)
}

func printSearchResult(w io.Writer, r *enumerate.SearchResult) error {
	var b strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&b, "%10s  %s\n", humanize.IBytes(uint64(f.SizeBytes)), f.Path)
	}
	if r.Truncated {
		fmt.Fprintf(&b, "... %d more matches not shown\n", r.FilesMatched-len(r.Files))
	}
	fmt.Fprintf(&b, "\n%s of %s files matched %q, %s total (%dms, %s)\n",
		humanize.Comma(int64(r.FilesMatched)),
		humanize.Comma(int64(r.FilesScanned)),
		r.Pattern,
		humanize.IBytes(uint64(r.TotalSize)),
		r.ElapsedMs,
		r.Backend)
	_, err := io.WriteString(w, b.String())
	return err
}
