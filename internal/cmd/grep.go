package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harrison/dupescan/internal/content"
	"github.com/harrison/dupescan/internal/enumerate"
)

// NewGrepCommand creates the grep command
func NewGrepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grep <root> <regex>",
		Short: "Search file contents below a directory for a regular expression",
		Long: `Search the text files below root for lines matching a regular expression.

Without --glob, files with common text and source extensions are searched.
Binary files (a NUL byte in the first 8 KiB) are always skipped.

Examples:
  dupescan grep . 'TODO|FIXME'
  dupescan grep /var/log 'error' --glob '*.log' -C 2
  dupescan grep ~/src 'func main' --json`,
		Args: cobra.ExactArgs(2),
		RunE: runGrep,
	}

	addConfigFlag(cmd)
	cmd.Flags().String("glob", "", "Only search files matching this glob (default: common text extensions)")
	cmd.Flags().Int("max-results", 100, "Maximum number of matching lines to print (0 = all)")
	cmd.Flags().IntP("context", "C", 0, "Lines of context to show around each match")
	cmd.Flags().Int("max-depth", 0, "Directory depth limit (0 = unlimited, 1 = root only)")
	cmd.Flags().Bool("hidden", false, "Include dot-files and descend into dot-directories")
	cmd.Flags().Bool("json", false, "Print the result as JSON")

	return cmd
}

func runGrep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	glob, _ := cmd.Flags().GetString("glob")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	contextLines, _ := cmd.Flags().GetInt("context")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	hidden, _ := cmd.Flags().GetBool("hidden")
	asJSON, _ := cmd.Flags().GetBool("json")

	opts := content.Options{
		Pattern:       args[1],
		FilePattern:   glob,
		MaxResults:    maxResults,
		ContextLines:  contextLines,
		MaxDepth:      maxDepth,
		IncludeHidden: hidden || cfg.IncludeHidden,
	}
	if _, err := opts.Validate(); err != nil {
		return err
	}

	registry := configuredRegistry(cfg)
	searcher := content.New(registry, enumerate.New(registry), content.DefaultBackends(cfg.EffectiveConcurrency())...)
	result, err := searcher.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("grep failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printContentResult(out, result)
}

// printContentResult prints matches as path:line:text and context lines as
// path-line-text. With context, each match is its own block separated by "--".
func printContentResult(w io.Writer, r *content.Result) error {
	var b strings.Builder
	for i, m := range r.Matches {
		withContext := len(m.Before) > 0 || len(m.After) > 0
		if i > 0 && withContext {
			b.WriteString("--\n")
		}
		first := m.LineNumber - len(m.Before)
		for j, line := range m.Before {
			fmt.Fprintf(&b, "%s-%d-%s\n", m.Path, first+j, line)
		}
		fmt.Fprintf(&b, "%s:%d:%s\n", m.Path, m.LineNumber, m.Line)
		for j, line := range m.After {
			fmt.Fprintf(&b, "%s-%d-%s\n", m.Path, m.LineNumber+1+j, line)
		}
	}
	if r.Truncated {
		fmt.Fprintf(&b, "... %d more matches not shown\n", r.TotalMatches-len(r.Matches))
	}

	backend := r.Backend
	if backend == "" {
		backend = "no files searched"
	}
	fmt.Fprintf(&b, "\n%s matches in %s of %s files for %q (%dms, %s)\n",
		humanize.Comma(int64(r.TotalMatches)),
		humanize.Comma(int64(r.FilesMatched)),
		humanize.Comma(int64(r.FilesScanned)),
		r.Pattern,
		r.ElapsedMs,
		backend)
	_, err := io.WriteString(w, b.String())
	return err
}
