package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harrison/dupescan/internal/display"
	"github.com/harrison/dupescan/internal/history"
)

// NewHistoryCommand creates the history command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded scans",
		Long: `Scans run with --record (or history.enabled in the config) are
stored in a SQLite database, by default ~/.dupescan/history.db.`,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .dupescan/config.yaml)")
	cmd.PersistentFlags().String("db", "", "History database path (overrides config)")

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), history.ListOptions{Root: root, Limit: limit})
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().String("root", "", "Only list scans of this root")
	cmd.Flags().Int("limit", 20, "Maximum number of scans to list (0 = all)")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Print the report of a recorded scan",
		Long:  "Print the report of a recorded scan. A unique prefix of the scan ID is enough.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("format")
			format, err := display.ParseFormat(name)
			if err != nil {
				return err
			}
			statsOnly, _ := cmd.Flags().GetBool("stats")

			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return display.Render(out, report, format, display.Options{
				StatsOnly: statsOnly,
				Color:     format == display.FormatText && colorEnabled(out),
			})
		},
	}
	cmd.Flags().String("format", "text", "Report format: text, json, markdown or html")
	cmd.Flags().Bool("stats", false, "Print only summary statistics")
	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded scans older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Delete(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d scan(s)\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Age threshold, e.g. 720h")
	return cmd
}

// openHistory opens the database named by --db, history.db_path, or the
// default in the dupescan home directory.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		if path, err = cfg.HistoryPath(); err != nil {
			return nil, err
		}
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	return store, nil
}

func printHistory(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No recorded scans.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCAN ID\tSTARTED\tROOT\tGROUPS\tWASTED\tSTATUS")
	for _, e := range entries {
		status := "complete"
		if !e.Completed {
			status = "partial"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ScanID,
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			e.Root,
			e.DuplicateGroups,
			humanize.IBytes(uint64(e.WastedBytes)),
			status)
	}
	return tw.Flush()
}
