package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/config"
	"github.com/harrison/dupescan/internal/content"
	"github.com/harrison/dupescan/internal/enumerate"
	"github.com/harrison/dupescan/internal/hashing"
	"github.com/harrison/dupescan/internal/models"
)

// NewBackendsCommand creates the backends command
func NewBackendsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Show which backend tiers are available on this machine",
		Long: `Probe every backend of every operation and print the result in the
order the dispatcher tries them. Disabled backends and priority overrides
from the configuration are applied.`,
		Args: cobra.NoArgs,
		RunE: runBackends,
	}

	addConfigFlag(cmd)
	cmd.Flags().StringArray("disable-backend", nil, "Treat this backend as disabled (repeatable)")
	cmd.Flags().Bool("json", false, "Print the probe table as JSON")

	return cmd
}

func runBackends(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	disabled, _ := cmd.Flags().GetStringArray("disable-backend")
	cfg.MergeWithFlags(config.Flags{Disabled: disabled})
	asJSON, _ := cmd.Flags().GetBool("json")

	registry := configuredRegistry(cfg)
	content.New(registry, enumerate.New(registry))
	hashing.NewService(registry)

	table := probeAll(cmd, registry)
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}
	return printBackends(out, registry.Operations(), table, colorEnabled(out))
}

func probeAll(cmd *cobra.Command, registry *capability.Registry) map[string][]models.BackendDescriptor {
	table := make(map[string][]models.BackendDescriptor)
	for _, op := range registry.Operations() {
		table[op] = registry.Probe(cmd.Context(), op)
	}
	return table
}

func printBackends(w io.Writer, ops []string, table map[string][]models.BackendDescriptor, colored bool) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	if colored {
		green.EnableColor()
		red.EnableColor()
	} else {
		green.DisableColor()
		red.DisableColor()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tBACKEND\tKIND\tPRIORITY\tSTATUS")
	for _, op := range ops {
		for _, d := range table[op] {
			status := green.Sprint("available")
			if !d.Available {
				status = red.Sprint("unavailable") + ": " + d.ProbeError
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", op, d.Name, d.Kind, d.Priority, status)
		}
	}
	return tw.Flush()
}
