package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/config"
)

// addConfigFlag registers --config on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .dupescan/config.yaml)")
}

// loadConfig reads --config, or .dupescan/config.yaml in the working
// directory when the flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// configuredRegistry returns the process-wide registry with the configured
// backend overrides applied. Overrides left by an earlier command in the same
// process are cleared first.
func configuredRegistry(cfg *config.Config) *capability.Registry {
	registry := capability.Default()
	registry.Reset()
	for _, name := range cfg.Backends.Disabled {
		registry.Disable(name)
	}
	for name, prio := range cfg.Backends.Priority {
		registry.SetPriority(name, prio)
	}
	return registry
}

// colorEnabled reports whether w is a terminal that should get ANSI colors.
func colorEnabled(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
