package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the dupescan home directory.
const HomeEnv = "DUPESCAN_HOME"

// GetHome returns the dupescan home directory, creating it if needed.
// Priority order:
//  1. DUPESCAN_HOME environment variable (if set)
//  2. ~/.dupescan
//  3. .dupescan in the current working directory (fallback)
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create dupescan home directory: %w", err)
		}
		return home, nil
	}

	base, err := os.UserHomeDir()
	if err != nil || base == "" {
		base, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
	}

	home := filepath.Join(base, ".dupescan")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create dupescan home directory: %w", err)
	}
	return home, nil
}

// DefaultConfigPath returns config.yaml inside the home directory.
func DefaultConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// HistoryPath resolves the history database path: history.db_path when set,
// otherwise history.db inside the home directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}
