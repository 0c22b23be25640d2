// Package config loads dupescan settings from YAML and merges CLI overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/harrison/dupescan/internal/hashing"
	"github.com/harrison/dupescan/internal/logger"
	"github.com/harrison/dupescan/internal/models"
)

// BackendsConfig controls backend tier selection.
type BackendsConfig struct {
	// Disabled lists backends that must probe as unavailable.
	Disabled []string `yaml:"disabled"`

	// Priority overrides the built-in priority of named backends.
	Priority map[string]int `yaml:"priority"`
}

// HistoryConfig controls the optional scan history database.
type HistoryConfig struct {
	// Enabled records every scan summary in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite history database
	DBPath string `yaml:"db_path"`
}

// Config represents dupescan configuration options
type Config struct {
	// MinSize is the smallest file size considered, in bytes
	MinSize int64

	// MaxSize is the largest file size considered, in bytes (0 = unbounded)
	MaxSize int64

	// Algorithm is the content hash: sha256, sha1 or md5
	Algorithm string

	// Concurrency bounds simultaneous hash operations (0 = logical CPUs)
	Concurrency int

	// MaxDepth limits recursion (0 = unlimited)
	MaxDepth int

	// IncludeHidden scans dot-files and dot-directories
	IncludeHidden bool

	// Include and Exclude are glob filters
	Include []string
	Exclude []string

	// Timeout cancels the scan after the duration (0 = none)
	Timeout time.Duration

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is where run logs are written; empty disables file logging
	LogDir string

	Backends BackendsConfig
	History  HistoryConfig
}

// DefaultConfig returns a Config with the scan defaults.
func DefaultConfig() *Config {
	return &Config{
		MinSize:     models.DefaultMinSize,
		MaxSize:     0,
		Algorithm:   string(hashing.DefaultAlgorithm),
		Concurrency: 0,
		LogLevel:    "info",
		LogDir:      "",
		Backends: BackendsConfig{
			Priority: map[string]int{},
		},
		History: HistoryConfig{
			Enabled: false,
			DBPath:  "",
		},
	}
}

// yamlConfig mirrors the file layout. Sizes accept human-readable strings
// such as "1KiB" or "2 MB" as well as plain byte counts.
type yamlConfig struct {
	MinSize       string         `yaml:"min_size"`
	MaxSize       string         `yaml:"max_size"`
	Algorithm     string         `yaml:"algorithm"`
	Concurrency   int            `yaml:"concurrency"`
	MaxDepth      int            `yaml:"max_depth"`
	IncludeHidden *bool          `yaml:"include_hidden"`
	Include       []string       `yaml:"include"`
	Exclude       []string       `yaml:"exclude"`
	Timeout       string         `yaml:"timeout"`
	LogLevel      string         `yaml:"log_level"`
	LogDir        *string        `yaml:"log_dir"`
	Backends      BackendsConfig `yaml:"backends"`
	History       *struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	} `yaml:"history"`
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if y.MinSize != "" {
		if cfg.MinSize, err = ParseSize(y.MinSize); err != nil {
			return nil, fmt.Errorf("invalid min_size: %w", err)
		}
	}
	if y.MaxSize != "" {
		if cfg.MaxSize, err = ParseSize(y.MaxSize); err != nil {
			return nil, fmt.Errorf("invalid max_size: %w", err)
		}
	}
	if y.Algorithm != "" {
		cfg.Algorithm = strings.ToLower(y.Algorithm)
	}
	if y.Concurrency != 0 {
		cfg.Concurrency = y.Concurrency
	}
	if y.MaxDepth != 0 {
		cfg.MaxDepth = y.MaxDepth
	}
	if y.IncludeHidden != nil {
		cfg.IncludeHidden = *y.IncludeHidden
	}
	if len(y.Include) > 0 {
		cfg.Include = y.Include
	}
	if len(y.Exclude) > 0 {
		cfg.Exclude = y.Exclude
	}
	if y.Timeout != "" {
		timeout, err := time.ParseDuration(y.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", y.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if y.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(y.LogLevel)
	}
	if y.LogDir != nil {
		cfg.LogDir = *y.LogDir
	}
	cfg.Backends.Disabled = append(cfg.Backends.Disabled, y.Backends.Disabled...)
	for name, prio := range y.Backends.Priority {
		cfg.Backends.Priority[name] = prio
	}
	if y.History != nil {
		if y.History.Enabled != nil {
			cfg.History.Enabled = *y.History.Enabled
		}
		if y.History.DBPath != nil {
			cfg.History.DBPath = *y.History.DBPath
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads .dupescan/config.yaml below dir.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".dupescan", "config.yaml"))
}

// ParseSize parses a byte count such as "1024", "1KiB" or "2 MB".
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "max") || strings.EqualFold(s, "unlimited") {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size %s is too large", s)
	}
	return int64(n), nil
}

// Flags carries CLI overrides. Nil fields leave the configuration unchanged.
type Flags struct {
	MinSize       *int64
	MaxSize       *int64
	Algorithm     *string
	Concurrency   *int
	MaxDepth      *int
	IncludeHidden *bool
	Include       []string
	Exclude       []string
	Timeout       *time.Duration
	LogLevel      *string
	LogDir        *string
	Disabled      []string
	Record        *bool
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values; glob and backend lists
// are appended.
func (c *Config) MergeWithFlags(f Flags) {
	if f.MinSize != nil {
		c.MinSize = *f.MinSize
	}
	if f.MaxSize != nil {
		c.MaxSize = *f.MaxSize
	}
	if f.Algorithm != nil {
		c.Algorithm = strings.ToLower(*f.Algorithm)
	}
	if f.Concurrency != nil {
		c.Concurrency = *f.Concurrency
	}
	if f.MaxDepth != nil {
		c.MaxDepth = *f.MaxDepth
	}
	if f.IncludeHidden != nil {
		c.IncludeHidden = *f.IncludeHidden
	}
	c.Include = append(c.Include, f.Include...)
	c.Exclude = append(c.Exclude, f.Exclude...)
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.LogLevel != nil {
		c.LogLevel = strings.ToLower(*f.LogLevel)
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	c.Backends.Disabled = append(c.Backends.Disabled, f.Disabled...)
	if f.Record != nil {
		c.History.Enabled = *f.Record
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.MinSize < 0 {
		return fmt.Errorf("min_size must be >= 0, got %d", c.MinSize)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("max_size must be >= 0, got %d", c.MaxSize)
	}
	if c.MaxSize > 0 && c.MaxSize < c.MinSize {
		return fmt.Errorf("max_size %d is below min_size %d", c.MaxSize, c.MinSize)
	}
	if _, err := hashing.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	for name, prio := range c.Backends.Priority {
		if prio < 0 {
			return fmt.Errorf("backends.priority.%s must be >= 0, got %d", name, prio)
		}
	}
	return nil
}

// Filters returns the enumeration filters described by the configuration.
func (c *Config) Filters() models.Filters {
	maxSize := c.MaxSize
	if maxSize == 0 {
		maxSize = math.MaxInt64
	}
	return models.Filters{
		MinSize:       c.MinSize,
		MaxSize:       maxSize,
		Include:       c.Include,
		Exclude:       c.Exclude,
		MaxDepth:      c.MaxDepth,
		IncludeHidden: c.IncludeHidden,
	}
}

// EffectiveConcurrency resolves a zero concurrency to the logical CPU count.
func (c *Config) EffectiveConcurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return runtime.NumCPU()
}
