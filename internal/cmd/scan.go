package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/dupescan/internal/config"
	"github.com/harrison/dupescan/internal/display"
	"github.com/harrison/dupescan/internal/filelock"
	"github.com/harrison/dupescan/internal/hashing"
	"github.com/harrison/dupescan/internal/history"
	"github.com/harrison/dupescan/internal/logger"
	"github.com/harrison/dupescan/internal/models"
	"github.com/harrison/dupescan/internal/scan"
	"github.com/harrison/dupescan/internal/watch"
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Find duplicate files below a directory",
		Long: `Scan a directory tree for files with identical content.

Files are first grouped by size; only files sharing a size with another
file are hashed. Files with the same size and digest form a duplicate
group. The lexically smallest path of each group is reported as the
original, the rest as duplicates.

Configuration is loaded from .dupescan/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  dupescan scan ~/Pictures
  dupescan scan --min-size 1MiB --exclude '**/.git/**' /srv/data
  dupescan scan --format json --output report.json .
  dupescan scan --stats --algorithm sha1 /mnt/backup
  dupescan scan --disable-backend mmap --disable-backend coreutils .
  dupescan scan --watch --output dupes.html ~/Downloads`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	addConfigFlag(cmd)
	cmd.Flags().String("min-size", "", "Smallest file size to consider, e.g. 4KiB (default: 1KiB)")
	cmd.Flags().String("max-size", "", "Largest file size to consider, e.g. 2GB (default: unlimited)")
	cmd.Flags().StringArray("include", nil, "Only consider paths matching this glob (repeatable)")
	cmd.Flags().StringArray("exclude", nil, "Skip paths matching this glob (repeatable)")
	cmd.Flags().String("algorithm", "", "Hash algorithm: sha256, sha1 or md5 (default: sha256)")
	cmd.Flags().Int("concurrency", 0, "Files hashed in parallel (0 = number of CPUs)")
	cmd.Flags().Int("max-depth", 0, "Directory depth limit (0 = unlimited, 1 = root only)")
	cmd.Flags().Bool("hidden", false, "Include dot-files and descend into dot-directories")
	cmd.Flags().Bool("no-prefilter", false, "Hash every candidate instead of only files sharing a size")
	cmd.Flags().String("format", "text", "Report format: text, json, markdown or html")
	cmd.Flags().String("output", "", "Write the report to this file instead of stdout")
	cmd.Flags().Bool("stats", false, "Print only summary statistics")
	cmd.Flags().Int("max-groups", 0, "Show at most this many groups (0 = all)")
	cmd.Flags().StringArray("disable-backend", nil, "Never use this backend, e.g. mmap (repeatable)")
	cmd.Flags().Duration("timeout", 0, "Stop the scan after this long and report partial results (e.g. 10m)")
	cmd.Flags().Bool("record", false, "Append the scan to the history database")
	cmd.Flags().String("log-level", "", "Console log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Directory for run logs and JSON reports")
	cmd.Flags().Bool("watch", false, "Keep running and rescan whenever files below root change")
	cmd.Flags().Duration("watch-quiet", watch.DefaultQuietPeriod, "Idle time after the last change before rescanning")

	return cmd
}

// scanFlags collects the flags the user set explicitly.
func scanFlags(cmd *cobra.Command) (config.Flags, error) {
	var f config.Flags
	flags := cmd.Flags()

	if flags.Changed("min-size") {
		s, _ := flags.GetString("min-size")
		n, err := config.ParseSize(s)
		if err != nil {
			return f, fmt.Errorf("invalid --min-size %q: %w", s, err)
		}
		f.MinSize = &n
	}
	if flags.Changed("max-size") {
		s, _ := flags.GetString("max-size")
		n, err := config.ParseSize(s)
		if err != nil {
			return f, fmt.Errorf("invalid --max-size %q: %w", s, err)
		}
		f.MaxSize = &n
	}
	if flags.Changed("algorithm") {
		s, _ := flags.GetString("algorithm")
		f.Algorithm = &s
	}
	if flags.Changed("concurrency") {
		n, _ := flags.GetInt("concurrency")
		f.Concurrency = &n
	}
	if flags.Changed("max-depth") {
		n, _ := flags.GetInt("max-depth")
		f.MaxDepth = &n
	}
	if flags.Changed("hidden") {
		b, _ := flags.GetBool("hidden")
		f.IncludeHidden = &b
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		f.Timeout = &d
	}
	if flags.Changed("log-level") {
		s, _ := flags.GetString("log-level")
		f.LogLevel = &s
	}
	if flags.Changed("log-dir") {
		s, _ := flags.GetString("log-dir")
		f.LogDir = &s
	}
	if flags.Changed("record") {
		b, _ := flags.GetBool("record")
		f.Record = &b
	}
	f.Include, _ = flags.GetStringArray("include")
	f.Exclude, _ = flags.GetStringArray("exclude")
	f.Disabled, _ = flags.GetStringArray("disable-backend")
	return f, nil
}

// reportFormat resolves --format, inferring it from the --output extension
// when --format was not given.
func reportFormat(cmd *cobra.Command) (display.Format, error) {
	name, _ := cmd.Flags().GetString("format")
	format, err := display.ParseFormat(name)
	if err != nil {
		return "", err
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "" && !cmd.Flags().Changed("format") {
		format = display.FormatForPath(output, format)
	}
	return format, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags, err := scanFlags(cmd)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format, err := reportFormat(cmd)
	if err != nil {
		return err
	}
	statsOnly, _ := cmd.Flags().GetBool("stats")
	maxGroups, _ := cmd.Flags().GetInt("max-groups")
	noPrefilter, _ := cmd.Flags().GetBool("no-prefilter")
	output, _ := cmd.Flags().GetString("output")

	stderr := cmd.ErrOrStderr()
	consoleLog := logger.NewConsoleLogger(stderr, cfg.LogLevel)
	loggers := logger.Multi{consoleLog}

	var fileLog *logger.FileLogger
	if cfg.LogDir != "" {
		fileLog, err = logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		loggers = append(loggers, fileLog)
	}

	algorithm, _ := hashing.ParseAlgorithm(cfg.Algorithm)
	opts := scan.Options{
		Root:             args[0],
		Filters:          cfg.Filters(),
		Algorithm:        algorithm,
		Concurrency:      cfg.EffectiveConcurrency(),
		DisablePrefilter: noPrefilter,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &scanRun{
		cmd:        cmd,
		cfg:        cfg,
		scanner:    scan.NewDefault(configuredRegistry(cfg), loggers),
		opts:       opts,
		format:     format,
		renderOpts: display.Options{StatsOnly: statsOnly, MaxGroups: maxGroups},
		output:     output,
		consoleLog: consoleLog,
		fileLog:    fileLog,
	}
	watchMode, _ := cmd.Flags().GetBool("watch")
	if !watchMode {
		return run.once(ctx)
	}

	quiet, _ := cmd.Flags().GetDuration("watch-quiet")
	w, err := watch.New(opts.Root, opts.Filters, quiet)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.Root, err)
	}
	defer w.Close()
	if output != "" {
		dir, base := filepath.Split(output)
		w.Ignore(output, filepath.Join(dir, "."+base+".tmp-"))
	}
	w.Ignore(cfg.LogDir)
	if err := run.once(ctx); err != nil {
		return err
	}
	return run.watch(ctx, w)
}

// scanRun holds everything needed to repeat a scan and publish its report.
type scanRun struct {
	cmd        *cobra.Command
	cfg        *config.Config
	scanner    *scan.Scanner
	opts       scan.Options
	format     display.Format
	renderOpts display.Options
	output     string
	consoleLog *logger.ConsoleLogger
	fileLog    *logger.FileLogger
}

// once runs one scan, bounded by the configured timeout, then renders,
// exports and records the report.
func (r *scanRun) once(ctx context.Context) error {
	scanCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	report, err := r.scanner.Scan(scanCtx, r.opts)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return r.publish(context.WithoutCancel(ctx), report)
}

func (r *scanRun) publish(ctx context.Context, report *models.ScanReport) error {
	stderr := r.cmd.ErrOrStderr()
	if r.fileLog != nil {
		r.fileLog.LogSummary(report)
	}
	if r.output != "" {
		r.consoleLog.LogSummary(report)
	}
	for _, w := range display.ReportWarnings(report) {
		w.Display(stderr, colorEnabled(stderr))
	}

	if r.output != "" {
		err := filelock.Export(ctx, r.output, func(w io.Writer) error {
			return display.Render(w, report, r.format, r.renderOpts)
		})
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(stderr, "Report written to %s\n", r.output)
	} else {
		stdout := r.cmd.OutOrStdout()
		opts := r.renderOpts
		opts.Color = r.format == display.FormatText && colorEnabled(stdout)
		if err := display.Render(stdout, report, r.format, opts); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	}

	if r.cfg.History.Enabled {
		if err := recordScan(ctx, r.cfg, report); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to record scan history: %v\n", err)
		}
	}
	return nil
}

// watch rescans whenever the tree changes, until ctx is cancelled. A failed
// rescan is logged and watching continues.
func (r *scanRun) watch(ctx context.Context, w *watch.Watcher) error {
	w.OnError(func(err error) {
		r.consoleLog.LogWarn(fmt.Sprintf("watch error: %v", err))
	})

	r.consoleLog.LogInfo(fmt.Sprintf("Watching %d directories for changes (Ctrl-C to stop)", len(w.WatchList())))
	err := w.Run(ctx, func(ctx context.Context, changed []string) {
		r.consoleLog.LogInfo(fmt.Sprintf("%d paths changed, rescanning", len(changed)))
		if err := r.once(ctx); err != nil {
			r.consoleLog.LogError(err.Error())
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func recordScan(ctx context.Context, cfg *config.Config, report *models.ScanReport) error {
	path, err := cfg.HistoryPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, report)
}
