// Package logger provides logging implementations for dupescan.
//
// Loggers receive pipeline phase transitions, per-file hashing progress,
// backend tier failures and the final scan summary. Implementations are
// thread-safe and support console and file destinations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/dupescan/internal/models"
	"github.com/harrison/dupescan/internal/scan"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// progressSteps is how many progress lines a hashing phase emits at info level.
const progressSteps = 10

// ConsoleLogger logs scan progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled when writing to a terminal.
type ConsoleLogger struct {
	writer       io.Writer
	logLevel     string
	mutex        sync.Mutex
	colorOutput  bool
	lastProgress int
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive ANSI colors.
// NO_COLOR disables color through fatih/color.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if _, ok := levelValues[normalized]; ok {
		return normalized
	}
	return "info"
}

var levelValues = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	_, ok := levelValues[level]
	return ok
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	if v, ok := levelValues[level]; ok {
		return v
	}
	return levelInfo
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel writes "[HH:MM:SS] [LEVEL] message" if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := level
	if cl.colorOutput {
		label = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), label, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// Phase logs a pipeline phase transition at INFO level.
// Format: "[HH:MM:SS] Hashing: 42 files"
func (cl *ConsoleLogger) Phase(phase scan.Phase, count int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if phase == scan.PhaseHashing {
		cl.lastProgress = 0
	}
	name := phaseTitle(phase)
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	fmt.Fprintf(cl.writer, "[%s] %s%s\n", timestamp(), name, phaseDetail(phase, count))
}

// Progress logs hashing progress at INFO level each time another tenth of
// the files is done. Every file is logged at TRACE level.
func (cl *ConsoleLogger) Progress(done, total int) {
	if cl.writer == nil || total <= 0 {
		return
	}
	if cl.shouldLog("trace") {
		cl.LogTrace(fmt.Sprintf("hashed %d/%d", done, total))
	}
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	step := done * progressSteps / total
	if step <= cl.lastProgress {
		return
	}
	cl.lastProgress = step

	pb := NewProgressBar(total, 20, cl.colorOutput)
	pb.Update(done)
	fmt.Fprintf(cl.writer, "[%s] Hashing %s\n", timestamp(), pb.Render())
}

// LogTierFailure logs a backend failure that a lower tier will retry, at WARN level.
func (cl *ConsoleLogger) LogTierFailure(operation, backend string, err error) {
	cl.LogWarn(fmt.Sprintf("%s backend %s failed, falling back: %v", operation, backend, err))
}

// LogSummary logs the scan summary at INFO level.
func (cl *ConsoleLogger) LogSummary(report *models.ScanReport) {
	if cl.writer == nil || report == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	header := "=== Scan Summary ==="
	groups := fmt.Sprintf("Duplicate groups: %d (%d redundant files)", len(report.DuplicateGroups), report.DuplicateFileCount)
	wasted := fmt.Sprintf("Wasted space: %s", humanize.IBytes(uint64(report.TotalWastedBytes)))
	skipped := fmt.Sprintf("Skipped: %d", report.SkippedCount)
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
		if report.TotalWastedBytes > 0 {
			wasted = color.New(color.FgYellow).Sprint(wasted)
		} else {
			wasted = color.New(color.FgGreen).Sprint(wasted)
		}
		if report.SkippedCount > 0 {
			skipped = color.New(color.FgRed).Sprint(skipped)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)
	fmt.Fprintf(&sb, "[%s] Files scanned: %s\n", ts, humanize.Comma(int64(report.TotalScanned)))
	fmt.Fprintf(&sb, "[%s] Candidates: %s (hashed %s)\n", ts, humanize.Comma(int64(report.CandidateCount)), humanize.Comma(int64(report.HashedCount)))
	fmt.Fprintf(&sb, "[%s] %s\n", ts, groups)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, wasted)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, skipped)
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(time.Duration(report.DurationMs)*time.Millisecond))
	if !report.Completed {
		fmt.Fprintf(&sb, "[%s] Scan stopped early; results are partial\n", ts)
	}
	io.WriteString(cl.writer, sb.String())
}

func phaseTitle(phase scan.Phase) string {
	s := string(phase)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func phaseDetail(phase scan.Phase, count int) string {
	switch phase {
	case scan.PhaseEnumerating:
		return ""
	case scan.PhaseBucketing:
		return fmt.Sprintf(": %d candidates", count)
	case scan.PhaseHashing:
		return fmt.Sprintf(": %d files", count)
	case scan.PhaseGrouping:
		return fmt.Sprintf(": %d digests", count)
	case scan.PhaseComplete:
		return fmt.Sprintf(": %d duplicate groups", count)
	default:
		return fmt.Sprintf(": %d", count)
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Sub-second durations are shown in milliseconds.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
