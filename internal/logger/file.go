package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/harrison/dupescan/internal/models"
	"github.com/harrison/dupescan/internal/scan"
)

// DefaultLogDir is where run logs are written when no directory is configured.
var DefaultLogDir = filepath.Join(".dupescan", "logs")

// FileLogger logs scan events to a timestamped run log and keeps a
// latest.log symlink pointing at it. The full report of each scan is
// written next to the run log as JSON. It is thread-safe.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in DefaultLogDir at info level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(DefaultLogDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger writing to logDir.
// It creates the directory, opens run-YYYYMMDD-HHMMSS.log and updates the
// latest.log symlink.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== dupescan Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// Phase logs a pipeline phase transition at INFO level.
func (fl *FileLogger) Phase(phase scan.Phase, count int) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] phase=%s count=%d\n", timestamp(), phase, count))
}

// LogTierFailure records a backend failure at WARN level.
func (fl *FileLogger) LogTierFailure(operation, backend string, err error) {
	fl.LogWarn(fmt.Sprintf("tier failure: operation=%s backend=%s error=%v", operation, backend, err))
}

// LogSummary writes the summary to the run log and the full report to
// scan-<id>.json in the log directory.
func (fl *FileLogger) LogSummary(report *models.ScanReport) {
	if report == nil {
		return
	}

	if fl.shouldLog("info") {
		status := "COMPLETE"
		if !report.Completed {
			status = "PARTIAL"
		}
		ts := timestamp()
		fl.writeRunLog(fmt.Sprintf(
			"\n[%s] === SCAN SUMMARY ===\n"+
				"[%s] Scan ID:       %s\n"+
				"[%s] Root:          %s\n"+
				"[%s] Scanned:       %d\n"+
				"[%s] Candidates:    %d\n"+
				"[%s] Hashed:        %d\n"+
				"[%s] Groups:        %d\n"+
				"[%s] Wasted:        %s\n"+
				"[%s] Skipped:       %d\n"+
				"[%s] Backends:      %s\n"+
				"[%s] Status:        %s\n",
			ts,
			ts, report.ScanID,
			ts, report.Root,
			ts, report.TotalScanned,
			ts, report.CandidateCount,
			ts, report.HashedCount,
			ts, len(report.DuplicateGroups),
			ts, humanize.IBytes(uint64(report.TotalWastedBytes)),
			ts, report.SkippedCount,
			ts, formatBackends(report.BackendUsed),
			ts, status,
		))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fl.LogError(fmt.Sprintf("failed to encode report: %v", err))
		return
	}
	path := filepath.Join(fl.logDir, fmt.Sprintf("scan-%s.json", report.ScanID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		fl.LogError(fmt.Sprintf("failed to write report: %v", err))
	}
}

func formatBackends(used map[string]string) string {
	if len(used) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(used))
	for _, op := range []string{models.OperationEnumerate, models.OperationHash} {
		if name, ok := used[op]; ok {
			parts = append(parts, op+"="+name)
		}
	}
	return strings.Join(parts, " ")
}

// writeRunLog appends to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(message)
	}
}

// Close closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}
