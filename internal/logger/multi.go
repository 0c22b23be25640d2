package logger

import (
	"github.com/harrison/dupescan/internal/models"
	"github.com/harrison/dupescan/internal/scan"
)

// Logger is implemented by every logger in this package.
type Logger interface {
	scan.ProgressSink
	LogTierFailure(operation, backend string, err error)
	LogSummary(report *models.ScanReport)
	LogWarn(message string)
}

// Multi fans every event out to several loggers.
type Multi []Logger

// Phase forwards to every logger.
func (m Multi) Phase(phase scan.Phase, count int) {
	for _, l := range m {
		l.Phase(phase, count)
	}
}

// Progress forwards to loggers that report per-file progress.
func (m Multi) Progress(done, total int) {
	for _, l := range m {
		if p, ok := l.(scan.ProgressReporter); ok {
			p.Progress(done, total)
		}
	}
}

// LogTierFailure forwards to every logger.
func (m Multi) LogTierFailure(operation, backend string, err error) {
	for _, l := range m {
		l.LogTierFailure(operation, backend, err)
	}
}

// LogSummary forwards to every logger.
func (m Multi) LogSummary(report *models.ScanReport) {
	for _, l := range m {
		l.LogSummary(report)
	}
}

// LogWarn forwards to every logger.
func (m Multi) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}
