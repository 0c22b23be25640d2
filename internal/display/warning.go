package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/dupescan/internal/models"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string // Main warning title
	Message    string // Detailed explanation (optional)
	Suggestion string // Action to take (optional)
}

// Display writes the warning, in yellow when colored is set.
func (w Warning) Display(out io.Writer, colored bool) {
	var b strings.Builder
	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")
	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}
	if w.Suggestion != "" {
		b.WriteString("    Suggestion: ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	text := b.String()
	if colored {
		c := color.New(color.FgYellow)
		c.EnableColor()
		text = c.Sprint(text)
	}
	io.WriteString(out, text)
}

// ReportWarnings lists the conditions in a report that the user should know
// about: a partial scan and files that could not be read.
func ReportWarnings(r *models.ScanReport) []Warning {
	var out []Warning
	if r == nil {
		return out
	}
	if !r.Completed {
		out = append(out, Warning{
			Title:      "Scan stopped early",
			Message:    fmt.Sprintf("Only %d of the eligible files were hashed; duplicate groups may be incomplete.", r.HashedCount),
			Suggestion: "Increase --timeout or rerun the scan",
		})
	}
	if r.SkippedCount > 0 {
		unreadable := r.SkippedCount - r.HashErrorCount
		out = append(out, Warning{
			Title:      fmt.Sprintf("%d entries skipped", r.SkippedCount),
			Message:    fmt.Sprintf("%d directories or files could not be listed and %d files could not be hashed.", unreadable, r.HashErrorCount),
			Suggestion: "Check permissions, or run with --log-level debug for details",
		})
	}
	return out
}
