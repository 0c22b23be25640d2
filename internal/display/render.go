package display

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/harrison/dupescan/internal/models"
)

// Format selects a report rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name or a common alias ("md", "htm").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, markdown or html)", s)
	}
}

// FormatForPath guesses a format from an output file extension, falling
// back to def.
func FormatForPath(path string, def Format) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return FormatMarkdown
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return FormatHTML
	}
	return def
}

// Options tunes rendering.
type Options struct {
	// StatsOnly omits the per-group listing.
	StatsOnly bool
	// MaxGroups truncates the group listing (0 = all).
	MaxGroups int
	// Color enables ANSI colors in the text format.
	Color bool
}

// Render writes report to w in the requested format.
func Render(w io.Writer, report *models.ScanReport, format Format, opts Options) error {
	if report == nil {
		return fmt.Errorf("no report to render")
	}
	switch format {
	case FormatText:
		return renderText(w, report, opts)
	case FormatJSON:
		return renderJSON(w, report, opts)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(report, opts))
		return err
	case FormatHTML:
		return renderHTML(w, report, opts)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Summary is the stats-only view of a report.
type Summary struct {
	Root               string            `json:"root"`
	Algorithm          string            `json:"algorithm"`
	TotalScanned       int               `json:"total_scanned"`
	CandidateCount     int               `json:"candidate_count"`
	HashedCount        int               `json:"hashed_count"`
	SkippedCount       int               `json:"skipped_count"`
	DuplicateGroups    int               `json:"duplicate_group_count"`
	DuplicateFileCount int               `json:"duplicate_files"`
	TotalWastedBytes   int64             `json:"total_wasted_bytes"`
	DurationMs         int64             `json:"duration_ms"`
	BackendUsed        map[string]string `json:"backend_used"`
	Completed          bool              `json:"completed"`
}

// Summarize extracts the stats-only view.
func Summarize(r *models.ScanReport) Summary {
	return Summary{
		Root:               r.Root,
		Algorithm:          r.Algorithm,
		TotalScanned:       r.TotalScanned,
		CandidateCount:     r.CandidateCount,
		HashedCount:        r.HashedCount,
		SkippedCount:       r.SkippedCount,
		DuplicateGroups:    len(r.DuplicateGroups),
		DuplicateFileCount: r.DuplicateFileCount,
		TotalWastedBytes:   r.TotalWastedBytes,
		DurationMs:         r.DurationMs,
		BackendUsed:        r.BackendUsed,
		Completed:          r.Completed,
	}
}

func renderJSON(w io.Writer, r *models.ScanReport, opts Options) error {
	var v any = r
	if opts.StatsOnly {
		v = Summarize(r)
	} else if opts.MaxGroups > 0 && len(r.DuplicateGroups) > opts.MaxGroups {
		trimmed := *r
		trimmed.DuplicateGroups = r.DuplicateGroups[:opts.MaxGroups]
		v = &trimmed
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func visibleGroups(r *models.ScanReport, opts Options) ([]models.DuplicateGroup, int) {
	groups := r.DuplicateGroups
	if opts.MaxGroups > 0 && len(groups) > opts.MaxGroups {
		return groups[:opts.MaxGroups], len(groups) - opts.MaxGroups
	}
	return groups, 0
}

// backendList renders "enumerate=fastwalk, hash=mmap" in operation order.
func backendList(used map[string]string) string {
	if len(used) == 0 {
		return "none"
	}
	ops := make([]string, 0, len(used))
	for op := range used {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op + "=" + used[op]
	}
	return strings.Join(parts, ", ")
}
