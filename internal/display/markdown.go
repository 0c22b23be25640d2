package display

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/harrison/dupescan/internal/models"
)

// Markdown renders the report as a GitHub-flavoured markdown document.
func Markdown(r *models.ScanReport, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Duplicate scan of `%s`\n\n", r.Root)
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Files scanned | %d |\n", r.TotalScanned)
	fmt.Fprintf(&b, "| Candidates | %d |\n", r.CandidateCount)
	fmt.Fprintf(&b, "| Hashed (%s) | %d |\n", r.Algorithm, r.HashedCount)
	fmt.Fprintf(&b, "| Skipped | %d |\n", r.SkippedCount)
	fmt.Fprintf(&b, "| Duplicate groups | %d |\n", len(r.DuplicateGroups))
	fmt.Fprintf(&b, "| Redundant files | %d |\n", r.DuplicateFileCount)
	fmt.Fprintf(&b, "| Wasted space | %s |\n", humanize.IBytes(uint64(r.TotalWastedBytes)))
	fmt.Fprintf(&b, "| Backends | %s |\n", backendList(r.BackendUsed))
	fmt.Fprintf(&b, "| Duration | %d ms |\n", r.DurationMs)
	if !r.Completed {
		b.WriteString("\n> **Scan stopped early; results are partial.**\n")
	}

	if opts.StatsOnly {
		return b.String()
	}

	groups, hidden := visibleGroups(r, opts)
	for i, g := range groups {
		fmt.Fprintf(&b, "\n## Group %d: %s wasted\n\n", i+1, humanize.IBytes(uint64(g.WastedBytes)))
		fmt.Fprintf(&b, "%d files of %s, %s `%s`\n\n", len(g.Files), humanize.IBytes(uint64(g.SizeBytes)), r.Algorithm, g.Hash)
		fmt.Fprintf(&b, "- **original** `%s`\n", g.Original)
		for _, d := range g.Duplicates {
			fmt.Fprintf(&b, "- `%s`\n", d)
		}
	}
	if hidden > 0 {
		fmt.Fprintf(&b, "\n_%d more groups not shown._\n", hidden)
	}
	return b.String()
}

var markdownToHTML = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

const htmlHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>dupescan report</title>
<style>body{font-family:sans-serif;max-width:60em;margin:auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.2em .6em}code{font-size:.9em}</style>
</head><body>
`

func renderHTML(w io.Writer, r *models.ScanReport, opts Options) error {
	var body bytes.Buffer
	if err := markdownToHTML.Convert([]byte(Markdown(r, opts)), &body); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	if _, err := io.WriteString(w, htmlHead); err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body></html>\n")
	return err
}
