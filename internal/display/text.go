package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/harrison/dupescan/internal/models"
)

func renderText(w io.Writer, r *models.ScanReport, opts Options) error {
	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.FgHiBlack)
	paint := func(c *color.Color, s string) string {
		if opts.Color {
			c.EnableColor()
			return c.Sprint(s)
		}
		return s
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", paint(bold, "Duplicate scan of"), r.Root)
	fmt.Fprintf(&b, "  Files scanned:    %s\n", humanize.Comma(int64(r.TotalScanned)))
	fmt.Fprintf(&b, "  Candidates:       %s\n", humanize.Comma(int64(r.CandidateCount)))
	fmt.Fprintf(&b, "  Hashed (%s):   %s\n", r.Algorithm, humanize.Comma(int64(r.HashedCount)))
	fmt.Fprintf(&b, "  Skipped:          %s\n", humanize.Comma(int64(r.SkippedCount)))
	fmt.Fprintf(&b, "  Duplicate groups: %d (%d redundant files)\n", len(r.DuplicateGroups), r.DuplicateFileCount)
	fmt.Fprintf(&b, "  Wasted space:     %s\n", paint(yellow, humanize.IBytes(uint64(r.TotalWastedBytes))))
	fmt.Fprintf(&b, "  Backends:         %s\n", backendList(r.BackendUsed))
	fmt.Fprintf(&b, "  Duration:         %dms\n", r.DurationMs)
	if !r.Completed {
		fmt.Fprintf(&b, "  %s\n", paint(yellow, "Scan stopped early; results are partial"))
	}

	if !opts.StatsOnly {
		groups, hidden := visibleGroups(r, opts)
		for i, g := range groups {
			fmt.Fprintf(&b, "\n%s %s x %d files, %s wasted\n",
				paint(bold, fmt.Sprintf("[%d]", i+1)),
				humanize.IBytes(uint64(g.SizeBytes)),
				len(g.Files),
				paint(yellow, humanize.IBytes(uint64(g.WastedBytes))))
			fmt.Fprintf(&b, "    %s\n", paint(dim, r.Algorithm+":"+g.Hash))
			fmt.Fprintf(&b, "    keep  %s\n", g.Original)
			for _, d := range g.Duplicates {
				fmt.Fprintf(&b, "    dupe  %s\n", d)
			}
		}
		if hidden > 0 {
			fmt.Fprintf(&b, "\n... %d more groups not shown\n", hidden)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
