// Package display renders scan reports and user-facing warnings.
//
// Rendering is kept out of the scan pipeline: a ScanReport is a plain value
// and every format here is derived from it.
//
// # Formats
//
//   - text: aligned, human-readable listing for terminals
//   - json: the report as indented JSON
//   - markdown: a summary table followed by one section per group
//   - html: the markdown rendering converted with goldmark
//
// With Options.StatsOnly only the summary is produced.
//
// # Warnings
//
// ReportWarnings derives warnings from a report (partial scans, unreadable
// files). Warning.Display prints them in yellow when color is enabled:
//
//	for _, w := range display.ReportWarnings(report) {
//	    w.Display(os.Stderr, colorEnabled)
//	}
package display
