package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dupescan/internal/models"
)

func sampleReport() *models.ScanReport {
	return &models.ScanReport{
		ScanID:         "scan-1",
		Root:           "/data",
		Algorithm:      "sha256",
		TotalScanned:   10,
		CandidateCount: 6,
		HashedCount:    6,
		DuplicateGroups: []models.DuplicateGroup{
			{
				Hash:        "aaaa",
				SizeBytes:   2048,
				Files:       []string{"/data/a", "/data/b", "/data/c"},
				Original:    "/data/a",
				Duplicates:  []string{"/data/b", "/data/c"},
				WastedBytes: 4096,
			},
			{
				Hash:        "bbbb",
				SizeBytes:   1024,
				Files:       []string{"/data/x", "/data/y"},
				Original:    "/data/x",
				Duplicates:  []string{"/data/y"},
				WastedBytes: 1024,
			},
		},
		DuplicateFileCount: 3,
		TotalWastedBytes:   5120,
		DurationMs:         42,
		BackendUsed:        map[string]string{"hash": "mmap", "enumerate": "fastwalk"},
		Completed:          true,
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatText,
		"TEXT":     FormatText,
		"json":     FormatJSON,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		" html ":   FormatHTML,
		"htm":      FormatHTML,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("out/report.JSON", FormatText))
	assert.Equal(t, FormatMarkdown, FormatForPath("r.md", FormatText))
	assert.Equal(t, FormatHTML, FormatForPath("r.html", FormatText))
	assert.Equal(t, FormatText, FormatForPath("r.txt", FormatText))
	assert.Equal(t, FormatJSON, FormatForPath("report", FormatJSON))
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatText, Options{}))
	out := buf.String()

	assert.Contains(t, out, "Duplicate scan of /data")
	assert.Contains(t, out, "Duplicate groups: 2 (3 redundant files)")
	assert.Contains(t, out, "5.0 KiB")
	assert.Contains(t, out, "enumerate=fastwalk, hash=mmap")
	assert.Contains(t, out, "keep  /data/a")
	assert.Contains(t, out, "dupe  /data/c")
	assert.NotContains(t, out, "partial")
	assert.NotContains(t, out, "\x1b[")
	assert.Less(t, strings.Index(out, "/data/a"), strings.Index(out, "/data/x"))
}

func TestRenderTextColor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatText, Options{Color: true}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestRenderTextStatsOnlyAndPartial(t *testing.T) {
	r := sampleReport()
	r.Completed = false

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, FormatText, Options{StatsOnly: true}))
	out := buf.String()
	assert.Contains(t, out, "results are partial")
	assert.NotContains(t, out, "keep")
}

func TestRenderTextMaxGroups(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatText, Options{MaxGroups: 1}))
	out := buf.String()
	assert.Contains(t, out, "/data/a")
	assert.NotContains(t, out, "/data/x")
	assert.Contains(t, out, "1 more groups not shown")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatJSON, Options{}))

	var decoded models.ScanReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *sampleReport(), decoded)
}

func TestRenderJSONStatsOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatJSON, Options{StatsOnly: true}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotContains(t, decoded, "duplicate_groups")
	assert.EqualValues(t, 2, decoded["duplicate_group_count"])
	assert.EqualValues(t, 5120, decoded["total_wasted_bytes"])
}

func TestRenderJSONMaxGroupsLeavesReportIntact(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, FormatJSON, Options{MaxGroups: 1}))

	var decoded models.ScanReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.DuplicateGroups, 1)
	assert.Len(t, r.DuplicateGroups, 2)
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport(), Options{})
	assert.True(t, strings.HasPrefix(md, "# Duplicate scan of `/data`"))
	assert.Contains(t, md, "| Duplicate groups | 2 |")
	assert.Contains(t, md, "## Group 1: 4.0 KiB wasted")
	assert.Contains(t, md, "- **original** `/data/a`")
	assert.Contains(t, md, "- `/data/y`")

	stats := Markdown(sampleReport(), Options{StatsOnly: true})
	assert.NotContains(t, stats, "## Group")
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatHTML, Options{}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h2>Group 1: 4.0 KiB wasted</h2>")
	assert.Contains(t, out, "<code>/data/a</code>")
	assert.True(t, strings.HasSuffix(out, "</body></html>\n"))
}

func TestRenderErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, nil, FormatText, Options{}))
	assert.Error(t, Render(&buf, sampleReport(), Format("yaml"), Options{}))
}

func TestReportWarnings(t *testing.T) {
	assert.Empty(t, ReportWarnings(sampleReport()))
	assert.Empty(t, ReportWarnings(nil))

	r := sampleReport()
	r.Completed = false
	r.SkippedCount = 3
	r.HashErrorCount = 1

	warnings := ReportWarnings(r)
	require.Len(t, warnings, 2)
	assert.Equal(t, "Scan stopped early", warnings[0].Title)
	assert.Equal(t, "3 entries skipped", warnings[1].Title)
	assert.Contains(t, warnings[1].Message, "2 directories or files could not be listed and 1 files could not be hashed")
}

func TestWarningDisplay(t *testing.T) {
	w := Warning{Title: "Something odd", Message: "details", Suggestion: "fix it"}

	var plain bytes.Buffer
	w.Display(&plain, false)
	assert.Equal(t, "Warning: Something odd\n    details\n    Suggestion: fix it\n", plain.String())

	var colored bytes.Buffer
	w.Display(&colored, true)
	assert.Contains(t, colored.String(), "\x1b[33m")

	var bare bytes.Buffer
	Warning{Title: "Only title"}.Display(&bare, false)
	assert.Equal(t, "Warning: Only title\n", bare.String())
}
