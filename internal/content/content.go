// Package content searches file contents for a regular expression through a
// tiered set of backends: a parallel in-process matcher, ripgrep, and a
// serial line scanner. Files are listed by the enumerate dispatcher and
// binary files are dropped before any backend sees them.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/enumerate"
	"github.com/harrison/dupescan/internal/models"
)

// binarySample is how much of a file is inspected for NUL bytes.
const binarySample = 8192

// TextExtensions are searched when no file pattern is given.
var TextExtensions = []string{
	"txt", "log", "md", "json", "xml", "yaml", "yml",
	"toml", "ini", "cfg", "conf", "config",
	"ps1", "psm1", "psd1", "bat", "cmd", "sh", "bash",
	"py", "rs", "js", "ts", "jsx", "tsx", "cs", "cpp",
	"c", "h", "hpp", "java", "go", "rb", "php",
	"html", "htm", "css", "scss", "sass", "less",
	"sql", "graphql", "proto",
}

// Request asks a backend to search Files for Pattern.
type Request struct {
	Pattern      string
	Files        []string
	ContextLines int
}

// Match is one matching line.
type Match struct {
	Path       string   `json:"path"`
	LineNumber int      `json:"line_number"`
	Line       string   `json:"line"`
	Before     []string `json:"before,omitempty"`
	After      []string `json:"after,omitempty"`
}

// Matches is the canonical backend response.
type Matches struct {
	Matches []Match
}

// Options configures a content search.
type Options struct {
	Pattern string
	// FilePattern limits the searched files (default: TextExtensions).
	FilePattern string
	// MaxResults truncates the match list (0 = unlimited).
	MaxResults    int
	ContextLines  int
	MaxDepth      int
	IncludeHidden bool
}

// Result is the outcome of Search. FilesMatched and TotalMatches cover
// every match even when Matches is truncated.
type Result struct {
	Pattern      string  `json:"pattern"`
	FilePattern  string  `json:"file_pattern,omitempty"`
	FilesScanned int     `json:"files_scanned"`
	BinaryFiles  int     `json:"binary_files"`
	FilesMatched int     `json:"files_matched"`
	TotalMatches int     `json:"total_matches"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	Matches      []Match `json:"matches"`
	Truncated    bool    `json:"truncated"`
	Backend      string  `json:"backend"`
}

// Searcher runs content searches through the content dispatcher.
type Searcher struct {
	enumerator *enumerate.Enumerator
	dispatcher *dispatch.Dispatcher[Request, Matches]
}

// DefaultBackends returns the standard content search tiers.
func DefaultBackends(concurrency int) []dispatch.Backend[Request, Matches] {
	return []dispatch.Backend[Request, Matches]{
		NewRegexpBackend(concurrency),
		NewRipgrepBackend(""),
		NewSerialBackend(),
	}
}

// New creates a Searcher whose backends are registered in registry. Files
// are listed with enumerator. With no backends, DefaultBackends(0) is used.
func New(registry *capability.Registry, enumerator *enumerate.Enumerator, backends ...dispatch.Backend[Request, Matches]) *Searcher {
	if len(backends) == 0 {
		backends = DefaultBackends(0)
	}
	return &Searcher{
		enumerator: enumerator,
		dispatcher: dispatch.New(models.OperationContent, registry, Normalize, backends...),
	}
}

// Dispatcher exposes the underlying dispatcher for observability.
func (s *Searcher) Dispatcher() *dispatch.Dispatcher[Request, Matches] {
	return s.dispatcher
}

// Validate checks search options and compiles the pattern.
func (o Options) Validate() (*regexp.Regexp, error) {
	if strings.TrimSpace(o.Pattern) == "" {
		return nil, fmt.Errorf("search pattern is required")
	}
	re, err := regexp.Compile(o.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if o.MaxResults < 0 {
		return nil, fmt.Errorf("max results must be >= 0, got %d", o.MaxResults)
	}
	if o.ContextLines < 0 {
		return nil, fmt.Errorf("context lines must be >= 0, got %d", o.ContextLines)
	}
	if o.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", o.MaxDepth)
	}
	return re, nil
}

// Search lists the text files below root and reports the lines matching
// opts.Pattern, ordered by path then line number.
func (s *Searcher) Search(ctx context.Context, root string, opts Options) (*Result, error) {
	if _, err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	include := "*.{" + strings.Join(TextExtensions, ",") + "}"
	if opts.FilePattern != "" {
		include = opts.FilePattern
	}
	listing, err := s.enumerator.Enumerate(ctx, root, models.Filters{
		Include:       []string{include},
		MaxDepth:      opts.MaxDepth,
		IncludeHidden: opts.IncludeHidden,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Pattern:     opts.Pattern,
		FilePattern: opts.FilePattern,
		Matches:     []Match{},
	}
	files := make([]string, 0, len(listing.Candidates))
	for _, c := range listing.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsBinary(c.Path) {
			result.BinaryFiles++
			continue
		}
		files = append(files, c.Path)
	}
	result.FilesScanned = len(files)

	if len(files) > 0 {
		found, err := s.dispatcher.Execute(ctx, Request{
			Pattern:      opts.Pattern,
			Files:        files,
			ContextLines: opts.ContextLines,
		})
		if err != nil {
			return nil, err
		}
		result.Matches = found.Matches
		result.Backend = s.dispatcher.LastBackend()
	}

	result.TotalMatches = len(result.Matches)
	result.FilesMatched = countFiles(result.Matches)
	if opts.MaxResults > 0 && len(result.Matches) > opts.MaxResults {
		result.Matches = result.Matches[:opts.MaxResults]
		result.Truncated = true
	}
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}

// Normalize checks a backend response against the request and orders it by
// path then line number, dropping repeated lines.
func Normalize(req Request, raw Matches) (Matches, error) {
	requested := make(map[string]struct{}, len(req.Files))
	for _, f := range req.Files {
		requested[f] = struct{}{}
	}

	out := make([]Match, 0, len(raw.Matches))
	for _, m := range raw.Matches {
		if _, ok := requested[m.Path]; !ok {
			return Matches{}, fmt.Errorf("match in unrequested file %s", m.Path)
		}
		if m.LineNumber < 1 {
			return Matches{}, fmt.Errorf("invalid line number %d in %s", m.LineNumber, m.Path)
		}
		if len(m.Before) > req.ContextLines || len(m.After) > req.ContextLines {
			return Matches{}, fmt.Errorf("%s:%d carries more than %d context lines", m.Path, m.LineNumber, req.ContextLines)
		}
		if len(m.Before) == 0 {
			m.Before = nil
		}
		if len(m.After) == 0 {
			m.After = nil
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	deduped := out[:0]
	for _, m := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Path == m.Path && deduped[n-1].LineNumber == m.LineNumber {
			continue
		}
		deduped = append(deduped, m)
	}
	return Matches{Matches: deduped}, nil
}

// IsBinary reports whether the first 8 KiB of the file contain a NUL byte.
// Unreadable files count as binary.
func IsBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, binarySample)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

func countFiles(matches []Match) int {
	n := 0
	for i, m := range matches {
		if i == 0 || m.Path != matches[i-1].Path {
			n++
		}
	}
	return n
}
