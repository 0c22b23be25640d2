package content

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/dupescan/internal/models"
)

// RegexpBackend is the native tier: files are searched in parallel with
// Go's regexp engine.
type RegexpBackend struct {
	concurrency int
}

// NewRegexpBackend creates the native content backend. A concurrency below 1
// uses the logical CPU count.
func NewRegexpBackend(concurrency int) *RegexpBackend {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}
	return &RegexpBackend{concurrency: concurrency}
}

func (b *RegexpBackend) Name() string                    { return "regexp" }
func (b *RegexpBackend) Kind() models.BackendKind        { return models.KindNative }
func (b *RegexpBackend) Priority() int                   { return 300 }
func (b *RegexpBackend) Probe(ctx context.Context) error { return nil }

// Invoke searches every file, at most concurrency at a time. Files that
// cannot be read are skipped.
func (b *RegexpBackend) Invoke(ctx context.Context, req Request) (Matches, error) {
	re, err := regexp.Compile(req.Pattern)
	if err != nil {
		return Matches{}, fmt.Errorf("invalid pattern: %w", err)
	}

	perFile := make([][]Match, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, path := range req.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := searchFile(path, re, req.ContextLines)
			if err != nil {
				return nil
			}
			perFile[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Matches{}, err
	}

	var out Matches
	for _, found := range perFile {
		out.Matches = append(out.Matches, found...)
	}
	return out, nil
}

// SerialBackend is the fallback tier: one file at a time.
type SerialBackend struct{}

// NewSerialBackend creates the fallback content backend.
func NewSerialBackend() *SerialBackend {
	return &SerialBackend{}
}

func (b *SerialBackend) Name() string                    { return "serial" }
func (b *SerialBackend) Kind() models.BackendKind        { return models.KindFallback }
func (b *SerialBackend) Priority() int                   { return 100 }
func (b *SerialBackend) Probe(ctx context.Context) error { return nil }

// Invoke searches the files in order. Files that cannot be read are skipped.
func (b *SerialBackend) Invoke(ctx context.Context, req Request) (Matches, error) {
	re, err := regexp.Compile(req.Pattern)
	if err != nil {
		return Matches{}, fmt.Errorf("invalid pattern: %w", err)
	}

	var out Matches
	for _, path := range req.Files {
		if err := ctx.Err(); err != nil {
			return Matches{}, err
		}
		found, err := searchFile(path, re, req.ContextLines)
		if err != nil {
			continue
		}
		out.Matches = append(out.Matches, found...)
	}
	return out, nil
}

// searchFile streams path line by line. Only the last contextLines lines are
// kept for before-context; after-context is filled as later lines arrive.
func searchFile(path string, re *regexp.Regexp, contextLines int) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	var (
		matches []Match
		before  []string
		pending []int
		lineNo  int
	)
	for {
		line, readErr := r.ReadString('\n')
		if line != "" {
			lineNo++
			line = trimEOL(line)

			open := pending[:0]
			for _, i := range pending {
				matches[i].After = append(matches[i].After, line)
				if len(matches[i].After) < contextLines {
					open = append(open, i)
				}
			}
			pending = open

			if re.MatchString(line) {
				m := Match{Path: path, LineNumber: lineNo, Line: line}
				if contextLines > 0 {
					m.Before = append([]string(nil), before...)
					pending = append(pending, len(matches))
				}
				matches = append(matches, m)
			}

			if contextLines > 0 {
				before = append(before, line)
				if len(before) > contextLines {
					before = before[1:]
				}
			}
		}
		if readErr == io.EOF {
			return matches, nil
		}
		if readErr != nil {
			return nil, readErr
		}
	}
}

// trimEOL drops a trailing "\n" or "\r\n".
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
