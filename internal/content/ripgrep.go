package content

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/dupescan/internal/models"
)

// ripgrepBatch bounds the number of files passed to one rg invocation.
const ripgrepBatch = 256

// RipgrepBackend is the external tier: rg --json over the requested files.
type RipgrepBackend struct {
	// RipgrepPath is the rg binary. Defaults to "rg" (found in PATH).
	RipgrepPath string
}

// NewRipgrepBackend creates the external content backend.
func NewRipgrepBackend(rgPath string) *RipgrepBackend {
	return &RipgrepBackend{RipgrepPath: rgPath}
}

func (b *RipgrepBackend) Name() string             { return "rg" }
func (b *RipgrepBackend) Kind() models.BackendKind { return models.KindExternal }
func (b *RipgrepBackend) Priority() int            { return 200 }

func (b *RipgrepBackend) binary() string {
	if b.RipgrepPath == "" {
		return "rg"
	}
	return b.RipgrepPath
}

// Probe checks that rg exists and identifies as ripgrep.
func (b *RipgrepBackend) Probe(ctx context.Context) error {
	path, err := exec.LookPath(b.binary())
	if err != nil {
		return fmt.Errorf("rg not found: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("rg --version failed: %w", err)
	}
	if !bytes.HasPrefix(out, []byte("ripgrep")) {
		return fmt.Errorf("%s is not ripgrep", path)
	}
	return nil
}

// Args builds the rg command line for one batch of files.
func (b *RipgrepBackend) Args(req Request, files []string) []string {
	args := []string{"--json", "--no-config", "--no-ignore", "--hidden", "--text", "--crlf", "--case-sensitive"}
	if req.ContextLines > 0 {
		args = append(args, "--context", strconv.Itoa(req.ContextLines))
	}
	args = append(args, "--regexp", req.Pattern, "--")
	return append(args, files...)
}

// Invoke runs rg over the files in batches. Exit status 1 means no match.
func (b *RipgrepBackend) Invoke(ctx context.Context, req Request) (Matches, error) {
	var out Matches
	for start := 0; start < len(req.Files); start += ripgrepBatch {
		end := min(start+ripgrepBatch, len(req.Files))

		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, b.binary(), b.Args(req, req.Files[start:end])...)
		cmd.Env = append(os.Environ(), "LC_ALL=C")
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
				return Matches{}, fmt.Errorf("rg failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
			}
		}

		found, err := DecodeRipgrepOutput(stdout.Bytes(), req.ContextLines)
		if err != nil {
			return Matches{}, err
		}
		out.Matches = append(out.Matches, found...)
	}
	return out, nil
}

// rgEvent is one line of rg --json output. Only match and context events
// are used.
type rgEvent struct {
	Type string `json:"type"`
	Data struct {
		Path       rgData `json:"path"`
		Lines      rgData `json:"lines"`
		LineNumber int    `json:"line_number"`
	} `json:"data"`
}

// rgData carries text, or base64 bytes when the text is not valid UTF-8.
type rgData struct {
	Text  *string `json:"text"`
	Bytes []byte  `json:"bytes"`
}

func (d rgData) String() string {
	if d.Text != nil {
		return *d.Text
	}
	return string(d.Bytes)
}

// rgFile collects the lines rg reported for one file.
type rgFile struct {
	lines   map[int]string
	matches []int
}

// DecodeRipgrepOutput turns rg --json events into matches with before and
// after context rebuilt from the surrounding context events.
func DecodeRipgrepOutput(data []byte, contextLines int) ([]Match, error) {
	files := make(map[string]*rgFile)
	var order []string

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev rgEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("malformed rg event: %w", err)
		}
		if ev.Type != "match" && ev.Type != "context" {
			continue
		}

		path := ev.Data.Path.String()
		if path == "" || ev.Data.LineNumber < 1 {
			return nil, fmt.Errorf("rg %s event without path or line number", ev.Type)
		}
		f, ok := files[path]
		if !ok {
			f = &rgFile{lines: make(map[int]string)}
			files[path] = f
			order = append(order, path)
		}
		f.lines[ev.Data.LineNumber] = trimEOL(ev.Data.Lines.String())
		if ev.Type == "match" {
			f.matches = append(f.matches, ev.Data.LineNumber)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rg output: %w", err)
	}

	var out []Match
	for _, path := range order {
		f := files[path]
		for _, n := range f.matches {
			m := Match{Path: path, LineNumber: n, Line: f.lines[n]}
			for i := max(1, n-contextLines); i < n; i++ {
				if line, ok := f.lines[i]; ok {
					m.Before = append(m.Before, line)
				}
			}
			for i := n + 1; i <= n+contextLines; i++ {
				line, ok := f.lines[i]
				if !ok {
					break
				}
				m.After = append(m.After, line)
			}
			out = append(out, m)
		}
	}
	return out, nil
}
