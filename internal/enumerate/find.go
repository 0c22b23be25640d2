package enumerate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/dupescan/internal/models"
)

// findPrintf emits "<size>\t<path>\0" per file.
const findPrintf = `%s\t%p\0`

// FindBackend is the external tier: GNU find with -printf.
type FindBackend struct {
	// FindPath is the find binary. Defaults to "find" (found in PATH).
	FindPath string
}

// NewFindBackend creates the external enumeration backend.
func NewFindBackend(findPath string) *FindBackend {
	return &FindBackend{FindPath: findPath}
}

func (b *FindBackend) Name() string             { return "find" }
func (b *FindBackend) Kind() models.BackendKind { return models.KindExternal }
func (b *FindBackend) Priority() int            { return 200 }

func (b *FindBackend) binary() string {
	if b.FindPath == "" {
		return "find"
	}
	return b.FindPath
}

// Probe checks that find exists and is GNU findutils, which is required
// for -printf.
func (b *FindBackend) Probe(ctx context.Context) error {
	path, err := exec.LookPath(b.binary())
	if err != nil {
		return fmt.Errorf("find not found: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("find --version failed: %w", err)
	}
	if !bytes.Contains(out, []byte("GNU")) {
		return fmt.Errorf("find at %s is not GNU findutils", path)
	}
	return nil
}

// Args builds the find command line for a request.
func (b *FindBackend) Args(req Request) []string {
	m := req.Matcher
	f := m.Filters()

	args := []string{m.Root(), "-mindepth", "1"}
	if f.MaxDepth > 0 {
		args = append(args, "-maxdepth", strconv.Itoa(f.MaxDepth))
	}
	if !f.IncludeHidden {
		args = append(args, "(", "-type", "d", "-name", ".*", "-prune", ")", "-o")
	}
	args = append(args, "-type", "f", "-printf", findPrintf)
	return args
}

// command builds the find invocation. Diagnostics are forced into the C
// locale because countSkippable matches their English text.
func (b *FindBackend) command(ctx context.Context, req Request) *exec.Cmd {
	cmd := exec.CommandContext(ctx, b.binary(), b.Args(req)...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	return cmd
}

// Invoke runs find and decodes its output. Exit status 1 caused only by
// unreadable entries is a partial success; those entries count as skipped.
func (b *FindBackend) Invoke(ctx context.Context, req Request) (Listing, error) {
	var stdout, stderr bytes.Buffer
	cmd := b.command(ctx, req)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	skipped := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return Listing{}, fmt.Errorf("find failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		n, ok := countSkippable(stderr.String())
		if !ok {
			return Listing{}, fmt.Errorf("find failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		skipped = n
	}

	candidates, err := DecodeFindOutput(stdout.Bytes())
	if err != nil {
		return Listing{}, err
	}
	return Listing{Candidates: candidates, Skipped: skipped}, nil
}

// countSkippable counts stderr lines reporting unreadable or vanished
// entries. The second result is false if any other diagnostic is present.
func countSkippable(stderr string) (int, bool) {
	n := 0
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, "Permission denied") && !strings.HasSuffix(line, "No such file or directory") {
			return 0, false
		}
		n++
	}
	return n, n > 0
}

// DecodeFindOutput parses NUL-terminated "<size>\t<path>" records.
func DecodeFindOutput(data []byte) ([]models.FileCandidate, error) {
	var out []models.FileCandidate
	for len(data) > 0 {
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			return nil, fmt.Errorf("unterminated find record %q", truncate(data))
		}
		record := data[:end]
		data = data[end+1:]

		tab := bytes.IndexByte(record, '\t')
		if tab <= 0 || tab == len(record)-1 {
			return nil, fmt.Errorf("malformed find record %q", truncate(record))
		}
		size, err := strconv.ParseInt(string(record[:tab]), 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("malformed size in find record %q", truncate(record))
		}
		out = append(out, models.FileCandidate{Path: string(record[tab+1:]), SizeBytes: size})
	}
	return out, nil
}

func truncate(b []byte) string {
	const max = 80
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
