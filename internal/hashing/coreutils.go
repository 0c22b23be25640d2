package hashing

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/harrison/dupescan/internal/models"
)

// CoreutilsBackend is the external tier: sha256sum, sha1sum and md5sum.
type CoreutilsBackend struct {
	// Dir holds the tools. Empty means look them up in PATH.
	Dir string
}

// NewCoreutilsBackend creates the external hashing backend.
func NewCoreutilsBackend(dir string) *CoreutilsBackend {
	return &CoreutilsBackend{Dir: dir}
}

func (b *CoreutilsBackend) Name() string             { return "coreutils" }
func (b *CoreutilsBackend) Kind() models.BackendKind { return models.KindExternal }
func (b *CoreutilsBackend) Priority() int            { return 200 }

func (b *CoreutilsBackend) tool(a Algorithm) (string, error) {
	name := a.Tool()
	if b.Dir != "" {
		name = filepath.Join(b.Dir, name)
	}
	return exec.LookPath(name)
}

// Probe requires every supported *sum tool.
func (b *CoreutilsBackend) Probe(ctx context.Context) error {
	var missing []string
	for _, a := range Algorithms() {
		if _, err := b.tool(a); err != nil {
			missing = append(missing, a.Tool())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Invoke runs the tool for req.Algorithm on the file.
func (b *CoreutilsBackend) Invoke(ctx context.Context, req Request) (Digest, error) {
	// Unreadable files are reported the same way by every tier.
	f, err := openChecked(req.Path)
	if err != nil {
		return Digest{}, err
	}
	f.Close()

	tool, err := b.tool(req.Algorithm)
	if err != nil {
		return Digest{}, fmt.Errorf("%s not found: %w", req.Algorithm.Tool(), err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, "-b", "--", req.Path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Digest{}, fmt.Errorf("%s failed: %w (stderr: %s)", filepath.Base(tool), err, strings.TrimSpace(stderr.String()))
	}

	hex, err := ParseSumOutput(stdout.String())
	if err != nil {
		return Digest{}, err
	}
	return Digest{Hex: hex}, nil
}

// ParseSumOutput extracts the digest from one line of *sum output
// ("<hex> *<path>"). Lines for names containing a backslash or newline are
// prefixed with a backslash, which is stripped.
func ParseSumOutput(out string) (string, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimPrefix(line, `\`)
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected sum output %q", out)
	}
	return fields[0], nil
}
