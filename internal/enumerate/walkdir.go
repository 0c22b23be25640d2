package enumerate

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/harrison/dupescan/internal/models"
)

// WalkDirBackend is the portable fallback tier built on filepath.WalkDir.
type WalkDirBackend struct{}

// NewWalkDirBackend creates the fallback enumeration backend.
func NewWalkDirBackend() *WalkDirBackend {
	return &WalkDirBackend{}
}

func (b *WalkDirBackend) Name() string             { return "walkdir" }
func (b *WalkDirBackend) Kind() models.BackendKind { return models.KindFallback }
func (b *WalkDirBackend) Priority() int            { return 100 }

// Probe always succeeds; the standard library walker is available everywhere.
func (b *WalkDirBackend) Probe(ctx context.Context) error {
	return nil
}

// Invoke walks the tree sequentially.
func (b *WalkDirBackend) Invoke(ctx context.Context, req Request) (Listing, error) {
	m := req.Matcher
	root := m.Root()
	var out Listing

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			out.Skipped++
			return nil // Continue walking
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			rel, _ := m.Rel(path)
			if m.PruneDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			out.Skipped++
			return nil
		}
		out.Candidates = append(out.Candidates, models.FileCandidate{Path: path, SizeBytes: info.Size()})
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	return out, nil
}
