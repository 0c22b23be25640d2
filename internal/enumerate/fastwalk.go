package enumerate

import (
	"context"
	"io/fs"
	"runtime"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/harrison/dupescan/internal/models"
)

// FastwalkBackend is the native tier: a parallel directory walker.
type FastwalkBackend struct {
	workers int
}

// NewFastwalkBackend creates the native enumeration backend. Zero workers
// uses one per logical CPU.
func NewFastwalkBackend(workers int) *FastwalkBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &FastwalkBackend{workers: workers}
}

func (b *FastwalkBackend) Name() string             { return "fastwalk" }
func (b *FastwalkBackend) Kind() models.BackendKind { return models.KindNative }
func (b *FastwalkBackend) Priority() int            { return 300 }

// Probe always succeeds; the walker is compiled in.
func (b *FastwalkBackend) Probe(ctx context.Context) error {
	return nil
}

// Invoke walks the tree with b.workers goroutines.
func (b *FastwalkBackend) Invoke(ctx context.Context, req Request) (Listing, error) {
	m := req.Matcher
	root := m.Root()

	var (
		mu  sync.Mutex
		out Listing
	)
	skip := func() {
		mu.Lock()
		out.Skipped++
		mu.Unlock()
	}

	conf := fastwalk.Config{Follow: false, NumWorkers: b.workers}
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			skip()
			return nil
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			rel, _ := m.Rel(path)
			if m.PruneDir(rel) {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			skip()
			return nil
		}

		mu.Lock()
		out.Candidates = append(out.Candidates, models.FileCandidate{Path: path, SizeBytes: info.Size()})
		mu.Unlock()
		return nil
	}

	if err := fastwalk.Walk(&conf, root, walkFn); err != nil {
		return Listing{}, err
	}
	return out, nil
}
