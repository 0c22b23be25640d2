// Package enumerate lists the regular files below a root directory through a
// tiered set of walkers: a parallel native walker, GNU find, and a portable
// filepath.WalkDir fallback. Every tier produces the same Listing.
package enumerate

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/fileutil"
	"github.com/harrison/dupescan/internal/models"
)

// Request asks a backend to list every regular file below Matcher.Root().
// Backends should prune directories with Matcher.PruneDir; filtering by size
// and glob happens during normalization.
type Request struct {
	Matcher *fileutil.Matcher
}

// Listing is the canonical enumeration response.
type Listing struct {
	// Candidates are the files that passed every filter, sorted by path.
	Candidates []models.FileCandidate
	// Visited counts regular files seen after hidden and depth pruning.
	Visited int
	// Skipped counts directories or files that could not be read.
	Skipped int
}

// All returns the candidates as a sequence. The sequence can be iterated
// any number of times.
func (l *Listing) All() iter.Seq[models.FileCandidate] {
	return func(yield func(models.FileCandidate) bool) {
		for _, c := range l.Candidates {
			if !yield(c) {
				return
			}
		}
	}
}

// Enumerator lists files through the enumerate dispatcher.
type Enumerator struct {
	dispatcher *dispatch.Dispatcher[Request, Listing]
}

// DefaultBackends returns the standard enumeration tiers.
func DefaultBackends() []dispatch.Backend[Request, Listing] {
	return []dispatch.Backend[Request, Listing]{
		NewFastwalkBackend(0),
		NewFindBackend(""),
		NewWalkDirBackend(),
	}
}

// New creates an Enumerator whose backends are registered in registry.
// With no backends, DefaultBackends is used.
func New(registry *capability.Registry, backends ...dispatch.Backend[Request, Listing]) *Enumerator {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	return &Enumerator{
		dispatcher: dispatch.New(models.OperationEnumerate, registry, Normalize, backends...),
	}
}

// Dispatcher exposes the underlying dispatcher for observability.
func (e *Enumerator) Dispatcher() *dispatch.Dispatcher[Request, Listing] {
	return e.dispatcher
}

// Enumerate lists the candidates below root that pass filters. A missing or
// non-directory root is reported directly; backend failures cascade through
// the tiers and surface only as dispatch.AllTiersFailedError.
func (e *Enumerator) Enumerate(ctx context.Context, root string, filters models.Filters) (*Listing, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	matcher, err := fileutil.NewMatcher(root, filters)
	if err != nil {
		return nil, err
	}

	listing, err := e.dispatcher.Execute(ctx, Request{Matcher: matcher})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Normalize turns a backend's raw file list into the canonical Listing:
// paths are cleaned and made absolute, hidden and depth rules are re-applied,
// duplicates are dropped and filters applied, then candidates are sorted.
func Normalize(req Request, raw Listing) (Listing, error) {
	m := req.Matcher
	if m == nil {
		return Listing{}, fmt.Errorf("request has no matcher")
	}
	if raw.Skipped < 0 {
		return Listing{}, fmt.Errorf("negative skipped count %d", raw.Skipped)
	}

	seen := make(map[string]struct{}, len(raw.Candidates))
	out := Listing{
		Candidates: make([]models.FileCandidate, 0, len(raw.Candidates)),
		Skipped:    raw.Skipped,
	}

	for _, c := range raw.Candidates {
		if c.SizeBytes < 0 {
			return Listing{}, fmt.Errorf("negative size for %s", c.Path)
		}
		rel, ok := m.Rel(c.Path)
		if !ok {
			return Listing{}, fmt.Errorf("path %s is outside root %s", c.Path, m.Root())
		}
		if !m.Traversable(rel) {
			continue
		}
		abs := filepath.Join(m.Root(), filepath.FromSlash(rel))
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out.Visited++

		if !m.Accept(rel, c.SizeBytes) {
			continue
		}
		out.Candidates = append(out.Candidates, models.FileCandidate{Path: abs, SizeBytes: c.SizeBytes})
	}

	sort.Slice(out.Candidates, func(i, j int) bool {
		return out.Candidates[i].Path < out.Candidates[j].Path
	})
	return out, nil
}
