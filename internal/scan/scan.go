// Package scan runs the duplicate detection pipeline: enumerate, bucket by
// size, hash, group, and aggregate into a report.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/dupescan/internal/bucket"
	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/enumerate"
	"github.com/harrison/dupescan/internal/grouper"
	"github.com/harrison/dupescan/internal/hasher"
	"github.com/harrison/dupescan/internal/hashing"
	"github.com/harrison/dupescan/internal/models"
	"github.com/harrison/dupescan/internal/report"
)

// Options configures one scan.
type Options struct {
	Root        string
	Filters     models.Filters
	Algorithm   hashing.Algorithm
	Concurrency int
	// DisablePrefilter hashes every candidate instead of only those sharing
	// a size with another candidate. The resulting groups are identical.
	DisablePrefilter bool
}

// DefaultOptions returns the defaults for scanning root.
func DefaultOptions(root string) Options {
	return Options{
		Root:      root,
		Filters:   models.DefaultFilters(),
		Algorithm: hashing.DefaultAlgorithm,
	}
}

// Validate checks option values.
func (o Options) Validate() error {
	if o.Root == "" {
		return fmt.Errorf("scan root is required")
	}
	if !o.Algorithm.Valid() {
		return fmt.Errorf("unsupported hash algorithm: %s", o.Algorithm)
	}
	if o.Filters.MinSize < 0 {
		return fmt.Errorf("min size must be >= 0, got %d", o.Filters.MinSize)
	}
	if o.Filters.MaxSize < 0 {
		return fmt.Errorf("max size must be >= 0, got %d", o.Filters.MaxSize)
	}
	if o.Filters.MaxSize > 0 && o.Filters.MaxSize < o.Filters.MinSize {
		return fmt.Errorf("max size %d is below min size %d", o.Filters.MaxSize, o.Filters.MinSize)
	}
	if o.Filters.MaxDepth < 0 {
		return fmt.Errorf("max depth must be >= 0, got %d", o.Filters.MaxDepth)
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", o.Concurrency)
	}
	return nil
}

// Scanner runs scans. A Scanner may be reused but must not run two scans at
// once, because backend observations are reset per scan.
type Scanner struct {
	enumerator *enumerate.Enumerator
	hashes     *hashing.Service
	sink       ProgressSink
}

// New creates a Scanner from its collaborators. A nil sink discards events.
// When sink also implements dispatch.Observer it receives tier failures.
func New(enumerator *enumerate.Enumerator, hashes *hashing.Service, sink ProgressSink) *Scanner {
	if sink == nil {
		sink = nopSink{}
	}
	if obs, ok := sink.(dispatch.Observer); ok {
		enumerator.Dispatcher().SetObserver(obs)
		hashes.Dispatcher().SetObserver(obs)
	}
	return &Scanner{enumerator: enumerator, hashes: hashes, sink: sink}
}

// NewDefault creates a Scanner with the default backends registered in
// registry.
func NewDefault(registry *capability.Registry, sink ProgressSink) *Scanner {
	return New(enumerate.New(registry), hashing.NewService(registry), sink)
}

// Enumerator returns the scanner's enumerator.
func (s *Scanner) Enumerator() *enumerate.Enumerator {
	return s.enumerator
}

// Hashes returns the scanner's hashing service.
func (s *Scanner) Hashes() *hashing.Service {
	return s.hashes
}

// Scan runs the pipeline. Per-file failures are counted in the report and
// never abort the scan. The only errors are invalid options, an unusable
// root, and dispatch exhaustion (matching dispatch.ErrAllTiersFailed).
// Cancelling ctx returns a partial report with Completed false: whatever was
// hashed before cancellation, or an empty report if enumeration was cut short.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*models.ScanReport, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = hashing.DefaultAlgorithm
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	s.enumerator.Dispatcher().ResetStats()
	s.hashes.Dispatcher().ResetStats()

	s.sink.Phase(PhaseEnumerating, 0)
	listing, err := s.enumerator.Enumerate(ctx, opts.Root, opts.Filters)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return s.interrupted(opts, started), nil
		}
		return nil, fmt.Errorf("enumerate %s: %w", opts.Root, err)
	}
	candidates := listing.Candidates

	s.sink.Phase(PhaseBucketing, len(candidates))
	toHash := candidates
	if !opts.DisablePrefilter {
		toHash = bucket.Flatten(bucket.FilterSingletons(bucket.Bucket(candidates)))
	}

	backends := map[string]string{
		models.OperationEnumerate: s.enumerator.Dispatcher().LastBackend(),
	}

	hashed := hasher.Result{Completed: true}
	if len(toHash) > 0 {
		if err := s.hashes.Ready(ctx); err != nil {
			return nil, fmt.Errorf("hash: %w", err)
		}
		s.sink.Phase(PhaseHashing, len(toHash))

		h := hasher.New(s.hashes, opts.Concurrency)
		if p, ok := s.sink.(ProgressReporter); ok {
			h.OnProgress(p.Progress)
		}
		hashed = h.HashAll(ctx, toHash, opts.Algorithm)
		if primary := s.hashes.Dispatcher().Primary(); primary != "" {
			backends[models.OperationHash] = primary
		}
	}
	failed := hashed.Failed()

	s.sink.Phase(PhaseGrouping, len(hashed.Results)-failed)
	g := &grouper.Grouper{}
	if w, ok := s.sink.(warner); ok {
		g.Diagnostics = w.LogWarn
	}
	groups := g.Group(hashed.Results)

	result := report.Aggregate(groups, report.Stats{
		ScanID:         uuid.NewString(),
		Root:           rootPath(opts.Root),
		Algorithm:      string(opts.Algorithm),
		StartedAt:      started,
		Duration:       time.Since(started),
		TotalScanned:   listing.Visited,
		CandidateCount: len(candidates),
		HashedCount:    len(hashed.Results),
		SkippedEntries: listing.Skipped,
		HashErrors:     failed,
		BackendUsed:    backends,
		Completed:      hashed.Completed,
	})
	s.sink.Phase(PhaseComplete, len(result.DuplicateGroups))
	return result, nil
}

// interrupted builds the report for a scan cancelled before enumeration
// finished: no groups, no counts, Completed false.
func (s *Scanner) interrupted(opts Options, started time.Time) *models.ScanReport {
	result := report.Aggregate(nil, report.Stats{
		ScanID:    uuid.NewString(),
		Root:      rootPath(opts.Root),
		Algorithm: string(opts.Algorithm),
		StartedAt: started,
		Duration:  time.Since(started),
	})
	s.sink.Phase(PhaseComplete, 0)
	return result
}

func rootPath(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}
