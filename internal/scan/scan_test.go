package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/enumerate"
	"github.com/harrison/dupescan/internal/hashing"
	"github.com/harrison/dupescan/internal/models"
)

type recordingSink struct {
	mu       sync.Mutex
	phases   []Phase
	counts   map[Phase]int
	progress int
	failures []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counts: make(map[Phase]int)}
}

func (r *recordingSink) Phase(p Phase, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
	r.counts[p] = count
}

func (r *recordingSink) Progress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = done
}

func (r *recordingSink) LogTierFailure(operation, backend string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, operation+"/"+backend)
}

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// basicTree builds A and B (500 bytes of X), C (500 bytes of Y) and D (10 bytes).
func basicTree(t *testing.T) string {
	root := t.TempDir()
	write(t, root, "A", strings.Repeat("X", 500))
	write(t, root, "B", strings.Repeat("X", 500))
	write(t, root, "C", strings.Repeat("Y", 500))
	write(t, root, "D", strings.Repeat("Z", 10))
	return root
}

// richTree has several groups of different sizes plus same-size decoys.
func richTree(t *testing.T) string {
	root := t.TempDir()
	for _, rel := range []string{"one/a.bin", "two/a.bin", "three/a.bin"} {
		write(t, root, rel, strings.Repeat("a", 2048))
	}
	write(t, root, "decoy.bin", strings.Repeat("b", 2048))
	write(t, root, "photos/x.jpg", strings.Repeat("p", 4096))
	write(t, root, "backup/x.jpg", strings.Repeat("p", 4096))
	write(t, root, "unique.txt", strings.Repeat("u", 3000))
	write(t, root, "small1", "tiny")
	write(t, root, "small2", "tiny")
	return root
}

func options(root string, minSize int64) Options {
	opts := DefaultOptions(root)
	opts.Filters.MinSize = minSize
	opts.Concurrency = 4
	return opts
}

func TestScanBasicDuplicateSet(t *testing.T) {
	root := basicTree(t)
	sink := newRecordingSink()
	s := NewDefault(capability.NewRegistry(), sink)

	r, err := s.Scan(context.Background(), options(root, 100))
	require.NoError(t, err)

	assert.Equal(t, 4, r.TotalScanned)
	assert.Equal(t, 3, r.CandidateCount)
	assert.Equal(t, 3, r.HashedCount)
	require.Len(t, r.DuplicateGroups, 1)

	g := r.DuplicateGroups[0]
	assert.Equal(t, int64(500), g.SizeBytes)
	assert.Equal(t, []string{filepath.Join(r.Root, "A"), filepath.Join(r.Root, "B")}, g.Files)
	assert.Equal(t, filepath.Join(r.Root, "A"), g.Original)
	assert.Equal(t, int64(500), g.WastedBytes)
	assert.Len(t, g.Hash, 64)

	assert.Equal(t, int64(500), r.TotalWastedBytes)
	assert.Equal(t, 1, r.DuplicateFileCount)
	assert.Zero(t, r.SkippedCount)
	assert.True(t, r.Completed)
	assert.Equal(t, "sha256", r.Algorithm)
	assert.NotEmpty(t, r.ScanID)
	assert.NotEmpty(t, r.BackendUsed[models.OperationEnumerate])
	assert.NotEmpty(t, r.BackendUsed[models.OperationHash])

	assert.Equal(t, []Phase{PhaseEnumerating, PhaseBucketing, PhaseHashing, PhaseGrouping, PhaseComplete}, sink.phases)
	assert.Equal(t, 3, sink.counts[PhaseHashing])
	assert.Equal(t, 3, sink.progress)
}

func TestScanEmptyDirectory(t *testing.T) {
	s := NewDefault(capability.NewRegistry(), nil)
	r, err := s.Scan(context.Background(), DefaultOptions(t.TempDir()))
	require.NoError(t, err)
	assert.Zero(t, r.CandidateCount)
	assert.Empty(t, r.DuplicateGroups)
	assert.Zero(t, r.SkippedCount)
	assert.True(t, r.Completed)
	assert.NotContains(t, r.BackendUsed, models.OperationHash)
}

func TestScanGroupingInvariants(t *testing.T) {
	root := richTree(t)
	r, err := NewDefault(capability.NewRegistry(), nil).Scan(context.Background(), options(root, 1024))
	require.NoError(t, err)

	require.Len(t, r.DuplicateGroups, 2)
	for _, g := range r.DuplicateGroups {
		require.GreaterOrEqual(t, len(g.Files), 2)
		assert.Equal(t, g.SizeBytes*int64(len(g.Files)-1), g.WastedBytes)
		assert.Equal(t, g.Files[0], g.Original)
		for _, f := range g.Files {
			info, err := os.Stat(f)
			require.NoError(t, err)
			assert.Equal(t, g.SizeBytes, info.Size())
			// Same-size decoy with different content never joins.
			assert.NotEqual(t, "decoy.bin", filepath.Base(f))
		}
	}
	// Both groups waste 4096 bytes, so hash order decides.
	assert.Equal(t, int64(4096), r.DuplicateGroups[0].WastedBytes)
	assert.Equal(t, int64(4096), r.DuplicateGroups[1].WastedBytes)
	assert.Less(t, r.DuplicateGroups[0].Hash, r.DuplicateGroups[1].Hash)
	assert.Equal(t, int64(8192), r.TotalWastedBytes)
}

func TestScanPrefilterEquivalence(t *testing.T) {
	root := richTree(t)
	s := NewDefault(capability.NewRegistry(), nil)

	with, err := s.Scan(context.Background(), options(root, 0))
	require.NoError(t, err)

	opts := options(root, 0)
	opts.DisablePrefilter = true
	without, err := s.Scan(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, with.DuplicateGroups, without.DuplicateGroups)
	assert.Less(t, with.HashedCount, without.HashedCount)
	assert.Equal(t, without.CandidateCount, without.HashedCount)
}

func TestScanOriginalStableAcrossRuns(t *testing.T) {
	root := richTree(t)
	s := NewDefault(capability.NewRegistry(), nil)

	first, err := s.Scan(context.Background(), options(root, 0))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := s.Scan(context.Background(), options(root, 0))
		require.NoError(t, err)
		assert.Equal(t, first.DuplicateGroups, again.DuplicateGroups)
	}
}

func TestScanAlgorithms(t *testing.T) {
	root := basicTree(t)
	s := NewDefault(capability.NewRegistry(), nil)
	for _, alg := range hashing.Algorithms() {
		opts := options(root, 100)
		opts.Algorithm = alg
		r, err := s.Scan(context.Background(), opts)
		require.NoError(t, err, alg)
		require.Len(t, r.DuplicateGroups, 1, alg)
		assert.Len(t, r.DuplicateGroups[0].Hash, alg.HexLen())
	}
}

func TestScanFallbackTransparency(t *testing.T) {
	root := richTree(t)

	full := NewDefault(capability.NewRegistry(), nil)
	want, err := full.Scan(context.Background(), options(root, 0))
	require.NoError(t, err)

	reg := capability.NewRegistry()
	degraded := NewDefault(reg, nil)
	reg.Disable("fastwalk")
	reg.Disable("find")
	reg.Disable("mmap")
	reg.Disable("coreutils")
	got, err := degraded.Scan(context.Background(), options(root, 0))
	require.NoError(t, err)

	assert.Equal(t, want.DuplicateGroups, got.DuplicateGroups)
	assert.Equal(t, "walkdir", got.BackendUsed[models.OperationEnumerate])
	assert.Equal(t, "stream", got.BackendUsed[models.OperationHash])
}

// ghostBackend lists the real tree plus a file that does not exist, as if
// it vanished between enumeration and hashing.
type ghostBackend struct {
	*enumerate.WalkDirBackend
	ghost models.FileCandidate
}

func (g *ghostBackend) Invoke(ctx context.Context, req enumerate.Request) (enumerate.Listing, error) {
	l, err := g.WalkDirBackend.Invoke(ctx, req)
	if err != nil {
		return l, err
	}
	l.Candidates = append(l.Candidates, g.ghost)
	return l, nil
}

func TestScanVanishedFileIsSkipped(t *testing.T) {
	root := basicTree(t)
	reg := capability.NewRegistry()
	ghost := &ghostBackend{
		WalkDirBackend: enumerate.NewWalkDirBackend(),
		ghost:          models.FileCandidate{Path: filepath.Join(root, "vanished"), SizeBytes: 500},
	}
	s := New(enumerate.New(reg, ghost), hashing.NewService(reg), nil)

	r, err := s.Scan(context.Background(), options(root, 100))
	require.NoError(t, err)
	assert.Equal(t, 4, r.CandidateCount)
	assert.Equal(t, 1, r.HashErrorCount)
	assert.Equal(t, 1, r.SkippedCount)
	require.Len(t, r.DuplicateGroups, 1)
	assert.Len(t, r.DuplicateGroups[0].Files, 2)
}

func TestScanPermissionErrorBeforeHashing(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := basicTree(t)
	extra := write(t, root, "E", strings.Repeat("X", 500))
	require.NoError(t, os.Chmod(extra, 0))
	t.Cleanup(func() { os.Chmod(extra, 0644) })

	r, err := NewDefault(capability.NewRegistry(), nil).Scan(context.Background(), options(root, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, r.HashErrorCount)
	assert.Greater(t, r.SkippedCount, 0)
	require.Len(t, r.DuplicateGroups, 1)
	assert.Equal(t, []string{filepath.Join(r.Root, "A"), filepath.Join(r.Root, "B")}, r.DuplicateGroups[0].Files)
}

func TestScanTotalEnumerationFailure(t *testing.T) {
	reg := capability.NewRegistry()
	s := NewDefault(reg, nil)
	for _, b := range enumerate.DefaultBackends() {
		reg.Disable(b.Name())
	}

	r, err := s.Scan(context.Background(), DefaultOptions(basicTree(t)))
	require.Error(t, err)
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, dispatch.ErrAllTiersFailed))

	var all *dispatch.AllTiersFailedError
	require.True(t, errors.As(err, &all))
	assert.Equal(t, models.OperationEnumerate, all.Operation)
	assert.Len(t, all.Tiers, 3)
}

func TestScanTotalHashFailure(t *testing.T) {
	reg := capability.NewRegistry()
	s := NewDefault(reg, nil)
	for _, b := range hashing.DefaultBackends() {
		reg.Disable(b.Name())
	}

	_, err := s.Scan(context.Background(), options(basicTree(t), 100))
	assert.ErrorIs(t, err, dispatch.ErrAllTiersFailed)
}

func TestScanReportsTierFailures(t *testing.T) {
	root := basicTree(t)
	reg := capability.NewRegistry()
	sink := newRecordingSink()
	failing := &failingBackend{WalkDirBackend: enumerate.NewWalkDirBackend()}
	s := New(enumerate.New(reg, failing, enumerate.NewWalkDirBackend()), hashing.NewService(reg), sink)

	r, err := s.Scan(context.Background(), options(root, 100))
	require.NoError(t, err)
	assert.Len(t, r.DuplicateGroups, 1)
	assert.Equal(t, "walkdir", r.BackendUsed[models.OperationEnumerate])
	assert.Equal(t, []string{"enumerate/broken"}, sink.failures)
}

type failingBackend struct {
	*enumerate.WalkDirBackend
}

func (f *failingBackend) Name() string             { return "broken" }
func (f *failingBackend) Kind() models.BackendKind { return models.KindNative }
func (f *failingBackend) Priority() int            { return 500 }

func (f *failingBackend) Invoke(ctx context.Context, req enumerate.Request) (enumerate.Listing, error) {
	return enumerate.Listing{}, errors.New("exit status 2")
}

func TestScanCancelledBeforeEnumeration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := basicTree(t)

	r, err := NewDefault(capability.NewRegistry(), nil).Scan(ctx, options(root, 100))
	require.NoError(t, err)
	assert.False(t, r.Completed)
	assert.Empty(t, r.DuplicateGroups)
	assert.NotNil(t, r.DuplicateGroups)
	assert.Zero(t, r.TotalScanned)
	assert.NotEmpty(t, r.ScanID)
}

func TestScanTimeoutDuringEnumeration(t *testing.T) {
	reg := capability.NewRegistry()
	sink := newRecordingSink()
	slow := &blockingBackend{WalkDirBackend: enumerate.NewWalkDirBackend()}
	s := New(enumerate.New(reg, slow, enumerate.NewWalkDirBackend()), hashing.NewService(reg), sink)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r, err := s.Scan(ctx, options(basicTree(t), 100))
	require.NoError(t, err)
	assert.False(t, r.Completed)
	assert.Empty(t, r.DuplicateGroups)
	assert.Empty(t, sink.failures, "an interrupted tier is not a tier failure")
	assert.Equal(t, PhaseComplete, sink.phases[len(sink.phases)-1])
}

func TestScanCancellationDoesNotPoisonCapabilityCache(t *testing.T) {
	reg := capability.NewRegistry()
	s := NewDefault(reg, nil)
	root := basicTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx, options(root, 100))
	require.NoError(t, err)

	for _, d := range reg.Probe(context.Background(), models.OperationEnumerate) {
		if d.Name == "walkdir" || d.Name == "fastwalk" {
			assert.True(t, d.Available, d.Name)
		}
	}

	r, err := s.Scan(context.Background(), options(root, 100))
	require.NoError(t, err)
	assert.True(t, r.Completed)
	assert.Len(t, r.DuplicateGroups, 1)
}

// blockingBackend outranks every real tier and waits for cancellation.
type blockingBackend struct {
	*enumerate.WalkDirBackend
}

func (b *blockingBackend) Name() string             { return "blocking" }
func (b *blockingBackend) Kind() models.BackendKind { return models.KindNative }
func (b *blockingBackend) Priority() int            { return 500 }

func (b *blockingBackend) Invoke(ctx context.Context, req enumerate.Request) (enumerate.Listing, error) {
	<-ctx.Done()
	return enumerate.Listing{}, ctx.Err()
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty root", func(o *Options) { o.Root = "" }},
		{"bad algorithm", func(o *Options) { o.Algorithm = "crc" }},
		{"negative min", func(o *Options) { o.Filters.MinSize = -1 }},
		{"max below min", func(o *Options) { o.Filters.MinSize = 10; o.Filters.MaxSize = 5 }},
		{"negative depth", func(o *Options) { o.Filters.MaxDepth = -1 }},
		{"negative concurrency", func(o *Options) { o.Concurrency = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions("/tmp")
			tt.mutate(&opts)
			assert.Error(t, opts.Validate())
		})
	}
	assert.NoError(t, DefaultOptions("/tmp").Validate())
}
