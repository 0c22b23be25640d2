// Package hasher digests many files in parallel with a hard bound on the
// number of hash operations in flight.
package hasher

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/harrison/dupescan/internal/hashing"
	"github.com/harrison/dupescan/internal/models"
)

// Digester hashes a single file.
type Digester interface {
	Digest(ctx context.Context, path string, algorithm hashing.Algorithm) (string, error)
}

// ProgressFunc is called from a single goroutine after each file completes.
type ProgressFunc func(done, total int)

// errEmptyDigest is recorded when a digester returns neither a hash nor an error.
var errEmptyDigest = errors.New("digester returned an empty hash")

// Result is the outcome of HashAll.
type Result struct {
	// Results holds one entry per scheduled candidate, in completion order.
	Results []models.HashResult
	// Completed is false when cancellation stopped scheduling early.
	Completed bool
}

// Failed counts results without a digest.
func (r Result) Failed() int {
	n := 0
	for _, hr := range r.Results {
		if !hr.OK() {
			n++
		}
	}
	return n
}

// Hasher runs a Digester over many candidates with bounded concurrency.
type Hasher struct {
	digester    Digester
	concurrency int
	progress    ProgressFunc
}

// New creates a Hasher. A concurrency below 1 uses the logical CPU count.
func New(d Digester, concurrency int) *Hasher {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}
	return &Hasher{digester: d, concurrency: concurrency}
}

// Concurrency returns the maximum number of simultaneous hash operations.
func (h *Hasher) Concurrency() int {
	return h.concurrency
}

// OnProgress installs a progress callback.
func (h *Hasher) OnProgress(fn ProgressFunc) {
	h.progress = fn
}

// HashAll digests every candidate and blocks until all scheduled work is done.
// A failure on one file is recorded on its HashResult and never stops the
// batch. When ctx is cancelled no further files are started, files already
// in flight run to completion, and Completed is false.
func (h *Hasher) HashAll(ctx context.Context, candidates []models.FileCandidate, algorithm hashing.Algorithm) Result {
	sem := semaphore.NewWeighted(int64(h.concurrency))
	results := make(chan models.HashResult, h.concurrency)

	var collected []models.HashResult
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		total := len(candidates)
		for r := range results {
			collected = append(collected, r)
			if h.progress != nil {
				h.progress(len(collected), total)
			}
		}
	}()

	// In-flight digests must not observe cancellation.
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	scheduled := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		scheduled++
		wg.Add(1)
		go func(c models.FileCandidate) {
			defer wg.Done()
			defer sem.Release(1)
			results <- h.hashOne(workCtx, c, algorithm)
		}(c)
	}

	wg.Wait()
	close(results)
	<-collectorDone

	return Result{
		Results:   collected,
		Completed: scheduled == len(candidates),
	}
}

// hashOne digests one candidate, converting a panic into a per-file error.
func (h *Hasher) hashOne(ctx context.Context, c models.FileCandidate, algorithm hashing.Algorithm) (res models.HashResult) {
	res = models.HashResult{Path: c.Path, SizeBytes: c.SizeBytes}
	defer func() {
		if rec := recover(); rec != nil {
			res.Hash = ""
			res.Err = fmt.Errorf("hashing %s panicked: %v", c.Path, rec)
		}
	}()

	sum, err := h.digester.Digest(ctx, c.Path, algorithm)
	switch {
	case err != nil:
		res.Err = err
	case sum == "":
		res.Err = fmt.Errorf("%s: %w", c.Path, errEmptyDigest)
	default:
		res.Hash = sum
	}
	return res
}
