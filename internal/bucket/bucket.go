// Package bucket groups candidates by exact byte length so that files with a
// unique size are never hashed.
package bucket

import (
	"sort"

	"github.com/harrison/dupescan/internal/models"
)

// Buckets maps a size in bytes to the candidates of that size.
type Buckets map[int64][]models.FileCandidate

// Bucket groups candidates by size. Within a bucket, candidates keep their
// input order and repeated paths are dropped.
func Bucket(candidates []models.FileCandidate) Buckets {
	out := make(Buckets)
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Path]; dup {
			continue
		}
		seen[c.Path] = struct{}{}
		out[c.SizeBytes] = append(out[c.SizeBytes], c)
	}
	return out
}

// FilterSingletons returns the buckets holding at least two candidates.
func FilterSingletons(b Buckets) Buckets {
	out := make(Buckets, len(b))
	for size, members := range b {
		if len(members) >= 2 {
			out[size] = members
		}
	}
	return out
}

// Flatten returns every candidate ordered by size, then path.
func Flatten(b Buckets) []models.FileCandidate {
	sizes := make([]int64, 0, len(b))
	total := 0
	for size, members := range b {
		sizes = append(sizes, size)
		total += len(members)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	out := make([]models.FileCandidate, 0, total)
	for _, size := range sizes {
		members := make([]models.FileCandidate, len(b[size]))
		copy(members, b[size])
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		out = append(out, members...)
	}
	return out
}

// Stats summarises a bucketing pass.
type Stats struct {
	Buckets       int
	Eligible      int
	EligibleBytes int64
	Discarded     int
}

// Summarize compares the full buckets with the filtered ones.
func Summarize(all, filtered Buckets) Stats {
	var s Stats
	s.Buckets = len(filtered)
	for size, members := range filtered {
		s.Eligible += len(members)
		s.EligibleBytes += size * int64(len(members))
	}
	for _, members := range all {
		s.Discarded += len(members)
	}
	s.Discarded -= s.Eligible
	return s
}
