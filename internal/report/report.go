// Package report assembles the final scan report from duplicate groups and
// the statistics gathered by each pipeline phase.
package report

import (
	"sort"
	"time"

	"github.com/harrison/dupescan/internal/models"
)

// Stats carries the per-phase counters that feed a ScanReport.
type Stats struct {
	ScanID    string
	Root      string
	Algorithm string
	StartedAt time.Time
	Duration  time.Duration

	TotalScanned   int
	CandidateCount int
	HashedCount    int
	// SkippedEntries counts entries the enumerator could not read.
	SkippedEntries int
	HashErrors     int

	BackendUsed map[string]string
	Completed   bool
}

// Aggregate sorts groups by wasted bytes descending, then hash ascending,
// and fills in the totals. It does not modify its inputs.
func Aggregate(groups []models.DuplicateGroup, stats Stats) *models.ScanReport {
	sorted := make([]models.DuplicateGroup, len(groups))
	copy(sorted, groups)
	SortGroups(sorted)

	var wasted int64
	dupFiles := 0
	for _, g := range sorted {
		wasted += g.WastedBytes
		dupFiles += len(g.Duplicates)
	}

	backends := make(map[string]string, len(stats.BackendUsed))
	for op, name := range stats.BackendUsed {
		backends[op] = name
	}

	return &models.ScanReport{
		ScanID:             stats.ScanID,
		Root:               stats.Root,
		Algorithm:          stats.Algorithm,
		StartedAt:          stats.StartedAt,
		TotalScanned:       stats.TotalScanned,
		CandidateCount:     stats.CandidateCount,
		HashedCount:        stats.HashedCount,
		SkippedCount:       stats.SkippedEntries + stats.HashErrors,
		HashErrorCount:     stats.HashErrors,
		DuplicateGroups:    sorted,
		DuplicateFileCount: dupFiles,
		TotalWastedBytes:   wasted,
		DurationMs:         stats.Duration.Milliseconds(),
		BackendUsed:        backends,
		Completed:          stats.Completed,
	}
}

// SortGroups orders groups by WastedBytes descending, then Hash ascending,
// then SizeBytes ascending.
func SortGroups(groups []models.DuplicateGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.WastedBytes != b.WastedBytes {
			return a.WastedBytes > b.WastedBytes
		}
		if a.Hash != b.Hash {
			return a.Hash < b.Hash
		}
		return a.SizeBytes < b.SizeBytes
	})
}
