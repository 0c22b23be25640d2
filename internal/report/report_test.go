package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dupescan/internal/models"
)

func group(hash string, size int64, files ...string) models.DuplicateGroup {
	return models.DuplicateGroup{
		Hash:        hash,
		SizeBytes:   size,
		Files:       files,
		Original:    files[0],
		Duplicates:  files[1:],
		WastedBytes: size * int64(len(files)-1),
	}
}

func TestAggregateOrdering(t *testing.T) {
	groups := []models.DuplicateGroup{
		group("bbb", 100, "/a", "/b"),
		group("aaa", 100, "/c", "/d"),
		group("ccc", 50, "/e", "/f", "/g", "/h"),
		group("ddd", 10, "/i", "/j"),
	}
	r := Aggregate(groups, Stats{})

	var hashes []string
	for _, g := range r.DuplicateGroups {
		hashes = append(hashes, g.Hash)
	}
	assert.Equal(t, []string{"ccc", "aaa", "bbb", "ddd"}, hashes)
	assert.Equal(t, int64(150+100+100+10), r.TotalWastedBytes)
	assert.Equal(t, 6, r.DuplicateFileCount)

	// Input is left as it was.
	assert.Equal(t, "bbb", groups[0].Hash)
}

func TestAggregateOrderIndependentOfInput(t *testing.T) {
	a := []models.DuplicateGroup{group("x", 10, "/1", "/2"), group("y", 10, "/3", "/4"), group("x", 5, "/5", "/6", "/7")}
	b := []models.DuplicateGroup{a[2], a[1], a[0]}
	assert.Equal(t, Aggregate(a, Stats{}).DuplicateGroups, Aggregate(b, Stats{}).DuplicateGroups)
}

func TestAggregateStats(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	backends := map[string]string{models.OperationEnumerate: "fastwalk"}
	r := Aggregate(nil, Stats{
		ScanID:         "id",
		Root:           "/data",
		Algorithm:      "sha256",
		StartedAt:      started,
		Duration:       1500 * time.Millisecond,
		TotalScanned:   9,
		CandidateCount: 4,
		HashedCount:    2,
		SkippedEntries: 1,
		HashErrors:     2,
		BackendUsed:    backends,
		Completed:      true,
	})

	require.NotNil(t, r)
	assert.Empty(t, r.DuplicateGroups)
	assert.NotNil(t, r.DuplicateGroups)
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.Equal(t, 3, r.SkippedCount)
	assert.Equal(t, 2, r.HashErrorCount)
	assert.Equal(t, "fastwalk", r.BackendUsed[models.OperationEnumerate])
	assert.True(t, r.Completed)

	backends["hash"] = "mutated"
	assert.NotContains(t, r.BackendUsed, "hash")
}
