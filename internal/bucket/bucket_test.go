package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/dupescan/internal/models"
)

func cands(pairs ...any) []models.FileCandidate {
	var out []models.FileCandidate
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.FileCandidate{Path: pairs[i].(string), SizeBytes: int64(pairs[i+1].(int))})
	}
	return out
}

func TestBucketGroupsBySize(t *testing.T) {
	b := Bucket(cands("/a", 10, "/b", 20, "/c", 10, "/a", 10))
	assert.Len(t, b, 2)
	assert.Equal(t, cands("/a", 10, "/c", 10), b[10])
	assert.Equal(t, cands("/b", 20), b[20])
}

func TestFilterSingletons(t *testing.T) {
	b := Bucket(cands("/a", 10, "/b", 20, "/c", 10, "/d", 30, "/e", 30, "/f", 30))
	f := FilterSingletons(b)
	assert.Len(t, f, 2)
	assert.Contains(t, f, int64(10))
	assert.Contains(t, f, int64(30))
	assert.NotContains(t, f, int64(20))

	assert.Empty(t, FilterSingletons(Bucket(nil)))
}

func TestFlattenOrdersBySizeThenPath(t *testing.T) {
	b := Bucket(cands("/z", 30, "/b", 10, "/y", 30, "/a", 10))
	assert.Equal(t, cands("/a", 10, "/b", 10, "/y", 30, "/z", 30), Flatten(b))
	// Flatten leaves the buckets untouched.
	assert.Equal(t, cands("/b", 10, "/a", 10), b[10])
}

func TestSummarize(t *testing.T) {
	all := Bucket(cands("/a", 10, "/b", 20, "/c", 10, "/d", 5))
	s := Summarize(all, FilterSingletons(all))
	assert.Equal(t, Stats{Buckets: 1, Eligible: 2, EligibleBytes: 20, Discarded: 2}, s)
}
