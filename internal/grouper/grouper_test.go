package grouper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dupescan/internal/models"
)

func ok(path string, size int64, hash string) models.HashResult {
	return models.HashResult{Path: path, SizeBytes: size, Hash: hash}
}

func checkInvariants(t *testing.T, groups []models.DuplicateGroup) {
	t.Helper()
	for _, g := range groups {
		require.GreaterOrEqual(t, len(g.Files), 2)
		assert.Equal(t, g.Files[0], g.Original)
		assert.Equal(t, g.Files[1:], g.Duplicates)
		assert.Equal(t, g.SizeBytes*int64(len(g.Files)-1), g.WastedBytes)
		assert.IsNonDecreasing(t, g.Files)
	}
}

func TestGroupBasic(t *testing.T) {
	groups := Group([]models.HashResult{
		ok("/r/b", 500, "x"),
		ok("/r/a", 500, "x"),
		ok("/r/c", 500, "y"),
	})
	checkInvariants(t, groups)
	require.Len(t, groups, 1)
	assert.Equal(t, models.DuplicateGroup{
		Hash:        "x",
		SizeBytes:   500,
		Files:       []string{"/r/a", "/r/b"},
		Original:    "/r/a",
		Duplicates:  []string{"/r/b"},
		WastedBytes: 500,
	}, groups[0])
}

func TestGroupDiscardsErrors(t *testing.T) {
	groups := Group([]models.HashResult{
		ok("/a", 10, "h"),
		{Path: "/b", SizeBytes: 10, Err: errors.New("permission denied")},
		ok("/c", 10, "h"),
		ok("/d", 10, "lonely"),
	})
	checkInvariants(t, groups)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"/a", "/c"}, groups[0].Files)
}

func TestGroupSplitsSizeCollision(t *testing.T) {
	groups := Group([]models.HashResult{
		ok("/a", 10, "h"), ok("/b", 10, "h"),
		ok("/c", 20, "h"), ok("/d", 20, "h"), ok("/e", 20, "h"),
		ok("/f", 30, "h"),
	})
	checkInvariants(t, groups)
	require.Len(t, groups, 2)
	assert.Equal(t, int64(10), groups[0].WastedBytes)
	assert.Equal(t, int64(40), groups[1].WastedBytes)
}

func TestGroupOriginalIsStable(t *testing.T) {
	in := []models.HashResult{ok("/z/1", 5, "h"), ok("/a/9", 5, "h"), ok("/m", 5, "h")}
	reversed := []models.HashResult{in[2], in[1], in[0]}
	assert.Equal(t, Group(in), Group(reversed))
	assert.Equal(t, "/a/9", Group(in)[0].Original)
}

func TestGroupIgnoresRepeatedPath(t *testing.T) {
	groups := Group([]models.HashResult{ok("/a", 5, "h"), ok("/a", 5, "h")})
	assert.Empty(t, groups)
}

func TestGroupEmpty(t *testing.T) {
	groups := Group(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
