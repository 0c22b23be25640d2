package fileutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dupescan/internal/models"
)

func TestMatcherAccept(t *testing.T) {
	tests := []struct {
		name    string
		filters models.Filters
		rel     string
		size    int64
		want    bool
	}{
		{"no filters", models.Filters{}, "a/b.txt", 10, true},
		{"below min size", models.Filters{MinSize: 100}, "a.txt", 99, false},
		{"at min size", models.Filters{MinSize: 100}, "a.txt", 100, true},
		{"above max size", models.Filters{MaxSize: 50}, "a.txt", 51, false},
		{"zero max is unbounded", models.Filters{MaxSize: 0}, "a.txt", 1 << 40, true},
		{"include base name", models.Filters{Include: []string{"*.txt"}}, "deep/dir/a.txt", 1, true},
		{"include misses", models.Filters{Include: []string{"*.jpg"}}, "deep/a.txt", 1, false},
		{"include any of", models.Filters{Include: []string{"*.jpg", "*.txt"}}, "a.txt", 1, true},
		{"include rel path", models.Filters{Include: []string{"photos/**/*.jpg"}}, "photos/2024/x.jpg", 1, true},
		{"include rel path outside", models.Filters{Include: []string{"photos/**/*.jpg"}}, "other/x.jpg", 1, false},
		{"exclude wins", models.Filters{Include: []string{"*.txt"}, Exclude: []string{"skip*"}}, "skip.txt", 1, false},
		{"exclude rel", models.Filters{Exclude: []string{"cache/**"}}, "cache/x/y.bin", 1, false},
		{"brace alternatives", models.Filters{Include: []string{"*.{iso,img}"}}, "x.img", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(t.TempDir(), tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Accept(tt.rel, tt.size))
		})
	}
}

func TestMatcherInvalidPattern(t *testing.T) {
	_, err := NewMatcher(t.TempDir(), models.Filters{Include: []string{"[unclosed"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include")

	_, err = NewMatcher(t.TempDir(), models.Filters{Exclude: []string{"a[", " "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude")
}

func TestMatcherTraversal(t *testing.T) {
	m, err := NewMatcher(t.TempDir(), models.Filters{MaxDepth: 2})
	require.NoError(t, err)

	assert.True(t, m.Traversable("a.txt"))
	assert.True(t, m.Traversable("d/a.txt"))
	assert.False(t, m.Traversable("d/e/a.txt"))
	assert.False(t, m.Traversable(".hidden"))
	assert.False(t, m.Traversable(".git/config"))

	assert.False(t, m.PruneDir("."))
	assert.False(t, m.PruneDir("d"))
	assert.True(t, m.PruneDir("d/e"))
	assert.True(t, m.PruneDir(".git"))

	hidden, err := NewMatcher(t.TempDir(), models.Filters{IncludeHidden: true})
	require.NoError(t, err)
	assert.True(t, hidden.Traversable(".git/config"))
	assert.False(t, hidden.PruneDir(".git"))
	assert.True(t, hidden.Traversable("very/deep/tree/of/files.txt"))
}

func TestMatcherRel(t *testing.T) {
	root := t.TempDir()
	m, err := NewMatcher(root, models.Filters{})
	require.NoError(t, err)

	rel, ok := m.Rel(filepath.Join(root, "a", "b.txt"))
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", rel)

	rel, ok = m.Rel("a/../c.txt")
	assert.True(t, ok)
	assert.Equal(t, "c.txt", rel)

	_, ok = m.Rel(filepath.Dir(root))
	assert.False(t, ok)
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsHidden(".env"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden(".."))
	assert.False(t, IsHidden("env"))

	assert.Equal(t, 0, Depth("."))
	assert.Equal(t, 1, Depth("a"))
	assert.Equal(t, 3, Depth("a/b/c"))

	assert.True(t, MatchGlob("*.go", "cmd/main.go"))
	assert.False(t, MatchGlob("cmd/*.txt", "cmd/main.go"))
}
