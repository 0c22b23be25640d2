package fileutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/harrison/dupescan/internal/models"
)

// Matcher applies models.Filters to paths found below a root directory.
type Matcher struct {
	root    string
	filters models.Filters
	include []string
	exclude []string
}

// NewMatcher validates the filter globs and returns a Matcher for root.
// Root is made absolute and cleaned.
func NewMatcher(root string, filters models.Filters) (*Matcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	include, err := normalizePatterns(filters.Include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exclude, err := normalizePatterns(filters.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}

	return &Matcher{
		root:    filepath.Clean(absRoot),
		filters: filters,
		include: include,
		exclude: exclude,
	}, nil
}

func normalizePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.ToSlash(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%q", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Root returns the absolute scan root.
func (m *Matcher) Root() string {
	return m.root
}

// Filters returns the filters the matcher was built from.
func (m *Matcher) Filters() models.Filters {
	return m.filters
}

// Rel returns the slash-separated path of p relative to the root.
// The second result is false when p lies outside the root.
func (m *Matcher) Rel(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.root, p)
	}
	rel, err := filepath.Rel(m.root, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// PruneDir reports whether the walker should not descend into the directory
// at rel (slash-separated, relative to root).
func (m *Matcher) PruneDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	if !m.filters.IncludeHidden && IsHidden(pathBase(rel)) {
		return true
	}
	// Files inside a directory at depth d are at depth d+1.
	if m.filters.MaxDepth > 0 && Depth(rel) >= m.filters.MaxDepth {
		return true
	}
	return false
}

// Traversable reports whether a file at rel survives traversal pruning:
// it is within MaxDepth, and neither it nor any parent is hidden unless
// hidden entries are included.
func (m *Matcher) Traversable(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	if m.filters.MaxDepth > 0 && Depth(rel) > m.filters.MaxDepth {
		return false
	}
	if !m.filters.IncludeHidden {
		for _, part := range strings.Split(rel, "/") {
			if IsHidden(part) {
				return false
			}
		}
	}
	return true
}

// Accept reports whether a traversable file passes the size and glob filters.
func (m *Matcher) Accept(rel string, size int64) bool {
	if !m.filters.AcceptsSize(size) {
		return false
	}
	base := pathBase(rel)

	if len(m.include) > 0 {
		matched := false
		for _, p := range m.include {
			if matchGlob(p, rel, base) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, p := range m.exclude {
		if matchGlob(p, rel, base) {
			return false
		}
	}
	return true
}

// MatchGlob matches a single pattern using the package glob semantics.
func MatchGlob(pattern, rel string) bool {
	return matchGlob(filepath.ToSlash(pattern), rel, pathBase(rel))
}

func matchGlob(pattern, rel, base string) bool {
	target := base
	if strings.Contains(pattern, "/") {
		target = rel
	}
	ok, err := doublestar.Match(pattern, target)
	return err == nil && ok
}

// IsHidden reports whether a path element is a dot-file or dot-directory.
func IsHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}

// Depth returns the number of elements in a slash-separated relative path.
func Depth(rel string) int {
	if rel == "" || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

func pathBase(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}
