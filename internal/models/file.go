package models

import "math"

// FileCandidate is a regular file considered for duplicate analysis.
type FileCandidate struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Filters restricts which files the enumerator yields.
type Filters struct {
	// MinSize is the smallest accepted size in bytes (inclusive).
	MinSize int64 `json:"min_size"`
	// MaxSize is the largest accepted size in bytes (inclusive).
	MaxSize int64 `json:"max_size"`
	// Include lists globs of which at least one must match (empty = all).
	Include []string `json:"include,omitempty"`
	// Exclude lists globs that reject a file when any matches.
	Exclude []string `json:"exclude,omitempty"`
	// MaxDepth limits recursion (0 = unlimited, 1 = root directory only).
	MaxDepth int `json:"max_depth"`
	// IncludeHidden admits dot-files and descends into dot-directories.
	IncludeHidden bool `json:"include_hidden"`
}

// DefaultMinSize is the default lower size bound for duplicate scans.
const DefaultMinSize int64 = 1024

// DefaultFilters returns the scan defaults: files of at least 1 KiB, no upper bound.
func DefaultFilters() Filters {
	return Filters{
		MinSize: DefaultMinSize,
		MaxSize: math.MaxInt64,
	}
}

// AcceptsSize reports whether size lies within the configured bounds.
// A zero MaxSize means unbounded.
func (f Filters) AcceptsSize(size int64) bool {
	if size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && size > f.MaxSize {
		return false
	}
	return true
}

// HashResult is the outcome of hashing one candidate.
// Hash is empty iff Err is non-nil.
type HashResult struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Hash      string `json:"hash,omitempty"`
	Err       error  `json:"-"`
}

// OK reports whether the result carries a digest.
func (r HashResult) OK() bool {
	return r.Err == nil && r.Hash != ""
}
