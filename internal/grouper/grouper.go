// Package grouper turns hash results into duplicate groups.
package grouper

import (
	"fmt"
	"sort"

	"github.com/harrison/dupescan/internal/models"
)

// DiagnosticFunc receives a description of a skipped malformed result.
type DiagnosticFunc func(message string)

// Grouper groups hash results. The zero value is ready to use.
type Grouper struct {
	// Diagnostics receives contract violations in release builds.
	Diagnostics DiagnosticFunc
}

// Group is shorthand for (&Grouper{}).Group(results).
func Group(results []models.HashResult) []models.DuplicateGroup {
	return (&Grouper{}).Group(results)
}

type groupKey struct {
	hash string
	size int64
}

// Group discards errored results, groups the rest by hash and size, and
// returns every group with at least two files. Within a group Files is
// sorted and Original is the lexicographically smallest path. The returned
// groups are ordered by hash, then size.
func (g *Grouper) Group(results []models.HashResult) []models.DuplicateGroup {
	byKey := make(map[groupKey][]string)
	seen := make(map[string]struct{}, len(results))

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if msg := violation(r); msg != "" {
			g.violate(msg)
			continue
		}
		if _, dup := seen[r.Path]; dup {
			continue
		}
		seen[r.Path] = struct{}{}

		// A digest shared by files of different sizes is a collision and
		// is split into separate groups.
		key := groupKey{hash: r.Hash, size: r.SizeBytes}
		byKey[key] = append(byKey[key], r.Path)
	}

	groups := make([]models.DuplicateGroup, 0)
	for key, files := range byKey {
		if len(files) < 2 {
			continue
		}
		sort.Strings(files)
		groups = append(groups, models.DuplicateGroup{
			Hash:        key.hash,
			SizeBytes:   key.size,
			Files:       files,
			Original:    files[0],
			Duplicates:  files[1:],
			WastedBytes: key.size * int64(len(files)-1),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Hash != groups[j].Hash {
			return groups[i].Hash < groups[j].Hash
		}
		return groups[i].SizeBytes < groups[j].SizeBytes
	})
	return groups
}

// violation describes why a result without an error is malformed, or
// returns "" when it is well-formed.
func violation(r models.HashResult) string {
	switch {
	case r.Hash == "":
		return fmt.Sprintf("hash result for %q has neither hash nor error", r.Path)
	case r.SizeBytes < 0:
		return fmt.Sprintf("hash result for %q has negative size %d", r.Path, r.SizeBytes)
	case r.Path == "":
		return "hash result has an empty path"
	}
	return ""
}

func (g *Grouper) violate(msg string) {
	if debugContracts {
		panic("grouper: " + msg)
	}
	if g.Diagnostics != nil {
		g.Diagnostics(msg)
	}
}
