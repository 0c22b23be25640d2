package enumerate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/dupescan/internal/models"
)

// SearchOptions configures a glob file search.
type SearchOptions struct {
	Pattern string
	// MaxResults truncates the match list (0 = unlimited).
	MaxResults    int
	MaxDepth      int
	IncludeHidden bool
}

// SearchResult is the outcome of Search.
type SearchResult struct {
	Pattern      string                 `json:"pattern"`
	FilesScanned int                    `json:"files_scanned"`
	FilesMatched int                    `json:"files_matched"`
	TotalSize    int64                  `json:"total_size"`
	ElapsedMs    int64                  `json:"elapsed_ms"`
	Files        []models.FileCandidate `json:"files"`
	Truncated    bool                   `json:"truncated"`
	Backend      string                 `json:"backend"`
}

// Search finds files below root whose path matches opts.Pattern.
// FilesMatched and TotalSize cover every match even when Files is truncated.
func (e *Enumerator) Search(ctx context.Context, root string, opts SearchOptions) (*SearchResult, error) {
	if strings.TrimSpace(opts.Pattern) == "" {
		return nil, fmt.Errorf("search pattern is required")
	}
	start := time.Now()

	listing, err := e.Enumerate(ctx, root, models.Filters{
		Include:       []string{opts.Pattern},
		MaxDepth:      opts.MaxDepth,
		IncludeHidden: opts.IncludeHidden,
	})
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Pattern:      opts.Pattern,
		FilesScanned: listing.Visited,
		FilesMatched: len(listing.Candidates),
		Files:        listing.Candidates,
		Backend:      e.dispatcher.LastBackend(),
	}
	for _, c := range listing.Candidates {
		result.TotalSize += c.SizeBytes
	}
	if opts.MaxResults > 0 && len(result.Files) > opts.MaxResults {
		result.Files = result.Files[:opts.MaxResults]
		result.Truncated = true
	}
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}
