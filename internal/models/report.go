package models

import "time"

// Operation names used by the capability registry and the scan report.
const (
	OperationEnumerate = "enumerate"
	OperationHash      = "hash"
	OperationContent   = "content"
)

// ScanReport is the result of one duplicate scan.
type ScanReport struct {
	ScanID    string    `json:"scan_id"`
	Root      string    `json:"root"`
	Algorithm string    `json:"algorithm"`
	StartedAt time.Time `json:"started_at"`

	// TotalScanned counts regular files visited after traversal pruning.
	TotalScanned int `json:"total_scanned"`
	// CandidateCount counts files that passed size and glob filters.
	CandidateCount int `json:"candidate_count"`
	// HashedCount counts files submitted to the hasher.
	HashedCount int `json:"hashed_count"`
	// SkippedCount counts unreadable directories plus files that failed to hash.
	SkippedCount int `json:"skipped_count"`
	// HashErrorCount counts files that failed to hash.
	HashErrorCount int `json:"hash_error_count"`

	DuplicateGroups    []DuplicateGroup `json:"duplicate_groups"`
	DuplicateFileCount int              `json:"duplicate_file_count"`
	TotalWastedBytes   int64            `json:"total_wasted_bytes"`

	DurationMs  int64             `json:"duration_ms"`
	BackendUsed map[string]string `json:"backend_used"`
	// Completed is false when the scan was cancelled before all files were hashed.
	Completed bool `json:"completed"`
}
