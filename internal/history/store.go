// Package history keeps a SQLite log of completed scans.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/dupescan/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed-width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no recorded scan matches an ID.
var ErrNotFound = errors.New("scan not found")

// Entry summarises one recorded scan.
type Entry struct {
	ScanID          string
	Root            string
	Algorithm       string
	StartedAt       time.Time
	DurationMs      int64
	TotalScanned    int
	CandidateCount  int
	HashedCount     int
	SkippedCount    int
	DuplicateGroups int
	DuplicateFiles  int
	WastedBytes     int64
	Completed       bool
	Backends        map[string]string
}

// Store is the scan history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the history database at dbPath.
// ":memory:" gives a private in-memory store.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries statements that fail with "database is locked",
// doubling the delay each attempt.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores report. Recording the same scan ID twice replaces the row.
func (s *Store) Record(ctx context.Context, report *models.ScanReport) error {
	if report == nil || report.ScanID == "" {
		return fmt.Errorf("record scan: report has no scan id")
	}

	full, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	backends, err := json.Marshal(report.BackendUsed)
	if err != nil {
		return fmt.Errorf("marshal backends: %w", err)
	}

	query := `INSERT OR REPLACE INTO scans
		(scan_id, root, algorithm, started_at, duration_ms, total_scanned, candidate_count,
		 hashed_count, skipped_count, duplicate_groups, duplicate_files, wasted_bytes,
		 completed, backends, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		report.ScanID,
		report.Root,
		report.Algorithm,
		report.StartedAt.UTC().Format(timeLayout),
		report.DurationMs,
		report.TotalScanned,
		report.CandidateCount,
		report.HashedCount,
		report.SkippedCount,
		len(report.DuplicateGroups),
		report.DuplicateFileCount,
		report.TotalWastedBytes,
		report.Completed,
		string(backends),
		string(full),
	)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", report.ScanID, err)
	}
	return nil
}

const entryColumns = `scan_id, root, algorithm, started_at, duration_ms, total_scanned,
	candidate_count, hashed_count, skipped_count, duplicate_groups, duplicate_files,
	wasted_bytes, completed, backends`

// ListOptions filters List.
type ListOptions struct {
	// Root restricts results to scans of this root.
	Root string
	// Limit caps the number of entries (0 = no limit).
	Limit int
}

// List returns recorded scans, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM scans`
	var args []any
	if opts.Root != "" {
		query += ` WHERE root = ?`
		args = append(args, opts.Root)
	}
	query += ` ORDER BY started_at DESC, scan_id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return entries, nil
}

// Get returns the full report for the scan whose ID starts with idPrefix.
// An ambiguous prefix is an error.
func (s *Store) Get(ctx context.Context, idPrefix string) (*models.ScanReport, error) {
	if idPrefix == "" {
		return nil, fmt.Errorf("empty scan id")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT scan_id, report FROM scans WHERE substr(scan_id, 1, ?) = ? ORDER BY scan_id LIMIT 2`,
		len(idPrefix), idPrefix)
	if err != nil {
		return nil, fmt.Errorf("query scan %s: %w", idPrefix, err)
	}
	defer rows.Close()

	var ids, reports []string
	for rows.Next() {
		var id, report string
		if err := rows.Scan(&id, &report); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idPrefix)
	case 1:
	default:
		return nil, fmt.Errorf("scan id %q is ambiguous (%s, %s, ...)", idPrefix, ids[0], ids[1])
	}

	var report models.ScanReport
	if err := json.Unmarshal([]byte(reports[0]), &report); err != nil {
		return nil, fmt.Errorf("decode scan %s: %w", ids[0], err)
	}
	return &report, nil
}

// Delete removes scans that started before cutoff and returns how many went.
func (s *Store) Delete(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE started_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete scans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e         Entry
		startedAt string
		backends  string
	)
	err := rows.Scan(
		&e.ScanID, &e.Root, &e.Algorithm, &startedAt, &e.DurationMs, &e.TotalScanned,
		&e.CandidateCount, &e.HashedCount, &e.SkippedCount, &e.DuplicateGroups, &e.DuplicateFiles,
		&e.WastedBytes, &e.Completed, &backends,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan row: %w", err)
	}
	e.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	if err := json.Unmarshal([]byte(backends), &e.Backends); err != nil {
		return Entry{}, fmt.Errorf("decode backends: %w", err)
	}
	return e, nil
}
