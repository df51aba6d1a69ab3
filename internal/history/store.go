package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pedrox86lopes/MagnetStream/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("fetch record not found")

// Store manages fetch history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database under the configured
// log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "history.db"))
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// StartFetch inserts a running record for a new fetch.
func (s *Store) StartFetch(ctx context.Context, runID, magnet, destDir string) (*Record, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fetches (run_id, magnet, dest_dir, status, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID, magnet, destDir, StatusRunning, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert fetch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetch insert id: %w", err)
	}
	return &Record{
		ID:        id,
		RunID:     runID,
		Magnet:    magnet,
		DestDir:   destDir,
		Status:    StatusRunning,
		CreatedAt: now,
	}, nil
}

// FinishFetch records the terminal fields for a run.
func (s *Store) FinishFetch(ctx context.Context, runID string, input FinishInput) error {
	finished := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE fetches
            SET status = ?, failure_kind = ?, detail = ?, file_count = ?, total_bytes = ?, finished_at = ?
          WHERE run_id = ?`,
		input.Status, input.FailureKind, input.Detail, input.FileCount, input.TotalBytes, finished, runID,
	)
	if err != nil {
		return fmt.Errorf("finish fetch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish fetch rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, magnet, dest_dir, status, failure_kind, detail,
                file_count, total_bytes, created_at, finished_at
           FROM fetches
          ORDER BY created_at DESC, id DESC
          LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fetches: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetches: %w", err)
	}
	return records, nil
}

// Get returns one record by run identifier.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, magnet, dest_dir, status, failure_kind, detail,
                file_count, total_bytes, created_at, finished_at
           FROM fetches WHERE run_id = ? LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("get fetch: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get fetch: %w", err)
		}
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	record, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Prune deletes all but the newest keep records and reports how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fetches WHERE id NOT IN (
            SELECT id FROM fetches ORDER BY created_at DESC, id DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune fetches: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows: %w", err)
	}
	return removed, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var record Record
	var status string
	var createdAt string
	var finishedAt sql.NullString
	err := rows.Scan(
		&record.ID, &record.RunID, &record.Magnet, &record.DestDir,
		&status, &record.FailureKind, &record.Detail,
		&record.FileCount, &record.TotalBytes, &createdAt, &finishedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("scan fetch row: %w", err)
	}
	record.Status = Status(status)
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = parsed
	}
	if finishedAt.Valid {
		if parsed, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			record.FinishedAt = &parsed
		}
	}
	return record, nil
}
