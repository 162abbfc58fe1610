// Package state persists ingestion progress between jobs: the per-project
// high-water mark and the set of already-emitted URNs. Backed by SQLite in
// WAL mode; ":memory:" keeps state per-process for tests and one-shot runs.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the ingestion state database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the state database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state database path is required")
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	connStr := path
	if path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// SQLite tolerates little write concurrency; keep the pool small.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS watermarks (
		project TEXT PRIMARY KEY,
		last_run_time DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS emitted (
		urn TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		emitted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_emitted_at ON emitted(emitted_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Watermark returns the newest run start time already ingested for a project.
// Returns the zero time when the project has never been ingested.
func (s *Store) Watermark(ctx context.Context, project string) (time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_run_time FROM watermarks WHERE project = ?`, project)

	var t time.Time
	err := row.Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	return t, nil
}

// SetWatermark advances the watermark for a project. Moving it backwards is
// allowed; callers decide whether to re-ingest.
func (s *Store) SetWatermark(ctx context.Context, project string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO watermarks (project, last_run_time, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(project) DO UPDATE SET
		last_run_time = excluded.last_run_time,
		updated_at = excluded.updated_at
	`, project, t.UTC())

	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}
	return nil
}

// MarkEmitted records URNs as ingested under the given job.
func (s *Store) MarkEmitted(ctx context.Context, jobID string, urns ...string) error {
	if len(urns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO emitted (urn, job_id) VALUES (?, ?)
	ON CONFLICT(urn) DO UPDATE SET job_id = excluded.job_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, urn := range urns {
		if _, err := stmt.ExecContext(ctx, urn, jobID); err != nil {
			return fmt.Errorf("failed to mark %s: %w", urn, err)
		}
	}

	return tx.Commit()
}

// IsEmitted reports whether a URN was already ingested.
func (s *Store) IsEmitted(ctx context.Context, urn string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM emitted WHERE urn = ?`, urn)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check urn: %w", err)
	}
	return true, nil
}

// PruneEmitted drops emitted records older than the cutoff, bounding table
// growth across long-lived follow deployments.
func (s *Store) PruneEmitted(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM emitted WHERE emitted_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune emitted urns: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
