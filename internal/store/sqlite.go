// Package store provides durable queue storage backends for SyncRelay.
//
// This file implements the SQLite-backed queue store, the default embedded
// backend.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/syncrelay/syncrelay/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements QueueStore.
var _ QueueStore = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite queue store with the given DSN.
// The DSN should be a file path to the SQLite database file; the parent
// directory is created if it does not exist. Opening is idempotent: the
// embedded migrations are create-if-missing, so a second open against the
// same file is a no-op.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite queue store opened", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// PutJob upserts a job by id. On conflict the record fields are replaced
// but the seq column is untouched, so the job keeps its queue position.
func (s *SQLiteStore) PutJob(ctx context.Context, job models.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, token, endpoint, body, created_at, attempt_count, schema_version, origin_step_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   token = excluded.token,
		   endpoint = excluded.endpoint,
		   body = excluded.body,
		   created_at = excluded.created_at,
		   attempt_count = excluded.attempt_count,
		   schema_version = excluded.schema_version,
		   origin_step_id = excluded.origin_step_id`,
		job.ID, job.Token, job.Endpoint, string(job.Body), job.CreatedAt,
		job.AttemptCount, nilIfIntNil(job.SchemaVersion), nilIfStringNil(job.OriginStepID),
	)
	if err != nil {
		return fmt.Errorf("put job failed: %w", err)
	}
	slog.Debug("SQLiteStore.PutJob succeeded", "id", job.ID, "endpoint", job.Endpoint)
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, token, endpoint, body, created_at, attempt_count, schema_version, origin_step_id
		 FROM sync_jobs WHERE id = ?`, id)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}

func (s *SQLiteStore) RemoveJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove job failed: %w", err)
	}
	slog.Debug("SQLiteStore.RemoveJob succeeded", "id", id)
	return nil
}

func (s *SQLiteStore) PeekOldestJob(ctx context.Context) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, token, endpoint, body, created_at, attempt_count, schema_version, origin_step_id
		 FROM sync_jobs ORDER BY seq ASC LIMIT 1`)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek oldest job failed: %w", err)
	}
	return &j, nil
}

// BumpJobAttempt increments attempt_count inside a transaction scoped to
// the single job row.
func (s *SQLiteStore) BumpJobAttempt(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("bump attempt begin failed: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT attempt_count FROM sync_jobs WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("bump attempt lookup failed: %w", err)
	}
	count++
	if _, err := tx.ExecContext(ctx, `UPDATE sync_jobs SET attempt_count = ? WHERE id = ?`, count, id); err != nil {
		return 0, fmt.Errorf("bump attempt update failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("bump attempt commit failed: %w", err)
	}
	slog.Debug("SQLiteStore.BumpJobAttempt succeeded", "id", id, "attemptCount", count)
	return count, nil
}

func (s *SQLiteStore) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs failed: %w", err)
	}
	return n, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
