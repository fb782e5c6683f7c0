// Package store provides durable queue storage backends for SyncRelay.
//
// This file implements the PostgreSQL-backed queue store for deployments
// where the queue should live alongside an existing database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/syncrelay/syncrelay/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements QueueStore.
var _ QueueStore = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres queue store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres queue store opened")

	return &PostgresStore{db: db}, nil
}

// PutJob upserts a job by id, keeping the original seq on replacement.
func (s *PostgresStore) PutJob(ctx context.Context, job models.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, token, endpoint, body, created_at, attempt_count, schema_version, origin_step_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   token = EXCLUDED.token,
		   endpoint = EXCLUDED.endpoint,
		   body = EXCLUDED.body,
		   created_at = EXCLUDED.created_at,
		   attempt_count = EXCLUDED.attempt_count,
		   schema_version = EXCLUDED.schema_version,
		   origin_step_id = EXCLUDED.origin_step_id`,
		job.ID, job.Token, job.Endpoint, string(job.Body), job.CreatedAt,
		job.AttemptCount, nilIfIntNil(job.SchemaVersion), nilIfStringNil(job.OriginStepID),
	)
	if err != nil {
		return fmt.Errorf("put job failed: %w", err)
	}
	slog.Debug("PostgresStore.PutJob succeeded", "id", job.ID, "endpoint", job.Endpoint)
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, token, endpoint, body, created_at, attempt_count, schema_version, origin_step_id
		 FROM sync_jobs WHERE id = $1`, id)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) RemoveJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove job failed: %w", err)
	}
	slog.Debug("PostgresStore.RemoveJob succeeded", "id", id)
	return nil
}

func (s *PostgresStore) PeekOldestJob(ctx context.Context) (*models.Job, error) {
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

// BumpJobAttempt increments attempt_count atomically on the single job row.
func (s *PostgresStore) BumpJobAttempt(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`UPDATE sync_jobs SET attempt_count = attempt_count + 1 WHERE id = $1 RETURNING attempt_count`,
		id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("bump attempt failed: %w", err)
	}
	slog.Debug("PostgresStore.BumpJobAttempt succeeded", "id", id, "attemptCount", count)
	return count, nil
}

func (s *PostgresStore) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs failed: %w", err)
	}
	return n, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
