// Package store provides durable queue storage backends for SyncRelay.
//
// All backends expose the same QueueStore interface: a key-addressable,
// FIFO-ordered record of jobs that survives process restarts. Ordering is
// explicit via a monotonic per-store sequence rather than incidental
// iteration order, so strict FIFO holds across compaction and restart.
package store

import (
	"context"
	"strings"

	"github.com/syncrelay/syncrelay/internal/models"
)

// QueueStore is the narrow mutation interface for the durable job queue.
// PutJob and RemoveJob are the only ways jobs enter or leave the store;
// BumpJobAttempt is the only in-place mutation.
type QueueStore interface {
	// PutJob upserts a job by id (last-write-wins). A replaced job keeps
	// its original queue position.
	PutJob(ctx context.Context, job models.Job) error

	// GetJob retrieves a single job by id, or nil if absent.
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// RemoveJob deletes a job by id. Removing an absent id is a no-op.
	RemoveJob(ctx context.Context, id string) error

	// PeekOldestJob returns the job with the smallest sequence still
	// present, or nil if the queue is empty. The read is non-destructive.
	PeekOldestJob(ctx context.Context) (*models.Job, error)

	// BumpJobAttempt increments a job's attempt count in an isolated
	// read-modify-write scoped to that single key, returning the new count.
	BumpJobAttempt(ctx context.Context, id string) (int, error)

	// CountJobs returns the number of queued jobs.
	CountJobs(ctx context.Context) (int, error)

	// Close releases the underlying connection.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisDSN sets the Redis URL (redis://host:port/db).
func WithRedisDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres", "redis" or "sqlite3".
// File paths and anything unrecognized fall through to SQLite.
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	default:
		return "sqlite3"
	}
}

// Open creates the queue store backend matching the DSN type.
func Open(dsn string) (QueueStore, error) {
	switch DetectDSNType(dsn) {
	case "postgres":
		return NewPostgresStore(WithPostgresDSN(dsn))
	case "redis":
		return NewRedisStore(WithRedisDSN(dsn))
	default:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}
