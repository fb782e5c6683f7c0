// Package store provides durable queue storage backends for SyncRelay.
//
// This file implements the Redis-backed queue store. FIFO order lives in a
// sorted set scored by a monotonic counter; job records are JSON values
// keyed by id.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/syncrelay/syncrelay/internal/models"
)

// Redis key layout for the queue.
const (
	redisSeqKey   = "syncrelay:seq"
	redisOrderKey = "syncrelay:order"
	redisJobKey   = "syncrelay:job:"
)

// Compile-time check that RedisStore implements QueueStore.
var _ QueueStore = (*RedisStore)(nil)

type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a new Redis queue store from a redis:// URL.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	ropts, err := redis.ParseURL(dsn)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Redis queue store opened", "addr", ropts.Addr)

	return &RedisStore{rdb: rdb}, nil
}

// PutJob upserts a job by id. The sorted-set entry is added NX so a
// replaced job keeps its original sequence score.
func (s *RedisStore) PutJob(ctx context.Context, job models.Job) error {
	seq, err := s.rdb.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return fmt.Errorf("put job seq failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("put job marshal failed: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAddNX(ctx, redisOrderKey, redis.Z{Score: float64(seq), Member: job.ID})
	pipe.Set(ctx, redisJobKey+job.ID, payload, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put job failed: %w", err)
	}
	slog.Debug("RedisStore.PutJob succeeded", "id", job.ID, "endpoint", job.Endpoint)
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.rdb.Get(ctx, redisJobKey+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("get job unmarshal failed: %w", err)
	}
	if score, err := s.rdb.ZScore(ctx, redisOrderKey, id).Result(); err == nil {
		job.Seq = int64(score)
	}
	return &job, nil
}

func (s *RedisStore) RemoveJob(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, redisOrderKey, id)
	pipe.Del(ctx, redisJobKey+id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove job failed: %w", err)
	}
	slog.Debug("RedisStore.RemoveJob succeeded", "id", id)
	return nil
}

func (s *RedisStore) PeekOldestJob(ctx context.Context) (*models.Job, error) {
	for {
		entries, err := s.rdb.ZRangeWithScores(ctx, redisOrderKey, 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("peek oldest job failed: %w", err)
		}
		if len(entries) == 0 {
			return nil, nil
		}

		id, _ := entries[0].Member.(string)
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			// Orphaned order entry; drop it and look at the next one.
			slog.Warn("RedisStore.PeekOldestJob: dropping orphaned order entry", "id", id)
			if err := s.rdb.ZRem(ctx, redisOrderKey, id).Err(); err != nil {
				return nil, fmt.Errorf("peek oldest cleanup failed: %w", err)
			}
			continue
		}
		job.Seq = int64(entries[0].Score)
		return job, nil
	}
}

// BumpJobAttempt increments the attempt count with an optimistic
// transaction watching the single job key.
func (s *RedisStore) BumpJobAttempt(ctx context.Context, id string) (int, error) {
	key := redisJobKey + id
	var count int
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		var job models.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return err
		}
		job.AttemptCount++
		count = job.AttemptCount
		payload, err := json.Marshal(job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return 0, fmt.Errorf("bump attempt failed: %w", err)
	}
	slog.Debug("RedisStore.BumpJobAttempt succeeded", "id", id, "attemptCount", count)
	return count, nil
}

func (s *RedisStore) CountJobs(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, redisOrderKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count jobs failed: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	err := s.rdb.Close()
	if err != nil {
		slog.Error("Failed to close Redis connection", "error", err)
	}
	return err
}
