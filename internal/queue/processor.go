package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/syncrelay/syncrelay/internal/metrics"
	"github.com/syncrelay/syncrelay/internal/models"
	"github.com/syncrelay/syncrelay/internal/store"
)

// WakeupScheduler registers a named background wake-up so the queue is
// retried even with no client attached. Registration is idempotent.
type WakeupScheduler interface {
	Register() error
}

// Broadcaster fans a notification out to all connected clients.
// Best-effort: no acknowledgement, no delivery guarantee.
type Broadcaster interface {
	Broadcast(n models.Notification)
}

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Retried   int  `json:"retried"`
	Halted    bool `json:"halted"`
}

// Processor drives repeated delivery attempts across the whole store with
// a hard single-flight guarantee: at most one drain loop runs at a time,
// and concurrent triggers collapse into the in-flight pass.
type Processor struct {
	store     store.QueueStore
	transport DeliveryTransport
	scheduler WakeupScheduler
	notifier  Broadcaster

	mu        sync.Mutex
	inflight  chan struct{}
	lastStats DrainStats
}

// NewProcessor wires the queue processor to its collaborators.
func NewProcessor(st store.QueueStore, transport DeliveryTransport, scheduler WakeupScheduler, notifier Broadcaster) *Processor {
	return &Processor{
		store:     st,
		transport: transport,
		scheduler: scheduler,
		notifier:  notifier,
	}
}

// Enqueue normalizes and persists a candidate job, registers a wake-up and
// kicks an asynchronous drain. It reports whether the job was admitted;
// rejection and storage failures are logged, never returned as errors —
// the enqueue path is fire-and-forget by contract.
func (p *Processor) Enqueue(ctx context.Context, raw json.RawMessage) bool {
	job := NormalizeJob(raw)
	if job == nil {
		metrics.JobsDropped.Inc()
		return false
	}

	if err := p.store.PutJob(ctx, *job); err != nil {
		// Best-effort: the job is lost, but the caller treated enqueue as
		// fire-and-forget and the worker must not crash.
		slog.Error("Processor.Enqueue: put failed", "id", job.ID, "error", err)
		return false
	}
	metrics.JobsEnqueued.Inc()
	p.updateDepth(ctx)
	slog.Info("Processor.Enqueue: job queued", "id", job.ID, "endpoint", job.Endpoint)

	p.requestWakeup()
	go p.Drain(context.Background())
	return true
}

// Drain runs one pass over the store, delivering jobs in strict insertion
// order until the queue is empty or a retryable failure halts the pass.
// If a pass is already in flight the caller awaits its completion and
// observes the same result instead of starting a second loop.
func (p *Processor) Drain(ctx context.Context) DrainStats {
	p.mu.Lock()
	if p.inflight != nil {
		done := p.inflight
		p.mu.Unlock()
		<-done
		p.mu.Lock()
		stats := p.lastStats
		p.mu.Unlock()
		return stats
	}
	done := make(chan struct{})
	p.inflight = done
	p.mu.Unlock()

	stats := p.drain(ctx)

	p.mu.Lock()
	p.lastStats = stats
	p.inflight = nil
	p.mu.Unlock()
	close(done)

	return stats
}

// drain is the loop body. Every fallible operation is contained here: the
// drain always returns cleanly because a crash would abort delivery for
// all queued work, not just the failing job.
func (p *Processor) drain(ctx context.Context) DrainStats {
	var stats DrainStats
	defer p.updateDepth(ctx)

	for {
		if ctx.Err() != nil {
			slog.Debug("Processor.drain: context done, stopping pass")
			return stats
		}

		job, err := p.store.PeekOldestJob(ctx)
		if err != nil {
			// Storage failure reads as "no job available" so the pass ends
			// instead of crashing; a later wake-up retries.
			slog.Error("Processor.drain: peek failed", "error", err)
			return stats
		}
		if job == nil {
			slog.Debug("Processor.drain: queue empty", "delivered", stats.Delivered, "failed", stats.Failed)
			return stats
		}

		result := p.transport.Deliver(ctx, *job)
		metrics.Deliveries.WithLabelValues(string(result.Outcome)).Inc()

		switch result.Outcome {
		case models.DeliveryRetry:
			if _, err := p.store.BumpJobAttempt(ctx, job.ID); err != nil {
				slog.Error("Processor.drain: attempt bump failed", "id", job.ID, "error", err)
			}
			// Transport failures broadcast an explicit sync-error; a
			// retryable HTTP status only bumps the attempt count. Clients
			// observe that asymmetry, so it is preserved.
			if result.Transport() {
				p.notifier.Broadcast(models.SyncErrorNotification(*job, result.Status, result.Message))
			}
			p.requestWakeup()
			stats.Retried++
			stats.Halted = true
			slog.Info("Processor.drain: retryable failure, pass halted",
				"id", job.ID, "status", result.Status, "attemptCount", job.AttemptCount+1)
			return stats

		case models.DeliveryFailed:
			p.removeJob(ctx, job.ID)
			p.notifier.Broadcast(models.FailedNotification(*job, result.Status))
			stats.Failed++
			slog.Warn("Processor.drain: terminal failure, job dropped", "id", job.ID, "status", result.Status)

		case models.DeliverySuccess:
			p.removeJob(ctx, job.ID)
			p.notifier.Broadcast(models.SyncedNotification(*job))
			stats.Delivered++
			slog.Info("Processor.drain: job delivered", "id", job.ID, "endpoint", job.Endpoint)
		}
	}
}

// removeJob deletes a terminal job, logging and swallowing failures. A
// failed remove leaves the job visible to the next pass, which simply
// retries it; delivery must therefore stay idempotent on the server side.
func (p *Processor) removeJob(ctx context.Context, id string) {
	if err := p.store.RemoveJob(ctx, id); err != nil {
		slog.Error("Processor.removeJob: remove failed", "id", id, "error", err)
	}
}

// requestWakeup registers the background wake-up. Failures are warnings
// only: the queue is still retried on the next activation or flush.
func (p *Processor) requestWakeup() {
	if p.scheduler == nil {
		return
	}
	if err := p.scheduler.Register(); err != nil {
		slog.Warn("Processor.requestWakeup: scheduler registration failed", "error", err)
	}
}

func (p *Processor) updateDepth(ctx context.Context) {
	n, err := p.store.CountJobs(ctx)
	if err != nil {
		slog.Debug("Processor.updateDepth: count failed", "error", err)
		return
	}
	metrics.QueueDepth.Set(float64(n))
}
