// Package scheduler provides the wake-up bridge for the sync queue.
//
// It registers a single named periodic task with a cron runner so the
// queue processor gets a chance to run again even when no client is
// connected. The entry stays installed once registered; draining an empty
// queue is cheap.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSpec retries the queue every minute.
const DefaultSpec = "* * * * *"

// DrainFunc is invoked on every scheduled wake-up.
type DrainFunc func(ctx context.Context)

// Scheduler wraps a cron runner behind the idempotent Register contract.
type Scheduler struct {
	cron  *cron.Cron
	spec  string
	drain DrainFunc

	mu         sync.Mutex
	registered bool
}

// NewScheduler creates and starts the cron runner. The spec uses the
// standard 5-field cron format; an empty spec falls back to DefaultSpec.
func NewScheduler(spec string, drain DrainFunc) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c, spec: spec, drain: drain}
}

// Register installs the wake-up entry. Calling it again while the entry is
// installed is a no-op, mirroring a named one-per-tag sync registration.
func (s *Scheduler) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered {
		return nil
	}
	_, err := s.cron.AddFunc(s.spec, func() {
		slog.Debug("Scheduler: wake-up fired", "spec", s.spec)
		s.drain(context.Background())
	})
	if err != nil {
		return err
	}
	s.registered = true
	slog.Info("Scheduler: wake-up registered", "spec", s.spec)
	return nil
}

// Registered reports whether the wake-up entry is installed.
func (s *Scheduler) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
