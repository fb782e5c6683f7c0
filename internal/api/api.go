// Package api provides the HTTP control surface for SyncRelay.
//
// It exposes endpoints for enqueuing jobs, flushing the queue, streaming
// outcome notifications, and inspecting queue state. The API is the
// server-side equivalent of the original client message channel: enqueue
// is fire-and-forget, and notifications flow back over a server-sent
// event stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syncrelay/syncrelay/internal/notify"
	"github.com/syncrelay/syncrelay/internal/queue"
	"github.com/syncrelay/syncrelay/internal/store"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Opts holds API server configuration.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the control API on top of the queue processor.
type Server struct {
	httpServer *http.Server
	processor  *queue.Processor
	store      store.QueueStore
	hub        *notify.Hub
}

// NewServer builds the API server and its route table.
func NewServer(processor *queue.Processor, st store.QueueStore, hub *notify.Hub, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		processor: processor,
		store:     st,
		hub:       hub,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/queue", s.queueHandler)
	mux.HandleFunc("/api/v1/flush", s.flushHandler)
	mux.HandleFunc("/api/v1/events", s.eventsHandler)
	mux.HandleFunc("/api/v1/jobs/", s.jobHandler)
	mux.HandleFunc("/api/v1/stats", s.statsHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("Server.Start: API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server.Start: HTTP server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
