// Package api provides HTTP handlers for SyncRelay endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/syncrelay/syncrelay/internal/models"
)

// queueHandler accepts a candidate job and enqueues it. The payload may be
// either a bare job object or a tagged control envelope; both map to the
// same normalize-persist-drain path. Enqueue is fire-and-forget, so the
// handler answers 202 whether or not validation admitted the job; only
// unparseable JSON is rejected outright.
func (s *Server) queueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.queueHandler: processing enqueue request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.queueHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		slog.Warn("Server.queueHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	payload := raw
	var envelope models.ControlMessage
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Source == models.MessageSource {
		if envelope.Type != models.ControlTypeQueue {
			slog.Warn("Server.queueHandler: unexpected control type", "type", envelope.Type)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Unexpected control message type"))
			return
		}
		payload = envelope.Payload
	}

	s.processor.Enqueue(r.Context(), payload)
	writeJSONResponse(w, http.StatusAccepted, models.Success(nil))
}

// flushHandler triggers an immediate drain attempt without enqueuing
// anything new. Concurrent flushes collapse into the in-flight pass.
func (s *Server) flushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.flushHandler: processing flush request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.flushHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// The pass outlives the request: a client that disconnects mid-flush
	// must not abort an in-flight delivery, or a PATCH the endpoint would
	// have accepted gets misread as a transport failure.
	stats := s.processor.Drain(context.WithoutCancel(r.Context()))
	slog.Info("Server.flushHandler: drain completed",
		"delivered", stats.Delivered, "failed", stats.Failed, "halted", stats.Halted)
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// eventsHandler streams outcome notifications to the client as server-sent
// events. Each event is one tagged notification envelope.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Server.eventsHandler: response writer does not support streaming")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming unsupported"))
		return
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Debug("Server.eventsHandler: client attached")
	for {
		select {
		case <-r.Context().Done():
			slog.Debug("Server.eventsHandler: client detached")
			return
		case n, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				slog.Error("Server.eventsHandler: failed to marshal notification", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// jobView is the inspection shape of a queued job. The bearer token is a
// credential and stays out of API responses.
type jobView struct {
	ID            string          `json:"id"`
	Endpoint      string          `json:"endpoint"`
	Body          json.RawMessage `json:"body"`
	CreatedAt     int64           `json:"createdAt"`
	AttemptCount  int             `json:"attemptCount"`
	SchemaVersion *int            `json:"schemaVersion"`
	OriginStepID  *string         `json:"originStepId"`
}

// jobHandler returns one queued job by id.
func (s *Server) jobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid job id"))
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		slog.Error("Server.jobHandler: get failed", "id", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read job"))
		return
	}
	if job == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Job not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(jobView{
		ID:            job.ID,
		Endpoint:      job.Endpoint,
		Body:          job.Body,
		CreatedAt:     job.CreatedAt,
		AttemptCount:  job.AttemptCount,
		SchemaVersion: job.SchemaVersion,
		OriginStepID:  job.OriginStepID,
	}))
}

// statsHandler reports the current queue depth.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	depth, err := s.store.CountJobs(r.Context())
	if err != nil {
		slog.Error("Server.statsHandler: count failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read queue depth"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"depth": depth}))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"state": "healthy"}))
}
