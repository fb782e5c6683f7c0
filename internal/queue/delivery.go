package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/syncrelay/syncrelay/internal/models"
)

// DefaultDeliveryTimeout bounds a single delivery attempt.
const DefaultDeliveryTimeout = 30 * time.Second

// DeliveryTransport performs exactly one delivery attempt for a job and
// classifies the result. Implementations have no knowledge of the store or
// the queue.
type DeliveryTransport interface {
	Deliver(ctx context.Context, job models.Job) models.DeliveryResult
}

// Deliverer sends jobs to their endpoint as authenticated PATCH requests.
type Deliverer struct {
	client *http.Client
}

// Compile-time check that Deliverer implements DeliveryTransport.
var _ DeliveryTransport = (*Deliverer)(nil)

// NewDeliverer creates a Deliverer. A nil client gets a default with the
// standard delivery timeout.
func NewDeliverer(client *http.Client) *Deliverer {
	if client == nil {
		client = &http.Client{Timeout: DefaultDeliveryTimeout}
	}
	return &Deliverer{client: client}
}

// Deliver performs one PATCH attempt for the job and classifies the
// outcome. Transport errors (the request never completed) are retryable
// with status 0 and the error message attached; HTTP 408 and 5xx are
// retryable; any other non-2xx status is terminal.
func (d *Deliverer) Deliver(ctx context.Context, job models.Job) models.DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, job.Endpoint, bytes.NewReader(job.Body))
	if err != nil {
		slog.Warn("Deliverer.Deliver: failed to build request", "id", job.ID, "endpoint", job.Endpoint, "error", err)
		return models.DeliveryResult{Outcome: models.DeliveryRetry, Status: 0, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+job.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Warn("Deliverer.Deliver: transport failure", "id", job.ID, "endpoint", job.Endpoint, "error", err)
		return models.DeliveryResult{Outcome: models.DeliveryRetry, Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299

	// Opportunistic response parse, kept for parity with the original
	// client contract. The parsed value is never used; decode failures
	// only reach the log.
	if resp.StatusCode == http.StatusNoContent || (ok && strings.Contains(resp.Header.Get("Content-Type"), "json")) {
		var parsed interface{}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			slog.Debug("Deliverer.Deliver: response parse failed", "id", job.ID, "status", resp.StatusCode, "error", err)
		}
	}

	switch {
	case ok:
		slog.Debug("Deliverer.Deliver: delivered", "id", job.ID, "endpoint", job.Endpoint, "status", resp.StatusCode)
		return models.DeliveryResult{Outcome: models.DeliverySuccess, Status: resp.StatusCode}
	case RetryableStatus(resp.StatusCode):
		slog.Warn("Deliverer.Deliver: retryable server failure", "id", job.ID, "endpoint", job.Endpoint, "status", resp.StatusCode)
		return models.DeliveryResult{Outcome: models.DeliveryRetry, Status: resp.StatusCode}
	default:
		slog.Warn("Deliverer.Deliver: terminal failure", "id", job.ID, "endpoint", job.Endpoint, "status", resp.StatusCode)
		return models.DeliveryResult{Outcome: models.DeliveryFailed, Status: resp.StatusCode}
	}
}

// RetryableStatus reports whether an HTTP status warrants a retry:
// 408 (request timeout) and any 5xx. Everything else non-2xx is terminal.
func RetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || (status >= 500 && status <= 599)
}
