// Package models defines the core data structures for SyncRelay.
//
// It includes the durable Job record, delivery outcome classification, and
// the control/notification message envelopes shared across modules.
package models

import (
	"encoding/json"
	"errors"
)

// MessageSource tags every control and notification message exchanged with
// clients so receivers can filter unrelated traffic on a shared channel.
const MessageSource = "onboarding-offline-queue"

// Control message types accepted from clients.
const (
	// ControlTypeQueue carries a candidate job payload to enqueue.
	ControlTypeQueue = "onboarding.persist.queue"
	// ControlTypeFlush requests an immediate drain without enqueuing.
	ControlTypeFlush = "onboarding.persist.flush"
)

// Notification types broadcast to clients.
const (
	// NotifyTypeSynced reports a successful delivery.
	NotifyTypeSynced = "onboarding.persist.synced"
	// NotifyTypeFailed reports a terminal delivery failure.
	NotifyTypeFailed = "onboarding.persist.failed"
	// NotifyTypeSyncError reports a transport failure that will be retried.
	NotifyTypeSyncError = "onboarding.persist.sync-error"
)

// Error variables for better error handling and testability
var (
	ErrEmptyToken    = errors.New("job token cannot be empty")
	ErrEmptyEndpoint = errors.New("job endpoint cannot be empty")
	ErrInvalidBody   = errors.New("job body must be a non-null object")
)

// Job is one durable unit of queued work: a deferred authenticated PATCH
// request. Seq is assigned by the store and orders the queue; it is not
// part of the wire shape.
type Job struct {
	ID            string          `json:"id"`
	Token         string          `json:"token"`
	Endpoint      string          `json:"endpoint"`
	Body          json.RawMessage `json:"body"`
	CreatedAt     int64           `json:"createdAt"`
	AttemptCount  int             `json:"attemptCount"`
	SchemaVersion *int            `json:"schemaVersion"`
	OriginStepID  *string         `json:"originStepId"`
	Seq           int64           `json:"-"`
}

// DeliveryOutcome classifies the result of one delivery attempt.
type DeliveryOutcome string

const (
	// DeliverySuccess indicates the endpoint accepted the job.
	DeliverySuccess DeliveryOutcome = "success"
	// DeliveryRetry indicates a transient failure; the job stays queued.
	DeliveryRetry DeliveryOutcome = "retry"
	// DeliveryFailed indicates a terminal failure; the job is discarded.
	DeliveryFailed DeliveryOutcome = "failed"
)

// DeliveryResult carries the classified outcome of one delivery attempt.
// Status is 0 when the request never completed (transport failure);
// Message is set only for transport failures.
type DeliveryResult struct {
	Outcome DeliveryOutcome
	Status  int
	Message string
}

// Transport reports whether the result describes a failure where the
// request never completed, as opposed to an HTTP error response.
func (r DeliveryResult) Transport() bool {
	return r.Outcome == DeliveryRetry && r.Status == 0
}

// ControlMessage is the tagged envelope for inbound client requests.
type ControlMessage struct {
	Source  string          `json:"source"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notification is the tagged envelope broadcast to all connected clients.
type Notification struct {
	Source  string        `json:"source"`
	Type    string        `json:"type"`
	Payload NotifyPayload `json:"payload"`
}

// NotifyPayload identifies the job a notification refers to. Status and
// Retryable are present on failure variants; Message only on transport
// failures.
type NotifyPayload struct {
	ID        string `json:"id"`
	Endpoint  string `json:"endpoint"`
	Status    *int   `json:"status,omitempty"`
	Retryable *bool  `json:"retryable,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SyncedNotification builds the broadcast for a successful delivery.
func SyncedNotification(job Job) Notification {
	return Notification{
		Source: MessageSource,
		Type:   NotifyTypeSynced,
		Payload: NotifyPayload{
			ID:       job.ID,
			Endpoint: job.Endpoint,
		},
	}
}

// FailedNotification builds the broadcast for a terminal delivery failure.
func FailedNotification(job Job, status int) Notification {
	retryable := false
	return Notification{
		Source: MessageSource,
		Type:   NotifyTypeFailed,
		Payload: NotifyPayload{
			ID:        job.ID,
			Endpoint:  job.Endpoint,
			Status:    &status,
			Retryable: &retryable,
		},
	}
}

// SyncErrorNotification builds the broadcast for a transport failure that
// leads to a retry.
func SyncErrorNotification(job Job, status int, message string) Notification {
	retryable := true
	return Notification{
		Source: MessageSource,
		Type:   NotifyTypeSyncError,
		Payload: NotifyPayload{
			ID:        job.ID,
			Endpoint:  job.Endpoint,
			Status:    &status,
			Retryable: &retryable,
			Message:   message,
		},
	}
}

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
