// Package queue implements the offline sync queue core: payload
// normalization, single-attempt delivery with outcome classification, and
// the single-flight drain processor.
package queue

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/syncrelay/syncrelay/internal/models"
)

// NormalizeJob validates an untrusted enqueue payload and canonicalizes it
// into a Job. It returns nil when the payload is rejected: the enqueue path
// is fire-and-forget, so rejection is logged but never surfaced to the
// caller.
//
// A payload is admitted only if it is a JSON object whose token and
// endpoint are non-empty strings and whose body is a non-null object.
// Missing optional fields are defaulted: id to a fresh UUID, createdAt to
// the current time, attemptCount to 0.
func NormalizeJob(raw json.RawMessage) *models.Job {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		slog.Debug("NormalizeJob: payload is not an object", "error", err)
		return nil
	}

	token, ok := stringField(fields, "token")
	if !ok || token == "" {
		slog.Debug("NormalizeJob: rejected", "reason", models.ErrEmptyToken)
		return nil
	}
	endpoint, ok := stringField(fields, "endpoint")
	if !ok || endpoint == "" {
		slog.Debug("NormalizeJob: rejected", "reason", models.ErrEmptyEndpoint)
		return nil
	}
	body, ok := fields["body"]
	if !ok || !isJSONObject(body) {
		slog.Debug("NormalizeJob: rejected", "reason", models.ErrInvalidBody)
		return nil
	}

	job := &models.Job{
		Token:    token,
		Endpoint: endpoint,
		Body:     body,
	}

	if id, ok := stringField(fields, "id"); ok && id != "" {
		job.ID = id
	} else {
		job.ID = uuid.NewString()
	}

	if createdAt, ok := intField(fields, "createdAt"); ok {
		job.CreatedAt = createdAt
	} else {
		job.CreatedAt = time.Now().UnixMilli()
	}

	if attempts, ok := intField(fields, "attemptCount"); ok && attempts > 0 {
		job.AttemptCount = int(attempts)
	}

	if v, ok := intField(fields, "schemaVersion"); ok {
		sv := int(v)
		job.SchemaVersion = &sv
	}
	if v, ok := stringField(fields, "originStepId"); ok && v != "" {
		job.OriginStepID = &v
	}

	return job
}

// stringField extracts a string-typed field; ok is false when the field is
// absent or not a string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, present := fields[key]
	if !present {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// intField extracts a numeric field, truncating to int64.
func intField(fields map[string]json.RawMessage, key string) (int64, bool) {
	raw, present := fields[key]
	if !present {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return int64(f), true
}

// isJSONObject reports whether raw is a JSON object literal (not null, not
// an array or scalar).
func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
