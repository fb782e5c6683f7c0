package models

import (
	"encoding/json"
	"testing"
)

func TestSyncedNotification(t *testing.T) {
	job := Job{ID: "j1", Endpoint: "/api/steps/3"}
	n := SyncedNotification(job)

	if n.Source != MessageSource {
		t.Errorf("Source = %q, want %q", n.Source, MessageSource)
	}
	if n.Type != NotifyTypeSynced {
		t.Errorf("Type = %q, want %q", n.Type, NotifyTypeSynced)
	}
	if n.Payload.ID != "j1" || n.Payload.Endpoint != "/api/steps/3" {
		t.Errorf("Payload = %+v, want id/endpoint set", n.Payload)
	}
	if n.Payload.Status != nil || n.Payload.Retryable != nil {
		t.Error("synced payload should not carry status or retryable")
	}
}

func TestFailedNotification(t *testing.T) {
	job := Job{ID: "j2", Endpoint: "/api/steps/4"}
	n := FailedNotification(job, 404)

	if n.Type != NotifyTypeFailed {
		t.Errorf("Type = %q, want %q", n.Type, NotifyTypeFailed)
	}
	if n.Payload.Status == nil || *n.Payload.Status != 404 {
		t.Errorf("Status = %v, want 404", n.Payload.Status)
	}
	if n.Payload.Retryable == nil || *n.Payload.Retryable {
		t.Error("failed notification must be retryable=false")
	}
	if n.Payload.Message != "" {
		t.Errorf("failed notification should not carry a message, got %q", n.Payload.Message)
	}
}

func TestSyncErrorNotification(t *testing.T) {
	job := Job{ID: "j3", Endpoint: "/api/steps/5"}
	n := SyncErrorNotification(job, 0, "dial tcp: connection refused")

	if n.Type != NotifyTypeSyncError {
		t.Errorf("Type = %q, want %q", n.Type, NotifyTypeSyncError)
	}
	if n.Payload.Status == nil || *n.Payload.Status != 0 {
		t.Errorf("Status = %v, want 0", n.Payload.Status)
	}
	if n.Payload.Retryable == nil || !*n.Payload.Retryable {
		t.Error("sync-error notification must be retryable=true")
	}
	if n.Payload.Message != "dial tcp: connection refused" {
		t.Errorf("Message = %q", n.Payload.Message)
	}
}

func TestNotificationJSONOmitsEmptyFields(t *testing.T) {
	n := SyncedNotification(Job{ID: "j1", Endpoint: "/e"})
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, ok := decoded["payload"].(map[string]interface{})
	if !ok {
		t.Fatalf("payload missing in %s", data)
	}
	for _, key := range []string{"status", "retryable", "message"} {
		if _, present := payload[key]; present {
			t.Errorf("synced payload should omit %q: %s", key, data)
		}
	}
}

func TestDeliveryResultTransport(t *testing.T) {
	tests := []struct {
		name   string
		result DeliveryResult
		want   bool
	}{
		{"transport failure", DeliveryResult{Outcome: DeliveryRetry, Status: 0, Message: "timeout"}, true},
		{"server retryable", DeliveryResult{Outcome: DeliveryRetry, Status: 503}, false},
		{"terminal", DeliveryResult{Outcome: DeliveryFailed, Status: 404}, false},
		{"success", DeliveryResult{Outcome: DeliverySuccess, Status: 204}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Transport(); got != tt.want {
				t.Errorf("Transport() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success(map[string]int{"depth": 2})
	if ok.Status != string(APIStatusOK) {
		t.Errorf("Success status = %q", ok.Status)
	}

	withMsg := SuccessWithMessage("queued", nil)
	if withMsg.Message != "queued" || withMsg.Status != string(APIStatusOK) {
		t.Errorf("SuccessWithMessage = %+v", withMsg)
	}

	errResp := Error("bad request")
	if errResp.Status != string(APIStatusError) || errResp.Message != "bad request" {
		t.Errorf("Error = %+v", errResp)
	}
}
