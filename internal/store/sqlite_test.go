package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/syncrelay/syncrelay/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "queue.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(id, endpoint string) models.Job {
	return models.Job{
		ID:        id,
		Token:     "tok-" + id,
		Endpoint:  endpoint,
		Body:      []byte(`{"step":1}`),
		CreatedAt: 1700000000000,
	}
}

func TestSQLiteStorePutAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sv := 3
	origin := "step-profile"
	job := testJob("a", "/api/onboarding/1")
	job.SchemaVersion = &sv
	job.OriginStepID = &origin

	if err := s.PutJob(ctx, job); err != nil {
		t.Fatalf("PutJob failed: %v", err)
	}

	got, err := s.GetJob(ctx, "a")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetJob returned nil for existing job")
	}
	if got.Token != "tok-a" || got.Endpoint != "/api/onboarding/1" {
		t.Errorf("job fields not round-tripped: %+v", got)
	}
	if got.SchemaVersion == nil || *got.SchemaVersion != 3 {
		t.Errorf("SchemaVersion = %v, want 3", got.SchemaVersion)
	}
	if got.OriginStepID == nil || *got.OriginStepID != "step-profile" {
		t.Errorf("OriginStepID = %v, want step-profile", got.OriginStepID)
	}
	if string(got.Body) != `{"step":1}` {
		t.Errorf("Body = %s", got.Body)
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetJob for missing id = %+v, want nil", got)
	}
}

func TestSQLiteStoreFIFOOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"z", "m", "a"} {
		if err := s.PutJob(ctx, testJob(id, "/e/"+id)); err != nil {
			t.Fatalf("PutJob(%s) failed: %v", id, err)
		}
	}

	// Insertion order wins, not lexicographic id order.
	for _, want := range []string{"z", "m", "a"} {
		job, err := s.PeekOldestJob(ctx)
		if err != nil {
			t.Fatalf("PeekOldestJob failed: %v", err)
		}
		if job == nil || job.ID != want {
			t.Fatalf("PeekOldestJob = %+v, want id %s", job, want)
		}
		if err := s.RemoveJob(ctx, job.ID); err != nil {
			t.Fatalf("RemoveJob failed: %v", err)
		}
	}

	job, err := s.PeekOldestJob(ctx)
	if err != nil {
		t.Fatalf("PeekOldestJob failed: %v", err)
	}
	if job != nil {
		t.Errorf("queue should be empty, peeked %+v", job)
	}
}

func TestSQLiteStoreUpsertKeepsPosition(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := s.PutJob(ctx, testJob("first", "/e/1")); err != nil {
		t.Fatalf("PutJob failed: %v", err)
	}
	if err := s.PutJob(ctx, testJob("second", "/e/2")); err != nil {
		t.Fatalf("PutJob failed: %v", err)
	}

	// Re-enqueue the head with new fields; it must stay the head and hold
	// exactly one record.
	replacement := testJob("first", "/e/1-replaced")
	replacement.AttemptCount = 0
	if err := s.PutJob(ctx, replacement); err != nil {
		t.Fatalf("PutJob replacement failed: %v", err)
	}

	n, err := s.CountJobs(ctx)
	if err != nil {
		t.Fatalf("CountJobs failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountJobs = %d, want 2 (upsert must not duplicate)", n)
	}

	head, err := s.PeekOldestJob(ctx)
	if err != nil {
		t.Fatalf("PeekOldestJob failed: %v", err)
	}
	if head == nil || head.ID != "first" {
		t.Fatalf("head = %+v, want id first", head)
	}
	if head.Endpoint != "/e/1-replaced" {
		t.Errorf("head endpoint = %q, want last-write-wins replacement", head.Endpoint)
	}
}

func TestSQLiteStoreBumpJobAttempt(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := s.PutJob(ctx, testJob("a", "/e")); err != nil {
		t.Fatalf("PutJob failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := s.BumpJobAttempt(ctx, "a")
		if err != nil {
			t.Fatalf("BumpJobAttempt failed: %v", err)
		}
		if got != want {
			t.Errorf("BumpJobAttempt = %d, want %d", got, want)
		}
	}

	job, err := s.GetJob(ctx, "a")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.AttemptCount != 3 {
		t.Errorf("AttemptCount = %d, want 3", job.AttemptCount)
	}
}

func TestSQLiteStoreBumpMissingJob(t *testing.T) {
	s := newTestSQLiteStore(t)

	if _, err := s.BumpJobAttempt(context.Background(), "ghost"); err == nil {
		t.Error("BumpJobAttempt on missing job should fail")
	}
}

func TestSQLiteStoreRemoveMissingIsNoop(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.RemoveJob(context.Background(), "ghost"); err != nil {
		t.Errorf("RemoveJob on missing id should be a no-op, got %v", err)
	}
}

func TestSQLiteStoreOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "queue.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := s1.PutJob(ctx, testJob("persist", "/e")); err != nil {
		t.Fatalf("PutJob failed: %v", err)
	}
	s1.Close()

	// Second open must not recreate the schema or lose records.
	s2, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s2.Close()

	job, err := s2.GetJob(ctx, "persist")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job == nil {
		t.Error("job did not survive reopen")
	}
}
