package render

import (
	"context"
	"sync"
	"testing"
	"time"

	"wawbook/personalize"
)

func testStore(t *testing.T) *SqliteStore {
	t.Helper()
	s, err := NewSqliteStore("")
	if err != nil {
		t.Fatalf("NewSqliteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueueJob(t *testing.T, s *SqliteStore, bookID string, priority int) *Job {
	t.Helper()
	job, err := Enqueue(context.Background(), s, &Request{
		BookID:   bookID,
		Priority: priority,
		Context: personalize.Context{
			Variables: map[string]string{"childName": "Alice"},
		},
	}, time.Hour)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func TestEnqueueGetRoundTrip(t *testing.T) {
	s := testStore(t)
	job := enqueueJob(t, s, "book-1", 3)

	got, err := s.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BookID != "book-1" || got.Priority != 3 || got.Status != StatusPending {
		t.Fatalf("job = %+v", got)
	}
	if got.Context.Variables["childName"] != "Alice" {
		t.Fatalf("context lost: %+v", got.Context)
	}
}

func TestClaimExclusivity(t *testing.T) {
	s := testStore(t)
	enqueueJob(t, s, "book-1", 0)

	const attempts = 8
	var wg sync.WaitGroup
	claimed := make(chan *Job, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := s.Claim(context.Background(), "w", time.Hour)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if job != nil {
				claimed <- job
			}
		}()
	}
	wg.Wait()
	close(claimed)

	var winners int
	for range claimed {
		winners++
	}
	if winners != 1 {
		t.Fatalf("claims succeeded = %d, want exactly 1", winners)
	}
}

func TestClaimPriorityOrder(t *testing.T) {
	s := testStore(t)
	enqueueJob(t, s, "low", 0)
	high := enqueueJob(t, s, "high", 5)

	job, err := s.Claim(context.Background(), "w", time.Hour)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != high.ID {
		t.Fatalf("claimed %+v, want the high priority job", job)
	}
}

func TestClaimNothingEligible(t *testing.T) {
	s := testStore(t)

	job, err := s.Claim(context.Background(), "w", time.Hour)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job != nil {
		t.Fatalf("claimed %+v from an empty queue", job)
	}
}

func TestStaleReclaim(t *testing.T) {
	s := testStore(t)
	enqueueJob(t, s, "book-1", 0)

	first, err := s.Claim(context.Background(), "w1", time.Hour)
	if err != nil || first == nil {
		t.Fatalf("first claim = %+v, %v", first, err)
	}

	// still within the staleness window
	second, err := s.Claim(context.Background(), "w2", time.Hour)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if second != nil {
		t.Fatalf("claimed a fresh processing job: %+v", second)
	}

	// zero staleness makes the processing job immediately reclaimable
	time.Sleep(1100 * time.Millisecond)
	reclaimed, err := s.Claim(context.Background(), "w2", time.Second)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != first.ID {
		t.Fatalf("reclaimed = %+v, want the stale job", reclaimed)
	}
	if reclaimed.Worker != "w2" {
		t.Fatalf("worker = %q, want w2", reclaimed.Worker)
	}
}

func TestCompleteAndFail(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	done := enqueueJob(t, s, "book-1", 0)
	if err := s.Complete(ctx, done.ID, map[int]string{0: "book-1/p0.png", 1: "book-1/p1.png"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := s.Get(ctx, done.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompleted || got.Pages[1] != "book-1/p1.png" {
		t.Fatalf("job = %+v", got)
	}

	broken := enqueueJob(t, s, "book-2", 0)
	if err := s.Fail(ctx, broken.ID, "browser crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, err = s.Get(ctx, broken.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "browser crashed" {
		t.Fatalf("job = %+v", got)
	}
}

func TestSweepExpiredTerminalJobs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	expired := enqueueJob(t, s, "book-1", 0)
	if err := s.Complete(ctx, expired.ID, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	pending := enqueueJob(t, s, "book-2", 0)

	n, err := s.Sweep(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if _, err := s.Get(ctx, expired.ID); err == nil {
		t.Fatal("expired job still present")
	}
	if _, err := s.Get(ctx, pending.ID); err != nil {
		t.Fatalf("pending job swept: %v", err)
	}
}

func TestProgressUpdates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := enqueueJob(t, s, "book-1", 0)
	if err := s.UpdateProgress(ctx, job.ID, 3, 24); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Progress != 3 || got.PageCount != 24 {
		t.Fatalf("progress = %d/%d", got.Progress, got.PageCount)
	}
}
