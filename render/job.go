// Package render turns personalized book content into raster page images: a
// durable job queue, a bounded worker pool and a headless-browser engine.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wawbook/personalize"
)

// Status is the job state machine: pending -> processing -> completed or
// failed. Processing jobs past the staleness threshold are claimable again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a job will not change state again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one render request. Mutated by exactly one worker while processing.
type Job struct {
	ID      string
	BookID  string
	Context personalize.Context
	// Restricts re-rendering to dedication pages.
	DedicationOnly bool
	Priority       int

	Status    Status
	Progress  int
	PageCount int
	// page index -> object store locator, the result payload
	Pages map[int]string
	Error string

	Worker     string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	ExpiresAt  time.Time
}

// Request is the enqueue surface.
type Request struct {
	BookID         string
	Context        personalize.Context
	DedicationOnly bool
	Priority       int
}

// JobStore is the durable queue. Claim is atomic: under concurrent claim
// attempts for one eligible job exactly one succeeds, the rest observe no
// eligible job (nil, nil).
type JobStore interface {
	Enqueue(ctx context.Context, job *Job) error
	Claim(ctx context.Context, worker string, staleAfter time.Duration) (*Job, error)
	UpdateProgress(ctx context.Context, id string, progress, pageCount int) error
	Complete(ctx context.Context, id string, pages map[int]string) error
	Fail(ctx context.Context, id string, errMsg string) error
	Get(ctx context.Context, id string) (*Job, error)
	// Sweep deletes terminal jobs past their expiry, returning the count.
	Sweep(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Enqueue builds a job from a request and persists it.
func Enqueue(ctx context.Context, store JobStore, req *Request, expireAfter time.Duration) (*Job, error) {
	if len(req.BookID) == 0 {
		return nil, fmt.Errorf("render request without book id")
	}
	now := time.Now().UTC()
	job := &Job{
		ID:             uuid.NewString(),
		BookID:         req.BookID,
		Context:        req.Context,
		DedicationOnly: req.DedicationOnly,
		Priority:       req.Priority,
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(expireAfter),
	}
	if err := store.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueueing render job: %w", err)
	}
	return job, nil
}

// Wire helpers shared by the store backends.

func marshalContext(ctx *personalize.Context) (string, error) {
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("marshaling personalization context: %w", err)
	}
	return string(data), nil
}

func unmarshalContext(data string, ctx *personalize.Context) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal([]byte(data), ctx); err != nil {
		return fmt.Errorf("unmarshaling personalization context: %w", err)
	}
	return nil
}

func marshalPages(pages map[int]string) (string, error) {
	if pages == nil {
		return "", nil
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return "", fmt.Errorf("marshaling result payload: %w", err)
	}
	return string(data), nil
}

func unmarshalPages(data string) (map[int]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	pages := make(map[int]string)
	if err := json.Unmarshal([]byte(data), &pages); err != nil {
		return nil, fmt.Errorf("unmarshaling result payload: %w", err)
	}
	return pages, nil
}
