package repository

import (
	"context"
	"encoding/json"
	"time"

	"ai-media-worker/internal/domain/model"
)

// Reschedule describes how a job returns to the queue without finishing.
// The lock is always released; fields left nil keep their stored value.
type Reschedule struct {
	Status       model.JobStatus
	Progress     *int
	Payload      json.RawMessage // nil = keep stored payload
	ScheduledFor time.Time
}

// JobRepository is the behavioral contract the worker core needs from the
// job store. Claim is the single correctness-critical operation: it must be
// atomic with at-most-one-winner semantics across every worker in the fleet.
type JobRepository interface {
	// Enqueue inserts a new pending job and notifies idle workers.
	Enqueue(ctx context.Context, job *model.Job) error

	// Claim atomically picks the oldest eligible pending job
	// (scheduled_for <= now), flips it to active and locks it for workerID.
	// Returns domain.ErrNoJobAvailable when nothing is claimable.
	Claim(ctx context.Context, workerID string) (*model.Job, error)

	// UpdateProgress bumps the progress percentage of an active job.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// Requeue releases the lock and reschedules the job per r. Used by the
	// video state machine to suspend a job between polling cycles.
	Requeue(ctx context.Context, id string, r Reschedule) error

	// Complete marks the job completed with its terminal result and
	// releases the lock.
	Complete(ctx context.Context, id string, result *model.GenerationResult) error

	// Fail marks the job terminally failed with the error message and
	// releases the lock.
	Fail(ctx context.Context, id string, errMsg string) error

	// ScheduleRetry returns the job to pending at runAt with the given
	// attempts count, recording errMsg and releasing the lock. A non-nil
	// payloadOverride replaces the stored payload (used to clear resumable
	// state such as a video operation handle before a fresh attempt).
	ScheduleRetry(ctx context.Context, id string, errMsg string, attempts int, runAt time.Time, payloadOverride json.RawMessage) error

	// FindByID loads a single job.
	FindByID(ctx context.Context, id string) (*model.Job, error)
}
