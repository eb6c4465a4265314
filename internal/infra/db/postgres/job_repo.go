package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/repository"
)

// NotifyChannel is the pg_notify channel fired on every enqueue so idle
// workers wake without waiting for their fallback poll.
const NotifyChannel = "media_jobs"

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, type, payload, status, attempts, max_attempts, progress,
scheduled_for, locked_by, locked_at, error, result, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var typeStr, statusStr string
	var result []byte
	err := row.Scan(
		&j.ID, &typeStr, &j.Payload, &statusStr, &j.Attempts, &j.MaxAttempts, &j.Progress,
		&j.ScheduledFor, &j.LockedBy, &j.LockedAt, &j.Error, &result, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Type = model.JobType(typeStr)
	j.Status = model.JobStatus(statusStr)
	if len(result) > 0 {
		var r model.GenerationResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		j.Result = &r
	}
	return &j, nil
}

func (r *jobRepo) Enqueue(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.Attempts == 0 {
		job.Attempts = 1 // creation counts as the first attempt
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	now := time.Now()
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	const q = `
INSERT INTO generation_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL, '', NULL, $9, $10);`

	_, err := execSQL(ctx, r.pool, nil, q,
		job.ID, string(job.Type), job.Payload, string(job.Status),
		job.Attempts, job.MaxAttempts, job.Progress, job.ScheduledFor,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, nil, `SELECT pg_notify($1, $2);`, NotifyChannel, job.ID)
	return err
}

// Claim atomically locks the oldest eligible pending job for workerID.
// The SELECT ... FOR UPDATE SKIP LOCKED row lock is the single serialization
// point for the whole fleet: at most one transaction wins a given row, every
// other claimer skips it and keeps looking.
func (r *jobRepo) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE status = 'pending' AND scheduled_for <= now()
ORDER BY scheduled_for
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNoJobAvailable
			}
			return err
		}

		now := time.Now()
		const lockQuery = `
UPDATE generation_jobs
SET status = 'active', locked_by = $2, locked_at = $3, updated_at = $3
WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, lockQuery, fetched.ID, workerID, now); err != nil {
			return err
		}

		fetched.Status = model.JobStatusActive
		fetched.LockedBy = &workerID
		fetched.LockedAt = &now
		fetched.UpdatedAt = now
		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) UpdateProgress(ctx context.Context, id string, progress int) error {
	// GREATEST keeps progress non-decreasing even under racy updates.
	const q = `
UPDATE generation_jobs
SET progress = GREATEST(progress, $2), updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, id, progress)
	return err
}

func (r *jobRepo) Requeue(ctx context.Context, id string, res repository.Reschedule) error {
	const q = `
UPDATE generation_jobs
SET status = $2,
    progress = COALESCE($3, progress),
    payload = COALESCE($4::jsonb, payload),
    scheduled_for = $5,
    locked_by = NULL,
    locked_at = NULL,
    updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, id, string(res.Status), res.Progress, res.Payload, res.ScheduledFor)
	return err
}

func (r *jobRepo) Complete(ctx context.Context, id string, result *model.GenerationResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	const q = `
UPDATE generation_jobs
SET status = 'completed', progress = 100, result = $2, error = '',
    locked_by = NULL, locked_at = NULL, updated_at = now()
WHERE id = $1;`
	_, err = execSQL(ctx, r.pool, nil, q, id, b)
	return err
}

func (r *jobRepo) Fail(ctx context.Context, id string, errMsg string) error {
	const q = `
UPDATE generation_jobs
SET status = 'failed', error = $2,
    locked_by = NULL, locked_at = NULL, updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, id, errMsg)
	return err
}

func (r *jobRepo) ScheduleRetry(ctx context.Context, id string, errMsg string, attempts int, runAt time.Time, payloadOverride json.RawMessage) error {
	const q = `
UPDATE generation_jobs
SET status = 'pending', error = $2, attempts = $3, scheduled_for = $4,
    payload = COALESCE($5::jsonb, payload), progress = 0,
    locked_by = NULL, locked_at = NULL, updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, id, errMsg, attempts, runAt, payloadOverride)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}
