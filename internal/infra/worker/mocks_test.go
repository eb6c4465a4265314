package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/adapter"
	"ai-media-worker/internal/domain/ports/repository"
)

// memJobRepo is a small in-memory job store used by unit tests. Claim is
// serialized by the mutex the same way the real store serializes on the row
// lock; it also records executions per job and any lock violations so tests
// can assert mutual exclusion.
type memJobRepo struct {
	mu         sync.Mutex
	jobs       map[string]*model.Job
	executions map[string]int
	violations int
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		jobs:       make(map[string]*model.Job),
		executions: make(map[string]int),
	}
}

func (m *memJobRepo) Enqueue(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.Attempts == 0 {
		job.Attempts = 1
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	now := time.Now()
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}
	job.CreatedAt = now
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var best *model.Job
	for _, j := range m.jobs {
		if j.Status != model.JobStatusPending || j.ScheduledFor.After(now) {
			continue
		}
		if best == nil || j.ScheduledFor.Before(best.ScheduledFor) {
			best = j
		}
	}
	if best == nil {
		return nil, domain.ErrNoJobAvailable
	}
	if best.LockedBy != nil {
		m.violations++
		return nil, fmt.Errorf("job %s already locked by %s", best.ID, *best.LockedBy)
	}
	best.Status = model.JobStatusActive
	best.LockedBy = &workerID
	best.LockedAt = &now
	m.executions[best.ID]++
	cp := *best
	return &cp, nil
}

func (m *memJobRepo) UpdateProgress(ctx context.Context, id string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

func (m *memJobRepo) Requeue(ctx context.Context, id string, r repository.Reschedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = r.Status
	if r.Progress != nil {
		j.Progress = *r.Progress
	}
	if r.Payload != nil {
		j.Payload = r.Payload
	}
	j.ScheduledFor = r.ScheduledFor
	j.LockedBy = nil
	j.LockedAt = nil
	return nil
}

func (m *memJobRepo) Complete(ctx context.Context, id string, result *model.GenerationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = model.JobStatusCompleted
	j.Progress = 100
	j.Result = result
	j.Error = ""
	j.LockedBy = nil
	j.LockedAt = nil
	return nil
}

func (m *memJobRepo) Fail(ctx context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = model.JobStatusFailed
	j.Error = errMsg
	j.LockedBy = nil
	j.LockedAt = nil
	return nil
}

func (m *memJobRepo) ScheduleRetry(ctx context.Context, id string, errMsg string, attempts int, runAt time.Time, payloadOverride json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = model.JobStatusPending
	j.Error = errMsg
	j.Attempts = attempts
	j.ScheduledFor = runAt
	j.Progress = 0
	if payloadOverride != nil {
		j.Payload = payloadOverride
	}
	j.LockedBy = nil
	j.LockedAt = nil
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// get returns the live job for assertions; use inside a single test goroutine.
func (m *memJobRepo) get(id string) model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

// makeClaimable rewinds scheduled_for so tests don't wait out retry delays.
func (m *memJobRepo) makeClaimable(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.ScheduledFor = time.Now().Add(-time.Millisecond)
	}
}

// memAssetRepo collects saved assets.
type memAssetRepo struct {
	mu     sync.Mutex
	assets []*model.Asset
}

func (m *memAssetRepo) Save(ctx context.Context, asset *model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if asset.ID == "" {
		asset.ID = fmt.Sprintf("asset-%d", len(m.assets)+1)
	}
	cp := *asset
	m.assets = append(m.assets, &cp)
	return nil
}

func (m *memAssetRepo) FindByJobID(ctx context.Context, jobID string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assets {
		if a.JobID == jobID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAssetRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

// fakeGen is a configurable generation adapter, one override per call.
type fakeGen struct {
	GenerateImageFunc func(ctx context.Context, model, prompt string) (*adapter.Artifact, error)
	EditImageFunc     func(ctx context.Context, model, prompt string, image []byte, mime string) (*adapter.Artifact, error)
	StartVideoFunc    func(ctx context.Context, model, prompt string) (string, error)
	PollVideoFunc     func(ctx context.Context, operationName string) (*adapter.VideoPoll, error)
}

func (f *fakeGen) GenerateImage(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
	if f.GenerateImageFunc != nil {
		return f.GenerateImageFunc(ctx, model, prompt)
	}
	return &adapter.Artifact{Data: []byte("img"), MIMEType: "image/png", Provider: "fake", Model: model}, nil
}

func (f *fakeGen) EditImage(ctx context.Context, model, prompt string, image []byte, mime string) (*adapter.Artifact, error) {
	if f.EditImageFunc != nil {
		return f.EditImageFunc(ctx, model, prompt, image, mime)
	}
	return &adapter.Artifact{Data: []byte("edit"), MIMEType: "image/png", Provider: "fake", Model: model}, nil
}

func (f *fakeGen) StartVideo(ctx context.Context, model, prompt string) (string, error) {
	if f.StartVideoFunc != nil {
		return f.StartVideoFunc(ctx, model, prompt)
	}
	return "models/fake/operations/op-1", nil
}

func (f *fakeGen) PollVideo(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
	if f.PollVideoFunc != nil {
		return f.PollVideoFunc(ctx, operationName)
	}
	return &adapter.VideoPoll{Done: false}, nil
}

// openLimiter always allows and counts consumption.
type openLimiter struct {
	mu    sync.Mutex
	count int64
}

func (l *openLimiter) CanProcess(ctx context.Context) adapter.RateCheck {
	return adapter.RateCheck{Allowed: true, Remaining: 1 << 30, Limit: 1 << 30}
}

func (l *openLimiter) Consume(ctx context.Context) {
	l.mu.Lock()
	l.count++
	l.mu.Unlock()
}

// fakeWake is a broadcastable wake signal for pool tests.
type fakeWake struct {
	mu   sync.Mutex
	wake chan struct{}
}

func newFakeWake() *fakeWake {
	return &fakeWake{wake: make(chan struct{})}
}

func (f *fakeWake) Start(ctx context.Context) {}

func (f *fakeWake) Wait(ctx context.Context, timeout time.Duration) {
	f.mu.Lock()
	ch := f.wake
	f.mu.Unlock()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
	case <-t.C:
	case <-ctx.Done():
	}
}

func (f *fakeWake) Broadcast() {
	f.mu.Lock()
	close(f.wake)
	f.wake = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeWake) Close() {}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
