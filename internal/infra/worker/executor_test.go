package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/adapter"
)

func newTestExecutor(jobs *memJobRepo, assets *memAssetRepo, gen adapter.GenerationAdapter) *Executor {
	return NewExecutor(jobs, assets, gen, 10*time.Millisecond, 10*time.Millisecond, testLogger())
}

func enqueueImageJob(t *testing.T, jobs *memJobRepo) *model.Job {
	t.Helper()
	payload, err := model.EncodePayload(&model.ImageGenerationPayload{
		Prompt:  "a lighthouse at dusk",
		Model:   "imagen-3.0-generate-002",
		OwnerID: "user-1",
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	job := &model.Job{Type: model.JobTypeImageGeneration, Payload: payload}
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

// claimAndExecute runs one full claim → execute cycle, rewinding the
// schedule first so retry delays don't stall the test.
func claimAndExecute(t *testing.T, jobs *memJobRepo, exec *Executor, id string) {
	t.Helper()
	jobs.makeClaimable(id)
	job, err := jobs.Claim(context.Background(), "w-test")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.ID != id {
		t.Fatalf("claimed job %s, want %s", job.ID, id)
	}
	exec.Execute(context.Background(), job)
}

func TestExecuteImageGenerationSuccess(t *testing.T) {
	jobs := newMemJobRepo()
	assets := &memAssetRepo{}
	exec := newTestExecutor(jobs, assets, &fakeGen{})

	job := enqueueImageJob(t, jobs)
	claimAndExecute(t, jobs, exec, job.ID)

	got := jobs.get(job.ID)
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %q)", got.Status, got.Error)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	if got.Result == nil || got.Result.AssetID == "" {
		t.Fatalf("result = %+v, want asset reference", got.Result)
	}
	if got.LockedBy != nil {
		t.Errorf("lock not released: %v", *got.LockedBy)
	}
	if assets.count() != 1 {
		t.Errorf("assets saved = %d, want 1", assets.count())
	}
	a, err := assets.FindByJobID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("find asset: %v", err)
	}
	if a.Kind != "image" || a.OwnerID != "user-1" {
		t.Errorf("asset = kind %q owner %q, want image/user-1", a.Kind, a.OwnerID)
	}
}

func TestExecuteBoundedRetries(t *testing.T) {
	jobs := newMemJobRepo()
	assets := &memAssetRepo{}
	gen := &fakeGen{
		GenerateImageFunc: func(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
			return nil, errors.New("provider unavailable")
		},
	}
	exec := newTestExecutor(jobs, assets, gen)

	job := enqueueImageJob(t, jobs)
	for i := 0; i < 10; i++ {
		if jobs.get(job.ID).Status == model.JobStatusFailed {
			break
		}
		claimAndExecute(t, jobs, exec, job.ID)
	}

	got := jobs.get(job.ID)
	if got.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
	// Three executions total: the original plus exactly two retries.
	if n := jobs.executions[job.ID]; n != 3 {
		t.Errorf("executions = %d, want 3", n)
	}
	if got.Error == "" {
		t.Error("terminal job has no error message")
	}
	if assets.count() != 0 {
		t.Errorf("assets saved = %d, want 0", assets.count())
	}

	// A terminally failed job must never be claimable again.
	jobs.makeClaimable(job.ID)
	if _, err := jobs.Claim(context.Background(), "w-test"); err == nil {
		t.Error("failed job was claimed again")
	}
}

func TestExecutePanicIsRetried(t *testing.T) {
	jobs := newMemJobRepo()
	gen := &fakeGen{
		GenerateImageFunc: func(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
			panic("boom")
		},
	}
	exec := newTestExecutor(jobs, &memAssetRepo{}, gen)

	job := enqueueImageJob(t, jobs)
	claimAndExecute(t, jobs, exec, job.ID)

	got := jobs.get(job.ID)
	if got.Status != model.JobStatusPending {
		t.Fatalf("status = %s, want pending retry", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
	if got.Error == "" {
		t.Error("retry has no recorded error")
	}
}

func TestExecuteUnsupportedTypeFailsTerminally(t *testing.T) {
	jobs := newMemJobRepo()
	exec := newTestExecutor(jobs, &memAssetRepo{}, &fakeGen{})

	job := &model.Job{Type: "audio-generation", Payload: []byte(`{}`), Attempts: 3, MaxAttempts: 3}
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimAndExecute(t, jobs, exec, job.ID)

	if got := jobs.get(job.ID); got.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestVideoRetryClearsOperationHandle(t *testing.T) {
	jobs := newMemJobRepo()
	gen := &fakeGen{
		PollVideoFunc: func(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
			return nil, errors.New("operation lookup failed")
		},
	}
	exec := newTestExecutor(jobs, &memAssetRepo{}, gen)

	payload, _ := model.EncodePayload(&model.VideoGenerationPayload{
		Prompt:        "waves",
		Model:         "veo-2.0-generate-001",
		OperationName: "models/veo-2.0-generate-001/operations/op-dead",
		OwnerID:       "user-1",
	})
	job := &model.Job{Type: model.JobTypeVideoGeneration, Payload: payload}
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimAndExecute(t, jobs, exec, job.ID)

	got := jobs.get(job.ID)
	if got.Status != model.JobStatusPending {
		t.Fatalf("status = %s, want pending retry", got.Status)
	}
	p, err := got.DecodeVideoGenerationPayload()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	// The next attempt must start from scratch, not resume a broken operation.
	if p.OperationName != "" {
		t.Errorf("operation handle survived retry: %q", p.OperationName)
	}
	if p.Prompt != "waves" {
		t.Errorf("prompt lost on retry: %q", p.Prompt)
	}
}

func TestRetryDelayStrictlyIncreasing(t *testing.T) {
	base := 5 * time.Second
	want := []time.Duration{5 * time.Second, 20 * time.Second, 45 * time.Second}
	prev := time.Duration(0)
	for i, w := range want {
		d := RetryDelay(base, i+1)
		if d != w {
			t.Errorf("RetryDelay(base, %d) = %v, want %v", i+1, d, w)
		}
		if d <= prev {
			t.Errorf("delay not strictly increasing at attempt %d: %v <= %v", i+1, d, prev)
		}
		prev = d
	}
	if RetryDelay(base, 0) != base {
		t.Errorf("RetryDelay clamps attempts below 1 to base, got %v", RetryDelay(base, 0))
	}
}
