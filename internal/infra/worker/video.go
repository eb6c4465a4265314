package worker

import (
	"context"
	"fmt"
	"time"

	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/repository"
	"ai-media-worker/internal/infra/metrics"
)

// Video generation is a state machine persisted entirely in the job payload,
// so a single generation survives many claim → partial-work → release cycles
// on possibly different workers:
//
//	NotStarted (no operationName) → Polling (operationName set, not ready)
//	→ Ready → terminal.
//
// Each non-terminal step reschedules the job to pending WITHOUT touching
// attempts: polling cycles are normal progress, not failures.
const (
	videoInitialProgress = 10
	videoProgressStep    = 15
	// Progress saturates below 100 while polling; it is a soft backpressure
	// signal only, not a timeout.
	videoProgressCap = 95
)

func (e *Executor) handleVideoGeneration(ctx context.Context, job *model.Job) (*model.GenerationResult, error) {
	p, err := job.DecodeVideoGenerationPayload()
	if err != nil {
		return nil, err
	}
	if p.OperationName == "" {
		if err := e.startVideo(ctx, job, p); err != nil {
			return nil, err
		}
		return nil, errRequeued
	}
	return e.pollVideo(ctx, job, p)
}

// startVideo kicks off the external operation and suspends the job with the
// returned handle stored in its payload.
func (e *Executor) startVideo(ctx context.Context, job *model.Job, p *model.VideoGenerationPayload) error {
	start := time.Now()
	opName, err := e.gen.StartVideo(ctx, p.Model, p.Prompt)
	metrics.ObserveGenerationCall(providerLabel(p.Model), p.Model, "video_start", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return fmt.Errorf("start video: %w", err)
	}

	p.OperationName = opName
	payload, err := model.EncodePayload(p)
	if err != nil {
		return err
	}
	progress := job.Progress
	if progress < videoInitialProgress {
		progress = videoInitialProgress
	}
	return e.jobs.Requeue(ctx, job.ID, repository.Reschedule{
		Status:       model.JobStatusPending,
		Progress:     &progress,
		Payload:      payload,
		ScheduledFor: time.Now().Add(e.videoPollInterval),
	})
}

// pollVideo checks the stored operation. Not ready: bump progress and
// suspend again, payload untouched. The operation handle must survive
// verbatim or the external operation is orphaned and the job stalls forever.
func (e *Executor) pollVideo(ctx context.Context, job *model.Job, p *model.VideoGenerationPayload) (*model.GenerationResult, error) {
	start := time.Now()
	poll, err := e.gen.PollVideo(ctx, p.OperationName)
	metrics.ObserveGenerationCall(providerLabel(p.Model), p.Model, "video_poll", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("poll video: %w", err)
	}

	if !poll.Done {
		progress := job.Progress + videoProgressStep
		if progress > videoProgressCap {
			progress = videoProgressCap
		}
		if err := e.jobs.Requeue(ctx, job.ID, repository.Reschedule{
			Status:       model.JobStatusPending,
			Progress:     &progress,
			ScheduledFor: time.Now().Add(e.videoPollInterval),
		}); err != nil {
			return nil, err
		}
		return nil, errRequeued
	}

	return e.persistArtifact(ctx, job, p.OwnerID, "video", poll.Artifact)
}
