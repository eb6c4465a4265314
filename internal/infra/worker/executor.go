package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/adapter"
	"ai-media-worker/internal/domain/ports/repository"
	"ai-media-worker/internal/infra/metrics"
)

// errRequeued is the handler sentinel meaning "this job has already been
// rescheduled; do not mark it completed or failed".
var errRequeued = errors.New("job requeued for another cycle")

// Executor routes a claimed job to its type handler and interprets the
// outcome uniformly: a terminal result is persisted via Complete, the
// requeued sentinel is left alone, and any error goes through the retry
// policy. No failure of any kind propagates out of Execute.
type Executor struct {
	jobs              repository.JobRepository
	assets            repository.AssetRepository
	gen               adapter.GenerationAdapter
	videoPollInterval time.Duration
	baseRetryDelay    time.Duration
	log               *zerolog.Logger
}

func NewExecutor(
	jobs repository.JobRepository,
	assets repository.AssetRepository,
	gen adapter.GenerationAdapter,
	videoPollInterval time.Duration,
	baseRetryDelay time.Duration,
	logger *zerolog.Logger,
) *Executor {
	l := logger.With().Str("component", "Executor").Logger()
	return &Executor{
		jobs:              jobs,
		assets:            assets,
		gen:               gen,
		videoPollInterval: videoPollInterval,
		baseRetryDelay:    baseRetryDelay,
		log:               &l,
	}
}

// Execute processes one claimed job to an outcome. It never returns an
// error; the worker loop must keep running whatever happens in here.
func (e *Executor) Execute(ctx context.Context, job *model.Job) {
	log := e.log.With().Str("job_id", job.ID).Str("type", string(job.Type)).Logger()
	start := time.Now()

	result, err := e.dispatch(ctx, job)
	latency := time.Since(start)

	switch {
	case errors.Is(err, errRequeued):
		log.Debug().Dur("duration", latency).Msg("job suspended for another cycle")
	case err != nil:
		e.handleFailure(ctx, job, err, &log)
	default:
		if err := e.jobs.Complete(ctx, job.ID, result); err != nil {
			log.Error().Err(err).Msg("could not persist completed job")
			return
		}
		metrics.IncJobProcessed(string(job.Type), string(model.JobStatusCompleted))
		log.Info().Dur("duration", latency).Str("asset_id", result.AssetID).Msg("job completed")
	}
}

func (e *Executor) dispatch(ctx context.Context, job *model.Job) (result *model.GenerationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	switch job.Type {
	case model.JobTypeImageGeneration:
		return e.handleImageGeneration(ctx, job)
	case model.JobTypeImageEdit:
		return e.handleImageEdit(ctx, job)
	case model.JobTypeVideoGeneration:
		return e.handleVideoGeneration(ctx, job)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedJobType, job.Type)
	}
}

func (e *Executor) handleImageGeneration(ctx context.Context, job *model.Job) (*model.GenerationResult, error) {
	p, err := job.DecodeImageGenerationPayload()
	if err != nil {
		return nil, err
	}
	_ = e.jobs.UpdateProgress(ctx, job.ID, 25)

	start := time.Now()
	art, err := e.gen.GenerateImage(ctx, p.Model, p.Prompt)
	metrics.ObserveGenerationCall(providerLabel(p.Model), p.Model, "image", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return e.persistArtifact(ctx, job, p.OwnerID, "image", art)
}

func (e *Executor) handleImageEdit(ctx context.Context, job *model.Job) (*model.GenerationResult, error) {
	p, err := job.DecodeImageEditPayload()
	if err != nil {
		return nil, err
	}
	if len(p.SourceImage) == 0 {
		return nil, fmt.Errorf("%w: image-edit payload has no source image", domain.ErrInvalidArgument)
	}
	_ = e.jobs.UpdateProgress(ctx, job.ID, 25)

	start := time.Now()
	art, err := e.gen.EditImage(ctx, p.Model, p.Prompt, p.SourceImage, p.SourceMIME)
	metrics.ObserveGenerationCall(providerLabel(p.Model), p.Model, "edit", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}
	return e.persistArtifact(ctx, job, p.OwnerID, "image", art)
}

func (e *Executor) persistArtifact(ctx context.Context, job *model.Job, ownerID, kind string, art *adapter.Artifact) (*model.GenerationResult, error) {
	asset := &model.Asset{
		JobID:    job.ID,
		OwnerID:  ownerID,
		Kind:     kind,
		MIMEType: art.MIMEType,
		Data:     art.Data,
		Provider: art.Provider,
		Model:    art.Model,
	}
	if err := e.assets.Save(ctx, asset); err != nil {
		return nil, fmt.Errorf("persist asset: %w", err)
	}
	return &model.GenerationResult{
		AssetID:  asset.ID,
		MIMEType: art.MIMEType,
		Provider: art.Provider,
		Model:    art.Model,
		SizeByte: len(art.Data),
	}, nil
}

// handleFailure implements the retry policy. Attempts count executions:
// jobs are enqueued with attempts=1, so a job with maxAttempts=3 runs at
// most three times and is retried at most twice.
func (e *Executor) handleFailure(ctx context.Context, job *model.Job, handlerErr error, log *zerolog.Logger) {
	if job.Attempts < job.MaxAttempts {
		delay := RetryDelay(e.baseRetryDelay, job.Attempts)

		// Video jobs restart from scratch: a possibly-corrupt external
		// operation must not be resumed on the next attempt.
		var payloadOverride json.RawMessage
		if job.Type == model.JobTypeVideoGeneration {
			if p, decErr := job.DecodeVideoGenerationPayload(); decErr == nil && p.OperationName != "" {
				p.OperationName = ""
				payloadOverride, _ = model.EncodePayload(p)
			}
		}

		runAt := time.Now().Add(delay)
		if err := e.jobs.ScheduleRetry(ctx, job.ID, handlerErr.Error(), job.Attempts+1, runAt, payloadOverride); err != nil {
			log.Error().Err(err).Msg("could not schedule retry")
			return
		}
		metrics.IncJobRetry(string(job.Type))
		log.Warn().Err(handlerErr).
			Int("attempt", job.Attempts).
			Dur("retry_in", delay).
			Bool("will_retry", true).
			Msg("job failed, retry scheduled")
		return
	}

	if err := e.jobs.Fail(ctx, job.ID, handlerErr.Error()); err != nil {
		log.Error().Err(err).Msg("could not persist failed job")
		return
	}
	metrics.IncJobProcessed(string(job.Type), string(model.JobStatusFailed))
	log.Error().Err(handlerErr).
		Int("attempt", job.Attempts).
		Bool("will_retry", false).
		Msg("job failed terminally")
}

// RetryDelay computes the backoff before the next attempt after n attempts
// have failed: delay = base × n². Quadratic in attempts, strictly
// increasing (base, 4×base, 9×base, ...).
func RetryDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return base * time.Duration(attempts*attempts)
}

func providerLabel(model string) string {
	l := strings.ToLower(model)
	if strings.HasPrefix(l, "dall-e") || strings.HasPrefix(l, "gpt") {
		return "openai"
	}
	return "gemini"
}
