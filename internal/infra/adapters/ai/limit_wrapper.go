package ai

import (
	"context"

	"ai-media-worker/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GenerationAdapter = (*limitedGeneration)(nil)

type limitedGeneration struct {
	inner adapter.GenerationAdapter
	sem   chan struct{}
}

// NewLimitedGeneration caps concurrent provider calls with a semaphore.
// Protects provider-side connection quotas independently of the job-rate
// limiter, which caps starts per window, not simultaneous calls.
func NewLimitedGeneration(inner adapter.GenerationAdapter, maxConcurrent int) adapter.GenerationAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGeneration{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGeneration) GenerateImage(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.GenerateImage(ctx, model, prompt)
}

func (l *limitedGeneration) EditImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (*adapter.Artifact, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.EditImage(ctx, model, prompt, image, mimeType)
}

func (l *limitedGeneration) StartVideo(ctx context.Context, model, prompt string) (string, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.StartVideo(ctx, model, prompt)
}

func (l *limitedGeneration) PollVideo(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.PollVideo(ctx, operationName)
}
