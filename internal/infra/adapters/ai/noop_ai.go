package ai

import (
	"context"
	"fmt"
	"sync/atomic"

	"ai-media-worker/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*NoopAdapter)(nil)

// NoopAdapter fakes generation for dev mode: images return a tiny static
// payload immediately, videos become "ready" after a fixed number of polls.
type NoopAdapter struct {
	PollsUntilReady int
	polls           atomic.Int64
	ops             atomic.Int64
}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{PollsUntilReady: 2}
}

func (n *NoopAdapter) GenerateImage(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
	return &adapter.Artifact{Data: []byte("noop-image"), MIMEType: "image/png", Provider: "noop", Model: model}, nil
}

func (n *NoopAdapter) EditImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (*adapter.Artifact, error) {
	return &adapter.Artifact{Data: append([]byte("noop-edit:"), image...), MIMEType: mimeType, Provider: "noop", Model: model}, nil
}

func (n *NoopAdapter) StartVideo(ctx context.Context, model, prompt string) (string, error) {
	return fmt.Sprintf("models/%s/operations/noop-%d", model, n.ops.Add(1)), nil
}

func (n *NoopAdapter) PollVideo(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
	if int(n.polls.Add(1)) <= n.PollsUntilReady {
		return &adapter.VideoPoll{Done: false}, nil
	}
	return &adapter.VideoPoll{
		Done:     true,
		Artifact: &adapter.Artifact{Data: []byte("noop-video"), MIMEType: "video/mp4", Provider: "noop", Model: modelFromOperation(operationName)},
	}, nil
}
