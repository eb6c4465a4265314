// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"strings"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*MultiAdapter)(nil)

// MultiAdapter routes each call to a provider by model prefix. Video always
// lands on whichever provider supports long-running operations (Gemini in
// the current wiring), since the operation handle format is provider-specific.
type MultiAdapter struct {
	defaultProvider string // e.g., "gemini" or "openai"
	byProvider      map[string]adapter.GenerationAdapter
}

func NewMultiAdapter(defaultProvider string, byProvider map[string]adapter.GenerationAdapter) *MultiAdapter {
	return &MultiAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
	}
}

func (m *MultiAdapter) resolveProvider(model string) string {
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "imagen"), strings.HasPrefix(l, "gemini"), strings.HasPrefix(l, "veo"):
		return "gemini"
	case strings.HasPrefix(l, "dall-e"), strings.HasPrefix(l, "gpt"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAdapter) pick(model string) adapter.GenerationAdapter {
	if a := m.byProvider[m.resolveProvider(model)]; a != nil {
		return a
	}
	// last resort: first available
	for _, a := range m.byProvider {
		if a != nil {
			return a
		}
	}
	return nil
}

func (m *MultiAdapter) GenerateImage(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
	a := m.pick(model)
	if a == nil {
		return nil, domain.ErrUnsupportedJobType
	}
	return a.GenerateImage(ctx, model, prompt)
}

func (m *MultiAdapter) EditImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (*adapter.Artifact, error) {
	a := m.pick(model)
	if a == nil {
		return nil, domain.ErrUnsupportedJobType
	}
	return a.EditImage(ctx, model, prompt, image, mimeType)
}

func (m *MultiAdapter) StartVideo(ctx context.Context, model, prompt string) (string, error) {
	a := m.pick(model)
	if a == nil {
		return "", domain.ErrUnsupportedJobType
	}
	return a.StartVideo(ctx, model, prompt)
}

func (m *MultiAdapter) PollVideo(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
	// Operation names are Gemini-shaped ("models/<model>/operations/<id>");
	// resolve by the embedded model so resumed polls land on the starter.
	a := m.pick(modelFromOperation(operationName))
	if a == nil {
		return nil, domain.ErrUnsupportedJobType
	}
	return a.PollVideo(ctx, operationName)
}
