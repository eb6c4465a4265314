package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.GenerationAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements image generation via the official SDK. OpenAI has
// no resumable long-running video API in this integration, so the video
// operations report domain.ErrUnsupportedJobType and the provider router
// keeps video jobs on Gemini.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = string(openai.ImageModelDallE3)
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}, nil
}

func (o *OpenAIAdapter) GenerateImage(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
	if model == "" {
		model = o.model
	}
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, domain.ErrEmptyArtifact
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image payload: %w", err)
	}
	return &adapter.Artifact{
		Data:     data,
		MIMEType: "image/png",
		Provider: "openai",
		Model:    model,
	}, nil
}

func (o *OpenAIAdapter) EditImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (*adapter.Artifact, error) {
	return nil, fmt.Errorf("openai: image edit: %w", domain.ErrUnsupportedJobType)
}

func (o *OpenAIAdapter) StartVideo(ctx context.Context, model, prompt string) (string, error) {
	return "", fmt.Errorf("openai: video generation: %w", domain.ErrUnsupportedJobType)
}

func (o *OpenAIAdapter) PollVideo(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
	return nil, fmt.Errorf("openai: video generation: %w", domain.ErrUnsupportedJobType)
}
