// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements the generation port against the Google GenAI
// SDK: Imagen for image generation, Gemini image models for edits, Veo for
// video. Video runs as a long-running operation; StartVideo returns only the
// operation name so callers can persist it and poll later from any process.
type GeminiAdapter struct {
	client *genai.Client
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c}, nil
}

func (g *GeminiAdapter) GenerateImage(ctx context.Context, model, prompt string) (*adapter.Artifact, error) {
	resp, err := g.client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, domain.ErrEmptyArtifact
	}
	img := resp.GeneratedImages[0].Image
	return &adapter.Artifact{
		Data:     img.ImageBytes,
		MIMEType: mimeOrDefault(img.MIMEType, "image/png"),
		Provider: "gemini",
		Model:    model,
	}, nil
}

func (g *GeminiAdapter) EditImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (*adapter.Artifact, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeOrDefault(mimeType, "image/png"), Data: image}},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, err
	}
	// The edited image comes back as an inline-data part among the candidates.
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					return &adapter.Artifact{
						Data:     part.InlineData.Data,
						MIMEType: mimeOrDefault(part.InlineData.MIMEType, "image/png"),
						Provider: "gemini",
						Model:    model,
					}, nil
				}
			}
		}
	}
	return nil, domain.ErrEmptyArtifact
}

func (g *GeminiAdapter) StartVideo(ctx context.Context, model, prompt string) (string, error) {
	op, err := g.client.Models.GenerateVideos(ctx, model, prompt, nil, nil)
	if err != nil {
		return "", err
	}
	if op == nil || op.Name == "" {
		return "", errors.New("gemini: video operation has no name")
	}
	return op.Name, nil
}

func (g *GeminiAdapter) PollVideo(ctx context.Context, operationName string) (*adapter.VideoPoll, error) {
	if operationName == "" {
		return nil, domain.ErrMissingOperation
	}
	// Reconstruct the operation from its persisted name; the poll may run on
	// a different process than the one that started the generation.
	op, err := g.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: operationName}, nil)
	if err != nil {
		return nil, err
	}
	if !op.Done {
		return &adapter.VideoPoll{Done: false}, nil
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, domain.ErrEmptyArtifact
	}
	video := op.Response.GeneratedVideos[0].Video
	data := video.VideoBytes
	if len(data) == 0 {
		data, err = g.client.Files.Download(ctx, video, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyArtifact
	}
	return &adapter.VideoPoll{
		Done: true,
		Artifact: &adapter.Artifact{
			Data:     data,
			MIMEType: mimeOrDefault(video.MIMEType, "video/mp4"),
			Provider: "gemini",
			Model:    modelFromOperation(operationName),
		},
	}, nil
}

func mimeOrDefault(mime, def string) string {
	if strings.TrimSpace(mime) != "" {
		return mime
	}
	return def
}

// modelFromOperation digs the model out of an operation name like
// "models/veo-2.0-generate-001/operations/abc123". Best effort; empty when
// the name has an unexpected shape.
func modelFromOperation(name string) string {
	parts := strings.Split(name, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "models" {
			return parts[i+1]
		}
	}
	return ""
}
