package adapter

import "context"

// Artifact is a finished piece of generated media.
type Artifact struct {
	Data     []byte
	MIMEType string
	Provider string
	Model    string
}

// VideoPoll is the outcome of polling a long-running video operation.
// When Done is false the Artifact is nil and the caller should poll again
// later with the same operation name.
type VideoPoll struct {
	Done     bool
	Artifact *Artifact
}

// GenerationAdapter is the port for media-generation providers.
//
// Image and edit calls are synchronous. Video generation is asynchronous:
// StartVideo returns an opaque operation name that must be persisted by the
// caller and fed back to PollVideo, possibly from a different process.
type GenerationAdapter interface {
	GenerateImage(ctx context.Context, model, prompt string) (*Artifact, error)
	EditImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (*Artifact, error)
	StartVideo(ctx context.Context, model, prompt string) (string, error)
	PollVideo(ctx context.Context, operationName string) (*VideoPoll, error)
}
