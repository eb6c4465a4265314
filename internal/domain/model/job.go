package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDelayed   JobStatus = "delayed"
)

type JobType string

const (
	JobTypeImageGeneration JobType = "image-generation"
	JobTypeImageEdit       JobType = "image-edit"
	JobTypeVideoGeneration JobType = "video-generation"
)

// Job is one unit of generation work. The payload is a tagged variant keyed
// by Type and is the ONLY memory a job has across claim cycles: a video job
// that has been suspended mid-generation carries its external operation
// handle inside the payload, so any worker in the fleet can resume it.
type Job struct {
	ID           string
	Type         JobType
	Payload      json.RawMessage
	Status       JobStatus
	Attempts     int
	MaxAttempts  int
	Progress     int // 0-100
	ScheduledFor time.Time
	LockedBy     *string
	LockedAt     *time.Time
	Error        string
	Result       *GenerationResult
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ImageGenerationPayload is the payload variant for JobTypeImageGeneration.
type ImageGenerationPayload struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
}

// ImageEditPayload is the payload variant for JobTypeImageEdit.
type ImageEditPayload struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	SourceImage []byte `json:"sourceImage"`
	SourceMIME  string `json:"sourceMime,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
}

// VideoGenerationPayload is the payload variant for JobTypeVideoGeneration.
// OperationName is empty until the external generation has been started;
// once set it must be carried verbatim through every reschedule until the
// job reaches a terminal state or is retried from scratch. Dropping it would
// orphan the provider-side operation and stall the job forever.
type VideoGenerationPayload struct {
	Prompt        string `json:"prompt"`
	Model         string `json:"model,omitempty"`
	OperationName string `json:"operationName,omitempty"`
	OwnerID       string `json:"ownerId,omitempty"`
}

// GenerationResult is the terminal outcome persisted onto a completed job.
type GenerationResult struct {
	AssetID  string `json:"assetId"`
	MIMEType string `json:"mimeType"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	SizeByte int    `json:"sizeBytes"`
}

// DecodeImageGenerationPayload parses the payload of an image-generation job.
func (j *Job) DecodeImageGenerationPayload() (*ImageGenerationPayload, error) {
	var p ImageGenerationPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return &p, nil
}

// DecodeImageEditPayload parses the payload of an image-edit job.
func (j *Job) DecodeImageEditPayload() (*ImageEditPayload, error) {
	var p ImageEditPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return &p, nil
}

// DecodeVideoGenerationPayload parses the payload of a video-generation job.
func (j *Job) DecodeVideoGenerationPayload() (*VideoGenerationPayload, error) {
	var p VideoGenerationPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return &p, nil
}

// EncodePayload serializes a payload variant back into the job.
func EncodePayload(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}
