// Small operational tool: push one generation job onto the queue.
// Usage: enqueue -config config.yaml -type image-generation -prompt "a red fox"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ai-media-worker/internal/config"
	"ai-media-worker/internal/domain/model"
	pg "ai-media-worker/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	jobType := flag.String("type", string(model.JobTypeImageGeneration), "job type")
	prompt := flag.String("prompt", "", "generation prompt")
	modelName := flag.String("model", "", "provider model (empty = worker default)")
	owner := flag.String("owner", "", "owner id to link the asset to")
	maxAttempts := flag.Int("max-attempts", 3, "max attempts")
	flag.Parse()

	if *prompt == "" {
		log.Fatal("-prompt is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	jobRepo := pg.NewJobRepo(pool, pg.NewTxManager(pool))

	var payload any
	switch model.JobType(*jobType) {
	case model.JobTypeImageGeneration:
		payload = model.ImageGenerationPayload{Prompt: *prompt, Model: *modelName, OwnerID: *owner}
	case model.JobTypeVideoGeneration:
		payload = model.VideoGenerationPayload{Prompt: *prompt, Model: *modelName, OwnerID: *owner}
	default:
		log.Fatalf("cannot enqueue %q from this tool (image-edit needs a source image)", *jobType)
	}

	raw, err := model.EncodePayload(payload)
	if err != nil {
		log.Fatalf("payload: %v", err)
	}
	job := &model.Job{
		Type:        model.JobType(*jobType),
		Payload:     raw,
		MaxAttempts: *maxAttempts,
	}
	if err := jobRepo.Enqueue(ctx, job); err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	fmt.Printf("enqueued %s job %s\n", job.Type, job.ID)
}
