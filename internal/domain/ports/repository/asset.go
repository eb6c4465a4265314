package repository

import (
	"context"

	"ai-media-worker/internal/domain/model"
)

type AssetRepository interface {
	Save(ctx context.Context, asset *model.Asset) error
	FindByJobID(ctx context.Context, jobID string) (*model.Asset, error)
}
