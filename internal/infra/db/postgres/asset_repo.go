package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"ai-media-worker/internal/domain"
	"ai-media-worker/internal/domain/model"
	"ai-media-worker/internal/domain/ports/repository"
)

var _ repository.AssetRepository = (*assetRepo)(nil)

type assetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *assetRepo {
	return &assetRepo{pool: pool}
}

func (r *assetRepo) Save(ctx context.Context, asset *model.Asset) error {
	if asset.ID == "" {
		asset.ID = ulid.Make().String()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO generated_assets (id, job_id, owner_id, kind, mime_type, data, provider, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	_, err := execSQL(ctx, r.pool, nil, q,
		asset.ID, asset.JobID, asset.OwnerID, asset.Kind, asset.MIMEType,
		asset.Data, asset.Provider, asset.Model, asset.CreatedAt)
	return err
}

func (r *assetRepo) FindByJobID(ctx context.Context, jobID string) (*model.Asset, error) {
	const q = `
SELECT id, job_id, owner_id, kind, mime_type, data, provider, model, created_at
FROM generated_assets
WHERE job_id = $1
ORDER BY created_at DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, nil, q, jobID)
	if err != nil {
		return nil, err
	}
	var a model.Asset
	if err := row.Scan(&a.ID, &a.JobID, &a.OwnerID, &a.Kind, &a.MIMEType, &a.Data, &a.Provider, &a.Model, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
