package repositories

import (
	"context"

	"github.com/clipvault/backend/internal/models"
)

// AssetRepository exposes data access for video assets.
type AssetRepository interface {
	Create(ctx context.Context, asset models.VideoAsset) error
	Get(ctx context.Context, id string) (models.VideoAsset, error)
	ReplacePayload(ctx context.Context, id, storageKey string, durationSeconds, sizeBytes int64) (models.VideoAsset, error)
}
