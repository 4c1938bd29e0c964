package handlers

import (
	"context"
	"io"
	"time"

	"github.com/clipvault/backend/internal/models"
)

// ClipService captures the lifecycle operations required by the video handlers.
type ClipService interface {
	Upload(ctx context.Context, r io.Reader, originalName string) (models.VideoAsset, error)
	Trim(ctx context.Context, id string, start, end time.Duration) (models.VideoAsset, error)
	Merge(ctx context.Context, ids []string) (models.VideoAsset, error)
	Share(ctx context.Context, id string, ttl time.Duration) (models.ShareToken, error)
	Watch(ctx context.Context, tokenID string) (models.VideoAsset, string, error)
}
