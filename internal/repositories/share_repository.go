package repositories

import (
	"context"

	"github.com/clipvault/backend/internal/models"
)

// ShareTokenRepository exposes data access for share tokens.
type ShareTokenRepository interface {
	Create(ctx context.Context, token models.ShareToken) error
	Get(ctx context.Context, tokenID string) (models.ShareToken, error)
}
