package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/models"
)

// PostgresAssetRepository provides PostgreSQL-backed persistence for video assets.
type PostgresAssetRepository struct {
	pool db.Pool
}

// NewPostgresAssetRepository constructs an asset repository backed by PostgreSQL.
func NewPostgresAssetRepository(pool db.Pool) *PostgresAssetRepository {
	return &PostgresAssetRepository{pool: pool}
}

// Create persists a new asset record.
func (r *PostgresAssetRepository) Create(ctx context.Context, asset models.VideoAsset) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, storage_key, duration_seconds, size_bytes, title, derivation, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, asset.ID, asset.StorageKey, asset.DurationSeconds, asset.SizeBytes, asset.Title, asset.Derivation, asset.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert video asset: %w", err)
	}

	return nil
}

// Get fetches an asset by id.
func (r *PostgresAssetRepository) Get(ctx context.Context, id string) (models.VideoAsset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoAsset{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, storage_key, duration_seconds, size_bytes, title, derivation, created_at
        FROM videos
        WHERE id = $1
    `, id)

	var asset models.VideoAsset
	if err := row.Scan(&asset.ID, &asset.StorageKey, &asset.DurationSeconds, &asset.SizeBytes, &asset.Title, &asset.Derivation, &asset.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoAsset{}, ErrNotFound
		}
		return models.VideoAsset{}, fmt.Errorf("select video asset: %w", err)
	}

	return asset, nil
}

// ReplacePayload atomically repoints an asset at a new payload. Identity,
// title, derivation, and created_at are left untouched.
func (r *PostgresAssetRepository) ReplacePayload(ctx context.Context, id, storageKey string, durationSeconds, sizeBytes int64) (models.VideoAsset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoAsset{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET storage_key = $2, duration_seconds = $3, size_bytes = $4
        WHERE id = $1
        RETURNING id, storage_key, duration_seconds, size_bytes, title, derivation, created_at
    `, id, storageKey, durationSeconds, sizeBytes)

	var asset models.VideoAsset
	if err := row.Scan(&asset.ID, &asset.StorageKey, &asset.DurationSeconds, &asset.SizeBytes, &asset.Title, &asset.Derivation, &asset.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoAsset{}, ErrNotFound
		}
		return models.VideoAsset{}, fmt.Errorf("update video payload: %w", err)
	}

	return asset, nil
}

// PostgresShareTokenRepository provides PostgreSQL-backed persistence for share tokens.
type PostgresShareTokenRepository struct {
	pool db.Pool
}

// NewPostgresShareTokenRepository constructs a share token repository backed by PostgreSQL.
func NewPostgresShareTokenRepository(pool db.Pool) *PostgresShareTokenRepository {
	return &PostgresShareTokenRepository{pool: pool}
}

// Create persists a newly issued share token.
func (r *PostgresShareTokenRepository) Create(ctx context.Context, token models.ShareToken) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO share_tokens (token, video_id, expires_at, created_at)
        VALUES ($1, $2, $3, $4)
    `, token.Token, token.VideoID, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert share token: %w", err)
	}

	return nil
}

// Get fetches a share token by its opaque id. Expiry is the caller's concern:
// expired tokens are returned as stored, never filtered here.
func (r *PostgresShareTokenRepository) Get(ctx context.Context, tokenID string) (models.ShareToken, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ShareToken{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT token, video_id, expires_at, created_at
        FROM share_tokens
        WHERE token = $1
    `, tokenID)

	var token models.ShareToken
	if err := row.Scan(&token.Token, &token.VideoID, &token.ExpiresAt, &token.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ShareToken{}, ErrNotFound
		}
		return models.ShareToken{}, fmt.Errorf("select share token: %w", err)
	}

	return token, nil
}

var _ AssetRepository = (*PostgresAssetRepository)(nil)
var _ ShareTokenRepository = (*PostgresShareTokenRepository)(nil)
