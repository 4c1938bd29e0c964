// Package store pairs video asset metadata with payload placement in the
// media directory. The metadata row is the source of truth for existence;
// a payload file only becomes observable once its record is committed.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
)

// ErrNotFound mirrors the repository sentinel so callers need only one check.
var ErrNotFound = repositories.ErrNotFound

// NewAsset describes a payload already materialized on disk that should be
// registered as an asset.
type NewAsset struct {
	PayloadPath string
	Duration    time.Duration
	SizeBytes   int64
	Title       string
	Derivation  string
}

// Store owns asset records and their payload files under the media directory.
type Store struct {
	repo     repositories.AssetRepository
	mediaDir string
	now      func() time.Time
}

// New constructs a Store rooted at mediaDir, creating the directory if needed.
func New(repo repositories.AssetRepository, mediaDir string) (*Store, error) {
	abs, err := filepath.Abs(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{repo: repo, mediaDir: abs, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SaveUpload streams an inbound upload into the media directory under a fresh
// uuid-based name and returns the payload path and byte count. The file is not
// yet an asset; registration happens via Create after validation.
func (s *Store) SaveUpload(ctx context.Context, r io.Reader, originalName string) (string, int64, error) {
	path := s.ScratchPath("upload", originalName)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}

	return path, size, nil
}

// ScratchPath returns a fresh uuid-named path inside the media directory for
// a transcode output or inbound upload. The extension is taken from hint,
// defaulting to .mp4.
func (s *Store) ScratchPath(prefix, hint string) string {
	ext := filepath.Ext(hint)
	if ext == "" {
		ext = ".mp4"
	}
	name := fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext)
	return filepath.Join(s.mediaDir, name)
}

// Create registers metadata for a payload already present at PayloadPath.
// On persistence failure the orphaned payload is the caller's to remove.
func (s *Store) Create(ctx context.Context, meta NewAsset) (models.VideoAsset, error) {
	key, err := s.storageKey(meta.PayloadPath)
	if err != nil {
		return models.VideoAsset{}, err
	}

	asset := models.VideoAsset{
		ID:              uuid.NewString(),
		StorageKey:      key,
		DurationSeconds: int64(meta.Duration.Seconds()),
		SizeBytes:       meta.SizeBytes,
		Title:           meta.Title,
		Derivation:      meta.Derivation,
		CreatedAt:       s.now(),
	}

	if err := s.repo.Create(ctx, asset); err != nil {
		return models.VideoAsset{}, fmt.Errorf("register asset: %w", err)
	}

	return asset, nil
}

// Get fetches an asset record by id.
func (s *Store) Get(ctx context.Context, id string) (models.VideoAsset, error) {
	return s.repo.Get(ctx, id)
}

// ReplacePayload repoints an existing asset at a new payload. The new file
// must already exist: metadata is never updated to reference a path that has
// not been confirmed on disk. The superseded payload stays behind for the
// caller to remove once this call returns.
func (s *Store) ReplacePayload(ctx context.Context, id, newPayloadPath string, duration time.Duration, size int64) (models.VideoAsset, error) {
	if _, err := os.Stat(newPayloadPath); err != nil {
		return models.VideoAsset{}, fmt.Errorf("new payload missing: %w", err)
	}

	key, err := s.storageKey(newPayloadPath)
	if err != nil {
		return models.VideoAsset{}, err
	}

	asset, err := s.repo.ReplacePayload(ctx, id, key, int64(duration.Seconds()), size)
	if err != nil {
		return models.VideoAsset{}, err
	}

	return asset, nil
}

// ResolvePayloadPath returns the absolute path of an asset's payload.
func (s *Store) ResolvePayloadPath(ctx context.Context, id string) (string, error) {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.mediaDir, filepath.FromSlash(asset.StorageKey)), nil
}

// PayloadPath maps an asset record to its absolute payload location.
func (s *Store) PayloadPath(asset models.VideoAsset) string {
	return filepath.Join(s.mediaDir, filepath.FromSlash(asset.StorageKey))
}

// RemovePayload deletes a payload file. Missing files are not an error: a
// cleanup retry after a partial failure must be able to run twice.
func (s *Store) RemovePayload(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove payload: %w", err)
	}
	return nil
}

func (s *Store) storageKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve payload path: %w", err)
	}
	rel, err := filepath.Rel(s.mediaDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("payload %s is outside the media dir", path)
	}
	return filepath.ToSlash(rel), nil
}
