package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
)

type memoryAssetRepo struct {
	assets map[string]models.VideoAsset
}

func newMemoryAssetRepo() *memoryAssetRepo {
	return &memoryAssetRepo{assets: make(map[string]models.VideoAsset)}
}

func (m *memoryAssetRepo) Create(ctx context.Context, asset models.VideoAsset) error {
	if _, ok := m.assets[asset.ID]; ok {
		return repositories.ErrConflict
	}
	m.assets[asset.ID] = asset
	return nil
}

func (m *memoryAssetRepo) Get(ctx context.Context, id string) (models.VideoAsset, error) {
	asset, ok := m.assets[id]
	if !ok {
		return models.VideoAsset{}, repositories.ErrNotFound
	}
	return asset, nil
}

func (m *memoryAssetRepo) ReplacePayload(ctx context.Context, id, storageKey string, durationSeconds, sizeBytes int64) (models.VideoAsset, error) {
	asset, ok := m.assets[id]
	if !ok {
		return models.VideoAsset{}, repositories.ErrNotFound
	}
	asset.StorageKey = storageKey
	asset.DurationSeconds = durationSeconds
	asset.SizeBytes = sizeBytes
	m.assets[id] = asset
	return asset, nil
}

func newTestStore(t *testing.T) (*Store, *memoryAssetRepo) {
	t.Helper()
	repo := newMemoryAssetRepo()
	s, err := New(repo, t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, repo
}

func writePayload(t *testing.T, s *Store, prefix string) string {
	t.Helper()
	path := s.ScratchPath(prefix, "clip.mp4")
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

func TestStoreCreateAndResolveRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	path := writePayload(t, s, "upload")

	asset, err := s.Create(ctx, NewAsset{
		PayloadPath: path,
		Duration:    12 * time.Second,
		SizeBytes:   7,
		Title:       "clip.mp4",
		Derivation:  models.DerivationUploaded,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if asset.ID == "" || asset.DurationSeconds != 12 || asset.Derivation != models.DerivationUploaded {
		t.Fatalf("unexpected asset: %+v", asset)
	}

	resolved, err := s.ResolvePayloadPath(ctx, asset.ID)
	if err != nil {
		t.Fatalf("ResolvePayloadPath() error = %v", err)
	}
	if resolved != path {
		t.Fatalf("round trip mismatch: got %q want %q", resolved, path)
	}
}

func TestStoreCreateRejectsPayloadOutsideMediaDir(t *testing.T) {
	s, _ := newTestStore(t)

	outside := filepath.Join(t.TempDir(), "outside.mp4")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	_, err := s.Create(context.Background(), NewAsset{PayloadPath: outside, Derivation: models.DerivationUploaded})
	if err == nil || !strings.Contains(err.Error(), "outside the media dir") {
		t.Fatalf("expected media dir violation, got %v", err)
	}
}

func TestStoreReplacePayloadRequiresExistingFile(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	path := writePayload(t, s, "upload")
	asset, err := s.Create(ctx, NewAsset{PayloadPath: path, Duration: 20 * time.Second, SizeBytes: 7, Derivation: models.DerivationUploaded})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	missing := s.ScratchPath("trimmed", "clip.mp4")
	if _, err := s.ReplacePayload(ctx, asset.ID, missing, 10*time.Second, 3); err == nil {
		t.Fatal("expected error replacing with a missing payload")
	}

	// Metadata must be untouched after the refused replace.
	kept, err := repo.Get(ctx, asset.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if kept.StorageKey != asset.StorageKey || kept.DurationSeconds != 20 {
		t.Fatalf("metadata mutated despite missing payload: %+v", kept)
	}

	replacement := writePayload(t, s, "trimmed")
	updated, err := s.ReplacePayload(ctx, asset.ID, replacement, 10*time.Second, 3)
	if err != nil {
		t.Fatalf("ReplacePayload() error = %v", err)
	}
	if updated.DurationSeconds != 10 || updated.SizeBytes != 3 {
		t.Fatalf("unexpected updated asset: %+v", updated)
	}
	if updated.ID != asset.ID {
		t.Fatalf("identity changed on replace: %+v", updated)
	}
}

func TestStoreReplacePayloadUnknownAsset(t *testing.T) {
	s, _ := newTestStore(t)

	replacement := writePayload(t, s, "trimmed")
	if _, err := s.ReplacePayload(context.Background(), "no-such-id", replacement, time.Second, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSaveUpload(t *testing.T) {
	s, _ := newTestStore(t)

	path, size, err := s.SaveUpload(context.Background(), strings.NewReader("0123456789"), "movie.mov")
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	if size != 10 {
		t.Fatalf("unexpected size: %d", size)
	}
	if filepath.Ext(path) != ".mov" {
		t.Fatalf("expected original extension to be kept, got %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected upload on disk: %v", err)
	}
}

func TestStoreRemovePayloadIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	path := writePayload(t, s, "upload")
	if err := s.RemovePayload(path); err != nil {
		t.Fatalf("RemovePayload() error = %v", err)
	}
	if err := s.RemovePayload(path); err != nil {
		t.Fatalf("second RemovePayload() error = %v", err)
	}
}
