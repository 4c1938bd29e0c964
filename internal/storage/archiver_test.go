package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clipvault/backend/internal/models"
)

type archiveStorageStub struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (s *archiveStorageStub) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	_ = ctx
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return fmt.Sprintf("https://archive.example.com/%s", name), nil
}

func (s *archiveStorageStub) get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[name]
	return data, ok
}

func writePayload(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload-bytes"), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

func TestArchiverCopiesPayload(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir, "clip.mp4")

	storage := &archiveStorageStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiver := NewArchiver(storage, ArchiverConfig{QueueSize: 1, Workers: 1}, logger)

	asset := models.VideoAsset{ID: "asset-1", Derivation: models.DerivationUploaded}
	archiver.Enqueue(asset, path)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := archiver.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	data, ok := storage.get("uploaded/asset-1.mp4")
	if !ok {
		t.Fatalf("expected archive copy under uploaded/asset-1.mp4, saved: %v", storage.saved)
	}
	if string(data) != "payload-bytes" {
		t.Fatalf("unexpected archive content %q", data)
	}
}

func TestArchiverSkipsWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir, "clip.mp4")

	release := make(chan struct{})
	storage := &archiveStorageStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blocking := &blockingStorage{base: storage, release: release}
	archiver := NewArchiver(blocking, ArchiverConfig{QueueSize: 1, Workers: 1}, logger)

	// First job occupies the worker, second fills the queue, third must be
	// dropped without blocking.
	archiver.Enqueue(models.VideoAsset{ID: "a", Derivation: models.DerivationUploaded}, path)
	archiver.Enqueue(models.VideoAsset{ID: "b", Derivation: models.DerivationUploaded}, path)

	done := make(chan struct{})
	go func() {
		archiver.Enqueue(models.VideoAsset{ID: "c", Derivation: models.DerivationUploaded}, path)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := archiver.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestArchiverSurvivesUploadFailure(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir, "clip.mp4")

	storage := &archiveStorageStub{err: errors.New("bucket unavailable")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiver := NewArchiver(storage, ArchiverConfig{QueueSize: 1, Workers: 1}, logger)

	archiver.Enqueue(models.VideoAsset{ID: "asset-1", Derivation: models.DerivationUploaded}, path)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := archiver.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

type blockingStorage struct {
	base    ArchiveStorage
	release chan struct{}
}

func (b *blockingStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return b.base.Save(ctx, name, r)
}
