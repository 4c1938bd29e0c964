// Package clips drives the video asset lifecycle: upload validation, trim and
// merge edits, and share/watch access. It owns the ordering rules that keep
// metadata and payload files consistent across partial failures.
package clips

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
	"github.com/clipvault/backend/internal/share"
	"github.com/clipvault/backend/internal/store"
)

var (
	// ErrNotFound mirrors the repository sentinel.
	ErrNotFound = repositories.ErrNotFound
	// ErrInvalidDuration indicates an upload outside the accepted duration window.
	ErrInvalidDuration = errors.New("invalid video duration")
	// ErrInvalidRange indicates a malformed trim range.
	ErrInvalidRange = errors.New("invalid trim range")
	// ErrNoSources indicates a merge request with no inputs.
	ErrNoSources = errors.New("no videos to merge")
)

// MissingAssetError names the first id that failed to resolve during a merge.
type MissingAssetError struct {
	ID string
}

func (e *MissingAssetError) Error() string { return fmt.Sprintf("video %s not found", e.ID) }

// Unwrap lets errors.Is(err, ErrNotFound) hold for missing merge sources.
func (e *MissingAssetError) Unwrap() error { return ErrNotFound }

// Gateway is the transcode boundary the orchestrator drives.
type Gateway interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
	Trim(ctx context.Context, sourcePath, outputPath string, start, end time.Duration) error
	Concatenate(ctx context.Context, sourcePaths []string, outputPath string) error
}

// Runner schedules a transcode operation on bounded workers and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Archiver receives accepted payloads for durability copies. Enqueue must not
// block the request path.
type Archiver interface {
	Enqueue(asset models.VideoAsset, payloadPath string)
}

// Config bounds the durations accepted at upload time.
type Config struct {
	MinDuration time.Duration
	MaxDuration time.Duration
}

// Service is the lifecycle orchestrator for video assets.
type Service struct {
	store    *store.Store
	gateway  Gateway
	shares   *share.Registry
	runner   Runner
	archiver Archiver
	locks    *keyedMutex
	cfg      Config
}

// NewService wires the orchestrator. archiver may be nil when archival is not
// configured.
func NewService(st *store.Store, gateway Gateway, shares *share.Registry, runner Runner, archiver Archiver, cfg Config) *Service {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 5 * time.Second
	}
	if cfg.MaxDuration <= cfg.MinDuration {
		cfg.MaxDuration = 25 * time.Second
	}
	return &Service{
		store:    st,
		gateway:  gateway,
		shares:   shares,
		runner:   runner,
		archiver: archiver,
		locks:    newKeyedMutex(),
		cfg:      cfg,
	}
}

// Upload materializes an inbound file, probes it, and registers it as an
// asset when its duration falls inside [MinDuration, MaxDuration). Rejected
// and unprobeable uploads leave nothing behind on disk.
func (s *Service) Upload(ctx context.Context, r io.Reader, originalName string) (models.VideoAsset, error) {
	ctx, span := logging.StartSpan(ctx, "clips.upload")
	defer span.End()

	path, size, err := s.store.SaveUpload(ctx, r, originalName)
	if err != nil {
		return models.VideoAsset{}, err
	}

	duration, err := s.probe(ctx, path)
	if err != nil {
		s.discard(ctx, path)
		return models.VideoAsset{}, err
	}

	if duration < s.cfg.MinDuration || duration >= s.cfg.MaxDuration {
		s.discard(ctx, path)
		return models.VideoAsset{}, fmt.Errorf("%w: %s not in [%s, %s)", ErrInvalidDuration, duration, s.cfg.MinDuration, s.cfg.MaxDuration)
	}

	asset, err := s.store.Create(ctx, store.NewAsset{
		PayloadPath: path,
		Duration:    duration,
		SizeBytes:   size,
		Title:       originalName,
		Derivation:  models.DerivationUploaded,
	})
	if err != nil {
		s.discard(ctx, path)
		return models.VideoAsset{}, err
	}

	s.archive(asset, path)

	return asset, nil
}

// Trim replaces an asset's payload with the [start, end) sub-range of its
// current payload. The asset keeps its identity; the superseded payload is
// deleted only after the metadata update is confirmed. A per-id lock is held
// across the whole transcode-and-persist sequence so concurrent trims on the
// same asset cannot strand metadata on a deleted file.
func (s *Service) Trim(ctx context.Context, id string, start, end time.Duration) (models.VideoAsset, error) {
	ctx, span := logging.StartSpan(ctx, "clips.trim")
	defer span.End()

	if start < 0 || start >= end {
		return models.VideoAsset{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidRange, start, end)
	}

	unlock := s.locks.lock(id)
	defer unlock()

	asset, err := s.store.Get(ctx, id)
	if err != nil {
		return models.VideoAsset{}, err
	}

	sourcePath := s.store.PayloadPath(asset)
	outputPath := s.store.ScratchPath("trimmed", asset.StorageKey)

	if err := s.runner.Do(ctx, func(ctx context.Context) error {
		return s.gateway.Trim(ctx, sourcePath, outputPath, start, end)
	}); err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	// Re-probe rather than trusting end-start: codec boundaries and rounding
	// can shift the real duration.
	duration, err := s.probe(ctx, outputPath)
	if err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	size, err := payloadSize(outputPath)
	if err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	updated, err := s.store.ReplacePayload(ctx, id, outputPath, duration, size)
	if err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	// Metadata now points at the new payload; the old one is unreferenced.
	if err := s.store.RemovePayload(sourcePath); err != nil {
		logging.FromContext(ctx).Warn("superseded payload not removed", "videoId", id, "path", sourcePath, "error", err)
	}

	s.archive(updated, outputPath)

	return updated, nil
}

// Merge concatenates the payloads of the given assets, in the given order,
// into a brand-new asset. Sources are never mutated. Every id is resolved
// before any transcoding starts; the first miss aborts the whole merge.
func (s *Service) Merge(ctx context.Context, ids []string) (models.VideoAsset, error) {
	ctx, span := logging.StartSpan(ctx, "clips.merge")
	defer span.End()

	if len(ids) == 0 {
		return models.VideoAsset{}, ErrNoSources
	}

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		asset, err := s.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return models.VideoAsset{}, &MissingAssetError{ID: id}
			}
			return models.VideoAsset{}, err
		}
		paths = append(paths, s.store.PayloadPath(asset))
	}

	outputPath := s.store.ScratchPath("merged", "")

	if err := s.runner.Do(ctx, func(ctx context.Context) error {
		return s.gateway.Concatenate(ctx, paths, outputPath)
	}); err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	// Concatenation of heterogeneous streams can alter the total duration, so
	// the output is probed instead of summing the sources.
	duration, err := s.probe(ctx, outputPath)
	if err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	size, err := payloadSize(outputPath)
	if err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	asset, err := s.store.Create(ctx, store.NewAsset{
		PayloadPath: outputPath,
		Duration:    duration,
		SizeBytes:   size,
		Derivation:  models.DerivationMerged,
	})
	if err != nil {
		s.discard(ctx, outputPath)
		return models.VideoAsset{}, err
	}

	s.archive(asset, outputPath)

	return asset, nil
}

// Share issues a time-bounded playback token for an existing asset.
func (s *Service) Share(ctx context.Context, id string, ttl time.Duration) (models.ShareToken, error) {
	ctx, span := logging.StartSpan(ctx, "clips.share")
	defer span.End()

	if _, err := s.store.Get(ctx, id); err != nil {
		return models.ShareToken{}, err
	}

	return s.shares.Issue(ctx, id, ttl)
}

// Watch validates a share token and resolves the payload to stream. Expiry is
// checked on every call.
func (s *Service) Watch(ctx context.Context, tokenID string) (models.VideoAsset, string, error) {
	ctx, span := logging.StartSpan(ctx, "clips.watch")
	defer span.End()

	videoID, err := s.shares.Resolve(ctx, tokenID)
	if err != nil {
		return models.VideoAsset{}, "", err
	}

	asset, err := s.store.Get(ctx, videoID)
	if err != nil {
		return models.VideoAsset{}, "", err
	}

	return asset, s.store.PayloadPath(asset), nil
}

func (s *Service) probe(ctx context.Context, path string) (time.Duration, error) {
	var duration time.Duration
	err := s.runner.Do(ctx, func(ctx context.Context) error {
		d, err := s.gateway.Probe(ctx, path)
		duration = d
		return err
	})
	return duration, err
}

func (s *Service) discard(ctx context.Context, path string) {
	if err := s.store.RemovePayload(path); err != nil {
		logging.FromContext(ctx).Warn("transient payload not removed", "path", path, "error", err)
	}
}

func (s *Service) archive(asset models.VideoAsset, path string) {
	if s.archiver == nil {
		return
	}
	s.archiver.Enqueue(asset, path)
}

func payloadSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat payload: %w", err)
	}
	return info.Size(), nil
}
