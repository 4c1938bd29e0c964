package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipvault/backend/internal/clips"
	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/handlers"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/repositories"
	"github.com/clipvault/backend/internal/share"
	"github.com/clipvault/backend/internal/storage"
	"github.com/clipvault/backend/internal/store"
	"github.com/clipvault/backend/internal/transcode"
)

// resources collects the background workers that must drain before exit.
type resources struct {
	runner   *transcode.Pool
	archiver *storage.Archiver
}

func (r *resources) shutdown(ctx context.Context, logger *slog.Logger) {
	if err := r.runner.Shutdown(ctx); err != nil {
		logger.Error("transcode pool shutdown", "error", err)
	}
	if r.archiver != nil {
		if err := r.archiver.Shutdown(ctx); err != nil {
			logger.Error("archiver shutdown", "error", err)
		}
	}
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, *resources, error) {
	assets := repositories.NewPostgresAssetRepository(pool)
	tokens := repositories.NewPostgresShareTokenRepository(pool)

	st, err := store.New(assets, cfg.MediaDir)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("init media store: %w", err)
	}

	gateway := transcode.NewFFmpegGateway(cfg.FFmpegPath, cfg.FFprobePath, cfg.TranscodeTimeout)
	runner := transcode.NewPool(transcode.PoolConfig{QueueSize: cfg.TranscodeQueue, Workers: cfg.TranscodeWorkers})
	shares := share.NewRegistry(tokens)

	var archiver *storage.Archiver
	var clipArchiver clips.Archiver
	if cfg.Archive.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, cfg.Archive)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("init archive storage: %w", err)
		}
		archiver = storage.NewArchiver(s3, storage.ArchiverConfig{
			QueueSize: cfg.TranscodeQueue,
			Workers:   1,
			Timeout:   cfg.TranscodeTimeout,
		}, logger)
		clipArchiver = archiver
	}

	service := clips.NewService(st, gateway, shares, runner, clipArchiver, clips.Config{
		MinDuration: cfg.MinDuration,
		MaxDuration: cfg.MaxDuration,
	})

	deps := handlers.Dependencies{
		Clips:          service,
		Limiter:        middleware.NewIPRateLimiter(60, time.Minute, 10, 10*time.Minute),
		APIToken:       cfg.APIToken,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	return deps, &resources{runner: runner, archiver: archiver}, nil
}
