package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipvault/backend/internal/models"
)

// ArchiveStorage is the destination for archive copies.
type ArchiveStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ArchiverConfig controls the concurrency characteristics of the archiver.
type ArchiverConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Archiver copies accepted payloads to durable storage in the background.
// Archival is best effort: failures are logged and never surface to the
// request that produced the payload.
type Archiver struct {
	storage ArchiveStorage
	timeout time.Duration
	logger  *slog.Logger

	jobs   chan archiveJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type archiveJob struct {
	asset models.VideoAsset
	path  string
}

// NewArchiver constructs a background worker that persists archive copies.
func NewArchiver(storage ArchiveStorage, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Archiver{
		storage: storage,
		timeout: cfg.Timeout,
		logger:  logger,
		jobs:    make(chan archiveJob, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	a.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go a.worker()
	}

	return a
}

// Enqueue schedules an archive copy of the payload at payloadPath. The call
// never blocks; when the queue is full or the archiver is shut down the copy
// is skipped and logged.
func (a *Archiver) Enqueue(asset models.VideoAsset, payloadPath string) {
	select {
	case <-a.ctx.Done():
		a.logger.Warn("archive skipped, archiver closed", "videoId", asset.ID)
		return
	default:
	}

	select {
	case a.jobs <- archiveJob{asset: asset, path: payloadPath}:
	default:
		a.logger.Warn("archive skipped, queue full", "videoId", asset.ID)
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (a *Archiver) Shutdown(ctx context.Context) error {
	a.once.Do(func() {
		a.cancel()
		close(a.jobs)
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (a *Archiver) worker() {
	defer a.wg.Done()

	for job := range a.jobs {
		a.handleJob(job)
	}
}

func (a *Archiver) handleJob(job archiveJob) {
	file, err := os.Open(job.path)
	if err != nil {
		a.logger.Error("archive open payload", "videoId", job.asset.ID, "path", job.path, "error", err)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	key := archiveKey(job.asset, job.path)
	location, err := a.storage.Save(ctx, key, file)
	if err != nil {
		a.logger.Error("archive upload failed", "videoId", job.asset.ID, "key", key, "error", err)
		return
	}

	a.logger.Info("payload archived", "videoId", job.asset.ID, "location", location)
}

func archiveKey(asset models.VideoAsset, payloadPath string) string {
	name := asset.ID + filepath.Ext(payloadPath)
	return path.Join(asset.Derivation, name)
}
