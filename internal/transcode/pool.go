package transcode

import (
	"context"
	"errors"
	"sync"
)

var errPoolClosed = errors.New("transcode pool closed")

// PoolConfig controls the concurrency characteristics of the pool.
type PoolConfig struct {
	QueueSize int
	Workers   int
}

// Pool bounds how many transcode operations run at once. HTTP handlers block
// on Do, but ffmpeg processes are capped at the worker count so a burst of
// edit requests cannot fork an unbounded number of encoders.
type Pool struct {
	jobs   chan poolJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type poolJob struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// NewPool starts the worker goroutines.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		jobs:   make(chan poolJob, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

// Do schedules fn on the pool and waits for it to finish. It returns the
// caller's context error if the caller gives up before a worker picks the job
// up; once running, fn owns cancellation through its own context.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	job := poolJob{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return errPoolClosed
	case p.jobs <- job:
	}

	select {
	case <-p.ctx.Done():
		return errPoolClosed
	case err := <-job.done:
		return err
	}
}

// Shutdown waits for the workers to drain outstanding jobs.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		p.cancel()
		close(p.jobs)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := job.ctx.Err(); err != nil {
				job.done <- err
				continue
			}
			job.done <- job.fn(job.ctx)
		}
	}
}
