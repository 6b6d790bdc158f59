package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/lecture-analysis/internal/worker/domain"
)

// Config holds worker pool configuration
type Config struct {
	Logger      *slog.Logger
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	logger      *slog.Logger
	concurrency int
	jobTimeout  time.Duration

	mu      sync.RWMutex
	started bool
	closed  bool
	tasks   chan domain.Task

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	active atomic.Int64
}

// NewPool creates a pool; call Start before submitting.
func NewPool(cfg *Config) *Pool {
	p := &Pool{
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		jobTimeout:  cfg.JobTimeout,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.concurrency <= 0 {
		p.concurrency = domain.DefaultConcurrency
	}
	if p.jobTimeout <= 0 {
		p.jobTimeout = domain.DefaultJobTimeout
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = domain.DefaultQueueSize
	}
	p.tasks = make(chan domain.Task, queueSize)
	return p
}

// Start spawns the worker goroutines. Tasks run with contexts derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.spawnWorkerPool()
}

// Stop stops accepting tasks and waits for queued and running tasks to
// finish. If ctx expires first, running tasks are canceled and Stop waits for
// them to return before reporting ctx.Err().
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool...",
		slog.Int("queued", len(p.tasks)),
		slog.Int64("active", p.active.Load()),
	)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Worker pool shutdown timed out, canceling running tasks")
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Active is the number of tasks currently running
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Queued is the number of tasks waiting for a worker
func (p *Pool) Queued() int {
	return len(p.tasks)
}

// Capacity is the queue size
func (p *Pool) Capacity() int {
	return cap(p.tasks)
}
