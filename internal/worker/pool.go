package worker

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/lecture-analysis/internal/worker/domain"
)

// TrySubmit enqueues task without blocking. It returns ErrPoolSaturated when
// the queue is full so callers can push back instead of piling up work.
func (p *Pool) TrySubmit(task domain.Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return domain.ErrPoolNotStarted
	}
	if p.closed {
		return domain.ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		p.logger.Debug("Task queued",
			slog.String("task_id", task.ID),
			slog.Int("queued", len(p.tasks)),
		)
		return nil
	default:
		p.logger.Warn("Worker pool saturated, rejecting task",
			slog.String("task_id", task.ID),
			slog.Int("queue_size", cap(p.tasks)),
		)
		return domain.ErrPoolSaturated
	}
}

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (p *Pool) spawnWorkerPool() {
	p.logger.Info("Spawning worker pool",
		slog.Int("concurrency", p.concurrency),
		slog.Int("queue_size", cap(p.tasks)),
		slog.Duration("job_timeout", p.jobTimeout),
	)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (p *Pool) workerLoop(workerNum int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.logger.Info("Worker received task",
			slog.Int("worker_num", workerNum),
			slog.String("task_id", task.ID),
		)
		p.runTask(task)
	}

	p.logger.Debug("Worker goroutine stopping - queue closed",
		slog.Int("worker_num", workerNum),
	)
}

// runTask executes one task under the job timeout and recovers panics so a
// single bad job cannot take the worker down.
func (p *Pool) runTask(task domain.Task) {
	p.active.Add(1)
	defer p.active.Add(-1)

	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked",
				slog.String("task_id", task.ID),
				slog.Any("panic", r),
			)
			if task.OnPanic != nil {
				task.OnPanic(r)
			}
		}
	}()

	task.Run(ctx)
}
