package registry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

const (
	// DefaultRetention is how long a finished job stays pollable after its last access
	DefaultRetention = time.Hour
	// DefaultSweepInterval is how often stale finished jobs are evicted
	DefaultSweepInterval = 10 * time.Minute
)

// Clock abstracts time so sweeps can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Config holds registry configuration
type Config struct {
	Logger        *slog.Logger
	Clock         Clock
	Retention     time.Duration
	SweepInterval time.Duration
}

type entry struct {
	outcome      *domain.Outcome
	createdAt    time.Time
	lastAccessed atomic.Int64 // unix nanos
}

func (e *entry) touch(now time.Time) {
	e.lastAccessed.Store(now.UnixNano())
}

func (e *entry) idleSince() time.Time {
	return time.Unix(0, e.lastAccessed.Load())
}

// Registry tracks job outcomes by id. Safe for concurrent use; operations on
// different ids never contend on a shared lock.
type Registry struct {
	jobs          sync.Map // string -> *entry
	logger        *slog.Logger
	clock         Clock
	retention     time.Duration
	sweepInterval time.Duration
}

// Stats counts tracked jobs by state
type Stats struct {
	Pending   int
	Completed int
	Failed    int
}

// New creates an empty registry
func New(cfg *Config) *Registry {
	r := &Registry{
		logger:        cfg.Logger,
		clock:         cfg.Clock,
		retention:     cfg.Retention,
		sweepInterval: cfg.SweepInterval,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = SystemClock{}
	}
	if r.retention <= 0 {
		r.retention = DefaultRetention
	}
	if r.sweepInterval <= 0 {
		r.sweepInterval = DefaultSweepInterval
	}
	return r
}

// Submit registers outcome under id. An existing terminal entry is replaced;
// an existing pending entry is kept and ErrJobInFlight returned.
func (r *Registry) Submit(id string, outcome *domain.Outcome) error {
	now := r.clock.Now()
	e := &entry{outcome: outcome, createdAt: now}
	e.touch(now)

	for {
		existing, loaded := r.jobs.LoadOrStore(id, e)
		if !loaded {
			return nil
		}

		old := existing.(*entry)
		if !old.outcome.State().Terminal() {
			return domain.ErrJobInFlight
		}
		if r.jobs.CompareAndSwap(id, old, e) {
			r.logger.Debug("Job re-registered",
				slog.String("job_id", id),
				slog.String("previous_state", old.outcome.State().String()),
			)
			return nil
		}
		// lost a race with another submit or a sweep; retry
	}
}

// Lookup returns the outcome registered under id and marks it accessed.
func (r *Registry) Lookup(id string) (*domain.Outcome, error) {
	v, ok := r.jobs.Load(id)
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	e := v.(*entry)
	e.touch(r.clock.Now())
	return e.outcome, nil
}

// Remove deletes id only if it still maps to outcome.
func (r *Registry) Remove(id string, outcome *domain.Outcome) bool {
	v, ok := r.jobs.Load(id)
	if !ok {
		return false
	}
	e := v.(*entry)
	if e.outcome != outcome {
		return false
	}
	return r.jobs.CompareAndDelete(id, e)
}

// Sweep removes terminal jobs idle for longer than the retention window.
// Pending jobs are never removed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	removed := 0

	r.jobs.Range(func(key, value any) bool {
		e := value.(*entry)
		if !e.outcome.State().Terminal() {
			return true
		}
		if now.Sub(e.idleSince()) <= r.retention {
			return true
		}
		if r.jobs.CompareAndDelete(key, e) {
			removed++
			r.logger.Info("Removed expired job",
				slog.String("job_id", key.(string)),
				slog.Time("created_at", e.createdAt),
				slog.Time("last_accessed_at", e.idleSince()),
			)
		}
		return true
	})

	return removed
}

// Run sweeps on every interval until ctx is canceled
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	r.logger.Info("Job sweeper started",
		slog.Duration("interval", r.sweepInterval),
		slog.Duration("retention", r.retention),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Job sweeper stopped - context canceled")
			return
		case <-ticker.C:
			removed := r.Sweep()
			r.logger.Debug("Job sweep finished", slog.Int("removed", removed))
		}
	}
}

// Stats counts the tracked jobs by state
func (r *Registry) Stats() Stats {
	var s Stats
	r.jobs.Range(func(_, value any) bool {
		switch value.(*entry).outcome.State() {
		case domain.StatePending:
			s.Pending++
		case domain.StateCompleted:
			s.Completed++
		case domain.StateFailed:
			s.Failed++
		}
		return true
	})
	return s
}
