package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/registry"
)

const namespace = "lecture_analysis"

// Collector owns every service metric and the registry they are exported from.
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted    prometheus.Counter
	jobsDeduplicated prometheus.Counter
	jobsRejected     prometheus.Counter
	jobsCompleted    prometheus.Counter
	jobsFailed       *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	uploadsLimited   prometheus.Counter
}

// NewCollector creates a collector on a private registry, including Go
// runtime and process metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of analysis jobs queued",
		}),
		jobsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_deduplicated_total",
			Help:      "Total number of uploads answered by an existing job",
		}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Total number of uploads rejected because the worker pool was saturated",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of analysis jobs completed successfully",
		}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of analysis jobs failed, by pipeline stage and error kind",
		}, []string{"stage", "kind"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Pipeline wall time by final state",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"state"}),
		uploadsLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rate_limited_total",
			Help:      "Total number of uploads refused by the per-client rate limiter",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.jobsSubmitted,
		c.jobsDeduplicated,
		c.jobsRejected,
		c.jobsCompleted,
		c.jobsFailed,
		c.jobDuration,
		c.uploadsLimited,
	)

	return c
}

// Gatherer exposes the underlying registry
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Handler serves the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// TrackRegistry exports the number of tracked jobs per state
func (c *Collector) TrackRegistry(stats func() registry.Stats) {
	states := map[string]func(registry.Stats) int{
		"pending":   func(s registry.Stats) int { return s.Pending },
		"completed": func(s registry.Stats) int { return s.Completed },
		"failed":    func(s registry.Stats) int { return s.Failed },
	}
	for state, pick := range states {
		pick := pick
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "jobs_tracked",
			Help:        "Jobs currently held in memory, by state",
			ConstLabels: prometheus.Labels{"state": state},
		}, func() float64 { return float64(pick(stats())) }))
	}
}

// TrackPool exports worker pool occupancy against the queue capacity
func (c *Collector) TrackPool(active, queued func() int, capacity int) {
	queueCapacity := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_queue_capacity",
		Help:      "Jobs the pool can hold waiting before uploads are rejected",
	})
	queueCapacity.Set(float64(capacity))

	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_active_workers",
			Help:      "Workers currently running a job",
		}, func() float64 { return float64(active()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_queued_jobs",
			Help:      "Jobs waiting for a free worker",
		}, func() float64 { return float64(queued()) }),
		queueCapacity,
	)
}

func (c *Collector) JobSubmitted() {
	c.jobsSubmitted.Inc()
}

func (c *Collector) JobDeduplicated() {
	c.jobsDeduplicated.Inc()
}

func (c *Collector) JobRejected() {
	c.jobsRejected.Inc()
}

func (c *Collector) UploadRateLimited() {
	c.uploadsLimited.Inc()
}

// Name implements pipeline.Sink
func (c *Collector) Name() string {
	return "metrics"
}

// JobFinished implements pipeline.Sink
func (c *Collector) JobFinished(_ context.Context, report pipeline.Report) error {
	switch report.State {
	case domain.StateCompleted:
		c.jobsCompleted.Inc()
	case domain.StateFailed:
		stage, kind := "unknown", "UnknownError"
		if report.Err != nil {
			stage, kind = report.Err.Stage, report.Err.Kind()
		}
		c.jobsFailed.WithLabelValues(stage, kind).Inc()
	}
	c.jobDuration.WithLabelValues(report.State.String()).Observe(report.Duration().Seconds())
	return nil
}
