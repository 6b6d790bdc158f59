package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/lecture-analysis/internal/analysis"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/status"
	"github.com/cuongbtq/lecture-analysis/internal/api/model"
	"github.com/cuongbtq/lecture-analysis/internal/api/storage"
)

// AnalysisService is the part of the analysis service the handlers use
type AnalysisService interface {
	Submit(ctx context.Context, req analysis.SubmitRequest) (analysis.SubmitResult, error)
	Status(id string) (status.View, error)
	ArtifactPath(id string, kind domain.ArtifactKind) (string, error)
}

// JobHistory reads persisted job records
type JobHistory interface {
	GetJobByID(ctx context.Context, jobID string) (*model.JobRecord, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.JobRecord, error)
}

// HealthChecker is implemented by the optional backing clients
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Analysis    AnalysisService
	// History is nil when the database is disabled
	History JobHistory
	// MaxUploadBytes caps the request body of an upload
	MaxUploadBytes int64
	// HealthChecks maps a component name to its checker
	HealthChecks map[string]HealthChecker

	// MetricsHandler is mounted at MetricsPath when set
	MetricsHandler http.Handler
	MetricsPath    string

	// UploadRate and UploadBurst limit uploads per client; zero disables the limit
	UploadRate    float64
	UploadBurst   int
	OnRateLimited func()
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger         *slog.Logger
	analysis       AnalysisService
	history        JobHistory
	maxUploadBytes int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:         deps.Logger,
		analysis:       deps.Analysis,
		history:        deps.History,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

