package analysis

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/identity"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/registry"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/status"
	workerdomain "github.com/cuongbtq/lecture-analysis/internal/worker/domain"
)

// IncomingDirName holds uploads while they are being received, under the upload dir
const IncomingDirName = ".incoming"

// TaskSubmitter is the bounded worker pool
type TaskSubmitter interface {
	TrySubmit(task workerdomain.Task) error
}

// PipelineRunner runs one job to resolution
type PipelineRunner interface {
	Run(ctx context.Context, task pipeline.Task)
}

// Recorder observes submissions
type Recorder interface {
	JobSubmitted()
	JobDeduplicated()
	JobRejected()
}

// SubmitRequest is an upload awaiting analysis
type SubmitRequest struct {
	Owner    string
	Filename string
	Body     io.Reader
}

// SubmitResult identifies the job tracking an upload
type SubmitResult struct {
	JobID     string `json:"jobId"`
	Duplicate bool   `json:"duplicate"`
}

// Config holds service dependencies
type Config struct {
	Logger    *slog.Logger
	UploadDir string
	Registry  *registry.Registry
	Resolver  *identity.Resolver
	Pool      TaskSubmitter
	Pipeline  PipelineRunner
	Recorder  Recorder
}

// Service accepts uploads, tracks their analysis jobs and answers status queries.
type Service struct {
	logger    *slog.Logger
	uploadDir string
	registry  *registry.Registry
	resolver  *identity.Resolver
	pool      TaskSubmitter
	pipeline  PipelineRunner
	projector *status.Projector
	recorder  Recorder
}

// NewService creates a service
func NewService(cfg *Config) *Service {
	s := &Service{
		logger:    cfg.Logger,
		uploadDir: cfg.UploadDir,
		registry:  cfg.Registry,
		resolver:  cfg.Resolver,
		pool:      cfg.Pool,
		pipeline:  cfg.Pipeline,
		projector: status.NewProjector(cfg.Registry, cfg.UploadDir),
		recorder:  cfg.Recorder,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// Submit stores the upload, assigns it a job id and queues analysis. The
// returned job is pending unless identical content was already analysed.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if strings.TrimSpace(req.Owner) == "" {
		return SubmitResult{}, domain.ErrOwnerRequired
	}

	staged, size, sum, err := s.spool(req.Body)
	if err != nil {
		return SubmitResult{}, err
	}

	res, err := s.resolver.Resolve(identity.Request{
		Owner:    req.Owner,
		Filename: req.Filename,
		Size:     size,
		Hash:     sum,
	})
	if err != nil {
		_ = os.Remove(staged)
		return SubmitResult{}, fmt.Errorf("failed to resolve job id: %w", err)
	}

	if res.Duplicate {
		_ = os.Remove(staged)
		return s.submitDuplicate(res, req.Owner)
	}

	outcome := domain.NewOutcome()
	if err := s.registry.Submit(res.ID, outcome); err != nil {
		s.resolver.Release(res.ID)
		_ = os.Remove(staged)
		return SubmitResult{}, fmt.Errorf("failed to register job: %w", err)
	}

	task := pipeline.Task{
		JobID:      res.ID,
		Owner:      req.Owner,
		StagedPath: staged,
		MediaPath:  filepath.Join(s.uploadDir, res.MediaFileName()),
		Outcome:    outcome,
	}
	if err := s.enqueue(task, func() { s.resolver.Release(res.ID) }); err != nil {
		s.resolver.Release(res.ID)
		_ = os.Remove(staged)
		return SubmitResult{}, err
	}

	s.recorder.JobSubmitted()
	s.logger.Info("Job submitted",
		slog.String("job_id", res.ID),
		slog.String("owner", req.Owner),
		slog.Int64("size_bytes", size),
	)
	return SubmitResult{JobID: res.ID}, nil
}

// submitDuplicate re-registers a job for content that is already on disk.
// Reuse is decided only after the pending entry is registered, so a run of the
// same id finishing concurrently cannot trigger a second analysis.
func (s *Service) submitDuplicate(res identity.Resolution, owner string) (SubmitResult, error) {
	result := SubmitResult{JobID: res.ID, Duplicate: true}

	outcome := domain.NewOutcome()
	if err := s.registry.Submit(res.ID, outcome); err != nil {
		if errors.Is(err, domain.ErrJobInFlight) {
			s.recorder.JobDeduplicated()
			s.logger.Info("Duplicate upload joins running job", slog.String("job_id", res.ID))
			return result, nil
		}
		return SubmitResult{}, fmt.Errorf("failed to register job: %w", err)
	}

	if pipeline.ArtifactsExist(s.uploadDir, res.ID) {
		if err := outcome.Complete(pipeline.ResultFor(s.uploadDir, res.ID)); err != nil {
			return SubmitResult{}, fmt.Errorf("failed to register job: %w", err)
		}
		s.recorder.JobDeduplicated()
		s.logger.Info("Duplicate upload reuses existing results", slog.String("job_id", res.ID))
		return result, nil
	}

	// No usable results: the earlier analysis failed or never ran.
	task := pipeline.Task{
		JobID:     res.ID,
		Owner:     owner,
		MediaPath: filepath.Join(s.uploadDir, res.MediaFileName()),
		Outcome:   outcome,
	}
	if err := s.enqueue(task, nil); err != nil {
		return SubmitResult{}, err
	}

	s.recorder.JobSubmitted()
	s.logger.Info("Duplicate upload re-runs analysis", slog.String("job_id", res.ID))
	return result, nil
}

// enqueue hands task to the pool. On rejection the registration is rolled back.
func (s *Service) enqueue(task pipeline.Task, after func()) error {
	err := s.pool.TrySubmit(workerdomain.Task{
		ID: task.JobID,
		Run: func(ctx context.Context) {
			if after != nil {
				defer after()
			}
			s.pipeline.Run(ctx, task)
		},
		OnPanic: func(r any) {
			_ = task.Outcome.Fail(&domain.AnalysisError{
				Stage:   domain.StageIngest,
				Message: fmt.Sprintf("internal error: %v", r),
			})
		},
	})
	if err == nil {
		return nil
	}

	s.registry.Remove(task.JobID, task.Outcome)
	s.recorder.JobRejected()
	s.logger.Warn("Job rejected",
		slog.String("job_id", task.JobID),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("failed to queue job: %w", err)
}

// spool copies body into the incoming directory, hashing it on the way.
func (s *Service) spool(body io.Reader) (path string, size int64, sum []byte, err error) {
	incoming := filepath.Join(s.uploadDir, IncomingDirName)
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return "", 0, nil, fmt.Errorf("failed to create incoming directory: %w", err)
	}

	f, err := os.CreateTemp(incoming, "upload-*")
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	h := sha256.New()
	size, err = io.Copy(io.MultiWriter(f, h), body)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to receive upload: %w", err)
	}

	return f.Name(), size, h.Sum(nil), nil
}

// Status returns the client view of a job
func (s *Service) Status(id string) (status.View, error) {
	return s.projector.Project(id)
}

// ArtifactPath returns the file backing one artifact of a job
func (s *Service) ArtifactPath(id string, kind domain.ArtifactKind) (string, error) {
	return s.projector.ArtifactPath(id, kind)
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted()    {}
func (nopRecorder) JobDeduplicated() {}
func (nopRecorder) JobRejected()     {}
