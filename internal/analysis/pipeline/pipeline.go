package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

const defaultSinkTimeout = 15 * time.Second

// Task is one pipeline run for a registered job.
type Task struct {
	JobID string
	Owner string
	// StagedPath is the spooled upload. Empty when the media file is already
	// at MediaPath and ingest should be skipped.
	StagedPath string
	MediaPath  string
	Outcome    *domain.Outcome
}

// Report describes a finished run, handed to every sink after resolution.
type Report struct {
	JobID      string
	Owner      string
	MediaPath  string
	State      domain.State
	Result     domain.Result
	Err        *domain.AnalysisError
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the run
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sink receives finished runs. Errors are logged and never affect the job.
type Sink interface {
	Name() string
	JobFinished(ctx context.Context, report Report) error
}

// Extractor converts uploaded media into an audio file
type Extractor interface {
	Extract(ctx context.Context, inputPath, outputPath string) *domain.AnalysisError
}

// Config holds pipeline configuration
type Config struct {
	UploadDir   string
	Extractor   Extractor
	Analyzer    Analyzer
	Sinks       []Sink
	SinkTimeout time.Duration
	Logger      *slog.Logger
}

// Pipeline runs ingest, extract, analyze and persist for one job at a time
// and resolves the job outcome exactly once.
type Pipeline struct {
	uploadDir   string
	extractor   Extractor
	analyzer    Analyzer
	sinks       []Sink
	sinkTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a pipeline
func New(cfg *Config) *Pipeline {
	p := &Pipeline{
		uploadDir:   cfg.UploadDir,
		extractor:   cfg.Extractor,
		analyzer:    cfg.Analyzer,
		sinks:       cfg.Sinks,
		sinkTimeout: cfg.SinkTimeout,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sinkTimeout <= 0 {
		p.sinkTimeout = defaultSinkTimeout
	}
	return p
}

// AddSink registers an additional sink. Not safe to call while jobs run.
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Run executes every stage for task and resolves task.Outcome. A panic in any
// stage fails the job instead of crashing the worker.
func (p *Pipeline) Run(ctx context.Context, task Task) {
	startedAt := p.now()
	stage := domain.StageIngest

	logger := p.logger.With(slog.String("job_id", task.JobID))
	logger.Info("Pipeline started", slog.Bool("ingest", task.StagedPath != ""))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Pipeline panicked",
				slog.String("stage", stage),
				slog.Any("panic", r),
			)
			p.resolve(ctx, task, startedAt, domain.Result{}, &domain.AnalysisError{
				Stage:   stage,
				Message: fmt.Sprintf("internal error: %v", r),
			})
		}
	}()

	result, analysisErr := p.execute(ctx, task, &stage, logger)
	p.resolve(ctx, task, startedAt, result, analysisErr)
}

func (p *Pipeline) execute(ctx context.Context, task Task, stage *string, logger *slog.Logger) (domain.Result, *domain.AnalysisError) {
	*stage = domain.StageIngest
	if err := p.ingest(task); err != nil {
		return domain.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Result{}, domain.NewIoError("job canceled before audio extraction", err)
	}

	*stage = domain.StageExtract
	audioPath := filepath.Join(p.uploadDir, domain.AudioFileName(task.JobID))
	logger.Debug("Extracting audio", slog.String("audio_path", audioPath))
	if err := p.extractor.Extract(ctx, task.MediaPath, audioPath); err != nil {
		_ = os.Remove(audioPath)
		return domain.Result{}, err
	}

	*stage = domain.StageAnalyze
	absAudio, err := filepath.Abs(audioPath)
	if err != nil {
		absAudio = audioPath
	}
	logger.Debug("Requesting analysis", slog.String("audio_path", absAudio))
	analysis, err := p.analyzer.Analyze(ctx, absAudio, task.JobID)
	if err != nil {
		return domain.Result{}, domain.NewRemoteServiceError(err.Error(), err)
	}

	*stage = domain.StagePersist
	result, err := publishArtifacts(p.uploadDir, task.JobID, analysis)
	if err != nil {
		return domain.Result{}, domain.NewPersistenceError(err.Error(), err)
	}

	return result, nil
}

func (p *Pipeline) ingest(task Task) *domain.AnalysisError {
	if task.StagedPath == "" {
		if _, err := os.Stat(task.MediaPath); err != nil {
			return domain.NewIoError(fmt.Sprintf("media file unavailable: %v", err), err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(task.MediaPath), 0o755); err != nil {
		return domain.NewIoError(fmt.Sprintf("failed to create upload directory: %v", err), err)
	}
	if err := os.Rename(task.StagedPath, task.MediaPath); err != nil {
		return domain.NewIoError(fmt.Sprintf("failed to store upload: %v", err), err)
	}
	return nil
}

func (p *Pipeline) resolve(ctx context.Context, task Task, startedAt time.Time, result domain.Result, analysisErr *domain.AnalysisError) {
	report := Report{
		JobID:      task.JobID,
		Owner:      task.Owner,
		MediaPath:  task.MediaPath,
		StartedAt:  startedAt,
		FinishedAt: p.now(),
	}

	if analysisErr != nil {
		if err := task.Outcome.Fail(analysisErr); err != nil {
			p.logger.Warn("Job outcome already resolved", slog.String("job_id", task.JobID))
			return
		}
		report.State = domain.StateFailed
		report.Err = analysisErr
		p.logger.Error("Job failed",
			slog.String("job_id", task.JobID),
			slog.String("stage", analysisErr.Stage),
			slog.String("error", analysisErr.Error()),
			slog.Int("exit_code", analysisErr.ExitCode),
			slog.String("output", analysisErr.Output),
		)
	} else {
		if err := task.Outcome.Complete(result); err != nil {
			p.logger.Warn("Job outcome already resolved", slog.String("job_id", task.JobID))
			return
		}
		report.State = domain.StateCompleted
		report.Result = result
		p.logger.Info("Job completed",
			slog.String("job_id", task.JobID),
			slog.Duration("duration", report.Duration()),
		)
	}

	p.notify(ctx, report)
}

func (p *Pipeline) notify(ctx context.Context, report Report) {
	if len(p.sinks) == 0 {
		return
	}

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.sinkTimeout)
	defer cancel()

	for _, sink := range p.sinks {
		if err := sink.JobFinished(sinkCtx, report); err != nil {
			p.logger.Warn("Job sink failed",
				slog.String("job_id", report.JobID),
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}
