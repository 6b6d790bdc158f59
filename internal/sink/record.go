package sink

import (
	"context"
	"database/sql"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
	"github.com/cuongbtq/lecture-analysis/internal/api/model"
)

// JobRecordWriter persists job history
type JobRecordWriter interface {
	UpsertJob(ctx context.Context, job *model.JobRecord) error
}

// RecordSink writes every finished run to the job history table.
type RecordSink struct {
	store JobRecordWriter
}

func NewRecordSink(store JobRecordWriter) *RecordSink {
	return &RecordSink{store: store}
}

func (s *RecordSink) Name() string { return "job_records" }

func (s *RecordSink) JobFinished(ctx context.Context, report pipeline.Report) error {
	return s.store.UpsertJob(ctx, RecordFromReport(report))
}

// RecordFromReport maps a finished run onto a history row
func RecordFromReport(report pipeline.Report) *model.JobRecord {
	record := &model.JobRecord{
		JobID:      report.JobID,
		UserID:     report.Owner,
		MediaPath:  report.MediaPath,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		CreatedAt:  report.StartedAt,
		UpdatedAt:  report.FinishedAt,
	}

	switch report.State {
	case domain.StateCompleted:
		record.Status = domain.JobStatusCompleted
		record.TranscriptPath = nullString(report.Result.TranscriptPath)
		record.GraphPath = nullString(report.Result.GraphPath)
		record.CognitiveLoadPath = nullString(report.Result.CognitiveLoadPath)
		record.StrDataPath = nullString(report.Result.StrDataPath)
	default:
		record.Status = domain.JobStatusFailed
		if report.Err != nil {
			record.ErrorStage = nullString(report.Err.Stage)
			record.ErrorMessage = nullString(report.Err.Error())
		}
	}

	return record
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
