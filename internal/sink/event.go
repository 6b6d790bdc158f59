package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
)

// Routing keys of job lifecycle events
const (
	RoutingKeyCompleted = "analysis.job.completed"
	RoutingKeyFailed    = "analysis.job.failed"
)

// Publisher sends a message to the broker
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// JobEvent is the message body published when a job finishes
type JobEvent struct {
	EventID      string         `json:"event_id"`
	JobID        string         `json:"job_id"`
	UserID       string         `json:"user_id"`
	Status       string         `json:"status"`
	Result       *EventArtifact `json:"result,omitempty"`
	ErrorStage   string         `json:"error_stage,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// EventArtifact lists artifact paths of a completed job
type EventArtifact struct {
	TranscriptPath    string `json:"transcript_path"`
	GraphPath         string `json:"graph_path"`
	CognitiveLoadPath string `json:"cognitive_load_path"`
	StrDataPath       string `json:"str_data_path"`
}

// EventSink publishes a JobEvent per finished run.
type EventSink struct {
	publisher Publisher
	newID     func() string
}

func NewEventSink(publisher Publisher) *EventSink {
	return &EventSink{publisher: publisher, newID: uuid.NewString}
}

func (s *EventSink) Name() string { return "job_events" }

func (s *EventSink) JobFinished(ctx context.Context, report pipeline.Report) error {
	event := JobEvent{
		EventID:    s.newID(),
		JobID:      report.JobID,
		UserID:     report.Owner,
		DurationMs: report.Duration().Milliseconds(),
		OccurredAt: report.FinishedAt.UTC(),
	}

	routingKey := RoutingKeyFailed
	if report.State == domain.StateCompleted {
		routingKey = RoutingKeyCompleted
		event.Status = domain.JobStatusCompleted
		event.Result = &EventArtifact{
			TranscriptPath:    report.Result.TranscriptPath,
			GraphPath:         report.Result.GraphPath,
			CognitiveLoadPath: report.Result.CognitiveLoadPath,
			StrDataPath:       report.Result.StrDataPath,
		}
	} else {
		event.Status = domain.JobStatusFailed
		if report.Err != nil {
			event.ErrorStage = report.Err.Stage
			event.ErrorMessage = report.Err.Error()
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	return s.publisher.Publish(ctx, routingKey, body, "application/json")
}
