package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
	"github.com/cuongbtq/lecture-analysis/internal/api/model"
)

var (
	startedAt  = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	finishedAt = startedAt.Add(2 * time.Minute)
)

func completedReport() pipeline.Report {
	return pipeline.Report{
		JobID:     "alice_lecture",
		Owner:     "alice",
		MediaPath: "/data/alice_lecture.mp4",
		State:     domain.StateCompleted,
		Result: domain.Result{
			TranscriptPath:    "/data/alice_lecture_transcript.json",
			GraphPath:         "/data/alice_lecture_graph.json",
			CognitiveLoadPath: "/data/alice_lecture_cognitive_load.json",
			StrDataPath:       "/data/alice_lecture_str_data.json",
		},
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

func failedReport() pipeline.Report {
	return pipeline.Report{
		JobID:      "bob_talk",
		Owner:      "bob",
		MediaPath:  "/data/bob_talk.mp4",
		State:      domain.StateFailed,
		Err:        domain.NewRemoteServiceError("analysis service returned status 502", nil),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

type fakeRecordWriter struct {
	records []*model.JobRecord
	err     error
}

func (f *fakeRecordWriter) UpsertJob(_ context.Context, job *model.JobRecord) error {
	f.records = append(f.records, job)
	return f.err
}

func TestRecordSink(t *testing.T) {
	store := &fakeRecordWriter{}
	s := NewRecordSink(store)

	require.NoError(t, s.JobFinished(context.Background(), completedReport()))
	require.NoError(t, s.JobFinished(context.Background(), failedReport()))
	require.Len(t, store.records, 2)

	completed := store.records[0]
	assert.Equal(t, "alice_lecture", completed.JobID)
	assert.Equal(t, "alice", completed.UserID)
	assert.Equal(t, "COMPLETED", completed.Status)
	assert.Equal(t, "/data/alice_lecture_graph.json", completed.GraphPath.String)
	assert.False(t, completed.ErrorMessage.Valid)

	failed := store.records[1]
	assert.Equal(t, "FAILED", failed.Status)
	assert.Equal(t, "analyze", failed.ErrorStage.String)
	assert.Equal(t, "analyze: analysis service returned status 502", failed.ErrorMessage.String)
	assert.False(t, failed.GraphPath.Valid)

	store.err = errors.New("connection refused")
	assert.Error(t, s.JobFinished(context.Background(), completedReport()))
}

type publishedMessage struct {
	routingKey  string
	body        []byte
	contentType string
}

type fakePublisher struct {
	messages []publishedMessage
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, body []byte, contentType string) error {
	f.messages = append(f.messages, publishedMessage{routingKey, body, contentType})
	return nil
}

func TestEventSink(t *testing.T) {
	publisher := &fakePublisher{}
	s := NewEventSink(publisher)
	s.newID = func() string { return "evt-1" }

	require.NoError(t, s.JobFinished(context.Background(), completedReport()))
	require.NoError(t, s.JobFinished(context.Background(), failedReport()))
	require.Len(t, publisher.messages, 2)

	assert.Equal(t, RoutingKeyCompleted, publisher.messages[0].routingKey)
	assert.Equal(t, "application/json", publisher.messages[0].contentType)

	var completed JobEvent
	require.NoError(t, json.Unmarshal(publisher.messages[0].body, &completed))
	assert.Equal(t, "evt-1", completed.EventID)
	assert.Equal(t, "COMPLETED", completed.Status)
	assert.Equal(t, int64(120000), completed.DurationMs)
	require.NotNil(t, completed.Result)
	assert.Equal(t, "/data/alice_lecture_str_data.json", completed.Result.StrDataPath)

	assert.Equal(t, RoutingKeyFailed, publisher.messages[1].routingKey)
	var failed JobEvent
	require.NoError(t, json.Unmarshal(publisher.messages[1].body, &failed))
	assert.Equal(t, "FAILED", failed.Status)
	assert.Equal(t, "analyze", failed.ErrorStage)
	assert.Nil(t, failed.Result)
}

type fakeUploader struct {
	keys []string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, localPath, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "http://minio:9000/lectures/" + key, nil
}

func TestMirrorSink(t *testing.T) {
	uploader := &fakeUploader{}
	s := NewMirrorSink(uploader)

	require.NoError(t, s.JobFinished(context.Background(), completedReport()))
	assert.Equal(t, []string{
		"alice_lecture/alice_lecture_transcript.json",
		"alice_lecture/alice_lecture_graph.json",
		"alice_lecture/alice_lecture_cognitive_load.json",
		"alice_lecture/alice_lecture_str_data.json",
	}, uploader.keys)

	require.NoError(t, s.JobFinished(context.Background(), failedReport()))
	assert.Len(t, uploader.keys, 4, "failed jobs are not mirrored")

	uploader.err = errors.New("bucket unreachable")
	err := s.JobFinished(context.Background(), completedReport())
	assert.ErrorContains(t, err, "failed to mirror transcript artifact")
}
