package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

type fakeExtractor struct {
	err   *domain.AnalysisError
	panic bool
}

func (f *fakeExtractor) Extract(_ context.Context, inputPath, outputPath string) *domain.AnalysisError {
	if f.panic {
		panic("codec table corrupted")
	}
	if f.err != nil {
		return f.err
	}
	if err := os.WriteFile(outputPath, []byte("mp3"), 0o644); err != nil {
		return domain.NewExternalToolError("cannot write audio", -1, "", err)
	}
	return nil
}

type fakeAnalyzer struct {
	analysis *Analysis
	err      error
	gotPath  string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, audioPath, _ string) (*Analysis, error) {
	f.gotPath = audioPath
	return f.analysis, f.err
}

type recordingSink struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) JobFinished(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return s.err
}

func sampleAnalysis() *Analysis {
	return &Analysis{
		Transcript:    json.RawMessage(`[{"text":"hello"}]`),
		Graph:         json.RawMessage(`{"nodes":[]}`),
		CognitiveLoad: json.RawMessage(`{"labels":[]}`),
		StrData:       json.RawMessage(`{"segments":0}`),
	}
}

type fixture struct {
	dir      string
	task     Task
	analyzer *fakeAnalyzer
	sink     *recordingSink
	pipeline *Pipeline
}

func newFixture(t *testing.T, extractor Extractor) *fixture {
	t.Helper()
	dir := t.TempDir()
	incoming := filepath.Join(dir, ".incoming")
	require.NoError(t, os.MkdirAll(incoming, 0o755))
	staged := filepath.Join(incoming, "upload-1")
	require.NoError(t, os.WriteFile(staged, []byte("video bytes"), 0o644))

	f := &fixture{
		dir:      dir,
		analyzer: &fakeAnalyzer{analysis: sampleAnalysis()},
		sink:     &recordingSink{},
		task: Task{
			JobID:      "alice_lecture",
			Owner:      "alice",
			StagedPath: staged,
			MediaPath:  filepath.Join(dir, "alice_lecture.mp4"),
			Outcome:    domain.NewOutcome(),
		},
	}
	f.pipeline = New(&Config{
		UploadDir: dir,
		Extractor: extractor,
		Analyzer:  f.analyzer,
		Sinks:     []Sink{f.sink},
	})
	return f
}

func TestPipeline_Run_Success(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})

	f.pipeline.Run(context.Background(), f.task)

	state, result, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateCompleted, state)
	assert.Nil(t, analysisErr)
	assert.Equal(t, ResultFor(f.dir, "alice_lecture"), result)

	for _, kind := range domain.ArtifactKinds {
		_, err := os.Stat(result.Path(kind))
		assert.NoError(t, err, "artifact %s should be readable", kind)
	}
	graph, err := os.ReadFile(result.GraphPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[]}`, string(graph))

	assert.FileExists(t, f.task.MediaPath)
	assert.NoFileExists(t, f.task.StagedPath)
	assert.True(t, filepath.IsAbs(f.analyzer.gotPath))
	assert.Equal(t, domain.AudioFileName("alice_lecture"), filepath.Base(f.analyzer.gotPath))

	entries, err := os.ReadDir(filepath.Join(f.dir, StagingDirName))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory should be cleaned up")

	require.Len(t, f.sink.reports, 1)
	assert.Equal(t, domain.StateCompleted, f.sink.reports[0].State)
	assert.Equal(t, "alice", f.sink.reports[0].Owner)
}

func TestPipeline_Run_ExtractFailure(t *testing.T) {
	f := newFixture(t, &fakeExtractor{
		err: domain.NewExternalToolError("audio extraction failed", 1, "bad input", errors.New("exit status 1")),
	})

	f.pipeline.Run(context.Background(), f.task)

	state, _, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateFailed, state)
	assert.Equal(t, "ExternalToolError", analysisErr.Kind())
	assert.Equal(t, "extract: audio extraction failed (exit=1)", analysisErr.Error())
	assert.False(t, ArtifactsExist(f.dir, "alice_lecture"))
	assert.Empty(t, f.analyzer.gotPath, "analysis must not run after extraction failure")
}

func TestPipeline_Run_AnalyzeFailure(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	f.analyzer.analysis = nil
	f.analyzer.err = errors.New("analysis service returned status 502")

	f.pipeline.Run(context.Background(), f.task)

	state, _, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateFailed, state)
	assert.Equal(t, domain.StageAnalyze, analysisErr.Stage)
	assert.Equal(t, "analyze: analysis service returned status 502", analysisErr.Error())
	assert.False(t, ArtifactsExist(f.dir, "alice_lecture"))
}

func TestPipeline_Run_PersistFailureRollsBack(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})

	// A non-empty directory where the graph artifact belongs makes the rename fail.
	blocker := filepath.Join(f.dir, domain.ArtifactGraph.FileName("alice_lecture"))
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))

	f.pipeline.Run(context.Background(), f.task)

	state, _, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateFailed, state)
	assert.Equal(t, "PersistenceError", analysisErr.Kind())
	assert.NoFileExists(t, filepath.Join(f.dir, domain.ArtifactTranscript.FileName("alice_lecture")))
}

func TestPipeline_Run_IngestFailure(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	f.task.StagedPath = filepath.Join(f.dir, ".incoming", "missing")

	f.pipeline.Run(context.Background(), f.task)

	state, _, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateFailed, state)
	assert.Equal(t, "IoError", analysisErr.Kind())
}

func TestPipeline_Run_SkipsIngestForStoredMedia(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	require.NoError(t, os.WriteFile(f.task.MediaPath, []byte("video bytes"), 0o644))
	f.task.StagedPath = ""

	f.pipeline.Run(context.Background(), f.task)

	assert.Equal(t, domain.StateCompleted, f.task.Outcome.State())
}

func TestPipeline_Run_PanicFailsJob(t *testing.T) {
	f := newFixture(t, &fakeExtractor{panic: true})

	assert.NotPanics(t, func() {
		f.pipeline.Run(context.Background(), f.task)
	})

	state, _, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateFailed, state)
	assert.Equal(t, domain.StageExtract, analysisErr.Stage)
	assert.Contains(t, analysisErr.Message, "codec table corrupted")
}

func TestPipeline_Run_SinkErrorDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	f.sink.err = errors.New("database unavailable")

	f.pipeline.Run(context.Background(), f.task)

	assert.Equal(t, domain.StateCompleted, f.task.Outcome.State())
	assert.Len(t, f.sink.reports, 1)
}

func TestPipeline_Run_CanceledContext(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.pipeline.Run(ctx, f.task)

	state, _, analysisErr := f.task.Outcome.Snapshot()
	require.Equal(t, domain.StateFailed, state)
	assert.ErrorIs(t, analysisErr, context.Canceled)
	assert.Len(t, f.sink.reports, 1, "sinks still run after cancellation")
}
