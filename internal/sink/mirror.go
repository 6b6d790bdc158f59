package sink

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
)

// Uploader copies a local file into object storage
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// MirrorSink copies the artifacts of completed jobs to object storage under
// {jobId}/{file}. Failed jobs are ignored.
type MirrorSink struct {
	uploader Uploader
}

func NewMirrorSink(uploader Uploader) *MirrorSink {
	return &MirrorSink{uploader: uploader}
}

func (s *MirrorSink) Name() string { return "artifact_mirror" }

func (s *MirrorSink) JobFinished(ctx context.Context, report pipeline.Report) error {
	if report.State != domain.StateCompleted {
		return nil
	}

	for _, kind := range domain.ArtifactKinds {
		localPath := report.Result.Path(kind)
		key := report.JobID + "/" + filepath.Base(localPath)
		if _, err := s.uploader.Upload(ctx, localPath, key); err != nil {
			return fmt.Errorf("failed to mirror %s artifact: %w", kind, err)
		}
	}
	return nil
}
