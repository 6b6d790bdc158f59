package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

// StagingDirName holds artifacts while they are written, under the upload dir
const StagingDirName = ".staging"

type artifactFile struct {
	kind    domain.ArtifactKind
	content json.RawMessage
}

// publishArtifacts writes every document into a private staging directory and
// renames them into dir only after all writes succeeded. A failed rename
// removes whatever was already published.
func publishArtifacts(dir, jobID string, analysis *Analysis) (domain.Result, error) {
	files := []artifactFile{
		{domain.ArtifactTranscript, analysis.Transcript},
		{domain.ArtifactGraph, analysis.Graph},
		{domain.ArtifactCognitiveLoad, analysis.CognitiveLoad},
		{domain.ArtifactStrData, analysis.StrData},
	}

	stagingRoot := filepath.Join(dir, StagingDirName)
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return domain.Result{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.MkdirTemp(stagingRoot, "artifacts-*")
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, f := range files {
		name := f.kind.FileName(jobID)
		if err := os.WriteFile(filepath.Join(staging, name), f.content, 0o644); err != nil {
			return domain.Result{}, fmt.Errorf("failed to write %s artifact: %w", f.kind, err)
		}
	}

	published := make([]string, 0, len(files))
	for _, f := range files {
		name := f.kind.FileName(jobID)
		target := filepath.Join(dir, name)
		if err := os.Rename(filepath.Join(staging, name), target); err != nil {
			for _, p := range published {
				_ = os.Remove(p)
			}
			return domain.Result{}, fmt.Errorf("failed to publish %s artifact: %w", f.kind, err)
		}
		published = append(published, target)
	}

	return ResultFor(dir, jobID), nil
}

// ResultFor returns the artifact paths of jobID inside dir
func ResultFor(dir, jobID string) domain.Result {
	return domain.Result{
		TranscriptPath:    filepath.Join(dir, domain.ArtifactTranscript.FileName(jobID)),
		GraphPath:         filepath.Join(dir, domain.ArtifactGraph.FileName(jobID)),
		CognitiveLoadPath: filepath.Join(dir, domain.ArtifactCognitiveLoad.FileName(jobID)),
		StrDataPath:       filepath.Join(dir, domain.ArtifactStrData.FileName(jobID)),
	}
}

// ArtifactsExist reports whether every artifact of jobID is present in dir
func ArtifactsExist(dir, jobID string) bool {
	for _, kind := range domain.ArtifactKinds {
		info, err := os.Stat(filepath.Join(dir, kind.FileName(jobID)))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}
