package status

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

// View is the client-facing status of a job
type View struct {
	Status       string      `json:"status"`
	Result       *ResultView `json:"result,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	// ErrorKind is the failure class, e.g. ExternalToolError
	ErrorKind string `json:"errorKind,omitempty"`
}

// ResultView lists artifact locations of a completed job
type ResultView struct {
	TranscriptPath    string `json:"transcriptPath"`
	GraphPath         string `json:"graphPath"`
	CognitiveLoadPath string `json:"cognitiveLoadPath"`
	StrDataPath       string `json:"strDataPath"`
}

// JobLookup resolves a job id to its outcome
type JobLookup interface {
	Lookup(id string) (*domain.Outcome, error)
}

// Projector turns job outcomes into status views and artifact paths.
type Projector struct {
	jobs      JobLookup
	uploadDir string
}

// NewProjector creates a projector reading outcomes from jobs and artifacts from uploadDir
func NewProjector(jobs JobLookup, uploadDir string) *Projector {
	return &Projector{jobs: jobs, uploadDir: uploadDir}
}

// Project returns the status of id, or domain.ErrJobNotFound.
func (p *Projector) Project(id string) (View, error) {
	outcome, err := p.jobs.Lookup(id)
	if err != nil {
		return View{}, err
	}
	return ViewOf(outcome), nil
}

// ViewOf projects a single outcome
func ViewOf(outcome *domain.Outcome) View {
	state, result, analysisErr := outcome.Snapshot()
	switch state {
	case domain.StateCompleted:
		return View{
			Status: domain.JobStatusCompleted,
			Result: &ResultView{
				TranscriptPath:    result.TranscriptPath,
				GraphPath:         result.GraphPath,
				CognitiveLoadPath: result.CognitiveLoadPath,
				StrDataPath:       result.StrDataPath,
			},
		}
	case domain.StateFailed:
		return View{
			Status:       domain.JobStatusFailed,
			ErrorMessage: analysisErr.Error(),
			ErrorKind:    analysisErr.Kind(),
		}
	default:
		return View{Status: domain.JobStatusProcessing}
	}
}

// ArtifactPath returns the on-disk location of one artifact of id. It does not
// consult the registry: artifacts outlive swept jobs.
func (p *Projector) ArtifactPath(id string, kind domain.ArtifactKind) (string, error) {
	if err := ValidateJobID(id); err != nil {
		return "", err
	}

	path := filepath.Join(p.uploadDir, kind.FileName(id))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", domain.ErrArtifactNotFound
	}
	return path, nil
}

// ValidateJobID rejects ids that could escape the upload directory
func ValidateJobID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.ContainsRune(id, 0) {
		return domain.ErrInvalidJobID
	}
	return nil
}
