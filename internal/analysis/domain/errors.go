package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id was never submitted or has been swept
	ErrJobNotFound = errors.New("job not found")

	// ErrJobInFlight is returned when registering over a job that is still pending
	ErrJobInFlight = errors.New("job is still processing")

	// ErrAlreadyResolved is returned when an outcome is resolved a second time
	ErrAlreadyResolved = errors.New("job outcome already resolved")

	// ErrArtifactNotFound is returned when a requested artifact file does not exist
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidJobID is returned for ids that cannot name a file in the upload directory
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrOwnerRequired is returned when an upload carries no owner identity
	ErrOwnerRequired = errors.New("owner identity is required")
)

// AnalysisError is the terminal failure of one pipeline run.
type AnalysisError struct {
	Stage    string
	Message  string
	ExitCode int
	Output   string
	Err      error
}

func (e *AnalysisError) Error() string {
	if e == nil {
		return ""
	}
	if e.Stage == StageExtract && e.ExitCode != 0 {
		return fmt.Sprintf("%s: %s (exit=%d)", e.Stage, e.Message, e.ExitCode)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind names the failure class of the stage: IoError, ExternalToolError,
// RemoteServiceError or PersistenceError.
func (e *AnalysisError) Kind() string {
	switch e.Stage {
	case StageIngest:
		return "IoError"
	case StageExtract:
		return "ExternalToolError"
	case StageAnalyze:
		return "RemoteServiceError"
	case StagePersist:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

// NewIoError reports a local filesystem failure while ingesting the upload.
func NewIoError(message string, err error) *AnalysisError {
	return &AnalysisError{Stage: StageIngest, Message: message, Err: err}
}

// NewExternalToolError reports a failed audio extraction subprocess.
func NewExternalToolError(message string, exitCode int, output string, err error) *AnalysisError {
	return &AnalysisError{Stage: StageExtract, Message: message, ExitCode: exitCode, Output: output, Err: err}
}

// NewRemoteServiceError reports a failed or malformed call to the analysis service.
func NewRemoteServiceError(message string, err error) *AnalysisError {
	return &AnalysisError{Stage: StageAnalyze, Message: message, Err: err}
}

// NewPersistenceError reports a failure writing result artifacts.
func NewPersistenceError(message string, err error) *AnalysisError {
	return &AnalysisError{Stage: StagePersist, Message: message, Err: err}
}
