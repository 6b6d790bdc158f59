package domain

import (
	"sync"
)

// State is the lifecycle position of a job outcome.
type State int

const (
	StatePending State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Result holds the artifact paths written by a completed job.
type Result struct {
	TranscriptPath    string
	GraphPath         string
	CognitiveLoadPath string
	StrDataPath       string
}

// Path returns the artifact path for kind.
func (r Result) Path(kind ArtifactKind) string {
	switch kind {
	case ArtifactTranscript:
		return r.TranscriptPath
	case ArtifactGraph:
		return r.GraphPath
	case ArtifactCognitiveLoad:
		return r.CognitiveLoadPath
	case ArtifactStrData:
		return r.StrDataPath
	default:
		return ""
	}
}

// Outcome is the handle a pipeline run resolves exactly once.
// Pending -> Completed or Pending -> Failed; terminal states never change.
type Outcome struct {
	mu     sync.RWMutex
	state  State
	result Result
	err    *AnalysisError
	done   chan struct{}
}

// NewOutcome returns a pending outcome.
func NewOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// Complete resolves the outcome successfully.
func (o *Outcome) Complete(result Result) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StatePending {
		return ErrAlreadyResolved
	}
	o.state = StateCompleted
	o.result = result
	close(o.done)
	return nil
}

// Fail resolves the outcome with err.
func (o *Outcome) Fail(err *AnalysisError) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StatePending {
		return ErrAlreadyResolved
	}
	o.state = StateFailed
	o.err = err
	close(o.done)
	return nil
}

// Done is closed once the outcome is resolved.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// State returns the current state.
func (o *Outcome) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Snapshot returns state, result and error under one lock.
func (o *Outcome) Snapshot() (State, Result, *AnalysisError) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state, o.result, o.err
}
