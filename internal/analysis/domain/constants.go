package domain

// Job status constants exposed to polling clients
const (
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// Pipeline stage names, in execution order
const (
	StageIngest  = "ingest"
	StageExtract = "extract"
	StageAnalyze = "analyze"
	StagePersist = "persist"
)

// ArtifactKind names one of the result documents produced by a completed job.
type ArtifactKind string

const (
	ArtifactTranscript    ArtifactKind = "transcript"
	ArtifactGraph         ArtifactKind = "graph"
	ArtifactCognitiveLoad ArtifactKind = "cognitive_load"
	ArtifactStrData       ArtifactKind = "str_data"
)

// ArtifactKinds lists every artifact in the order the pipeline writes them.
var ArtifactKinds = []ArtifactKind{
	ArtifactTranscript,
	ArtifactGraph,
	ArtifactCognitiveLoad,
	ArtifactStrData,
}

// FileName returns the on-disk name of the artifact for jobID.
func (k ArtifactKind) FileName(jobID string) string {
	return jobID + "_" + string(k) + ".json"
}

// AudioFileName returns the on-disk name of the extracted audio for jobID.
func AudioFileName(jobID string) string {
	return jobID + "_audio.mp3"
}
