package dto

// UploadResponse is returned for an accepted upload
type UploadResponse struct {
	JobID     string `json:"jobId"`
	Duplicate bool   `json:"duplicate"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ListJobsRequest struct {
	UserID   string `form:"user_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is one row of the job history
type JobDTO struct {
	JobID             string `json:"job_id"`
	UserID            string `json:"user_id"`
	Status            string `json:"status"`
	MediaPath         string `json:"media_path"`
	TranscriptPath    string `json:"transcript_path,omitempty"`
	GraphPath         string `json:"graph_path,omitempty"`
	CognitiveLoadPath string `json:"cognitive_load_path,omitempty"`
	StrDataPath       string `json:"str_data_path,omitempty"`
	ErrorStage        string `json:"error_stage,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	StartedAt         string `json:"started_at"`
	FinishedAt        string `json:"finished_at"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// HealthResponse reports the state of each optional dependency
type HealthResponse struct {
	Status     string            `json:"status"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components,omitempty"`
}
