package model

import (
	"database/sql"
	"time"
)

// JobRecord is the durable history row of one finished analysis run
type JobRecord struct {
	JobID             string         `db:"job_id"`
	UserID            string         `db:"user_id"`
	Status            string         `db:"status"`
	MediaPath         string         `db:"media_path"`
	TranscriptPath    sql.NullString `db:"transcript_path"`
	GraphPath         sql.NullString `db:"graph_path"`
	CognitiveLoadPath sql.NullString `db:"cognitive_load_path"`
	StrDataPath       sql.NullString `db:"str_data_path"`
	ErrorStage        sql.NullString `db:"error_stage"`
	ErrorMessage      sql.NullString `db:"error_message"`
	StartedAt         time.Time      `db:"started_at"`
	FinishedAt        time.Time      `db:"finished_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}
