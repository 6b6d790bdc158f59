package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/lecture-analysis/internal/api/model"
	"github.com/cuongbtq/lecture-analysis/shared/postgresql"
)

// Schema creates the job history table; safe to run repeatedly
//
//go:embed schema.sql
var Schema string

// ErrRecordNotFound is returned when no history row exists for a job id
var ErrRecordNotFound = errors.New("job record not found")

// Storage persists finished jobs in PostgreSQL
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// UpsertJob inserts the record, or replaces the outcome of an earlier run of
// the same job id while keeping its original created_at.
func (s *Storage) UpsertJob(ctx context.Context, job *model.JobRecord) error {
	query := `
		INSERT INTO analysis_jobs (
			job_id, user_id, status, media_path,
			transcript_path, graph_path, cognitive_load_path, str_data_path,
			error_stage, error_message, started_at, finished_at,
			created_at, updated_at
		) VALUES (
			:job_id, :user_id, :status, :media_path,
			:transcript_path, :graph_path, :cognitive_load_path, :str_data_path,
			:error_stage, :error_message, :started_at, :finished_at,
			:created_at, :updated_at
		)
		ON CONFLICT (job_id) DO UPDATE SET
			status              = EXCLUDED.status,
			media_path          = EXCLUDED.media_path,
			transcript_path     = EXCLUDED.transcript_path,
			graph_path          = EXCLUDED.graph_path,
			cognitive_load_path = EXCLUDED.cognitive_load_path,
			str_data_path       = EXCLUDED.str_data_path,
			error_stage         = EXCLUDED.error_stage,
			error_message       = EXCLUDED.error_message,
			started_at          = EXCLUDED.started_at,
			finished_at         = EXCLUDED.finished_at,
			updated_at          = EXCLUDED.updated_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}

const selectColumns = `
	job_id, user_id, status, media_path,
	transcript_path, graph_path, cognitive_load_path, str_data_path,
	error_stage, error_message, started_at, finished_at,
	created_at, updated_at
`

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.JobRecord, error) {
	var job model.JobRecord
	query := `SELECT ` + selectColumns + ` FROM analysis_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UserID   string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 records, newest first. The extra row tells
// the caller whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.JobRecord, error) {
	query, args := buildListQuery(filter)

	var jobs []model.JobRecord
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func buildListQuery(filter JobFilter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT ` + selectColumns + ` FROM analysis_jobs WHERE 1=1`)

	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		fmt.Fprintf(&b, " AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Status != "" {
		fmt.Fprintf(&b, " AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		fmt.Fprintf(&b, " AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// job_id breaks ties so pages never overlap
	b.WriteString(" ORDER BY created_at DESC, job_id DESC")

	fmt.Fprintf(&b, " LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return b.String(), args
}
