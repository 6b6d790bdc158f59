package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/lecture-analysis/internal/analysis"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/api/dto"
	"github.com/cuongbtq/lecture-analysis/internal/api/model"
	"github.com/cuongbtq/lecture-analysis/internal/api/storage"
	workerdomain "github.com/cuongbtq/lecture-analysis/internal/worker/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UploadVideo handles POST /api/v1/videos/upload
// Accepts a multipart upload (file, user_id) and queues it for analysis
func (h *JobHandler) UploadVideo(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.rejectTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			h.rejectTooLarge(c)
			return
		}
		h.logger.Warn("Upload without file", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "file is required"})
		return
	}

	owner := strings.TrimSpace(c.PostForm("user_id"))
	if owner == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "user_id is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unreadable file"})
		return
	}
	defer file.Close()

	result, err := h.analysis.Submit(c.Request.Context(), analysis.SubmitRequest{
		Owner:    owner,
		Filename: fileHeader.Filename,
		Body:     file,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOwnerRequired):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "user_id is required"})
		return
	case errors.Is(err, workerdomain.ErrPoolSaturated), errors.Is(err, workerdomain.ErrPoolClosed):
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "analysis queue is full, retry later"})
		return
	case isTooLarge(err):
		h.rejectTooLarge(c)
		return
	default:
		h.logger.Error("Failed to submit upload",
			slog.String("user_id", owner),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to accept upload"})
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{
		JobID:     result.JobID,
		Duplicate: result.Duplicate,
	})
}

func (h *JobHandler) rejectTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "upload exceeds size limit"})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// GetStatus handles GET /api/v1/jobs/:job_id/status
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	view, err := h.analysis.Status(jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "job not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job status", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to get job status"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetArtifact returns a handler serving one artifact file of a job
func (h *JobHandler) GetArtifact(kind domain.ArtifactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("job_id")

		path, err := h.analysis.ArtifactPath(jobID, kind)
		if err != nil {
			if !errors.Is(err, domain.ErrArtifactNotFound) && !errors.Is(err, domain.ErrInvalidJobID) {
				h.logger.Error("Failed to resolve artifact",
					slog.String("job_id", jobID),
					slog.String("artifact", string(kind)),
					slog.String("error", err.Error()),
				)
			}
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: string(kind) + " not found"})
			return
		}

		c.Header("Content-Type", "application/json")
		c.File(path)
	}
}

// ListJobs handles GET /api/v1/jobs
// Lists finished jobs from the history store, newest first
func (h *JobHandler) ListJobs(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "job history is disabled"})
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid cursor"})
		return
	}

	jobs, err := h.history.ListJobs(c.Request.Context(), storage.JobFilter{
		UserID:   req.UserID,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// GetJobHistory handles GET /api/v1/jobs/:job_id/history
// Returns the latest persisted run of a job, including jobs already swept from memory
func (h *JobHandler) GetJobHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "job history is disabled"})
		return
	}

	jobID := c.Param("job_id")
	job, err := h.history.GetJobByID(c.Request.Context(), jobID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "job not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job record", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

func toJobDTO(job *model.JobRecord) dto.JobDTO {
	return dto.JobDTO{
		JobID:             job.JobID,
		UserID:            job.UserID,
		Status:            job.Status,
		MediaPath:         job.MediaPath,
		TranscriptPath:    job.TranscriptPath.String,
		GraphPath:         job.GraphPath.String,
		CognitiveLoadPath: job.CognitiveLoadPath.String,
		StrDataPath:       job.StrDataPath.String,
		ErrorStage:        job.ErrorStage.String,
		ErrorMessage:      job.ErrorMessage.String,
		StartedAt:         job.StartedAt.Format(time.RFC3339),
		FinishedAt:        job.FinishedAt.Format(time.RFC3339),
		CreatedAt:         job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         job.UpdatedAt.Format(time.RFC3339),
	}
}
