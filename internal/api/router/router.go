package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
	"github.com/cuongbtq/lecture-analysis/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Check)

	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.MetricsHandler))
	}

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		upload := []gin.HandlerFunc{jobHandler.UploadVideo}
		if deps.UploadRate > 0 {
			upload = append([]gin.HandlerFunc{RateLimitMiddleware(deps.UploadRate, deps.UploadBurst, deps.OnRateLimited)}, upload...)
		}
		// POST /api/v1/videos/upload - Upload a lecture video for analysis
		v1.POST("/videos/upload", upload...)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List finished jobs from history
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id/status - Current job status
			jobs.GET("/:job_id/status", jobHandler.GetStatus)

			// GET /api/v1/jobs/:job_id/history - Persisted record of the latest run
			jobs.GET("/:job_id/history", jobHandler.GetJobHistory)

			jobs.GET("/:job_id/transcript", jobHandler.GetArtifact(domain.ArtifactTranscript))
			jobs.GET("/:job_id/graph", jobHandler.GetArtifact(domain.ArtifactGraph))
			jobs.GET("/:job_id/cognitive-load", jobHandler.GetArtifact(domain.ArtifactCognitiveLoad))
			jobs.GET("/:job_id/str-data", jobHandler.GetArtifact(domain.ArtifactStrData))
		}
	}

	return r
}
