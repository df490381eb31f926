package router

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/niceshot/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options holds the router settings that are not handler dependencies
type Options struct {
	// MetricsPath is where Metrics is mounted, empty disables it
	MetricsPath string
	Metrics     http.Handler
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger, "/api/v1/recording/frames"))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if !deps.Pipeline.Initialized() {
			status = "idle"
		}
		body := gin.H{
			"status":  status,
			"service": "niceshot",
			"version": deps.Pipeline.Version(),
		}

		code := http.StatusOK
		if deps.History != nil {
			body["database"] = "healthy"
			if err := deps.History.HealthCheck(c.Request.Context()); err != nil {
				deps.Logger.Warn("History database health check failed", slog.String("error", err.Error()))
				body["status"] = "unhealthy"
				body["database"] = "unhealthy"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, body)
	})

	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(opts.Metrics))
	}

	h := handler.NewPipelineHandler(deps)

	v1 := r.Group("/api/v1")
	{
		pipeline := v1.Group("/pipeline")
		{
			pipeline.GET("", h.GetStatus)
			pipeline.POST("", h.Init)
			pipeline.DELETE("", h.Shutdown)
			pipeline.PUT("/compression", h.SetCompression)
			pipeline.PUT("/workers", h.SetWorkers)
			pipeline.PUT("/preset", h.SetPreset)
		}

		images := v1.Group("/images")
		{
			// POST /api/v1/images?width=&height=&path=&async= with a raw RGBA body
			images.POST("", h.SubmitImage)
			images.GET("/pending", h.Pending)
			images.GET("/jobs/:job_id", h.GetJob)
			images.GET("/jobs/:job_id/code", h.GetJobCode)
			images.DELETE("/jobs/:job_id", h.CleanupJob)
		}

		recording := v1.Group("/recording")
		{
			recording.POST("", h.StartRecording)
			recording.GET("", h.GetRecording)
			recording.DELETE("", h.StopRecording)
			recording.POST("/frames", h.RecordFrame)
		}

		history := v1.Group("/history")
		{
			history.GET("/jobs", h.ListJobHistory)
			history.GET("/recordings", h.ListRecordingHistory)
		}
	}

	return r
}
