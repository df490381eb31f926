package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/pipeline"
	"github.com/cuongbtq/niceshot/internal/storage"
	"github.com/gin-gonic/gin"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Pipeline *pipeline.PipelineContext
	// History is nil when the database is disabled
	History *storage.Store
	// MaxBodyBytes caps raw pixel uploads, 0 means unlimited
	MaxBodyBytes int64
}

// PipelineHandler handles pipeline, image and recording requests
type PipelineHandler struct {
	logger       *slog.Logger
	pipeline     *pipeline.PipelineContext
	history      *storage.Store
	maxBodyBytes int64
}

// NewPipelineHandler creates a new PipelineHandler instance
func NewPipelineHandler(deps *Dependencies) *PipelineHandler {
	return &PipelineHandler{
		logger:       deps.Logger,
		pipeline:     deps.Pipeline,
		history:      deps.History,
		maxBodyBytes: deps.MaxBodyBytes,
	}
}

// StatusFor maps a pipeline error onto an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrNotRecording),
		errors.Is(err, domain.ErrJobActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotInitialized), errors.Is(err, domain.ErrResourceExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDropped):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body and records the error on the context for the request logger
func (h *PipelineHandler) respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
