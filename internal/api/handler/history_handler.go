package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/niceshot/internal/api/dto"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *PipelineHandler) historyLimit(c *gin.Context) (int, bool) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "history store is disabled",
		})
		return 0, false
	}

	var req dto.ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return 0, false
	}

	if req.Limit <= 0 {
		req.Limit = defaultHistoryLimit
	}
	if req.Limit > maxHistoryLimit {
		req.Limit = maxHistoryLimit
	}
	return req.Limit, true
}

// ListJobHistory handles GET /api/v1/history/jobs
func (h *PipelineHandler) ListJobHistory(c *gin.Context) {
	limit, ok := h.historyLimit(c)
	if !ok {
		return
	}

	jobs, err := h.history.RecentJobs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list job history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list job history",
		})
		return
	}

	counts, err := h.history.JobStatusCounts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count job history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count job history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"counts": counts,
	})
}

// ListRecordingHistory handles GET /api/v1/history/recordings
func (h *PipelineHandler) ListRecordingHistory(c *gin.Context) {
	limit, ok := h.historyLimit(c)
	if !ok {
		return
	}

	recordings, err := h.history.RecentRecordings(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list recording history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list recording history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recordings": recordings})
}
