package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/niceshot/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// GetStatus handles GET /api/v1/pipeline
func (h *PipelineHandler) GetStatus(c *gin.Context) {
	resp := dto.PipelineStatusResponse{
		Version:          h.pipeline.Version(),
		Initialized:      h.pipeline.Initialized(),
		WorkerRunning:    h.pipeline.WorkerRunning(),
		WorkerCount:      h.pipeline.WorkerCount(),
		CompressionLevel: h.pipeline.CompressionLevel(),
		VideoPreset:      h.pipeline.VideoPreset(),
		RecordingStatus:  string(h.pipeline.RecordingStatus()),
	}
	if pending, err := h.pipeline.PendingCount(); err == nil {
		resp.PendingJobs = pending
	}

	c.JSON(http.StatusOK, resp)
}

// Init handles POST /api/v1/pipeline
func (h *PipelineHandler) Init(c *gin.Context) {
	if err := h.pipeline.Init(); err != nil {
		h.respondError(c, err)
		return
	}
	h.GetStatus(c)
}

// Shutdown handles DELETE /api/v1/pipeline
func (h *PipelineHandler) Shutdown(c *gin.Context) {
	if err := h.pipeline.Shutdown(); err != nil {
		h.logger.Error("Pipeline shutdown reported an error", slog.String("error", err.Error()))
		h.respondError(c, err)
		return
	}
	h.GetStatus(c)
}

// SetCompression handles PUT /api/v1/pipeline/compression
func (h *PipelineHandler) SetCompression(c *gin.Context) {
	var req dto.SetCompressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.pipeline.SetCompressionLevel(*req.Level); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Compression level changed", slog.Int("level", *req.Level))
	c.JSON(http.StatusOK, gin.H{"compression_level": h.pipeline.CompressionLevel()})
}

// SetWorkers handles PUT /api/v1/pipeline/workers
func (h *PipelineHandler) SetWorkers(c *gin.Context) {
	var req dto.SetWorkerCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.pipeline.SetWorkerCount(req.Count); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Worker count changed", slog.Int("workers", req.Count))
	c.JSON(http.StatusOK, gin.H{"worker_count": h.pipeline.WorkerCount()})
}

// SetPreset handles PUT /api/v1/pipeline/preset
func (h *PipelineHandler) SetPreset(c *gin.Context) {
	var req dto.SetPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.pipeline.SetVideoPreset(*req.Preset); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_preset": h.pipeline.VideoPreset()})
}
