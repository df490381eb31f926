package handler

import (
	"errors"
	"net/http"

	"github.com/cuongbtq/niceshot/internal/api/dto"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/recording"
	"github.com/gin-gonic/gin"
)

// StartRecording handles POST /api/v1/recording
func (h *PipelineHandler) StartRecording(c *gin.Context) {
	var req dto.StartRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	sessionID, err := h.pipeline.StartRecording(recording.Params{
		Width:           req.Width,
		Height:          req.Height,
		FPS:             req.FPS,
		BitrateKbps:     req.BitrateKbps,
		MaxBufferFrames: req.MaxBufferFrames,
		Path:            req.Path,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.StartRecordingResponse{
		SessionID: sessionID,
		Status:    string(h.pipeline.RecordingStatus()),
	})
}

// RecordFrame handles POST /api/v1/recording/frames
// A dropped frame answers 429 so the producer can back off.
func (h *PipelineHandler) RecordFrame(c *gin.Context) {
	var req dto.RecordFrameQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	frame, err := h.readPixels(c, req.Width, req.Height)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.pipeline.RecordFrame(frame); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.RecordFrameResponse{Accepted: true})
}

// StopRecording handles DELETE /api/v1/recording
// A failed finalization still returns the summary, with status 500.
func (h *PipelineHandler) StopRecording(c *gin.Context) {
	summary, err := h.pipeline.StopRecording()
	if errors.Is(err, domain.ErrNotRecording) {
		h.respondError(c, err)
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetRecording handles GET /api/v1/recording
func (h *PipelineHandler) GetRecording(c *gin.Context) {
	state := h.pipeline.RecordingStatus()
	resp := dto.RecordingStatusResponse{
		Status: state,
		Code:   state.Code(),
	}

	stats, err := h.pipeline.RecordingStats()
	switch {
	case err == nil:
		resp.FramesCaptured = stats.FramesCaptured
		resp.FramesEncoded = stats.FramesEncoded
		resp.FramesDropped = stats.FramesDropped
		resp.BufferedFrames = stats.BufferedFrames
		resp.BufferUsage = stats.UsagePercent()
	case !errors.Is(err, domain.ErrNotRecording):
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
