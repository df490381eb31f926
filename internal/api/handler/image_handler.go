package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/niceshot/internal/api/dto"
	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/gin-gonic/gin"
)

// readPixels reads the raw RGBA request body and validates it against the given dimensions
func (h *PipelineHandler) readPixels(c *gin.Context, width, height int) (buffer.Handle, error) {
	if err := buffer.ValidateDimensions(width, height); err != nil {
		return buffer.Handle{}, err
	}

	body := c.Request.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return buffer.Handle{}, fmt.Errorf("%w: failed to read pixel body: %v", domain.ErrInvalidArgument, err)
	}
	return buffer.New(data, width, height)
}

func parseJobID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("job_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: job_id must be a positive integer", domain.ErrInvalidArgument)
	}
	return id, nil
}

// SubmitImage handles POST /api/v1/images
// The body is width*height*4 bytes of RGBA. With async=true the job id is returned immediately.
func (h *PipelineHandler) SubmitImage(c *gin.Context) {
	var req dto.SubmitImageQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	pixels, err := h.readPixels(c, req.Width, req.Height)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !req.Async {
		if err := h.pipeline.SubmitSync(pixels, req.Path); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.SubmitImageResponse{
			Status: domain.JobStatusCompleted,
			Code:   domain.JobCodeCompleted,
		})
		return
	}

	id, err := h.pipeline.SubmitAsync(pixels, req.Path)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Debug("Image job queued", slog.Uint64("job_id", id), slog.String("path", req.Path))
	c.JSON(http.StatusAccepted, dto.SubmitImageResponse{
		JobID:  id,
		Status: domain.JobStatusQueued,
		Code:   domain.JobCodeQueued,
	})
}

// GetJob handles GET /api/v1/images/jobs/:job_id
func (h *PipelineHandler) GetJob(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	job, err := h.pipeline.Job(id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		JobInfo:    job,
		Code:       job.Status.Code(),
		DurationMs: job.Duration().Milliseconds(),
	})
}

// GetJobCode handles GET /api/v1/images/jobs/:job_id/code
// Unknown jobs and a stopped pipeline both answer 200 with the not found code.
func (h *PipelineHandler) GetJobCode(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobCodeResponse{JobID: id, Code: h.pipeline.PollCode(id)})
}

// CleanupJob handles DELETE /api/v1/images/jobs/:job_id
func (h *PipelineHandler) CleanupJob(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.pipeline.Cleanup(id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Pending handles GET /api/v1/images/pending
func (h *PipelineHandler) Pending(c *gin.Context) {
	pending, err := h.pipeline.PendingCount()
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PendingResponse{Pending: pending})
}
