package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/imagejob"
)

func (p *PipelineContext) runningPool() (*imagejob.Pool, error) {
	pool := p.pool.Load()
	if pool == nil {
		return nil, domain.ErrNotInitialized
	}
	return pool, nil
}

// SubmitSync encodes the image on the calling goroutine
func (p *PipelineContext) SubmitSync(h buffer.Handle, path string) error {
	if _, err := p.runningPool(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty output path", domain.ErrInvalidArgument)
	}
	if h.Len() == 0 {
		return fmt.Errorf("%w: empty pixel buffer", domain.ErrInvalidArgument)
	}
	return imagejob.Encode(p.encoder, h.Bytes(), h.Width(), h.Height(), path, p.CompressionLevel())
}

// SubmitAsync queues the image and returns its job identifier immediately
func (p *PipelineContext) SubmitAsync(h buffer.Handle, path string) (uint64, error) {
	pool, err := p.runningPool()
	if err != nil {
		return 0, err
	}
	return pool.Submit(h, path)
}

// Poll returns the status of a job
func (p *PipelineContext) Poll(id uint64) (domain.JobStatus, error) {
	pool, err := p.runningPool()
	if err != nil {
		return "", err
	}
	return pool.Status(id)
}

// PollCode returns the numeric status of a job, JobCodeNotFound for unknown identifiers
func (p *PipelineContext) PollCode(id uint64) int {
	status, err := p.Poll(id)
	if err != nil {
		return domain.JobCodeNotFound
	}
	return status.Code()
}

// Job returns a snapshot of a job
func (p *PipelineContext) Job(id uint64) (domain.JobInfo, error) {
	pool, err := p.runningPool()
	if err != nil {
		return domain.JobInfo{}, err
	}
	return pool.Job(id)
}

// Cleanup removes a finished job
func (p *PipelineContext) Cleanup(id uint64) error {
	pool, err := p.runningPool()
	if err != nil {
		return err
	}
	return pool.Cleanup(id)
}

// PendingCount returns the number of jobs waiting in the queue
func (p *PipelineContext) PendingCount() (int, error) {
	pool, err := p.runningPool()
	if err != nil {
		return 0, err
	}
	return pool.Pending(), nil
}

// BenchmarkPNG encodes a synthetic image iterations times and returns the average encode time.
// It uses the current compression level and does not require Init.
func (p *PipelineContext) BenchmarkPNG(width, height, iterations int) (time.Duration, error) {
	if err := buffer.ValidateDimensions(width, height); err != nil {
		return 0, err
	}
	if iterations < 1 {
		return 0, fmt.Errorf("%w: iterations must be positive", domain.ErrInvalidArgument)
	}

	pixels := GradientPattern(width, height)
	dir, err := os.MkdirTemp("", "niceshot-bench-")
	if err != nil {
		return 0, fmt.Errorf("failed to create benchmark directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "bench.png")
	level := p.CompressionLevel()

	var total time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		if err := imagejob.Encode(p.encoder, pixels, width, height, path, level); err != nil {
			return 0, err
		}
		total += time.Since(start)
	}
	return total / time.Duration(iterations), nil
}

// GradientPattern returns an opaque RGBA gradient
func GradientPattern(width, height int) []byte {
	pixels := make([]byte, buffer.Size(width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * domain.BytesPerPixel
			pixels[i] = byte(x * 255 / max(width-1, 1))
			pixels[i+1] = byte(y * 255 / max(height-1, 1))
			pixels[i+2] = byte((x + y) & 0xFF)
			pixels[i+3] = 0xFF
		}
	}
	return pixels
}
