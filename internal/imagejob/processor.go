package imagejob

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/domain"
)

// processJob encodes one job outside the table lock and records the outcome
func (p *Pool) processJob(workerName string, job *domain.Job) {
	err := Encode(p.encoder, job.Pixels, job.Width, job.Height, job.Path, p.level())
	info := p.finish(job, err)

	if err != nil {
		p.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.Uint64("job_id", info.ID),
			slog.String("path", info.Path),
			slog.String("error", info.Error),
		)
	} else {
		p.logger.Info("Job completed successfully",
			slog.String("worker_name", workerName),
			slog.Uint64("job_id", info.ID),
			slog.String("path", info.Path),
			slog.Duration("duration", info.Duration()),
		)
	}

	if p.observer != nil {
		p.observer.JobFinished(info)
	}
}

// Encode runs the image encoder and converts both returned errors and panics into EncodeError
func Encode(enc codec.ImageEncoder, pixels []byte, width, height int, path string, level int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewEncodeError("png", fmt.Errorf("panic: %v", r))
		}
	}()

	if enc == nil {
		return domain.NewEncodeError("png", fmt.Errorf("no image encoder configured"))
	}
	if err := enc.Encode(pixels, width, height, path, level); err != nil {
		return domain.NewEncodeError("png", err)
	}
	return nil
}
