package imagejob

import (
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (p *Pool) spawnWorkerPool() {
	p.logger.Info("Spawning worker pool",
		slog.Int("concurrency", p.concurrency),
	)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}

	p.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", p.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (p *Pool) workerLoop(workerNum int) {
	defer p.wg.Done()

	workerName := fmt.Sprintf("png-worker-%d", workerNum)
	p.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		job, ok := p.dequeue()
		if !ok {
			p.logger.Debug("Worker goroutine stopping - shutdown requested",
				slog.String("worker_name", workerName),
			)
			return
		}

		p.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.Uint64("job_id", job.ID),
			slog.String("path", job.Path),
		)

		p.processJob(workerName, job)
	}
}
