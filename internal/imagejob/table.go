package imagejob

import (
	"fmt"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
)

// Submit copies the pixels into a new job, records it in the table and queues it.
// It never blocks on backlog: the queue has no capacity limit.
func (p *Pool) Submit(h buffer.Handle, path string) (uint64, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: empty output path", domain.ErrInvalidArgument)
	}
	if h.Len() == 0 {
		return 0, fmt.Errorf("%w: empty pixel buffer", domain.ErrInvalidArgument)
	}

	pixels, err := h.Copy()
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() || p.stopping {
		return 0, domain.ErrNotInitialized
	}

	p.nextID++
	job := &domain.Job{
		ID:        p.nextID,
		Pixels:    pixels,
		Width:     h.Width(),
		Height:    h.Height(),
		Path:      path,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	p.jobs[job.ID] = job
	p.queue = append(p.queue, job.ID)
	p.cond.Signal()

	return job.ID, nil
}

// Status returns the current status of a job without blocking on encoding
func (p *Pool) Status(id uint64) (domain.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return job.Status, nil
}

// Job returns a snapshot of a job
func (p *Pool) Job(id uint64) (domain.JobInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return domain.JobInfo{}, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return job.Snapshot(), nil
}

// Cleanup removes a finished job from the table. Queued and processing jobs are rejected.
func (p *Pool) Cleanup(id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %d is %s", domain.ErrJobActive, id, job.Status)
	}
	delete(p.jobs, id)
	return nil
}

// Pending returns the number of jobs still waiting in the queue
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Tracked returns the number of jobs in the table, finished or not
func (p *Pool) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// dequeue blocks until a job is available or the pool is stopping. The job is marked
// Processing before the lock is released, so no other worker can see it as queued.
func (p *Pool) dequeue() (*domain.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.stopping {
		p.cond.Wait()
	}
	if p.stopping {
		return nil, false
	}

	id := p.queue[0]
	p.queue[0] = 0
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.queue = nil
	}

	job := p.jobs[id]
	job.Status = domain.JobStatusProcessing
	job.StartedAt = time.Now()
	return job, true
}

// finish records the terminal status and releases the pixel copy
func (p *Pool) finish(job *domain.Job, encodeErr error) domain.JobInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := domain.JobStatusCompleted
	if encodeErr != nil {
		next = domain.JobStatusFailed
		job.Error = encodeErr.Error()
	}
	if job.Status.CanTransition(next) {
		job.Status = next
	}
	job.FinishedAt = time.Now()
	job.Pixels = nil

	return job.Snapshot()
}
