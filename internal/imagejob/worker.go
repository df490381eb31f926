// Package imagejob runs still-image encode jobs on a fixed pool of worker goroutines.
//
// Jobs live in a single table keyed by identifier; the queue only holds identifiers.
// Both are guarded by one mutex paired with a condition variable that idle workers wait on.
package imagejob

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/domain"
)

// Observer is notified after a job reaches a terminal status. It runs on the worker goroutine
// with no lock held.
type Observer interface {
	JobFinished(info domain.JobInfo)
}

// Config holds worker pool configuration
type Config struct {
	Logger      *slog.Logger
	Encoder     codec.ImageEncoder
	Concurrency int
	// CompressionLevel is read once per job, so level changes apply to jobs started afterwards
	CompressionLevel func() int
	Observer         Observer
}

// Pool owns the job table, the pending queue and the worker goroutines
type Pool struct {
	logger      *slog.Logger
	encoder     codec.ImageEncoder
	concurrency int
	level       func() int
	observer    Observer

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     map[uint64]*domain.Job
	queue    []uint64
	nextID   uint64
	stopping bool

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewPool creates a new worker pool. Workers are not started until Start is called.
func NewPool(cfg *Config) *Pool {
	level := cfg.CompressionLevel
	if level == nil {
		level = func() int { return codec.DefaultCompressionLevel }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		logger:      logger,
		encoder:     cfg.Encoder,
		concurrency: cfg.Concurrency,
		level:       level,
		observer:    cfg.Observer,
		jobs:        make(map[uint64]*domain.Job),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start spawns the worker goroutines
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return domain.ErrAlreadyActive
	}

	p.stopping = false
	p.running.Store(true)
	p.spawnWorkerPool()
	return nil
}

// Stop wakes every worker, waits for in-flight jobs to finish and discards whatever is still queued.
// The job table is cleared and identifiers start over.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return
	}
	p.logger.Info("Stopping worker pool",
		slog.Int("pending_jobs", len(p.queue)),
	)
	p.stopping = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	discarded := len(p.queue)
	tracked := len(p.jobs)
	p.queue = nil
	p.jobs = make(map[uint64]*domain.Job)
	p.nextID = 0
	p.running.Store(false)
	p.mu.Unlock()

	p.logger.Info("Worker pool stopped",
		slog.Int("discarded_jobs", discarded),
		slog.Int("released_jobs", tracked),
	)
}

// Running reports whether the worker goroutines are up
func (p *Pool) Running() bool {
	return p.running.Load()
}

// Concurrency returns the number of worker goroutines
func (p *Pool) Concurrency() int {
	return p.concurrency
}
