// Package pipeline is the call surface a host application uses: lifecycle, still-image submission
// and polling, tuning, and video recording.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/ffmpeg"
	"github.com/cuongbtq/niceshot/internal/imagejob"
	"github.com/cuongbtq/niceshot/internal/recording"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Version identifies this build of the pipeline
const Version = "NiceShot v0.1.0"

// Worker count bounds
const (
	MinWorkers = 1
	MaxWorkers = 8
)

// Config holds pipeline configuration
type Config struct {
	Logger *slog.Logger
	// WorkerCount of 0 selects the logical CPU count
	WorkerCount       int
	CompressionLevel  int
	VideoPreset       int
	ImageEncoder      codec.ImageEncoder
	VideoFactory      recording.EncoderFactory
	FrameOverhead     int
	WriteSidecar      bool
	JobObserver       imagejob.Observer
	RecordingObserver recording.Observer
}

// PipelineContext owns the worker pool, the job table and the recorder. It is created once and
// shared by every caller.
type PipelineContext struct {
	logger      *slog.Logger
	encoder     codec.ImageEncoder
	jobObserver imagejob.Observer
	recorder    *recording.Recorder

	mu          sync.Mutex
	pool        atomic.Pointer[imagejob.Pool]
	workerCount atomic.Int32
	compression atomic.Int32
	preset      atomic.Int32
}

// New creates a pipeline. Nothing runs until Init is called.
func New(cfg *Config) (*PipelineContext, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &PipelineContext{
		logger:      logger,
		encoder:     cfg.ImageEncoder,
		jobObserver: cfg.JobObserver,
	}
	if p.encoder == nil {
		p.encoder = codec.NewPNGEncoder()
	}

	workers := cfg.WorkerCount
	if workers == 0 {
		workers = DefaultWorkerCount()
	}
	if err := p.SetWorkerCount(workers); err != nil {
		return nil, err
	}
	if err := p.SetCompressionLevel(cfg.CompressionLevel); err != nil {
		return nil, err
	}
	if err := p.SetVideoPreset(cfg.VideoPreset); err != nil {
		return nil, err
	}

	p.recorder = recording.NewRecorder(&recording.Config{
		Logger:        logger,
		Factory:       cfg.VideoFactory,
		FrameOverhead: cfg.FrameOverhead,
		Preset:        p.presetName,
		WriteSidecar:  cfg.WriteSidecar,
		Observer:      cfg.RecordingObserver,
	})
	return p, nil
}

// DefaultWorkerCount is the number of logical CPUs clamped into [MinWorkers, MaxWorkers]
func DefaultWorkerCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Init starts the worker pool. Calling it again while initialized is a no-op.
func (p *PipelineContext) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool.Load() != nil {
		p.logger.Info("Pipeline already initialized")
		return nil
	}

	pool := imagejob.NewPool(&imagejob.Config{
		Logger:           p.logger,
		Encoder:          p.encoder,
		Concurrency:      p.WorkerCount(),
		CompressionLevel: p.CompressionLevel,
		Observer:         p.jobObserver,
	})
	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	p.recorder.Reopen()
	p.pool.Store(pool)

	p.logger.Info("Pipeline initialized",
		slog.String("version", Version),
		slog.Int("workers", p.WorkerCount()),
		slog.Int("compression_level", p.CompressionLevel()),
	)
	return nil
}

// Shutdown finalizes an active recording, stops the workers and discards queued jobs.
// Calling it while not initialized is a no-op.
func (p *PipelineContext) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool := p.pool.Load()
	if pool == nil {
		return nil
	}

	// cleared first so no new recording can start while the current one is finalized
	p.pool.Store(nil)

	var recErr error
	if p.recorder.Active() {
		p.logger.Info("Finalizing active recording before shutdown")
	}
	if _, err := p.recorder.Close(); err != nil && !errors.Is(err, domain.ErrNotRecording) {
		recErr = fmt.Errorf("failed to finalize recording: %w", err)
	}

	pool.Stop()

	p.logger.Info("Pipeline shut down")
	return recErr
}

// Initialized reports whether Init has been called without a matching Shutdown
func (p *PipelineContext) Initialized() bool {
	return p.pool.Load() != nil
}

// Version returns the build identifier
func (p *PipelineContext) Version() string {
	return Version
}

// SetCompressionLevel changes the PNG compression level for jobs started afterwards
func (p *PipelineContext) SetCompressionLevel(level int) error {
	if err := codec.ValidateCompressionLevel(level); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	p.compression.Store(int32(level))
	return nil
}

// CompressionLevel returns the current PNG compression level
func (p *PipelineContext) CompressionLevel() int {
	return int(p.compression.Load())
}

// SetWorkerCount changes the pool size. It is rejected while the pipeline is initialized.
func (p *PipelineContext) SetWorkerCount(n int) error {
	if n < MinWorkers || n > MaxWorkers {
		return fmt.Errorf("%w: worker count %d out of range [%d, %d]", domain.ErrInvalidArgument, n, MinWorkers, MaxWorkers)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool.Load() != nil {
		return fmt.Errorf("%w: worker count can only change before init", domain.ErrAlreadyActive)
	}
	p.workerCount.Store(int32(n))
	return nil
}

// WorkerCount returns the configured pool size
func (p *PipelineContext) WorkerCount() int {
	return int(p.workerCount.Load())
}

// WorkerRunning reports whether the worker goroutines are up
func (p *PipelineContext) WorkerRunning() bool {
	pool := p.pool.Load()
	return pool != nil && pool.Running()
}

// SetVideoPreset selects the encoder preset used by the next recording
func (p *PipelineContext) SetVideoPreset(preset int) error {
	if _, err := ffmpeg.PresetName(preset); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	p.preset.Store(int32(preset))
	return nil
}

// VideoPreset returns the numeric preset
func (p *PipelineContext) VideoPreset() int {
	return int(p.preset.Load())
}

func (p *PipelineContext) presetName() string {
	name, _ := ffmpeg.PresetName(p.VideoPreset())
	return name
}
