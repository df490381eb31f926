package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"
)

// Observer is notified once a session has been finalized
type Observer interface {
	RecordingFinished(summary domain.RecordingSummary)
}

// Config holds recorder configuration
type Config struct {
	Logger        *slog.Logger
	Factory       EncoderFactory
	FrameOverhead int
	// Preset is read when a recording starts
	Preset       func() string
	WriteSidecar bool
	Observer     Observer
	// Context bounds encoder subprocesses; defaults to context.Background
	Context context.Context
}

// Recorder allows at most one active session at a time
type Recorder struct {
	logger       *slog.Logger
	factory      EncoderFactory
	overhead     int
	preset       func() string
	writeSidecar bool
	observer     Observer
	ctx          context.Context
	dropLimiter  *rate.Limiter

	mu      sync.Mutex
	session *Session
	failed  bool
	closed  bool
}

// NewRecorder creates a new recorder
func NewRecorder(cfg *Config) *Recorder {
	r := &Recorder{
		logger:       cfg.Logger,
		factory:      cfg.Factory,
		overhead:     cfg.FrameOverhead,
		preset:       cfg.Preset,
		writeSidecar: cfg.WriteSidecar,
		observer:     cfg.Observer,
		ctx:          cfg.Context,
		dropLimiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.factory == nil {
		r.factory = Y4MFactory{}
	}
	if r.overhead <= 0 {
		r.overhead = DefaultFrameOverhead
	}
	if r.preset == nil {
		r.preset = func() string { return "fast" }
	}
	if r.ctx == nil {
		r.ctx = context.Background()
	}
	return r
}

// Start opens the encoder and begins a new session
func (r *Recorder) Start(p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", fmt.Errorf("%w: recorder is closed", domain.ErrNotInitialized)
	}
	if r.session != nil {
		return "", fmt.Errorf("%w: recording %s is in progress", domain.ErrAlreadyActive, r.session.ID())
	}

	budget := uint64(buffer.Size(p.Width, p.Height)+r.overhead) * uint64(p.MaxBufferFrames)
	r.checkMemory(budget)

	video := codec.VideoConfig{
		Width:       p.Width,
		Height:      p.Height,
		FPS:         p.FPS,
		BitrateKbps: p.BitrateKbps,
		Preset:      r.preset(),
		Path:        p.Path,
	}
	enc, out, err := r.factory.Open(r.ctx, video)
	if err != nil {
		r.failed = true
		r.logger.Error("Failed to start recording",
			slog.String("path", p.Path),
			slog.String("error", err.Error()),
		)
		return "", domain.NewEncodeError("open", err)
	}

	r.failed = false
	r.session = newSession(sessionConfig{
		ID:       uuid.NewString(),
		Params:   p,
		Video:    video,
		Encoder:  enc,
		Output:   out,
		Overhead: r.overhead,
		Logger:   r.logger,
	})

	r.logger.Info("Recording started",
		slog.String("session_id", r.session.ID()),
		slog.String("path", p.Path),
		slog.Int("width", p.Width),
		slog.Int("height", p.Height),
		slog.Float64("fps", p.FPS),
		slog.Int("bitrate_kbps", p.BitrateKbps),
		slog.Int("max_buffer_frames", p.MaxBufferFrames),
		slog.String("preset", video.Preset),
		slog.String("format", r.factory.Format()),
	)
	return r.session.ID(), nil
}

// checkMemory warns when the frame budget exceeds the memory currently available
func (r *Recorder) checkMemory(budget uint64) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		r.logger.Debug("Failed to read system memory", slog.String("error", err.Error()))
		return
	}
	if budget > vm.Available {
		r.logger.Warn("Frame buffer budget exceeds available memory",
			slog.Uint64("budget_bytes", budget),
			slog.Uint64("available_bytes", vm.Available),
		)
	}
}

func (r *Recorder) current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// RecordFrame admits one frame into the active session. ErrDropped means the frame was shed.
func (r *Recorder) RecordFrame(h buffer.Handle) error {
	s := r.current()
	if s == nil {
		return domain.ErrNotRecording
	}

	_, err := s.Admit(h)
	if errors.Is(err, domain.ErrDropped) && r.dropLimiter.Allow() {
		stats := s.Stats()
		r.logger.Warn("Frame buffer full, dropping frames",
			slog.String("session_id", s.ID()),
			slog.Uint64("frames_dropped", stats.FramesDropped),
			slog.Int("buffered_frames", stats.BufferedFrames),
		)
	}
	return err
}

// Stop finalizes the active session. It blocks until every buffered frame has been encoded.
func (r *Recorder) Stop() (domain.RecordingSummary, error) {
	s := r.current()
	if s == nil {
		return domain.RecordingSummary{}, domain.ErrNotRecording
	}

	summary, err := s.Stop()
	if errors.Is(err, domain.ErrNotRecording) {
		return summary, err
	}

	if err == nil && r.writeSidecar && r.factory.Format() == FormatY4M {
		err = r.writeSidecarFor(s, summary)
	}

	r.mu.Lock()
	if r.session == s {
		r.session = nil
	}
	r.failed = err != nil
	r.mu.Unlock()

	if err != nil {
		summary.Status = domain.RecordingStatusError
		r.logger.Error("Recording finalized with error",
			slog.String("session_id", summary.SessionID),
			slog.String("error", err.Error()),
		)
	}
	r.logger.Info("Recording stopped",
		slog.String("session_id", summary.SessionID),
		slog.String("path", summary.Path),
		slog.Uint64("frames_captured", summary.FramesCaptured),
		slog.Uint64("frames_encoded", summary.FramesEncoded),
		slog.Uint64("frames_dropped", summary.FramesDropped),
		slog.Uint64("encode_errors", summary.EncodeErrors),
		slog.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	if r.observer != nil {
		r.observer.RecordingFinished(summary)
	}
	return summary, err
}

func (r *Recorder) writeSidecarFor(s *Session, summary domain.RecordingSummary) error {
	if summary.FramesEncoded == 0 {
		r.logger.Warn("No frames encoded, skipping sidecar", slog.String("path", summary.Path))
		return nil
	}
	sc := codec.NewSidecar(summary.Path, s.video, summary.FramesEncoded, summary.FramesDropped)
	return codec.WriteSidecar(codec.SidecarPath(summary.Path), sc)
}

// Status reports the recorder state. Error means the last start or finalization failed.
func (r *Recorder) Status() domain.RecordingStatus {
	r.mu.Lock()
	s, failed := r.session, r.failed
	r.mu.Unlock()

	if s == nil {
		if failed {
			return domain.RecordingStatusError
		}
		return domain.RecordingStatusNotRecording
	}
	return s.Stats().Status
}

// Stats returns the counters of the active session
func (r *Recorder) Stats() (Stats, error) {
	s := r.current()
	if s == nil {
		return Stats{}, domain.ErrNotRecording
	}
	return s.Stats(), nil
}

// BufferUsage returns the percentage of the byte budget held by buffered frames
func (r *Recorder) BufferUsage() (float64, error) {
	stats, err := r.Stats()
	if err != nil {
		return 0, err
	}
	return stats.UsagePercent(), nil
}

// FrameCount returns the number of frames admitted so far
func (r *Recorder) FrameCount() (uint64, error) {
	stats, err := r.Stats()
	if err != nil {
		return 0, err
	}
	return stats.FramesCaptured, nil
}

// Close rejects further starts and finalizes the active session, if any.
// Returns ErrNotRecording when there was nothing to finalize.
func (r *Recorder) Close() (domain.RecordingSummary, error) {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.Stop()
}

// Reopen allows sessions to start again after Close
func (r *Recorder) Reopen() {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()
}

// Active reports whether a session exists, including one that is finalizing
func (r *Recorder) Active() bool {
	return r.current() != nil
}
