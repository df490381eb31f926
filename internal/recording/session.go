// Package recording buffers captured video frames under a memory budget and drains them, in order,
// through a single encoding goroutine per session.
package recording

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/domain"
)

// Params are the caller-supplied settings of a recording
type Params struct {
	Width           int
	Height          int
	FPS             float64
	BitrateKbps     int
	MaxBufferFrames int
	Path            string
}

// Validate checks the parameters before any resource is allocated
func (p Params) Validate() error {
	if err := buffer.ValidateDimensions(p.Width, p.Height); err != nil {
		return err
	}
	if p.FPS <= 0 || p.FPS > 1000 {
		return fmt.Errorf("%w: fps %v out of range", domain.ErrInvalidArgument, p.FPS)
	}
	if p.BitrateKbps <= 0 {
		return fmt.Errorf("%w: bitrate must be positive", domain.ErrInvalidArgument)
	}
	if p.MaxBufferFrames < 1 {
		return fmt.Errorf("%w: max buffer frames must be at least 1", domain.ErrInvalidArgument)
	}
	if p.Path == "" {
		return fmt.Errorf("%w: empty output path", domain.ErrInvalidArgument)
	}
	return nil
}

// Stats is a point-in-time copy of the session counters
type Stats struct {
	Status         domain.RecordingStatus
	FramesCaptured uint64
	FramesEncoded  uint64
	FramesDropped  uint64
	EncodeErrors   uint64
	BufferedFrames int
	BufferedBytes  int64
	MaxBytes       int64
}

// UsagePercent is the share of the byte budget held by buffered frames
func (s Stats) UsagePercent() float64 {
	if s.MaxBytes == 0 {
		return 0
	}
	return float64(s.BufferedBytes) * 100 / float64(s.MaxBytes)
}

// Session owns the ring buffer and the encoding goroutine of one recording
type Session struct {
	id        string
	params    Params
	video     codec.VideoConfig
	encoder   codec.VideoEncoder
	output    io.WriteCloser
	frameCost int64
	logger    *slog.Logger
	startedAt time.Time

	mu            sync.Mutex
	cond          *sync.Cond
	ring          *frameRing
	bufferedBytes int64
	maxBytes      int64
	status        domain.RecordingStatus
	stopping      bool
	nextSeq       uint64
	captured      uint64
	encoded       uint64
	dropped       uint64
	encodeErrors  uint64
	finishErr     error

	done chan struct{}
}

// sessionConfig groups what a session needs besides the caller parameters
type sessionConfig struct {
	ID       string
	Params   Params
	Video    codec.VideoConfig
	Encoder  codec.VideoEncoder
	Output   io.WriteCloser
	Overhead int
	Logger   *slog.Logger
}

// newSession sizes the byte budget and starts the encoding goroutine
func newSession(cfg sessionConfig) *Session {
	frameCost := int64(buffer.Size(cfg.Params.Width, cfg.Params.Height) + cfg.Overhead)
	s := &Session{
		id:        cfg.ID,
		params:    cfg.Params,
		video:     cfg.Video,
		encoder:   cfg.Encoder,
		output:    cfg.Output,
		frameCost: frameCost,
		logger:    cfg.Logger,
		startedAt: time.Now(),
		ring:      newFrameRing(cfg.Params.MaxBufferFrames),
		maxBytes:  frameCost * int64(cfg.Params.MaxBufferFrames),
		status:    domain.RecordingStatusRecording,
		done:      make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	go s.encodeLoop()
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Admit copies one frame into the buffer, or drops it when the byte budget would be exceeded.
// It never waits for buffer space.
func (s *Session) Admit(h buffer.Handle) (uint64, error) {
	if h.Width() != s.params.Width || h.Height() != s.params.Height {
		return 0, fmt.Errorf("%w: frame is %dx%d, recording is %dx%d",
			domain.ErrInvalidArgument, h.Width(), h.Height(), s.params.Width, s.params.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.RecordingStatusRecording {
		return 0, domain.ErrNotRecording
	}
	if s.bufferedBytes+s.frameCost > s.maxBytes {
		s.dropped++
		return 0, domain.ErrDropped
	}

	pixels, err := h.Copy()
	if err != nil {
		return 0, err
	}

	s.nextSeq++
	s.ring.push(&Frame{
		Seq:        s.nextSeq,
		Pixels:     pixels,
		Width:      h.Width(),
		Height:     h.Height(),
		CapturedAt: time.Now(),
	})
	s.bufferedBytes += s.frameCost
	s.captured++
	s.cond.Signal()

	return s.nextSeq, nil
}

// next blocks until a frame is buffered, or returns false once stop was requested and the buffer is empty
func (s *Session) next() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.ring.Len() == 0 && !s.stopping {
		s.cond.Wait()
	}
	f, ok := s.ring.pop()
	if !ok {
		return nil, false
	}
	s.bufferedBytes -= s.frameCost
	return f, true
}

// encodeLoop drains frames in admission order, then flushes the encoder and closes the output
func (s *Session) encodeLoop() {
	defer close(s.done)

	for {
		f, ok := s.next()
		if !ok {
			break
		}

		err := s.encodeFrame(f)

		s.mu.Lock()
		if err != nil {
			s.encodeErrors++
		} else {
			s.encoded++
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("Failed to encode frame",
				slog.String("session_id", s.id),
				slog.Uint64("seq", f.Seq),
				slog.String("error", err.Error()),
			)
		}
	}

	err := s.finish()

	s.mu.Lock()
	s.finishErr = err
	s.mu.Unlock()
}

func (s *Session) encodeFrame(f *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewEncodeError("video", fmt.Errorf("panic: %v", r))
		}
	}()

	data, err := s.encoder.EncodeFrame(f.Pixels, f.Width, f.Height, int64(f.Seq-1))
	if err != nil {
		return domain.NewEncodeError("video", err)
	}
	return s.write(data)
}

func (s *Session) finish() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewEncodeError("flush", fmt.Errorf("panic: %v", r))
		}
	}()

	data, flushErr := s.encoder.Flush()
	if flushErr != nil {
		err = domain.NewEncodeError("flush", flushErr)
	} else {
		err = s.write(data)
	}

	if s.output != nil {
		if closeErr := s.output.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", closeErr)
		}
	}
	return err
}

func (s *Session) write(data []byte) error {
	if len(data) == 0 || s.output == nil {
		return nil
	}
	if _, err := s.output.Write(data); err != nil {
		return fmt.Errorf("failed to write bitstream: %w", err)
	}
	return nil
}

// Stop marks the session Finalizing, waits for every buffered frame to be encoded and the encoder
// to be flushed, and returns the final summary
func (s *Session) Stop() (domain.RecordingSummary, error) {
	s.mu.Lock()
	if s.status != domain.RecordingStatusRecording {
		s.mu.Unlock()
		return domain.RecordingSummary{}, domain.ErrNotRecording
	}
	s.status = domain.RecordingStatusFinalizing
	s.stopping = true
	s.cond.Broadcast()
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = domain.RecordingStatusNotRecording
	summary := s.summaryLocked()
	if s.finishErr != nil {
		summary.Status = domain.RecordingStatusError
	}
	return summary, s.finishErr
}

// Stats returns the current counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Status:         s.status,
		FramesCaptured: s.captured,
		FramesEncoded:  s.encoded,
		FramesDropped:  s.dropped,
		EncodeErrors:   s.encodeErrors,
		BufferedFrames: s.ring.Len(),
		BufferedBytes:  s.bufferedBytes,
		MaxBytes:       s.maxBytes,
	}
}

func (s *Session) summaryLocked() domain.RecordingSummary {
	return domain.RecordingSummary{
		SessionID:      s.id,
		Path:           s.params.Path,
		Width:          s.params.Width,
		Height:         s.params.Height,
		FPS:            s.params.FPS,
		BitrateKbps:    s.params.BitrateKbps,
		FramesCaptured: s.captured,
		FramesEncoded:  s.encoded,
		FramesDropped:  s.dropped,
		EncodeErrors:   s.encodeErrors,
		Status:         s.status,
		StartedAt:      s.startedAt,
		FinishedAt:     time.Now(),
	}
}
