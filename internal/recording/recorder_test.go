package recording

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVideoEncoder struct {
	gate    chan struct{}
	started chan int64
	failAt  map[int64]error
	panicAt int64

	mu      sync.Mutex
	pts     []int64
	flushed int
}

func newStubVideoEncoder(gated bool) *stubVideoEncoder {
	e := &stubVideoEncoder{started: make(chan int64, 256), failAt: map[int64]error{}, panicAt: -1}
	if gated {
		e.gate = make(chan struct{})
	}
	return e
}

func (e *stubVideoEncoder) EncodeFrame(pixels []byte, width, height int, pts int64) ([]byte, error) {
	e.started <- pts
	if e.gate != nil {
		<-e.gate
	}
	if pts == e.panicAt {
		panic("bad frame")
	}

	e.mu.Lock()
	e.pts = append(e.pts, pts)
	e.mu.Unlock()

	if err := e.failAt[pts]; err != nil {
		return nil, err
	}
	return []byte{byte(pts)}, nil
}

func (e *stubVideoEncoder) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushed++
	return []byte("end"), nil
}

func (e *stubVideoEncoder) encodedPTS() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.pts...)
}

type memOutput struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (o *memOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = append(o.data, p...)
	return len(p), nil
}

func (o *memOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type stubFactory struct {
	enc *stubVideoEncoder
	out *memOutput
	err error
}

func (f *stubFactory) Open(_ context.Context, _ codec.VideoConfig) (codec.VideoEncoder, io.WriteCloser, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.enc, f.out, nil
}

func (f *stubFactory) Format() string { return FormatH264 }

type summaryObserver struct {
	mu        sync.Mutex
	summaries []domain.RecordingSummary
}

func (o *summaryObserver) RecordingFinished(s domain.RecordingSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summaries = append(o.summaries, s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frame(t *testing.T, width, height int) buffer.Handle {
	t.Helper()
	h, err := buffer.New(make([]byte, width*height*4), width, height)
	require.NoError(t, err)
	return h
}

func params(maxFrames int) Params {
	return Params{Width: 8, Height: 8, FPS: 30, BitrateKbps: 1000, MaxBufferFrames: maxFrames, Path: "out.h264"}
}

func TestRecorder_ScenarioSmallRecording(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.y4m")
	r := NewRecorder(&Config{Logger: testLogger(), Factory: Y4MFactory{}, WriteSidecar: true})

	_, err := r.Start(Params{Width: 64, Height: 64, FPS: 30, BitrateKbps: 1000, MaxBufferFrames: 10, Path: path})
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusRecording, r.Status())

	for i := 0; i < 5; i++ {
		require.NoError(t, r.RecordFrame(frame(t, 64, 64)))
	}

	usage, err := r.BufferUsage()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, usage, 0.0)
	assert.LessOrEqual(t, usage, 50.0)

	count, err := r.FrameCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	summary, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), summary.FramesCaptured)
	assert.Equal(t, summary.FramesCaptured, summary.FramesEncoded)

	_, err = r.FrameCount()
	assert.ErrorIs(t, err, domain.ErrNotRecording)
	_, err = r.BufferUsage()
	assert.ErrorIs(t, err, domain.ErrNotRecording)
	assert.Equal(t, domain.RecordingStatusNotRecording, r.Status())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(5*64*64*3/2))

	sc, err := codec.ReadSidecar(codec.SidecarPath(path))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sc.FrameCount)
	assert.Equal(t, 64, sc.Width)
}

func TestRecorder_BudgetAndDrops(t *testing.T) {
	enc := newStubVideoEncoder(true)
	out := &memOutput{}
	r := NewRecorder(&Config{Logger: testLogger(), Factory: &stubFactory{enc: enc, out: out}})

	_, err := r.Start(params(4))
	require.NoError(t, err)

	// The first frame leaves the buffer as soon as the encoder picks it up
	require.NoError(t, r.RecordFrame(frame(t, 8, 8)))
	<-enc.started

	for i := 0; i < 2; i++ {
		require.NoError(t, r.RecordFrame(frame(t, 8, 8)))
	}
	usage, err := r.BufferUsage()
	require.NoError(t, err)
	assert.InDelta(t, 50.0, usage, 0.001)

	for i := 0; i < 2; i++ {
		require.NoError(t, r.RecordFrame(frame(t, 8, 8)))
	}
	usage, err = r.BufferUsage()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, usage, 0.001)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, r.RecordFrame(frame(t, 8, 8)), domain.ErrDropped)
	}

	stats, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stats.FramesCaptured)
	assert.Equal(t, uint64(3), stats.FramesDropped)
	assert.Equal(t, 4, stats.BufferedFrames)

	close(enc.gate)
	summary, err := r.Stop()
	require.NoError(t, err)

	assert.Equal(t, uint64(5), summary.FramesCaptured)
	assert.Equal(t, uint64(5), summary.FramesEncoded)
	assert.Equal(t, uint64(3), summary.FramesDropped)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, enc.encodedPTS())
	assert.Equal(t, 1, enc.flushed)
	assert.True(t, out.closed)
	assert.Equal(t, append([]byte{0, 1, 2, 3, 4}, "end"...), out.data)
}

func TestRecorder_StopDrainsBufferedFrames(t *testing.T) {
	enc := newStubVideoEncoder(true)
	r := NewRecorder(&Config{Logger: testLogger(), Factory: &stubFactory{enc: enc, out: &memOutput{}}})

	_, err := r.Start(params(50))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, r.RecordFrame(frame(t, 8, 8)))
	}
	<-enc.started

	stopped := make(chan domain.RecordingSummary)
	go func() {
		summary, err := r.Stop()
		assert.NoError(t, err)
		stopped <- summary
	}()

	require.Eventually(t, func() bool {
		return r.Status() == domain.RecordingStatusFinalizing
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, r.RecordFrame(frame(t, 8, 8)), domain.ErrNotRecording)
	_, err = r.Start(params(1))
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	close(enc.gate)
	summary := <-stopped
	assert.Equal(t, uint64(20), summary.FramesCaptured)
	assert.Equal(t, uint64(20), summary.FramesEncoded)
	assert.Len(t, enc.encodedPTS(), 20)
}

func TestRecorder_SingleActiveSession(t *testing.T) {
	r := NewRecorder(&Config{Logger: testLogger(), Factory: &stubFactory{enc: newStubVideoEncoder(false), out: &memOutput{}}})

	_, err := r.Stop()
	assert.ErrorIs(t, err, domain.ErrNotRecording)
	assert.ErrorIs(t, r.RecordFrame(frame(t, 8, 8)), domain.ErrNotRecording)

	id, err := r.Start(params(2))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = r.Start(params(2))
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	_, err = r.Stop()
	require.NoError(t, err)
	_, err = r.Stop()
	assert.ErrorIs(t, err, domain.ErrNotRecording)
}

func TestRecorder_CloseRejectsStarts(t *testing.T) {
	obs := &summaryObserver{}
	r := NewRecorder(&Config{
		Logger:   testLogger(),
		Factory:  &stubFactory{enc: newStubVideoEncoder(false), out: &memOutput{}},
		Observer: obs,
	})

	_, err := r.Close()
	assert.ErrorIs(t, err, domain.ErrNotRecording)
	_, err = r.Start(params(2))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.False(t, r.Active())

	r.Reopen()
	_, err = r.Start(params(2))
	require.NoError(t, err)
	require.NoError(t, r.RecordFrame(frame(t, 8, 8)))

	summary, err := r.Close()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.FramesEncoded)
	assert.False(t, r.Active())
	assert.Len(t, obs.summaries, 1)

	_, err = r.Start(params(2))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestRecorder_RejectsMismatchedFrame(t *testing.T) {
	r := NewRecorder(&Config{Logger: testLogger(), Factory: &stubFactory{enc: newStubVideoEncoder(false), out: &memOutput{}}})
	_, err := r.Start(params(2))
	require.NoError(t, err)
	defer r.Stop()

	assert.ErrorIs(t, r.RecordFrame(frame(t, 4, 4)), domain.ErrInvalidArgument)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{name: "zero width", mutate: func(p *Params) { p.Width = 0 }},
		{name: "negative height", mutate: func(p *Params) { p.Height = -1 }},
		{name: "zero fps", mutate: func(p *Params) { p.FPS = 0 }},
		{name: "zero bitrate", mutate: func(p *Params) { p.BitrateKbps = 0 }},
		{name: "no buffer", mutate: func(p *Params) { p.MaxBufferFrames = 0 }},
		{name: "empty path", mutate: func(p *Params) { p.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(1)
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), domain.ErrInvalidArgument)
		})
	}

	assert.NoError(t, params(1).Validate())
}

func TestRecorder_OpenFailureEntersErrorState(t *testing.T) {
	factory := &stubFactory{err: errors.New("no encoder")}
	r := NewRecorder(&Config{Logger: testLogger(), Factory: factory})

	_, err := r.Start(params(2))
	require.Error(t, err)
	assert.True(t, domain.IsEncodeFailure(err))
	assert.Equal(t, domain.RecordingStatusError, r.Status())
	assert.False(t, r.Active())

	factory.err = nil
	factory.enc = newStubVideoEncoder(false)
	factory.out = &memOutput{}
	_, err = r.Start(params(2))
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusRecording, r.Status())
	_, err = r.Stop()
	require.NoError(t, err)
}

func TestRecorder_EncodeFailuresAreCounted(t *testing.T) {
	enc := newStubVideoEncoder(false)
	enc.failAt[1] = errors.New("corrupt")
	enc.panicAt = 2
	obs := &summaryObserver{}
	r := NewRecorder(&Config{Logger: testLogger(), Factory: &stubFactory{enc: enc, out: &memOutput{}}, Observer: obs})

	_, err := r.Start(params(10))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.RecordFrame(frame(t, 8, 8)))
	}

	summary, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), summary.FramesCaptured)
	assert.Equal(t, uint64(2), summary.FramesEncoded)
	assert.Equal(t, uint64(2), summary.EncodeErrors)

	require.Len(t, obs.summaries, 1)
	assert.Equal(t, summary.SessionID, obs.summaries[0].SessionID)
}

func TestRecorder_PresetIsReadAtStart(t *testing.T) {
	preset := "medium"
	var seen codec.VideoConfig
	factory := &configCapture{seen: &seen}
	r := NewRecorder(&Config{Logger: testLogger(), Factory: factory, Preset: func() string { return preset }})

	_, err := r.Start(params(1))
	require.NoError(t, err)
	preset = "slower"
	_, err = r.Stop()
	require.NoError(t, err)

	assert.Equal(t, "medium", seen.Preset)
	assert.Equal(t, 30.0, seen.FPS)
}

type configCapture struct {
	seen *codec.VideoConfig
}

func (c *configCapture) Open(_ context.Context, cfg codec.VideoConfig) (codec.VideoEncoder, io.WriteCloser, error) {
	*c.seen = cfg
	return newStubVideoEncoder(false), nil, nil
}

func (c *configCapture) Format() string { return FormatH264 }

func TestNewEncoderFactory(t *testing.T) {
	f, err := NewEncoderFactory("", "")
	require.NoError(t, err)
	assert.Equal(t, FormatY4M, f.Format())

	f, err = NewEncoderFactory("ffmpeg", "/usr/bin/ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, FormatH264, f.Format())

	_, err = NewEncoderFactory("vp9", "")
	assert.Error(t, err)
}
