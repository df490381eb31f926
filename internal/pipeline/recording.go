package pipeline

import (
	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/recording"
)

// StartRecording begins a recording session with the current video preset
func (p *PipelineContext) StartRecording(params recording.Params) (string, error) {
	if !p.Initialized() {
		return "", domain.ErrNotInitialized
	}
	return p.recorder.Start(params)
}

// RecordFrame offers one frame to the active session. ErrDropped is flow control.
func (p *PipelineContext) RecordFrame(h buffer.Handle) error {
	if !p.Initialized() {
		return domain.ErrNotInitialized
	}
	return p.recorder.RecordFrame(h)
}

// StopRecording drains and finalizes the active session
func (p *PipelineContext) StopRecording() (domain.RecordingSummary, error) {
	return p.recorder.Stop()
}

// RecordingStatus reports the recorder state
func (p *PipelineContext) RecordingStatus() domain.RecordingStatus {
	return p.recorder.Status()
}

// RecordingBufferUsage returns the share of the frame budget in use, in percent
func (p *PipelineContext) RecordingBufferUsage() (float64, error) {
	return p.recorder.BufferUsage()
}

// RecordingFrameCount returns the number of frames admitted by the active session
func (p *PipelineContext) RecordingFrameCount() (uint64, error) {
	return p.recorder.FrameCount()
}

// RecordingStats returns the counters of the active session
func (p *PipelineContext) RecordingStats() (recording.Stats, error) {
	return p.recorder.Stats()
}
