package dto

import "github.com/cuongbtq/niceshot/internal/domain"

type PipelineStatusResponse struct {
	Version          string `json:"version"`
	Initialized      bool   `json:"initialized"`
	WorkerRunning    bool   `json:"worker_running"`
	WorkerCount      int    `json:"worker_count"`
	CompressionLevel int    `json:"compression_level"`
	VideoPreset      int    `json:"video_preset"`
	PendingJobs      int    `json:"pending_jobs"`
	RecordingStatus  string `json:"recording_status"`
}

type SetCompressionRequest struct {
	Level *int `json:"level" binding:"required"`
}

type SetWorkerCountRequest struct {
	Count int `json:"count" binding:"required"`
}

type SetPresetRequest struct {
	Preset *int `json:"preset" binding:"required"`
}

// SubmitImageQuery carries the image geometry; the RGBA pixels travel as the raw request body
type SubmitImageQuery struct {
	Width  int    `form:"width" binding:"required"`
	Height int    `form:"height" binding:"required"`
	Path   string `form:"path" binding:"required"`
	Async  bool   `form:"async"`
}

type SubmitImageResponse struct {
	JobID  uint64           `json:"job_id,omitempty"`
	Status domain.JobStatus `json:"status"`
	Code   int              `json:"code"`
}

type JobResponse struct {
	domain.JobInfo
	Code       int   `json:"code"`
	DurationMs int64 `json:"duration_ms"`
}

// JobCodeResponse carries the numeric poll code: 0 queued, 1 processing, 2 completed, -1 failed, -2 not found
type JobCodeResponse struct {
	JobID uint64 `json:"job_id"`
	Code  int    `json:"code"`
}

type PendingResponse struct {
	Pending int `json:"pending"`
}

type StartRecordingRequest struct {
	Width           int     `json:"width" binding:"required"`
	Height          int     `json:"height" binding:"required"`
	FPS             float64 `json:"fps" binding:"required"`
	BitrateKbps     int     `json:"bitrate_kbps" binding:"required"`
	MaxBufferFrames int     `json:"max_buffer_frames" binding:"required"`
	Path            string  `json:"path" binding:"required"`
}

type StartRecordingResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type RecordingStatusResponse struct {
	Status         domain.RecordingStatus `json:"status"`
	Code           int                    `json:"code"`
	FramesCaptured uint64                 `json:"frames_captured"`
	FramesEncoded  uint64                 `json:"frames_encoded"`
	FramesDropped  uint64                 `json:"frames_dropped"`
	BufferedFrames int                    `json:"buffered_frames"`
	BufferUsage    float64                `json:"buffer_usage_percent"`
}

type RecordFrameQuery struct {
	Width  int `form:"width" binding:"required"`
	Height int `form:"height" binding:"required"`
}

type RecordFrameResponse struct {
	Accepted bool `json:"accepted"`
}

type ListHistoryRequest struct {
	Limit int `form:"limit"`
}
