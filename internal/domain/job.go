package domain

import "time"

// Job is one pending still-image encode. The descriptive fields never change after creation;
// Status, Error and the timestamps are owned by the job table lock.
type Job struct {
	ID     uint64
	Pixels []byte
	Width  int
	Height int
	Path   string

	Status     JobStatus
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot returns a copy of the job without its pixel data
func (j *Job) Snapshot() JobInfo {
	return JobInfo{
		ID:         j.ID,
		Width:      j.Width,
		Height:     j.Height,
		Path:       j.Path,
		Status:     j.Status,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// JobInfo is a point-in-time view of a job, safe to hand to other goroutines
type JobInfo struct {
	ID         uint64    `json:"job_id" db:"job_id"`
	Width      int       `json:"width" db:"width"`
	Height     int       `json:"height" db:"height"`
	Path       string    `json:"path" db:"path"`
	Status     JobStatus `json:"status" db:"status"`
	Error      string    `json:"error,omitempty" db:"error_message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}

// Duration is the encode time of a finished job
func (j JobInfo) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// RecordingSummary describes a recording session once it has been finalized
type RecordingSummary struct {
	SessionID      string          `json:"session_id" db:"session_id"`
	Path           string          `json:"path" db:"path"`
	Width          int             `json:"width" db:"width"`
	Height         int             `json:"height" db:"height"`
	FPS            float64         `json:"fps" db:"fps"`
	BitrateKbps    int             `json:"bitrate_kbps" db:"bitrate_kbps"`
	FramesCaptured uint64          `json:"frames_captured" db:"frames_captured"`
	FramesEncoded  uint64          `json:"frames_encoded" db:"frames_encoded"`
	FramesDropped  uint64          `json:"frames_dropped" db:"frames_dropped"`
	EncodeErrors   uint64          `json:"encode_errors" db:"encode_errors"`
	Status         RecordingStatus `json:"status" db:"status"`
	StartedAt      time.Time       `json:"started_at" db:"started_at"`
	FinishedAt     time.Time       `json:"finished_at" db:"finished_at"`
}
