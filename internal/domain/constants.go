package domain

// JobStatus is the lifecycle state of a still-image job
type JobStatus string

// Job status constants
const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Numeric job status codes returned across numeric boundaries
const (
	JobCodeQueued     = 0
	JobCodeProcessing = 1
	JobCodeCompleted  = 2
	JobCodeFailed     = -1
	JobCodeNotFound   = -2
)

// IsTerminal reports whether no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Code returns the numeric code of the status
func (s JobStatus) Code() int {
	switch s {
	case JobStatusQueued:
		return JobCodeQueued
	case JobStatusProcessing:
		return JobCodeProcessing
	case JobStatusCompleted:
		return JobCodeCompleted
	case JobStatusFailed:
		return JobCodeFailed
	default:
		return JobCodeNotFound
	}
}

// rank orders statuses so transitions can be checked for monotonicity
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next keeps the lifecycle monotonic:
// Queued -> Processing -> Completed|Failed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

// RecordingStatus is the state of the recording subsystem
type RecordingStatus string

// Recording status constants
const (
	RecordingStatusNotRecording RecordingStatus = "NOT_RECORDING"
	RecordingStatusRecording    RecordingStatus = "RECORDING"
	RecordingStatusFinalizing   RecordingStatus = "FINALIZING"
	RecordingStatusError        RecordingStatus = "ERROR"
)

// Code returns the numeric code of the recording status
func (s RecordingStatus) Code() int {
	switch s {
	case RecordingStatusRecording:
		return 1
	case RecordingStatusFinalizing:
		return 2
	case RecordingStatusError:
		return -1
	default:
		return 0
	}
}

// BytesPerPixel is the size of one RGBA pixel
const BytesPerPixel = 4
