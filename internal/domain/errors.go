package domain

import "errors"

var (
	// ErrInvalidArgument is returned for bad dimensions, empty buffers or out-of-range tuning values
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotInitialized is returned when the pipeline is used before init or after shutdown
	ErrNotInitialized = errors.New("pipeline not initialized")

	// ErrNotFound is returned for an unknown job identifier
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyActive is returned when a second recording is started or the pool is reconfigured while running
	ErrAlreadyActive = errors.New("already active")

	// ErrNotRecording is returned when no recording session is active
	ErrNotRecording = errors.New("not recording")

	// ErrDropped signals that a frame was shed by admission control. It is flow control, not a failure.
	ErrDropped = errors.New("frame dropped")

	// ErrResourceExhausted is returned when a job or frame could not be allocated
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrJobActive is returned when cleanup is attempted on a queued or processing job
	ErrJobActive = errors.New("job is still queued or processing")
)

// EncodeError wraps a failure reported by an external codec
type EncodeError struct {
	Op  string
	Err error
}

func (e *EncodeError) Error() string {
	return "encode failure: " + e.Op + ": " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// NewEncodeError creates a new encode error
func NewEncodeError(op string, err error) error {
	return &EncodeError{Op: op, Err: err}
}

// IsEncodeFailure reports whether err carries an EncodeError
func IsEncodeFailure(err error) bool {
	var encErr *EncodeError
	return errors.As(err, &encErr)
}
