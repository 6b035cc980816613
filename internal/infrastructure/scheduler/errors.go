package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to dispatch to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidWrite is returned for a remote write without an offer id or external id
	ErrInvalidWrite = errors.New("invalid remote write")
)
