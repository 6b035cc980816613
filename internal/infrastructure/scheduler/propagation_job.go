package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// ---------------------------------------------------------------------------
// Propagation Job Types
// ---------------------------------------------------------------------------

// JobStatus represents the status of a propagation job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusRetrying  JobStatus = "RETRYING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	// JobStatusAbandoned means the scheduler stopped before the job finished;
	// the offer keeps its PENDING sync status.
	JobStatusAbandoned JobStatus = "ABANDONED"
)

// PropagationJob carries one remote write through the worker pool
type PropagationJob struct {
	ID    uuid.UUID
	Write offer.RemoteWrite

	Status JobStatus
	Error  string
	// Attempt counts the attempts started so far
	Attempt int
	// MaxRetries is the number of extra attempts allowed after a timeout
	MaxRetries    int
	NextAttemptAt *time.Time
	EnqueuedAt    time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// NewPropagationJob creates a pending job for w
func NewPropagationJob(w offer.RemoteWrite, maxRetries int) *PropagationJob {
	return &PropagationJob{
		ID:         uuid.New(),
		Write:      w,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
	}
}

// Start marks the beginning of an attempt
func (j *PropagationJob) Start() {
	now := time.Now()
	j.Attempt++
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.NextAttemptAt = nil
}

// Succeed marks the job as done
func (j *PropagationJob) Succeed() {
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.CompletedAt = &now
	j.Error = ""
}

// Fail marks the job as finally failed
func (j *PropagationJob) Fail(err error) {
	j.finish(JobStatusFailed, err)
}

// Abandon marks the job as dropped by a shutdown
func (j *PropagationJob) Abandon(err error) {
	j.finish(JobStatusAbandoned, err)
}

func (j *PropagationJob) finish(status JobStatus, err error) {
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	if err != nil {
		j.Error = err.Error()
	}
}

// ShouldRetry reports whether err allows another attempt. Only timeouts are
// retried; rejections, auth failures and outages are final.
func (j *PropagationJob) ShouldRetry(err error) bool {
	return offer.IsTimeout(err) && j.Attempt <= j.MaxRetries
}

// ScheduleRetry sets the next attempt time with linear backoff (step, 2*step, ...)
// and returns the delay.
func (j *PropagationJob) ScheduleRetry(step time.Duration, lastErr error) time.Duration {
	delay := step * time.Duration(j.Attempt)
	next := time.Now().Add(delay)
	j.Status = JobStatusRetrying
	j.NextAttemptAt = &next
	if lastErr != nil {
		j.Error = lastErr.Error()
	}
	return delay
}
