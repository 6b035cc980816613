package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Executor Interface
// ---------------------------------------------------------------------------

// Executor performs remote writes for the scheduler
type Executor interface {
	// Execute runs one attempt of the job
	Execute(ctx context.Context, job *PropagationJob) error
	// RecordFailure stores the final failure of a job on its offer
	RecordFailure(ctx context.Context, job *PropagationJob, err error)
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds configuration for the propagation scheduler
type Config struct {
	// Workers is the number of concurrent remote writes
	Workers int
	// QueueSize bounds the number of writes waiting for a worker
	QueueSize int
	// MaxRetries is the number of extra attempts after a timeout
	MaxRetries int
	// BackoffStep is the linear backoff unit between attempts
	BackoffStep time.Duration
	// AttemptTimeout bounds every single attempt
	AttemptTimeout time.Duration
	// HistorySize is the number of finished jobs kept for monitoring
	HistorySize int
}

const drainPollInterval = 20 * time.Millisecond

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		QueueSize:      256,
		MaxRetries:     2,
		BackoffStep:    5 * time.Second,
		AttemptTimeout: 30 * time.Second,
		HistorySize:    100,
	}
}

// ConfigFromSync builds a Config from the sync settings
func ConfigFromSync(cfg config.SyncConfig) Config {
	c := DefaultConfig()
	c.Workers = cfg.Workers
	c.QueueSize = cfg.QueueSize
	c.MaxRetries = cfg.MaxRetries
	c.BackoffStep = cfg.BackoffStep
	c.AttemptTimeout = cfg.AttemptTimeout
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxRetries < 0 || c.BackoffStep < 0 {
		return ErrInvalidConfig
	}
	if c.AttemptTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.HistorySize < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// PropagationScheduler
// ---------------------------------------------------------------------------

// Stats is a snapshot of the scheduler state
type Stats struct {
	Running        bool `json:"running"`
	Workers        int  `json:"workers"`
	Queued         int  `json:"queued"`
	WaitingRetries int  `json:"waiting_retries"`
	Outstanding    int  `json:"outstanding"`
	// Deferred counts writes waiting behind an earlier write for the same offer
	Deferred int `json:"deferred"`
}

// PropagationScheduler runs marketplace writes on a fixed worker pool.
// Dispatch never blocks on the marketplace. Writes for one offer run one at
// a time in dispatch order; a job holds its offer's lane until it reaches a
// final state, retries included.
type PropagationScheduler struct {
	config   Config
	executor Executor
	logger   *zap.Logger

	mu        sync.Mutex
	jobs      chan *PropagationJob
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	timers    map[uuid.UUID]*time.Timer
	// lanes holds an entry for every offer with a job in flight; the slice
	// lists the writes queued behind it
	lanes    map[uuid.UUID][]*PropagationJob
	deferred int

	historyMu sync.RWMutex
	history   []PropagationJob

	// outstanding counts accepted jobs that have not reached a final state
	outstanding atomic.Int64
}

var _ offer.RemoteWriteDispatcher = (*PropagationScheduler)(nil)

// NewPropagationScheduler creates a new scheduler
func NewPropagationScheduler(config Config, executor Executor, logger *zap.Logger) (*PropagationScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &PropagationScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		timers:   make(map[uuid.UUID]*time.Timer),
		lanes:    make(map[uuid.UUID][]*PropagationJob),
		history:  make([]PropagationJob, 0, config.HistorySize),
	}, nil
}

// Start starts the worker pool
func (s *PropagationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.jobs = make(chan *PropagationJob, s.config.QueueSize)
	s.isRunning = true

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(s.baseCtx, s.jobs, i)
	}

	s.logger.Info("Propagation scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("attempt_timeout", s.config.AttemptTimeout),
	)
	return nil
}

// Stop stops the workers and waits for running attempts to finish. Queued
// and waiting jobs are dropped; their offers stay PENDING.
func (s *PropagationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	dropped := len(s.jobs) + s.deferred
	s.lanes = make(map[uuid.UUID][]*PropagationJob)
	s.deferred = 0
	cancel := s.cancel
	jobs := s.jobs
	s.mu.Unlock()

	cancel()
	close(jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// dropped jobs never settle
		s.outstanding.Store(0)
		s.logger.Info("Propagation scheduler stopped gracefully", zap.Int("dropped_jobs", dropped))
		return nil
	case <-ctx.Done():
		s.logger.Warn("Propagation scheduler stop timed out")
		return ctx.Err()
	}
}

// Dispatch queues a remote write
func (s *PropagationScheduler) Dispatch(ctx context.Context, w offer.RemoteWrite) error {
	if w.OfferID == uuid.Nil || w.ExternalID == "" {
		return ErrInvalidWrite
	}
	job := NewPropagationJob(w, s.config.MaxRetries)

	// counted before admission so a fast worker cannot settle it first
	s.outstanding.Add(1)
	if err := s.admit(job); err != nil {
		s.outstanding.Add(-1)
		return err
	}
	s.logger.Debug("Propagation job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("offer_id", w.OfferID.String()),
		zap.String("mode", string(w.Mode)),
	)
	return nil
}

// admit queues a new job, or parks it behind the job already in flight for
// the same offer
func (s *PropagationScheduler) admit(job *PropagationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	id := job.Write.OfferID
	if waiting, busy := s.lanes[id]; busy {
		if s.deferred >= s.config.QueueSize {
			return ErrJobQueueFull
		}
		s.lanes[id] = append(waiting, job)
		s.deferred++
		return nil
	}

	select {
	case s.jobs <- job:
		s.lanes[id] = nil
		return nil
	default:
		return ErrJobQueueFull
	}
}

// release frees the offer's lane after job settled and returns the next
// write for that offer, which keeps the lane
func (s *PropagationScheduler) release(job *PropagationJob) *PropagationJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := job.Write.OfferID
	waiting, busy := s.lanes[id]
	if !busy {
		return nil
	}
	if len(waiting) == 0 || !s.isRunning {
		delete(s.lanes, id)
		return nil
	}
	next := waiting[0]
	s.lanes[id] = waiting[1:]
	s.deferred--
	return next
}

// enqueue sends under the lock so a concurrent Stop cannot close the channel mid-send
func (s *PropagationScheduler) enqueue(job *PropagationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// worker processes jobs from the queue
func (s *PropagationScheduler) worker(ctx context.Context, jobs <-chan *PropagationJob, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			// the follower of a settled job runs on the same worker
			for job != nil {
				job = s.processJob(ctx, job, workerID)
			}
		}
	}
}

// processJob runs one attempt of a job. It returns the next write for the
// same offer once the job settles.
func (s *PropagationScheduler) processJob(ctx context.Context, job *PropagationJob, workerID int) *PropagationJob {
	job.Start()
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("offer_id", job.Write.OfferID.String()),
		zap.String("external_id", job.Write.ExternalID),
		zap.String("mode", string(job.Write.Mode)),
		zap.Int("attempt", job.Attempt),
	)

	// a started attempt is not cancelled by Stop; only the timeout bounds it
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AttemptTimeout)
	err := s.executor.Execute(attemptCtx, job)
	cancel()

	if err == nil {
		job.Succeed()
		log.Info("Offer propagated to marketplace")
		return s.settle(job)
	}

	if job.ShouldRetry(err) {
		delay := job.ScheduleRetry(s.config.BackoffStep, err)
		if !s.retryAfter(job, delay) {
			job.Abandon(err)
			log.Warn("Propagation retry dropped by shutdown", zap.Error(err))
			return s.settle(job)
		}
		log.Warn("Propagation attempt timed out, retrying",
			zap.Duration("delay", delay),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		return nil
	}

	return s.fail(job, err)
}

// retryAfter re-queues the job once its backoff elapses. It reports false
// when the scheduler is stopping.
func (s *PropagationScheduler) retryAfter(job *PropagationJob, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return false
	}
	s.timers[job.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, job.ID)
		s.mu.Unlock()

		err := s.enqueue(job)
		switch err {
		case nil:
		case ErrSchedulerNotRunning:
			job.Abandon(err)
			s.handoff(s.settle(job))
		default:
			s.handoff(s.fail(job, fmt.Errorf("re-queue after timeout: %w", err)))
		}
	})
	return true
}

// handoff queues the follower of a job that settled outside a worker
func (s *PropagationScheduler) handoff(next *PropagationJob) {
	for next != nil {
		err := s.enqueue(next)
		switch err {
		case nil:
			return
		case ErrSchedulerNotRunning:
			next.Abandon(err)
			next = s.settle(next)
		default:
			next = s.fail(next, fmt.Errorf("queue after earlier write: %w", err))
		}
	}
}

// fail records the final failure on the offer
func (s *PropagationScheduler) fail(job *PropagationJob, err error) *PropagationJob {
	job.Fail(err)
	s.logger.Error("Offer propagation failed",
		zap.String("job_id", job.ID.String()),
		zap.String("offer_id", job.Write.OfferID.String()),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)

	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(base), s.config.AttemptTimeout)
	defer cancel()
	s.executor.RecordFailure(ctx, job, err)

	return s.settle(job)
}

// settle records a job that reached a final state and returns the next
// write for its offer. The count drops last so Drain sees the history.
func (s *PropagationScheduler) settle(job *PropagationJob) *PropagationJob {
	s.addToHistory(job)
	next := s.release(job)
	s.outstanding.Add(-1)
	return next
}

// addToHistory stores a snapshot of a finished job
func (s *PropagationScheduler) addToHistory(job *PropagationJob) {
	if s.config.HistorySize == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]PropagationJob{*job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// GetJobHistory returns the most recent finished jobs, newest first
func (s *PropagationScheduler) GetJobHistory(limit int) []PropagationJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]PropagationJob, limit)
	copy(result, s.history[:limit])
	return result
}

// Stats returns a snapshot of the scheduler state
func (s *PropagationScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Running:        s.isRunning,
		Workers:        s.config.Workers,
		WaitingRetries: len(s.timers),
		Outstanding:    int(s.outstanding.Load()),
		Deferred:       s.deferred,
	}
	if s.isRunning {
		st.Queued = len(s.jobs)
	}
	return st
}

// Drain waits until every accepted job has reached a final state. Jobs
// dispatched while draining extend the wait.
func (s *PropagationScheduler) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for s.outstanding.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
