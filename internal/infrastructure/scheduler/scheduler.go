// Package scheduler runs the periodic background jobs of the service:
// retransmission of manifests stuck in pending, alerts about manifests
// left open and certificate expiry warnings.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdfe/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Job is one unit of periodic work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobObserver is told about every execution. metrics.Registry satisfies it.
type JobObserver interface {
	JobRun(job string, err error)
}

// JobStatus represents the outcome of the last execution
type JobStatus string

const (
	JobStatusIdle    JobStatus = "IDLE"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobState is a snapshot of a registered job
type JobState struct {
	Name     string
	Interval time.Duration
	Status   JobStatus
	LastRun  *time.Time
	Error    string
	Runs     int
}

type entry struct {
	job      Job
	interval time.Duration

	mu    sync.Mutex
	state JobState
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// ConfigFrom extracts the runner settings from the scheduler section
func ConfigFrom(cfg config.SchedulerConfig) SchedulerConfig {
	return SchedulerConfig{
		Enabled:           cfg.Enabled,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
	}
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 3,
		JobTimeout:        5 * time.Minute,
	}
}

// Scheduler runs each registered job on its own ticker. At most
// MaxConcurrentJobs executions are in flight and a job never overlaps
// itself.
type Scheduler struct {
	config   SchedulerConfig
	logger   *zap.Logger
	observer JobObserver
	now      func() time.Time

	entries []*entry
	slots   chan struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithObserver reports every execution to o
func WithObserver(o JobObserver) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithClock replaces time.Now for job state timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg SchedulerConfig, logger *zap.Logger, opts ...Option) *Scheduler {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultSchedulerConfig().JobTimeout
	}
	s := &Scheduler{
		config: cfg,
		logger: logger,
		now:    time.Now,
		slots:  make(chan struct{}, cfg.MaxConcurrentJobs),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerRunning
	}
	if interval <= 0 {
		return fmt.Errorf("%w: interval of %s must be positive", ErrInvalidConfig, job.Name())
	}
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
		}
	}
	s.entries = append(s.entries, &entry{
		job:      job,
		interval: interval,
		state:    JobState{Name: job.Name(), Interval: interval, Status: JobStatusIdle},
	})
	return nil
}

// Start launches one loop per job. Disabled schedulers do nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}

	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(s.entries)),
		zap.Int("max_concurrent_jobs", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for them until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether Start has been called without Stop
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunNow executes the named job synchronously, outside its ticker
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, e := range s.entries {
		if e.job.Name() == name {
			return s.execute(ctx, e)
		}
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, name)
}

// States returns a snapshot of every registered job
func (s *Scheduler) States() []JobState {
	states := make([]JobState, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		states = append(states, e.state)
		e.mu.Unlock()
	}
	return states
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.execute(ctx, e); err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) error {
	e.mu.Lock()
	if e.state.Status == JobStatusRunning {
		e.mu.Unlock()
		s.logger.Debug("Job still running, skipping tick", zap.String("job", e.job.Name()))
		return ErrJobAlreadyRunning
	}
	e.state.Status = JobStatusRunning
	e.mu.Unlock()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		e.mu.Lock()
		e.state.Status = JobStatusIdle
		e.mu.Unlock()
		return ctx.Err()
	}
	defer func() { <-s.slots }()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := s.now()
	err := s.safeRun(jobCtx, e.job)

	e.mu.Lock()
	e.state.LastRun = &start
	e.state.Runs++
	if err != nil {
		e.state.Status = JobStatusFailed
		e.state.Error = err.Error()
	} else {
		e.state.Status = JobStatusSuccess
		e.state.Error = ""
	}
	e.mu.Unlock()

	if s.observer != nil {
		s.observer.JobRun(e.job.Name(), err)
	}
	if err != nil {
		s.logger.Error("Job failed", zap.String("job", e.job.Name()), zap.Error(err))
		return err
	}
	s.logger.Debug("Job completed", zap.String("job", e.job.Name()), zap.Duration("elapsed", s.now().Sub(start)))
	return nil
}

// safeRun turns a panicking job into a failed run
func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}
