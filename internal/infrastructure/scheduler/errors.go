package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when registering on a started scheduler
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrJobNotFound is returned when a job is not registered
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when two jobs share a name
	ErrDuplicateJob = errors.New("job already registered")

	// ErrJobAlreadyRunning is returned when a tick arrives while the previous run is still going
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrJobPanicked wraps a recovered panic
	ErrJobPanicked = errors.New("job panicked")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
