package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

type recordingObserver struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (o *recordingObserver) JobRun(job string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runs == nil {
		o.runs = map[string][]error{}
	}
	o.runs[job] = append(o.runs[job], err)
}

func (o *recordingObserver) count(job string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs[job])
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig(), zaptest.NewLogger(t))
	job := funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, time.Minute))
	assert.ErrorIs(t, s.Register(job, time.Minute), ErrDuplicateJob)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, 0), ErrInvalidConfig)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()
	assert.ErrorIs(t, s.Register(funcJob{name: "c"}, time.Minute), ErrSchedulerRunning)
}

func TestScheduler_RunsOnTicker(t *testing.T) {
	obs := &recordingObserver{}
	s := NewScheduler(SchedulerConfig{Enabled: true, MaxConcurrentJobs: 2, JobTimeout: time.Second}, zaptest.NewLogger(t), WithObserver(obs))

	var runs atomic.Int32
	require.NoError(t, s.Register(funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, 10*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	assert.GreaterOrEqual(t, obs.count("tick"), 3)

	states := s.States()
	require.Len(t, states, 1)
	assert.Equal(t, JobStatusSuccess, states[0].Status)
	assert.NotNil(t, states[0].LastRun)
}

func TestScheduler_Disabled(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Enabled: true, MaxConcurrentJobs: 1, JobTimeout: time.Minute}, zaptest.NewLogger(t))

	started := make(chan struct{})
	var once sync.Once
	require.NoError(t, s.Register(funcJob{name: "slow", run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}, 5*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_RunNow(t *testing.T) {
	obs := &recordingObserver{}
	s := NewScheduler(DefaultSchedulerConfig(), zaptest.NewLogger(t), WithObserver(obs))
	boom := errors.New("boom")
	require.NoError(t, s.Register(funcJob{name: "fails", run: func(context.Context) error { return boom }}, time.Hour))
	require.NoError(t, s.Register(funcJob{name: "panics", run: func(context.Context) error { panic("bad") }}, time.Hour))

	assert.ErrorIs(t, s.RunNow(context.Background(), "fails"), boom)
	assert.ErrorIs(t, s.RunNow(context.Background(), "panics"), ErrJobPanicked)
	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrJobNotFound)

	for _, st := range s.States() {
		assert.Equal(t, JobStatusFailed, st.Status)
		assert.Equal(t, 1, st.Runs)
		assert.NotEmpty(t, st.Error)
	}
	assert.Equal(t, 1, obs.count("fails"))
}

func TestScheduler_NoOverlap(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Enabled: true, MaxConcurrentJobs: 2, JobTimeout: time.Second}, zaptest.NewLogger(t))

	release := make(chan struct{})
	entered := make(chan struct{})
	require.NoError(t, s.Register(funcJob{name: "blocking", run: func(context.Context) error {
		close(entered)
		<-release
		return nil
	}}, time.Hour))

	done := make(chan error)
	go func() { done <- s.RunNow(context.Background(), "blocking") }()
	<-entered

	assert.ErrorIs(t, s.RunNow(context.Background(), "blocking"), ErrJobAlreadyRunning)
	close(release)
	assert.NoError(t, <-done)
}

// ---- jobs ----

type mockRetrier struct{ mock.Mock }

func (m *mockRetrier) RetryPending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Int(0), args.Error(1)
}

func TestPendingRetransmitJob(t *testing.T) {
	now := time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)
	retrier := &mockRetrier{}
	retrier.On("RetryPending", mock.Anything, now.Add(-5*time.Minute), 50).Return(2, nil)

	core, logs := observer.New(zapcore.InfoLevel)
	job := NewPendingRetransmitJob(retrier, 5*time.Minute, 50, zap.New(core))
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, JobPendingRetransmit, job.Name())
	assert.Equal(t, 1, logs.FilterMessage("Pending manifests retransmitted").Len())
	retrier.AssertExpectations(t)
}

type mockManifestRepo struct {
	manifest.Repository
	mock.Mock
}

func (m *mockManifestRepo) FindAuthorizedBefore(ctx context.Context, before time.Time, limit int) ([]manifest.Manifest, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]manifest.Manifest), args.Error(1)
}

type gauges struct {
	stale map[string]int
	certs int
}

func (g *gauges) SetStaleOpenManifests(byTenant map[string]int) { g.stale = byTenant }
func (g *gauges) SetExpiringCertificates(n int)                 { g.certs = n }

func authorizedManifest(tenantID uuid.UUID, at time.Time) manifest.Manifest {
	m := manifest.Manifest{TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID)}
	m.Status = manifest.StatusAuthorized
	m.AccessKey = "35241011222333000181580010000000011000012345"
	m.AuthorizedAt = &at
	return m
}

func TestOpenManifestAlertJob(t *testing.T) {
	now := time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)
	tenantA, tenantB := uuid.New(), uuid.New()
	old := now.AddDate(0, 0, -40)

	repo := &mockManifestRepo{}
	repo.On("FindAuthorizedBefore", mock.Anything, now.Add(-30*24*time.Hour), 100).Return([]manifest.Manifest{
		authorizedManifest(tenantA, old),
		authorizedManifest(tenantA, old),
		authorizedManifest(tenantB, old),
	}, nil)

	g := &gauges{}
	core, logs := observer.New(zapcore.WarnLevel)
	job := NewOpenManifestAlertJob(repo, g, 30*24*time.Hour, 100, zap.New(core))
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, map[string]int{tenantA.String(): 2, tenantB.String(): 1}, g.stale)
	assert.Equal(t, 3, logs.FilterMessage("Manifest authorized but not closed").Len())
}

func TestOpenManifestAlertJob_RepositoryError(t *testing.T) {
	repo := &mockManifestRepo{}
	repo.On("FindAuthorizedBefore", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	g := &gauges{}
	job := NewOpenManifestAlertJob(repo, g, time.Hour, 10, zaptest.NewLogger(t))
	assert.Error(t, job.Run(context.Background()))
	assert.Nil(t, g.stale, "gauge untouched on failure")
}

type mockTenantRepo struct {
	identity.TenantRepository
	mock.Mock
}

func (m *mockTenantRepo) FindCertificatesExpiring(ctx context.Context, withinDays int) ([]identity.Tenant, error) {
	args := m.Called(ctx, withinDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Tenant), args.Error(1)
}

func TestCertificateExpiryJob(t *testing.T) {
	now := time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)
	soon, past := now.AddDate(0, 0, 10), now.AddDate(0, 0, -1)

	expiring := identity.Tenant{Code: "ACME", CertificateExpiresAt: &soon}
	expired := identity.Tenant{Code: "LATE", CertificateExpiresAt: &past}

	tenants := &mockTenantRepo{}
	tenants.On("FindCertificatesExpiring", mock.Anything, 30).Return([]identity.Tenant{expiring, expired}, nil)

	g := &gauges{}
	core, logs := observer.New(zapcore.WarnLevel)
	job := NewCertificateExpiryJob(tenants, g, 30, zap.New(core))
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, g.certs)
	assert.Equal(t, 1, logs.FilterMessage("Tenant certificate expiring").Len())
	assert.Equal(t, 1, logs.FilterMessage("Tenant certificate expired").Len())
}

func TestRegisterDefaultJobs(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig(), zaptest.NewLogger(t))
	err := RegisterDefaultJobs(s, config.SchedulerConfig{
		BatchSize:             10,
		PendingInterval:       time.Minute,
		PendingAfter:          5 * time.Minute,
		OpenManifestInterval:  time.Hour,
		OpenManifestAge:       30 * 24 * time.Hour,
		CertificateInterval:   24 * time.Hour,
		CertificateWindowDays: 30,
	}, Deps{Retrier: &mockRetrier{}, Manifests: &mockManifestRepo{}, Tenants: &mockTenantRepo{}, Metrics: &gauges{}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	var names []string
	for _, st := range s.States() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{JobPendingRetransmit, JobOpenManifestAlert, JobCertificateExpiry}, names)
}
