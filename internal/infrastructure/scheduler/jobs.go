package scheduler

import (
	"context"
	"time"

	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Job names, also used as metric labels
const (
	JobPendingRetransmit = "pending-retransmit"
	JobOpenManifestAlert = "open-manifest-alert"
	JobCertificateExpiry = "certificate-expiry"
)

// PendingRetrier retries manifests that stayed pending since before olderThan.
// The manifest application service implements it.
type PendingRetrier interface {
	RetryPending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// PendingRetransmitJob resends manifests left in pending by a SEFAZ outage
type PendingRetransmitJob struct {
	retrier PendingRetrier
	after   time.Duration
	limit   int
	now     func() time.Time
	logger  *zap.Logger
}

// NewPendingRetransmitJob builds the job; manifests younger than after are left alone
func NewPendingRetransmitJob(retrier PendingRetrier, after time.Duration, limit int, logger *zap.Logger) *PendingRetransmitJob {
	return &PendingRetransmitJob{retrier: retrier, after: after, limit: limit, now: time.Now, logger: logger}
}

func (j *PendingRetransmitJob) Name() string { return JobPendingRetransmit }

func (j *PendingRetransmitJob) Run(ctx context.Context) error {
	retried, err := j.retrier.RetryPending(ctx, j.now().Add(-j.after), j.limit)
	if retried > 0 {
		j.logger.Info("Pending manifests retransmitted", zap.Int("count", retried))
	}
	return err
}

// StaleGauge receives the number of stale open manifests per tenant
type StaleGauge interface {
	SetStaleOpenManifests(byTenant map[string]int)
}

// OpenManifestAlertJob reports authorized manifests that were never closed
type OpenManifestAlertJob struct {
	repo   manifest.Repository
	gauge  StaleGauge
	age    time.Duration
	limit  int
	now    func() time.Time
	logger *zap.Logger
}

// NewOpenManifestAlertJob builds the job; gauge may be nil
func NewOpenManifestAlertJob(repo manifest.Repository, gauge StaleGauge, age time.Duration, limit int, logger *zap.Logger) *OpenManifestAlertJob {
	return &OpenManifestAlertJob{repo: repo, gauge: gauge, age: age, limit: limit, now: time.Now, logger: logger}
}

func (j *OpenManifestAlertJob) Name() string { return JobOpenManifestAlert }

func (j *OpenManifestAlertJob) Run(ctx context.Context) error {
	stale, err := j.repo.FindAuthorizedBefore(ctx, j.now().Add(-j.age), j.limit)
	if err != nil {
		return err
	}

	byTenant := make(map[string]int)
	for i := range stale {
		m := &stale[i]
		byTenant[m.TenantID.String()]++
		j.logger.Warn("Manifest authorized but not closed",
			zap.String("tenant_id", m.TenantID.String()),
			zap.String("manifest_id", m.ID.String()),
			zap.String("access_key", m.AccessKey),
			zap.Timep("authorized_at", m.AuthorizedAt),
		)
	}
	if j.gauge != nil {
		j.gauge.SetStaleOpenManifests(byTenant)
	}
	return nil
}

// CertificateGauge receives the number of tenants with expiring certificates
type CertificateGauge interface {
	SetExpiringCertificates(n int)
}

// CertificateExpiryJob warns about tenants whose A1 certificate is about to expire
type CertificateExpiryJob struct {
	tenants    identity.TenantRepository
	gauge      CertificateGauge
	windowDays int
	now        func() time.Time
	logger     *zap.Logger
}

// NewCertificateExpiryJob builds the job; gauge may be nil
func NewCertificateExpiryJob(tenants identity.TenantRepository, gauge CertificateGauge, windowDays int, logger *zap.Logger) *CertificateExpiryJob {
	return &CertificateExpiryJob{tenants: tenants, gauge: gauge, windowDays: windowDays, now: time.Now, logger: logger}
}

func (j *CertificateExpiryJob) Name() string { return JobCertificateExpiry }

func (j *CertificateExpiryJob) Run(ctx context.Context) error {
	expiring, err := j.tenants.FindCertificatesExpiring(ctx, j.windowDays)
	if err != nil {
		return err
	}
	now := j.now()
	for i := range expiring {
		t := &expiring[i]
		fields := []zap.Field{
			zap.String("tenant_id", t.ID.String()),
			zap.String("tenant_code", t.Code),
			zap.Timep("expires_at", t.CertificateExpiresAt),
		}
		if t.CertificateExpiresAt != nil && !t.CertificateExpiresAt.After(now) {
			j.logger.Error("Tenant certificate expired", fields...)
			continue
		}
		j.logger.Warn("Tenant certificate expiring", fields...)
	}
	if j.gauge != nil {
		j.gauge.SetExpiringCertificates(len(expiring))
	}
	return nil
}

// Deps are the collaborators of the built-in jobs
type Deps struct {
	Retrier   PendingRetrier
	Manifests manifest.Repository
	Tenants   identity.TenantRepository
	Metrics   interface {
		StaleGauge
		CertificateGauge
	}
}

// RegisterDefaultJobs registers the three built-in jobs with the intervals of cfg
func RegisterDefaultJobs(s *Scheduler, cfg config.SchedulerConfig, deps Deps, logger *zap.Logger) error {
	var stale StaleGauge
	var certs CertificateGauge
	if deps.Metrics != nil {
		stale, certs = deps.Metrics, deps.Metrics
	}

	jobs := []struct {
		job      Job
		interval time.Duration
	}{
		{NewPendingRetransmitJob(deps.Retrier, cfg.PendingAfter, cfg.BatchSize, logger), cfg.PendingInterval},
		{NewOpenManifestAlertJob(deps.Manifests, stale, cfg.OpenManifestAge, cfg.BatchSize, logger), cfg.OpenManifestInterval},
		{NewCertificateExpiryJob(deps.Tenants, certs, cfg.CertificateWindowDays, logger), cfg.CertificateInterval},
	}
	for _, j := range jobs {
		if err := s.Register(j.job, j.interval); err != nil {
			return err
		}
	}
	return nil
}
