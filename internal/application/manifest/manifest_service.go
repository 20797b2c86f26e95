package manifest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/mdfe/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ObjectStore archives authorized XML and rendered DAMDFE files
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// Renderer produces the DAMDFE PDF of a manifest
type Renderer interface {
	RenderPDF(ctx context.Context, m *manifest.Manifest, issuer manifest.Issuer) ([]byte, error)
}

// MetricsRecorder receives lifecycle observations. SEFAZ call counts
// and latency are recorded by the gateway's own observer.
type MetricsRecorder interface {
	ManifestTransition(status string)
}

// Repositories groups the stores the manifest service reads from
type Repositories struct {
	Manifests manifest.Repository
	Tenants   identity.TenantRepository
	Vehicles  fleet.VehicleRepository
	Drivers   fleet.DriverRepository
	Clients   partner.ClientRepository
	Insurers  partner.InsurerRepository
}

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultPresignTTL     = 15 * time.Minute
	transmitKeyPrefix     = "transmit:"
)

// ManifestService drives the MDF-e lifecycle: drafts, transmission to
// SEFAZ, events and the documents produced along the way
type ManifestService struct {
	repo        manifest.Repository
	tenantRepo  identity.TenantRepository
	vehicleRepo fleet.VehicleRepository
	driverRepo  fleet.DriverRepository
	clientRepo  partner.ClientRepository
	insurerRepo partner.InsurerRepository
	gateway     manifest.SefazGateway
	publisher   shared.EventPublisher
	logger      *zap.Logger

	store          ObjectStore
	renderer       Renderer
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	presignTTL     time.Duration
	metrics        MetricsRecorder
	instruments    *telemetry.ManifestInstruments

	now func() time.Time
}

// NewManifestService creates a new ManifestService. Storage, rendering,
// idempotency and metrics are optional and attached with the setters.
func NewManifestService(repos Repositories, gateway manifest.SefazGateway, publisher shared.EventPublisher, logger *zap.Logger) *ManifestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestService{
		repo:           repos.Manifests,
		tenantRepo:     repos.Tenants,
		vehicleRepo:    repos.Vehicles,
		driverRepo:     repos.Drivers,
		clientRepo:     repos.Clients,
		insurerRepo:    repos.Insurers,
		gateway:        gateway,
		publisher:      publisher,
		logger:         logger,
		idempotencyTTL: defaultIdempotencyTTL,
		presignTTL:     defaultPresignTTL,
		now:            time.Now,
	}
}

// SetObjectStore enables XML archiving and document links
func (s *ManifestService) SetObjectStore(store ObjectStore, presignTTL time.Duration) {
	s.store = store
	if presignTTL > 0 {
		s.presignTTL = presignTTL
	}
}

// SetRenderer enables DAMDFE generation
func (s *ManifestService) SetRenderer(r Renderer) {
	s.renderer = r
}

// SetIdempotencyStore makes Transmit honour idempotency keys
func (s *ManifestService) SetIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) {
	s.idempotency = store
	if ttl > 0 {
		s.idempotencyTTL = ttl
	}
}

// SetMetrics attaches the Prometheus recorder
func (s *ManifestService) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// SetInstruments attaches the OTLP instruments
func (s *ManifestService) SetInstruments(i *telemetry.ManifestInstruments) {
	s.instruments = i
}

// CreateDraft opens a draft with the tenant's emitter type and environment
func (s *ManifestService) CreateDraft(ctx context.Context, tenantID uuid.UUID, req CreateManifestRequest) (*ManifestResponse, error) {
	tenant, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	content, err := s.resolveContent(ctx, tenantID, req.ContentRequest)
	if err != nil {
		return nil, err
	}
	m, err := manifest.NewDraft(tenantID, tenant.EmitterType, tenant.Environment, content)
	if err != nil {
		return nil, err
	}
	if req.CreatedBy != uuid.Nil {
		m.SetCreatedBy(req.CreatedBy)
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	s.afterSave(ctx, m)

	response := ToManifestResponse(m)
	return &response, nil
}

// UpdateDraft replaces the content of a draft or rejected manifest
func (s *ManifestService) UpdateDraft(ctx context.Context, tenantID, manifestID uuid.UUID, req UpdateManifestRequest) (*ManifestResponse, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	if !m.Status.Editable() {
		return nil, shared.NewDomainError("INVALID_STATE", "Only draft or rejected manifests can be edited")
	}
	content, err := s.resolveContent(ctx, tenantID, req.ContentRequest)
	if err != nil {
		return nil, err
	}
	if err := m.UpdateDraft(content); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	s.afterSave(ctx, m)

	response := ToManifestResponse(m)
	return &response, nil
}

// GetByID returns a manifest with its event history
func (s *ManifestService) GetByID(ctx context.Context, tenantID, manifestID uuid.UUID) (*ManifestResponse, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	response := ToManifestResponse(m)
	return &response, nil
}

// GetByAccessKey finds a manifest by its 44-digit key, formatted or not
func (s *ManifestService) GetByAccessKey(ctx context.Context, tenantID uuid.UUID, accessKey string) (*ManifestResponse, error) {
	key, err := valueobject.ParseAccessKey(accessKey)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.FindByAccessKey(ctx, tenantID, key.String())
	if err != nil {
		return nil, notFound(err)
	}
	response := ToManifestResponse(m)
	return &response, nil
}

// List returns a page of manifest summaries
func (s *ManifestService) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*shared.Paginated[ManifestSummary], error) {
	df := filter.toDomain()
	items, total, err := s.repo.FindAll(ctx, tenantID, df)
	if err != nil {
		return nil, err
	}
	out := make([]ManifestSummary, 0, len(items))
	for i := range items {
		out = append(out, ToManifestSummary(&items[i]))
	}
	page := shared.NewPaginated(out, total, df.Page, df.PageSize)
	return &page, nil
}

// ListUnclosed returns authorized manifests that still need a closure event
func (s *ManifestService) ListUnclosed(ctx context.Context, tenantID uuid.UUID) (*UnclosedResponse, error) {
	items, err := s.repo.FindUnclosed(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]ManifestSummary, 0, len(items))
	for i := range items {
		out = append(out, ToManifestSummary(&items[i]))
	}
	return &UnclosedResponse{Items: out, Total: len(out)}, nil
}

// DeleteDraft removes a draft that was never numbered
func (s *ManifestService) DeleteDraft(ctx context.Context, tenantID, manifestID uuid.UUID) error {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return err
	}
	if err := m.CanDelete(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, manifestID)
}

// ServiceStatus queries the SEFAZ web service of a UF in the tenant's
// environment. An empty UF means the tenant's own.
func (s *ManifestService) ServiceStatus(ctx context.Context, tenantID uuid.UUID, uf string) (*ServiceStatusResponse, error) {
	tenant, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if uf == "" {
		uf = tenant.UF
	}
	parsed, err := valueobject.ParseUF(uf)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	status, err := s.gateway.ServiceStatus(ctx, parsed, tenant.Environment)
	s.observeSefaz(ctx, "service_status", time.Since(started))
	if err != nil {
		return nil, err
	}
	return &ServiceStatusResponse{
		UF:          status.UF.String(),
		Environment: string(status.Environment),
		Code:        status.Code,
		Reason:      status.Reason,
		Online:      status.Code == manifest.CodeServiceRunning,
		AvgSeconds:  status.AvgSeconds,
		CheckedAt:   status.CheckedAt,
	}, nil
}

func (s *ManifestService) load(ctx context.Context, tenantID, manifestID uuid.UUID) (*manifest.Manifest, error) {
	m, err := s.repo.FindByID(ctx, tenantID, manifestID)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (s *ManifestService) loadTenant(ctx context.Context, tenantID uuid.UUID) (*identity.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")
		}
		return nil, err
	}
	return tenant, nil
}

// afterSave publishes the pending domain events and counts the transition
func (s *ManifestService) afterSave(ctx context.Context, m *manifest.Manifest) {
	if s.metrics != nil && len(m.GetDomainEvents()) > 0 {
		s.metrics.ManifestTransition(string(m.Status))
	}
	if err := shared.PublishAndClear(ctx, s.publisher, m); err != nil {
		s.logger.Warn("failed to publish manifest events",
			zap.String("manifest_id", m.ID.String()),
			zap.Error(err))
	}
}

// observeSefaz feeds the OTLP instruments only
func (s *ManifestService) observeSefaz(ctx context.Context, operation string, elapsed time.Duration) {
	if s.instruments != nil {
		s.instruments.SefazCall(ctx, operation, elapsed)
	}
}

func notFound(err error) error {
	if shared.IsNotFound(err) {
		return shared.NewDomainError("MANIFEST_NOT_FOUND", "Manifest not found")
	}
	return err
}
