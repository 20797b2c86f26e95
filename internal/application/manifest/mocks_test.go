package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockManifestRepository struct {
	mock.Mock
}

func (m *MockManifestRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*manifest.Manifest, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manifest.Manifest), args.Error(1)
}

func (m *MockManifestRepository) FindByAccessKey(ctx context.Context, tenantID uuid.UUID, accessKey string) (*manifest.Manifest, error) {
	args := m.Called(ctx, tenantID, accessKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manifest.Manifest), args.Error(1)
}

func (m *MockManifestRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter manifest.Filter) ([]manifest.Manifest, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]manifest.Manifest), args.Get(1).(int64), args.Error(2)
}

func (m *MockManifestRepository) FindUnclosed(ctx context.Context, tenantID uuid.UUID) ([]manifest.Manifest, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]manifest.Manifest), args.Error(1)
}

func (m *MockManifestRepository) ExistsOpen(ctx context.Context, q manifest.OpenManifestQuery) (bool, error) {
	args := m.Called(ctx, q)
	return args.Bool(0), args.Error(1)
}

func (m *MockManifestRepository) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]manifest.Manifest, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]manifest.Manifest), args.Error(1)
}

func (m *MockManifestRepository) FindAuthorizedBefore(ctx context.Context, before time.Time, limit int) ([]manifest.Manifest, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]manifest.Manifest), args.Error(1)
}

func (m *MockManifestRepository) Save(ctx context.Context, mf *manifest.Manifest) error {
	return m.Called(ctx, mf).Error(0)
}

// SaveNumbered returns (number, error) from the expectation and applies
// the number like the real repository does
func (m *MockManifestRepository) SaveNumbered(ctx context.Context, mf *manifest.Manifest, series int, assign func(number int) error) error {
	args := m.Called(ctx, mf, series)
	if err := args.Error(1); err != nil {
		return err
	}
	return assign(args.Int(0))
}

func (m *MockManifestRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindByCode(ctx context.Context, code string) (*identity.Tenant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindByCNPJ(ctx context.Context, cnpj string) (*identity.Tenant, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]identity.Tenant), args.Get(1).(int64), args.Error(2)
}

func (m *MockTenantRepository) FindCertificatesExpiring(ctx context.Context, withinDays int) ([]identity.Tenant, error) {
	args := m.Called(ctx, withinDays)
	return args.Get(0).([]identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantRepository) ExistsByCNPJ(ctx context.Context, cnpj string) (bool, error) {
	args := m.Called(ctx, cnpj)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

type MockVehicleRepository struct {
	mock.Mock
}

func (m *MockVehicleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.Vehicle, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]fleet.Vehicle, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]fleet.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) FindByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (*fleet.Vehicle, error) {
	args := m.Called(ctx, tenantID, plate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.VehicleFilter) ([]fleet.Vehicle, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fleet.Vehicle), args.Get(1).(int64), args.Error(2)
}

func (m *MockVehicleRepository) ExistsByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (bool, error) {
	args := m.Called(ctx, tenantID, plate)
	return args.Bool(0), args.Error(1)
}

func (m *MockVehicleRepository) Save(ctx context.Context, vehicle *fleet.Vehicle) error {
	return m.Called(ctx, vehicle).Error(0)
}

func (m *MockVehicleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockDriverRepository struct {
	mock.Mock
}

func (m *MockDriverRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.Driver, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.Driver), args.Error(1)
}

func (m *MockDriverRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]fleet.Driver, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]fleet.Driver), args.Error(1)
}

func (m *MockDriverRepository) FindByCPF(ctx context.Context, tenantID uuid.UUID, cpf string) (*fleet.Driver, error) {
	args := m.Called(ctx, tenantID, cpf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.Driver), args.Error(1)
}

func (m *MockDriverRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.DriverFilter) ([]fleet.Driver, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fleet.Driver), args.Get(1).(int64), args.Error(2)
}

func (m *MockDriverRepository) ExistsByCPF(ctx context.Context, tenantID uuid.UUID, cpf string) (bool, error) {
	args := m.Called(ctx, tenantID, cpf)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriverRepository) Save(ctx context.Context, driver *fleet.Driver) error {
	return m.Called(ctx, driver).Error(0)
}

func (m *MockDriverRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Client), args.Error(1)
}

func (m *MockClientRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]partner.Client, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]partner.Client), args.Error(1)
}

func (m *MockClientRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Client, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]partner.Client), args.Get(1).(int64), args.Error(2)
}

func (m *MockClientRepository) ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error) {
	args := m.Called(ctx, tenantID, document)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) Save(ctx context.Context, client *partner.Client) error {
	return m.Called(ctx, client).Error(0)
}

func (m *MockClientRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockInsurerRepository struct {
	mock.Mock
}

func (m *MockInsurerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Insurer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Insurer), args.Error(1)
}

func (m *MockInsurerRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Insurer, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]partner.Insurer), args.Get(1).(int64), args.Error(2)
}

func (m *MockInsurerRepository) ExistsByCNPJ(ctx context.Context, tenantID uuid.UUID, cnpj string) (bool, error) {
	args := m.Called(ctx, tenantID, cnpj)
	return args.Bool(0), args.Error(1)
}

func (m *MockInsurerRepository) Save(ctx context.Context, insurer *partner.Insurer) error {
	return m.Called(ctx, insurer).Error(0)
}

func (m *MockInsurerRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authorize(ctx context.Context, env manifest.Envelope) (manifest.Receipt, error) {
	args := m.Called(ctx, env)
	return args.Get(0).(manifest.Receipt), args.Error(1)
}

func (m *MockGateway) Cancel(ctx context.Context, accessKey, protocol, justification string) (manifest.EventReceipt, error) {
	args := m.Called(ctx, accessKey, protocol, justification)
	return args.Get(0).(manifest.EventReceipt), args.Error(1)
}

func (m *MockGateway) Close(ctx context.Context, accessKey, protocol string, closure manifest.Closure) (manifest.EventReceipt, error) {
	args := m.Called(ctx, accessKey, protocol, closure)
	return args.Get(0).(manifest.EventReceipt), args.Error(1)
}

func (m *MockGateway) IncludeDriver(ctx context.Context, accessKey, protocol string, driver manifest.DriverRef) (manifest.EventReceipt, error) {
	args := m.Called(ctx, accessKey, protocol, driver)
	return args.Get(0).(manifest.EventReceipt), args.Error(1)
}

func (m *MockGateway) Status(ctx context.Context, accessKey string) (manifest.StatusResult, error) {
	args := m.Called(ctx, accessKey)
	return args.Get(0).(manifest.StatusResult), args.Error(1)
}

func (m *MockGateway) ServiceStatus(ctx context.Context, uf valueobject.UF, env identity.Environment) (manifest.ServiceStatus, error) {
	args := m.Called(ctx, uf, env)
	return args.Get(0).(manifest.ServiceStatus), args.Error(1)
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) RenderPDF(_ context.Context, m *manifest.Manifest, _ manifest.Issuer) ([]byte, error) {
	r.calls++
	return []byte("%PDF-1.7 " + m.AccessKey), nil
}

type recordingMetrics struct {
	transitions []string
	sefaz       []string
}

func (r *recordingMetrics) ManifestTransition(status string) {
	r.transitions = append(r.transitions, status)
}

func (r *recordingMetrics) ObserveSefaz(operation, _, code string, _ time.Duration) {
	r.sefaz = append(r.sefaz, operation+":"+code)
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %v", err)
	return domainErr.Code
}
