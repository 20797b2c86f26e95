package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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

type MockMaintenanceOrderRepository struct {
	mock.Mock
}

func (m *MockMaintenanceOrderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.MaintenanceOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.MaintenanceOrder), args.Error(1)
}

func (m *MockMaintenanceOrderRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.MaintenanceFilter) ([]fleet.MaintenanceOrder, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fleet.MaintenanceOrder), args.Get(1).(int64), args.Error(2)
}

func (m *MockMaintenanceOrderRepository) CountOpenByVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, vehicleID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMaintenanceOrderRepository) Save(ctx context.Context, order *fleet.MaintenanceOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockMaintenanceOrderRepository) SaveWithVehicle(ctx context.Context, order *fleet.MaintenanceOrder, vehicle *fleet.Vehicle) error {
	return m.Called(ctx, order, vehicle).Error(0)
}

type MockTripRepository struct {
	mock.Mock
}

func (m *MockTripRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.Trip, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.Trip), args.Error(1)
}

func (m *MockTripRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.TripFilter) ([]fleet.Trip, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fleet.Trip), args.Get(1).(int64), args.Error(2)
}

func (m *MockTripRepository) CountOpenByVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, vehicleID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTripRepository) CountOpenByDriver(ctx context.Context, tenantID, driverID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, driverID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTripRepository) Save(ctx context.Context, trip *fleet.Trip) error {
	return m.Called(ctx, trip).Error(0)
}

type MockSupplierChecker struct {
	mock.Mock
}

func (m *MockSupplierChecker) Exists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, supplierID)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// Fixtures
// =============================================================================

func newTraction(t *testing.T, tenantID uuid.UUID, plate string) *fleet.Vehicle {
	t.Helper()
	v, err := fleet.NewVehicle(tenantID, fleet.VehicleKindTraction, fleet.VehicleSpec{
		Plate: plate, TareKg: 8500, CapacityKg: 30000, WheelType: "03", BodyType: "00", LicensingUF: "SP",
	})
	require.NoError(t, err)
	v.ClearDomainEvents()
	return v
}

func newTrailer(t *testing.T, tenantID uuid.UUID, plate string) *fleet.Vehicle {
	t.Helper()
	v, err := fleet.NewVehicle(tenantID, fleet.VehicleKindTrailer, fleet.VehicleSpec{
		Plate: plate, TareKg: 7000, CapacityKg: 32000, CapacityM3: 90, BodyType: "02", LicensingUF: "PR",
	})
	require.NoError(t, err)
	v.ClearDomainEvents()
	return v
}

func newDriver(t *testing.T, tenantID uuid.UUID, expiresAt time.Time) *fleet.Driver {
	t.Helper()
	d, err := fleet.NewDriver(tenantID, "Carlos Souza", "529.982.247-25", "12345678901", "E", expiresAt)
	require.NoError(t, err)
	d.ClearDomainEvents()
	return d
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %v", err)
	return domainErr.Code
}
