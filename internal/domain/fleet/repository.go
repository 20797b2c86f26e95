package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// VehicleFilter narrows vehicle listings
type VehicleFilter struct {
	shared.Filter
	Kind   VehicleKind
	Status VehicleStatus
}

// VehicleRepository persists vehicles
type VehicleRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Vehicle, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Vehicle, error)
	FindByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (*Vehicle, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter VehicleFilter) ([]Vehicle, int64, error)
	ExistsByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (bool, error)
	Save(ctx context.Context, vehicle *Vehicle) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// DriverFilter narrows driver listings
type DriverFilter struct {
	shared.Filter
	Status DriverStatus
}

// DriverRepository persists drivers
type DriverRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Driver, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Driver, error)
	FindByCPF(ctx context.Context, tenantID uuid.UUID, cpf string) (*Driver, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter DriverFilter) ([]Driver, int64, error)
	ExistsByCPF(ctx context.Context, tenantID uuid.UUID, cpf string) (bool, error)
	Save(ctx context.Context, driver *Driver) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// MaintenanceFilter narrows maintenance order listings
type MaintenanceFilter struct {
	shared.Filter
	VehicleID *uuid.UUID
	Status    MaintenanceStatus
}

// MaintenanceOrderRepository persists maintenance orders
type MaintenanceOrderRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*MaintenanceOrder, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter MaintenanceFilter) ([]MaintenanceOrder, int64, error)
	// CountOpenByVehicle counts open or in-progress orders of a vehicle
	CountOpenByVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (int64, error)
	Save(ctx context.Context, order *MaintenanceOrder) error
	// SaveWithVehicle stores the order together with the vehicle whose
	// status it changed; vehicle may be nil
	SaveWithVehicle(ctx context.Context, order *MaintenanceOrder, vehicle *Vehicle) error
}

// TripFilter narrows trip listings
type TripFilter struct {
	shared.Filter
	VehicleID *uuid.UUID
	Status    TripStatus
}

// TripRepository persists trips
type TripRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Trip, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter TripFilter) ([]Trip, int64, error)
	// CountOpenByVehicle counts planned or in-progress trips using the
	// vehicle as tractor or trailer
	CountOpenByVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (int64, error)
	// CountOpenByDriver counts planned or in-progress trips with the driver
	CountOpenByDriver(ctx context.Context, tenantID, driverID uuid.UUID) (int64, error)
	Save(ctx context.Context, trip *Trip) error
}
