package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// VehicleService handles vehicle registration and availability
type VehicleService struct {
	vehicleRepo     fleet.VehicleRepository
	tripRepo        fleet.TripRepository
	maintenanceRepo fleet.MaintenanceOrderRepository
	publisher       shared.EventPublisher
}

// NewVehicleService creates a new VehicleService
func NewVehicleService(
	vehicleRepo fleet.VehicleRepository,
	tripRepo fleet.TripRepository,
	maintenanceRepo fleet.MaintenanceOrderRepository,
	publisher shared.EventPublisher,
) *VehicleService {
	return &VehicleService{
		vehicleRepo:     vehicleRepo,
		tripRepo:        tripRepo,
		maintenanceRepo: maintenanceRepo,
		publisher:       publisher,
	}
}

// Create registers a vehicle. The plate is unique per tenant.
func (s *VehicleService) Create(ctx context.Context, tenantID uuid.UUID, req CreateVehicleRequest) (*VehicleResponse, error) {
	vehicle, err := fleet.NewVehicle(tenantID, fleet.VehicleKind(req.Kind), req.toSpec())
	if err != nil {
		return nil, err
	}
	if err := s.ensurePlateFree(ctx, tenantID, vehicle.Plate, uuid.Nil); err != nil {
		return nil, err
	}
	if req.Owner != nil {
		o := req.Owner
		if err := vehicle.SetThirdPartyOwner(o.Document, o.Name, o.RNTRC, o.IE, o.UF, o.OwnerType); err != nil {
			return nil, err
		}
	}
	if req.CreatedBy != uuid.Nil {
		vehicle.SetCreatedBy(req.CreatedBy)
	}
	return s.save(ctx, vehicle)
}

// GetByID retrieves a vehicle by ID
func (s *VehicleService) GetByID(ctx context.Context, tenantID, vehicleID uuid.UUID) (*VehicleResponse, error) {
	vehicle, err := s.load(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	response := ToVehicleResponse(vehicle)
	return &response, nil
}

// GetByPlate retrieves a vehicle by its plate in any accepted format
func (s *VehicleService) GetByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (*VehicleResponse, error) {
	p, err := valueobject.NewPlate(plate)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicleRepo.FindByPlate(ctx, tenantID, p.String())
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return nil, err
	}
	response := ToVehicleResponse(vehicle)
	return &response, nil
}

// List retrieves a page of vehicles; the search matches plate and internal code
func (s *VehicleService) List(ctx context.Context, tenantID uuid.UUID, filter VehicleListFilter) (*shared.Paginated[VehicleResponse], error) {
	f := fleet.VehicleFilter{
		Filter: filter.toShared(),
		Kind:   fleet.VehicleKind(filter.Kind),
		Status: fleet.VehicleStatus(filter.Status),
	}
	vehicles, total, err := s.vehicleRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	items := make([]VehicleResponse, len(vehicles))
	for i := range vehicles {
		items[i] = ToVehicleResponse(&vehicles[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update replaces the registration data and ownership of a vehicle
func (s *VehicleService) Update(ctx context.Context, tenantID, vehicleID uuid.UUID, req UpdateVehicleRequest) (*VehicleResponse, error) {
	vehicle, err := s.load(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	if err := vehicle.Update(req.toSpec()); err != nil {
		return nil, err
	}
	if err := s.ensurePlateFree(ctx, tenantID, vehicle.Plate, vehicle.ID); err != nil {
		return nil, err
	}
	if req.Owner != nil {
		o := req.Owner
		if err := vehicle.SetThirdPartyOwner(o.Document, o.Name, o.RNTRC, o.IE, o.UF, o.OwnerType); err != nil {
			return nil, err
		}
	} else if vehicle.Ownership == fleet.OwnershipThirdParty {
		vehicle.SetOwnOwnership()
	}
	return s.save(ctx, vehicle)
}

// Activate puts an inactive vehicle back in service
func (s *VehicleService) Activate(ctx context.Context, tenantID, vehicleID uuid.UUID) (*VehicleResponse, error) {
	vehicle, err := s.load(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	if err := vehicle.Activate(); err != nil {
		return nil, err
	}
	return s.save(ctx, vehicle)
}

// Deactivate takes a vehicle out of service. Vehicles on an open trip stay active.
func (s *VehicleService) Deactivate(ctx context.Context, tenantID, vehicleID uuid.UUID) (*VehicleResponse, error) {
	vehicle, err := s.load(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	trips, err := s.tripRepo.CountOpenByVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	if trips > 0 {
		return nil, shared.NewDomainError("VEHICLE_IN_USE", "Vehicle is assigned to an open trip")
	}
	if err := vehicle.Deactivate(); err != nil {
		return nil, err
	}
	return s.save(ctx, vehicle)
}

// Delete removes a vehicle that has no open trip or maintenance order
func (s *VehicleService) Delete(ctx context.Context, tenantID, vehicleID uuid.UUID) error {
	if _, err := s.load(ctx, tenantID, vehicleID); err != nil {
		return err
	}
	trips, err := s.tripRepo.CountOpenByVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return err
	}
	if trips > 0 {
		return shared.NewDomainError("VEHICLE_IN_USE", "Vehicle is assigned to an open trip")
	}
	orders, err := s.maintenanceRepo.CountOpenByVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return err
	}
	if orders > 0 {
		return shared.NewDomainError("VEHICLE_IN_MAINTENANCE", "Vehicle has open maintenance orders")
	}
	return s.vehicleRepo.Delete(ctx, tenantID, vehicleID)
}

func (s *VehicleService) ensurePlateFree(ctx context.Context, tenantID uuid.UUID, plate string, self uuid.UUID) error {
	if self == uuid.Nil {
		exists, err := s.vehicleRepo.ExistsByPlate(ctx, tenantID, plate)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainError("PLATE_EXISTS", "A vehicle with this plate already exists")
		}
		return nil
	}
	other, err := s.vehicleRepo.FindByPlate(ctx, tenantID, plate)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return err
	}
	if other.ID != self {
		return shared.NewDomainError("PLATE_EXISTS", "A vehicle with this plate already exists")
	}
	return nil
}

func (s *VehicleService) load(ctx context.Context, tenantID, vehicleID uuid.UUID) (*fleet.Vehicle, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, tenantID, vehicleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return nil, err
	}
	return vehicle, nil
}

func (s *VehicleService) save(ctx context.Context, vehicle *fleet.Vehicle) (*VehicleResponse, error) {
	if err := s.vehicleRepo.Save(ctx, vehicle); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, vehicle)
	response := ToVehicleResponse(vehicle)
	return &response, nil
}
