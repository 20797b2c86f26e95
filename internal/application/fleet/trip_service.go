package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
)

// TripService plans and tracks trips
type TripService struct {
	tripRepo    fleet.TripRepository
	vehicleRepo fleet.VehicleRepository
	driverRepo  fleet.DriverRepository
	publisher   shared.EventPublisher
}

// NewTripService creates a new TripService
func NewTripService(
	tripRepo fleet.TripRepository,
	vehicleRepo fleet.VehicleRepository,
	driverRepo fleet.DriverRepository,
	publisher shared.EventPublisher,
) *TripService {
	return &TripService{
		tripRepo:    tripRepo,
		vehicleRepo: vehicleRepo,
		driverRepo:  driverRepo,
		publisher:   publisher,
	}
}

// Create plans a trip. The vehicle must be an active traction unit, the
// trailers active trailers, and every driver must be able to drive on the
// planned departure.
func (s *TripService) Create(ctx context.Context, tenantID uuid.UUID, req CreateTripRequest) (*TripResponse, error) {
	origin, err := req.Origin.ToMunicipality()
	if err != nil {
		return nil, err
	}
	destination, err := req.Destination.ToMunicipality()
	if err != nil {
		return nil, err
	}
	trip, err := fleet.NewTrip(tenantID, req.VehicleID, req.TrailerIDs, req.DriverIDs, origin, destination, req.PlannedDeparture)
	if err != nil {
		return nil, err
	}

	if err := s.checkVehicles(ctx, tenantID, req.VehicleID, req.TrailerIDs); err != nil {
		return nil, err
	}
	if err := s.checkDrivers(ctx, tenantID, trip); err != nil {
		return nil, err
	}

	if req.Notes != "" {
		trip.SetNotes(req.Notes)
	}
	if req.CreatedBy != uuid.Nil {
		trip.SetCreatedBy(req.CreatedBy)
	}
	return s.save(ctx, trip)
}

// GetByID retrieves a trip by ID
func (s *TripService) GetByID(ctx context.Context, tenantID, tripID uuid.UUID) (*TripResponse, error) {
	trip, err := s.load(ctx, tenantID, tripID)
	if err != nil {
		return nil, err
	}
	response := ToTripResponse(trip)
	return &response, nil
}

// List retrieves a page of trips
func (s *TripService) List(ctx context.Context, tenantID uuid.UUID, filter TripListFilter) (*shared.Paginated[TripResponse], error) {
	f := fleet.TripFilter{
		Filter:    filter.toShared(),
		VehicleID: optionalUUID(filter.VehicleID),
		Status:    fleet.TripStatus(filter.Status),
	}
	trips, total, err := s.tripRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	items := make([]TripResponse, len(trips))
	for i := range trips {
		items[i] = ToTripResponse(&trips[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Start records the departure. A vehicle that went into maintenance after
// planning cannot leave.
func (s *TripService) Start(ctx context.Context, tenantID, tripID uuid.UUID, req OdometerRequest) (*TripResponse, error) {
	trip, err := s.load(ctx, tenantID, tripID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicleRepo.FindByID(ctx, tenantID, trip.VehicleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return nil, err
	}
	if !vehicle.IsActive() {
		return nil, shared.NewDomainError("VEHICLE_UNAVAILABLE", "Vehicle "+vehicle.Plate+" is not available")
	}
	if err := trip.Start(req.Odometer); err != nil {
		return nil, err
	}
	return s.save(ctx, trip)
}

// Finish records the arrival
func (s *TripService) Finish(ctx context.Context, tenantID, tripID uuid.UUID, req OdometerRequest) (*TripResponse, error) {
	trip, err := s.load(ctx, tenantID, tripID)
	if err != nil {
		return nil, err
	}
	if err := trip.Finish(req.Odometer); err != nil {
		return nil, err
	}
	return s.save(ctx, trip)
}

// Cancel aborts a trip
func (s *TripService) Cancel(ctx context.Context, tenantID, tripID uuid.UUID) (*TripResponse, error) {
	trip, err := s.load(ctx, tenantID, tripID)
	if err != nil {
		return nil, err
	}
	if err := trip.Cancel(); err != nil {
		return nil, err
	}
	return s.save(ctx, trip)
}

// LinkManifest attaches the manifest covering the trip
func (s *TripService) LinkManifest(ctx context.Context, tenantID, tripID, manifestID uuid.UUID) (*TripResponse, error) {
	trip, err := s.load(ctx, tenantID, tripID)
	if err != nil {
		return nil, err
	}
	if err := trip.LinkManifest(manifestID); err != nil {
		return nil, err
	}
	return s.save(ctx, trip)
}

func (s *TripService) checkVehicles(ctx context.Context, tenantID, vehicleID uuid.UUID, trailerIDs []uuid.UUID) error {
	vehicle, err := s.vehicleRepo.FindByID(ctx, tenantID, vehicleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return shared.NewDomainError("VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return err
	}
	if !vehicle.IsTraction() {
		return shared.NewDomainError("NOT_A_TRACTION_UNIT", "Vehicle "+vehicle.Plate+" is not a traction unit")
	}
	if !vehicle.IsActive() {
		return shared.NewDomainError("VEHICLE_UNAVAILABLE", "Vehicle "+vehicle.Plate+" is not available")
	}
	if len(trailerIDs) == 0 {
		return nil
	}

	trailers, err := s.vehicleRepo.FindByIDs(ctx, tenantID, trailerIDs)
	if err != nil {
		return err
	}
	if len(trailers) != len(trailerIDs) {
		return shared.NewDomainError("VEHICLE_NOT_FOUND", "One or more trailers were not found")
	}
	for i := range trailers {
		if !trailers[i].IsTrailer() {
			return shared.NewDomainError("NOT_A_TRAILER", "Vehicle "+trailers[i].Plate+" is not a trailer")
		}
		if !trailers[i].IsActive() {
			return shared.NewDomainError("VEHICLE_UNAVAILABLE", "Vehicle "+trailers[i].Plate+" is not available")
		}
	}
	return nil
}

func (s *TripService) checkDrivers(ctx context.Context, tenantID uuid.UUID, trip *fleet.Trip) error {
	drivers, err := s.driverRepo.FindByIDs(ctx, tenantID, trip.DriverIDs)
	if err != nil {
		return err
	}
	if len(drivers) != len(trip.DriverIDs) {
		return shared.NewDomainError("DRIVER_NOT_FOUND", "One or more drivers were not found")
	}
	for i := range drivers {
		if err := drivers[i].CanDrive(trip.PlannedDeparture); err != nil {
			return err
		}
	}
	return nil
}

func (s *TripService) load(ctx context.Context, tenantID, tripID uuid.UUID) (*fleet.Trip, error) {
	trip, err := s.tripRepo.FindByID(ctx, tenantID, tripID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("TRIP_NOT_FOUND", "Trip not found")
		}
		return nil, err
	}
	return trip, nil
}

func (s *TripService) save(ctx context.Context, trip *fleet.Trip) (*TripResponse, error) {
	if err := s.tripRepo.Save(ctx, trip); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, trip)
	response := ToTripResponse(trip)
	return &response, nil
}
