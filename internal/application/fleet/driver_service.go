package fleet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
)

// DriverService handles driver registration
type DriverService struct {
	driverRepo fleet.DriverRepository
	tripRepo   fleet.TripRepository
	publisher  shared.EventPublisher
	now        func() time.Time
}

// NewDriverService creates a new DriverService
func NewDriverService(driverRepo fleet.DriverRepository, tripRepo fleet.TripRepository, publisher shared.EventPublisher) *DriverService {
	return &DriverService{
		driverRepo: driverRepo,
		tripRepo:   tripRepo,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Create registers a driver; the CPF is unique per tenant
func (s *DriverService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDriverRequest) (*DriverResponse, error) {
	driver, err := fleet.NewDriver(tenantID, req.Name, req.CPF, req.CNHNumber, req.CNHCategory, req.CNHExpiresAt)
	if err != nil {
		return nil, err
	}
	exists, err := s.driverRepo.ExistsByCPF(ctx, tenantID, driver.CPF)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("CPF_EXISTS", "A driver with this CPF already exists")
	}
	if req.Phone != "" {
		if err := driver.Update(driver.Name, driver.CNHNumber, driver.CNHCategory, driver.CNHExpiresAt, req.Phone); err != nil {
			return nil, err
		}
	}
	if req.CreatedBy != uuid.Nil {
		driver.SetCreatedBy(req.CreatedBy)
	}
	return s.save(ctx, driver)
}

// GetByID retrieves a driver by ID
func (s *DriverService) GetByID(ctx context.Context, tenantID, driverID uuid.UUID) (*DriverResponse, error) {
	driver, err := s.load(ctx, tenantID, driverID)
	if err != nil {
		return nil, err
	}
	response := ToDriverResponse(driver, s.now())
	return &response, nil
}

// List retrieves a page of drivers; the search matches name and CPF
func (s *DriverService) List(ctx context.Context, tenantID uuid.UUID, filter DriverListFilter) (*shared.Paginated[DriverResponse], error) {
	f := fleet.DriverFilter{Filter: filter.toShared(), Status: fleet.DriverStatus(filter.Status)}
	drivers, total, err := s.driverRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]DriverResponse, len(drivers))
	for i := range drivers {
		items[i] = ToDriverResponse(&drivers[i], now)
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update changes the driver's name, license and phone
func (s *DriverService) Update(ctx context.Context, tenantID, driverID uuid.UUID, req UpdateDriverRequest) (*DriverResponse, error) {
	driver, err := s.load(ctx, tenantID, driverID)
	if err != nil {
		return nil, err
	}
	if err := driver.Update(req.Name, req.CNHNumber, req.CNHCategory, req.CNHExpiresAt, req.Phone); err != nil {
		return nil, err
	}
	return s.save(ctx, driver)
}

// Activate activates a driver
func (s *DriverService) Activate(ctx context.Context, tenantID, driverID uuid.UUID) (*DriverResponse, error) {
	driver, err := s.load(ctx, tenantID, driverID)
	if err != nil {
		return nil, err
	}
	if err := driver.Activate(); err != nil {
		return nil, err
	}
	return s.save(ctx, driver)
}

// Deactivate deactivates a driver
func (s *DriverService) Deactivate(ctx context.Context, tenantID, driverID uuid.UUID) (*DriverResponse, error) {
	driver, err := s.load(ctx, tenantID, driverID)
	if err != nil {
		return nil, err
	}
	if err := driver.Deactivate(); err != nil {
		return nil, err
	}
	return s.save(ctx, driver)
}

// Delete removes a driver that is not on an open trip
func (s *DriverService) Delete(ctx context.Context, tenantID, driverID uuid.UUID) error {
	if _, err := s.load(ctx, tenantID, driverID); err != nil {
		return err
	}
	trips, err := s.tripRepo.CountOpenByDriver(ctx, tenantID, driverID)
	if err != nil {
		return err
	}
	if trips > 0 {
		return shared.NewDomainError("DRIVER_IN_USE", "Driver is assigned to an open trip")
	}
	return s.driverRepo.Delete(ctx, tenantID, driverID)
}

func (s *DriverService) load(ctx context.Context, tenantID, driverID uuid.UUID) (*fleet.Driver, error) {
	driver, err := s.driverRepo.FindByID(ctx, tenantID, driverID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("DRIVER_NOT_FOUND", "Driver not found")
		}
		return nil, err
	}
	return driver, nil
}

func (s *DriverService) save(ctx context.Context, driver *fleet.Driver) (*DriverResponse, error) {
	if err := s.driverRepo.Save(ctx, driver); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, driver)
	response := ToDriverResponse(driver, s.now())
	return &response, nil
}
