package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SupplierChecker tells whether a supplier exists in the tenant
type SupplierChecker interface {
	Exists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error)
}

// MaintenanceService opens and closes maintenance orders, keeping the
// vehicle status in step with its open orders
type MaintenanceService struct {
	orderRepo   fleet.MaintenanceOrderRepository
	vehicleRepo fleet.VehicleRepository
	suppliers   SupplierChecker
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// NewMaintenanceService creates a new MaintenanceService. suppliers may be nil,
// in which case supplier IDs are not checked.
func NewMaintenanceService(
	orderRepo fleet.MaintenanceOrderRepository,
	vehicleRepo fleet.VehicleRepository,
	suppliers SupplierChecker,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		orderRepo:   orderRepo,
		vehicleRepo: vehicleRepo,
		suppliers:   suppliers,
		publisher:   publisher,
		logger:      logger,
	}
}

// Create opens an order and puts the vehicle into maintenance
func (s *MaintenanceService) Create(ctx context.Context, tenantID uuid.UUID, req CreateMaintenanceOrderRequest) (*MaintenanceOrderResponse, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, tenantID, req.VehicleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return nil, err
	}

	order, err := fleet.NewMaintenanceOrder(tenantID, vehicle.ID, fleet.MaintenanceKind(req.Kind), req.Description, req.ScheduledFor)
	if err != nil {
		return nil, err
	}
	if req.SupplierID != nil {
		if err := s.checkSupplier(ctx, tenantID, *req.SupplierID); err != nil {
			return nil, err
		}
		if err := order.SetSupplier(req.SupplierID); err != nil {
			return nil, err
		}
	}
	if err := vehicle.EnterMaintenance(); err != nil {
		return nil, err
	}
	if req.CreatedBy != uuid.Nil {
		order.SetCreatedBy(req.CreatedBy)
	}

	if err := s.orderRepo.SaveWithVehicle(ctx, order, vehicle); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, order)
	_ = shared.PublishAndClear(ctx, s.publisher, vehicle)

	response := ToMaintenanceOrderResponse(order)
	return &response, nil
}

// GetByID retrieves a maintenance order by ID
func (s *MaintenanceService) GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*MaintenanceOrderResponse, error) {
	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	response := ToMaintenanceOrderResponse(order)
	return &response, nil
}

// List retrieves a page of orders, optionally of one vehicle or status
func (s *MaintenanceService) List(ctx context.Context, tenantID uuid.UUID, filter MaintenanceListFilter) (*shared.Paginated[MaintenanceOrderResponse], error) {
	f := fleet.MaintenanceFilter{
		Filter:    filter.toShared(),
		VehicleID: optionalUUID(filter.VehicleID),
		Status:    fleet.MaintenanceStatus(filter.Status),
	}
	orders, total, err := s.orderRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	items := make([]MaintenanceOrderResponse, len(orders))
	for i := range orders {
		items[i] = ToMaintenanceOrderResponse(&orders[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Start moves an open order to in_progress
func (s *MaintenanceService) Start(ctx context.Context, tenantID, orderID uuid.UUID) (*MaintenanceOrderResponse, error) {
	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Start(); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, order)
	response := ToMaintenanceOrderResponse(order)
	return &response, nil
}

// Complete closes the order with its cost and odometer reading
func (s *MaintenanceService) Complete(ctx context.Context, tenantID, orderID uuid.UUID, req CompleteMaintenanceOrderRequest) (*MaintenanceOrderResponse, error) {
	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Complete(req.Cost, req.Odometer); err != nil {
		return nil, err
	}
	return s.finish(ctx, order)
}

// Cancel aborts the order
func (s *MaintenanceService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID, req CancelMaintenanceOrderRequest) (*MaintenanceOrderResponse, error) {
	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Cancel(req.Reason); err != nil {
		return nil, err
	}
	return s.finish(ctx, order)
}

// finish saves a closed order and, once no other order holds the vehicle,
// releases it in the same write
func (s *MaintenanceService) finish(ctx context.Context, order *fleet.MaintenanceOrder) (*MaintenanceOrderResponse, error) {
	// storage still counts this order as open
	open, err := s.orderRepo.CountOpenByVehicle(ctx, order.TenantID, order.VehicleID)
	if err != nil {
		return nil, err
	}

	var released *fleet.Vehicle
	if open <= 1 {
		vehicle, err := s.vehicleRepo.FindByID(ctx, order.TenantID, order.VehicleID)
		switch {
		case err == nil:
			vehicle.LeaveMaintenance()
			if vehicle.IsModified() {
				released = vehicle
			}
		case shared.IsNotFound(err):
			s.logger.Warn("vehicle of maintenance order no longer exists",
				zap.String("order_id", order.ID.String()),
				zap.String("vehicle_id", order.VehicleID.String()))
		default:
			return nil, err
		}
	}

	if err := s.orderRepo.SaveWithVehicle(ctx, order, released); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, order)
	if released != nil {
		_ = shared.PublishAndClear(ctx, s.publisher, released)
	}

	response := ToMaintenanceOrderResponse(order)
	return &response, nil
}

func (s *MaintenanceService) checkSupplier(ctx context.Context, tenantID, supplierID uuid.UUID) error {
	if s.suppliers == nil {
		return nil
	}
	ok, err := s.suppliers.Exists(ctx, tenantID, supplierID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewDomainError("SUPPLIER_NOT_FOUND", "Supplier not found")
	}
	return nil
}

func (s *MaintenanceService) load(ctx context.Context, tenantID, orderID uuid.UUID) (*fleet.MaintenanceOrder, error) {
	order, err := s.orderRepo.FindByID(ctx, tenantID, orderID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("MAINTENANCE_ORDER_NOT_FOUND", "Maintenance order not found")
		}
		return nil, err
	}
	return order, nil
}
