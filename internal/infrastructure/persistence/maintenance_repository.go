package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"gorm.io/gorm"
)

// GormMaintenanceOrderRepository implements fleet.MaintenanceOrderRepository using GORM
type GormMaintenanceOrderRepository struct {
	db *gorm.DB
}

// NewGormMaintenanceOrderRepository creates a new GormMaintenanceOrderRepository
func NewGormMaintenanceOrderRepository(db *gorm.DB) *GormMaintenanceOrderRepository {
	return &GormMaintenanceOrderRepository{db: db}
}

func (r *GormMaintenanceOrderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.MaintenanceOrder, error) {
	return findScoped[fleet.MaintenanceOrder](ctx, r.db, tenantID, id)
}

func (r *GormMaintenanceOrderRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.MaintenanceFilter) ([]fleet.MaintenanceOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&fleet.MaintenanceOrder{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "description"))
	if filter.VehicleID != nil {
		query = query.Where("vehicle_id = ?", *filter.VehicleID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[fleet.MaintenanceOrder](query, filter.Filter, MaintenanceSortFields, "opened_at")
}

// CountOpenByVehicle counts orders of the vehicle still open or in progress
func (r *GormMaintenanceOrderRepository) CountOpenByVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&fleet.MaintenanceOrder{}).
		Where("tenant_id = ? AND vehicle_id = ?", tenantID, vehicleID).
		Where("status IN ?", []fleet.MaintenanceStatus{fleet.MaintenanceStatusOpen, fleet.MaintenanceStatusInProgress}).
		Count(&count).Error
	return count, err
}

func (r *GormMaintenanceOrderRepository) Save(ctx context.Context, order *fleet.MaintenanceOrder) error {
	if err := saveVersioned(ctx, r.db, order, order); err != nil {
		return err
	}
	order.MarkPersisted()
	return nil
}

// SaveWithVehicle writes the order and the vehicle in one transaction;
// a nil vehicle stores the order alone
func (r *GormMaintenanceOrderRepository) SaveWithVehicle(ctx context.Context, order *fleet.MaintenanceOrder, vehicle *fleet.Vehicle) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(ctx, tx, order, order); err != nil {
			return err
		}
		if vehicle == nil {
			return nil
		}
		return saveVersioned(ctx, tx, vehicle, vehicle)
	})
	if err != nil {
		return err
	}
	order.MarkPersisted()
	if vehicle != nil {
		vehicle.MarkPersisted()
	}
	return nil
}
