package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"gorm.io/gorm"
)

// GormVehicleRepository implements fleet.VehicleRepository using GORM
type GormVehicleRepository struct {
	db *gorm.DB
}

// NewGormVehicleRepository creates a new GormVehicleRepository
func NewGormVehicleRepository(db *gorm.DB) *GormVehicleRepository {
	return &GormVehicleRepository{db: db}
}

// FindByID finds a vehicle by ID within a tenant
func (r *GormVehicleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.Vehicle, error) {
	return findScoped[fleet.Vehicle](ctx, r.db, tenantID, id)
}

// FindByIDs finds the tenant's vehicles among ids
func (r *GormVehicleRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]fleet.Vehicle, error) {
	return findScopedByIDs[fleet.Vehicle](ctx, r.db, tenantID, ids)
}

// FindByPlate finds a vehicle by its normalized plate
func (r *GormVehicleRepository) FindByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (*fleet.Vehicle, error) {
	var vehicle fleet.Vehicle
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND plate = ?", tenantID, normalizePlate(plate)).
		First(&vehicle).Error; err != nil {
		return nil, translateError(err)
	}
	return &vehicle, nil
}

// FindAll lists vehicles of a tenant
func (r *GormVehicleRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.VehicleFilter) ([]fleet.Vehicle, int64, error) {
	query := r.db.WithContext(ctx).Model(&fleet.Vehicle{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "plate", "internal_code", "renavam", "owner_name"))
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[fleet.Vehicle](query, filter.Filter, VehicleSortFields, "plate")
}

// ExistsByPlate checks if a plate is already registered by the tenant
func (r *GormVehicleRepository) ExistsByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (bool, error) {
	return exists(ctx, r.db, &fleet.Vehicle{}, "tenant_id = ? AND plate = ?", tenantID, normalizePlate(plate))
}

// Save creates or updates a vehicle
func (r *GormVehicleRepository) Save(ctx context.Context, vehicle *fleet.Vehicle) error {
	if err := saveVersioned(ctx, r.db, vehicle, vehicle); err != nil {
		return err
	}
	vehicle.MarkPersisted()
	return nil
}

// Delete removes a vehicle
func (r *GormVehicleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteScoped(ctx, r.db, &fleet.Vehicle{}, tenantID, id)
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(plate), "-", ""))
}
