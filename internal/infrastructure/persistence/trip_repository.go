package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"gorm.io/gorm"
)

var openTripStatuses = []fleet.TripStatus{fleet.TripStatusPlanned, fleet.TripStatusInProgress}

// GormTripRepository implements fleet.TripRepository using GORM
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GormTripRepository
func NewGormTripRepository(db *gorm.DB) *GormTripRepository {
	return &GormTripRepository{db: db}
}

func (r *GormTripRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.Trip, error) {
	return findScoped[fleet.Trip](ctx, r.db, tenantID, id)
}

func (r *GormTripRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.TripFilter) ([]fleet.Trip, int64, error) {
	query := r.db.WithContext(ctx).Model(&fleet.Trip{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "origin_name", "destination_name", "notes"))
	if filter.VehicleID != nil {
		query = query.Where("vehicle_id = ? OR "+jsonArrayContains("trailer_ids"), *filter.VehicleID, jsonElementPattern(*filter.VehicleID))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[fleet.Trip](query, filter.Filter, TripSortFields, "planned_departure")
}

// CountOpenByVehicle counts planned or running trips pulled by the vehicle
// or carrying it as a trailer
func (r *GormTripRepository) CountOpenByVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&fleet.Trip{}).
		Where("tenant_id = ? AND status IN ?", tenantID, openTripStatuses).
		Where("vehicle_id = ? OR "+jsonArrayContains("trailer_ids"), vehicleID, jsonElementPattern(vehicleID)).
		Count(&count).Error
	return count, err
}

// CountOpenByDriver counts planned or running trips with the driver on board
func (r *GormTripRepository) CountOpenByDriver(ctx context.Context, tenantID, driverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&fleet.Trip{}).
		Where("tenant_id = ? AND status IN ?", tenantID, openTripStatuses).
		Where(jsonArrayContains("driver_ids"), jsonElementPattern(driverID)).
		Count(&count).Error
	return count, err
}

func (r *GormTripRepository) Save(ctx context.Context, trip *fleet.Trip) error {
	if err := saveVersioned(ctx, r.db, trip, trip); err != nil {
		return err
	}
	trip.MarkPersisted()
	return nil
}

// jsonArrayContains matches a JSON array of UUID strings by its text form,
// which works the same on postgres jsonb and sqlite text columns
func jsonArrayContains(column string) string {
	return "CAST(" + column + " AS TEXT) LIKE ?"
}

func jsonElementPattern(id uuid.UUID) string {
	return `%"` + id.String() + `"%`
}
