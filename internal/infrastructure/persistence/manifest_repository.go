package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/manifest"
	"gorm.io/gorm"
)

// GormManifestRepository implements manifest.Repository using GORM. The
// lifecycle event records are stored in manifest_events next to the row.
type GormManifestRepository struct {
	db *gorm.DB
}

// NewGormManifestRepository creates a new GormManifestRepository
func NewGormManifestRepository(db *gorm.DB) *GormManifestRepository {
	return &GormManifestRepository{db: db}
}

func withEvents(db *gorm.DB) *gorm.DB {
	return db.Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("occurred_at ASC, sequence ASC")
	})
}

func (r *GormManifestRepository) findOne(ctx context.Context, query string, args ...any) (*manifest.Manifest, error) {
	var m manifest.Manifest
	if err := r.db.WithContext(ctx).Scopes(withEvents).Where(query, args...).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	m.MarkEventsPersisted()
	return &m, nil
}

// FindByID loads a manifest with its event history
func (r *GormManifestRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*manifest.Manifest, error) {
	return r.findOne(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByAccessKey loads a manifest by its 44 digit access key
func (r *GormManifestRepository) FindByAccessKey(ctx context.Context, tenantID uuid.UUID, accessKey string) (*manifest.Manifest, error) {
	return r.findOne(ctx, "tenant_id = ? AND access_key = ?", tenantID, strings.ReplaceAll(accessKey, " ", ""))
}

// FindAll lists manifests without their event history
func (r *GormManifestRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter manifest.Filter) ([]manifest.Manifest, int64, error) {
	query := r.db.WithContext(ctx).Model(&manifest.Manifest{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "access_key", "CAST(number AS TEXT)"))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	if uf := strings.ToUpper(strings.TrimSpace(filter.UF)); uf != "" {
		query = query.Where("start_uf = ? OR end_uf = ?", uf, uf)
	}
	if filter.VehicleID != nil {
		query = query.Where("vehicle_id = ?", *filter.VehicleID)
	}
	return listPage[manifest.Manifest](query, filter.Filter, ManifestSortFields, "created_at")
}

// FindUnclosed lists authorized manifests of a tenant, oldest first
func (r *GormManifestRepository) FindUnclosed(ctx context.Context, tenantID uuid.UUID) ([]manifest.Manifest, error) {
	var items []manifest.Manifest
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, manifest.StatusAuthorized).
		Order("authorized_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ExistsOpen reports whether another authorized manifest covers the same
// vehicle and UF pair
func (r *GormManifestRepository) ExistsOpen(ctx context.Context, q manifest.OpenManifestQuery) (bool, error) {
	return exists(ctx, r.db, &manifest.Manifest{},
		"tenant_id = ? AND status = ? AND vehicle_id = ? AND start_uf = ? AND end_uf = ? AND id <> ?",
		q.TenantID, manifest.StatusAuthorized, q.VehicleID, q.StartUF, q.EndUF, q.ExcludeID)
}

// FindPendingBefore returns manifests of every tenant stuck in pending since
// before the given time
func (r *GormManifestRepository) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]manifest.Manifest, error) {
	return r.scan(ctx, limit, "status = ? AND submitted_at < ?", manifest.StatusPending, before)
}

// FindAuthorizedBefore returns manifests of every tenant authorized before
// the given time and still open
func (r *GormManifestRepository) FindAuthorizedBefore(ctx context.Context, before time.Time, limit int) ([]manifest.Manifest, error) {
	return r.scan(ctx, limit, "status = ? AND authorized_at < ?", manifest.StatusAuthorized, before)
}

func (r *GormManifestRepository) scan(ctx context.Context, limit int, query string, args ...any) ([]manifest.Manifest, error) {
	var items []manifest.Manifest
	if err := r.db.WithContext(ctx).
		Scopes(withEvents).
		Where(query, args...).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		items[i].MarkEventsPersisted()
	}
	return items, nil
}

// Save writes the manifest and appends its new event records in one
// transaction
func (r *GormManifestRepository) Save(ctx context.Context, m *manifest.Manifest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.write(ctx, tx, m)
	})
	if err != nil {
		return err
	}
	m.MarkEventsPersisted()
	m.MarkPersisted()
	return nil
}

// write stores the row and its pending event records within tx
func (r *GormManifestRepository) write(ctx context.Context, tx *gorm.DB, m *manifest.Manifest) error {
	if err := saveVersioned(ctx, tx, m, m); err != nil {
		return err
	}
	if pending := m.PendingEvents(); len(pending) > 0 {
		if err := tx.Create(&pending).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// SaveNumbered allocates the tenant's next number, lets assign apply it
// and writes the manifest; the counter only moves when the manifest is
// stored
func (r *GormManifestRepository) SaveNumbered(ctx context.Context, m *manifest.Manifest, series int, assign func(number int) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := allocateNumber(tx, m.TenantID, series)
		if err != nil {
			return err
		}
		if err := assign(number); err != nil {
			return err
		}
		return r.write(ctx, tx, m)
	})
	if err != nil {
		return err
	}
	m.MarkEventsPersisted()
	m.MarkPersisted()
	return nil
}

// Delete removes a manifest and its event history
func (r *GormManifestRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND manifest_id = ?", tenantID, id).Delete(&manifest.EventRecord{}).Error; err != nil {
			return err
		}
		return deleteScoped(ctx, tx, &manifest.Manifest{}, tenantID, id)
	})
}
