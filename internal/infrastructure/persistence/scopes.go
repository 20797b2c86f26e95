package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantScope restricts a query to one tenant
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// SearchScope matches the search term against the given columns, case
// insensitive. An empty term leaves the query untouched.
func SearchScope(term string, columns ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + term + "%"
		conds := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			conds[i] = "LOWER(" + col + ") LIKE LOWER(?)"
			args[i] = pattern
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// Paginate applies the ordering and page window of a filter. The order
// column is checked against the allowed set.
func Paginate(filter shared.Filter, allowed map[string]bool, defaultField string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		f := filter.Normalize()
		field := ValidateSortField(f.OrderBy, allowed, defaultField)
		dir := ValidateSortOrder(f.OrderDir)
		return db.Order(field + " " + dir).Offset(f.Offset()).Limit(f.PageSize)
	}
}

// translateError maps driver errors to domain errors
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return shared.ErrAlreadyExists
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// versioned is satisfied by every aggregate root
type versioned interface {
	GetID() uuid.UUID
	ExpectedVersion() int
}

// saveVersioned updates the row only while it still carries the version the
// aggregate was loaded with, and inserts it when it does not exist yet. A
// stale version fails with ErrConcurrencyConflict. Callers mark the
// aggregate persisted once their transaction commits.
func saveVersioned(ctx context.Context, db *gorm.DB, model any, agg versioned) error {
	result := db.WithContext(ctx).
		Model(model).
		Omit(clause.Associations).
		Where("version = ?", agg.ExpectedVersion()).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", agg.GetID()).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}
	return translateError(db.WithContext(ctx).Omit(clause.Associations).Create(model).Error)
}

// deleteScoped removes one tenant-owned row and reports ErrNotFound when
// nothing matched
func deleteScoped(ctx context.Context, db *gorm.DB, model any, tenantID, id uuid.UUID) error {
	result := db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// exists reports whether any row matches the conditions
func exists(ctx context.Context, db *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// findScoped loads one tenant-owned row by ID
func findScoped[T any](ctx context.Context, db *gorm.DB, tenantID, id uuid.UUID) (*T, error) {
	var out T
	if err := db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&out).Error; err != nil {
		return nil, translateError(err)
	}
	return &out, nil
}

// findScopedByIDs loads the tenant-owned rows among ids; missing IDs are
// simply absent from the result
func findScopedByIDs[T any](ctx context.Context, db *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]T, error) {
	out := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// listPage counts the rows of query and loads the requested page
func listPage[T any](query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) ([]T, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items := make([]T, 0)
	if err := query.Scopes(Paginate(filter, allowed, defaultField)).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
