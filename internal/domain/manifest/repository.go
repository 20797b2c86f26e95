package manifest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// Filter narrows manifest listings
type Filter struct {
	shared.Filter
	Status    Status
	From      *time.Time
	To        *time.Time
	UF        string
	VehicleID *uuid.UUID
}

// OpenManifestQuery identifies manifests that block a new transmission:
// authorized, not closed, same vehicle and same start/end UF pair
type OpenManifestQuery struct {
	TenantID  uuid.UUID
	VehicleID uuid.UUID
	StartUF   string
	EndUF     string
	ExcludeID uuid.UUID
}

// Repository persists manifests and their event history
type Repository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Manifest, error)
	FindByAccessKey(ctx context.Context, tenantID uuid.UUID, accessKey string) (*Manifest, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Manifest, int64, error)
	// FindUnclosed lists authorized manifests of a tenant, oldest first
	FindUnclosed(ctx context.Context, tenantID uuid.UUID) ([]Manifest, error)
	ExistsOpen(ctx context.Context, q OpenManifestQuery) (bool, error)

	// Cross-tenant scans used by background jobs
	FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]Manifest, error)
	FindAuthorizedBefore(ctx context.Context, before time.Time, limit int) ([]Manifest, error)

	Save(ctx context.Context, m *Manifest) error
	// SaveNumbered draws the next number of the tenant's series, hands it
	// to assign and stores the manifest in the same transaction, so a
	// failed save never burns a number. It fails with SERIES_CHANGED when
	// the tenant no longer issues on series.
	SaveNumbered(ctx context.Context, m *Manifest, series int, assign func(number int) error) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
