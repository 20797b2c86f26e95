package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// ListFilter narrows partner listings
type ListFilter struct {
	shared.Filter
	Status Status
}

// ClientRepository persists clients
type ClientRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Client, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Client, int64, error)
	ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error)
	Save(ctx context.Context, client *Client) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// InsurerRepository persists insurers
type InsurerRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Insurer, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Insurer, int64, error)
	ExistsByCNPJ(ctx context.Context, tenantID uuid.UUID, cnpj string) (bool, error)
	Save(ctx context.Context, insurer *Insurer) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// SupplierRepository persists suppliers
type SupplierRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Supplier, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Supplier, int64, error)
	ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error)
	Save(ctx context.Context, supplier *Supplier) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
