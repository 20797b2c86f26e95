package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// SupplierService handles supplier-related business operations
type SupplierService struct {
	supplierRepo partner.SupplierRepository
	publisher    shared.EventPublisher
}

// NewSupplierService creates a new SupplierService
func NewSupplierService(supplierRepo partner.SupplierRepository, publisher shared.EventPublisher) *SupplierService {
	return &SupplierService{
		supplierRepo: supplierRepo,
		publisher:    publisher,
	}
}

// Create creates a new supplier
func (s *SupplierService) Create(ctx context.Context, tenantID uuid.UUID, req CreateSupplierRequest) (*SupplierResponse, error) {
	supplier, err := partner.NewSupplier(tenantID, req.Name, req.Document, partner.SupplierCategory(req.Category))
	if err != nil {
		return nil, err
	}

	exists, err := s.supplierRepo.ExistsByDocument(ctx, tenantID, supplier.Document)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("SUPPLIER_DOCUMENT_EXISTS", "A supplier with this document already exists")
	}

	address, err := optionalAddress(req.Address)
	if err != nil {
		return nil, err
	}
	contact, err := req.Contact.toContact()
	if err != nil {
		return nil, err
	}
	if err := supplier.Update(supplier.Name, supplier.Category, address, contact, req.Notes); err != nil {
		return nil, err
	}
	if req.CreatedBy != uuid.Nil {
		supplier.SetCreatedBy(req.CreatedBy)
	}

	return s.save(ctx, supplier)
}

// GetByID retrieves a supplier by ID
func (s *SupplierService) GetByID(ctx context.Context, tenantID, supplierID uuid.UUID) (*SupplierResponse, error) {
	supplier, err := s.load(ctx, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	response := ToSupplierResponse(supplier)
	return &response, nil
}

// List retrieves a list of suppliers with filtering and pagination
func (s *SupplierService) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*shared.Paginated[SupplierResponse], error) {
	f := filter.toDomain()
	suppliers, total, err := s.supplierRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	items := make([]SupplierResponse, len(suppliers))
	for i := range suppliers {
		items[i] = ToSupplierResponse(&suppliers[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update updates a supplier
func (s *SupplierService) Update(ctx context.Context, tenantID, supplierID uuid.UUID, req UpdateSupplierRequest) (*SupplierResponse, error) {
	supplier, err := s.load(ctx, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	address, err := optionalAddress(req.Address)
	if err != nil {
		return nil, err
	}
	contact, err := req.Contact.toContact()
	if err != nil {
		return nil, err
	}
	if err := supplier.Update(req.Name, partner.SupplierCategory(req.Category), address, contact, req.Notes); err != nil {
		return nil, err
	}
	return s.save(ctx, supplier)
}

// Activate activates a supplier
func (s *SupplierService) Activate(ctx context.Context, tenantID, supplierID uuid.UUID) (*SupplierResponse, error) {
	supplier, err := s.load(ctx, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	if err := supplier.Activate(); err != nil {
		return nil, err
	}
	return s.save(ctx, supplier)
}

// Deactivate deactivates a supplier
func (s *SupplierService) Deactivate(ctx context.Context, tenantID, supplierID uuid.UUID) (*SupplierResponse, error) {
	supplier, err := s.load(ctx, tenantID, supplierID)
	if err != nil {
		return nil, err
	}
	if err := supplier.Deactivate(); err != nil {
		return nil, err
	}
	return s.save(ctx, supplier)
}

// Delete deletes a supplier. Maintenance orders keep the supplier ID as
// history.
func (s *SupplierService) Delete(ctx context.Context, tenantID, supplierID uuid.UUID) error {
	if _, err := s.load(ctx, tenantID, supplierID); err != nil {
		return err
	}
	return s.supplierRepo.Delete(ctx, tenantID, supplierID)
}

// Exists reports whether the supplier belongs to the tenant, for the
// maintenance order service
func (s *SupplierService) Exists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	_, err := s.supplierRepo.FindByID(ctx, tenantID, supplierID)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SupplierService) load(ctx context.Context, tenantID, supplierID uuid.UUID) (*partner.Supplier, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, tenantID, supplierID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("SUPPLIER_NOT_FOUND", "Supplier not found")
		}
		return nil, err
	}
	return supplier, nil
}

func (s *SupplierService) save(ctx context.Context, supplier *partner.Supplier) (*SupplierResponse, error) {
	if err := s.supplierRepo.Save(ctx, supplier); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, supplier)
	response := ToSupplierResponse(supplier)
	return &response, nil
}
