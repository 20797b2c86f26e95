package partner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// InsurerService handles cargo insurer operations
type InsurerService struct {
	insurerRepo partner.InsurerRepository
	publisher   shared.EventPublisher
	now         func() time.Time
}

// NewInsurerService creates a new InsurerService
func NewInsurerService(insurerRepo partner.InsurerRepository, publisher shared.EventPublisher) *InsurerService {
	return &InsurerService{
		insurerRepo: insurerRepo,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Create registers a new insurer
func (s *InsurerService) Create(ctx context.Context, tenantID uuid.UUID, req CreateInsurerRequest) (*InsurerResponse, error) {
	insurer, err := partner.NewInsurer(tenantID, req.Name, req.CNPJ)
	if err != nil {
		return nil, err
	}

	exists, err := s.insurerRepo.ExistsByCNPJ(ctx, tenantID, insurer.CNPJ)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("INSURER_CNPJ_EXISTS", "An insurer with this CNPJ already exists")
	}

	contact, err := req.Contact.toContact()
	if err != nil {
		return nil, err
	}
	if err := insurer.Update(insurer.Name, contact); err != nil {
		return nil, err
	}
	if req.Policy != nil {
		if err := insurer.SetPolicy(req.Policy.Number, req.Policy.StartAt, req.Policy.EndAt); err != nil {
			return nil, err
		}
	}
	if req.CreatedBy != uuid.Nil {
		insurer.SetCreatedBy(req.CreatedBy)
	}

	return s.save(ctx, insurer)
}

// GetByID retrieves an insurer by ID
func (s *InsurerService) GetByID(ctx context.Context, tenantID, insurerID uuid.UUID) (*InsurerResponse, error) {
	insurer, err := s.load(ctx, tenantID, insurerID)
	if err != nil {
		return nil, err
	}
	response := ToInsurerResponse(insurer, s.now())
	return &response, nil
}

// List retrieves a page of insurers
func (s *InsurerService) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*shared.Paginated[InsurerResponse], error) {
	f := filter.toDomain()
	insurers, total, err := s.insurerRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]InsurerResponse, len(insurers))
	for i := range insurers {
		items[i] = ToInsurerResponse(&insurers[i], now)
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update updates an insurer and, when given, its policy
func (s *InsurerService) Update(ctx context.Context, tenantID, insurerID uuid.UUID, req UpdateInsurerRequest) (*InsurerResponse, error) {
	insurer, err := s.load(ctx, tenantID, insurerID)
	if err != nil {
		return nil, err
	}
	contact, err := req.Contact.toContact()
	if err != nil {
		return nil, err
	}
	if err := insurer.Update(req.Name, contact); err != nil {
		return nil, err
	}
	if req.Policy != nil {
		if err := insurer.SetPolicy(req.Policy.Number, req.Policy.StartAt, req.Policy.EndAt); err != nil {
			return nil, err
		}
	}
	return s.save(ctx, insurer)
}

// Activate activates an insurer
func (s *InsurerService) Activate(ctx context.Context, tenantID, insurerID uuid.UUID) (*InsurerResponse, error) {
	insurer, err := s.load(ctx, tenantID, insurerID)
	if err != nil {
		return nil, err
	}
	if err := insurer.Activate(); err != nil {
		return nil, err
	}
	return s.save(ctx, insurer)
}

// Deactivate deactivates an insurer
func (s *InsurerService) Deactivate(ctx context.Context, tenantID, insurerID uuid.UUID) (*InsurerResponse, error) {
	insurer, err := s.load(ctx, tenantID, insurerID)
	if err != nil {
		return nil, err
	}
	if err := insurer.Deactivate(); err != nil {
		return nil, err
	}
	return s.save(ctx, insurer)
}

// Delete deletes an insurer
func (s *InsurerService) Delete(ctx context.Context, tenantID, insurerID uuid.UUID) error {
	if _, err := s.load(ctx, tenantID, insurerID); err != nil {
		return err
	}
	return s.insurerRepo.Delete(ctx, tenantID, insurerID)
}

func (s *InsurerService) load(ctx context.Context, tenantID, insurerID uuid.UUID) (*partner.Insurer, error) {
	insurer, err := s.insurerRepo.FindByID(ctx, tenantID, insurerID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("INSURER_NOT_FOUND", "Insurer not found")
		}
		return nil, err
	}
	return insurer, nil
}

func (s *InsurerService) save(ctx context.Context, insurer *partner.Insurer) (*InsurerResponse, error) {
	if err := s.insurerRepo.Save(ctx, insurer); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, insurer)
	response := ToInsurerResponse(insurer, s.now())
	return &response, nil
}
