package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// ClientService handles contracting client operations
type ClientService struct {
	clientRepo partner.ClientRepository
	publisher  shared.EventPublisher
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo partner.ClientRepository, publisher shared.EventPublisher) *ClientService {
	return &ClientService{
		clientRepo: clientRepo,
		publisher:  publisher,
	}
}

// Create registers a new client
func (s *ClientService) Create(ctx context.Context, tenantID uuid.UUID, req CreateClientRequest) (*ClientResponse, error) {
	client, err := partner.NewClient(tenantID, req.Name, req.Document)
	if err != nil {
		return nil, err
	}

	// Document is unique per tenant
	exists, err := s.clientRepo.ExistsByDocument(ctx, tenantID, client.Document)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("CLIENT_DOCUMENT_EXISTS", "A client with this document already exists")
	}

	address, err := optionalAddress(req.Address)
	if err != nil {
		return nil, err
	}
	contact, err := req.Contact.toContact()
	if err != nil {
		return nil, err
	}
	if err := client.Update(client.Name, req.StateRegistration, address, contact, req.Notes); err != nil {
		return nil, err
	}
	if req.CreatedBy != uuid.Nil {
		client.SetCreatedBy(req.CreatedBy)
	}

	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, client)

	response := ToClientResponse(client)
	return &response, nil
}

// GetByID retrieves a client by ID
func (s *ClientService) GetByID(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientResponse, error) {
	client, err := s.load(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	response := ToClientResponse(client)
	return &response, nil
}

// List retrieves a page of clients
func (s *ClientService) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*shared.Paginated[ClientResponse], error) {
	f := filter.toDomain()
	clients, total, err := s.clientRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	items := make([]ClientResponse, len(clients))
	for i := range clients {
		items[i] = ToClientResponse(&clients[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update updates a client
func (s *ClientService) Update(ctx context.Context, tenantID, clientID uuid.UUID, req UpdateClientRequest) (*ClientResponse, error) {
	client, err := s.load(ctx, tenantID, clientID)
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
	if err := client.Update(req.Name, req.StateRegistration, address, contact, req.Notes); err != nil {
		return nil, err
	}
	return s.save(ctx, client)
}

// Activate activates a client
func (s *ClientService) Activate(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientResponse, error) {
	client, err := s.load(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if err := client.Activate(); err != nil {
		return nil, err
	}
	return s.save(ctx, client)
}

// Deactivate deactivates a client
func (s *ClientService) Deactivate(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientResponse, error) {
	client, err := s.load(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if err := client.Deactivate(); err != nil {
		return nil, err
	}
	return s.save(ctx, client)
}

// Delete deletes a client
func (s *ClientService) Delete(ctx context.Context, tenantID, clientID uuid.UUID) error {
	if _, err := s.load(ctx, tenantID, clientID); err != nil {
		return err
	}
	return s.clientRepo.Delete(ctx, tenantID, clientID)
}

func (s *ClientService) load(ctx context.Context, tenantID, clientID uuid.UUID) (*partner.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, tenantID, clientID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("CLIENT_NOT_FOUND", "Client not found")
		}
		return nil, err
	}
	return client, nil
}

func (s *ClientService) save(ctx context.Context, client *partner.Client) (*ClientResponse, error) {
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, err
	}
	_ = shared.PublishAndClear(ctx, s.publisher, client)
	response := ToClientResponse(client)
	return &response, nil
}
