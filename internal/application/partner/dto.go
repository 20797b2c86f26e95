package partner

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// ContactInput is the request form of a partner contact
type ContactInput struct {
	ContactName string `json:"contact_name" binding:"max=100"`
	Phone       string `json:"phone" binding:"max=20"`
	Email       string `json:"email" binding:"omitempty,email,max=200"`
}

func (in ContactInput) toContact() (partner.Contact, error) {
	return partner.NewContact(in.ContactName, in.Phone, in.Email)
}

// ContactResponse is the response form of a partner contact
type ContactResponse struct {
	ContactName string `json:"contact_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

func toContactResponse(c partner.Contact) ContactResponse {
	return ContactResponse{ContactName: c.ContactName, Phone: c.Phone, Email: c.Email}
}

// ListFilter represents filter options for partner lists
type ListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=active inactive"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f ListFilter) toDomain() partner.ListFilter {
	return partner.ListFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
			Search:   common.Sanitize(f.Search),
		}.Normalize(),
		Status: partner.Status(f.Status),
	}
}

// optionalAddress converts an address that may be omitted; nil maps to the
// zero address
func optionalAddress(in *common.AddressInput) (valueobject.Address, error) {
	if in == nil {
		return valueobject.Address{}, nil
	}
	return in.ToAddress()
}

// =============================================================================
// Client DTOs
// =============================================================================

// CreateClientRequest represents a request to register a contracting client
type CreateClientRequest struct {
	Name              string               `json:"name" binding:"required,min=2,max=60"`
	Document          string               `json:"document" binding:"required,taxdoc"`
	StateRegistration string               `json:"state_registration" binding:"max=14"`
	Address           *common.AddressInput `json:"address"`
	Contact           ContactInput         `json:"contact"`
	Notes             string               `json:"notes" binding:"max=2000"`
	CreatedBy         uuid.UUID            `json:"-"`
}

// UpdateClientRequest represents a request to update a client. The
// document cannot change.
type UpdateClientRequest struct {
	Name              string               `json:"name" binding:"required,min=2,max=60"`
	StateRegistration string               `json:"state_registration" binding:"max=14"`
	Address           *common.AddressInput `json:"address"`
	Contact           ContactInput         `json:"contact"`
	Notes             string               `json:"notes" binding:"max=2000"`
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          uuid.UUID          `json:"tenant_id"`
	Name              string             `json:"name"`
	Document          string             `json:"document"`
	DocumentKind      string             `json:"document_kind"`
	StateRegistration string             `json:"state_registration,omitempty"`
	Address           *common.AddressDTO `json:"address,omitempty"`
	Contact           ContactResponse    `json:"contact"`
	Status            string             `json:"status"`
	Notes             string             `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Version           int                `json:"version"`
}

// ToClientResponse converts a domain Client to ClientResponse
func ToClientResponse(c *partner.Client) ClientResponse {
	return ClientResponse{
		ID:                c.ID,
		TenantID:          c.TenantID,
		Name:              c.Name,
		Document:          c.Document,
		DocumentKind:      c.DocumentKind,
		StateRegistration: c.StateRegistration,
		Address:           common.ToAddressDTO(c.Address),
		Contact:           toContactResponse(c.Contact),
		Status:            string(c.Status),
		Notes:             c.Notes,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		Version:           c.Version,
	}
}

// =============================================================================
// Insurer DTOs
// =============================================================================

// PolicyInput is the insurance policy held with an insurer
type PolicyInput struct {
	Number  string    `json:"number" binding:"required,max=20"`
	StartAt time.Time `json:"start_at" binding:"required"`
	EndAt   time.Time `json:"end_at" binding:"required"`
}

// CreateInsurerRequest represents a request to register an insurer
type CreateInsurerRequest struct {
	Name      string       `json:"name" binding:"required,min=2,max=30"`
	CNPJ      string       `json:"cnpj" binding:"required,cnpj"`
	Policy    *PolicyInput `json:"policy"`
	Contact   ContactInput `json:"contact"`
	CreatedBy uuid.UUID    `json:"-"`
}

// UpdateInsurerRequest represents a request to update an insurer
type UpdateInsurerRequest struct {
	Name    string       `json:"name" binding:"required,min=2,max=30"`
	Policy  *PolicyInput `json:"policy"`
	Contact ContactInput `json:"contact"`
}

// InsurerResponse represents an insurer in API responses
type InsurerResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	Name          string          `json:"name"`
	CNPJ          string          `json:"cnpj"`
	PolicyNumber  string          `json:"policy_number,omitempty"`
	PolicyStartAt *time.Time      `json:"policy_start_at,omitempty"`
	PolicyEndAt   *time.Time      `json:"policy_end_at,omitempty"`
	PolicyValid   bool            `json:"policy_valid"`
	Contact       ContactResponse `json:"contact"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// ToInsurerResponse converts a domain Insurer; now decides PolicyValid
func ToInsurerResponse(i *partner.Insurer, now time.Time) InsurerResponse {
	return InsurerResponse{
		ID:            i.ID,
		TenantID:      i.TenantID,
		Name:          i.Name,
		CNPJ:          i.CNPJ,
		PolicyNumber:  i.PolicyNumber,
		PolicyStartAt: i.PolicyStartAt,
		PolicyEndAt:   i.PolicyEndAt,
		PolicyValid:   i.PolicyValidAt(now),
		Contact:       toContactResponse(i.Contact),
		Status:        string(i.Status),
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
		Version:       i.Version,
	}
}

// =============================================================================
// Supplier DTOs
// =============================================================================

// CreateSupplierRequest represents a request to register a supplier
type CreateSupplierRequest struct {
	Name      string               `json:"name" binding:"required,min=2,max=100"`
	Document  string               `json:"document" binding:"required,taxdoc"`
	Category  string               `json:"category" binding:"required,oneof=parts tires fuel services other"`
	Address   *common.AddressInput `json:"address"`
	Contact   ContactInput         `json:"contact"`
	Notes     string               `json:"notes" binding:"max=2000"`
	CreatedBy uuid.UUID            `json:"-"`
}

// UpdateSupplierRequest represents a request to update a supplier
type UpdateSupplierRequest struct {
	Name     string               `json:"name" binding:"required,min=2,max=100"`
	Category string               `json:"category" binding:"required,oneof=parts tires fuel services other"`
	Address  *common.AddressInput `json:"address"`
	Contact  ContactInput         `json:"contact"`
	Notes    string               `json:"notes" binding:"max=2000"`
}

// SupplierResponse represents a supplier in API responses
type SupplierResponse struct {
	ID        uuid.UUID          `json:"id"`
	TenantID  uuid.UUID          `json:"tenant_id"`
	Name      string             `json:"name"`
	Document  string             `json:"document"`
	Category  string             `json:"category"`
	Address   *common.AddressDTO `json:"address,omitempty"`
	Contact   ContactResponse    `json:"contact"`
	Status    string             `json:"status"`
	Notes     string             `json:"notes,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Version   int                `json:"version"`
}

// ToSupplierResponse converts a domain Supplier to SupplierResponse
func ToSupplierResponse(s *partner.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Name:      s.Name,
		Document:  s.Document,
		Category:  string(s.Category),
		Address:   common.ToAddressDTO(s.Address),
		Contact:   toContactResponse(s.Contact),
		Status:    string(s.Status),
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Version:   s.Version,
	}
}
