package partner

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// Client is a contracting party (contratante) of the transport service
type Client struct {
	shared.TenantAggregateRoot
	Name              string              `gorm:"type:varchar(60);not null"`
	Document          string              `gorm:"type:varchar(14);not null;index"`
	DocumentKind      string              `gorm:"type:varchar(4);not null"`
	StateRegistration string              `gorm:"type:varchar(14)"`
	Address           valueobject.Address `gorm:"type:jsonb"`
	Contact           Contact             `gorm:"embedded"`
	Status            Status              `gorm:"type:varchar(20);not null;default:'active'"`
	Notes             string              `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Client) TableName() string {
	return "clients"
}

// NewClient registers an active client identified by CNPJ or CPF
func NewClient(tenantID uuid.UUID, name, document string) (*Client, error) {
	name, err := validateName(name, 60)
	if err != nil {
		return nil, err
	}
	doc, err := valueobject.NewTaxDocument(document)
	if err != nil {
		return nil, err
	}
	c := &Client{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Document:            doc.String(),
		DocumentKind:        string(doc.Kind()),
		Status:              StatusActive,
	}
	c.AddDomainEvent(NewPartnerEvent(EventTypeClientRegistered, AggregateTypeClient, c.ID, c.TenantID, c.Name))
	return c, nil
}

// Update changes the client's registration data; the document is immutable
func (c *Client) Update(name, stateRegistration string, address valueobject.Address, contact Contact, notes string) error {
	name, err := validateName(name, 60)
	if err != nil {
		return err
	}
	ie := strings.ToUpper(strings.TrimSpace(stateRegistration))
	if len(ie) > 14 {
		return shared.NewDomainError("INVALID_STATE_REGISTRATION", "State registration cannot exceed 14 characters")
	}
	c.Name = name
	c.StateRegistration = ie
	c.Address = address
	c.Contact = contact
	c.Notes = valueobject.SanitizeText(notes)
	c.MarkModified()
	c.AddDomainEvent(NewPartnerEvent(EventTypeClientUpdated, AggregateTypeClient, c.ID, c.TenantID, c.Name))
	return nil
}

func (c *Client) Activate() error {
	if c.Status == StatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Client is already active")
	}
	c.Status = StatusActive
	c.MarkModified()
	return nil
}

func (c *Client) Deactivate() error {
	if c.Status == StatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Client is already inactive")
	}
	c.Status = StatusInactive
	c.MarkModified()
	return nil
}

func (c *Client) IsActive() bool { return c.Status == StatusActive }

// TaxDocument rebuilds the validated document value
func (c *Client) TaxDocument() valueobject.TaxDocument {
	doc, _ := valueobject.NewTaxDocument(c.Document)
	return doc
}
