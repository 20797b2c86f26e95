package partner

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// Insurer is a cargo insurance company (seguradora) with the tenant's policy
type Insurer struct {
	shared.TenantAggregateRoot
	Name          string     `gorm:"type:varchar(30);not null"`
	CNPJ          string     `gorm:"type:varchar(14);not null;index"`
	PolicyNumber  string     `gorm:"type:varchar(20)"`
	PolicyStartAt *time.Time
	PolicyEndAt   *time.Time
	Contact       Contact    `gorm:"embedded"`
	Status        Status     `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (Insurer) TableName() string {
	return "insurers"
}

// NewInsurer registers an active insurer. The name is limited to 30
// characters, the size of xSeg.
func NewInsurer(tenantID uuid.UUID, name, cnpj string) (*Insurer, error) {
	name, err := validateName(name, 30)
	if err != nil {
		return nil, err
	}
	doc, err := valueobject.NewCNPJ(cnpj)
	if err != nil {
		return nil, err
	}
	i := &Insurer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		CNPJ:                doc.String(),
		Status:              StatusActive,
	}
	i.AddDomainEvent(NewPartnerEvent(EventTypeInsurerRegistered, AggregateTypeInsurer, i.ID, i.TenantID, i.Name))
	return i, nil
}

// Update changes the insurer name and contact
func (i *Insurer) Update(name string, contact Contact) error {
	name, err := validateName(name, 30)
	if err != nil {
		return err
	}
	i.Name = name
	i.Contact = contact
	i.MarkModified()
	return nil
}

// SetPolicy records the policy number and its validity window
func (i *Insurer) SetPolicy(number string, startAt, endAt time.Time) error {
	number = valueobject.SanitizeUpper(number)
	if number == "" || len(number) > 20 {
		return shared.NewDomainError("INVALID_POLICY", "Policy number is required and cannot exceed 20 characters")
	}
	if !endAt.After(startAt) {
		return shared.NewDomainError("INVALID_POLICY_PERIOD", "Policy end must be after its start")
	}
	i.PolicyNumber = number
	i.PolicyStartAt = &startAt
	i.PolicyEndAt = &endAt
	i.MarkModified()
	return nil
}

// PolicyValidAt reports whether the policy covers the given instant
func (i *Insurer) PolicyValidAt(at time.Time) bool {
	if i.PolicyNumber == "" || i.PolicyStartAt == nil || i.PolicyEndAt == nil {
		return false
	}
	return !at.Before(*i.PolicyStartAt) && !at.After(*i.PolicyEndAt)
}

func (i *Insurer) Activate() error {
	if i.Status == StatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Insurer is already active")
	}
	i.Status = StatusActive
	i.MarkModified()
	return nil
}

func (i *Insurer) Deactivate() error {
	if i.Status == StatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Insurer is already inactive")
	}
	i.Status = StatusInactive
	i.MarkModified()
	return nil
}

func (i *Insurer) IsActive() bool { return i.Status == StatusActive }
