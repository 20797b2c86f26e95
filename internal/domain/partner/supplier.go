package partner

import (
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// SupplierCategory classifies what a supplier provides to the fleet
type SupplierCategory string

const (
	SupplierCategoryParts    SupplierCategory = "parts"
	SupplierCategoryTires    SupplierCategory = "tires"
	SupplierCategoryFuel     SupplierCategory = "fuel"
	SupplierCategoryServices SupplierCategory = "services"
	SupplierCategoryOther    SupplierCategory = "other"
)

func (c SupplierCategory) IsValid() bool {
	switch c {
	case SupplierCategoryParts, SupplierCategoryTires, SupplierCategoryFuel, SupplierCategoryServices, SupplierCategoryOther:
		return true
	}
	return false
}

// Supplier is a workshop, parts dealer or fuel station used by the fleet
type Supplier struct {
	shared.TenantAggregateRoot
	Name     string              `gorm:"type:varchar(100);not null"`
	Document string              `gorm:"type:varchar(14);not null;index"`
	Category SupplierCategory    `gorm:"type:varchar(20);not null;default:'other'"`
	Address  valueobject.Address `gorm:"type:jsonb"`
	Contact  Contact             `gorm:"embedded"`
	Status   Status              `gorm:"type:varchar(20);not null;default:'active'"`
	Notes    string              `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Supplier) TableName() string {
	return "suppliers"
}

// NewSupplier registers an active supplier
func NewSupplier(tenantID uuid.UUID, name, document string, category SupplierCategory) (*Supplier, error) {
	name, err := validateName(name, 100)
	if err != nil {
		return nil, err
	}
	doc, err := valueobject.NewTaxDocument(document)
	if err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Invalid supplier category")
	}
	s := &Supplier{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Document:            doc.String(),
		Category:            category,
		Status:              StatusActive,
	}
	s.AddDomainEvent(NewPartnerEvent(EventTypeSupplierRegistered, AggregateTypeSupplier, s.ID, s.TenantID, s.Name))
	return s, nil
}

// Update changes the supplier's data; the document is immutable
func (s *Supplier) Update(name string, category SupplierCategory, address valueobject.Address, contact Contact, notes string) error {
	name, err := validateName(name, 100)
	if err != nil {
		return err
	}
	if !category.IsValid() {
		return shared.NewDomainError("INVALID_CATEGORY", "Invalid supplier category")
	}
	s.Name = name
	s.Category = category
	s.Address = address
	s.Contact = contact
	s.Notes = valueobject.SanitizeText(notes)
	s.MarkModified()
	return nil
}

func (s *Supplier) Activate() error {
	if s.Status == StatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Supplier is already active")
	}
	s.Status = StatusActive
	s.MarkModified()
	return nil
}

func (s *Supplier) Deactivate() error {
	if s.Status == StatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Supplier is already inactive")
	}
	s.Status = StatusInactive
	s.MarkModified()
	return nil
}

func (s *Supplier) IsActive() bool { return s.Status == StatusActive }
