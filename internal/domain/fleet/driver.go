package fleet

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// DriverStatus represents whether a driver may be scheduled
type DriverStatus string

const (
	DriverStatusActive   DriverStatus = "active"
	DriverStatusInactive DriverStatus = "inactive"
)

var cnhCategories = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true,
	"AB": true, "AC": true, "AD": true, "AE": true,
}

// Driver is a person who can be listed as condutor on a manifest
type Driver struct {
	shared.TenantAggregateRoot
	Name         string       `gorm:"type:varchar(60);not null"`
	CPF          string       `gorm:"type:varchar(11);not null;index"`
	CNHNumber    string       `gorm:"type:varchar(11);not null"`
	CNHCategory  string       `gorm:"type:varchar(2);not null"`
	CNHExpiresAt time.Time    `gorm:"not null"`
	Phone        string       `gorm:"type:varchar(20)"`
	Status       DriverStatus `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (Driver) TableName() string {
	return "drivers"
}

// NewDriver registers an active driver
func NewDriver(tenantID uuid.UUID, name, cpf, cnhNumber, cnhCategory string, cnhExpiresAt time.Time) (*Driver, error) {
	doc, err := valueobject.NewCPF(cpf)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CPF:                 doc.String(),
		Status:              DriverStatusActive,
	}
	if err := d.apply(name, cnhNumber, cnhCategory, cnhExpiresAt, ""); err != nil {
		return nil, err
	}
	d.AddDomainEvent(NewDriverEvent(EventTypeDriverRegistered, d))
	return d, nil
}

// Update changes the driver's data; the CPF is immutable
func (d *Driver) Update(name, cnhNumber, cnhCategory string, cnhExpiresAt time.Time, phone string) error {
	if err := d.apply(name, cnhNumber, cnhCategory, cnhExpiresAt, phone); err != nil {
		return err
	}
	d.MarkModified()
	d.AddDomainEvent(NewDriverEvent(EventTypeDriverUpdated, d))
	return nil
}

func (d *Driver) apply(name, cnhNumber, cnhCategory string, cnhExpiresAt time.Time, phone string) error {
	name = valueobject.SanitizeText(name)
	if len(name) < 2 || len(name) > 60 {
		return shared.NewDomainError("INVALID_DRIVER_NAME", "Driver name must have between 2 and 60 characters")
	}
	cnh := valueobject.OnlyDigits(cnhNumber)
	if len(cnh) != 11 {
		return shared.NewDomainError("INVALID_CNH", "CNH number must have 11 digits")
	}
	category := valueobject.SanitizeUpper(cnhCategory)
	if !cnhCategories[category] {
		return shared.NewDomainError("INVALID_CNH_CATEGORY", "Invalid CNH category")
	}
	if cnhExpiresAt.IsZero() {
		return shared.NewDomainError("INVALID_CNH_EXPIRY", "CNH expiry date is required")
	}

	d.Name = name
	d.CNHNumber = cnh
	d.CNHCategory = category
	d.CNHExpiresAt = cnhExpiresAt
	d.Phone = valueobject.OnlyDigits(phone)
	return nil
}

// CNHValidAt reports whether the license is still valid on the given date
func (d *Driver) CNHValidAt(at time.Time) bool {
	return !at.After(d.CNHExpiresAt)
}

// CanDrive returns nil when the driver may be put on a manifest at the given time
func (d *Driver) CanDrive(at time.Time) error {
	if d.Status != DriverStatusActive {
		return shared.NewDomainError("DRIVER_INACTIVE", "Driver "+d.Name+" is not active")
	}
	if !d.CNHValidAt(at) {
		return shared.NewDomainError("CNH_EXPIRED", "Driver "+d.Name+" has an expired CNH")
	}
	return nil
}

func (d *Driver) Activate() error {
	if d.Status == DriverStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Driver is already active")
	}
	d.Status = DriverStatusActive
	d.MarkModified()
	return nil
}

func (d *Driver) Deactivate() error {
	if d.Status == DriverStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Driver is already inactive")
	}
	d.Status = DriverStatusInactive
	d.MarkModified()
	return nil
}

func (d *Driver) IsActive() bool { return d.Status == DriverStatusActive }
