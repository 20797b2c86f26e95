package fleet

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// MaintenanceKind is preventive or corrective
type MaintenanceKind string

const (
	MaintenanceKindPreventive MaintenanceKind = "preventive"
	MaintenanceKindCorrective MaintenanceKind = "corrective"
)

// MaintenanceStatus represents the status of a maintenance order
type MaintenanceStatus string

const (
	MaintenanceStatusOpen       MaintenanceStatus = "open"
	MaintenanceStatusInProgress MaintenanceStatus = "in_progress"
	MaintenanceStatusCompleted  MaintenanceStatus = "completed"
	MaintenanceStatusCancelled  MaintenanceStatus = "cancelled"
)

// MaintenanceOrder tracks a service performed on a vehicle.
// While an order is open the vehicle is kept in maintenance status.
type MaintenanceOrder struct {
	shared.TenantAggregateRoot
	VehicleID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	SupplierID   *uuid.UUID        `gorm:"type:uuid;index"`
	Kind         MaintenanceKind   `gorm:"type:varchar(20);not null"`
	Description  string            `gorm:"type:text;not null"`
	ScheduledFor *time.Time        `gorm:"index"`
	OpenedAt     time.Time         `gorm:"not null"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Odometer     int               `gorm:"not null;default:0"`
	Cost         decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	Status       MaintenanceStatus `gorm:"type:varchar(20);not null;default:'open'"`
	CancelReason string            `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (MaintenanceOrder) TableName() string {
	return "maintenance_orders"
}

// NewMaintenanceOrder opens an order for a vehicle
func NewMaintenanceOrder(tenantID, vehicleID uuid.UUID, kind MaintenanceKind, description string, scheduledFor *time.Time) (*MaintenanceOrder, error) {
	if vehicleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VEHICLE", "Vehicle is required")
	}
	if kind != MaintenanceKindPreventive && kind != MaintenanceKindCorrective {
		return nil, shared.NewDomainError("INVALID_MAINTENANCE_KIND", "Kind must be preventive or corrective")
	}
	description = valueobject.SanitizeText(description)
	if description == "" || len(description) > 2000 {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Description is required and cannot exceed 2000 characters")
	}
	o := &MaintenanceOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VehicleID:           vehicleID,
		Kind:                kind,
		Description:         description,
		ScheduledFor:        scheduledFor,
		OpenedAt:            time.Now(),
		Cost:                decimal.Zero,
		Status:              MaintenanceStatusOpen,
	}
	o.AddDomainEvent(NewMaintenanceEvent(EventTypeMaintenanceOpened, o))
	return o, nil
}

// SetSupplier assigns the workshop; nil clears it
func (o *MaintenanceOrder) SetSupplier(supplierID *uuid.UUID) error {
	if !o.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Only open orders can be changed")
	}
	o.SupplierID = supplierID
	o.MarkModified()
	return nil
}

// Start moves the order to in_progress
func (o *MaintenanceOrder) Start() error {
	if o.Status != MaintenanceStatusOpen {
		return shared.NewDomainError("INVALID_STATE", "Only open orders can be started")
	}
	now := time.Now()
	o.StartedAt = &now
	o.Status = MaintenanceStatusInProgress
	o.MarkModified()
	return nil
}

// Complete closes the order with the final cost and odometer reading
func (o *MaintenanceOrder) Complete(cost decimal.Decimal, odometer int) error {
	if !o.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Order is already finished")
	}
	if cost.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Cost cannot be negative")
	}
	if odometer < 0 {
		return shared.NewDomainError("INVALID_ODOMETER", "Odometer cannot be negative")
	}
	now := time.Now()
	if o.StartedAt == nil {
		o.StartedAt = &now
	}
	o.CompletedAt = &now
	o.Cost = cost.Round(2)
	o.Odometer = odometer
	o.Status = MaintenanceStatusCompleted
	o.MarkModified()
	o.AddDomainEvent(NewMaintenanceEvent(EventTypeMaintenanceCompleted, o))
	return nil
}

// Cancel aborts the order
func (o *MaintenanceOrder) Cancel(reason string) error {
	if !o.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Order is already finished")
	}
	reason = valueobject.SanitizeText(reason)
	if reason == "" || len(reason) > 255 {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required and cannot exceed 255 characters")
	}
	o.CancelReason = reason
	o.Status = MaintenanceStatusCancelled
	o.MarkModified()
	o.AddDomainEvent(NewMaintenanceEvent(EventTypeMaintenanceCancelled, o))
	return nil
}

// IsOpen reports whether the order still holds the vehicle
func (o *MaintenanceOrder) IsOpen() bool {
	return o.Status == MaintenanceStatusOpen || o.Status == MaintenanceStatusInProgress
}
