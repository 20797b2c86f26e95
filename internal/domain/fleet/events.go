package fleet

import (
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

const (
	AggregateTypeVehicle     = "Vehicle"
	AggregateTypeDriver      = "Driver"
	AggregateTypeMaintenance = "MaintenanceOrder"
	AggregateTypeTrip        = "Trip"
)

const (
	EventTypeVehicleRegistered    = "VehicleRegistered"
	EventTypeVehicleUpdated       = "VehicleUpdated"
	EventTypeVehicleStatusChanged = "VehicleStatusChanged"

	EventTypeDriverRegistered = "DriverRegistered"
	EventTypeDriverUpdated    = "DriverUpdated"

	EventTypeMaintenanceOpened    = "MaintenanceOpened"
	EventTypeMaintenanceCompleted = "MaintenanceCompleted"
	EventTypeMaintenanceCancelled = "MaintenanceCancelled"

	EventTypeTripPlanned   = "TripPlanned"
	EventTypeTripStarted   = "TripStarted"
	EventTypeTripFinished  = "TripFinished"
	EventTypeTripCancelled = "TripCancelled"
)

// VehicleEvent is raised on vehicle registration and status changes
type VehicleEvent struct {
	shared.BaseDomainEvent
	Plate  string        `json:"plate"`
	Kind   VehicleKind   `json:"kind"`
	Status VehicleStatus `json:"status"`
}

func NewVehicleEvent(eventType string, v *Vehicle) *VehicleEvent {
	return &VehicleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeVehicle, v.ID, v.TenantID),
		Plate:           v.Plate,
		Kind:            v.Kind,
		Status:          v.Status,
	}
}

// DriverEvent is raised when a driver is registered or changed
type DriverEvent struct {
	shared.BaseDomainEvent
	CPF  string `json:"cpf"`
	Name string `json:"name"`
}

func NewDriverEvent(eventType string, d *Driver) *DriverEvent {
	return &DriverEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeDriver, d.ID, d.TenantID),
		CPF:             d.CPF,
		Name:            d.Name,
	}
}

// MaintenanceEvent is raised when an order opens or finishes
type MaintenanceEvent struct {
	shared.BaseDomainEvent
	VehicleID uuid.UUID         `json:"vehicle_id"`
	Status    MaintenanceStatus `json:"status"`
	Cost      string            `json:"cost"`
}

func NewMaintenanceEvent(eventType string, o *MaintenanceOrder) *MaintenanceEvent {
	return &MaintenanceEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeMaintenance, o.ID, o.TenantID),
		VehicleID:       o.VehicleID,
		Status:          o.Status,
		Cost:            o.Cost.StringFixed(2),
	}
}

// TripEvent is raised on trip status changes
type TripEvent struct {
	shared.BaseDomainEvent
	VehicleID uuid.UUID  `json:"vehicle_id"`
	Status    TripStatus `json:"status"`
}

func NewTripEvent(eventType string, t *Trip) *TripEvent {
	return &TripEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeTrip, t.ID, t.TenantID),
		VehicleID:       t.VehicleID,
		Status:          t.Status,
	}
}
