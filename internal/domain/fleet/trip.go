package fleet

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// TripStatus represents the status of a trip
type TripStatus string

const (
	TripStatusPlanned    TripStatus = "planned"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

const (
	MaxTrailers = 3
	MaxDrivers  = 10
)

// Trip is a planned or executed journey of a vehicle combination
type Trip struct {
	shared.TenantAggregateRoot
	VehicleID        uuid.UUID   `gorm:"type:uuid;not null;index"`
	TrailerIDs       []uuid.UUID `gorm:"serializer:json;type:jsonb"`
	DriverIDs        []uuid.UUID `gorm:"serializer:json;type:jsonb"`
	OriginCode       string      `gorm:"type:varchar(7);not null"`
	OriginName       string      `gorm:"type:varchar(60);not null"`
	OriginUF         string      `gorm:"type:varchar(2);not null"`
	DestinationCode  string      `gorm:"type:varchar(7);not null"`
	DestinationName  string      `gorm:"type:varchar(60);not null"`
	DestinationUF    string      `gorm:"type:varchar(2);not null"`
	PlannedDeparture time.Time   `gorm:"not null;index"`
	StartedAt        *time.Time
	FinishedAt       *time.Time
	OdometerStart    int        `gorm:"not null;default:0"`
	OdometerEnd      int        `gorm:"not null;default:0"`
	Status           TripStatus `gorm:"type:varchar(20);not null;default:'planned'"`
	ManifestID       *uuid.UUID `gorm:"type:uuid;index"`
	Notes            string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Trip) TableName() string {
	return "trips"
}

// NewTrip plans a trip
func NewTrip(tenantID, vehicleID uuid.UUID, trailerIDs, driverIDs []uuid.UUID, origin, destination valueobject.Municipality, plannedDeparture time.Time) (*Trip, error) {
	if vehicleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VEHICLE", "Vehicle is required")
	}
	if len(trailerIDs) > MaxTrailers {
		return nil, shared.NewDomainError("TOO_MANY_TRAILERS", "A trip can have at most 3 trailers")
	}
	if len(driverIDs) == 0 || len(driverIDs) > MaxDrivers {
		return nil, shared.NewDomainError("INVALID_DRIVERS", "A trip needs between 1 and 10 drivers")
	}
	if hasDuplicates(driverIDs) || hasDuplicates(trailerIDs) {
		return nil, shared.NewDomainError("DUPLICATE_ENTRY", "Drivers and trailers cannot repeat")
	}
	if origin.IsZero() || destination.IsZero() {
		return nil, shared.NewDomainError("INVALID_ROUTE", "Origin and destination are required")
	}
	if plannedDeparture.IsZero() {
		return nil, shared.NewDomainError("INVALID_DEPARTURE", "Planned departure is required")
	}

	t := &Trip{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VehicleID:           vehicleID,
		TrailerIDs:          append([]uuid.UUID{}, trailerIDs...),
		DriverIDs:           append([]uuid.UUID{}, driverIDs...),
		OriginCode:          origin.Code(),
		OriginName:          origin.Name(),
		OriginUF:            origin.UF().String(),
		DestinationCode:     destination.Code(),
		DestinationName:     destination.Name(),
		DestinationUF:       destination.UF().String(),
		PlannedDeparture:    plannedDeparture,
		Status:              TripStatusPlanned,
	}
	t.AddDomainEvent(NewTripEvent(EventTypeTripPlanned, t))
	return t, nil
}

// SetNotes replaces the free-text notes
func (t *Trip) SetNotes(notes string) {
	t.Notes = valueobject.SanitizeText(notes)
	t.MarkModified()
}

// Start records the departure
func (t *Trip) Start(odometer int) error {
	if t.Status != TripStatusPlanned {
		return shared.NewDomainError("INVALID_STATE", "Only planned trips can be started")
	}
	if odometer < 0 {
		return shared.NewDomainError("INVALID_ODOMETER", "Odometer cannot be negative")
	}
	now := time.Now()
	t.StartedAt = &now
	t.OdometerStart = odometer
	t.Status = TripStatusInProgress
	t.MarkModified()
	t.AddDomainEvent(NewTripEvent(EventTypeTripStarted, t))
	return nil
}

// Finish records the arrival; the odometer cannot go backwards
func (t *Trip) Finish(odometer int) error {
	if t.Status != TripStatusInProgress {
		return shared.NewDomainError("INVALID_STATE", "Only trips in progress can be finished")
	}
	if odometer < t.OdometerStart {
		return shared.NewDomainError("INVALID_ODOMETER", "Final odometer is lower than the initial reading")
	}
	now := time.Now()
	t.FinishedAt = &now
	t.OdometerEnd = odometer
	t.Status = TripStatusCompleted
	t.MarkModified()
	t.AddDomainEvent(NewTripEvent(EventTypeTripFinished, t))
	return nil
}

// Cancel aborts a trip that has not finished
func (t *Trip) Cancel() error {
	if t.Status == TripStatusCompleted || t.Status == TripStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Trip is already finished")
	}
	t.Status = TripStatusCancelled
	t.MarkModified()
	t.AddDomainEvent(NewTripEvent(EventTypeTripCancelled, t))
	return nil
}

// LinkManifest attaches the MDF-e covering this trip
func (t *Trip) LinkManifest(manifestID uuid.UUID) error {
	if manifestID == uuid.Nil {
		return shared.NewDomainError("INVALID_MANIFEST", "Manifest is required")
	}
	if t.Status == TripStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cancelled trips cannot be linked")
	}
	t.ManifestID = &manifestID
	t.MarkModified()
	return nil
}

// Distance returns the driven kilometres of a completed trip
func (t *Trip) Distance() int {
	if t.Status != TripStatusCompleted {
		return 0
	}
	return t.OdometerEnd - t.OdometerStart
}

// IsOpen reports whether the trip still holds its vehicle
func (t *Trip) IsOpen() bool {
	return t.Status == TripStatusPlanned || t.Status == TripStatusInProgress
}

func hasDuplicates(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
