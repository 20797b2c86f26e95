package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// Envelope is the wire form of a domain event on the message bus
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Serializer encodes events into envelopes and decodes them back into the
// registered Go types
type Serializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewSerializer() *Serializer {
	return &Serializer{types: make(map[string]reflect.Type)}
}

// Register associates an event type name with a Go type
func (s *Serializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[eventType] = t
}

func (s *Serializer) Marshal(evt shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", evt.EventType(), err)
	}
	return json.Marshal(Envelope{
		ID:            evt.EventID(),
		Type:          evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		TenantID:      evt.TenantID(),
		OccurredAt:    evt.OccurredAt(),
		Payload:       payload,
	})
}

// Unmarshal decodes an envelope. The payload is decoded into the registered
// type; unknown types return the envelope with a nil event.
func (s *Serializer) Unmarshal(data []byte) (Envelope, shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.types[env.Type]
	s.mu.RUnlock()
	if !ok {
		return env, nil, nil
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return env, nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
	}
	evt, ok := ptr.(shared.DomainEvent)
	if !ok {
		return env, nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return env, evt, nil
}

// RegisterDomainEvents registers every event raised by the domain packages
func RegisterDomainEvents(s *Serializer) {
	for _, t := range []string{
		manifest.EventTypeManifestCreated,
		manifest.EventTypeManifestAuthorized,
		manifest.EventTypeManifestRejected,
		manifest.EventTypeManifestCancelled,
		manifest.EventTypeManifestClosed,
		manifest.EventTypeManifestDriverIncluded,
	} {
		s.Register(t, &manifest.ManifestEvent{})
	}

	for _, t := range []string{
		identity.EventTypeTenantCreated,
		identity.EventTypeTenantUpdated,
		identity.EventTypeTenantStatusChanged,
		identity.EventTypeTenantEnvironmentChanged,
	} {
		s.Register(t, &identity.TenantEvent{})
	}
	for _, t := range []string{
		identity.EventTypeUserCreated,
		identity.EventTypeUserPasswordChanged,
		identity.EventTypeUserRolesChanged,
		identity.EventTypeUserStatusChanged,
	} {
		s.Register(t, &identity.UserEvent{})
	}
	s.Register(identity.EventTypeRoleCreated, &identity.RoleEvent{})
	s.Register(identity.EventTypeRolePermissionsChanged, &identity.RoleEvent{})

	s.Register(fleet.EventTypeVehicleRegistered, &fleet.VehicleEvent{})
	s.Register(fleet.EventTypeVehicleUpdated, &fleet.VehicleEvent{})
	s.Register(fleet.EventTypeVehicleStatusChanged, &fleet.VehicleEvent{})
	s.Register(fleet.EventTypeDriverRegistered, &fleet.DriverEvent{})
	s.Register(fleet.EventTypeDriverUpdated, &fleet.DriverEvent{})
	s.Register(fleet.EventTypeMaintenanceOpened, &fleet.MaintenanceEvent{})
	s.Register(fleet.EventTypeMaintenanceCompleted, &fleet.MaintenanceEvent{})
	s.Register(fleet.EventTypeMaintenanceCancelled, &fleet.MaintenanceEvent{})
	for _, t := range []string{
		fleet.EventTypeTripPlanned,
		fleet.EventTypeTripStarted,
		fleet.EventTypeTripFinished,
		fleet.EventTypeTripCancelled,
	} {
		s.Register(t, &fleet.TripEvent{})
	}

	for _, t := range []string{
		partner.EventTypeClientRegistered,
		partner.EventTypeClientUpdated,
		partner.EventTypeInsurerRegistered,
		partner.EventTypeSupplierRegistered,
	} {
		s.Register(t, &partner.PartnerEvent{})
	}
}
