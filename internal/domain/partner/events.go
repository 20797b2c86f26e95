package partner

import (
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

const (
	AggregateTypeClient   = "Client"
	AggregateTypeInsurer  = "Insurer"
	AggregateTypeSupplier = "Supplier"
)

const (
	EventTypeClientRegistered   = "ClientRegistered"
	EventTypeClientUpdated      = "ClientUpdated"
	EventTypeInsurerRegistered  = "InsurerRegistered"
	EventTypeSupplierRegistered = "SupplierRegistered"
)

// PartnerEvent is raised when a partner is registered or changed
type PartnerEvent struct {
	shared.BaseDomainEvent
	Name string `json:"name"`
}

func NewPartnerEvent(eventType, aggregateType string, id, tenantID uuid.UUID, name string) *PartnerEvent {
	return &PartnerEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggregateType, id, tenantID),
		Name:            name,
	}
}
