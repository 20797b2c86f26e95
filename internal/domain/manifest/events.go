package manifest

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// AggregateTypeManifest is the aggregate type name used in events
const AggregateTypeManifest = "Manifest"

const (
	EventTypeManifestCreated        = "ManifestCreated"
	EventTypeManifestAuthorized     = "ManifestAuthorized"
	EventTypeManifestRejected       = "ManifestRejected"
	EventTypeManifestCancelled      = "ManifestCancelled"
	EventTypeManifestClosed         = "ManifestClosed"
	EventTypeManifestDriverIncluded = "ManifestDriverIncluded"
)

// EventKind is the kind of a lifecycle event record
type EventKind string

const (
	EventKindCreated        EventKind = "created"
	EventKindSubmitted      EventKind = "submitted"
	EventKindAuthorized     EventKind = "authorized"
	EventKindRejected       EventKind = "rejected"
	EventKindCancelled      EventKind = "cancelled"
	EventKindClosed         EventKind = "closed"
	EventKindDriverIncluded EventKind = "driver_included"
)

// SEFAZ event type codes (tpEvento)
const (
	EventCodeAuthorization   = "100"
	EventCodeCancellation    = "110111"
	EventCodeClosure         = "110112"
	EventCodeDriverInclusion = "110114"
)

// EventRecord is one entry of the manifest history
type EventRecord struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ManifestID uuid.UUID         `gorm:"type:uuid;not null;index" json:"manifest_id"`
	TenantID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Kind       EventKind         `gorm:"type:varchar(30);not null" json:"kind"`
	Code       string            `gorm:"type:varchar(10)" json:"code,omitempty"`
	Sequence   int               `gorm:"not null;default:1" json:"sequence"`
	Protocol   string            `gorm:"type:varchar(20)" json:"protocol,omitempty"`
	Payload    map[string]string `gorm:"serializer:json;type:jsonb" json:"payload,omitempty"`
	OccurredAt time.Time         `gorm:"not null" json:"occurred_at"`

	persisted bool
}

// TableName returns the table name for GORM
func (EventRecord) TableName() string {
	return "manifest_events"
}

// ManifestEvent is the domain event raised on lifecycle transitions
type ManifestEvent struct {
	shared.BaseDomainEvent
	Series      int    `json:"series"`
	Number      int    `json:"number"`
	AccessKey   string `json:"access_key,omitempty"`
	Status      Status `json:"status"`
	Protocol    string `json:"protocol,omitempty"`
	StartUF     string `json:"start_uf"`
	EndUF       string `json:"end_uf"`
	Environment string `json:"environment"`
}

// NewManifestEvent captures the manifest state for an event
func NewManifestEvent(eventType string, m *Manifest) *ManifestEvent {
	return &ManifestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeManifest, m.ID, m.TenantID),
		Series:          m.Series,
		Number:          m.Number,
		AccessKey:       m.AccessKey,
		Status:          m.Status,
		Protocol:        m.Protocol,
		StartUF:         m.StartUF,
		EndUF:           m.EndUF,
		Environment:     string(m.Environment),
	}
}
