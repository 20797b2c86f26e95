package manifest

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CancelWindow is how long after authorization a manifest can be cancelled
const CancelWindow = 24 * time.Hour

// Manifest is the MDF-e aggregate root
type Manifest struct {
	shared.TenantAggregateRoot

	// Identification, assigned at the first transmission
	Series      int    `gorm:"not null;default:0"`
	Number      int    `gorm:"not null;default:0;index"`
	AccessKey   string `gorm:"type:varchar(44);index"`
	NumericCode string `gorm:"type:varchar(8)"`
	IssuedAt    *time.Time

	Modal        Modal                `gorm:"not null;default:1"`
	EmissionType EmissionType         `gorm:"not null;default:1"`
	EmitterType  identity.EmitterType `gorm:"not null"`
	Environment  identity.Environment `gorm:"type:varchar(20);not null"`

	StartUF         string           `gorm:"type:varchar(2);not null;index"`
	EndUF           string           `gorm:"type:varchar(2);not null;index"`
	RouteUFs        []string         `gorm:"column:route_ufs;serializer:json;type:jsonb"`
	LoadingPlaces   []Place          `gorm:"serializer:json;type:jsonb"`
	UnloadingPlaces []UnloadingPlace `gorm:"serializer:json;type:jsonb"`
	DepartureAt     *time.Time

	VehicleID    *uuid.UUID    `gorm:"type:uuid;index"`
	Vehicle      *VehicleRef   `gorm:"serializer:json;type:jsonb"`
	Trailers     []VehicleRef  `gorm:"serializer:json;type:jsonb"`
	Drivers      []DriverRef   `gorm:"serializer:json;type:jsonb"`
	Clients      []ClientRef   `gorm:"serializer:json;type:jsonb"`
	Insurance    *Insurance    `gorm:"serializer:json;type:jsonb"`
	CIOT         string        `gorm:"column:ciot;type:varchar(12)"`
	TollVouchers []TollVoucher `gorm:"serializer:json;type:jsonb"`

	NFeCount    int             `gorm:"column:nfe_count;not null;default:0"`
	CTeCount    int             `gorm:"column:cte_count;not null;default:0"`
	CargoValue  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	GrossWeight decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	WeightUnit  WeightUnit      `gorm:"type:varchar(3);not null;default:'KG'"`

	AdditionalInfo string `gorm:"type:text"`

	Status          Status `gorm:"type:varchar(20);not null;default:'draft';index"`
	SubmittedAt     *time.Time
	Protocol        string `gorm:"type:varchar(20)"`
	AuthorizedAt    *time.Time
	RejectionCode   string `gorm:"type:varchar(10)"`
	RejectionReason string `gorm:"type:varchar(255)"`

	CancelProtocol      string `gorm:"type:varchar(20)"`
	CancelJustification string `gorm:"type:varchar(255)"`
	CancelledAt         *time.Time

	ClosureProtocol string `gorm:"type:varchar(20)"`
	ClosurePlace    *Place `gorm:"serializer:json;type:jsonb"`
	ClosureDate     *time.Time
	ClosedAt        *time.Time

	XMLObjectKey string `gorm:"type:varchar(255)"`

	Events []EventRecord `gorm:"foreignKey:ManifestID"`
}

// TableName returns the table name for GORM
func (Manifest) TableName() string {
	return "manifests"
}

// NewDraft creates a draft for the given issuer. Content is validated for
// format and consistency; completeness is checked at transmission.
func NewDraft(tenantID uuid.UUID, emitterType identity.EmitterType, env identity.Environment, content Content) (*Manifest, error) {
	if !emitterType.IsValid() {
		return nil, shared.NewDomainError("INVALID_EMITTER_TYPE", "Invalid emitter type")
	}
	if !env.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENVIRONMENT", "Invalid SEFAZ environment")
	}
	m := &Manifest{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Modal:               ModalRoad,
		EmitterType:         emitterType,
		Environment:         env,
		Status:              StatusDraft,
	}
	if err := m.apply(content); err != nil {
		return nil, err
	}
	m.recordEvent(EventKindCreated, "", "", m.CreatedAt, nil)
	m.AddDomainEvent(NewManifestEvent(EventTypeManifestCreated, m))
	return m, nil
}

// UpdateDraft replaces the content of a draft or rejected manifest. A
// rejected manifest returns to draft. Once a number is assigned the start
// UF is frozen because it is part of the access key.
func (m *Manifest) UpdateDraft(content Content) error {
	if !m.Status.Editable() {
		return shared.NewDomainError("INVALID_STATE", "Only draft or rejected manifests can be edited")
	}
	if m.HasNumber() && content.StartUF.String() != m.StartUF {
		return shared.NewDomainError("START_UF_FROZEN", "Start UF cannot change after the manifest was numbered")
	}
	if err := m.apply(content); err != nil {
		return err
	}
	if m.Status == StatusRejected {
		m.Status = StatusDraft
	}
	m.MarkModified()
	return nil
}

func (m *Manifest) apply(c Content) error {
	v, err := validateContent(m.EmitterType, c)
	if err != nil {
		return err
	}
	m.EmissionType = v.EmissionType
	m.StartUF = v.StartUF
	m.EndUF = v.EndUF
	m.RouteUFs = v.RouteUFs
	m.LoadingPlaces = v.LoadingPlaces
	m.UnloadingPlaces = v.UnloadingPlaces
	m.DepartureAt = c.DepartureAt
	m.Vehicle = v.Vehicle
	m.VehicleID = nil
	if v.Vehicle != nil {
		id := v.Vehicle.VehicleID
		m.VehicleID = &id
	}
	m.Trailers = v.Trailers
	m.Drivers = v.Drivers
	m.Clients = v.Clients
	m.Insurance = v.Insurance
	m.CIOT = v.CIOT
	m.TollVouchers = v.TollVouchers
	m.CargoValue = c.CargoValue.Round(2)
	m.GrossWeight = c.GrossWeight.Round(4)
	m.WeightUnit = v.WeightUnit
	m.AdditionalInfo = v.AdditionalInfo
	m.NFeCount, m.CTeCount = countDocuments(v.UnloadingPlaces)
	return nil
}

// HasNumber reports whether series, number and access key were assigned
func (m *Manifest) HasNumber() bool {
	return m.AccessKey != ""
}

// DocumentCount is the number of linked fiscal documents
func (m *Manifest) DocumentCount() int {
	return m.NFeCount + m.CTeCount
}

// ValidateForTransmission checks that the manifest is complete enough to be
// sent. Cross-aggregate rules (tenant, vehicle and driver status) are
// checked by the caller.
func (m *Manifest) ValidateForTransmission() error {
	if !m.Status.Editable() {
		return shared.NewDomainError("INVALID_STATE", "Only draft or rejected manifests can be transmitted")
	}
	switch {
	case m.Vehicle == nil:
		return shared.NewDomainError("VEHICLE_REQUIRED", "A traction vehicle is required")
	case len(m.Drivers) == 0:
		return shared.NewDomainError("DRIVER_REQUIRED", "At least one driver is required")
	case len(m.LoadingPlaces) == 0:
		return shared.NewDomainError("LOADING_REQUIRED", "At least one loading municipality is required")
	case len(m.UnloadingPlaces) == 0:
		return shared.NewDomainError("UNLOADING_REQUIRED", "At least one unloading municipality is required")
	case m.DocumentCount() == 0:
		return shared.NewDomainError("DOCUMENT_REQUIRED", "At least one fiscal document is required")
	case !m.CargoValue.IsPositive():
		return shared.NewDomainError("INVALID_CARGO_VALUE", "Cargo value must be greater than zero")
	case !m.GrossWeight.IsPositive():
		return shared.NewDomainError("INVALID_GROSS_WEIGHT", "Gross weight must be greater than zero")
	case m.EmitterType == identity.EmitterTransportProvider && m.Insurance == nil:
		return shared.NewDomainError("INSURANCE_REQUIRED", "Insurance is required for transport providers")
	}
	for _, u := range m.UnloadingPlaces {
		if len(u.Documents) == 0 {
			return shared.NewDomainError("DOCUMENT_REQUIRED", "Unloading municipality "+u.Name+" has no documents")
		}
	}
	return nil
}

// Numbering is the identification assigned at the first transmission
type Numbering struct {
	Series      int
	Number      int
	IssuerCNPJ  string
	IssuedAt    time.Time
	NumericCode string
}

// AssignNumber sets series, number and access key. It fails if the
// manifest already has a number: retries keep the original key.
func (m *Manifest) AssignNumber(n Numbering) error {
	if m.HasNumber() {
		return shared.NewDomainError("ALREADY_NUMBERED", "Manifest already has a number")
	}
	uf, err := valueobject.ParseUF(m.StartUF)
	if err != nil {
		return err
	}
	code, err := parseNumericCode(n.NumericCode)
	if err != nil {
		return err
	}
	key, err := valueobject.NewAccessKey(valueobject.AccessKeyParts{
		UF:           uf,
		IssuedAt:     n.IssuedAt,
		IssuerCNPJ:   n.IssuerCNPJ,
		Model:        valueobject.ModelMDFe,
		Series:       n.Series,
		Number:       n.Number,
		EmissionType: int(m.EmissionType),
		Code:         code,
	})
	if err != nil {
		return err
	}
	issuedAt := n.IssuedAt
	m.Series = n.Series
	m.Number = n.Number
	m.NumericCode = n.NumericCode
	m.IssuedAt = &issuedAt
	m.AccessKey = key.String()
	m.MarkModified()
	return nil
}

// Submit moves a numbered manifest to pending while SEFAZ processes it
func (m *Manifest) Submit(at time.Time) error {
	if err := m.ValidateForTransmission(); err != nil {
		return err
	}
	if !m.HasNumber() {
		return shared.NewDomainError("NOT_NUMBERED", "Manifest must be numbered before submission")
	}
	m.Status = StatusPending
	m.SubmittedAt = &at
	m.RejectionCode = ""
	m.RejectionReason = ""
	m.recordEvent(EventKindSubmitted, "", "", at, nil)
	m.MarkModified()
	return nil
}

// Authorize records the SEFAZ authorization protocol
func (m *Manifest) Authorize(protocol string, at time.Time) error {
	if m.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending manifests can be authorized")
	}
	if strings.TrimSpace(protocol) == "" {
		return shared.NewDomainError("INVALID_PROTOCOL", "Authorization protocol is required")
	}
	m.Status = StatusAuthorized
	m.Protocol = protocol
	m.AuthorizedAt = &at
	m.recordEvent(EventKindAuthorized, EventCodeAuthorization, protocol, at, nil)
	m.MarkModified()
	m.AddDomainEvent(NewManifestEvent(EventTypeManifestAuthorized, m))
	return nil
}

// Reject records a SEFAZ rejection. Number and key are kept for the retry.
func (m *Manifest) Reject(code, reason string, at time.Time) error {
	if m.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending manifests can be rejected")
	}
	m.Status = StatusRejected
	m.RejectionCode = code
	m.RejectionReason = truncate(valueobject.SanitizeText(reason), 255)
	m.recordEvent(EventKindRejected, code, "", at, map[string]string{"reason": m.RejectionReason})
	m.MarkModified()
	m.AddDomainEvent(NewManifestEvent(EventTypeManifestRejected, m))
	return nil
}

// NormalizeJustification sanitizes a cancellation justification and checks
// its length (15 to 255 characters).
func NormalizeJustification(s string) (string, error) {
	s = valueobject.SanitizeText(s)
	if n := len([]rune(s)); n < 15 || n > 255 {
		return "", shared.NewDomainError("INVALID_JUSTIFICATION", "Justification must have between 15 and 255 characters")
	}
	return s, nil
}

// CanCancel checks that the manifest is authorized and still inside the
// cancellation window at now
func (m *Manifest) CanCancel(now time.Time) error {
	switch m.Status {
	case StatusAuthorized:
	case StatusClosed:
		return shared.NewDomainError("ALREADY_CLOSED", "A closed manifest cannot be cancelled")
	case StatusCancelled:
		return shared.NewDomainError("ALREADY_CANCELLED", "Manifest is already cancelled")
	default:
		return shared.NewDomainError("INVALID_STATE", "Only authorized manifests can be cancelled")
	}
	if m.AuthorizedAt == nil || now.Sub(*m.AuthorizedAt) > CancelWindow {
		return shared.NewDomainError("CANCEL_WINDOW_EXPIRED", "Manifests can only be cancelled within 24 hours of authorization")
	}
	return nil
}

// Cancel records the SEFAZ cancellation event
func (m *Manifest) Cancel(justification, protocol string, now time.Time) error {
	j, err := NormalizeJustification(justification)
	if err != nil {
		return err
	}
	if err := m.CanCancel(now); err != nil {
		return err
	}
	m.Status = StatusCancelled
	m.CancelJustification = j
	m.CancelProtocol = protocol
	m.CancelledAt = &now
	m.recordEvent(EventKindCancelled, EventCodeCancellation, protocol, now, map[string]string{"justification": j})
	m.MarkModified()
	m.AddDomainEvent(NewManifestEvent(EventTypeManifestCancelled, m))
	return nil
}

// CanClose checks that the manifest can be closed at the given place and date
func (m *Manifest) CanClose(place valueobject.Municipality, date time.Time, now time.Time) error {
	switch m.Status {
	case StatusAuthorized:
	case StatusClosed:
		return shared.NewDomainError("ALREADY_CLOSED", "Manifest is already closed")
	case StatusCancelled:
		return shared.NewDomainError("ALREADY_CANCELLED", "A cancelled manifest cannot be closed")
	default:
		return shared.NewDomainError("INVALID_STATE", "Only authorized manifests can be closed")
	}
	if place.IsZero() {
		return shared.NewDomainError("INVALID_MUNICIPALITY", "Closure municipality is required")
	}
	if m.AuthorizedAt != nil && dayOf(date).Before(dayOf(*m.AuthorizedAt)) {
		return shared.NewDomainError("INVALID_CLOSURE_DATE", "Closure date cannot be before the authorization date")
	}
	if dayOf(date).After(dayOf(now)) {
		return shared.NewDomainError("INVALID_CLOSURE_DATE", "Closure date cannot be in the future")
	}
	return nil
}

// Close records the SEFAZ closure (encerramento) event
func (m *Manifest) Close(place valueobject.Municipality, date time.Time, protocol string, now time.Time) error {
	if err := m.CanClose(place, date, now); err != nil {
		return err
	}
	p := PlaceOf(place)
	d := dayOf(date)
	m.Status = StatusClosed
	m.ClosurePlace = &p
	m.ClosureDate = &d
	m.ClosureProtocol = protocol
	m.ClosedAt = &now
	m.recordEvent(EventKindClosed, EventCodeClosure, protocol, now, map[string]string{"municipality": p.Code, "uf": p.UF})
	m.MarkModified()
	m.AddDomainEvent(NewManifestEvent(EventTypeManifestClosed, m))
	return nil
}

// CanIncludeDriver checks the driver can be added to the authorized manifest
func (m *Manifest) CanIncludeDriver(d DriverRef) error {
	if m.Status != StatusAuthorized {
		return shared.NewDomainError("INVALID_STATE", "Drivers can only be included in authorized manifests")
	}
	if len(m.Drivers) >= MaxDrivers {
		return shared.NewDomainError("TOO_MANY_DRIVERS", "A manifest can have at most 10 drivers")
	}
	for _, existing := range m.Drivers {
		if existing.CPF == d.CPF {
			return shared.NewDomainError("DUPLICATE_DRIVER", "Driver is already on the manifest")
		}
	}
	return nil
}

// IncludeDriver records the inclusao de condutor event
func (m *Manifest) IncludeDriver(d DriverRef, protocol string, at time.Time) error {
	d, err := normalizeDriver(d)
	if err != nil {
		return err
	}
	if err := m.CanIncludeDriver(d); err != nil {
		return err
	}
	m.Drivers = append(m.Drivers, d)
	m.recordEvent(EventKindDriverIncluded, EventCodeDriverInclusion, protocol, at, map[string]string{"cpf": d.CPF, "name": d.Name})
	m.MarkModified()
	m.AddDomainEvent(NewManifestEvent(EventTypeManifestDriverIncluded, m))
	return nil
}

// CanDelete reports whether the manifest can be removed; only drafts that
// never reached SEFAZ can
func (m *Manifest) CanDelete() error {
	if m.Status != StatusDraft || m.HasNumber() {
		return shared.NewDomainError("INVALID_STATE", "Only unnumbered drafts can be deleted")
	}
	return nil
}

// IsOpen reports whether the manifest is authorized and not closed
func (m *Manifest) IsOpen() bool {
	return m.Status == StatusAuthorized
}

// SetXMLObjectKey records where the authorized XML was archived
func (m *Manifest) SetXMLObjectKey(key string) {
	m.XMLObjectKey = key
	m.Touch()
}

// FormattedAccessKey returns the key in groups of four digits
func (m *Manifest) FormattedAccessKey() string {
	key, err := valueobject.ParseAccessKey(m.AccessKey)
	if err != nil {
		return m.AccessKey
	}
	return key.Formatted()
}

// PendingEvents returns the event records not yet persisted
func (m *Manifest) PendingEvents() []EventRecord {
	var out []EventRecord
	for _, e := range m.Events {
		if !e.persisted {
			out = append(out, e)
		}
	}
	return out
}

// MarkEventsPersisted flags every event record as stored
func (m *Manifest) MarkEventsPersisted() {
	for i := range m.Events {
		m.Events[i].persisted = true
	}
}

func (m *Manifest) recordEvent(kind EventKind, code, protocol string, at time.Time, payload map[string]string) {
	m.Events = append(m.Events, EventRecord{
		ID:         uuid.New(),
		ManifestID: m.ID,
		TenantID:   m.TenantID,
		Kind:       kind,
		Code:       code,
		Sequence:   m.nextSequence(kind),
		Protocol:   protocol,
		Payload:    payload,
		OccurredAt: at,
	})
}

func (m *Manifest) nextSequence(kind EventKind) int {
	seq := 1
	for _, e := range m.Events {
		if e.Kind == kind {
			seq++
		}
	}
	return seq
}

func countDocuments(places []UnloadingPlace) (nfe, cte int) {
	for _, p := range places {
		for _, d := range p.Documents {
			switch d.Model {
			case valueobject.ModelNFe:
				nfe++
			case valueobject.ModelCTe:
				cte++
			}
		}
	}
	return nfe, cte
}

func dayOf(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
