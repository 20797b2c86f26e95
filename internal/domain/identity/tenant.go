package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// TenantStatus represents the status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Environment is the SEFAZ environment the tenant issues in (tpAmb)
type Environment string

const (
	EnvironmentProduction   Environment = "production"
	EnvironmentHomologation Environment = "homologation"
)

// Code returns tpAmb: 1 for production, 2 for homologation
func (e Environment) Code() int {
	if e == EnvironmentProduction {
		return 1
	}
	return 2
}

func (e Environment) IsValid() bool {
	return e == EnvironmentProduction || e == EnvironmentHomologation
}

// EmitterType is tpEmit: who issues the manifest
type EmitterType int

const (
	// EmitterTransportProvider lists CT-e documents
	EmitterTransportProvider EmitterType = 1
	// EmitterOwnCargo lists NF-e documents
	EmitterOwnCargo EmitterType = 2
)

func (t EmitterType) IsValid() bool {
	return t == EmitterTransportProvider || t == EmitterOwnCargo
}

// MaxManifestNumber is the largest nMDF that fits the access key
const MaxManifestNumber = 999999999

var (
	tenantCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_\-]{1,49}$`)
	rntrcPattern      = regexp.MustCompile(`^[0-9]{8}$`)
)

// Tenant is a transport company issuing manifests (the emitente).
// Every other aggregate is scoped by the tenant's ID.
type Tenant struct {
	shared.BaseAggregateRoot
	Code                 string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	CNPJ                 string              `gorm:"type:varchar(14);not null;uniqueIndex"`
	StateRegistration    string              `gorm:"type:varchar(14);not null"`
	LegalName            string              `gorm:"type:varchar(60);not null"`
	TradeName            string              `gorm:"type:varchar(60)"`
	Address              valueobject.Address `gorm:"type:jsonb"`
	UF                   string              `gorm:"type:varchar(2);not null"`
	Phone                string              `gorm:"type:varchar(20)"`
	Email                string              `gorm:"type:varchar(200)"`
	RNTRC                string              `gorm:"type:varchar(8)"`
	EmitterType          EmitterType         `gorm:"not null;default:1"`
	Environment          Environment         `gorm:"type:varchar(20);not null;default:'homologation'"`
	Series               int                 `gorm:"not null;default:1"`
	LastNumber           int                 `gorm:"not null;default:0"`
	Status               TenantStatus        `gorm:"type:varchar(20);not null;default:'active'"`
	CertificateKey       string              `gorm:"type:varchar(500)"`
	CertificateExpiresAt *time.Time
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates an active tenant issuing in homologation, series 1
func NewTenant(code, cnpj, stateRegistration, legalName string, address valueobject.Address) (*Tenant, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !tenantCodePattern.MatchString(code) {
		return nil, shared.NewDomainError("INVALID_TENANT_CODE", "Tenant code must be 2-50 chars of A-Z, 0-9, underscore or hyphen")
	}
	doc, err := valueobject.NewCNPJ(cnpj)
	if err != nil {
		return nil, err
	}
	ie, err := normalizeStateRegistration(stateRegistration)
	if err != nil {
		return nil, err
	}
	legalName = valueobject.SanitizeText(legalName)
	if legalName == "" || len(legalName) > 60 {
		return nil, shared.NewDomainError("INVALID_LEGAL_NAME", "Legal name is required and cannot exceed 60 characters")
	}
	if address.IsZero() {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Address is required")
	}

	t := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		CNPJ:              doc.String(),
		StateRegistration: ie,
		LegalName:         legalName,
		Address:           address,
		UF:                address.Municipality().UF().String(),
		EmitterType:       EmitterTransportProvider,
		Environment:       EnvironmentHomologation,
		Series:            1,
		Status:            TenantStatusActive,
	}
	t.AddDomainEvent(NewTenantEvent(EventTypeTenantCreated, t))
	return t, nil
}

// Update changes the registration data of the company
func (t *Tenant) Update(legalName, tradeName, stateRegistration, phone, email string, address valueobject.Address) error {
	legalName = valueobject.SanitizeText(legalName)
	tradeName = valueobject.SanitizeText(tradeName)
	if legalName == "" || len(legalName) > 60 {
		return shared.NewDomainError("INVALID_LEGAL_NAME", "Legal name is required and cannot exceed 60 characters")
	}
	if len(tradeName) > 60 {
		return shared.NewDomainError("INVALID_TRADE_NAME", "Trade name cannot exceed 60 characters")
	}
	ie, err := normalizeStateRegistration(stateRegistration)
	if err != nil {
		return err
	}
	if address.IsZero() {
		return shared.NewDomainError("INVALID_ADDRESS", "Address is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" && !emailPattern.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}

	t.LegalName = legalName
	t.TradeName = tradeName
	t.StateRegistration = ie
	t.Phone = valueobject.OnlyDigits(phone)
	t.Email = email
	t.Address = address
	t.UF = address.Municipality().UF().String()
	t.MarkModified()
	t.AddDomainEvent(NewTenantEvent(EventTypeTenantUpdated, t))
	return nil
}

// SetRNTRC sets the ANTT carrier registration (8 digits); empty clears it
func (t *Tenant) SetRNTRC(rntrc string) error {
	rntrc = valueobject.OnlyDigits(rntrc)
	if rntrc != "" && !rntrcPattern.MatchString(rntrc) {
		return shared.NewDomainError("INVALID_RNTRC", "RNTRC must have 8 digits")
	}
	t.RNTRC = rntrc
	t.MarkModified()
	return nil
}

// SetEmitterType switches between transport provider and own cargo.
// A transport provider must have an RNTRC.
func (t *Tenant) SetEmitterType(emitterType EmitterType) error {
	if !emitterType.IsValid() {
		return shared.NewDomainError("INVALID_EMITTER_TYPE", "Emitter type must be 1 (transport provider) or 2 (own cargo)")
	}
	t.EmitterType = emitterType
	t.MarkModified()
	return nil
}

// SetEnvironment selects production or homologation
func (t *Tenant) SetEnvironment(env Environment) error {
	if !env.IsValid() {
		return shared.NewDomainError("INVALID_ENVIRONMENT", "Environment must be production or homologation")
	}
	t.Environment = env
	t.MarkModified()
	t.AddDomainEvent(NewTenantEvent(EventTypeTenantEnvironmentChanged, t))
	return nil
}

// SetSeries changes the manifest series. Numbering restarts unless
// lastNumber is given, so an existing series can be continued.
func (t *Tenant) SetSeries(series, lastNumber int) error {
	if series < 0 || series > 999 {
		return shared.NewDomainError("INVALID_SERIES", "Series must be between 0 and 999")
	}
	if lastNumber < 0 || lastNumber >= MaxManifestNumber {
		return shared.NewDomainError("INVALID_NUMBER", "Last number is out of range")
	}
	t.Series = series
	t.LastNumber = lastNumber
	t.MarkModified()
	return nil
}

// NextNumber advances the manifest counter and returns the new number.
// Callers must hold a row lock on the tenant while doing this.
func (t *Tenant) NextNumber() (int, error) {
	if t.LastNumber >= MaxManifestNumber {
		return 0, shared.NewDomainError("NUMBER_EXHAUSTED", "Manifest numbering exhausted for this series")
	}
	t.LastNumber++
	t.MarkModified()
	return t.LastNumber, nil
}

// RegisterCertificate records where the A1 certificate is stored and when it expires
func (t *Tenant) RegisterCertificate(objectKey string, expiresAt time.Time) error {
	if strings.TrimSpace(objectKey) == "" {
		return shared.NewDomainError("INVALID_CERTIFICATE", "Certificate location is required")
	}
	if !expiresAt.After(time.Now()) {
		return shared.NewDomainError("CERTIFICATE_EXPIRED", "Certificate is already expired")
	}
	t.CertificateKey = objectKey
	t.CertificateExpiresAt = &expiresAt
	t.MarkModified()
	return nil
}

// CertificateExpiresWithin reports whether the certificate expires before now+d
func (t *Tenant) CertificateExpiresWithin(now time.Time, d time.Duration) bool {
	return t.CertificateExpiresAt != nil && t.CertificateExpiresAt.Before(now.Add(d))
}

func (t *Tenant) Activate() error {
	if t.Status == TenantStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Tenant is already active")
	}
	t.Status = TenantStatusActive
	t.MarkModified()
	t.AddDomainEvent(NewTenantEvent(EventTypeTenantStatusChanged, t))
	return nil
}

func (t *Tenant) Suspend() error {
	if t.Status == TenantStatusSuspended {
		return shared.NewDomainError("ALREADY_SUSPENDED", "Tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.MarkModified()
	t.AddDomainEvent(NewTenantEvent(EventTypeTenantStatusChanged, t))
	return nil
}

func (t *Tenant) Deactivate() error {
	if t.Status == TenantStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Tenant is already inactive")
	}
	t.Status = TenantStatusInactive
	t.MarkModified()
	t.AddDomainEvent(NewTenantEvent(EventTypeTenantStatusChanged, t))
	return nil
}

func (t *Tenant) IsActive() bool { return t.Status == TenantStatusActive }

// CanIssue returns nil when the tenant is allowed to transmit manifests
func (t *Tenant) CanIssue() error {
	if !t.IsActive() {
		return shared.NewDomainError("TENANT_NOT_ACTIVE", "Tenant is not active")
	}
	if t.EmitterType == EmitterTransportProvider && t.RNTRC == "" {
		return shared.NewDomainError("RNTRC_REQUIRED", "A transport provider must have an RNTRC")
	}
	return nil
}

// normalizeStateRegistration accepts digits or the literal ISENTO
func normalizeStateRegistration(ie string) (string, error) {
	ie = strings.ToUpper(strings.TrimSpace(ie))
	if ie == "ISENTO" {
		return ie, nil
	}
	digits := valueobject.OnlyDigits(ie)
	if len(digits) < 2 || len(digits) > 14 {
		return "", shared.NewDomainError("INVALID_STATE_REGISTRATION", "State registration must have 2 to 14 digits or be ISENTO")
	}
	return digits, nil
}
