package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ObjectWriter stores binary objects, implemented by the S3 storage
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// TenantService manages the issuing company of each tenant and its
// MDF-e configuration (environment, series, certificate)
type TenantService struct {
	tenantRepo identity.TenantRepository
	roles      *RoleService
	users      *UserService
	objects    ObjectWriter
	publisher  shared.EventPublisher
	logger     *zap.Logger
}

// NewTenantService creates a new tenant service. objects may be nil when
// certificate upload is not available.
func NewTenantService(
	tenantRepo identity.TenantRepository,
	roles *RoleService,
	users *UserService,
	objects ObjectWriter,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		roles:      roles,
		users:      users,
		objects:    objects,
		publisher:  publisher,
		logger:     logger,
	}
}

// CreateTenantInput contains input for creating a tenant
type CreateTenantInput struct {
	Code              string
	CNPJ              string
	StateRegistration string
	LegalName         string
	TradeName         string
	Address           common.AddressInput
	Phone             string
	Email             string
	RNTRC             string
	EmitterType       int
	Environment       string
	Series            int
}

// ProvisionInput creates a tenant with its default roles and a first
// administrator
type ProvisionInput struct {
	Tenant        CreateTenantInput
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// UpdateTenantInput contains the registration data of the company
type UpdateTenantInput struct {
	ID                uuid.UUID
	LegalName         string
	TradeName         string
	StateRegistration string
	Address           common.AddressInput
	Phone             string
	Email             string
}

// FiscalSettingsInput changes how the tenant issues manifests; nil fields are kept
type FiscalSettingsInput struct {
	ID          uuid.UUID
	RNTRC       *string
	EmitterType *int
	Environment *string
	Series      *int
	LastNumber  *int
}

// CertificateInput is an uploaded A1 certificate
type CertificateInput struct {
	TenantID  uuid.UUID
	Data      []byte
	ExpiresAt time.Time
}

// TenantDTO represents tenant data transfer object
type TenantDTO struct {
	ID                   uuid.UUID          `json:"id"`
	Code                 string             `json:"code"`
	CNPJ                 string             `json:"cnpj"`
	StateRegistration    string             `json:"state_registration"`
	LegalName            string             `json:"legal_name"`
	TradeName            string             `json:"trade_name,omitempty"`
	Address              *common.AddressDTO `json:"address,omitempty"`
	Phone                string             `json:"phone,omitempty"`
	Email                string             `json:"email,omitempty"`
	RNTRC                string             `json:"rntrc,omitempty"`
	EmitterType          int                `json:"emitter_type"`
	Environment          string             `json:"environment"`
	Series               int                `json:"series"`
	LastNumber           int                `json:"last_number"`
	Status               string             `json:"status"`
	HasCertificate       bool               `json:"has_certificate"`
	CertificateExpiresAt *time.Time         `json:"certificate_expires_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// ProvisionResult is the outcome of Provision
type ProvisionResult struct {
	Tenant *TenantDTO
	Admin  *UserDTO
	Roles  []RoleDTO
}

// Create registers a new issuing company
func (s *TenantService) Create(ctx context.Context, input CreateTenantInput) (*TenantDTO, error) {
	s.logger.Info("Creating new tenant",
		zap.String("code", input.Code),
		zap.String("cnpj", input.CNPJ))

	tenant, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		s.logger.Error("Failed to save tenant", zap.Error(err))
		return nil, err
	}
	s.publish(ctx, tenant)

	s.logger.Info("Tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("code", tenant.Code))
	return toTenantDTO(tenant), nil
}

// Provision creates the tenant, its ADMIN/OPERATOR/VIEWER roles and an
// administrator holding the ADMIN role
func (s *TenantService) Provision(ctx context.Context, input ProvisionInput) (*ProvisionResult, error) {
	dto, err := s.Create(ctx, input.Tenant)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.EnsureDefaultRoles(ctx, dto.ID)
	if err != nil {
		return nil, err
	}

	var adminRole uuid.UUID
	roleDTOs := make([]RoleDTO, 0, len(roles))
	for _, r := range roles {
		if r.Code == identity.RoleCodeAdmin {
			adminRole = r.ID
		}
		roleDTOs = append(roleDTOs, *toRoleDTO(r, 0))
	}

	admin, err := s.users.Create(ctx, CreateUserInput{
		TenantID:    dto.ID,
		Username:    input.AdminUsername,
		Password:    input.AdminPassword,
		Email:       input.AdminEmail,
		DisplayName: "Administrador",
		RoleIDs:     []uuid.UUID{adminRole},
	})
	if err != nil {
		return nil, err
	}
	return &ProvisionResult{Tenant: dto, Admin: admin, Roles: roleDTOs}, nil
}

// GetByID returns a tenant
func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTenantDTO(tenant), nil
}

// GetByCode returns a tenant by its code
func (s *TenantService) GetByCode(ctx context.Context, code string) (*TenantDTO, error) {
	tenant, err := s.tenantRepo.FindByCode(ctx, code)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")
		}
		return nil, err
	}
	return toTenantDTO(tenant), nil
}

// List returns a page of tenants
func (s *TenantService) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[TenantDTO], error) {
	filter = filter.Normalize()
	tenants, total, err := s.tenantRepo.FindAll(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list tenants", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list tenants")
	}
	items := make([]TenantDTO, 0, len(tenants))
	for i := range tenants {
		items = append(items, *toTenantDTO(&tenants[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update changes the registration data of the company
func (s *TenantService) Update(ctx context.Context, input UpdateTenantInput) (*TenantDTO, error) {
	address, err := input.Address.ToAddress()
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, input.ID, func(t *identity.Tenant) error {
		return t.Update(input.LegalName, input.TradeName, input.StateRegistration, input.Phone, input.Email, address)
	})
}

// UpdateFiscalSettings changes RNTRC, emitter type, environment and series
func (s *TenantService) UpdateFiscalSettings(ctx context.Context, input FiscalSettingsInput) (*TenantDTO, error) {
	return s.mutate(ctx, input.ID, func(t *identity.Tenant) error {
		if input.RNTRC != nil {
			if err := t.SetRNTRC(*input.RNTRC); err != nil {
				return err
			}
		}
		if input.EmitterType != nil {
			if err := t.SetEmitterType(identity.EmitterType(*input.EmitterType)); err != nil {
				return err
			}
		}
		if input.Environment != nil && identity.Environment(*input.Environment) != t.Environment {
			if err := t.SetEnvironment(identity.Environment(*input.Environment)); err != nil {
				return err
			}
		}
		if input.Series != nil {
			last := 0
			if input.LastNumber != nil {
				last = *input.LastNumber
			} else if *input.Series == t.Series {
				last = t.LastNumber
			}
			if err := t.SetSeries(*input.Series, last); err != nil {
				return err
			}
		}
		return nil
	})
}

// RegisterCertificate stores an uploaded A1 certificate and records its expiry
func (s *TenantService) RegisterCertificate(ctx context.Context, input CertificateInput) (*TenantDTO, error) {
	if s.objects == nil {
		return nil, shared.NewDomainError("STORAGE_UNAVAILABLE", "Certificate storage is not configured")
	}
	if len(input.Data) == 0 {
		return nil, shared.NewDomainError("INVALID_CERTIFICATE", "Certificate file is empty")
	}
	tenant, err := s.load(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(input.Data)
	key := tenant.ID.String() + "/certificates/" + hex.EncodeToString(sum[:8]) + ".pfx"
	if err := tenant.RegisterCertificate(key, input.ExpiresAt); err != nil {
		return nil, err
	}
	if err := s.objects.Put(ctx, key, input.Data, "application/x-pkcs12"); err != nil {
		s.logger.Error("Failed to store certificate", zap.Error(err))
		return nil, shared.NewDomainError("STORAGE_ERROR", "Failed to store certificate")
	}
	return s.save(ctx, tenant)
}

// Activate re-enables a suspended or inactive tenant
func (s *TenantService) Activate(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	return s.mutate(ctx, id, (*identity.Tenant).Activate)
}

// Suspend blocks manifest issuing for the tenant
func (s *TenantService) Suspend(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	return s.mutate(ctx, id, (*identity.Tenant).Suspend)
}

// Deactivate blocks the tenant entirely, including login
func (s *TenantService) Deactivate(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	return s.mutate(ctx, id, (*identity.Tenant).Deactivate)
}

func (s *TenantService) build(ctx context.Context, input CreateTenantInput) (*identity.Tenant, error) {
	address, err := input.Address.ToAddress()
	if err != nil {
		return nil, err
	}
	tenant, err := identity.NewTenant(input.Code, input.CNPJ, input.StateRegistration, input.LegalName, address)
	if err != nil {
		return nil, err
	}

	exists, err := s.tenantRepo.ExistsByCode(ctx, tenant.Code)
	if err != nil {
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check tenant code availability")
	}
	if exists {
		return nil, shared.NewDomainError("TENANT_CODE_EXISTS", "Tenant code already exists")
	}
	exists, err = s.tenantRepo.ExistsByCNPJ(ctx, tenant.CNPJ)
	if err != nil {
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check CNPJ availability")
	}
	if exists {
		return nil, shared.NewDomainError("CNPJ_EXISTS", "A company with this CNPJ is already registered")
	}

	if err := tenant.Update(tenant.LegalName, input.TradeName, tenant.StateRegistration, input.Phone, input.Email, address); err != nil {
		return nil, err
	}
	if err := tenant.SetRNTRC(input.RNTRC); err != nil {
		return nil, err
	}
	if input.EmitterType != 0 {
		if err := tenant.SetEmitterType(identity.EmitterType(input.EmitterType)); err != nil {
			return nil, err
		}
	}
	if input.Environment != "" && identity.Environment(input.Environment) != tenant.Environment {
		if err := tenant.SetEnvironment(identity.Environment(input.Environment)); err != nil {
			return nil, err
		}
	}
	if input.Series != 0 {
		if err := tenant.SetSeries(input.Series, 0); err != nil {
			return nil, err
		}
	}
	return tenant, nil
}

func (s *TenantService) load(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")
		}
		return nil, err
	}
	return tenant, nil
}

func (s *TenantService) mutate(ctx context.Context, id uuid.UUID, fn func(*identity.Tenant) error) (*TenantDTO, error) {
	tenant, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(tenant); err != nil {
		return nil, err
	}
	return s.save(ctx, tenant)
}

func (s *TenantService) save(ctx context.Context, tenant *identity.Tenant) (*TenantDTO, error) {
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		s.logger.Error("Failed to save tenant", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		return nil, err
	}
	s.publish(ctx, tenant)
	return toTenantDTO(tenant), nil
}

func (s *TenantService) publish(ctx context.Context, tenant *identity.Tenant) {
	if err := shared.PublishAndClear(ctx, s.publisher, tenant); err != nil {
		s.logger.Warn("Failed to publish tenant events", zap.Error(err))
	}
}

func toTenantDTO(t *identity.Tenant) *TenantDTO {
	return &TenantDTO{
		ID:                   t.ID,
		Code:                 t.Code,
		CNPJ:                 t.CNPJ,
		StateRegistration:    t.StateRegistration,
		LegalName:            t.LegalName,
		TradeName:            t.TradeName,
		Address:              common.ToAddressDTO(t.Address),
		Phone:                t.Phone,
		Email:                t.Email,
		RNTRC:                t.RNTRC,
		EmitterType:          int(t.EmitterType),
		Environment:          string(t.Environment),
		Series:               t.Series,
		LastNumber:           t.LastNumber,
		Status:               string(t.Status),
		HasCertificate:       t.CertificateKey != "",
		CertificateExpiresAt: t.CertificateExpiresAt,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}
