package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mdfe/backend/internal/application/common"
	identityapp "github.com/mdfe/backend/internal/application/identity"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document accepted by the seed command
type Fixture struct {
	Tenants []TenantFixture `yaml:"tenants"`
}

// TenantFixture describes one issuing company with its first administrator
type TenantFixture struct {
	Code              string         `yaml:"code"`
	CNPJ              string         `yaml:"cnpj"`
	StateRegistration string         `yaml:"state_registration"`
	LegalName         string         `yaml:"legal_name"`
	TradeName         string         `yaml:"trade_name"`
	Phone             string         `yaml:"phone"`
	Email             string         `yaml:"email"`
	RNTRC             string         `yaml:"rntrc"`
	EmitterType       int            `yaml:"emitter_type"`
	Environment       string         `yaml:"environment"`
	Series            int            `yaml:"series"`
	Address           AddressFixture `yaml:"address"`
	Admin             AdminFixture   `yaml:"admin"`
	Roles             []RoleFixture  `yaml:"roles"`
}

type AddressFixture struct {
	Street           string `yaml:"street"`
	Number           string `yaml:"number"`
	Complement       string `yaml:"complement"`
	District         string `yaml:"district"`
	MunicipalityCode string `yaml:"municipality_code"`
	MunicipalityName string `yaml:"municipality_name"`
	UF               string `yaml:"uf"`
	CEP              string `yaml:"cep"`
	Phone            string `yaml:"phone"`
}

type AdminFixture struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

// RoleFixture is an extra role created next to the default ones
type RoleFixture struct {
	Code        string   `yaml:"code"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// ParseFixture decodes a seed document. Unknown keys are rejected so typos
// surface before anything is written.
func ParseFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(f.Tenants) == 0 {
		return nil, fmt.Errorf("seed file declares no tenants")
	}
	seen := make(map[string]struct{}, len(f.Tenants))
	for i, t := range f.Tenants {
		if strings.TrimSpace(t.Code) == "" {
			return nil, fmt.Errorf("tenants[%d]: code is required", i)
		}
		if _, dup := seen[t.Code]; dup {
			return nil, fmt.Errorf("tenants[%d]: duplicate code %q", i, t.Code)
		}
		seen[t.Code] = struct{}{}
		if t.Admin.Username == "" || t.Admin.Password == "" {
			return nil, fmt.Errorf("tenant %s: admin username and password are required", t.Code)
		}
	}
	return &f, nil
}

// ProvisionInput maps the fixture onto the tenant service input
func (t TenantFixture) ProvisionInput() identityapp.ProvisionInput {
	environment := t.Environment
	if environment == "" {
		environment = string(identity.EnvironmentHomologation)
	}
	series := t.Series
	if series == 0 {
		series = 1
	}
	emitterType := t.EmitterType
	if emitterType == 0 {
		emitterType = 1
	}
	return identityapp.ProvisionInput{
		Tenant: identityapp.CreateTenantInput{
			Code:              t.Code,
			CNPJ:              t.CNPJ,
			StateRegistration: t.StateRegistration,
			LegalName:         t.LegalName,
			TradeName:         t.TradeName,
			Address: common.AddressInput{
				Street:           t.Address.Street,
				Number:           t.Address.Number,
				Complement:       t.Address.Complement,
				District:         t.Address.District,
				MunicipalityCode: t.Address.MunicipalityCode,
				MunicipalityName: t.Address.MunicipalityName,
				UF:               strings.ToUpper(t.Address.UF),
				CEP:              t.Address.CEP,
				Phone:            t.Address.Phone,
			},
			Phone:       t.Phone,
			Email:       t.Email,
			RNTRC:       t.RNTRC,
			EmitterType: emitterType,
			Environment: environment,
			Series:      series,
		},
		AdminUsername: t.Admin.Username,
		AdminPassword: t.Admin.Password,
		AdminEmail:    t.Admin.Email,
	}
}

// identityServices wires the tenant and role services over a fresh
// database handle. No events are published from the CLI.
type identityServices struct {
	db      *persistence.Database
	tenants *identityapp.TenantService
	roles   *identityapp.RoleService
}

func openIdentity() (*identityServices, error) {
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	roleRepo := persistence.NewGormRoleRepository(db.DB)

	roles := identityapp.NewRoleService(roleRepo, userRepo, nil, log)
	users := identityapp.NewUserService(userRepo, roleRepo, nil, nil, log)
	return &identityServices{
		db:      db,
		tenants: identityapp.NewTenantService(tenantRepo, roles, users, nil, nil, log),
		roles:   roles,
	}, nil
}

func (s *identityServices) Close() {
	if err := s.db.Close(); err != nil {
		log.Warn("Error closing database", zap.Error(err))
	}
}

// provision creates the tenant, its default roles, its admin and any extra
// roles. Tenants whose code already exists are skipped.
func (s *identityServices) provision(ctx context.Context, t TenantFixture) (bool, error) {
	if existing, err := s.tenants.GetByCode(ctx, t.Code); err == nil && existing != nil {
		log.Info("Tenant already exists, skipping", zap.String("code", t.Code))
		return false, nil
	}

	res, err := s.tenants.Provision(ctx, t.ProvisionInput())
	if err != nil {
		return false, fmt.Errorf("provision tenant %s: %w", t.Code, err)
	}
	for _, r := range t.Roles {
		if _, err := s.roles.Create(ctx, identityapp.CreateRoleInput{
			TenantID:    res.Tenant.ID,
			CreatedBy:   res.Admin.ID,
			Code:        r.Code,
			Name:        r.Name,
			Description: r.Description,
			Permissions: r.Permissions,
		}); err != nil {
			return true, fmt.Errorf("tenant %s: create role %s: %w", t.Code, r.Code, err)
		}
	}
	log.Info("Tenant provisioned",
		zap.String("code", t.Code),
		zap.String("tenant_id", res.Tenant.ID.String()),
		zap.String("admin", res.Admin.Username),
		zap.Int("roles", len(res.Roles)+len(t.Roles)),
	)
	return true, nil
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Provision the tenants declared in a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			fixture, err := ParseFixture(f)
			_ = f.Close()
			if err != nil {
				return err
			}

			svc, err := openIdentity()
			if err != nil {
				return err
			}
			defer svc.Close()

			created := 0
			for _, t := range fixture.Tenants {
				ok, err := svc.provision(cmd.Context(), t)
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tenant(s) provisioned, %d skipped\n",
				created, len(fixture.Tenants)-created)
			return nil
		},
	}
}
