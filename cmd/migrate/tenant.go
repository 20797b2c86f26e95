package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	identityapp "github.com/mdfe/backend/internal/application/identity"
	"github.com/spf13/cobra"
)

// tenantCmd changes the lifecycle status of an issuing company. Tenants are
// never created or suspended through the HTTP API.
func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage issuing companies",
	}
	cmd.AddCommand(
		tenantStatusCmd("activate", "Allow the tenant to log in and issue manifests",
			(*identityapp.TenantService).Activate),
		tenantStatusCmd("suspend", "Keep read access but block issuing",
			(*identityapp.TenantService).Suspend),
		tenantStatusCmd("deactivate", "Block every login of the tenant",
			(*identityapp.TenantService).Deactivate),
		tenantProvisionCmd(),
	)
	return cmd
}

type statusChange func(*identityapp.TenantService, context.Context, uuid.UUID) (*identityapp.TenantDTO, error)

func tenantStatusCmd(name, short string, change statusChange) *cobra.Command {
	return &cobra.Command{
		Use:   name + " CODE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openIdentity()
			if err != nil {
				return err
			}
			defer svc.Close()

			tenant, err := svc.tenants.GetByCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			updated, err := change(svc.tenants, cmd.Context(), tenant.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s is now %s\n", updated.Code, updated.Status)
			return nil
		},
	}
}

func tenantProvisionCmd() *cobra.Command {
	var t TenantFixture
	cmd := &cobra.Command{
		Use:   "provision CODE",
		Short: "Create a tenant with its default roles and administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Code = args[0]
			if t.Admin.Username == "" || t.Admin.Password == "" {
				return fmt.Errorf("--admin-user and --admin-password are required")
			}
			svc, err := openIdentity()
			if err != nil {
				return err
			}
			defer svc.Close()

			created, err := svc.provision(cmd.Context(), t)
			if err != nil {
				return err
			}
			if !created {
				return fmt.Errorf("tenant %s already exists", t.Code)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&t.CNPJ, "cnpj", "", "CNPJ of the issuing company")
	f.StringVar(&t.StateRegistration, "ie", "", "State registration (IE)")
	f.StringVar(&t.LegalName, "legal-name", "", "Legal name (razao social)")
	f.StringVar(&t.TradeName, "trade-name", "", "Trade name")
	f.StringVar(&t.RNTRC, "rntrc", "", "RNTRC registration of the carrier")
	f.IntVar(&t.EmitterType, "emitter-type", 1, "1 transport service provider, 2 own cargo")
	f.StringVar(&t.Environment, "environment", "homologation", "homologation or production")
	f.IntVar(&t.Series, "series", 1, "Manifest series")
	f.StringVar(&t.Email, "email", "", "Contact e-mail")
	f.StringVar(&t.Address.Street, "street", "", "Street")
	f.StringVar(&t.Address.Number, "number", "", "Street number")
	f.StringVar(&t.Address.District, "district", "", "District")
	f.StringVar(&t.Address.MunicipalityCode, "municipality-code", "", "IBGE municipality code")
	f.StringVar(&t.Address.MunicipalityName, "municipality", "", "Municipality name")
	f.StringVar(&t.Address.UF, "uf", "", "State (UF)")
	f.StringVar(&t.Address.CEP, "cep", "", "Postal code")
	f.StringVar(&t.Admin.Username, "admin-user", "", "Administrator username")
	f.StringVar(&t.Admin.Password, "admin-password", "", "Administrator password")
	f.StringVar(&t.Admin.Email, "admin-email", "", "Administrator e-mail")
	return cmd
}
