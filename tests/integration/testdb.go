//go:build integration

// Package integration runs the repositories, services and HTTP API against a
// real PostgreSQL started with testcontainers.
//
//	go test -tags integration ./tests/integration/...
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mdfe/backend/internal/application/common"
	identityapp "github.com/mdfe/backend/internal/application/identity"
	"github.com/mdfe/backend/internal/infrastructure/migration"
	"github.com/mdfe/backend/internal/infrastructure/persistence"
	"github.com/mdfe/backend/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedOnce sync.Once
	sharedDSN  string
	sharedErr  error
	sharedCtr  *tcpostgres.PostgresContainer
)

// TestDB is a migrated database plus the repositories most tests need
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string

	Tenants   *persistence.GormTenantRepository
	Users     *persistence.GormUserRepository
	Roles     *persistence.GormRoleRepository
	Vehicles  *persistence.GormVehicleRepository
	Drivers   *persistence.GormDriverRepository
	Clients   *persistence.GormClientRepository
	Insurers  *persistence.GormInsurerRepository
	Manifests *persistence.GormManifestRepository

	t *testing.T
}

// NewTestDB connects to the shared container, starting and migrating it on
// first use. Tests isolate themselves by provisioning their own tenants.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedOnce.Do(func() {
		sharedDSN, sharedErr = startPostgres()
	})
	require.NoError(t, sharedErr, "Failed to start PostgreSQL container")

	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(sharedDSN), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		DSN:       sharedDSN,
		Tenants:   persistence.NewGormTenantRepository(db),
		Users:     persistence.NewGormUserRepository(db),
		Roles:     persistence.NewGormRoleRepository(db),
		Vehicles:  persistence.NewGormVehicleRepository(db),
		Drivers:   persistence.NewGormDriverRepository(db),
		Clients:   persistence.NewGormClientRepository(db),
		Insurers:  persistence.NewGormInsurerRepository(db),
		Manifests: persistence.NewGormManifestRepository(db),
		t:         t,
	}
}

func startPostgres() (string, error) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mdfe_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", err
	}
	sharedCtr = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", err
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	m, err := migration.New(sqlDB, "", migrations.FS, zap.NewNop())
	if err != nil {
		_ = sqlDB.Close()
		return "", err
	}
	defer func() { _ = m.Close() }()
	if err := m.Up(); err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	return dsn, nil
}

// Services builds the identity services over the test database
func (tdb *TestDB) Services() (*identityapp.TenantService, *identityapp.UserService, *identityapp.RoleService) {
	log := zap.NewNop()
	roles := identityapp.NewRoleService(tdb.Roles, tdb.Users, nil, log)
	users := identityapp.NewUserService(tdb.Users, tdb.Roles, nil, nil, log)
	tenants := identityapp.NewTenantService(tdb.Tenants, roles, users, nil, nil, log)
	return tenants, users, roles
}

// ProvisionTenant creates a tenant with its default roles and an admin,
// returning the admin credentials. Codes, CNPJs and usernames are random so
// tests can share the database.
func (tdb *TestDB) ProvisionTenant() (res *identityapp.ProvisionResult, username, password string) {
	tdb.t.Helper()

	suffix := strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	username = "admin_" + suffix
	password = "Sup3rSecret!"

	tenants, _, _ := tdb.Services()
	res, err := tenants.Provision(context.Background(), identityapp.ProvisionInput{
		Tenant: identityapp.CreateTenantInput{
			Code:              "t-" + suffix,
			CNPJ:              RandomCNPJ(),
			StateRegistration: "123456789110",
			LegalName:         "Transportes " + suffix,
			Address: common.AddressInput{
				Street: "Rua Augusta", Number: "500", District: "Consolacao",
				MunicipalityCode: "3550308", MunicipalityName: "Sao Paulo", UF: "SP", CEP: "01305000",
			},
			RNTRC:       "12345678",
			EmitterType: 2,
			Environment: "homologation",
			Series:      1,
		},
		AdminUsername: username,
		AdminPassword: password,
		AdminEmail:    username + "@example.com",
	})
	require.NoError(tdb.t, err, "Failed to provision tenant")
	return res, username, password
}

// RandomCNPJ returns a CNPJ with valid check digits
func RandomCNPJ() string {
	digits := make([]byte, 0, 14)
	for i := 0; i < 8; i++ {
		digits = append(digits, byte('0'+rand.IntN(10)))
	}
	digits = append(digits, '0', '0', '0', '1')
	digits = append(digits, byte('0'+cnpjDigit(digits)))
	digits = append(digits, byte('0'+cnpjDigit(digits)))
	return string(digits)
}

func cnpjDigit(digits []byte) int {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	if r := sum % 11; r >= 2 {
		return 11 - r
	}
	return 0
}
