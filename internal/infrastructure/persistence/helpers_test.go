package persistence

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a private in-memory sqlite database with the full schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(AutoMigrateModels()...))
	return db
}

// newMockDB returns a postgres flavoured gorm DB backed by sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func testAddress(t *testing.T) valueobject.Address {
	t.Helper()
	m, err := valueobject.NewMunicipality("3550308", "Sao Paulo", "SP")
	require.NoError(t, err)
	addr, err := valueobject.NewAddress("Rua Augusta", "500", "Consolacao", m, "01305000")
	require.NoError(t, err)
	return addr
}

func newTestTenant(t *testing.T, code, cnpj string) *identity.Tenant {
	t.Helper()
	tenant, err := identity.NewTenant(code, cnpj, "ISENTO", "Transportes "+code+" Ltda", testAddress(t))
	require.NoError(t, err)
	return tenant
}
