// Package migration applies the SQL schema migrations with golang-migrate.
// Migrations are read from the embedded migrations.FS by default, or from a
// directory on disk when one is configured.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator handles database migrations using golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// Status is the schema state reported by the migrate CLI
type Status struct {
	Version uint
	Dirty   bool
	Applied []string
	Pending []string
}

// New creates a Migrator over an open *sql.DB. An empty migrationsPath uses
// the embedded files.
func New(db *sql.DB, migrationsPath string, embedded fs.FS, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if migrationsPath != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	} else {
		var src source.Driver
		if src, err = iofs.New(embedded, "."); err == nil {
			m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

// NewFromURL creates a Migrator from a database URL and a migrations directory
func NewFromURL(databaseURL, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

func (m *Migrator) applied(op string, err error) (bool, error) {
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply", zap.String("op", op))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration %s failed: %w", op, err)
	}
	return true, nil
}

func (m *Migrator) logVersion(msg string) {
	version, dirty, err := m.Version()
	if err != nil {
		m.logger.Warn("Failed to read migration version", zap.Error(err))
		return
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	changed, err := m.applied("up", m.migrate.Up())
	if changed {
		m.logVersion("Migrations completed")
	}
	return err
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	changed, err := m.applied("down", m.migrate.Down())
	if changed {
		m.logger.Info("All migrations rolled back")
	}
	return err
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	changed, err := m.applied(fmt.Sprintf("steps %d", n), m.migrate.Steps(n))
	if changed {
		m.logVersion("Migration steps completed")
	}
	return err
}

// GoTo migrates to a specific version
func (m *Migrator) GoTo(version uint) error {
	changed, err := m.applied(fmt.Sprintf("goto %d", version), m.migrate.Migrate(version))
	if changed {
		m.logVersion("Migration to version completed")
	}
	return err
}

// Version returns the current version; 0 when nothing was applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Status splits the known migrations into applied and pending
func (m *Migrator) Status(files fs.FS) (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	list, err := ListMigrationsFS(files)
	if err != nil {
		return nil, err
	}
	st := &Status{Version: version, Dirty: dirty}
	for _, mf := range list {
		if mf.Number <= uint64(version) {
			st.Applied = append(st.Applied, mf.Base)
		} else {
			st.Pending = append(st.Pending, mf.Base)
		}
	}
	return st, nil
}

// Force sets the version without running migrations, to recover a dirty state
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close closes the migrator and releases resources
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
