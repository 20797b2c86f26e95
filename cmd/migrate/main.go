// migrate manages the database schema and bootstraps tenants.
//
// Usage:
//
//	migrate up
//	migrate steps -1
//	migrate create add_manifest_notes "notes column on manifests"
//	migrate seed seed.example.yaml
//	migrate tenant suspend transportes-sul
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/mdfe/backend/internal/infrastructure/logger"
	"github.com/mdfe/backend/internal/infrastructure/migration"
	"github.com/mdfe/backend/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var (
	version = "dev"

	migrationsPath string
	logLevel       string
	log            *zap.Logger
	cfg            *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Schema migrations and tenant bootstrap for the MDF-e backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			log, err = logger.New(&logger.Config{
				Level:      logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if log != nil {
				_ = logger.Sync(log)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "",
		"Migrations directory; empty uses the files embedded in the binary")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		upCmd(),
		downCmd(),
		stepsCmd(),
		gotoCmd(),
		versionCmd(),
		statusCmd(),
		forceCmd(),
		createCmd(),
		seedCmd(),
		tenantCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withMigrator opens the database, runs fn and releases both
func withMigrator(fn func(m *migration.Migrator) error) error {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	path := migrationsPath
	if path != "" {
		if path, err = filepath.Abs(path); err != nil {
			_ = db.Close()
			return err
		}
	}
	m, err := migration.New(db, path, migrations.FS, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	// closing the migrator closes db as well
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return fn(m)
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return withMigrator((*migration.Migrator).Up)
		},
	}
}

func downCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !confirmed {
				return fmt.Errorf("down drops the whole schema; pass --yes to confirm")
			}
			return withMigrator((*migration.Migrator).Down)
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm rolling back every migration")
	return cmd
}

func stepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations; negative N rolls back",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(func(m *migration.Migrator) error { return m.Steps(n) })
		},
	}
}

func gotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goto VERSION",
		Short: "Migrate up or down to VERSION",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(func(m *migration.Migrator) error { return m.GoTo(uint(v)) })
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *migration.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files := migrations.FS
			return withMigrator(func(m *migration.Migrator) error {
				var st *migration.Status
				var err error
				if migrationsPath != "" {
					st, err = m.Status(os.DirFS(migrationsPath))
				} else {
					st, err = m.Status(files)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "version %d (dirty: %t)\n", st.Version, st.Dirty)
				for _, name := range st.Applied {
					fmt.Fprintf(out, "  [x] %s\n", name)
				}
				for _, name := range st.Pending {
					fmt.Fprintf(out, "  [ ] %s\n", name)
				}
				return nil
			})
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  "Use after fixing a failed migration by hand to clear the dirty flag.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(func(m *migration.Migrator) error { return m.Force(v) })
		},
	}
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME [DESCRIPTION]",
		Short: "Write a new empty up/down migration pair",
		Args:  cobra.RangeArgs(1, 2),
		// create only touches files
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			log, err = logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
			return err
		},
		RunE: func(_ *cobra.Command, args []string) error {
			dir := migrationsPath
			if dir == "" {
				dir = defaultMigrationsPath
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.NewCreator(dir).Create(args[0], description)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	}
}
