package main

import (
	"log/slog"

	"github.com/duetapp/duet/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Up(); err != nil {
				if err == migrate.ErrNoChange {
					slog.Info("schema already up to date")
					return nil
				}
				return err
			}
			version, dirty, verr := m.Version()
			if verr != nil {
				return verr
			}
			slog.Info("schema migrated", "version", version, "dirty", dirty)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Down(); err != nil && err != migrate.ErrNoChange {
				return err
			}
			slog.Info("schema rolled back")
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withMigrator loads the config, builds a migrator over the configured
// migrations directory and database, and hands it to fn.
func withMigrator(fn func(*migrate.Migrate) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	m, err := migrate.New(cfg.MigrationsSource(), cfg.DatabaseURLForMigrate())
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}
