package cmd

import (
	"fmt"
	"log/slog"

	"github.com/psds-microservice/support-service/internal/config"
	"github.com/psds-microservice/support-service/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("migrate up: ok", "applied", n)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			return m.Down(cmd.Context())
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			st, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range st {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", s.Version, state, s.Path)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrator(cmd *cobra.Command, fn func(m *database.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DB.Driver == config.DriverPostgres {
		if err := database.EnsureDatabase(cfg.DatabaseURL()); err != nil {
			return fmt.Errorf("ensure database: %w", err)
		}
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	defer database.Close(db)
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	return fn(m)
}
