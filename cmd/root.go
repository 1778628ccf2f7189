package cmd

import (
	"github.com/psds-microservice/support-service/internal/config"
	"github.com/psds-microservice/support-service/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "support-service",
	Short:         "Role-based support ticket desk: tickets, staff workflow, notifications",
	RunE:          runAPI,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rolesCmd)
}

// loadConfig reads the environment and installs the logger at the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}
