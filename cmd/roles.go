package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/psds-microservice/support-service/internal/application"
	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage stored roles",
}

var rolesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile every stored user with ADMIN_IDS, AGENT_IDS and ROLES_FILE",
	RunE:  runRolesSync,
}

func init() {
	rolesCmd.AddCommand(rolesSyncCmd)
}

func runRolesSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	core, err := application.OpenCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer core.Close()

	changed, err := core.Desk.SyncRoles(ctx)
	if err != nil {
		return fmt.Errorf("roles sync: %w", err)
	}
	slog.Info("roles sync: done", "changed", changed)
	return nil
}
