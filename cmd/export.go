package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/psds-microservice/support-service/internal/application"
	"github.com/psds-microservice/support-service/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump users, tickets and messages as a JSON backup or CSV files",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or csv")
	exportCmd.Flags().StringVar(&exportOut, "out", ".", "output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "csv" {
		return fmt.Errorf("export: unknown format %q", exportFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	core, err := application.OpenCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer core.Close()

	dump, err := export.Collect(ctx, core.Users, core.Tickets)
	if err != nil {
		return err
	}
	stamp := dump.CreatedAt.Format("20060102_150405")
	if exportFormat == "csv" {
		dir := filepath.Join(exportOut, "support_export_"+stamp)
		if err := export.WriteCSVDir(dir, dump); err != nil {
			return err
		}
		slog.Info("export: csv written", "dir", dir, "tickets", len(dump.Tickets), "users", len(dump.Users))
		return nil
	}

	if err := os.MkdirAll(exportOut, 0o755); err != nil {
		return err
	}
	path := filepath.Join(exportOut, "support_backup_"+stamp+".json")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(f, dump); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("export: backup written", "path", path, "tickets", len(dump.Tickets), "messages", len(dump.Messages))
	return nil
}
