package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"MediaMonitor/internal/infrastructure/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return application.Serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := storage.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			return err
		}
		fmt.Printf("Schema is up to date (%s)\n", cfg.Database.Driver)
		return nil
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers available in this process and configured tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Available providers:")
		for _, name := range application.Providers() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("Tenants:")
		for _, id := range application.Tenants() {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}
