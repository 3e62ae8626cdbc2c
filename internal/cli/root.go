// Package cli provides the mediamonitor command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"MediaMonitor/internal/app"
	"MediaMonitor/internal/config"
	"MediaMonitor/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	logLevel string

	cfg           config.Config
	logger        *slog.Logger
	closeLogger   func() error
	application   *app.Application
	skipAppForCmd = map[string]bool{"migrate": true, "help": true, "version": true, "completion": true}
)

var rootCmd = &cobra.Command{
	Use:   "mediamonitor",
	Short: "Media monitoring ingestion pipeline",
	Long: `MediaMonitor fetches content from feeds, search APIs and social sources,
deduplicates it, enriches it with AI-derived brand, sentiment and topic data,
and keeps an auditable history of every run.

Configuration is read from $MEDIAMONITOR_CONFIG (YAML) and the environment.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, closeLogger = logging.New(cfg.Logging)
		slog.SetDefault(logger)

		if skipAppForCmd[cmd.Name()] {
			return nil
		}

		var err error
		application, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
// Resources opened in PersistentPreRunE are released whether or not the
// command failed.
func Execute() error {
	defer shutdown()
	return rootCmd.ExecuteContext(context.Background())
}

func shutdown() {
	if application != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close application: %v\n", err)
		}
		application = nil
	}
	if closeLogger != nil {
		_ = closeLogger()
		closeLogger = nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug|info|warn|error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(migrateCmd)
}
