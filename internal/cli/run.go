package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/usecase"
)

var (
	runTenant    string
	runJob       string
	runProviders []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a job or an ad-hoc fetch now and wait for the result",
	Long: `Run a scheduled job on demand (--job) or an ad-hoc fetch for a tenant.
Without --provider every provider enabled for the tenant is used.
Interrupting the command cancels the run between items.

Examples:
  mediamonitor run --job 3f0c...
  mediamonitor run --tenant acme
  mediamonitor run --tenant acme --provider rss --provider newsapi`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runJob == "" && runTenant == "" {
			return fmt.Errorf("either --job or --tenant is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		exec, err := application.Orchestrator().Execute(ctx, usecase.RunRequest{
			TenantID:  runTenant,
			JobID:     runJob,
			Providers: runProviders,
			Trigger:   domain.TriggerManual,
		})
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		printExecution(exec, false)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runTenant, "tenant", "t", "", "tenant ID")
	runCmd.Flags().StringVarP(&runJob, "job", "j", "", "scheduled job ID")
	runCmd.Flags().StringSliceVarP(&runProviders, "provider", "p", nil, "provider names for an ad-hoc run")
}
