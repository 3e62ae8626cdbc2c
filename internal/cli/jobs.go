package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/provider"
	"MediaMonitor/internal/usecase"
)

var (
	jobsTenant   string
	jobType      string
	jobSchedule  string
	jobProviders []string
	jobDisabled  bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled jobs",
	RunE:  runJobsList,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE:  runJobsList,
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a scheduled job",
	Long: `Create a scheduled job for a tenant.

Examples:
  mediamonitor jobs add --tenant acme --schedule "0 9 * * *"
  mediamonitor jobs add --tenant acme --schedule "@every 30m" --provider social`,
	RunE: runJobsAdd,
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a job and its execution history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Jobs().DeleteJob(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		fmt.Printf("Deleted job %s\n", args[0])
		return nil
	},
}

func init() {
	jobsCmd.PersistentFlags().StringVarP(&jobsTenant, "tenant", "t", "", "tenant ID")

	jobsAddCmd.Flags().StringVar(&jobType, "type", string(domain.JobTypeFetchContent), "job type (fetch-content|send-digest|generate-deck)")
	jobsAddCmd.Flags().StringVarP(&jobSchedule, "schedule", "s", "", "cron expression")
	jobsAddCmd.Flags().StringSliceVarP(&jobProviders, "provider", "p", nil, "providers to fetch (default: all enabled for the tenant)")
	jobsAddCmd.Flags().BoolVar(&jobDisabled, "disabled", false, "create the job disabled")
	_ = jobsAddCmd.MarkFlagRequired("schedule")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsEnableCmd)
	jobsCmd.AddCommand(jobsDisableCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	jobs, err := application.Jobs().ListJobs(cmd.Context(), jobsTenant)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTENANT\tTYPE\tSCHEDULE\tENABLED\tLAST STATUS\tRUNS\tNEXT RUN")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%d\t%s\n",
			j.ID, j.TenantID, j.JobType, j.ScheduleExpression, j.Enabled, j.LastStatus, j.RunCount, formatTime(j.NextRun))
	}
	return w.Flush()
}

func runJobsAdd(cmd *cobra.Command, args []string) error {
	if jobsTenant == "" {
		return fmt.Errorf("--tenant is required")
	}
	jt, ok := domain.ParseJobType(jobType)
	if !ok {
		return fmt.Errorf("unknown job type %q", jobType)
	}
	for _, name := range jobProviders {
		if _, ok := provider.ParseKind(name); !ok {
			return &domain.UnknownProviderError{Name: name}
		}
	}

	next, err := application.NextRun(jobSchedule)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	jobConfig := map[string]any{}
	if len(jobProviders) > 0 {
		jobConfig[usecase.JobConfigProviders] = jobProviders
	}

	job, err := application.Jobs().CreateJob(cmd.Context(), domain.ScheduledJob{
		TenantID:           jobsTenant,
		JobType:            jt,
		ScheduleExpression: jobSchedule,
		Enabled:            !jobDisabled,
		Config:             jobConfig,
		NextRun:            &next,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	fmt.Printf("Created job %s (next run %s)\n", job.ID, formatTime(job.NextRun))
	return nil
}

func setEnabled(cmd *cobra.Command, id string, enabled bool) error {
	if err := application.Jobs().SetJobEnabled(cmd.Context(), id, enabled); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Job %s %s\n", id, state)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func formatPtr(s *string) string {
	if s == nil {
		return "-"
	}
	return strings.TrimSpace(*s)
}
