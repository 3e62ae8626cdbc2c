package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

var (
	execTenant string
	execJob    string
	execLimit  int

	recordsTenant string
	recordsLimit  int
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"exec"},
	Short:   "Inspect run history",
	RunE:    runExecutionsList,
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executions, newest first",
	RunE:  runExecutionsList,
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one execution with its log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, err := application.Executions().GetExecution(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get execution: %w", err)
		}
		printExecution(exec, true)
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect processed records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest processed records of a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordsTenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		ctx := cmd.Context()

		records, err := application.Records().ListRecords(ctx, recordsTenant, recordsLimit)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		total, err := application.Records().CountRecords(ctx, recordsTenant)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}

		fmt.Printf("%d records for %s (showing %d)\n\n", total, recordsTenant, len(records))
		for _, r := range records {
			fmt.Printf("• %s\n", r.Title)
			fmt.Printf("  %s | %s | %s | reach %d\n", r.ProviderName, r.Sentiment, r.Topic, r.EstimatedReach)
			if len(r.Brands) > 0 {
				fmt.Printf("  brands: %s\n", strings.Join(r.Brands, ", "))
			}
			if r.Link != "" {
				fmt.Printf("  %s\n", r.Link)
			}
			fmt.Printf("  %s\n\n", r.Summary)
		}
		return nil
	},
}

func init() {
	executionsCmd.PersistentFlags().StringVarP(&execTenant, "tenant", "t", "", "filter by tenant")
	executionsCmd.PersistentFlags().StringVarP(&execJob, "job", "j", "", "filter by job ID")
	executionsCmd.PersistentFlags().IntVarP(&execLimit, "limit", "n", 20, "max results")
	executionsCmd.AddCommand(executionsListCmd)
	executionsCmd.AddCommand(executionsShowCmd)

	recordsListCmd.Flags().StringVarP(&recordsTenant, "tenant", "t", "", "tenant ID")
	recordsListCmd.Flags().IntVarP(&recordsLimit, "limit", "n", 20, "max results")
	recordsCmd.AddCommand(recordsListCmd)
}

func runExecutionsList(cmd *cobra.Command, args []string) error {
	execs, err := application.Executions().ListExecutions(cmd.Context(), ports.ExecutionFilter{
		TenantID: execTenant,
		JobID:    execJob,
		Limit:    execLimit,
	})
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}
	if len(execs) == 0 {
		fmt.Println("No executions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTENANT\tJOB\tTRIGGER\tSTATUS\tPROCESSED\tFAILED\tSKIPPED\tSTARTED")
	for _, e := range execs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.ID, e.TenantID, formatPtr(e.JobID), e.Trigger, e.Status,
			e.ItemsProcessed, e.ItemsFailed, e.ItemsSkipped, formatTime(&e.StartedAt))
	}
	return w.Flush()
}

func printExecution(e domain.JobExecution, withLog bool) {
	fmt.Printf("Execution %s\n", e.ID)
	fmt.Printf("  tenant:    %s\n", e.TenantID)
	fmt.Printf("  job:       %s (%s)\n", formatPtr(e.JobID), e.Trigger)
	fmt.Printf("  status:    %s\n", e.Status)
	fmt.Printf("  processed: %d, failed: %d, skipped: %d\n", e.ItemsProcessed, e.ItemsFailed, e.ItemsSkipped)
	fmt.Printf("  started:   %s\n", formatTime(&e.StartedAt))
	fmt.Printf("  completed: %s\n", formatTime(e.CompletedAt))
	if e.ErrorMessage != nil {
		fmt.Printf("  error:     %s\n", *e.ErrorMessage)
	}
	if withLog && e.ExecutionLog != "" {
		fmt.Printf("\n%s", e.ExecutionLog)
	}
}
