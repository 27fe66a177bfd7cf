package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiinpocket/HomePage/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's full state, including its raw error detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, rt, done, err := openRuntime(cmd, "status")
	if err != nil {
		return err
	}
	defer done()

	job, err := rt.Store.GetByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	printJob(cmd, job)
	return nil
}

func printJob(cmd *cobra.Command, job *domain.Job) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", job.ID)
	fmt.Fprintf(tw, "owner\t%s\n", job.OwnerID)
	fmt.Fprintf(tw, "project\t%s\n", job.ProjectName)
	fmt.Fprintf(tw, "status\t%s\n", job.Status)
	if job.ErrorDetail != "" {
		fmt.Fprintf(tw, "error\t%s\n", job.ErrorDetail)
	}
	if job.ResultID != "" {
		fmt.Fprintf(tw, "result\t%s\n", job.ResultID)
	}
	fmt.Fprintf(tw, "credential\tissued=%t consumed=%t\n", job.HasCredential(), job.CredentialConsumed)
	fmt.Fprintf(tw, "archived\t%t\n", job.IsArchived)
	fmt.Fprintf(tw, "created\t%s\n", job.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "updated\t%s\n", job.UpdatedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(tw, "completed\t%s\n", job.CompletedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}
