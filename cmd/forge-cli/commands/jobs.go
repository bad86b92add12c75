package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/appforge/forge/internal/db/models"
)

// GetStatusCmd returns the status command
func GetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show the status snapshot of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := apiClient.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Printf("job:      %s\n", snap.JobID)
			fmt.Printf("status:   %s\n", snap.Status)
			fmt.Printf("step:     %s\n", snap.Step)
			if snap.DownloadURL != nil {
				fmt.Printf("download: %s\n", *snap.DownloadURL)
			}
			if snap.GithubURL != nil {
				fmt.Printf("github:   %s\n", *snap.GithubURL)
			}
			if snap.DeploymentURL != nil {
				fmt.Printf("deployed: %s\n", *snap.DeploymentURL)
			}
			if snap.Error != nil {
				fmt.Printf("error:    %s\n", *snap.Error)
			}
			return nil
		},
	}
}

// GetJobsCmd returns the jobs listing command
func GetJobsCmd() *cobra.Command {
	var (
		limit     int
		offset    int
		statusStr string
		query     string
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &models.ListOptions{Limit: limit, Offset: offset, Query: query}
			if statusStr != "" {
				status, err := models.ParseJobStatus(statusStr)
				if err != nil {
					return err
				}
				opts.Status = &status
			}

			list, err := apiClient.ListJobs(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTEP\tCREATED\tPROMPT")
			for _, job := range list {
				prompt := job.Prompt
				if len(prompt) > 48 {
					prompt = prompt[:45] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					job.JobID, job.Status, job.Step, job.CreatedAt.Format("2006-01-02 15:04"), prompt)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", models.DefaultLimit, "Max jobs to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Jobs to skip")
	cmd.Flags().StringVar(&statusStr, "status", "", "Filter by status (pending, in_progress, complete, failed)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Substring filter over the prompt")
	return cmd
}
