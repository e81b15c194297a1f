package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Matchcore/internal/domain"
)

const defaultPurgeAge = 30 * 24 * time.Hour

// NewJobCmd создаёт группу команд просмотра и обслуживания job.
func NewJobCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect queued jobs",
	}

	cmd.AddCommand(
		newJobShowCmd(clientFn, outputFn),
		newJobListCmd(clientFn, outputFn),
		newJobPendingCmd(clientFn, outputFn),
		newJobPurgeCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobShowCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			return withClient(clientFn, func(client *Client) error {
				job, err := client.Jobs.Get(cmd.Context(), id)
				if err != nil {
					return err
				}

				retryAfter := ""
				if job.RetryAfter != nil {
					retryAfter = job.RetryAfter.Format(time.RFC3339)
				}

				outputFn().Print(
					append(jobHeaders, "RETRY_AFTER"),
					[][]string{append(jobRow(job), retryAfter)},
					newJobView(job),
				)
				return nil
			})
		},
	}
}

func newJobListCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := domain.ParseJobStatus(strings.ToUpper(status))
			if !ok {
				return fmt.Errorf("invalid status %q, expected PENDING, PROCESSING, COMPLETED or DEAD", status)
			}

			return withClient(clientFn, func(client *Client) error {
				jobs, err := client.Jobs.ListByStatus(cmd.Context(), st, limit)
				if err != nil {
					return err
				}

				rows := make([][]string, len(jobs))
				views := make([]jobView, len(jobs))
				for i, job := range jobs {
					rows[i] = jobRow(job)
					views[i] = newJobView(job)
				}

				outputFn().Print(jobHeaders, rows, views)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", string(domain.JobStatusDead), "Filter by status (PENDING, PROCESSING, COMPLETED, DEAD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")

	return cmd
}

func newJobPendingCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the number of pending jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(clientFn, func(client *Client) error {
				n, err := client.Jobs.CountPending(cmd.Context())
				if err != nil {
					return err
				}

				outputFn().Print(
					[]string{"PENDING"},
					[][]string{{strconv.Itoa(n)}},
					map[string]int{"pending": n},
				)
				return nil
			})
		},
	}
}

func newJobPurgeCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete COMPLETED jobs older than --older-than (DEAD jobs are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			return withClient(clientFn, func(client *Client) error {
				before := client.now().Add(-olderThan)

				n, err := client.Jobs.PurgeCompleted(cmd.Context(), before)
				if err != nil {
					return err
				}

				outputFn().Success(fmt.Sprintf("Purged %d completed job(s) finished before %s", n, before.Format(time.RFC3339)))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", defaultPurgeAge, "Minimum age of completed jobs to delete")

	return cmd
}
