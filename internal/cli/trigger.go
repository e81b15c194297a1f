package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTriggerCmd создаёт группу команд постановки job.
func NewTriggerCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Enqueue evaluation jobs",
	}

	cmd.AddCommand(
		newTriggerPairCmd(clientFn, outputFn),
		newTriggerNewCmd(clientFn, outputFn),
		newTriggerEntityCmd(clientFn, outputFn),
		newTriggerScanCmd(clientFn, outputFn),
		newTriggerIngestCmd(clientFn, outputFn),
	)

	return cmd
}

func newTriggerPairCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pair A B",
		Short: "Evaluate one pair with interactive priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(clientFn, func(client *Client) error {
				id, err := client.Triggers.TriggerPair(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printIDs(outputFn(), []uuid.UUID{id})
				return nil
			})
		},
	}
}

func newTriggerNewCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "new OWNER TARGET...",
		Short: "Evaluate pairs for new selections of OWNER",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(clientFn, func(client *Client) error {
				ids, err := client.Triggers.TriggerPairsForNewEntity(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				printIDs(outputFn(), ids)
				return nil
			})
		},
	}
}

func newTriggerEntityCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "entity ID",
		Short: "Re-evaluate all pairs of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(clientFn, func(client *Client) error {
				ids, err := client.Triggers.TriggerAllForEntity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printIDs(outputFn(), ids)
				return nil
			})
		},
	}
}

func newTriggerScanCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run the global eligibility scan now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(clientFn, func(client *Client) error {
				ids, err := client.Triggers.TriggerScheduledScan(cmd.Context())
				if err != nil {
					return err
				}
				printIDs(outputFn(), ids)
				return nil
			})
		},
	}
}

func newTriggerIngestCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ingest ID",
		Short: "Refresh profile data of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(clientFn, func(client *Client) error {
				id, err := client.Triggers.TriggerProfileIngest(cmd.Context(), args[0], reason)
				if err != nil {
					return err
				}
				printIDs(outputFn(), []uuid.UUID{id})
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded with the job")

	return cmd
}

// withClient создаёт Client, выполняет fn и закрывает Client.
func withClient(clientFn func() (*Client, error), fn func(client *Client) error) error {
	client, err := clientFn()
	if err != nil {
		return err
	}
	defer client.close()
	return fn(client)
}

func printIDs(out *Output, ids []uuid.UUID) {
	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{id.String()}
	}

	out.Success(fmt.Sprintf("Enqueued %d job(s)", len(ids)))
	out.Print([]string{"JOB_ID"}, rows, map[string]any{"job_ids": ids})
}
