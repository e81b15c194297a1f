package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd создаёт группу команд миграций схемы.
func NewMigrateCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
	}

	for _, sub := range []struct {
		use   string
		short string
	}{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Show migration status"},
	} {
		command := sub.use
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(clientFn, func(client *Client) error {
					if err := client.Migrate(cmd.Context(), command); err != nil {
						return err
					}
					outputFn().Success(fmt.Sprintf("migrate %s: done", command))
					return nil
				})
			},
		})
	}

	return cmd
}
