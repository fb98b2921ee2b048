package queue

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
)

var RetryCmd = &cobra.Command{
	Use:   "retry <item-id>",
	Short: "Put a failed item back in the queue with a fresh retry budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		item, err := c.Retry(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("retry %s: %w", args[0], err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), item, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Item %s is %s again\n", item.ID, output.Status(string(item.Status)))
		})
	},
}
