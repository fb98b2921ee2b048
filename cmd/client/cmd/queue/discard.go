package queue

import (
	"fmt"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
)

var discardYes bool

var DiscardCmd = &cobra.Command{
	Use:     "discard <item-id>",
	Aliases: []string{"rm"},
	Short:   "Drop a queued mutation without replaying it",
	Long: `Drops a queued mutation. Mutations queued after it for the same entity
stay in the queue and are replayed against the server as it is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		if !discardYes && cli.Interactive() {
			ok, err := cli.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Discard queued mutation %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
		}

		if err := c.Discard(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("discard %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", args[0])
		return nil
	},
}

func init() {
	DiscardCmd.Flags().BoolVarP(&discardYes, "yes", "y", false, "do not ask for confirmation")
}
