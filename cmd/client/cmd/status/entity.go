package status

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
)

var EntityCmd = &cobra.Command{
	Use:   "entity <type> <id>",
	Short: "Show the cached server state of an entity and its state after queued mutations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		view, err := c.Entity(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("get %s/%s: %w", args[0], args[1], err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), view, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Entity:\t%s/%s\n", view.EntityType, view.EntityID)
			fmt.Fprintf(tw, "Queued mutations:\t%d\n", view.Queued)
			if view.Deleted {
				fmt.Fprintf(tw, "Local state:\t%s\n", output.Warn("deleted"))
			}
			fmt.Fprintf(tw, "\nServer:\n%s\n", output.Indent(view.Server))
			if !view.Deleted {
				fmt.Fprintf(tw, "\nLocal:\n%s\n", output.Indent(view.Local))
			}
		})
	},
}
