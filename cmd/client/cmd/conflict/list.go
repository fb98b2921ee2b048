package conflict

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
)

var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List unresolved conflicts, oldest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		conflicts, err := c.Conflicts(cmd.Context())
		if err != nil {
			return fmt.Errorf("list conflicts: %w", err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), conflicts, func(tw *tabwriter.Writer) {
			if len(conflicts) == 0 {
				fmt.Fprintln(tw, "No conflicts")
				return
			}
			fmt.Fprintln(tw, "ID\tACTION\tENTITY\tDETECTED\tSERVER")
			for _, cf := range conflicts {
				server := output.Compact(cf.ServerVersion, 48)
				if len(cf.ServerVersion) == 0 || string(cf.ServerVersion) == "null" {
					server = output.Warn("deleted")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\n",
					cf.ID, cf.Action, cf.EntityType, cf.EntityID, output.Time(cf.Timestamp), server)
			}
		})
	},
}
