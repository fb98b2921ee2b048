package conflict

import (
	"fmt"
	"text/tabwriter"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/domain/conflict"
)

var ShowCmd = &cobra.Command{
	Use:   "show <conflict-id>",
	Short: "Show both sides of a conflict and how they differ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		cf, err := c.Conflict(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get conflict %s: %w", args[0], err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), cf, func(tw *tabwriter.Writer) {
			printConflict(tw, cf)
		})
	},
}

func printConflict(tw *tabwriter.Writer, cf *conflict.Conflict) {
	fmt.Fprintf(tw, "Conflict:\t%s\n", cf.ID)
	fmt.Fprintf(tw, "Mutation:\t%s %s/%s (%s)\n", cf.Action, cf.EntityType, cf.EntityID, cf.QueueItemID)
	fmt.Fprintf(tw, "Detected:\t%s\n", output.Time(cf.Timestamp))
	tw.Flush()

	fmt.Fprintf(tw, "\nBase:\n%s\n", output.Indent(cf.BaseVersion))
	fmt.Fprintf(tw, "\nLocal:\n%s\n", output.Indent(cf.LocalVersion))
	fmt.Fprintf(tw, "\nServer:\n%s\n", output.Indent(cf.ServerVersion))
	fmt.Fprintf(tw, "\nServer -> local:\n%s\n", Diff(cf.ServerVersion, cf.LocalVersion))
}

// Diff renders a line diff between two JSON documents, coloured for terminals.
func Diff(from, to []byte) string {
	a, b := output.Indent(from), output.Indent(to)
	dmp := diffmatchpatch.New()
	ra, rb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ra, rb, false), lines)
	return dmp.DiffPrettyText(diffs)
}
