package queue

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/domain/queue"
)

var (
	listStatuses []string
	listType     string
	listID       string
	listLimit    int
)

var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List queued mutations in replay order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		filter := queue.Filter{
			EntityType: listType,
			EntityID:   listID,
			Limit:      listLimit,
		}
		for _, s := range listStatuses {
			filter.Statuses = append(filter.Statuses, queue.Status(strings.TrimSpace(s)))
		}

		items, err := c.Queue(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("list queue: %w", err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), items, func(tw *tabwriter.Writer) {
			if len(items) == 0 {
				fmt.Fprintln(tw, "Queue is empty")
				return
			}
			fmt.Fprintln(tw, "ID\tACTION\tENTITY\tSTATUS\tRETRIES\tNEXT ATTEMPT\tERROR")
			for _, it := range items {
				next := "-"
				if it.Status == queue.StatusPending && !it.NextAttemptAt.IsZero() {
					next = output.Time(it.NextAttemptAt)
				}
				errText := it.LastError
				if errText == "" {
					errText = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\t%s\t%s\n",
					it.ID,
					it.Action,
					it.EntityType, it.EntityID,
					output.Status(string(it.Status)),
					strconv.Itoa(it.RetryCount),
					next,
					errText,
				)
			}
		})
	},
}

func init() {
	ListCmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "only items in these states (pending, syncing, failed, conflicted)")
	ListCmd.Flags().StringVarP(&listType, "type", "t", "", "only items for this entity type")
	ListCmd.Flags().StringVar(&listID, "id", "", "only items for this entity id")
	ListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of items")
}
