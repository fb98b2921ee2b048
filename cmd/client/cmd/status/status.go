package status

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/domain/sync"
)

type report struct {
	Sync  *sync.Status       `json:"sync"`
	Stats *sync.StorageStats `json:"stats"`
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, the last sync pass and offline store counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		st, err := c.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("get sync status: %w", err)
		}
		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get offline stats: %w", err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), report{Sync: st, Stats: stats}, func(tw *tabwriter.Writer) {
			printStatus(tw, st, stats)
		})
	},
}

func printStatus(tw *tabwriter.Writer, st *sync.Status, stats *sync.StorageStats) {
	fmt.Fprintf(tw, "Backend:\t%s\n", output.Online(st.Online))
	running := "idle"
	if st.Running {
		running = output.Warn("running")
	}
	fmt.Fprintf(tw, "Sync:\t%s\n", running)
	fmt.Fprintf(tw, "Last sync:\t%s\n", output.Time(st.LastSyncAt))
	if r := st.LastResult; r != nil {
		fmt.Fprintf(tw, "Last result:\t%d applied, %d already applied, %d conflicted, %d retrying, %d failed, %d skipped\n",
			r.Applied, r.AlreadyApplied, r.Conflicted, r.Retrying, r.Failed, r.Skipped)
		if r.Error != "" {
			fmt.Fprintf(tw, "Last error:\t%s\n", output.Bad(r.Error))
		}
	}

	fmt.Fprintln(tw, "\t")
	fmt.Fprintf(tw, "Pending sync:\t%d\n", stats.PendingSync)
	failed := fmt.Sprint(stats.Failed)
	if stats.Failed > 0 {
		failed = output.Bad(failed)
	}
	fmt.Fprintf(tw, "Failed:\t%s\n", failed)
	conflicts := fmt.Sprint(stats.Conflicts)
	if stats.Conflicts > 0 {
		conflicts = output.Warn(conflicts)
	}
	fmt.Fprintf(tw, "Conflicts:\t%s\n", conflicts)

	fmt.Fprintln(tw, "\t")
	fmt.Fprintf(tw, "Orders:\t%d\n", stats.Orders)
	fmt.Fprintf(tw, "Bookings:\t%d\n", stats.Bookings)
	fmt.Fprintf(tw, "Menu items:\t%d\n", stats.MenuItems)
	fmt.Fprintf(tw, "Cart items:\t%d\n", stats.CartItems)

	others := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		switch t {
		case "orders", "bookings", "menu_items", "cart_items":
		default:
			others = append(others, t)
		}
	}
	sort.Strings(others)
	for _, t := range others {
		fmt.Fprintf(tw, "%s:\t%d\n", t, stats.ByType[t])
	}
}
