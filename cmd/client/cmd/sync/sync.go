package sync

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/domain/sync"
)

var watch bool

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay the offline queue against the backend now",
	Long: `Runs one sync pass on the agent and prints each item as it is replayed.

With --watch no pass is started; events of every pass are printed until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		format := cli.Format(cmd)

		if watch {
			events, err := c.Events(ctx)
			if err != nil {
				return fmt.Errorf("subscribe to events: %w", err)
			}
			for e := range events {
				printEvent(out, e)
			}
			return nil
		}

		// Progress lines only make sense next to the table summary.
		progressDone := make(chan struct{})
		if format == output.FormatTable {
			streamCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			if events, err := c.Events(streamCtx); err == nil {
				go func() {
					defer close(progressDone)
					for e := range events {
						if e.Type == sync.EventCompleted {
							return
						}
						printEvent(out, e)
					}
				}()
			} else {
				close(progressDone)
			}
		} else {
			close(progressDone)
		}

		res, err := c.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		select {
		case <-progressDone:
		case <-time.After(time.Second):
		}

		return output.Print(out, format, res, func(tw *tabwriter.Writer) {
			printResult(tw, res)
		})
	},
}

func printEvent(w io.Writer, e sync.Event) {
	ts := e.Timestamp.Local().Format("15:04:05")
	target := e.EntityType + "/" + e.EntityID

	switch e.Type {
	case sync.EventStarted:
		fmt.Fprintf(w, "%s sync started, %d items\n", ts, e.Total)
	case sync.EventItemApplied:
		what := output.Good("applied")
		if e.Reason != "" {
			what = output.Good(e.Reason)
		}
		fmt.Fprintf(w, "%s [%3.0f%%] %s %s %s\n", ts, e.Percent, what, e.Action, target)
	case sync.EventItemConflicted:
		fmt.Fprintf(w, "%s [%3.0f%%] %s %s %s, resolve with: hotelsync conflict resolve %s\n",
			ts, e.Percent, output.Warn("conflict"), e.Action, target, e.ConflictID)
	case sync.EventItemSkipped:
		fmt.Fprintf(w, "%s [%3.0f%%] skipped %s %s (%s)\n", ts, e.Percent, e.Action, target, e.Reason)
	case sync.EventItemFailed:
		what := output.Warn("will retry")
		if e.Final {
			what = output.Bad("failed")
		}
		fmt.Fprintf(w, "%s [%3.0f%%] %s %s %s: %s\n", ts, e.Percent, what, e.Action, target, e.Error)
	case sync.EventCompleted:
		if e.Error != "" {
			fmt.Fprintf(w, "%s sync interrupted: %s\n", ts, output.Bad(e.Error))
			return
		}
		fmt.Fprintf(w, "%s sync completed\n", ts)
	case sync.EventConnectivity:
		fmt.Fprintf(w, "%s backend %s\n", ts, output.Online(e.Online))
	}
}

func printResult(tw *tabwriter.Writer, r *sync.Result) {
	fmt.Fprintln(tw)
	if r.Interrupted {
		fmt.Fprintf(tw, "Result:\t%s (%s)\n", output.Bad("interrupted"), r.Error)
	} else {
		fmt.Fprintf(tw, "Result:\t%s\n", output.Good("completed"))
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(tw, "Items:\t%d\n", r.Total)
	fmt.Fprintf(tw, "Applied:\t%d\n", r.Applied)
	fmt.Fprintf(tw, "Already applied:\t%d\n", r.AlreadyApplied)
	fmt.Fprintf(tw, "Conflicts:\t%d\n", r.Conflicted)
	fmt.Fprintf(tw, "Retrying:\t%d\n", r.Retrying)
	fmt.Fprintf(tw, "Failed:\t%d\n", r.Failed)
	fmt.Fprintf(tw, "Skipped:\t%d\n", r.Skipped)
}

func init() {
	SyncCmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow sync events instead of starting a pass")
}
