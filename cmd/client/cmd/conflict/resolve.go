package conflict

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/app/client"
	"hotelsync/internal/domain/conflict"
)

var (
	resolveStrategy string
	resolveMerged   string
)

var ErrStrategyRequired = errors.New("--strategy is required when not running interactively")

var ResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Resolve a conflict by keeping the local edit, the server state or a merge",
	Long: `Resolves a conflict with one of three strategies:

  use_local   replay the local mutation over the current server state
  use_server  drop the local mutation and keep what the server has
  merge       combine both sides field by field and replay the result

A merge fails when the same field changed on both sides. Pass the combined
document with --merged in that case.`,
	Example: `  hotelsync conflict resolve 3f2a --strategy use_server
  hotelsync conflict resolve 3f2a --strategy merge --merged merged.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}
		in, out := cmd.InOrStdin(), cmd.OutOrStdout()

		strategy := conflict.Strategy(resolveStrategy)
		if strategy == "" {
			if !cli.Interactive() {
				return ErrStrategyRequired
			}
			cf, err := c.Conflict(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get conflict %s: %w", args[0], err)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			printConflict(tw, cf)
			tw.Flush()

			if strategy, err = askStrategy(in, out); err != nil {
				return err
			}
		}
		if !strategy.Valid() {
			return fmt.Errorf("unknown strategy %q, want use_local, use_server or merge", strategy)
		}

		req := conflict.ResolveRequest{Strategy: strategy}
		if resolveMerged != "" {
			if req.Merged, err = readMerged(in, resolveMerged); err != nil {
				return err
			}
		}

		res, err := c.Resolve(cmd.Context(), args[0], req)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
			fmt.Fprintln(out, "These fields changed on both sides:")
			for _, f := range apiErr.Fields {
				fmt.Fprintf(out, "  %s\n", output.Bad(f))
			}
			fmt.Fprintln(out, "Edit the document and pass it with --merged, or pick use_local or use_server.")
		}
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}

		return output.Print(out, cli.Format(cmd), res, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Resolved:\t%s\n", res.ConflictID)
			fmt.Fprintf(tw, "Strategy:\t%s\n", res.Strategy)
			if res.Requeued {
				fmt.Fprintf(tw, "Queued:\t%s, replayed on the next sync\n", res.QueueItemID)
			} else {
				fmt.Fprintf(tw, "Queued:\t%s\n", output.Good("dropped, server state kept"))
			}
			tw.Flush()
			fmt.Fprintf(tw, "\nResult:\n%s\n", output.Indent(res.Result))
		})
	},
}

func askStrategy(in io.Reader, out io.Writer) (conflict.Strategy, error) {
	answer, err := cli.Ask(in, out, "\nKeep [l]ocal, [s]erver or [m]erge? ")
	if err != nil {
		return "", err
	}
	switch strings.ToLower(answer) {
	case "l", "local", string(conflict.StrategyUseLocal):
		return conflict.StrategyUseLocal, nil
	case "s", "server", string(conflict.StrategyUseServer):
		return conflict.StrategyUseServer, nil
	case "m", "merge":
		return conflict.StrategyMerge, nil
	}
	return "", fmt.Errorf("unknown choice %q", answer)
}

// readMerged loads the operator's merged document, "-" meaning in.
func readMerged(in io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read merged document: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("merged document is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func init() {
	ResolveCmd.Flags().StringVarP(&resolveStrategy, "strategy", "s", "", "use_local, use_server or merge")
	ResolveCmd.Flags().StringVarP(&resolveMerged, "merged", "m", "", "JSON file with the merged document, - for stdin")
}
