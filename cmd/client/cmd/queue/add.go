package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hotelsync/cmd/client/cmd/cli"
	"hotelsync/cmd/client/cmd/output"
	"hotelsync/internal/domain/queue"
)

var (
	addPayload  string
	addFile     string
	addPriority int
	addBase     string
)

var ErrPayloadRequired = errors.New("create and update need --payload or --file")

var AddCmd = &cobra.Command{
	Use:   "add <create|update|delete> <type> <id>",
	Short: "Queue a mutation made while offline",
	Example: `  hotelsync queue add update orders ord-42 --payload '{"status":"served"}'
  hotelsync queue add create bookings bk-7 --file booking.json
  hotelsync queue add delete cart_items ci-3`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.Client(cmd)
		if err != nil {
			return err
		}

		action := queue.Action(args[0])
		if !action.Valid() {
			return fmt.Errorf("unknown action %q, want create, update or delete", args[0])
		}

		payload, err := readPayload(addPayload, addFile)
		if err != nil {
			return err
		}
		if payload == nil && action != queue.ActionDelete {
			return ErrPayloadRequired
		}

		var base json.RawMessage
		if addBase != "" {
			if base, err = readPayload("", addBase); err != nil {
				return fmt.Errorf("base: %w", err)
			}
		}

		item, err := c.Enqueue(cmd.Context(), queue.EnqueueRequest{
			Action:      action,
			EntityType:  args[1],
			EntityID:    args[2],
			Payload:     payload,
			Priority:    addPriority,
			BaseVersion: base,
		})
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}

		return output.Print(cmd.OutOrStdout(), cli.Format(cmd), item, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Queued:\t%s\n", item.ID)
			fmt.Fprintf(tw, "Mutation:\t%s %s/%s\n", item.Action, item.EntityType, item.EntityID)
			fmt.Fprintf(tw, "Status:\t%s\n", output.Status(string(item.Status)))
			if item.ParentID != "" {
				fmt.Fprintf(tw, "After:\t%s\n", item.ParentID)
			}
		})
	},
}

// readPayload takes inline JSON or, failing that, the contents of file.
// "-" reads the file from stdin.
func readPayload(inline, file string) (json.RawMessage, error) {
	var data []byte
	switch {
	case inline != "" && file != "":
		return nil, errors.New("use either --payload or --file, not both")
	case inline != "":
		data = []byte(inline)
	case file == "-":
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		data = raw
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		data = raw
	default:
		return nil, nil
	}

	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func init() {
	AddCmd.Flags().StringVarP(&addPayload, "payload", "p", "", "mutation payload as inline JSON")
	AddCmd.Flags().StringVarP(&addFile, "file", "f", "", "read the payload from a JSON file, - for stdin")
	AddCmd.Flags().IntVar(&addPriority, "priority", 0, "informational priority")
	AddCmd.Flags().StringVar(&addBase, "base", "", "JSON file with the server state the edit was made against")
}
