package queue

import "github.com/spf13/cobra"

var QueueCmd = &cobra.Command{
	Use:     "queue",
	Aliases: []string{"q"},
	Short:   "Inspect and manage the offline mutation queue",
}
