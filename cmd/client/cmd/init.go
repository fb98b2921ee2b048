package cmd

import (
	"hotelsync/cmd/client/cmd/conflict"
	"hotelsync/cmd/client/cmd/queue"
	"hotelsync/cmd/client/cmd/status"
	"hotelsync/cmd/client/cmd/sync"
)

func init() {
	rootCmd.AddCommand(status.StatusCmd)
	rootCmd.AddCommand(status.EntityCmd)
	rootCmd.AddCommand(sync.SyncCmd)

	rootCmd.AddCommand(queue.QueueCmd)
	queue.QueueCmd.AddCommand(queue.ListCmd)
	queue.QueueCmd.AddCommand(queue.AddCmd)
	queue.QueueCmd.AddCommand(queue.RetryCmd)
	queue.QueueCmd.AddCommand(queue.DiscardCmd)

	rootCmd.AddCommand(conflict.ConflictCmd)
	conflict.ConflictCmd.AddCommand(conflict.ListCmd)
	conflict.ConflictCmd.AddCommand(conflict.ShowCmd)
	conflict.ConflictCmd.AddCommand(conflict.ResolveCmd)
}
