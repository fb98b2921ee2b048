package conflict

import "github.com/spf13/cobra"

var ConflictCmd = &cobra.Command{
	Use:     "conflict",
	Aliases: []string{"conflicts"},
	Short:   "Review and resolve mutations that clash with the server",
}
