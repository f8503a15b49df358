package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailport/mailport/export"
	"github.com/mailport/mailport/store"
)

var listExportBundle bool

var listCmd = &cobra.Command{
	Use:   "list [root]",
	Short: "List the mailboxes found beneath a mail store or export bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		if listExportBundle {
			summaries, err := export.Summarize(root)
			if err != nil {
				return err
			}
			for _, summary := range summaries {
				fmt.Printf("%s (stored %d, indexed %d)\n", summary.DisplayPath, summary.StoredMessages, summary.IndexedMessages)
			}
			return nil
		}

		summaries, err := store.Summarize(root)
		if err != nil {
			return err
		}
		for _, summary := range summaries {
			fmt.Printf("%s (stored %d, partial %d)\n", summary.DisplayPath, summary.StoredMessages, summary.PartialMessages)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listExportBundle, "export", false, "Treat the root as an exported .mbox bundle")
}

// AddCommands registers the auxiliary subcommands on the root command.
func AddCommands(root *cobra.Command) {
	root.AddCommand(scanCmd, scanExportCmd, listCmd)
}
