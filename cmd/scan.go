package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailport/mailport/scan"
	"github.com/mailport/mailport/stats"
)

var (
	scanPrefix     string
	scanReportPath string
	scanNoProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [store root]",
	Short: "Index full messages and locate recovery options for partial messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storeRoot := args[0]

		report, err := scan.Scan(storeRoot, scan.Options{
			Prefix:   scanPrefix,
			Progress: !scanNoProgress,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Full messages:        %d\n", report.TotalFullMessages)
		fmt.Printf("Partial messages:     %d\n", report.TotalPartialMessages)
		fmt.Printf("Resolved partials:    %d\n", report.ResolvedPartials)
		fmt.Printf("Unresolved partials:  %d\n", report.UnresolvedPartials)
		fmt.Printf("Duplicate keys:       %d\n", report.DuplicateKeys)
		fmt.Printf("Duplicate messages:   %d\n", report.DuplicateMessages)
		fmt.Printf("Mismatched size keys: %d\n", report.MismatchedSizeKeys)

		for _, entry := range report.Partials {
			if entry.ResolvedPath == "" {
				fmt.Printf("unresolved: %s (%s)\n", entry.Path, entry.Mailbox)
			}
		}

		if scanReportPath != "" {
			if err := stats.WriteScanReport(scanReportPath, report, storeRoot); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", scanReportPath)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", "", "Only scan mailboxes whose display path starts with this prefix")
	scanCmd.Flags().StringVar(&scanReportPath, "report", "", "Write a JSON scan report to this path")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Disable the progress bar")
}
