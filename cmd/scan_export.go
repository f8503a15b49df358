package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailport/mailport/export"
	"github.com/mailport/mailport/stats"
)

var (
	exportScanPrefix     string
	exportScanReportPath string
	exportScanNoProgress bool
)

var scanExportCmd = &cobra.Command{
	Use:   "scan-export [export root]",
	Short: "Inspect an exported .mbox bundle for partial messages and index mismatches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exportRoot := args[0]

		report, err := export.Scan(exportRoot, export.ScanOptions{
			Prefix:   exportScanPrefix,
			Progress: !exportScanNoProgress,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Mailboxes:         %d\n", report.TotalMailboxes)
		fmt.Printf("Full messages:     %d\n", report.TotalFullMessages)
		fmt.Printf("Partial messages:  %d\n", report.TotalPartialMessages)
		fmt.Printf("Indexed messages:  %d\n", report.TotalIndexedMessages)
		fmt.Printf("Missing messages:  %d\n", report.TotalMissingMessages)

		for _, mismatch := range report.MismatchedMailboxes {
			fmt.Printf("mismatch: %s (full %d, indexed %d, partial %d, missing %d)\n",
				mismatch.DisplayPath, mismatch.FullMessages, mismatch.IndexedMessages,
				mismatch.PartialMessages, mismatch.MissingMessages)
		}

		if exportScanReportPath != "" {
			if err := stats.WriteExportReport(exportScanReportPath, report, exportRoot); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", exportScanReportPath)
		}
		return nil
	},
}

func init() {
	scanExportCmd.Flags().StringVar(&exportScanPrefix, "prefix", "", "Only scan mailboxes whose display path starts with this prefix")
	scanExportCmd.Flags().StringVar(&exportScanReportPath, "report", "", "Write a JSON scan report to this path")
	scanExportCmd.Flags().BoolVar(&exportScanNoProgress, "no-progress", false, "Disable the progress bar")
}
