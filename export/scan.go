package export

import (
	"github.com/mailport/mailport/filter"
	"github.com/mailport/mailport/model"
	"github.com/mailport/mailport/progress"
)

// ScanOptions tunes an export bundle scan.
type ScanOptions struct {
	Prefix   string
	Progress bool
}

// Scan inspects an export bundle for partial messages and table-of-contents
// mismatches without migrating anything.
func Scan(exportRoot string, opts ScanOptions) (*model.ExportScanReport, error) {
	summaries, err := Summarize(exportRoot)
	if err != nil {
		return nil, err
	}

	prefix := filter.New(opts.Prefix)
	targets := summaries[:0:0]
	total := 0
	for _, summary := range summaries {
		if !prefix.Matches(summary.DisplayPath) {
			continue
		}
		targets = append(targets, summary)
		total += summary.StoredMessages
	}

	bar := progress.New(total, "Scanning export bundle", opts.Progress)
	defer bar.Stop()

	report := &model.ExportScanReport{TotalMailboxes: len(targets)}
	for _, summary := range targets {
		partial, err := CountPartial(summary.Dir)
		if err != nil {
			return nil, err
		}

		full := summary.StoredMessages - partial
		if full < 0 {
			full = 0
		}
		missing := summary.IndexedMessages - full
		if missing < 0 {
			missing = 0
		}

		bar.SetLabel(summary.DisplayPath)
		for i := 0; i < summary.StoredMessages; i++ {
			bar.Increment()
		}

		if partial > 0 || missing > 0 || full != summary.IndexedMessages {
			report.MismatchedMailboxes = append(report.MismatchedMailboxes, model.MailboxMismatch{
				DisplayPath:     summary.DisplayPath,
				FullMessages:    full,
				IndexedMessages: summary.IndexedMessages,
				PartialMessages: partial,
				MissingMessages: missing,
			})
		}

		report.TotalFullMessages += full
		report.TotalPartialMessages += partial
		report.TotalIndexedMessages += summary.IndexedMessages
		report.TotalMissingMessages += missing
	}

	return report, nil
}
