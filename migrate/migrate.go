// Package migrate sequences the full migration: discover mailboxes, resolve
// partial messages in a global pre-pass, then read, convert, and append each
// message into the Thunderbird destination.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mailport/mailport/emlx"
	"github.com/mailport/mailport/filter"
	"github.com/mailport/mailport/model"
	"github.com/mailport/mailport/progress"
	"github.com/mailport/mailport/scan"
	"github.com/mailport/mailport/status"
	"github.com/mailport/mailport/store"
	"github.com/mailport/mailport/thunderbird"
)

// ErrRecoveredMessageMissing signals that a resolved partial's full copy
// vanished between the scan pre-pass and the write. The run aborts because
// the filesystem drifted underneath it.
var ErrRecoveredMessageMissing = errors.New("recovered message no longer exists")

// Options tunes a migration run.
type Options struct {
	// Prefix limits the run to mailboxes whose display path starts with it.
	Prefix string
	// DryRun performs every step except filesystem writes and directory
	// creation.
	DryRun bool
	// Progress enables the progress bar.
	Progress bool
	Logger   *slog.Logger
}

// MailStore migrates messages from an Apple Mail store into a Thunderbird
// local folder, recovering partial messages from complete copies found
// anywhere in the store.
func MailStore(storeRoot, profileRoot, localFolder string, opts Options) (*model.MigrationStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(storeRoot); err != nil {
		return nil, fmt.Errorf("mail store not found: %w", err)
	}
	if _, err := os.Stat(profileRoot); err != nil {
		return nil, fmt.Errorf("profile root not found: %w", err)
	}
	if filepath.IsAbs(localFolder) {
		return nil, thunderbird.ErrAbsoluteLocalFolder
	}

	summaries, err := store.Summarize(storeRoot)
	if err != nil {
		return nil, err
	}
	targets, skipped := partitionStore(summaries, opts.Prefix)

	// Global pre-pass: a partial message's full counterpart may live in a
	// mailbox outside the prefix, so the scan never applies the filter.
	report, err := scan.Scan(storeRoot, scan.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	recovery := make(map[string]model.PartialEntry, len(report.Partials))
	for _, entry := range report.Partials {
		if entry.ResolvedPath == "" {
			continue
		}
		abs, err := filepath.Abs(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve partial path: %w", err)
		}
		recovery[abs] = entry
	}

	base := filepath.Join(profileRoot, localFolder)
	if !opts.DryRun {
		base, err = thunderbird.EnsureLocalFolder(profileRoot, localFolder)
		if err != nil {
			return nil, err
		}
	}

	stats := &model.MigrationStats{SkippedByPrefix: skipped, DryRun: opts.DryRun}

	total := 0
	for _, summary := range targets {
		total += summary.StoredMessages + summary.PartialMessages
	}
	bar := progress.New(total, "Migrating mail", opts.Progress)
	defer bar.Stop()

	for _, summary := range targets {
		stats.ProcessedMailboxes++
		bar.SetLabel(summary.DisplayPath)

		segments := segmentValues(summary.Segments)
		var mailboxPath string
		if opts.DryRun {
			mailboxPath = thunderbird.ComputeMailboxPath(base, segments)
		} else {
			mailboxPath, err = thunderbird.EnsureMailboxPath(base, segments)
			if err != nil {
				return nil, err
			}
		}

		refs, err := store.Messages(summary)
		if err != nil {
			return nil, err
		}

		mailboxMessages := 0
		for _, ref := range refs {
			payloadPath := ref.Path

			if ref.Partial {
				abs, err := filepath.Abs(ref.Path)
				if err != nil {
					return nil, fmt.Errorf("resolve partial path: %w", err)
				}
				entry, ok := recovery[abs]
				if !ok {
					stats.UnresolvedPartials++
					logger.Debug("partial message unresolved", "path", ref.Path, "mailbox", summary.DisplayPath)
					bar.Increment()
					continue
				}
				if _, err := os.Stat(entry.ResolvedPath); err != nil {
					return nil, fmt.Errorf("%w: %s", ErrRecoveredMessageMissing, entry.ResolvedPath)
				}
				payloadPath = entry.ResolvedPath
				stats.RecoveredPartials++
			}

			migrated, err := migrateMessageFile(mailboxPath, payloadPath, opts.DryRun)
			if err != nil {
				return nil, err
			}
			if migrated {
				mailboxMessages++
				stats.MigratedMessages++
			}
			bar.Increment()
		}

		if mailboxMessages > 0 || !opts.DryRun {
			stats.MigratedMailboxes++
		}
	}

	return stats, nil
}

// migrateMessageFile reads one emlx file and appends its payload to the
// destination mailbox. Empty payloads are skipped.
func migrateMessageFile(mailboxPath, payloadPath string, dryRun bool) (bool, error) {
	record, err := emlx.Read(payloadPath)
	if err != nil {
		return false, fmt.Errorf("read message %s: %w", payloadPath, err)
	}
	if len(record.Payload) == 0 {
		return false, nil
	}

	if !dryRun {
		if err := appendPayload(mailboxPath, record.Payload, record.Metadata); err != nil {
			return false, fmt.Errorf("write message %s: %w", payloadPath, err)
		}
	}
	return true, nil
}

func appendPayload(mailboxPath string, payload []byte, metadata emlx.Metadata) error {
	fromHeader, dateHeader := headerFields(payload)
	statusValue, status2Value := status.Format(status.Convert(status.ExtractFlags(metadata)))
	return thunderbird.AppendMessage(mailboxPath, fromHeader, dateHeader, payload, statusValue, status2Value)
}

// headerFields extracts the From and Date headers from a payload, tolerating
// malformed header blocks.
func headerFields(payload []byte) (fromHeader, dateHeader string) {
	header, err := scan.ParseHeader(payload)
	if err != nil {
		return "", ""
	}
	return header.Get("From"), header.Get("Date")
}

func partitionStore(summaries []model.MailboxSummary, prefix string) (targets []model.MailboxSummary, skipped int) {
	pf := filter.New(prefix)
	for _, summary := range summaries {
		if pf.Matches(summary.DisplayPath) {
			targets = append(targets, summary)
		} else {
			skipped++
		}
	}
	return targets, skipped
}

func segmentValues(segments []model.NameSegment) []string {
	values := make([]string, len(segments))
	for i, segment := range segments {
		values[i] = segment.Value
	}
	return values
}
