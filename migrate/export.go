package migrate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mailport/mailport/emlx"
	"github.com/mailport/mailport/export"
	"github.com/mailport/mailport/filter"
	"github.com/mailport/mailport/model"
	"github.com/mailport/mailport/progress"
	"github.com/mailport/mailport/scan"
	"github.com/mailport/mailport/store"
	"github.com/mailport/mailport/thunderbird"
)

// Export migrates messages from an exported Apple Mail .mbox bundle into a
// Thunderbird local folder. When storeRoot is set, mailboxes whose table of
// contents records more messages than the bundle holds are backfilled from
// the matching mail store mailbox, keyed by composite header identity.
func Export(exportRoot, profileRoot, localFolder, storeRoot string, opts Options) (*model.MigrationStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(exportRoot); err != nil {
		return nil, fmt.Errorf("export bundle not found: %w", err)
	}
	if _, err := os.Stat(profileRoot); err != nil {
		return nil, fmt.Errorf("profile root not found: %w", err)
	}
	if filepath.IsAbs(localFolder) {
		return nil, thunderbird.ErrAbsoluteLocalFolder
	}

	summaries, err := export.Summarize(exportRoot)
	if err != nil {
		return nil, err
	}
	targets, skipped := partitionExport(summaries, opts.Prefix)

	storeIndex := make(map[string]model.MailboxSummary)
	if storeRoot != "" {
		storeSummaries, err := store.Summarize(storeRoot)
		if err != nil {
			return nil, err
		}
		for _, summary := range storeSummaries {
			storeIndex[summary.DisplayPath] = summary
		}
	}
	storeKeyCache := make(map[string][]keyedMessage)

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
		n := summary.StoredMessages
		if summary.IndexedMessages > n {
			n = summary.IndexedMessages
		}
		total += n
	}
	bar := progress.New(total, "Migrating export", opts.Progress)
	defer bar.Stop()

	for _, summary := range targets {
		stats.ProcessedMailboxes++
		bar.SetLabel(summary.DisplayPath)

		segments := exportSegments(summary.DisplayPath)
		var mailboxPath string
		if opts.DryRun {
			mailboxPath = thunderbird.ComputeMailboxPath(base, segments)
		} else {
			mailboxPath, err = thunderbird.EnsureMailboxPath(base, segments)
			if err != nil {
				return nil, err
			}
		}

		messages, err := export.Messages(summary.Dir)
		if err != nil {
			return nil, err
		}

		mailboxMessages := 0
		mailboxKeys := make(map[model.CompositeKey]struct{})
		for _, message := range messages {
			bar.Increment()

			if message.Partial {
				stats.UnresolvedPartials++
				continue
			}
			if len(message.Payload) == 0 {
				continue
			}

			if key, err := scan.KeyFromPayload(message.Payload); err == nil && !key.Zero() {
				mailboxKeys[key] = struct{}{}
			}

			if !opts.DryRun {
				if err := appendPayload(mailboxPath, message.Payload, message.Metadata); err != nil {
					return nil, err
				}
			}
			mailboxMessages++
			stats.MigratedMessages++
		}

		// Backfill messages the table of contents promises but the bundle
		// lost, pulling complete copies from the live mail store.
		missing := summary.IndexedMessages - mailboxMessages
		if storeRoot != "" && missing > 0 {
			storeSummary, ok := storeIndex[summary.DisplayPath]
			if ok {
				keyed, cached := storeKeyCache[summary.DisplayPath]
				if !cached {
					keyed, err = buildStoreKeyMap(storeSummary, logger)
					if err != nil {
						return nil, err
					}
					storeKeyCache[summary.DisplayPath] = keyed
				}

				for _, candidate := range keyed {
					if _, seen := mailboxKeys[candidate.key]; seen {
						continue
					}
					record, err := emlx.Read(candidate.path)
					if err != nil {
						return nil, fmt.Errorf("read message %s: %w", candidate.path, err)
					}
					if len(record.Payload) == 0 {
						continue
					}
					if !opts.DryRun {
						if err := appendPayload(mailboxPath, record.Payload, record.Metadata); err != nil {
							return nil, err
						}
					}
					mailboxKeys[candidate.key] = struct{}{}
					mailboxMessages++
					stats.MigratedMessages++
					stats.RecoveredMissing++
					bar.Increment()
					if mailboxMessages >= summary.IndexedMessages {
						break
					}
				}
			}
		}

		if mailboxMessages > 0 || !opts.DryRun {
			stats.MigratedMailboxes++
		}
	}

	return stats, nil
}

// keyedMessage pairs a composite key with the full message file that carries
// it. Kept as an ordered slice so backfill order is deterministic.
type keyedMessage struct {
	key  model.CompositeKey
	path string
}

func buildStoreKeyMap(summary model.MailboxSummary, logger *slog.Logger) ([]keyedMessage, error) {
	refs, err := store.Messages(summary)
	if err != nil {
		return nil, err
	}

	seen := make(map[model.CompositeKey]struct{})
	var keyed []keyedMessage
	for _, ref := range refs {
		if ref.Partial {
			continue
		}
		record, err := emlx.Read(ref.Path)
		if err != nil {
			logger.Warn("failed to read store message", "path", ref.Path, "err", err)
			continue
		}
		if len(record.Payload) == 0 {
			continue
		}
		key, err := scan.KeyFromPayload(record.Payload)
		if err != nil || key.Zero() {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keyed = append(keyed, keyedMessage{key: key, path: ref.Path})
	}
	return keyed, nil
}

func partitionExport(summaries []model.ExportSummary, prefix string) (targets []model.ExportSummary, skipped int) {
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

func exportSegments(displayPath string) []string {
	if displayPath == "" {
		return nil
	}
	return strings.Split(displayPath, "/")
}
