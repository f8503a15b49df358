// Package scan indexes complete messages across an Apple Mail store by their
// composite header key and resolves partial (truncated) messages against
// that index.
package scan

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/emersion/go-message/textproto"

	"github.com/mailport/mailport/filter"
	"github.com/mailport/mailport/model"
	"github.com/mailport/mailport/progress"
	"github.com/mailport/mailport/store"
)

// Options tunes a scan run.
type Options struct {
	// Prefix limits the scan to mailboxes whose display path starts with it.
	Prefix string
	// Progress enables the progress bar.
	Progress bool
	Logger   *slog.Logger
}

// Scan indexes every full message beneath storeRoot and resolves each
// partial message against the finished index. Individual malformed messages
// are logged and skipped; only store-level failures abort the scan.
func Scan(storeRoot string, opts Options) (*model.ScanReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	summaries, err := store.Summarize(storeRoot)
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
		total += summary.StoredMessages + summary.PartialMessages
	}

	bar := progress.New(total, "Scanning mail store", opts.Progress)
	defer bar.Stop()

	fullIndex := make(map[model.CompositeKey]*model.FullEntry)
	var partials []model.PartialEntry
	totalFull := 0
	totalPartial := 0

	for _, summary := range targets {
		refs, err := store.Messages(summary)
		if err != nil {
			return nil, err
		}
		bar.SetLabel(summary.DisplayPath)

		for _, ref := range refs {
			header, err := readMessageHeaders(ref.Path)
			if err != nil {
				logger.Warn("failed to parse message headers", "path", ref.Path, "err", err)
				bar.Increment()
				continue
			}
			key := Key(header)

			info, err := os.Stat(ref.Path)
			if err != nil {
				logger.Warn("failed to stat message", "path", ref.Path, "err", err)
				bar.Increment()
				continue
			}
			size := info.Size()

			if ref.Partial {
				totalPartial++
				partials = append(partials, model.PartialEntry{
					Key:     key,
					Path:    ref.Path,
					Mailbox: summary.DisplayPath,
				})
				bar.Increment()
				continue
			}

			totalFull++
			if key.Zero() {
				// No identity can be established from an empty key; never
				// let header-less messages collapse into one index entry.
				bar.Increment()
				continue
			}

			existing := fullIndex[key]
			if existing == nil {
				fullIndex[key] = &model.FullEntry{
					Key:     key,
					Path:    ref.Path,
					Mailbox: summary.DisplayPath,
					Size:    size,
				}
				bar.Increment()
				continue
			}

			existing.DuplicateCount++
			if existing.Size != size {
				existing.MismatchedSize = true
				// The larger copy is assumed more complete.
				if size > existing.Size {
					existing.Path = ref.Path
					existing.Mailbox = summary.DisplayPath
					existing.Size = size
				}
			}
			bar.Increment()
		}
	}

	duplicateKeys := 0
	duplicateMessages := 0
	mismatchedSizeKeys := 0
	for _, entry := range fullIndex {
		if entry.DuplicateCount == 0 {
			continue
		}
		duplicateKeys++
		duplicateMessages += entry.DuplicateCount
		if entry.MismatchedSize {
			mismatchedSizeKeys++
		}
	}

	resolved := 0
	for i := range partials {
		if partials[i].Key.Zero() {
			continue
		}
		match := fullIndex[partials[i].Key]
		if match == nil {
			continue
		}
		partials[i].ResolvedPath = match.Path
		partials[i].DuplicateCount = match.DuplicateCount
		partials[i].SizeMismatch = match.MismatchedSize
		resolved++
	}

	return &model.ScanReport{
		TotalFullMessages:    totalFull,
		TotalPartialMessages: totalPartial,
		ResolvedPartials:     resolved,
		UnresolvedPartials:   len(partials) - resolved,
		DuplicateKeys:        duplicateKeys,
		DuplicateMessages:    duplicateMessages,
		MismatchedSizeKeys:   mismatchedSizeKeys,
		Partials:             partials,
	}, nil
}

// Key builds the composite identity key from parsed headers. Values are
// trimmed and absent headers become empty strings, identically for full and
// partial messages.
func Key(header textproto.Header) model.CompositeKey {
	return model.CompositeKey{
		MessageID: normalizeHeader(header.Get("Message-ID")),
		Date:      normalizeHeader(header.Get("Date")),
		From:      normalizeHeader(header.Get("From")),
		To:        normalizeHeader(header.Get("To")),
		Subject:   normalizeHeader(header.Get("Subject")),
	}
}

// KeyFromPayload builds the composite key from a raw message payload.
func KeyFromPayload(payload []byte) (model.CompositeKey, error) {
	header, err := ParseHeader(payload)
	if err != nil {
		return model.CompositeKey{}, err
	}
	return Key(header), nil
}

// ParseHeader reads the header block of a raw message payload.
func ParseHeader(payload []byte) (textproto.Header, error) {
	return textproto.ReadHeader(bufio.NewReader(bytes.NewReader(payload)))
}

func normalizeHeader(value string) string {
	return strings.TrimSpace(value)
}

// readMessageHeaders parses only the header block of an emlx file, skipping
// the leading byte-count line.
func readMessageHeaders(path string) (textproto.Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return textproto.Header{}, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if _, err := reader.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return textproto.Header{}, err
	}
	return textproto.ReadHeader(reader)
}
