// Package export reads Apple Mail exported .mbox bundles: directories of
// .emlx files with a binary table of contents, or a plain mbox fallback.
package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/mailport/mailport/emlx"
	"github.com/mailport/mailport/model"
)

// tocMagic is the leading constant of a bundle's table_of_contents file.
const tocMagic = 0x000DBBA0

// ErrBadTableOfContents is returned when the table_of_contents file does not
// start with the expected magic constant.
var ErrBadTableOfContents = errors.New("table of contents magic mismatch")

// mailboxSuffix marks a directory as an exported mailbox.
const mailboxSuffix = ".mbox"

// Message is one message found inside an exported mailbox. Metadata is only
// present for .emlx-backed messages.
type Message struct {
	Payload  []byte
	Metadata emlx.Metadata
	Partial  bool
}

// Discover returns the mailbox directories inside an export bundle.
func Discover(exportRoot string) ([]string, error) {
	info, err := os.Stat(exportRoot)
	if err != nil {
		return nil, fmt.Errorf("export root not found: %w", err)
	}
	if info.IsDir() && strings.HasSuffix(filepath.Base(exportRoot), mailboxSuffix) {
		return []string{exportRoot}, nil
	}

	var dirs []string
	err = filepath.WalkDir(exportRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != exportRoot && strings.HasSuffix(d.Name(), mailboxSuffix) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk export bundle: %w", err)
	}
	return dirs, nil
}

// Summarize returns summaries for each mailbox in the bundle, sorted
// case-insensitively by display path.
func Summarize(exportRoot string) ([]model.ExportSummary, error) {
	dirs, err := Discover(exportRoot)
	if err != nil {
		return nil, err
	}

	base := exportRoot
	if len(dirs) == 1 && dirs[0] == exportRoot {
		base = filepath.Dir(exportRoot)
	}

	summaries := make([]model.ExportSummary, 0, len(dirs))
	for _, dir := range dirs {
		// Directories that only contain nested mailboxes are grouping
		// containers, not mailboxes themselves.
		if !hasMessageContent(dir) {
			continue
		}

		displayPath, err := displayPathFor(base, dir)
		if err != nil {
			return nil, err
		}

		stored, err := countStored(dir)
		if err != nil {
			return nil, err
		}

		indexed := stored
		if count, err := ReadTableOfContents(filepath.Join(dir, "table_of_contents")); err == nil {
			indexed = int(count)
		}

		summaries = append(summaries, model.ExportSummary{
			DisplayPath:     displayPath,
			Dir:             dir,
			StoredMessages:  stored,
			IndexedMessages: indexed,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].DisplayPath) < strings.ToLower(summaries[j].DisplayPath)
	})
	return summaries, nil
}

// ReadTableOfContents returns the entry count recorded in a bundle's binary
// table of contents. Only the magic constant and the count are consumed.
func ReadTableOfContents(path string) (uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open table of contents: %w", err)
	}
	defer file.Close()

	var header struct {
		Magic uint32
		Count uint32
	}
	if err := binary.Read(file, binary.BigEndian, &header); err != nil {
		return 0, fmt.Errorf("read table of contents: %w", err)
	}
	if header.Magic != tocMagic {
		return 0, fmt.Errorf("%w: 0x%08X", ErrBadTableOfContents, header.Magic)
	}
	return header.Count, nil
}

// Messages returns the messages stored in an exported mailbox directory,
// preferring .emlx files under Messages/ and falling back to a plain mbox
// file.
func Messages(mailboxDir string) ([]Message, error) {
	messagesDir := filepath.Join(mailboxDir, "Messages")
	if _, err := os.Stat(messagesDir); err == nil {
		return emlxMessages(messagesDir)
	}

	mboxFile := filepath.Join(mailboxDir, "mbox")
	if _, err := os.Stat(mboxFile); err == nil {
		return mboxMessages(mboxFile)
	}
	return nil, nil
}

func emlxMessages(messagesDir string) ([]Message, error) {
	var paths []string
	err := filepath.WalkDir(messagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".emlx") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk export messages: %w", err)
	}
	sort.Strings(paths)

	messages := make([]Message, 0, len(paths))
	for _, path := range paths {
		record, err := emlx.Read(path)
		if err != nil {
			return nil, err
		}
		messages = append(messages, Message{
			Payload:  record.Payload,
			Metadata: record.Metadata,
			Partial:  strings.HasSuffix(filepath.Base(path), ".partial.emlx") || len(record.Payload) == 0,
		})
	}
	return messages, nil
}

func mboxMessages(mboxFile string) ([]Message, error) {
	file, err := os.Open(mboxFile)
	if err != nil {
		return nil, fmt.Errorf("open export mbox: %w", err)
	}
	defer file.Close()

	var messages []Message
	reader := mboxlib.NewReader(file)
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return messages, nil
			}
			return nil, fmt.Errorf("read export mbox: %w", err)
		}
		payload, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("read export mbox message: %w", err)
		}
		messages = append(messages, Message{Payload: payload})
	}
}

func countStored(mailboxDir string) (int, error) {
	messagesDir := filepath.Join(mailboxDir, "Messages")
	if _, err := os.Stat(messagesDir); err == nil {
		count := 0
		err := filepath.WalkDir(messagesDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".emlx") {
				count++
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("count export messages: %w", err)
		}
		return count, nil
	}

	mboxFile := filepath.Join(mailboxDir, "mbox")
	if _, err := os.Stat(mboxFile); err == nil {
		return countMboxMessages(mboxFile)
	}
	return 0, nil
}

func countMboxMessages(mboxFile string) (int, error) {
	file, err := os.Open(mboxFile)
	if err != nil {
		return 0, fmt.Errorf("open export mbox: %w", err)
	}
	defer file.Close()

	count := 0
	reader := mboxlib.NewReader(file)
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return 0, fmt.Errorf("count export mbox: %w", err)
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return 0, fmt.Errorf("count export mbox: %w", err)
		}
		count++
	}
}

// CountPartial counts truncated message files inside an exported mailbox.
func CountPartial(mailboxDir string) (int, error) {
	messagesDir := filepath.Join(mailboxDir, "Messages")
	if _, err := os.Stat(messagesDir); err != nil {
		return 0, nil
	}
	count := 0
	err := filepath.WalkDir(messagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".partial.emlx") {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count partial messages: %w", err)
	}
	return count, nil
}

func hasMessageContent(mailboxDir string) bool {
	if _, err := os.Stat(filepath.Join(mailboxDir, "Messages")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(mailboxDir, "mbox")); err == nil {
		return true
	}
	return false
}

func displayPathFor(base, dir string) (string, error) {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return "", fmt.Errorf("resolve export mailbox path: %w", err)
	}
	parts := strings.Split(rel, string(filepath.Separator))
	for i, part := range parts {
		parts[i] = strings.TrimSuffix(part, mailboxSuffix)
	}
	return strings.Join(parts, "/"), nil
}
