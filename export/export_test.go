package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTableOfContents(t *testing.T, mailboxDir string, count uint32) {
	t.Helper()
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], tocMagic)
	binary.BigEndian.PutUint32(buf[4:8], count)
	if err := os.WriteFile(filepath.Join(mailboxDir, "table_of_contents"), buf, 0o644); err != nil {
		t.Fatalf("write table of contents: %v", err)
	}
}

func makeExportMailbox(t *testing.T, root, relative string, messages int) string {
	t.Helper()
	mailboxDir := filepath.Join(root, filepath.FromSlash(relative))
	messagesDir := filepath.Join(mailboxDir, "Messages")
	if err := os.MkdirAll(messagesDir, 0o755); err != nil {
		t.Fatalf("create export mailbox: %v", err)
	}
	for i := 0; i < messages; i++ {
		payload := fmt.Sprintf("Message-ID: <export-%d@example.com>\nFrom: a@example.com\n\nbody %d\n", i, i)
		content := fmt.Sprintf("%d\n%s", len(payload), payload)
		path := filepath.Join(messagesDir, fmt.Sprintf("%d.emlx", i))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write export message: %v", err)
		}
	}
	return mailboxDir
}

func TestReadTableOfContents(t *testing.T) {
	dir := t.TempDir()
	writeTableOfContents(t, dir, 42)

	count, err := ReadTableOfContents(filepath.Join(dir, "table_of_contents"))
	if err != nil {
		t.Fatalf("ReadTableOfContents: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}

func TestReadTableOfContentsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table_of_contents")
	if err := os.WriteFile(path, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 1}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := ReadTableOfContents(path); !errors.Is(err, ErrBadTableOfContents) {
		t.Fatalf("expected ErrBadTableOfContents, got %v", err)
	}
}

func TestSummarizeCountsAndDisplayPaths(t *testing.T) {
	root := t.TempDir()
	inbox := makeExportMailbox(t, root, "Inbox.mbox", 3)
	writeTableOfContents(t, inbox, 5)
	year := makeExportMailbox(t, root, "Archive.mbox/Year 2023.mbox", 1)
	writeTableOfContents(t, year, 1)

	summaries, err := Summarize(root)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	byPath := make(map[string]struct{ stored, indexed int })
	for _, summary := range summaries {
		byPath[summary.DisplayPath] = struct{ stored, indexed int }{summary.StoredMessages, summary.IndexedMessages}
	}
	if len(byPath) != 2 {
		t.Fatalf("got %d mailboxes %v, want 2 (bare containers excluded)", len(byPath), byPath)
	}
	if got := byPath["Inbox"]; got.stored != 3 || got.indexed != 5 {
		t.Errorf("Inbox = %+v, want stored 3 indexed 5", got)
	}
	if got := byPath["Archive/Year 2023"]; got.stored != 1 || got.indexed != 1 {
		t.Errorf("Archive/Year 2023 = %+v, want stored 1 indexed 1", got)
	}
}

func TestSummarizeRootThatIsMailbox(t *testing.T) {
	root := t.TempDir()
	mailbox := makeExportMailbox(t, root, "Inbox.mbox", 2)
	writeTableOfContents(t, mailbox, 2)

	summaries, err := Summarize(mailbox)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(summaries) != 1 || summaries[0].DisplayPath != "Inbox" {
		t.Fatalf("summaries = %v, want single Inbox", summaries)
	}
	if summaries[0].StoredMessages != 2 || summaries[0].IndexedMessages != 2 {
		t.Errorf("counts = (%d, %d), want (2, 2)", summaries[0].StoredMessages, summaries[0].IndexedMessages)
	}
}

func TestSummarizeMissingRoot(t *testing.T) {
	if _, err := Summarize(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing export root")
	}
}

func TestCountFallsBackToMboxFile(t *testing.T) {
	root := t.TempDir()
	mailboxDir := filepath.Join(root, "Fallback.mbox")
	if err := os.MkdirAll(mailboxDir, 0o755); err != nil {
		t.Fatalf("create mailbox: %v", err)
	}
	content := "From a@example.com Tue May 02 08:04:05 2023\nSubject: one\n\nBody\n\n" +
		"From b@example.com Tue May 02 08:04:06 2023\nSubject: two\n\nBody\n"
	if err := os.WriteFile(filepath.Join(mailboxDir, "mbox"), []byte(content), 0o644); err != nil {
		t.Fatalf("write mbox: %v", err)
	}
	writeTableOfContents(t, mailboxDir, 4)

	summaries, err := Summarize(mailboxDir)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summaries[0].StoredMessages != 2 {
		t.Errorf("stored = %d, want 2 from mbox fallback", summaries[0].StoredMessages)
	}
	if summaries[0].IndexedMessages != 4 {
		t.Errorf("indexed = %d, want 4 from table of contents", summaries[0].IndexedMessages)
	}

	messages, err := Messages(mailboxDir)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages from mbox fallback, want 2", len(messages))
	}
	if !strings.Contains(string(messages[0].Payload), "Subject: one") {
		t.Errorf("unexpected first payload %q", messages[0].Payload)
	}
}

func TestMessagesFlagsPartials(t *testing.T) {
	root := t.TempDir()
	mailbox := makeExportMailbox(t, root, "Inbox.mbox", 1)
	messagesDir := filepath.Join(mailbox, "Messages")
	partial := "Message-ID: <p@example.com>\n\n"
	content := fmt.Sprintf("%d\n%s", len(partial), partial)
	if err := os.WriteFile(filepath.Join(messagesDir, "9.partial.emlx"), []byte(content), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}

	messages, err := Messages(mailbox)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	partials := 0
	for _, message := range messages {
		if message.Partial {
			partials++
		}
	}
	if partials != 1 {
		t.Errorf("got %d partial messages, want 1", partials)
	}
}

func TestScanReportsMismatches(t *testing.T) {
	root := t.TempDir()
	inbox := makeExportMailbox(t, root, "Inbox.mbox", 2)
	writeTableOfContents(t, inbox, 4)
	clean := makeExportMailbox(t, root, "Clean.mbox", 1)
	writeTableOfContents(t, clean, 1)

	report, err := Scan(root, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.TotalMailboxes != 2 {
		t.Errorf("TotalMailboxes = %d, want 2", report.TotalMailboxes)
	}
	if report.TotalMissingMessages != 2 {
		t.Errorf("TotalMissingMessages = %d, want 2", report.TotalMissingMessages)
	}
	if len(report.MismatchedMailboxes) != 1 {
		t.Fatalf("got %d mismatches, want 1", len(report.MismatchedMailboxes))
	}
	mismatch := report.MismatchedMailboxes[0]
	if mismatch.DisplayPath != "Inbox" || mismatch.MissingMessages != 2 {
		t.Errorf("mismatch = %+v", mismatch)
	}
}
