package migrate

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeExportMessage(t *testing.T, root, mailbox, name, headers string, bodyBytes int) {
	t.Helper()
	messagesDir := filepath.Join(root, filepath.FromSlash(mailbox), "Messages")
	if err := os.MkdirAll(messagesDir, 0o755); err != nil {
		t.Fatalf("create export mailbox: %v", err)
	}
	payload := headers + "\n" + strings.Repeat("y", bodyBytes) + "\n"
	content := fmt.Sprintf("%d\n%s", len(payload), payload)
	if err := os.WriteFile(filepath.Join(messagesDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write export message: %v", err)
	}
}

func writeExportTOC(t *testing.T, root, mailbox string, count uint32) {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(mailbox))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create export mailbox: %v", err)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 0x000DBBA0)
	binary.BigEndian.PutUint32(buf[4:8], count)
	if err := os.WriteFile(filepath.Join(dir, "table_of_contents"), buf, 0o644); err != nil {
		t.Fatalf("write table of contents: %v", err)
	}
}

const secondHeaders = "Message-ID: <msg-2@example.com>\nDate: Wed, 03 May 2023 09:00:00 +0000\nFrom: a@example.com\nTo: b@example.com\nSubject: second\n"

func TestExportBackfillsMissingFromStore(t *testing.T) {
	exportRoot := t.TempDir()
	writeExportMessage(t, exportRoot, "Inbox.mbox", "1.emlx", sharedHeaders, 20)
	writeExportTOC(t, exportRoot, "Inbox.mbox", 2)

	storeRoot := t.TempDir()
	writeStoreMessage(t, storeRoot, "Inbox.mbox", "1.emlx", sharedHeaders, 20)
	writeStoreMessage(t, storeRoot, "Inbox.mbox", "2.emlx", secondHeaders, 30)

	profile := t.TempDir()

	stats, err := Export(exportRoot, profile, "Imported", storeRoot, Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.MigratedMessages != 2 {
		t.Errorf("MigratedMessages = %d, want 2", stats.MigratedMessages)
	}
	if stats.RecoveredMissing != 1 {
		t.Errorf("RecoveredMissing = %d, want 1", stats.RecoveredMissing)
	}

	data, err := os.ReadFile(filepath.Join(profile, "Imported.sbd", "Inbox"))
	if err != nil {
		t.Fatalf("read Inbox mailbox: %v", err)
	}
	if got := strings.Count(string(data), "\nMessage-ID:"); got != 2 {
		t.Errorf("destination holds %d messages, want 2", got)
	}
	if !strings.Contains(string(data), "<msg-2@example.com>") {
		t.Error("backfilled message missing from destination")
	}
}

func TestExportWithoutStoreLeavesMissing(t *testing.T) {
	exportRoot := t.TempDir()
	writeExportMessage(t, exportRoot, "Inbox.mbox", "1.emlx", sharedHeaders, 20)
	writeExportTOC(t, exportRoot, "Inbox.mbox", 2)
	profile := t.TempDir()

	stats, err := Export(exportRoot, profile, "Imported", "", Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.MigratedMessages != 1 {
		t.Errorf("MigratedMessages = %d, want 1", stats.MigratedMessages)
	}
	if stats.RecoveredMissing != 0 {
		t.Errorf("RecoveredMissing = %d, want 0", stats.RecoveredMissing)
	}
}

func TestExportCountsPartials(t *testing.T) {
	exportRoot := t.TempDir()
	writeExportMessage(t, exportRoot, "Inbox.mbox", "1.emlx", sharedHeaders, 20)
	writeExportMessage(t, exportRoot, "Inbox.mbox", "2.partial.emlx", secondHeaders, 0)
	profile := t.TempDir()

	stats, err := Export(exportRoot, profile, "Imported", "", Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.MigratedMessages != 1 {
		t.Errorf("MigratedMessages = %d, want 1", stats.MigratedMessages)
	}
	if stats.UnresolvedPartials != 1 {
		t.Errorf("UnresolvedPartials = %d, want 1", stats.UnresolvedPartials)
	}
}

func TestExportDryRunWritesNothing(t *testing.T) {
	exportRoot := t.TempDir()
	writeExportMessage(t, exportRoot, "Inbox.mbox", "1.emlx", sharedHeaders, 20)
	profile := t.TempDir()

	stats, err := Export(exportRoot, profile, "Imported", "", Options{DryRun: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !stats.DryRun {
		t.Error("DryRun flag not carried into stats")
	}
	entries, err := os.ReadDir(profile)
	if err != nil {
		t.Fatalf("read profile dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run created entries in the profile: %v", entries)
	}
}

func TestExportMissingRoot(t *testing.T) {
	profile := t.TempDir()
	if _, err := Export(filepath.Join(profile, "missing"), profile, "Imported", "", Options{}); err == nil {
		t.Error("expected error for missing export root")
	}
}
