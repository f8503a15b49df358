package thunderbird

import (
	"bytes"
	"errors"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mboxlib "github.com/emersion/go-mbox"
)

func TestFromLineUsesAddressAndDate(t *testing.T) {
	dateHeader := "Tue, 02 May 2023 08:04:05 +0000"
	parsed, err := mail.ParseDate(dateHeader)
	if err != nil {
		t.Fatalf("parse fixture date: %v", err)
	}
	want := "From alice@example.com " + parsed.Local().Format("Mon Jan 02 15:04:05 2006") + "\n"

	got := FromLine("Alice Example <alice@example.com>", dateHeader)
	if got != want {
		t.Errorf("FromLine = %q, want %q", got, want)
	}
}

func TestFromLineFallbacks(t *testing.T) {
	line := FromLine("", "")
	if !strings.HasPrefix(line, "From "+SentinelSender+" ") {
		t.Errorf("expected sentinel sender, got %q", line)
	}

	line = FromLine("not an address", "")
	if !strings.HasPrefix(line, "From not an address ") {
		t.Errorf("expected raw header fallback, got %q", line)
	}
}

func TestEscapeFromLines(t *testing.T) {
	input := "From the start\n>From quoted\n>>From deeper\n>not a from line\nFromNoSpace\nplain\n"
	want := ">From the start\n>>From quoted\n>>>From deeper\n>not a from line\nFromNoSpace\nplain\n"
	got := string(EscapeFromLines([]byte(input)))
	if got != want {
		t.Errorf("EscapeFromLines = %q, want %q", got, want)
	}
}

func TestEscapeFromLinesGrowsOnePerPass(t *testing.T) {
	once := EscapeFromLines([]byte("From here\n"))
	twice := EscapeFromLines(once)
	if string(once) != ">From here\n" {
		t.Errorf("first pass = %q", once)
	}
	if string(twice) != ">>From here\n" {
		t.Errorf("second pass = %q", twice)
	}
}

func TestEscapeFromLinesKeepsCRLF(t *testing.T) {
	got := string(EscapeFromLines([]byte("From here\r\nbody\r\n")))
	if got != ">From here\r\nbody\r\n" {
		t.Errorf("EscapeFromLines = %q", got)
	}
}

func TestAppendMessageFraming(t *testing.T) {
	target := filepath.Join(t.TempDir(), "Imported")

	payloads := []string{
		"From: a@example.com\nSubject: one\n\nFrom the body\n",
		"From: b@example.com\nSubject: two\n\nhello\nFrom line again\n",
		"From: c@example.com\nSubject: three\n\nplain\n",
	}
	for _, payload := range payloads {
		err := AppendMessage(target, "a@example.com", "Tue, 02 May 2023 08:04:05 +0000", []byte(payload), "0001", "00000000")
		if err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read mailbox: %v", err)
	}

	separators := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("From ")) {
			separators++
		}
	}
	if separators != len(payloads) {
		t.Errorf("found %d From separators, want %d", separators, len(payloads))
	}

	// The output must round-trip through a standard mbox reader.
	reader := mboxlib.NewReader(bytes.NewReader(data))
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("NextMessage: %v", err)
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			t.Fatalf("read message: %v", err)
		}
		count++
	}
	if count != len(payloads) {
		t.Errorf("mbox reader found %d messages, want %d", count, len(payloads))
	}
}

func TestAppendMessageReplacesStatusHeaders(t *testing.T) {
	target := filepath.Join(t.TempDir(), "Imported")

	payload := "X-Mozilla-Status: 0000\nX-Mozilla-Status2: 10000000\nFrom: a@example.com\n\nbody\n"
	if err := AppendMessage(target, "a@example.com", "", []byte(payload), "0003", "00000000"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read mailbox: %v", err)
	}
	text := string(data)

	if got := strings.Count(text, "X-Mozilla-Status:"); got != 1 {
		t.Errorf("found %d X-Mozilla-Status headers, want 1", got)
	}
	if got := strings.Count(text, "X-Mozilla-Status2:"); got != 1 {
		t.Errorf("found %d X-Mozilla-Status2 headers, want 1", got)
	}
	if !strings.Contains(text, "X-Mozilla-Status: 0003\n") {
		t.Error("fresh X-Mozilla-Status value missing")
	}
	if strings.Contains(text, "X-Mozilla-Status2: 10000000") {
		t.Error("stale X-Mozilla-Status2 value survived")
	}
}

func TestAppendMessageDoesNotStripBodyOccurrences(t *testing.T) {
	target := filepath.Join(t.TempDir(), "Imported")

	payload := "From: a@example.com\n\nquoting X-Mozilla-Status: 1234 in a body\n"
	if err := AppendMessage(target, "a@example.com", "", []byte(payload), "0000", "00000000"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read mailbox: %v", err)
	}
	if !strings.Contains(string(data), "quoting X-Mozilla-Status: 1234 in a body") {
		t.Error("body text mentioning the status header was removed")
	}
}

func TestEnsureLocalFolderRejectsAbsolutePath(t *testing.T) {
	if _, err := EnsureLocalFolder(t.TempDir(), string(filepath.Separator)+"abs"); !errors.Is(err, ErrAbsoluteLocalFolder) {
		t.Fatalf("expected ErrAbsoluteLocalFolder, got %v", err)
	}
}

func TestEnsureLocalFolderDoesNotTruncate(t *testing.T) {
	profile := t.TempDir()
	target, err := EnsureLocalFolder(profile, "Imported")
	if err != nil {
		t.Fatalf("EnsureLocalFolder: %v", err)
	}
	if err := os.WriteFile(target, []byte("existing"), 0o644); err != nil {
		t.Fatalf("seed mailbox: %v", err)
	}

	if _, err := EnsureLocalFolder(profile, "Imported"); err != nil {
		t.Fatalf("EnsureLocalFolder again: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read mailbox: %v", err)
	}
	if string(data) != "existing" {
		t.Errorf("mailbox truncated, contents = %q", data)
	}
}

func TestEnsureMailboxPathCreatesSbdChain(t *testing.T) {
	base := filepath.Join(t.TempDir(), "Imported")
	segments := []string{"Account", "Inbox"}

	path, err := EnsureMailboxPath(base, segments)
	if err != nil {
		t.Fatalf("EnsureMailboxPath: %v", err)
	}

	want := filepath.Join(base+".sbd", "Account.sbd", "Inbox")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("mailbox file not created: %v", err)
	}
	if computed := ComputeMailboxPath(base, segments); computed != path {
		t.Errorf("ComputeMailboxPath = %q, want %q", computed, path)
	}
}
