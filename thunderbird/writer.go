// Package thunderbird writes messages into Thunderbird local folders:
// classic Unix mbox files arranged in an .sbd directory hierarchy.
package thunderbird

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mailport/mailport/status"
)

// ErrAbsoluteLocalFolder is returned when the local folder path is not
// relative to the profile root.
var ErrAbsoluteLocalFolder = errors.New("local folder path must be relative to the profile root")

// SentinelSender stands in when a message has no usable From header.
const SentinelSender = "MAILER-DAEMON"

// fromLineTime is the classic mbox separator timestamp layout.
const fromLineTime = "Mon Jan 02 15:04:05 2006"

// FromLine builds the mbox "From " separator for a message, resolving the
// sender address and timestamp from its From and Date headers.
func FromLine(fromHeader, dateHeader string) string {
	return fmt.Sprintf("From %s %s\n", resolveSender(fromHeader), resolveTimestamp(dateHeader).Format(fromLineTime))
}

func resolveSender(fromHeader string) string {
	trimmed := strings.TrimSpace(fromHeader)
	if addr, err := mail.ParseAddress(trimmed); err == nil && addr.Address != "" {
		return addr.Address
	}
	if trimmed != "" {
		return trimmed
	}
	return SentinelSender
}

func resolveTimestamp(dateHeader string) time.Time {
	if dateHeader != "" {
		if parsed, err := mail.ParseDate(dateHeader); err == nil {
			return parsed.Local()
		}
	}
	return time.Now()
}

// EscapeFromLines escapes "From " lines within a message payload for mbox
// storage: a line whose content, after stripping a run of '>' characters,
// begins with "From " gains exactly one more '>'. Applying the escape twice
// therefore still grows quoted lines by one per pass and never mangles
// anything else.
func EscapeFromLines(payload []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(payload))

	rest := payload
	for len(rest) > 0 {
		line := rest
		if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
			line = rest[:idx+1]
			rest = rest[idx+1:]
		} else {
			rest = nil
		}

		content := line
		var newline []byte
		if bytes.HasSuffix(line, []byte("\r\n")) {
			content = line[:len(line)-2]
			newline = line[len(line)-2:]
		} else if bytes.HasSuffix(line, []byte("\n")) {
			content = line[:len(line)-1]
			newline = line[len(line)-1:]
		}

		if bytes.HasPrefix(bytes.TrimLeft(content, ">"), []byte("From ")) {
			out.WriteByte('>')
		}
		out.Write(content)
		out.Write(newline)
	}

	return out.Bytes()
}

// EnsureLocalFolder creates the destination mbox file beneath the profile
// root and returns its absolute path. The file is created empty if missing,
// never truncated.
func EnsureLocalFolder(profileRoot, localFolder string) (string, error) {
	if filepath.IsAbs(localFolder) {
		return "", ErrAbsoluteLocalFolder
	}
	target := filepath.Join(profileRoot, localFolder)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create local folder parent: %w", err)
	}
	if err := touch(target); err != nil {
		return "", err
	}
	return target, nil
}

// EnsureMailboxPath materializes the mbox file for a nested mailbox beneath
// base, creating the ".sbd" container chain on demand.
func EnsureMailboxPath(base string, segments []string) (string, error) {
	current := base
	for _, segment := range segments {
		container := current + ".sbd"
		if err := os.MkdirAll(container, 0o755); err != nil {
			return "", fmt.Errorf("create mailbox container: %w", err)
		}
		current = filepath.Join(container, segment)
		if err := touch(current); err != nil {
			return "", err
		}
	}
	return current, nil
}

// ComputeMailboxPath is the pure counterpart of EnsureMailboxPath, used for
// dry runs so reported paths match what a real run would create.
func ComputeMailboxPath(base string, segments []string) string {
	current := base
	for _, segment := range segments {
		current = filepath.Join(current+".sbd", segment)
	}
	return current
}

// AppendMessage appends one message to the target mbox file. Stale
// X-Mozilla-Status headers are removed from the payload's header block and
// fresh values inserted before the body is escaped and framed.
func AppendMessage(target, fromHeader, dateHeader string, payload []byte, statusValue, status2Value string) error {
	body := EscapeFromLines(injectStatusHeaders(payload, statusValue, status2Value))
	if !bytes.HasSuffix(body, []byte("\n")) {
		body = append(body, '\n')
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create mailbox parent: %w", err)
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}

	_, err = file.WriteString(FromLine(fromHeader, dateHeader))
	if err == nil {
		_, err = file.Write(body)
	}
	if err == nil {
		// Blank line keeps messages visually separated.
		_, err = file.WriteString("\n")
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// injectStatusHeaders strips any existing status headers from the header
// block and prepends freshly computed ones, where Thunderbird keeps them.
func injectStatusHeaders(payload []byte, statusValue, status2Value string) []byte {
	header, rest := splitHeaderBlock(payload)
	header = removeStatusHeaders(header)

	var out bytes.Buffer
	out.Grow(len(payload) + 64)
	fmt.Fprintf(&out, "%s: %s\n", status.Header, statusValue)
	fmt.Fprintf(&out, "%s: %s\n", status.Header2, status2Value)
	out.Write(header)
	out.Write(rest)
	return out.Bytes()
}

// splitHeaderBlock returns the header block and everything after it (the
// blank separator line plus body). A payload with no blank line is all
// header.
func splitHeaderBlock(payload []byte) (header, rest []byte) {
	if idx := bytes.Index(payload, []byte("\r\n\r\n")); idx >= 0 {
		return payload[:idx+2], payload[idx+2:]
	}
	if idx := bytes.Index(payload, []byte("\n\n")); idx >= 0 {
		return payload[:idx+1], payload[idx+1:]
	}
	return payload, nil
}

// removeStatusHeaders drops X-Mozilla-Status and X-Mozilla-Status2 lines,
// including any folded continuation lines, from a header block.
func removeStatusHeaders(header []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(header))

	skipping := false
	rest := header
	for len(rest) > 0 {
		line := rest
		if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
			line = rest[:idx+1]
			rest = rest[idx+1:]
		} else {
			rest = nil
		}

		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if skipping {
				continue
			}
			out.Write(line)
			continue
		}

		skipping = isStatusHeaderLine(line)
		if skipping {
			continue
		}
		out.Write(line)
	}

	return out.Bytes()
}

func isStatusHeaderLine(line []byte) bool {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return false
	}
	name := strings.TrimSpace(string(line[:idx]))
	return strings.EqualFold(name, status.Header) || strings.EqualFold(name, status.Header2)
}

func touch(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create mailbox file: %w", err)
	}
	return file.Close()
}
