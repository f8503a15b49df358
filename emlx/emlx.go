// Package emlx reads Apple Mail .emlx message files: a decimal byte-count
// line, the raw RFC 5322 payload, and an optional trailing property list
// holding message metadata such as flags.
package emlx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"howett.net/plist"
)

// ErrNoMetadata is returned by DecodeMetadata when the trailer is empty
// after stripping line breaks.
var ErrNoMetadata = errors.New("emlx: no metadata trailer")

// Metadata is the decoded property-list trailer of a message file.
type Metadata map[string]any

// Record holds the payload and optional metadata of one message file.
// MetadataErr records why the trailer could not be decoded; it is never a
// read failure.
type Record struct {
	Payload     []byte
	Metadata    Metadata
	MetadataErr error
}

// Read returns the payload and trailing metadata stored at path. A malformed
// byte-count line falls back to reading the remainder of the file, and a
// corrupt metadata trailer yields a nil Metadata rather than an error; only
// an unreadable file fails.
func Read(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open emlx: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	countLine, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read emlx count line: %w", err)
	}

	expected, parseErr := strconv.ParseInt(strings.TrimSpace(countLine), 10, 64)
	if parseErr != nil || expected < 0 {
		expected = 0
	}

	var payload []byte
	if expected > 0 {
		payload = make([]byte, expected)
		n, err := io.ReadFull(reader, payload)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read emlx payload: %w", err)
		}
		payload = payload[:n]
	} else {
		payload, err = io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read emlx payload: %w", err)
		}
	}

	remainder, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read emlx trailer: %w", err)
	}

	record := &Record{Payload: payload}
	if len(remainder) > 0 {
		record.Metadata, record.MetadataErr = DecodeMetadata(remainder)
	}
	return record, nil
}

// DecodeMetadata decodes a property-list trailer. It reports ErrNoMetadata
// for an effectively empty trailer, so callers can tell "nothing there"
// apart from "present but corrupt".
func DecodeMetadata(raw []byte) (Metadata, error) {
	data := bytes.TrimLeft(raw, "\r\n")
	if len(data) == 0 {
		return nil, ErrNoMetadata
	}

	var meta Metadata
	if _, err := plist.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode emlx metadata: %w", err)
	}
	return meta, nil
}
