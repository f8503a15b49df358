// Package status converts Apple Mail's message flag bitfield into
// Thunderbird's X-Mozilla-Status header pair.
package status

import (
	"fmt"
	"strconv"
	"strings"
)

// Destination header names injected into migrated messages.
const (
	Header  = "X-Mozilla-Status"
	Header2 = "X-Mozilla-Status2"
)

// Apple flag bit → Mozilla flag value. Values up to 0xFFFF live in
// X-Mozilla-Status, larger ones in X-Mozilla-Status2.
var flagMappings = []struct {
	appleBit uint64
	mozilla  uint32
}{
	{1 << 0, 0x00000001}, // read
	{1 << 2, 0x00000002}, // replied
	{1 << 4, 0x00000004}, // flagged
	{1 << 8, 0x00001000}, // forwarded
	{1 << 9, 0x00002000}, // redirected
}

const (
	attachmentShift    = 10
	attachmentMask     = 0x3F
	attachmentSentinel = 0x3F // "count unknown", never sets the bit
	attachmentFlag     = 0x10000000
)

// ExtractFlags pulls the numeric flag bitfield out of emlx metadata. The
// value may be stored as a bool, number, string, or byte string; anything
// unparsable or absent yields 0.
func ExtractFlags(meta map[string]any) uint64 {
	if len(meta) == 0 {
		return 0
	}

	candidate, ok := meta["flags"]
	if !ok {
		candidate, ok = meta["Flags"]
	}
	if !ok {
		return 0
	}

	switch v := candidate.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case int:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint64:
		return v
	case float64:
		return uint64(v)
	case string:
		return parseFlagString(v)
	case []byte:
		return parseFlagString(string(v))
	default:
		return 0
	}
}

func parseFlagString(s string) uint64 {
	// Base 0 accepts plain decimal as well as 0x/0o prefixed forms.
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0
	}
	return n
}

// Convert maps an Apple flag bitfield to the two Mozilla status words.
func Convert(flags uint64) (status uint16, status2 uint32) {
	for _, mapping := range flagMappings {
		if flags&mapping.appleBit == 0 {
			continue
		}
		if mapping.mozilla <= 0xFFFF {
			status |= uint16(mapping.mozilla)
		} else {
			status2 |= mapping.mozilla
		}
	}

	attachments := (flags >> attachmentShift) & attachmentMask
	if attachments != 0 && attachments != attachmentSentinel {
		status2 |= attachmentFlag
	}

	return status, status2
}

// Format renders the status words as fixed-width uppercase hexadecimal, the
// form Thunderbird stores in its headers.
func Format(status uint16, status2 uint32) (string, string) {
	return fmt.Sprintf("%04X", status), fmt.Sprintf("%08X", status2)
}
