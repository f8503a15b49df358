// Package filter narrows a migration or scan to a subset of mailboxes.
package filter

import "strings"

// Prefix selects mailboxes by a case-sensitive display-path prefix. There is
// no path-segment awareness: "A" matches both "Archive" and "A/Sub". The
// zero value matches everything.
type Prefix struct {
	value string
}

// New creates a prefix filter. An empty prefix matches all mailboxes.
func New(prefix string) Prefix {
	return Prefix{value: prefix}
}

// Matches reports whether a mailbox display path passes the filter.
func (p Prefix) Matches(displayPath string) bool {
	return p.value == "" || strings.HasPrefix(displayPath, p.value)
}
