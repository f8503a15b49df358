package model

// NameSegment is one element of a mailbox display path. Directory segments
// come from account-level folders above mailbox territory; the rest are
// mailboxes themselves.
type NameSegment struct {
	Value       string
	IsDirectory bool
}

// MailboxSummary describes one mailbox discovered in an Apple Mail store.
type MailboxSummary struct {
	DisplayPath     string
	Dir             string
	StoredMessages  int
	PartialMessages int
	Segments        []NameSegment
}

// MessageRef points at one message file inside a mailbox.
type MessageRef struct {
	Path    string
	Partial bool
}

// CompositeKey is the normalized five-field header identity used to match
// message copies across mailboxes and sources.
type CompositeKey struct {
	MessageID string
	Date      string
	From      string
	To        string
	Subject   string
}

// Zero reports whether every key field is empty. An all-empty key carries no
// identity and must never be used for matching.
func (k CompositeKey) Zero() bool {
	return k == CompositeKey{}
}

// Fields returns the key components in canonical order.
func (k CompositeKey) Fields() []string {
	return []string{k.MessageID, k.Date, k.From, k.To, k.Subject}
}

// FullEntry is the canonical complete copy of a message. When duplicates
// exist, the largest copy wins.
type FullEntry struct {
	Key            CompositeKey
	Path           string
	Mailbox        string
	Size           int64
	DuplicateCount int
	MismatchedSize bool
}

// PartialEntry is a truncated message awaiting recovery. ResolvedPath is the
// canonical full copy once matched, empty otherwise.
type PartialEntry struct {
	Key            CompositeKey
	Path           string
	Mailbox        string
	ResolvedPath   string
	DuplicateCount int
	SizeMismatch   bool
}

// ScanReport aggregates the results of one mail store scan.
type ScanReport struct {
	TotalFullMessages    int
	TotalPartialMessages int
	ResolvedPartials     int
	UnresolvedPartials   int
	DuplicateKeys        int
	DuplicateMessages    int
	MismatchedSizeKeys   int
	Partials             []PartialEntry
}

// ExportSummary describes one mailbox inside an exported .mbox bundle.
// IndexedMessages comes from the bundle's table of contents and may exceed
// the number of message files actually present.
type ExportSummary struct {
	DisplayPath     string
	Dir             string
	StoredMessages  int
	IndexedMessages int
}

// MailboxMismatch flags an export mailbox whose on-disk contents disagree
// with its table of contents.
type MailboxMismatch struct {
	DisplayPath     string
	FullMessages    int
	IndexedMessages int
	PartialMessages int
	MissingMessages int
}

// ExportScanReport aggregates the results of scanning an export bundle.
type ExportScanReport struct {
	TotalMailboxes       int
	TotalFullMessages    int
	TotalPartialMessages int
	TotalIndexedMessages int
	TotalMissingMessages int
	MismatchedMailboxes  []MailboxMismatch
}

// MigrationStats summarizes one migration run.
type MigrationStats struct {
	ProcessedMailboxes int
	MigratedMailboxes  int
	MigratedMessages   int
	RecoveredPartials  int
	RecoveredMissing   int
	UnresolvedPartials int
	SkippedByPrefix    int
	DryRun             bool
}
