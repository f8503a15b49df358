// Package stats renders scan and migration results for logs and JSON
// reports.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mailport/mailport/model"
)

// MigrationAttrs returns slog key-value attrs for a migration summary.
func MigrationAttrs(s *model.MigrationStats) []any {
	return []any{
		"processedMailboxes", s.ProcessedMailboxes,
		"migratedMailboxes", s.MigratedMailboxes,
		"migratedMessages", s.MigratedMessages,
		"recoveredPartials", s.RecoveredPartials,
		"recoveredMissing", s.RecoveredMissing,
		"unresolvedPartials", s.UnresolvedPartials,
		"skippedByPrefix", s.SkippedByPrefix,
		"dryRun", s.DryRun,
	}
}

// ScanAttrs returns slog key-value attrs for a scan summary.
func ScanAttrs(r *model.ScanReport) []any {
	return []any{
		"fullMessages", r.TotalFullMessages,
		"partialMessages", r.TotalPartialMessages,
		"resolvedPartials", r.ResolvedPartials,
		"unresolvedPartials", r.UnresolvedPartials,
		"duplicateKeys", r.DuplicateKeys,
		"duplicateMessages", r.DuplicateMessages,
		"mismatchedSizeKeys", r.MismatchedSizeKeys,
	}
}

type scanReportDoc struct {
	GeneratedAt string          `json:"generated_at"`
	StoreRoot   string          `json:"store_root"`
	Summary     scanSummaryDoc  `json:"summary"`
	Partials    []partialDoc    `json:"partials"`
}

type scanSummaryDoc struct {
	TotalFullMessages    int `json:"total_full_messages"`
	TotalPartialMessages int `json:"total_partial_messages"`
	ResolvedPartials     int `json:"resolved_partials"`
	UnresolvedPartials   int `json:"unresolved_partials"`
	DuplicateKeys        int `json:"duplicate_keys"`
	DuplicateMessages    int `json:"duplicate_messages"`
	MismatchedSizeKeys   int `json:"mismatched_size_keys"`
}

type partialDoc struct {
	Mailbox        string   `json:"mailbox"`
	Path           string   `json:"path"`
	ResolvedPath   *string  `json:"resolved_path"`
	DuplicateCount int      `json:"duplicate_count"`
	SizeMismatch   bool     `json:"size_mismatch"`
	Key            []string `json:"key"`
}

// WriteScanReport serializes a scan report to path as JSON, creating parent
// directories on demand.
func WriteScanReport(path string, report *model.ScanReport, storeRoot string) error {
	doc := scanReportDoc{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		StoreRoot:   storeRoot,
		Summary: scanSummaryDoc{
			TotalFullMessages:    report.TotalFullMessages,
			TotalPartialMessages: report.TotalPartialMessages,
			ResolvedPartials:     report.ResolvedPartials,
			UnresolvedPartials:   report.UnresolvedPartials,
			DuplicateKeys:        report.DuplicateKeys,
			DuplicateMessages:    report.DuplicateMessages,
			MismatchedSizeKeys:   report.MismatchedSizeKeys,
		},
		Partials: make([]partialDoc, 0, len(report.Partials)),
	}
	for _, entry := range report.Partials {
		doc.Partials = append(doc.Partials, partialDoc{
			Mailbox:        entry.Mailbox,
			Path:           entry.Path,
			ResolvedPath:   optionalString(entry.ResolvedPath),
			DuplicateCount: entry.DuplicateCount,
			SizeMismatch:   entry.SizeMismatch,
			Key:            entry.Key.Fields(),
		})
	}
	return writeJSON(path, doc)
}

type exportReportDoc struct {
	GeneratedAt string           `json:"generated_at"`
	ExportRoot  string           `json:"export_root"`
	Summary     exportSummaryDoc `json:"summary"`
	Mailboxes   []mismatchDoc    `json:"mailboxes"`
}

type exportSummaryDoc struct {
	TotalMailboxes       int `json:"total_mailboxes"`
	TotalFullMessages    int `json:"total_full_messages"`
	TotalPartialMessages int `json:"total_partial_messages"`
	TotalIndexedMessages int `json:"total_indexed_messages"`
	TotalMissingMessages int `json:"total_missing_messages"`
}

type mismatchDoc struct {
	Path            string `json:"path"`
	FullMessages    int    `json:"full_messages"`
	IndexedMessages int    `json:"indexed_messages"`
	PartialMessages int    `json:"partial_messages"`
	MissingMessages int    `json:"missing_messages"`
}

// WriteExportReport serializes an export scan report to path as JSON.
func WriteExportReport(path string, report *model.ExportScanReport, exportRoot string) error {
	doc := exportReportDoc{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		ExportRoot:  exportRoot,
		Summary: exportSummaryDoc{
			TotalMailboxes:       report.TotalMailboxes,
			TotalFullMessages:    report.TotalFullMessages,
			TotalPartialMessages: report.TotalPartialMessages,
			TotalIndexedMessages: report.TotalIndexedMessages,
			TotalMissingMessages: report.TotalMissingMessages,
		},
		Mailboxes: make([]mismatchDoc, 0, len(report.MismatchedMailboxes)),
	}
	for _, mismatch := range report.MismatchedMailboxes {
		doc.Mailboxes = append(doc.Mailboxes, mismatchDoc{
			Path:            mismatch.DisplayPath,
			FullMessages:    mismatch.FullMessages,
			IndexedMessages: mismatch.IndexedMessages,
			PartialMessages: mismatch.PartialMessages,
			MissingMessages: mismatch.MissingMessages,
		})
	}
	return writeJSON(path, doc)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
