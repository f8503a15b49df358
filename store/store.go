// Package store walks Apple Mail's on-disk mail store (~/Library/Mail/V10
// and friends) and summarizes the mailbox hierarchy it finds.
package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"

	"github.com/mailport/mailport/model"
)

// MailboxSuffix marks a directory as a mailbox folder.
const MailboxSuffix = ".mbox"

// messagesDir is the reserved container holding the actual message files.
const messagesDir = "Messages"

// Infrastructure directories that never contribute mailbox content or path
// segments.
var skipDirectories = map[string]struct{}{
	"Attachments":         {},
	"Attachments.noindex": {},
	"Data":                {},
	"Info.plist":          {},
	"Messages":            {},
	"Resources":           {},
	"MailData":            {},
}

// Summarize returns summaries for each mailbox beneath root, sorted
// case-insensitively by display path. The root may be the top-level store
// directory, an account subdirectory, or a single mailbox directory.
func Summarize(root string) ([]model.MailboxSummary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("mail store not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mail store is not a directory: %s", root)
	}

	var summaries []model.MailboxSummary
	collect := func(dir string, segments []model.NameSegment) error {
		stored, partial, err := countMessages(dir)
		if err != nil {
			return err
		}
		values := make([]string, len(segments))
		for i, segment := range segments {
			values[i] = segment.Value
		}
		summaries = append(summaries, model.MailboxSummary{
			DisplayPath:     strings.Join(values, "/"),
			Dir:             dir,
			StoredMessages:  stored,
			PartialMessages: partial,
			Segments:        segments,
		})
		return nil
	}

	if strings.HasSuffix(filepath.Base(root), MailboxSuffix) {
		segments := []model.NameSegment{{Value: displayName(root)}}
		if err := collect(root, segments); err != nil {
			return nil, err
		}
		if err := walkChildMailboxes(root, segments, false, collect); err != nil {
			return nil, err
		}
	} else {
		include := includeDirectoryNames(root)
		if err := walkChildMailboxes(root, nil, include, collect); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].DisplayPath) < strings.ToLower(summaries[j].DisplayPath)
	})
	return summaries, nil
}

// includeDirectoryNames decides whether intermediate directory names above
// mailbox territory become path segments. Single-account roots, where every
// relevant child is already a mailbox, keep flat names; anything else gets
// prefixed with its account folder.
func includeDirectoryNames(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, skip := skipDirectories[entry.Name()]; skip {
			continue
		}
		if !strings.HasSuffix(entry.Name(), MailboxSuffix) {
			return true
		}
	}
	return false
}

func walkChildMailboxes(dir string, parent []model.NameSegment, includeDirNames bool, collect func(string, []model.NameSegment) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store directory: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		child := filepath.Join(dir, name)

		if strings.HasSuffix(name, MailboxSuffix) {
			segments := appendSegment(parent, model.NameSegment{Value: displayName(child)})
			if err := collect(child, segments); err != nil {
				return err
			}
			if err := walkChildMailboxes(child, segments, includeDirNames, collect); err != nil {
				return err
			}
			continue
		}

		// Ordinary subdirectories stop contributing once we are inside
		// mailbox territory.
		if len(parent) > 0 {
			continue
		}
		if _, skip := skipDirectories[name]; skip {
			continue
		}
		next := parent
		if includeDirNames {
			next = appendSegment(parent, model.NameSegment{Value: name, IsDirectory: true})
		}
		if err := walkChildMailboxes(child, next, includeDirNames, collect); err != nil {
			return err
		}
	}
	return nil
}

func appendSegment(parent []model.NameSegment, segment model.NameSegment) []model.NameSegment {
	segments := make([]model.NameSegment, 0, len(parent)+1)
	segments = append(segments, parent...)
	return append(segments, segment)
}

// displayName resolves the human-readable mailbox name from the Info.plist
// descriptor, falling back to the directory name with the suffix stripped.
func displayName(mailboxDir string) string {
	data, err := os.ReadFile(filepath.Join(mailboxDir, "Info.plist"))
	if err == nil {
		var info struct {
			MailboxName string `plist:"MailboxName"`
		}
		if _, err := plist.Unmarshal(data, &info); err == nil {
			if name := strings.TrimSpace(info.MailboxName); name != "" {
				return name
			}
		}
	}
	return strings.TrimSuffix(filepath.Base(mailboxDir), MailboxSuffix)
}

// countMessages counts full and partial message files beneath a mailbox,
// scoped to Messages containers and never crossing into nested mailboxes.
func countMessages(mailboxDir string) (stored, partial int, err error) {
	err = walkMailboxFiles(mailboxDir, func(path string, isPartial bool) {
		if isPartial {
			partial++
		} else {
			stored++
		}
	})
	return stored, partial, err
}

// Messages returns the message files belonging to a mailbox, sorted by path.
func Messages(summary model.MailboxSummary) ([]model.MessageRef, error) {
	var refs []model.MessageRef
	err := walkMailboxFiles(summary.Dir, func(path string, isPartial bool) {
		refs = append(refs, model.MessageRef{Path: path, Partial: isPartial})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func walkMailboxFiles(mailboxDir string, visit func(path string, partial bool)) error {
	return filepath.WalkDir(mailboxDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != mailboxDir && strings.HasSuffix(d.Name(), MailboxSuffix) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(mailboxDir, path)
		if err != nil {
			return err
		}
		if !underMessages(rel) {
			return nil
		}
		switch {
		case strings.HasSuffix(d.Name(), ".partial.emlx"):
			visit(path, true)
		case strings.HasSuffix(d.Name(), ".emlx"):
			visit(path, false)
		}
		return nil
	})
}

// underMessages reports whether a mailbox-relative file path sits inside a
// Messages container.
func underMessages(rel string) bool {
	dir := filepath.Dir(rel)
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		if part == messagesDir {
			return true
		}
	}
	return false
}
