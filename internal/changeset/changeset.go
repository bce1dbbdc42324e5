// Package changeset turns change notifications into normalized, deduplicated
// lists of (path, operation) entries restricted to recognized content roots.
package changeset

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/identity"
)

// Operation is the action applied to one path.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// ParseOperation accepts both operation names and notification list names.
func ParseOperation(value string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "upsert", "added", "add", "modified", "modify":
		return OpUpsert, nil
	case "delete", "removed", "remove":
		return OpDelete, nil
	}
	return "", fmt.Errorf("changeset: unknown operation %q", value)
}

// Revision identifies the repository state a changeset targets. Seq orders
// revisions; zero means the order cannot be determined.
type Revision struct {
	ID  string `json:"id"`
	Seq int64  `json:"seq,omitempty"`
}

// Newer reports whether r is strictly ordered after other.
func (r Revision) Newer(other Revision) bool {
	return r.Seq > 0 && other.Seq > 0 && r.Seq > other.Seq
}

// Entry is one normalized changeset item.
type Entry struct {
	Path      string        `json:"path"`
	Operation Operation     `json:"operation"`
	Kind      document.Kind `json:"kind"`
}

// Changeset is the unit of work handed to the orchestrator.
type Changeset struct {
	ID       string   `json:"id"`
	Revision Revision `json:"revision"`
	Origin   string   `json:"origin,omitempty"`
	Entries  []Entry  `json:"entries"`
}

// Len returns the number of entries.
func (c Changeset) Len() int {
	return len(c.Entries)
}

// Notification is the generic inbound payload.
type Notification struct {
	Revision  string    `json:"revision"`
	Sequence  int64     `json:"sequence,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Added     []string  `json:"added,omitempty"`
	Modified  []string  `json:"modified,omitempty"`
	Removed   []string  `json:"removed,omitempty"`
}

// RevisionInfo derives the ordered revision from a notification.
func (n Notification) RevisionInfo() Revision {
	rev := Revision{ID: strings.TrimSpace(n.Revision), Seq: n.Sequence}
	if rev.Seq <= 0 && !n.Timestamp.IsZero() {
		rev.Seq = n.Timestamp.Unix()
	}
	return rev
}

// ExplicitEntry is one item of an administrative path list.
type ExplicitEntry struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
}

// Extractor filters and normalizes changes.
type Extractor struct {
	roots     document.Roots
	extension string
}

// NewExtractor builds an extractor for the given roots and file extension.
func NewExtractor(roots document.Roots, extension string) *Extractor {
	if len(roots) == 0 {
		roots = document.DefaultRoots()
	}
	extension = strings.ToLower(strings.TrimSpace(extension))
	if extension == "" {
		extension = ".md"
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return &Extractor{roots: roots, extension: extension}
}

// Roots exposes the configured content roots.
func (x *Extractor) Roots() document.Roots {
	return x.roots
}

// Classify cleans a repository path and reports the kind that owns it.
func (x *Extractor) Classify(raw string) (string, document.Kind, bool) {
	cleaned, ok := cleanPath(raw)
	if !ok {
		return "", "", false
	}
	if !strings.EqualFold(path.Ext(cleaned), x.extension) {
		return "", "", false
	}
	if strings.HasPrefix(path.Base(cleaned), ".") {
		return "", "", false
	}
	kind, ok := x.roots.KindFor(cleaned)
	if !ok {
		return "", "", false
	}
	return cleaned, kind, true
}

// Extract normalizes a notification. Paths listed as removed win over any
// added or modified listing of the same path.
func (x *Extractor) Extract(n Notification) Changeset {
	acc := newAccumulator(x)
	for _, p := range n.Added {
		acc.add(p, OpUpsert)
	}
	for _, p := range n.Modified {
		acc.add(p, OpUpsert)
	}
	for _, p := range n.Removed {
		acc.add(p, OpDelete)
	}
	return acc.build(n.RevisionInfo(), "notification")
}

// FromExplicit normalizes an administrative list at a revision.
func (x *Extractor) FromExplicit(rev Revision, entries []ExplicitEntry) (Changeset, error) {
	if err := ValidateRevision(rev.ID); err != nil {
		return Changeset{}, err
	}
	acc := newAccumulator(x)
	for _, entry := range entries {
		op, err := ParseOperation(entry.Operation)
		if err != nil {
			return Changeset{}, fmt.Errorf("%s: %w", entry.Path, err)
		}
		acc.add(entry.Path, op)
	}
	return acc.build(rev, "explicit"), nil
}

// FullResync builds an all-upsert changeset from an enumeration of files.
func (x *Extractor) FullResync(rev Revision, paths []string) Changeset {
	acc := newAccumulator(x)
	for _, p := range paths {
		acc.add(p, OpUpsert)
	}
	return acc.build(rev, "resync")
}

type accumulator struct {
	x     *Extractor
	order []string
	ops   map[string]Entry
}

func newAccumulator(x *Extractor) *accumulator {
	return &accumulator{x: x, ops: map[string]Entry{}}
}

func (a *accumulator) add(raw string, op Operation) {
	cleaned, kind, ok := a.x.Classify(raw)
	if !ok {
		return
	}
	existing, seen := a.ops[cleaned]
	if !seen {
		a.order = append(a.order, cleaned)
		a.ops[cleaned] = Entry{Path: cleaned, Operation: op, Kind: kind}
		return
	}
	if op == OpDelete && existing.Operation != OpDelete {
		existing.Operation = OpDelete
		a.ops[cleaned] = existing
	}
}

func (a *accumulator) build(rev Revision, origin string) Changeset {
	entries := make([]Entry, 0, len(a.order))
	keys := make([]string, 0, len(a.order))
	for _, p := range a.order {
		entry := a.ops[p]
		entries = append(entries, entry)
		keys = append(keys, string(entry.Operation)+":"+entry.Path)
	}
	return Changeset{
		ID:       identity.ChangesetID(rev.ID, keys),
		Revision: rev,
		Origin:   origin,
		Entries:  entries,
	}
}

func cleanPath(raw string) (string, bool) {
	p := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	p = path.Clean(strings.TrimLeft(p, "/"))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}
