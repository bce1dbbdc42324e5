// Package document decodes fetched content files into typed documents:
// metadata is split from the body, validated against the schema of the
// document kind and the canonical slug is derived.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-content-sync/internal/syncerr"
	"github.com/goliatone/go-content-sync/internal/validation"
)

// Status values stored on entities.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Label is a declared label with its normalized slug and display name.
type Label struct {
	Slug string
	Name string
}

// Document is the decoded form of one content file.
type Document struct {
	Kind        Kind
	Slug        string
	Path        string
	Title       string
	Summary     string
	Status      string
	PublishedAt *time.Time
	AuthorSlug  string
	Labels      []Label
	Attributes  map[string]any
	Metadata    map[string]any
	Body        []byte
	Checksum    string
}

// LabelSlugs returns the label slugs in declared order.
func (d *Document) LabelSlugs() []string {
	out := make([]string, 0, len(d.Labels))
	for _, label := range d.Labels {
		out = append(out, label.Slug)
	}
	return out
}

// Decode parses raw bytes fetched from path as a document of kind.
func Decode(path string, kind Kind, raw []byte) (*Document, error) {
	v, ok := variants[kind]
	if !ok {
		return nil, syncerr.Newf(syncerr.KindMalformed, path, "unknown document kind %q", kind)
	}

	meta, body, err := SplitFrontMatter(path, raw)
	if err != nil {
		return nil, err
	}

	var issues []syncerr.Issue
	if err := v.schema.Validate(meta); err != nil {
		for _, issue := range validation.Issues(err) {
			issues = append(issues, syncerr.Issue{Field: issue.Location, Message: issue.Message})
		}
	}

	doc := &Document{
		Kind:       kind,
		Path:       path,
		Title:      strings.TrimSpace(stringField(meta, v.titleField)),
		Summary:    strings.TrimSpace(stringField(meta, "summary")),
		Status:     resolveStatus(meta),
		Metadata:   meta,
		Attributes: attributes(meta),
		Body:       body,
		Checksum:   checksum(raw),
	}

	if explicit, ok := meta["slug"].(string); ok && strings.TrimSpace(explicit) != "" {
		doc.Slug = NormalizeSlug(explicit)
	} else {
		doc.Slug = SlugFromPath(path, v.stripDate)
	}
	if doc.Slug == "" {
		issues = append(issues, syncerr.Issue{Field: "/slug", Message: "slug cannot be derived"})
	}

	if raw := stringField(meta, "date"); raw != "" {
		ts, err := ParseDate(raw)
		if err != nil {
			issues = append(issues, syncerr.Issue{Field: "/date", Message: err.Error()})
		} else {
			doc.PublishedAt = &ts
		}
	}
	if raw := stringField(meta, "updated"); raw != "" {
		if _, err := ParseDate(raw); err != nil {
			issues = append(issues, syncerr.Issue{Field: "/updated", Message: err.Error()})
		}
	}

	if v.hasAuthor {
		if author := stringField(meta, "author"); strings.TrimSpace(author) != "" {
			doc.AuthorSlug = NormalizeSlug(author)
			if doc.AuthorSlug == "" {
				issues = append(issues, syncerr.Issue{Field: "/author", Message: "author reference is not a valid slug"})
			}
		}
	}
	if v.hasLabels {
		doc.Labels = labels(meta)
	}

	if len(issues) > 0 {
		return nil, &syncerr.ValidationError{Path: path, Issues: dedupeIssues(issues)}
	}
	return doc, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate accepts a calendar date or an RFC3339 style timestamp. Values
// without a zone are read as UTC.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", trimmed)
}

func resolveStatus(meta map[string]any) string {
	if status := strings.ToLower(strings.TrimSpace(stringField(meta, "status"))); status != "" {
		return status
	}
	if draft, _ := meta["draft"].(bool); draft {
		return StatusDraft
	}
	return StatusPublished
}

func labels(meta map[string]any) []Label {
	var names []string
	for _, key := range []string{"tags", "labels"} {
		switch typed := meta[key].(type) {
		case string:
			for _, part := range strings.Split(typed, ",") {
				names = append(names, part)
			}
		case []any:
			for _, item := range typed {
				if s, ok := item.(string); ok {
					names = append(names, s)
				}
			}
		}
	}

	seen := map[string]bool{}
	out := make([]Label, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		s := NormalizeSlug(name)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, Label{Slug: s, Name: name})
	}
	return out
}

func attributes(meta map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range meta {
		if consumedFields[key] {
			continue
		}
		out[key] = value
	}
	return out
}

func stringField(meta map[string]any, key string) string {
	value, _ := meta[key].(string)
	return value
}

func checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func dedupeIssues(issues []syncerr.Issue) []syncerr.Issue {
	seen := map[string]bool{}
	out := issues[:0]
	for _, issue := range issues {
		key := issue.Field + "|" + issue.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, issue)
	}
	return out
}
