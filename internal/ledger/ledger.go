// Package ledger keeps the append-only audit trail of reconciliation
// attempts. Recording never fails the caller: persistence errors are logged.
package ledger

import (
	"context"
	"sync"
	"time"
)

// Outcome is the terminal state of one changeset entry.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Entry is one ledger line.
type Entry struct {
	ChangesetID string    `json:"changeset_id"`
	Operation   string    `json:"operation"`
	EntityKind  string    `json:"entity_kind,omitempty"`
	EntitySlug  string    `json:"entity_slug,omitempty"`
	SourcePath  string    `json:"source_path"`
	Revision    string    `json:"revision"`
	Outcome     Outcome   `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	ErrorCode   string    `json:"error_code,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ledger records entries.
type Ledger interface {
	Record(ctx context.Context, entry Entry)
}

// Filter narrows ledger queries. Empty fields match everything.
type Filter struct {
	ChangesetID string
	SourcePath  string
	Revision    string
	Outcome     Outcome
	Limit       int
	Offset      int
}

// Reader lists recorded entries, newest first.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
}

// Memory is an in-process ledger used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Record(_ context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
}

// Entries returns a copy of everything recorded, in record order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) List(_ context.Context, filter Filter) ([]Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if filter.matches(m.entries[i]) {
			matched = append(matched, m.entries[i])
		}
	}
	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (f Filter) matches(entry Entry) bool {
	switch {
	case f.ChangesetID != "" && entry.ChangesetID != f.ChangesetID:
		return false
	case f.SourcePath != "" && entry.SourcePath != f.SourcePath:
		return false
	case f.Revision != "" && entry.Revision != f.Revision:
		return false
	case f.Outcome != "" && entry.Outcome != f.Outcome:
		return false
	}
	return true
}
