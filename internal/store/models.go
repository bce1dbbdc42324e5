package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-sync/internal/render"
)

// Entry is the durable projection of one content file. Kind and slug
// identify it; every other column is rewritten on reconciliation.
type Entry struct {
	bun.BaseModel `bun:"table:entries,alias:e"`

	ID             uuid.UUID        `bun:",pk,type:uuid" json:"id"`
	Kind           string           `bun:"kind,notnull,unique:entries_kind_slug_key" json:"kind"`
	Slug           string           `bun:"slug,notnull,unique:entries_kind_slug_key" json:"slug"`
	Title          string           `bun:"title,notnull" json:"title"`
	Summary        string           `bun:"summary" json:"summary,omitempty"`
	Body           string           `bun:"body" json:"body"`
	BodyHTML       string           `bun:"body_html" json:"body_html"`
	ReadingMinutes int              `bun:"reading_minutes,notnull,default:0" json:"reading_minutes"`
	WordCount      int              `bun:"word_count,notnull,default:0" json:"word_count"`
	Outline        []render.Heading `bun:"outline,type:jsonb" json:"outline,omitempty"`
	Status         string           `bun:"status,notnull,default:'published'" json:"status"`
	PublishedAt    *time.Time       `bun:"published_at,nullzero" json:"published_at,omitempty"`
	AuthorID       *uuid.UUID       `bun:"author_id,type:uuid,nullzero" json:"author_id,omitempty"`
	Attributes     map[string]any   `bun:"attributes,type:jsonb" json:"attributes,omitempty"`
	SourcePath     string           `bun:"source_path,notnull" json:"source_path"`
	Revision       string           `bun:"revision,notnull" json:"revision"`
	RevisionSeq    int64            `bun:"revision_seq,notnull,default:0" json:"revision_seq"`
	Checksum       string           `bun:"checksum,notnull" json:"checksum"`
	CreatedAt      time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time        `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Author *Entry `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
}

// Label is a tag shared across entries.
type Label struct {
	bun.BaseModel `bun:"table:labels,alias:l"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Slug      string    `bun:"slug,notnull,unique" json:"slug"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// EntryLabel links an entry to a label. Position records the declared order
// at the time the association was inserted.
type EntryLabel struct {
	bun.BaseModel `bun:"table:entry_labels,alias:el"`

	EntryID   uuid.UUID `bun:"entry_id,pk,type:uuid" json:"entry_id"`
	LabelID   uuid.UUID `bun:"label_id,pk,type:uuid" json:"label_id"`
	Position  int       `bun:"position,notnull" json:"position"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Entry *Entry `bun:"rel:belongs-to,join:entry_id=id" json:"-"`
	Label *Label `bun:"rel:belongs-to,join:label_id=id" json:"-"`
}

// SearchDocument is the full-text projection of an entry.
type SearchDocument struct {
	bun.BaseModel `bun:"table:search_documents,alias:sd"`

	EntryID   uuid.UUID `bun:"entry_id,pk,type:uuid" json:"entry_id"`
	Kind      string    `bun:"kind,notnull" json:"kind"`
	Slug      string    `bun:"slug,notnull" json:"slug"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content" json:"content"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// LedgerRecord is one append-only audit row.
type LedgerRecord struct {
	bun.BaseModel `bun:"table:sync_ledger,alias:sl"`

	ID          uuid.UUID `bun:",pk,type:uuid" json:"id"`
	ChangesetID string    `bun:"changeset_id,notnull" json:"changeset_id"`
	Operation   string    `bun:"operation,notnull" json:"operation"`
	EntityKind  string    `bun:"entity_kind" json:"entity_kind,omitempty"`
	EntitySlug  string    `bun:"entity_slug" json:"entity_slug,omitempty"`
	SourcePath  string    `bun:"source_path,notnull" json:"source_path"`
	Revision    string    `bun:"revision,notnull" json:"revision"`
	Outcome     string    `bun:"outcome,notnull" json:"outcome"`
	Reason      string    `bun:"reason" json:"reason,omitempty"`
	ErrorCode   string    `bun:"error_code" json:"error_code,omitempty"`
	ErrorDetail string    `bun:"error_detail" json:"error_detail,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
