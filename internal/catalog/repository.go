package catalog

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-sync/internal/store"
)

// NewEntryRepository creates a repository for entries.
func NewEntryRepository(db *bun.DB) repository.Repository[*store.Entry] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*store.Entry]{
		NewRecord: func() *store.Entry { return &store.Entry{} },
		GetID: func(e *store.Entry) uuid.UUID {
			return e.ID
		},
		SetID: func(e *store.Entry, id uuid.UUID) {
			e.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(e *store.Entry) string {
			return e.ID.String()
		},
	})
}

// NewLabelRepository creates a repository for labels keyed by slug.
func NewLabelRepository(db *bun.DB) repository.Repository[*store.Label] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*store.Label]{
		NewRecord: func() *store.Label { return &store.Label{} },
		GetID: func(l *store.Label) uuid.UUID {
			return l.ID
		},
		SetID: func(l *store.Label, id uuid.UUID) {
			l.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
		GetIdentifierValue: func(l *store.Label) string {
			return l.Slug
		},
	})
}
