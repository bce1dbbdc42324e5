// Package catalog is the read side over reconciled content: lookups by
// slug, listings, label navigation and full-text search. Single-record
// lookups can be cached; the cache is invalidated after every changeset.
package catalog

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-content-sync/internal/identity"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncerr"
)

const (
	entryNamespace = "entry"
	labelNamespace = "label"
)

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return syncerr.ErrNotFound
}

// Catalog answers read queries.
type Catalog struct {
	db           *bun.DB
	entries      repository.Repository[*store.Entry]
	labels       repository.Repository[*store.Label]
	cacheService cache.CacheService
}

// New creates a catalog without caching.
func New(db *bun.DB) *Catalog {
	return NewWithCache(db, nil, nil)
}

// NewWithCache creates a catalog whose single-record lookups go through the
// cache service.
func NewWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *Catalog {
	entries := NewEntryRepository(db)
	labels := NewLabelRepository(db)
	var svc cache.CacheService
	if cacheService != nil && serializer != nil {
		entries = repositorycache.New(entries, cacheService, serializer)
		labels = repositorycache.New(labels, cacheService, serializer)
		svc = cacheService
	}
	return &Catalog{db: db, entries: entries, labels: labels, cacheService: svc}
}

// EntryBySlug returns the entry of kind identified by slug.
func (c *Catalog) EntryBySlug(ctx context.Context, kind, slug string) (*store.Entry, error) {
	id := identity.EntryUUID(kind, slug)
	record, err := c.entries.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "entry", kind+"/"+slug)
	}
	return record, nil
}

// EntryByID returns the entry with id.
func (c *Catalog) EntryByID(ctx context.Context, id uuid.UUID) (*store.Entry, error) {
	record, err := c.entries.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "entry", id.String())
	}
	return record, nil
}

// LabelBySlug returns the label with slug.
func (c *Catalog) LabelBySlug(ctx context.Context, slug string) (*store.Label, error) {
	record, err := c.labels.GetByIdentifier(ctx, slug)
	if err != nil {
		return nil, mapRepositoryError(err, "label", slug)
	}
	return record, nil
}

// ListEntries pages through entries of kind ordered by slug. An empty kind
// lists every kind. It returns the page and the total count.
func (c *Catalog) ListEntries(ctx context.Context, kind string, limit, offset int) ([]*store.Entry, int, error) {
	var records []*store.Entry
	q := c.db.NewSelect().Model(&records)
	if kind != "" {
		q = q.Where("?TableAlias.kind = ?", kind)
	}
	q = q.OrderExpr("?TableAlias.kind ASC, ?TableAlias.slug ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list entries: %w", err)
	}
	return records, total, nil
}

// LabelsForEntry returns the labels of an entry in declared order.
func (c *Catalog) LabelsForEntry(ctx context.Context, entryID uuid.UUID) ([]*store.Label, error) {
	var records []*store.Label
	err := c.db.NewSelect().
		Model(&records).
		Join("JOIN entry_labels AS el ON el.label_id = ?TableAlias.id").
		Where("el.entry_id = ?", entryID).
		OrderExpr("el.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: labels for entry: %w", err)
	}
	return records, nil
}

// EntriesByLabel returns the entries carrying the label, newest first.
func (c *Catalog) EntriesByLabel(ctx context.Context, labelSlug string) ([]*store.Entry, error) {
	var records []*store.Entry
	err := c.db.NewSelect().
		Model(&records).
		Join("JOIN entry_labels AS el ON el.entry_id = ?TableAlias.id").
		Join("JOIN labels AS lb ON lb.id = el.label_id").
		Where("lb.slug = ?", labelSlug).
		OrderExpr("?TableAlias.published_at DESC, ?TableAlias.slug ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: entries by label: %w", err)
	}
	return records, nil
}

// Search matches term against search documents. Postgres uses the tsvector
// index; other dialects fall back to a case-insensitive substring match.
func (c *Catalog) Search(ctx context.Context, term string, limit int) ([]*store.SearchDocument, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var records []*store.SearchDocument
	q := c.db.NewSelect().Model(&records).Limit(limit)
	if c.db.Dialect().Name() == dialect.PG {
		q = q.Where("?TableAlias.tsv @@ plainto_tsquery('simple', ?)", term).
			OrderExpr("ts_rank(?TableAlias.tsv, plainto_tsquery('simple', ?)) DESC", term)
	} else {
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(?TableAlias.title) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.content) LIKE ?", pattern)
		}).OrderExpr("?TableAlias.updated_at DESC")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	return records, nil
}

// InvalidateCache drops cached lookups. It is a no-op without a cache.
func (c *Catalog) InvalidateCache(ctx context.Context) error {
	if c.cacheService == nil {
		return nil
	}
	for _, namespace := range []string{entryNamespace, labelNamespace} {
		if err := c.cacheService.DeleteByPrefix(ctx, cachePrefix(namespace)); err != nil {
			return err
		}
	}
	return nil
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}

func cachePrefix(namespace string) string {
	return namespace + cache.KeySeparator
}
