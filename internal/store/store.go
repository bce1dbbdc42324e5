// Package store persists reconciled content in a relational database through
// bun. It owns the schema and implements the transactional contract the
// reconciler writes through.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// Tx is the set of writes and reads a reconciliation performs atomically.
type Tx interface {
	FindEntry(ctx context.Context, kind, slug string) (*Entry, error)
	FindEntryByPath(ctx context.Context, kind, sourcePath string) (*Entry, error)
	// UpsertEntry inserts or updates the entry keyed by (kind, slug). Unless
	// force is set the update only applies when the incoming revision is
	// newer, ordering is unknown, or the checksum changed at the same
	// revision. It reports whether a row was written.
	UpsertEntry(ctx context.Context, entry *Entry, force bool) (bool, error)
	DeleteEntry(ctx context.Context, id uuid.UUID) (bool, error)

	EnsureLabels(ctx context.Context, labels []Label) ([]Label, error)
	ListEntryLabels(ctx context.Context, entryID uuid.UUID) ([]EntryLabel, error)
	InsertEntryLabels(ctx context.Context, rows []EntryLabel) error
	DeleteEntryLabels(ctx context.Context, entryID uuid.UUID, labelIDs []uuid.UUID) (int64, error)

	UpsertSearchDocument(ctx context.Context, doc *SearchDocument) error
}

// BunStore runs transactions against a bun database.
type BunStore struct {
	db          *bun.DB
	maxAttempts int
	backoff     time.Duration
}

// Option customises a BunStore.
type Option func(*BunStore)

// WithTxRetries sets how many times a transaction failing on contention is
// attempted and the pause between attempts.
func WithTxRetries(attempts int, backoff time.Duration) Option {
	return func(s *BunStore) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// New wraps db.
func New(db *bun.DB, opts ...Option) *BunStore {
	s := &BunStore{db: db, maxAttempts: 3, backoff: 25 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DB exposes the underlying handle for read-side repositories.
func (s *BunStore) DB() *bun.DB {
	return s.db
}

// RunInTx executes fn inside a transaction, retrying the whole function when
// the database reports lock contention. Exhausted retries surface as
// StoreWriteConflict.
func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, &bunTx{tx: tx})
		})
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return conflict("", err)
}

type bunTx struct {
	tx bun.Tx
}

func (t *bunTx) FindEntry(ctx context.Context, kind, slug string) (*Entry, error) {
	entry := new(Entry)
	err := t.tx.NewSelect().
		Model(entry).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.slug = ?", slug).
		Limit(1).
		Scan(ctx)
	return entryOrNotFound(entry, err, kind+"/"+slug)
}

func (t *bunTx) FindEntryByPath(ctx context.Context, kind, sourcePath string) (*Entry, error) {
	entry := new(Entry)
	err := t.tx.NewSelect().
		Model(entry).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.source_path = ?", sourcePath).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	return entryOrNotFound(entry, err, sourcePath)
}

func entryOrNotFound(entry *Entry, err error, ref string) (*Entry, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, syncerr.New(syncerr.KindNotFound, ref, syncerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find entry %s: %w", ref, err)
	}
	return entry, nil
}

const upsertEntrySQL = `INSERT INTO entries (
	id, kind, slug, title, summary, body, body_html, reading_minutes, word_count,
	outline, status, published_at, author_id, attributes, source_path, revision,
	revision_seq, checksum, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (kind, slug) DO UPDATE SET
	title = excluded.title,
	summary = excluded.summary,
	body = excluded.body,
	body_html = excluded.body_html,
	reading_minutes = excluded.reading_minutes,
	word_count = excluded.word_count,
	outline = excluded.outline,
	status = excluded.status,
	published_at = excluded.published_at,
	author_id = excluded.author_id,
	attributes = excluded.attributes,
	source_path = excluded.source_path,
	revision = excluded.revision,
	revision_seq = excluded.revision_seq,
	checksum = excluded.checksum,
	updated_at = excluded.updated_at`

const upsertEntryGuard = `
WHERE excluded.revision_seq = 0
	OR entries.revision_seq = 0
	OR entries.revision_seq < excluded.revision_seq
	OR (entries.revision_seq = excluded.revision_seq AND entries.checksum <> excluded.checksum)`

func (t *bunTx) UpsertEntry(ctx context.Context, entry *Entry, force bool) (bool, error) {
	if entry == nil {
		return false, errors.New("store: nil entry")
	}
	now := time.Now().UTC()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now
	}

	outline, err := jsonColumn(entry.Outline)
	if err != nil {
		return false, err
	}
	attributes, err := jsonColumn(entry.Attributes)
	if err != nil {
		return false, err
	}

	query := upsertEntrySQL
	if !force {
		query += upsertEntryGuard
	}
	res, err := t.tx.ExecContext(ctx, query,
		entry.ID, entry.Kind, entry.Slug, entry.Title, entry.Summary, entry.Body, entry.BodyHTML,
		entry.ReadingMinutes, entry.WordCount, outline, entry.Status, entry.PublishedAt,
		entry.AuthorID, attributes, entry.SourcePath, entry.Revision, entry.RevisionSeq,
		entry.Checksum, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, conflict(entry.SourcePath, err)
		}
		return false, fmt.Errorf("store: upsert entry %s/%s: %w", entry.Kind, entry.Slug, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: upsert entry rows: %w", err)
	}
	return affected > 0, nil
}

func (t *bunTx) DeleteEntry(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := t.tx.NewDelete().
		Model((*Entry)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, syncerr.Newf(syncerr.KindWriteConflict, "", "entry %s is still referenced", id)
		}
		return false, fmt.Errorf("store: delete entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete entry rows: %w", err)
	}
	return affected > 0, nil
}

// EnsureLabels creates missing labels without touching existing ones and
// returns every requested label as stored, in request order.
func (t *bunTx) EnsureLabels(ctx context.Context, labels []Label) ([]Label, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	slugs := make([]string, 0, len(labels))
	for i := range labels {
		label := labels[i]
		if label.ID == uuid.Nil {
			label.ID = uuid.New()
		}
		if label.CreatedAt.IsZero() {
			label.CreatedAt = now
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO labels (id, slug, name, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (slug) DO NOTHING`,
			label.ID, label.Slug, label.Name, label.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: ensure label %s: %w", label.Slug, err)
		}
		slugs = append(slugs, label.Slug)
	}

	var stored []Label
	if err := t.tx.NewSelect().
		Model(&stored).
		Where("?TableAlias.slug IN (?)", bun.In(slugs)).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("store: load labels: %w", err)
	}
	bySlug := make(map[string]Label, len(stored))
	for _, label := range stored {
		bySlug[label.Slug] = label
	}
	out := make([]Label, 0, len(slugs))
	for _, slug := range slugs {
		label, ok := bySlug[slug]
		if !ok {
			return nil, fmt.Errorf("store: label %s missing after insert", slug)
		}
		out = append(out, label)
	}
	return out, nil
}

func (t *bunTx) ListEntryLabels(ctx context.Context, entryID uuid.UUID) ([]EntryLabel, error) {
	var rows []EntryLabel
	if err := t.tx.NewSelect().
		Model(&rows).
		Relation("Label").
		Where("?TableAlias.entry_id = ?", entryID).
		OrderExpr("?TableAlias.position ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("store: list entry labels: %w", err)
	}
	return rows, nil
}

func (t *bunTx) InsertEntryLabels(ctx context.Context, rows []EntryLabel) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
	}
	if _, err := t.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		if IsForeignKeyViolation(err) {
			return conflict("", err)
		}
		return fmt.Errorf("store: insert entry labels: %w", err)
	}
	return nil
}

func (t *bunTx) DeleteEntryLabels(ctx context.Context, entryID uuid.UUID, labelIDs []uuid.UUID) (int64, error) {
	if len(labelIDs) == 0 {
		return 0, nil
	}
	res, err := t.tx.NewDelete().
		Model((*EntryLabel)(nil)).
		Where("entry_id = ?", entryID).
		Where("label_id IN (?)", bun.In(labelIDs)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: delete entry labels: %w", err)
	}
	return res.RowsAffected()
}

func (t *bunTx) UpsertSearchDocument(ctx context.Context, doc *SearchDocument) error {
	if doc == nil {
		return nil
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO search_documents (entry_id, kind, slug, title, content, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (entry_id) DO UPDATE SET
	kind = excluded.kind,
	slug = excluded.slug,
	title = excluded.title,
	content = excluded.content,
	updated_at = excluded.updated_at`,
		doc.EntryID, doc.Kind, doc.Slug, doc.Title, doc.Content, doc.UpdatedAt,
	); err != nil {
		return fmt.Errorf("store: upsert search document: %w", err)
	}
	return nil
}

func jsonColumn(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(v) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: encode json column: %w", err)
	}
	if s := strings.TrimSpace(string(raw)); s == "null" {
		return nil, nil
	}
	return string(raw), nil
}
