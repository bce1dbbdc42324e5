// Package reconcile applies decoded documents to the store: entity upserts
// guarded by revision order, label association diffs and deletions. Every
// mutation of the relational store goes through this package.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/identity"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/render"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncerr"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// Skip reasons reported when a reconciliation leaves the store untouched.
const (
	ReasonStale     = "stale"
	ReasonUnchanged = "unchanged"
	ReasonNotFound  = "not_found"
)

// Store opens transactions over the relational store.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error
}

// Input is one decoded and rendered document targeted at a revision.
type Input struct {
	Document *document.Document
	Rendered render.Result
	Revision changeset.Revision
	// Force bypasses revision ordering, used by full resyncs.
	Force bool
}

// Outcome describes what a reconciliation did. Reason is set whenever
// Applied is false.
type Outcome struct {
	Applied  bool
	Reason   string
	EntryID  uuid.UUID
	Kind     string
	Slug     string
	Revision string
	Labels   LabelDiff
}

// Skipped reports whether the store was left untouched.
func (o Outcome) Skipped() bool {
	return !o.Applied
}

// Reconciler writes documents through a Store.
type Reconciler struct {
	store  Store
	logger interfaces.Logger
	now    func() time.Time
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a reconciler over s.
func New(s Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  s,
		logger: logging.NoOp(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Reconcile upserts the entity described by in together with its label
// associations and search document in a single transaction.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (Outcome, error) {
	doc := in.Document
	if doc == nil {
		return Outcome{}, errors.New("reconcile: nil document")
	}
	kind := string(doc.Kind)
	logger := logging.WithDocument(r.logger, kind, doc.Slug, doc.Path, in.Revision.ID)

	var outcome Outcome
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		outcome = Outcome{Kind: kind, Slug: doc.Slug, Revision: in.Revision.ID}

		authorID, err := resolveAuthor(ctx, tx, doc)
		if err != nil {
			return err
		}

		existing, err := tx.FindEntry(ctx, kind, doc.Slug)
		if err != nil && !errors.Is(err, syncerr.ErrNotFound) {
			return err
		}
		if existing != nil {
			outcome.EntryID = existing.ID
			if existing.SourcePath != doc.Path {
				logger.Warn("reconcile.slug.path_changed", "previous_path", existing.SourcePath)
			}
			if reason := classify(existing, in); reason != "" {
				outcome.Reason = reason
				return nil
			}
		}

		entry := r.buildEntry(in, existing, authorID)
		applied, err := tx.UpsertEntry(ctx, entry, in.Force)
		if err != nil {
			return err
		}
		if !applied {
			// A concurrent reconciliation committed a newer revision first.
			outcome.Reason = ReasonStale
			return nil
		}
		outcome.EntryID = entry.ID

		diff, err := SyncLabels(ctx, tx, entry.ID, doc.Labels)
		if err != nil {
			return err
		}
		outcome.Labels = diff

		if err := tx.UpsertSearchDocument(ctx, &store.SearchDocument{
			EntryID:   entry.ID,
			Kind:      kind,
			Slug:      doc.Slug,
			Title:     doc.Title,
			Content:   in.Rendered.PlainText,
			UpdatedAt: entry.UpdatedAt,
		}); err != nil {
			return err
		}
		outcome.Applied = true
		return nil
	})
	if err != nil {
		return Outcome{Kind: kind, Slug: doc.Slug, Revision: in.Revision.ID}, err
	}

	if outcome.Applied {
		logger.Debug("reconcile.applied",
			"labels_inserted", len(outcome.Labels.Inserted),
			"labels_deleted", len(outcome.Labels.Deleted),
		)
	} else {
		logger.Debug("reconcile.skipped", "reason", outcome.Reason)
	}
	return outcome, nil
}

func resolveAuthor(ctx context.Context, tx store.Tx, doc *document.Document) (*uuid.UUID, error) {
	if doc.AuthorSlug == "" {
		return nil, nil
	}
	author, err := tx.FindEntry(ctx, string(document.KindAuthor), doc.AuthorSlug)
	if errors.Is(err, syncerr.ErrNotFound) {
		return nil, &syncerr.DanglingReferenceError{Field: "author", Kind: string(document.KindAuthor), Slug: doc.AuthorSlug}
	}
	if err != nil {
		return nil, err
	}
	return &author.ID, nil
}

// classify returns the skip reason for in against the stored entry, or an
// empty string when the write should proceed.
func classify(existing *store.Entry, in Input) string {
	if in.Force {
		return ""
	}
	stored := changeset.Revision{ID: existing.Revision, Seq: existing.RevisionSeq}
	if stored.Newer(in.Revision) {
		return ReasonStale
	}
	if existing.Checksum == in.Document.Checksum && !in.Revision.Newer(stored) {
		return ReasonUnchanged
	}
	return ""
}

func (r *Reconciler) buildEntry(in Input, existing *store.Entry, authorID *uuid.UUID) *store.Entry {
	doc := in.Document
	now := r.now()
	entry := &store.Entry{
		ID:             identity.EntryUUID(string(doc.Kind), doc.Slug),
		Kind:           string(doc.Kind),
		Slug:           doc.Slug,
		Title:          doc.Title,
		Summary:        doc.Summary,
		Body:           string(doc.Body),
		BodyHTML:       in.Rendered.HTML,
		ReadingMinutes: in.Rendered.ReadingMinutes,
		WordCount:      in.Rendered.WordCount,
		Outline:        in.Rendered.Outline,
		Status:         doc.Status,
		PublishedAt:    doc.PublishedAt,
		AuthorID:       authorID,
		Attributes:     doc.Attributes,
		SourcePath:     doc.Path,
		Revision:       in.Revision.ID,
		RevisionSeq:    in.Revision.Seq,
		Checksum:       doc.Checksum,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing != nil {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	}
	return entry
}
