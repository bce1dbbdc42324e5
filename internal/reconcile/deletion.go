package reconcile

import (
	"context"
	"errors"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// DeleteInput identifies the entity to remove either by slug or by the
// source path it was reconciled from. Revision guards against removing an
// entity that a newer revision already re-created.
type DeleteInput struct {
	Kind     string
	Slug     string
	Path     string
	Revision changeset.Revision
	Force    bool
}

// Delete removes the entity identified by kind and slug.
func (r *Reconciler) Delete(ctx context.Context, kind, slug string) (Outcome, error) {
	return r.DeleteEntity(ctx, DeleteInput{Kind: kind, Slug: slug})
}

// DeleteByPath removes the entity of kind last reconciled from path.
func (r *Reconciler) DeleteByPath(ctx context.Context, kind, path string) (Outcome, error) {
	return r.DeleteEntity(ctx, DeleteInput{Kind: kind, Path: path})
}

// DeleteEntity removes one entity. Its associations and search document are
// removed by the store's cascading foreign keys. A missing entity is skipped
// as not_found.
func (r *Reconciler) DeleteEntity(ctx context.Context, in DeleteInput) (Outcome, error) {
	if in.Slug == "" && in.Path == "" {
		return Outcome{}, errors.New("reconcile: delete needs a slug or a path")
	}
	logger := logging.WithDocument(r.logger, in.Kind, in.Slug, in.Path, in.Revision.ID)

	var outcome Outcome
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		outcome = Outcome{Kind: in.Kind, Slug: in.Slug, Revision: in.Revision.ID}

		var (
			existing *store.Entry
			err      error
		)
		if in.Slug != "" {
			existing, err = tx.FindEntry(ctx, in.Kind, in.Slug)
		} else {
			existing, err = tx.FindEntryByPath(ctx, in.Kind, in.Path)
		}
		if errors.Is(err, syncerr.ErrNotFound) {
			outcome.Reason = ReasonNotFound
			return nil
		}
		if err != nil {
			return err
		}
		outcome.Slug = existing.Slug
		outcome.EntryID = existing.ID

		stored := changeset.Revision{ID: existing.Revision, Seq: existing.RevisionSeq}
		if !in.Force && stored.Newer(in.Revision) {
			outcome.Reason = ReasonStale
			return nil
		}

		deleted, err := tx.DeleteEntry(ctx, existing.ID)
		if err != nil {
			var typed *syncerr.Error
			if errors.As(err, &typed) {
				typed.Path = existing.SourcePath
			}
			return err
		}
		if !deleted {
			outcome.Reason = ReasonNotFound
			return nil
		}
		outcome.Applied = true
		return nil
	})
	if err != nil {
		return outcome, err
	}
	if outcome.Applied {
		logger.Debug("reconcile.deleted", "resolved_slug", outcome.Slug)
	} else {
		logger.Debug("reconcile.delete.skipped", "reason", outcome.Reason)
	}
	return outcome, nil
}
