package reconcile_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/reconcile"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncerr"
)

func TestDeleteCascadesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	rev := changeset.Revision{ID: "r1", Seq: 100}
	f.reconcile(t, authorDoc(), rev)
	f.reconcile(t, postDoc("v1", "go"), rev)

	ctx := context.Background()
	out, err := f.reconciler.DeleteByPath(ctx, "post", "posts/2024-01-01-hello.md")
	if err != nil || !out.Applied || out.Slug != "hello" {
		t.Fatalf("delete = %+v, %v", out, err)
	}
	if n := f.count(t, (*store.EntryLabel)(nil)); n != 0 {
		t.Fatalf("associations = %d, want 0", n)
	}
	if n := f.count(t, (*store.SearchDocument)(nil)); n != 1 {
		t.Fatalf("search documents = %d, want 1 (author only)", n)
	}

	again, err := f.reconciler.Delete(ctx, "post", "hello")
	if err != nil {
		t.Fatalf("re-delete returned error: %v", err)
	}
	if again.Applied || again.Reason != reconcile.ReasonNotFound {
		t.Fatalf("expected not_found skip, got %+v", again)
	}
}

func TestDeleteReferencedAuthorConflicts(t *testing.T) {
	f := newFixture(t)
	rev := changeset.Revision{ID: "r1", Seq: 100}
	f.reconcile(t, authorDoc(), rev)
	f.reconcile(t, postDoc("v1"), rev)

	_, err := f.reconciler.Delete(context.Background(), "author", "jane")
	if syncerr.KindOf(err) != syncerr.KindWriteConflict {
		t.Fatalf("expected write conflict, got %v", err)
	}
	f.entry(t, "author", "jane")
}

func TestDeleteOlderRevisionIsStale(t *testing.T) {
	f := newFixture(t)
	f.reconcile(t, authorDoc(), changeset.Revision{ID: "r5", Seq: 500})

	out, err := f.reconciler.DeleteEntity(context.Background(), reconcile.DeleteInput{
		Kind:     "author",
		Path:     "authors/jane.md",
		Revision: changeset.Revision{ID: "r4", Seq: 400},
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if out.Applied || out.Reason != reconcile.ReasonStale {
		t.Fatalf("expected stale skip, got %+v", out)
	}
}
