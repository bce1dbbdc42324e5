package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-content-sync/internal/identity"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncerr"
	"github.com/goliatone/go-content-sync/pkg/testsupport"
)

func newStore(t *testing.T) *store.BunStore {
	t.Helper()
	db := testsupport.NewSQLiteMemoryDB(t)
	ctx := context.Background()
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return store.New(db, store.WithTxRetries(1, 0))
}

func postEntry(slug, revision string, seq int64, checksum string) *store.Entry {
	return &store.Entry{
		ID:          identity.EntryUUID("post", slug),
		Kind:        "post",
		Slug:        slug,
		Title:       "Title " + revision,
		Body:        "body",
		Status:      "published",
		SourcePath:  "posts/" + slug + ".md",
		Revision:    revision,
		RevisionSeq: seq,
		Checksum:    checksum,
		Attributes:  map[string]any{"template": "post"},
	}
}

func upsert(t *testing.T, s *store.BunStore, entry *store.Entry, force bool) bool {
	t.Helper()
	var applied bool
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		applied, err = tx.UpsertEntry(ctx, entry, force)
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return applied
}

func find(t *testing.T, s *store.BunStore, kind, slug string) *store.Entry {
	t.Helper()
	var entry *store.Entry
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = tx.FindEntry(ctx, kind, slug)
		return err
	})
	if err != nil {
		t.Fatalf("find %s/%s: %v", kind, slug, err)
	}
	return entry
}

func TestUpsertEntryRespectsRevisionOrder(t *testing.T) {
	s := newStore(t)

	if !upsert(t, s, postEntry("hello", "r2", 200, "a"), false) {
		t.Fatalf("expected initial insert to apply")
	}
	if upsert(t, s, postEntry("hello", "r1", 100, "b"), false) {
		t.Fatalf("older revision must not apply")
	}
	if upsert(t, s, postEntry("hello", "r2", 200, "a"), false) {
		t.Fatalf("identical revision and checksum must not apply")
	}
	if got := find(t, s, "post", "hello"); got.Revision != "r2" || got.Title != "Title r2" {
		t.Fatalf("stored revision = %s title %q", got.Revision, got.Title)
	}

	if !upsert(t, s, postEntry("hello", "r3", 300, "c"), false) {
		t.Fatalf("newer revision must apply")
	}
	if !upsert(t, s, postEntry("hello", "r1", 100, "d"), true) {
		t.Fatalf("forced write must apply")
	}
	got := find(t, s, "post", "hello")
	if got.Revision != "r1" || got.Checksum != "d" {
		t.Fatalf("forced write not stored: %+v", got)
	}
	if got.Attributes["template"] != "post" {
		t.Fatalf("attributes not round tripped: %#v", got.Attributes)
	}
}

func TestUpsertEntryWithoutOrderingAlwaysApplies(t *testing.T) {
	s := newStore(t)
	upsert(t, s, postEntry("hello", "r5", 500, "a"), false)
	if !upsert(t, s, postEntry("hello", "local", 0, "b"), false) {
		t.Fatalf("unordered revision must apply")
	}
}

func TestUpsertEntryPreservesCreatedAt(t *testing.T) {
	s := newStore(t)
	first := postEntry("hello", "r1", 100, "a")
	first.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	upsert(t, s, first, false)

	second := postEntry("hello", "r2", 200, "b")
	second.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	upsert(t, s, second, false)

	got := find(t, s, "post", "hello")
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, first.CreatedAt)
	}
}

func TestFindEntryMissingReturnsNotFound(t *testing.T) {
	s := newStore(t)
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.FindEntry(ctx, "post", "missing")
		return err
	})
	if !errors.Is(err, syncerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReferencedAuthorIsConflict(t *testing.T) {
	s := newStore(t)
	author := &store.Entry{
		ID: identity.EntryUUID("author", "jane"), Kind: "author", Slug: "jane", Title: "Jane",
		Status: "published", SourcePath: "authors/jane.md", Revision: "r1", Checksum: "x",
	}
	upsert(t, s, author, false)
	post := postEntry("hello", "r1", 1, "a")
	post.AuthorID = &author.ID
	upsert(t, s, post, false)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.DeleteEntry(ctx, author.ID)
		return err
	})
	if syncerr.KindOf(err) != syncerr.KindWriteConflict {
		t.Fatalf("expected write conflict, got %v", err)
	}
}

func TestDeleteEntryCascadesAssociationsAndSearch(t *testing.T) {
	s := newStore(t)
	post := postEntry("hello", "r1", 1, "a")
	upsert(t, s, post, false)

	ctx := context.Background()
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		labels, err := tx.EnsureLabels(ctx, []store.Label{
			{ID: identity.LabelUUID("go"), Slug: "go", Name: "Go"},
		})
		if err != nil {
			return err
		}
		if err := tx.InsertEntryLabels(ctx, []store.EntryLabel{{EntryID: post.ID, LabelID: labels[0].ID}}); err != nil {
			return err
		}
		return tx.UpsertSearchDocument(ctx, &store.SearchDocument{EntryID: post.ID, Kind: "post", Slug: "hello", Title: "Hello", Content: "body"})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var deleted bool
	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		deleted, err = tx.DeleteEntry(ctx, post.ID)
		return err
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report a removed row")
	}

	db := s.DB()
	associations, err := db.NewSelect().Model((*store.EntryLabel)(nil)).Count(ctx)
	if err != nil || associations != 0 {
		t.Fatalf("associations = %d (%v), want 0", associations, err)
	}
	docs, err := db.NewSelect().Model((*store.SearchDocument)(nil)).Count(ctx)
	if err != nil || docs != 0 {
		t.Fatalf("search documents = %d (%v), want 0", docs, err)
	}
	labels, err := db.NewSelect().Model((*store.Label)(nil)).Count(ctx)
	if err != nil || labels != 1 {
		t.Fatalf("labels = %d (%v), want 1", labels, err)
	}
}

func TestEnsureLabelsKeepsExistingRows(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	var first, second []store.Label
	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		first, err = tx.EnsureLabels(ctx, []store.Label{{ID: uuid.New(), Slug: "go", Name: "Go"}})
		return err
	}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		second, err = tx.EnsureLabels(ctx, []store.Label{
			{ID: uuid.New(), Slug: "db", Name: "DB"},
			{ID: uuid.New(), Slug: "go", Name: "Golang"},
		})
		return err
	}); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if len(second) != 2 || second[0].Slug != "db" || second[1].Slug != "go" {
		t.Fatalf("unexpected labels %+v", second)
	}
	if second[1].ID != first[0].ID || second[1].Name != "Go" {
		t.Fatalf("existing label replaced: %+v vs %+v", second[1], first[0])
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := newStore(t)
	boom := errors.New("boom")
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.UpsertEntry(ctx, postEntry("hello", "r1", 1, "a"), false); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	count, err := s.DB().NewSelect().Model((*store.Entry)(nil)).Count(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("entries = %d (%v), want 0", count, err)
	}
}

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	cases := map[string]string{
		"file:app.db":                  "file:app.db?_fk=1",
		"file:app.db?cache=shared":     "file:app.db?cache=shared&_fk=1",
		"file:app.db?_foreign_keys=on": "file:app.db?_foreign_keys=on",
	}
	for in, want := range cases {
		if got := store.SQLiteDSN(in); got != want {
			t.Fatalf("SQLiteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
