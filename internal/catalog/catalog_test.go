package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-content-sync/internal/catalog"
	"github.com/goliatone/go-content-sync/internal/identity"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncerr"
	"github.com/goliatone/go-content-sync/pkg/testsupport"
)

func seed(t *testing.T) *store.BunStore {
	t.Helper()
	ctx := context.Background()
	db := testsupport.NewSQLiteMemoryDB(t)
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.New(db)

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	posts := []struct {
		slug, title, body string
		published         time.Time
		labels            []string
	}{
		{"hello", "Hello World", "an introduction to syncing", older, []string{"go", "intro"}},
		{"second", "Second Post", "more about databases", newer, []string{"go"}},
	}

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, p := range posts {
			published := p.published
			entry := &store.Entry{
				ID: identity.EntryUUID("post", p.slug), Kind: "post", Slug: p.slug, Title: p.title,
				Body: p.body, Status: "published", PublishedAt: &published,
				SourcePath: "posts/" + p.slug + ".md", Revision: "r1", RevisionSeq: 1, Checksum: p.slug,
			}
			if _, err := tx.UpsertEntry(ctx, entry, false); err != nil {
				return err
			}
			wanted := make([]store.Label, 0, len(p.labels))
			for _, slug := range p.labels {
				wanted = append(wanted, store.Label{ID: identity.LabelUUID(slug), Slug: slug, Name: slug})
			}
			labels, err := tx.EnsureLabels(ctx, wanted)
			if err != nil {
				return err
			}
			rows := make([]store.EntryLabel, 0, len(labels))
			for i, label := range labels {
				rows = append(rows, store.EntryLabel{EntryID: entry.ID, LabelID: label.ID, Position: i})
			}
			if err := tx.InsertEntryLabels(ctx, rows); err != nil {
				return err
			}
			if err := tx.UpsertSearchDocument(ctx, &store.SearchDocument{
				EntryID: entry.ID, Kind: "post", Slug: p.slug, Title: p.title, Content: p.body,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestCatalogLookups(t *testing.T) {
	s := seed(t)
	c := catalog.New(s.DB())
	ctx := context.Background()

	entry, err := c.EntryBySlug(ctx, "post", "hello")
	if err != nil {
		t.Fatalf("entry by slug: %v", err)
	}
	if entry.Title != "Hello World" {
		t.Fatalf("title = %q", entry.Title)
	}

	if _, err := c.EntryBySlug(ctx, "post", "missing"); !errors.Is(err, syncerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	labels, err := c.LabelsForEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if len(labels) != 2 || labels[0].Slug != "go" || labels[1].Slug != "intro" {
		t.Fatalf("unexpected labels %+v", labels)
	}

	label, err := c.LabelBySlug(ctx, "intro")
	if err != nil || label.ID != identity.LabelUUID("intro") {
		t.Fatalf("label by slug = %+v, %v", label, err)
	}
}

func TestCatalogListingAndSearch(t *testing.T) {
	s := seed(t)
	c := catalog.New(s.DB())
	ctx := context.Background()

	page, total, err := c.ListEntries(ctx, "post", 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].Slug != "hello" {
		t.Fatalf("page=%+v total=%d", page, total)
	}

	tagged, err := c.EntriesByLabel(ctx, "go")
	if err != nil {
		t.Fatalf("by label: %v", err)
	}
	if len(tagged) != 2 || tagged[0].Slug != "second" {
		t.Fatalf("expected newest first, got %+v", tagged)
	}

	hits, err := c.Search(ctx, "DATABASES", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Slug != "second" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits, _ := c.Search(ctx, "  ", 10); hits != nil {
		t.Fatalf("blank search must return nothing")
	}
}

func TestCatalogWithCache(t *testing.T) {
	s := seed(t)
	cfg := repocache.DefaultConfig()
	cfg.TTL = time.Minute
	svc, err := repocache.NewCacheService(cfg)
	if err != nil {
		t.Fatalf("cache service: %v", err)
	}
	c := catalog.NewWithCache(s.DB(), svc, repocache.NewDefaultKeySerializer())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		entry, err := c.EntryBySlug(ctx, "post", "second")
		if err != nil || entry.Slug != "second" {
			t.Fatalf("lookup %d = %+v, %v", i, entry, err)
		}
	}
	if err := c.InvalidateCache(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
}
