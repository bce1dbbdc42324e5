package di_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/di"
	"github.com/goliatone/go-content-sync/internal/logging/console"
	"github.com/goliatone/go-content-sync/internal/runtimeconfig"
	"github.com/goliatone/go-content-sync/internal/source"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncer"
	"github.com/goliatone/go-content-sync/pkg/testsupport"
)

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Sync.Concurrency = 0
	if _, err := di.NewContainer(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestContainerWiresPipeline(t *testing.T) {
	db := testsupport.NewSQLiteMemoryDB(t)
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	files := fstest.MapFS{
		"pages/about.md": {Data: []byte("---\ntitle: About\n---\nHello there.\n")},
	}

	cfg := runtimeconfig.DefaultConfig()
	cfg.Sync.AsyncThreshold = 0
	c, err := di.NewContainer(cfg,
		di.WithBunDB(db),
		di.WithSource(source.NewFS(files)),
		di.WithLoggerProvider(console.NewProvider(console.Options{Writer: testWriter{t}})),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if c.Queue() != nil {
		t.Fatal("expected no queue when async threshold is zero")
	}
	if c.BunDB() != db {
		t.Fatal("expected injected database")
	}

	cs, err := c.Extractor().FromExplicit(changeset.Revision{ID: "r1", Seq: 1}, []changeset.ExplicitEntry{
		{Path: "pages/about.md", Operation: "upsert"},
	})
	if err != nil {
		t.Fatalf("FromExplicit: %v", err)
	}
	result, err := c.Syncer().Sync(context.Background(), cs, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %+v", result)
	}

	entry, err := c.Catalog().EntryBySlug(context.Background(), "page", "about")
	if err != nil {
		t.Fatalf("EntryBySlug: %v", err)
	}
	if entry.Title != "About" {
		t.Fatalf("expected title About, got %q", entry.Title)
	}
}

func TestContainerBuildsQueueWhenDeferralEnabled(t *testing.T) {
	db := testsupport.NewSQLiteMemoryDB(t)
	cfg := runtimeconfig.DefaultConfig()
	c, err := di.NewContainer(cfg, di.WithBunDB(db), di.WithSource(source.NewFS(fstest.MapFS{})))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if c.Queue() == nil || c.Syncer().Queue() != c.Queue() {
		t.Fatal("expected queue shared with orchestrator")
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
