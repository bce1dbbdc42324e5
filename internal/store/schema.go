package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type index struct {
	model   any
	name    string
	columns []string
}

// Migrate creates every table and index used by the engine. It is safe to run
// repeatedly.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		model       any
		foreignKeys []string
	}{
		{model: (*Entry)(nil), foreignKeys: []string{
			`("author_id") REFERENCES "entries" ("id") ON DELETE RESTRICT`,
		}},
		{model: (*Label)(nil)},
		{model: (*EntryLabel)(nil), foreignKeys: []string{
			`("entry_id") REFERENCES "entries" ("id") ON DELETE CASCADE`,
			`("label_id") REFERENCES "labels" ("id") ON DELETE CASCADE`,
		}},
		{model: (*SearchDocument)(nil), foreignKeys: []string{
			`("entry_id") REFERENCES "entries" ("id") ON DELETE CASCADE`,
		}},
		{model: (*LedgerRecord)(nil)},
	}

	for _, table := range tables {
		q := db.NewCreateTable().Model(table.model).IfNotExists()
		for _, fk := range table.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("store: create table: %w", err)
		}
	}

	indexes := []index{
		{model: (*Entry)(nil), name: "entries_kind_source_path_idx", columns: []string{"kind", "source_path"}},
		{model: (*Entry)(nil), name: "entries_author_id_idx", columns: []string{"author_id"}},
		{model: (*EntryLabel)(nil), name: "entry_labels_label_id_idx", columns: []string{"label_id"}},
		{model: (*LedgerRecord)(nil), name: "sync_ledger_changeset_id_idx", columns: []string{"changeset_id"}},
		{model: (*LedgerRecord)(nil), name: "sync_ledger_source_path_idx", columns: []string{"source_path", "created_at"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("store: create index %s: %w", idx.name, err)
		}
	}

	if db.Dialect().Name() == dialect.PG {
		if err := migratePostgresSearch(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// migratePostgresSearch adds a generated tsvector column with a GIN index so
// catalog searches use native full-text matching on Postgres.
func migratePostgresSearch(ctx context.Context, db *bun.DB) error {
	statements := []string{
		`ALTER TABLE search_documents ADD COLUMN IF NOT EXISTS tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(content, ''))) STORED`,
		`CREATE INDEX IF NOT EXISTS search_documents_tsv_idx ON search_documents USING GIN (tsv)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: postgres search schema: %w", err)
		}
	}
	return nil
}
