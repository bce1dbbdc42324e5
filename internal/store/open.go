package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-content-sync/internal/runtimeconfig"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned by Open for unknown storage drivers.
var ErrUnsupportedDriver = errors.New("store: unsupported driver")

// Open connects to the configured database and returns a bun handle using
// the matching dialect. SQLite connections always enforce foreign keys.
func Open(cfg runtimeconfig.StorageConfig, logger interfaces.Logger) (*bun.DB, error) {
	var db *bun.DB
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open("sqlite3", SQLiteDSN(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY churn.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres, "postgresql", "pg":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	if cfg.Debug && logger != nil {
		db.AddQueryHook(&queryLogger{logger: logger})
	}
	return db, nil
}

// SQLiteDSN appends the foreign key pragma when the DSN does not set it.
func SQLiteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	if strings.Contains(dsn, "_fk=") || strings.Contains(dsn, "_foreign_keys=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_fk=1"
}

type queryLogger struct {
	logger interfaces.Logger
}

func (q *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (q *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{"operation", event.Operation(), "duration", time.Since(event.StartTime).String(), "query", event.Query}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		q.logger.Warn("store.query.failed", append(args, "error", event.Err)...)
		return
	}
	q.logger.Debug("store.query", args...)
}
