// Package contentsync keeps a relational store in step with a repository of
// front-matter documents. A Module wires the changeset extractor, fetcher,
// renderer, reconciler, ledger and orchestrator from a Config.
package contentsync

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-content-sync/internal/catalog"
	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/commands/synccmd"
	"github.com/goliatone/go-content-sync/internal/di"
	"github.com/goliatone/go-content-sync/internal/ledger"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncer"
	"github.com/goliatone/go-content-sync/internal/watch"
	"github.com/goliatone/go-content-sync/internal/webhook"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// ErrResyncUnsupported is returned when the document source cannot list files.
var ErrResyncUnsupported = errors.New("contentsync: source does not support listing files")

// ErrWatchUnsupported is returned when watch mode is requested for a non-fs source.
var ErrWatchUnsupported = errors.New("contentsync: watch requires the fs source driver")

type (
	Notification  = changeset.Notification
	Revision      = changeset.Revision
	ExplicitEntry = changeset.ExplicitEntry
	Changeset     = changeset.Changeset
	Result        = syncer.Result
	EntryResult   = syncer.EntryResult
	Job           = syncer.Job
	Worker        = syncer.Worker
	WorkerOption  = syncer.WorkerOption
	LedgerEntry   = ledger.Entry
	LedgerFilter  = ledger.Filter
	LedgerOutcome = ledger.Outcome
	Catalog       = catalog.Catalog
	Option        = di.Option
)

var (
	WithBunDB          = di.WithBunDB
	WithCache          = di.WithCache
	WithSource         = di.WithSource
	WithLedger         = di.WithLedger
	WithLoggerProvider = di.WithLoggerProvider
	WithClock          = di.WithClock
)

// Module is the top level runtime façade.
type Module struct {
	container *di.Container
	logger    interfaces.Logger

	syncHandler   *synccmd.SyncChangesetHandler
	resyncHandler *synccmd.FullResyncHandler
}

// New validates cfg and wires the pipeline.
func New(cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	provider := container.LoggerProvider()
	commandLogger := logging.CommandsLogger(provider)

	m := &Module{
		container: container,
		logger:    logging.ModuleLogger(provider, "contentsync.module"),
		syncHandler: synccmd.NewSyncChangesetHandler(
			container.Extractor(), container.Syncer(), commandLogger,
		),
	}
	if lister, ok := container.Source().(interfaces.DocumentLister); ok {
		m.resyncHandler = synccmd.NewFullResyncHandler(
			lister, container.Extractor(), container.Syncer(), commandLogger,
		)
	}
	return m, nil
}

// Container exposes the underlying wiring for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Migrate creates the store tables.
func (m *Module) Migrate(ctx context.Context) error {
	return store.Migrate(ctx, m.container.BunDB())
}

// Sync runs a prepared changeset.
func (m *Module) Sync(ctx context.Context, cs Changeset) (*Result, error) {
	return m.container.Syncer().Sync(ctx, cs, syncer.Options{})
}

// SyncNotification extracts the changeset carried by n and runs it.
func (m *Module) SyncNotification(ctx context.Context, n Notification) (*Result, error) {
	return m.Sync(ctx, m.container.Extractor().Extract(n))
}

// SyncPaths runs an administrative path list at a revision.
func (m *Module) SyncPaths(ctx context.Context, rev Revision, entries []ExplicitEntry, force bool) (*Result, error) {
	var result *Result
	err := m.syncHandler.Execute(ctx, synccmd.SyncChangesetCommand{
		Revision:       rev.ID,
		Sequence:       rev.Seq,
		Entries:        entries,
		Force:          force,
		ResultCallback: func(r *syncer.Result) { result = r },
	})
	return result, err
}

// Resync re-reads every content file at revision and rewrites the store
// regardless of revision ordering.
func (m *Module) Resync(ctx context.Context, revision string) (*Result, error) {
	if m.resyncHandler == nil {
		return nil, ErrResyncUnsupported
	}
	rev := Revision{ID: strings.TrimSpace(revision)}
	if resolver, ok := m.container.Source().(interfaces.RevisionResolver); ok {
		id, seq, err := resolver.ResolveRevision(ctx, rev.ID)
		if err != nil {
			return nil, err
		}
		rev = Revision{ID: id, Seq: seq}
	}
	if rev.ID == "" {
		rev.ID = "worktree"
	}

	var result *Result
	err := m.resyncHandler.Execute(ctx, synccmd.FullResyncCommand{
		Revision:       rev.ID,
		Sequence:       rev.Seq,
		ResultCallback: func(r *syncer.Result) { result = r },
	})
	return result, err
}

// SyncHandler exposes the command handler for dispatcher registration.
func (m *Module) SyncHandler() *synccmd.SyncChangesetHandler {
	return m.syncHandler
}

// ResyncHandler exposes the resync command handler; nil when the source
// cannot list files.
func (m *Module) ResyncHandler() *synccmd.FullResyncHandler {
	return m.resyncHandler
}

// Register mounts the notification routes on mux.
func (m *Module) Register(mux *http.ServeMux) error {
	cfg := m.container.Config.HTTP
	opts := []webhook.Option{
		webhook.WithPath(cfg.Path),
		webhook.WithMaxBodyBytes(cfg.MaxBodyBytes),
		webhook.WithLogger(logging.WebhookLogger(m.container.LoggerProvider())),
	}
	if queue := m.container.Queue(); queue != nil {
		opts = append(opts, webhook.WithJobs(queue))
	}
	return webhook.New(m.container.Extractor(), m.container.Syncer(), opts...).Register(mux)
}

// Worker returns a worker draining deferred changesets, nil when deferral
// is disabled.
func (m *Module) Worker(opts ...WorkerOption) *Worker {
	if m.container.Queue() == nil {
		return nil
	}
	return m.container.Syncer().NewWorker(opts...)
}

// Watch observes the fs source root and syncs every debounced batch of
// changes until ctx is done.
func (m *Module) Watch(ctx context.Context, opts ...watch.Option) error {
	cfg := m.container.Config
	if strings.ToLower(strings.TrimSpace(cfg.Source.Driver)) != "fs" {
		return ErrWatchUnsupported
	}
	logger := logging.WatcherLogger(m.container.LoggerProvider())
	handler := func(ctx context.Context, n changeset.Notification) error {
		result, err := m.SyncNotification(ctx, n)
		if err != nil {
			return err
		}
		logger.Info("watch.synced",
			"revision", n.Revision,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"skipped", result.Skipped,
		)
		return nil
	}
	opts = append([]watch.Option{watch.WithLogger(logger)}, opts...)
	return watch.New(cfg.Source.Root, m.container.Extractor().Roots(), handler, opts...).Run(ctx)
}

// Catalog returns the read contract over synchronized entities.
func (m *Module) Catalog() *Catalog {
	return m.container.Catalog()
}

// Ledger lists recorded ledger entries, newest first.
func (m *Module) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error) {
	reader, ok := m.container.Ledger().(ledger.Reader)
	if !ok {
		return nil, 0, errors.New("contentsync: ledger does not support listing")
	}
	return reader.List(ctx, filter)
}

// Close releases resources opened by New.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
