package di

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goliatone/go-content-sync/internal/catalog"
	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/fetch"
	"github.com/goliatone/go-content-sync/internal/ledger"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/logging/console"
	"github.com/goliatone/go-content-sync/internal/logging/gologger"
	"github.com/goliatone/go-content-sync/internal/reconcile"
	"github.com/goliatone/go-content-sync/internal/render"
	"github.com/goliatone/go-content-sync/internal/runtimeconfig"
	"github.com/goliatone/go-content-sync/internal/source"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/internal/syncer"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// Container wires the sync pipeline from configuration.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	logWriter      io.WriteCloser

	source interfaces.DocumentSource

	bunDB         *bun.DB
	ownsDB        bool
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	roots      document.Roots
	extractor  *changeset.Extractor
	fetcher    *fetch.Fetcher
	renderer   *render.Renderer
	store      *store.BunStore
	reconciler *reconcile.Reconciler
	ledger     ledger.Ledger
	queue      *syncer.Queue
	syncer     *syncer.Orchestrator
	catalog    *catalog.Catalog

	now func() time.Time
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider built from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithBunDB supplies an open database. The container will not close it.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the read-side cache service.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithSource overrides the document source built from the source config.
func WithSource(src interfaces.DocumentSource) Option {
	return func(c *Container) {
		c.source = src
	}
}

// WithLedger overrides the bun-backed ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(c *Container) {
		c.ledger = l
	}
}

// WithClock overrides the clock shared by reconciler, queue and orchestrator.
func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		if now != nil {
			c.now = now
		}
	}
}

// NewContainer validates cfg and builds every component.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	roots, err := document.ParseRoots(cfg.Content.Roots)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, roots: roots, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.configureLogging(); err != nil {
		return nil, err
	}
	if err := c.configureSource(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.configureStorage(); err != nil {
		c.Close()
		return nil, err
	}
	c.configureCacheDefaults()
	c.configurePipeline()
	return c, nil
}

func (c *Container) configureLogging() error {
	if c.loggerProvider != nil {
		return nil
	}
	cfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		var out io.Writer = os.Stderr
		if strings.TrimSpace(cfg.File) != "" {
			c.logWriter = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			}
			out = c.logWriter
		}
		c.loggerProvider = console.NewProvider(console.Options{
			Writer:   out,
			MinLevel: console.ParseLevel(cfg.Level),
		})
	}
	return nil
}

func (c *Container) configureSource() error {
	if c.source != nil {
		return nil
	}
	cfg := c.Config.Source
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "fs":
		c.source = source.NewDir(cfg.Root)
	case "git":
		c.source = source.NewGit(cfg.Repo)
	case "http":
		opts := []source.HTTPOption{source.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
		if token := strings.TrimSpace(cfg.Token); token != "" {
			opts = append(opts, source.WithToken(token))
		}
		c.source = source.NewHTTP(cfg.URLTemplate, opts...)
	default:
		return fmt.Errorf("%w: %s", runtimeconfig.ErrSourceDriverUnknown, cfg.Driver)
	}
	return nil
}

func (c *Container) configureStorage() error {
	if c.bunDB != nil {
		return nil
	}
	db, err := store.Open(c.Config.Storage, logging.StoreLogger(c.loggerProvider))
	if err != nil {
		return err
	}
	c.bunDB = db
	c.ownsDB = true
	return nil
}

func (c *Container) configureCacheDefaults() {
	if !c.Config.Cache.Enabled {
		return
	}

	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.Config.Cache.TTL > 0 {
			cfg.TTL = c.Config.Cache.TTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err == nil {
			c.cacheService = service
		} else {
			logging.StoreLogger(c.loggerProvider).Warn("cache.disabled", "error", err)
		}
	}

	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configurePipeline() {
	cfg := c.Config
	syncLogger := logging.SyncLogger(c.loggerProvider)

	c.extractor = changeset.NewExtractor(c.roots, cfg.Content.Extension)
	c.fetcher = fetch.New(c.source,
		fetch.WithMaxAttempts(cfg.Fetch.MaxAttempts),
		fetch.WithBackoff(cfg.Fetch.BaseDelay, cfg.Fetch.MaxDelay),
		fetch.WithLogger(logging.FetchLogger(c.loggerProvider)),
	)
	c.renderer = render.New(render.Options{})
	c.store = store.New(c.bunDB)
	c.reconciler = reconcile.New(c.store,
		reconcile.WithLogger(logging.StoreLogger(c.loggerProvider)),
		reconcile.WithClock(c.now),
	)
	if c.ledger == nil {
		c.ledger = ledger.NewBunLedger(c.bunDB, logging.LedgerLogger(c.loggerProvider))
	}

	if c.cacheService != nil {
		c.catalog = catalog.NewWithCache(c.bunDB, c.cacheService, c.keySerializer)
	} else {
		c.catalog = catalog.New(c.bunDB)
	}

	opts := []syncer.Option{
		syncer.WithConfig(syncer.Config{
			Concurrency:      cfg.Sync.Concurrency,
			AsyncThreshold:   cfg.Sync.AsyncThreshold,
			ChangesetTimeout: cfg.Sync.ChangesetTimeout,
		}),
		syncer.WithLogger(syncLogger),
		syncer.WithClock(c.now),
		syncer.WithAfterProcess(func(ctx context.Context, result *syncer.Result) {
			if result.Succeeded == 0 {
				return
			}
			if err := c.catalog.InvalidateCache(ctx); err != nil {
				syncLogger.Warn("catalog.invalidate.failed", "changeset_id", result.ChangesetID, "error", err)
			}
		}),
	}
	if cfg.Sync.AsyncThreshold > 0 {
		c.queue = syncer.NewQueue(cfg.Sync.QueueSize, syncer.WithQueueClock(c.now))
		opts = append(opts, syncer.WithQueue(c.queue))
	}
	c.syncer = syncer.New(c.fetcher, c.renderer, c.reconciler, c.ledger, opts...)
}

// Close releases the database and the log file when the container opened them.
func (c *Container) Close() error {
	var firstErr error
	if c.ownsDB && c.bunDB != nil {
		if err := c.bunDB.Close(); err != nil {
			firstErr = err
		}
		c.bunDB = nil
	}
	if c.logWriter != nil {
		if err := c.logWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.logWriter = nil
	}
	return firstErr
}

// LoggerProvider returns the active logger provider.
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

// Source returns the document source.
func (c *Container) Source() interfaces.DocumentSource { return c.source }

// BunDB returns the database handle.
func (c *Container) BunDB() *bun.DB { return c.bunDB }

// Extractor returns the changeset extractor.
func (c *Container) Extractor() *changeset.Extractor { return c.extractor }

// Reconciler returns the reconciler.
func (c *Container) Reconciler() *reconcile.Reconciler { return c.reconciler }

// Ledger returns the sync ledger.
func (c *Container) Ledger() ledger.Ledger { return c.ledger }

// Queue returns the deferral queue, nil when deferral is disabled.
func (c *Container) Queue() *syncer.Queue { return c.queue }

// Syncer returns the orchestrator.
func (c *Container) Syncer() *syncer.Orchestrator { return c.syncer }

// Catalog returns the read contract.
func (c *Container) Catalog() *catalog.Catalog { return c.catalog }
