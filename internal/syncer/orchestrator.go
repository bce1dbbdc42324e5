// Package syncer drives changesets through fetch, decode, render and
// reconciliation, records every entry in the ledger and defers large
// changesets to a background worker.
package syncer

import (
	"context"
	"time"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/fetch"
	"github.com/goliatone/go-content-sync/internal/ledger"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/reconcile"
	"github.com/goliatone/go-content-sync/internal/render"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// Fetcher reads file contents at a revision.
type Fetcher interface {
	Fetch(ctx context.Context, path, revision string) (*fetch.File, error)
}

// Renderer turns a document body into HTML plus derived metrics.
type Renderer interface {
	Render(body []byte) (render.Result, error)
}

// Reconciler applies documents and deletions to the store.
type Reconciler interface {
	Reconcile(ctx context.Context, in reconcile.Input) (reconcile.Outcome, error)
	DeleteEntity(ctx context.Context, in reconcile.DeleteInput) (reconcile.Outcome, error)
}

// Options tune a single sync.
type Options struct {
	// Force bypasses revision ordering; full resyncs set it.
	Force bool `json:"force,omitempty"`
}

// Config bounds orchestration.
type Config struct {
	Concurrency      int
	AsyncThreshold   int
	ChangesetTimeout time.Duration
}

// Orchestrator runs changesets. It holds no per-changeset state; each call
// builds its own run.
type Orchestrator struct {
	fetcher    Fetcher
	renderer   Renderer
	reconciler Reconciler
	ledger     ledger.Ledger
	queue      *Queue
	logger     interfaces.Logger
	cfg        Config
	now        func() time.Time
	afterRun   []func(ctx context.Context, result *Result)
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets concurrency, deferral threshold and timeout.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		if cfg.Concurrency > 0 {
			o.cfg.Concurrency = cfg.Concurrency
		}
		if cfg.AsyncThreshold >= 0 {
			o.cfg.AsyncThreshold = cfg.AsyncThreshold
		}
		if cfg.ChangesetTimeout >= 0 {
			o.cfg.ChangesetTimeout = cfg.ChangesetTimeout
		}
	}
}

// WithQueue enables deferral of changesets above the async threshold.
func WithQueue(queue *Queue) Option {
	return func(o *Orchestrator) {
		o.queue = queue
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAfterProcess registers a callback run after every processed
// changeset, including those drained from the queue.
func WithAfterProcess(fn func(ctx context.Context, result *Result)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.afterRun = append(o.afterRun, fn)
		}
	}
}

// New builds an orchestrator.
func New(fetcher Fetcher, renderer Renderer, reconciler Reconciler, l ledger.Ledger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:    fetcher,
		renderer:   renderer,
		reconciler: reconciler,
		ledger:     l,
		logger:     logging.NoOp(),
		cfg:        Config{Concurrency: 8, AsyncThreshold: 50, ChangesetTimeout: 2 * time.Minute},
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.ledger == nil {
		o.ledger = ledger.NewMemory()
	}
	return o
}

// Queue returns the deferral queue, nil when deferral is disabled.
func (o *Orchestrator) Queue() *Queue {
	return o.queue
}

// Sync processes cs, or enqueues it when it exceeds the async threshold and
// a queue is configured. Per-entry failures never fail the call: they are
// reported in the result and the ledger.
func (o *Orchestrator) Sync(ctx context.Context, cs changeset.Changeset, opts Options) (*Result, error) {
	if o.shouldDefer(cs) {
		job, err := o.queue.Enqueue(ctx, cs, opts)
		if err == nil {
			o.logger.Info("sync.changeset.queued",
				"changeset_id", cs.ID,
				"revision", cs.Revision.ID,
				"entries", cs.Len(),
				"job_id", job.ID,
			)
			return &Result{
				ChangesetID: cs.ID,
				Revision:    cs.Revision,
				Queued:      true,
				Total:       cs.Len(),
				StartedAt:   o.now(),
			}, nil
		}
		o.logger.Warn("sync.changeset.queue_rejected", "changeset_id", cs.ID, "error", err)
	}
	return o.Process(ctx, cs, opts)
}

func (o *Orchestrator) shouldDefer(cs changeset.Changeset) bool {
	return o.queue != nil && o.cfg.AsyncThreshold > 0 && cs.Len() > o.cfg.AsyncThreshold
}

// Process runs cs to completion in the calling goroutine. Entry failures are
// reported in the result; the error is reserved for the caller contract.
func (o *Orchestrator) Process(ctx context.Context, cs changeset.Changeset, opts Options) (*Result, error) {
	return o.process(ctx, cs, opts), nil
}

// Defer records every entry of cs as skipped with reason deferred without
// running it. Used for queued changesets abandoned at shutdown.
func (o *Orchestrator) Defer(ctx context.Context, cs changeset.Changeset, opts Options) *Result {
	r := o.newRun(cs, opts)
	result := r.finish(ctx)
	r.logger.Warn("sync.changeset.deferred", "entries", cs.Len())
	return result
}

func (o *Orchestrator) process(ctx context.Context, cs changeset.Changeset, opts Options) *Result {
	r := o.newRun(cs, opts)
	r.logger.Info("sync.changeset.started", "entries", cs.Len(), "force", opts.Force)

	runCtx := ctx
	if o.cfg.ChangesetTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.ChangesetTimeout)
		defer cancel()
	}

	r.prepare(runCtx)
	r.reconcile(runCtx)
	result := r.finish(ctx)

	r.logger.Info("sync.changeset.finished",
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.FinishedAt.Sub(result.StartedAt).String(),
	)
	for _, fn := range o.afterRun {
		fn(context.WithoutCancel(ctx), result)
	}
	return result
}
