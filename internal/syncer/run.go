package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/ledger"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/reconcile"
	"github.com/goliatone/go-content-sync/internal/render"
	"github.com/goliatone/go-content-sync/internal/syncerr"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// run holds the mutable state of one changeset.
type run struct {
	o       *Orchestrator
	cs      changeset.Changeset
	opts    Options
	logger  interfaces.Logger
	entries []*entryRun
	result  *Result
}

type entryRun struct {
	mu        sync.Mutex
	entry     changeset.Entry
	operation changeset.Operation
	state     State
	attempts  int
	doc       *document.Document
	rendered  render.Result
	outcome   EntryResult
	err       error
	logger    interfaces.Logger
}

func (o *Orchestrator) newRun(cs changeset.Changeset, opts Options) *run {
	logger := logging.WithChangeset(o.logger, cs.ID, cs.Revision.ID)
	r := &run{
		o:      o,
		cs:     cs,
		opts:   opts,
		logger: logger,
		result: &Result{
			ChangesetID: cs.ID,
			Revision:    cs.Revision,
			Total:       cs.Len(),
			StartedAt:   o.now(),
		},
	}
	for _, entry := range cs.Entries {
		r.entries = append(r.entries, &entryRun{
			entry:     entry,
			operation: entry.Operation,
			state:     StatePending,
			logger:    logging.WithEntryContext(o.logger, cs.ID, cs.Revision.ID, entry.Path, string(entry.Operation)),
		})
	}
	return r
}

// prepare fetches, decodes and renders every upsert entry in parallel.
// Entries whose file has vanished at the revision become deletes.
func (r *run) prepare(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(r.o.cfg.Concurrency)
	for _, e := range r.entries {
		if e.operation != changeset.OpUpsert {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.prepareEntry(ctx, e)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) prepareEntry(ctx context.Context, e *entryRun) {
	if ctx.Err() != nil {
		return
	}
	e.setState(StateFetching)
	file, err := r.o.fetcher.Fetch(ctx, e.entry.Path, r.cs.Revision.ID)
	if file != nil {
		e.attempts = file.Attempts
	}
	switch {
	case err == nil:
	case syncerr.IsContext(err):
		// Left pending; finish marks it deferred.
		e.setState(StatePending)
		return
	case errors.Is(err, syncerr.ErrNotFound):
		e.logger.Info("sync.entry.missing_at_revision")
		e.operation = changeset.OpDelete
		e.setState(StateReconciling)
		return
	default:
		r.fail(ctx, e, err)
		return
	}

	e.setState(StateDecoding)
	doc, err := document.Decode(e.entry.Path, e.entry.Kind, file.Content)
	if err != nil {
		r.fail(ctx, e, err)
		return
	}
	rendered, err := r.o.renderer.Render(doc.Body)
	if err != nil {
		r.fail(ctx, e, err)
		return
	}
	e.doc = doc
	e.rendered = rendered
	e.setState(StateReconciling)
}

// reconcile applies prepared entries in dependency order: deletes of
// referencing content first, then authors, then everything else, and
// finally author deletes.
func (r *run) reconcile(ctx context.Context) {
	phases := [][]*entryRun{nil, nil, nil, nil}
	for _, e := range r.entries {
		if e.currentState() != StateReconciling {
			continue
		}
		isAuthor := e.entry.Kind == document.KindAuthor
		switch {
		case e.operation == changeset.OpDelete && !isAuthor:
			phases[0] = append(phases[0], e)
		case e.operation == changeset.OpUpsert && isAuthor:
			phases[1] = append(phases[1], e)
		case e.operation == changeset.OpUpsert:
			phases[2] = append(phases[2], e)
		default:
			phases[3] = append(phases[3], e)
		}
	}

	for _, phase := range phases {
		if ctx.Err() != nil {
			return
		}
		var g errgroup.Group
		g.SetLimit(r.o.cfg.Concurrency)
		for _, e := range phase {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				r.reconcileEntry(ctx, e)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (r *run) reconcileEntry(ctx context.Context, e *entryRun) {
	if ctx.Err() != nil {
		return
	}
	// Transactions that have started run to completion.
	txCtx := context.WithoutCancel(ctx)

	var (
		outcome reconcile.Outcome
		err     error
	)
	if e.operation == changeset.OpDelete {
		outcome, err = r.o.reconciler.DeleteEntity(txCtx, reconcile.DeleteInput{
			Kind:     string(e.entry.Kind),
			Path:     e.entry.Path,
			Revision: r.cs.Revision,
			Force:    r.opts.Force,
		})
	} else {
		outcome, err = r.o.reconciler.Reconcile(txCtx, reconcile.Input{
			Document: e.doc,
			Rendered: e.rendered,
			Revision: r.cs.Revision,
			Force:    r.opts.Force,
		})
	}
	if err != nil {
		if outcome.Slug != "" {
			e.outcome.Slug = outcome.Slug
		}
		r.fail(ctx, e, err)
		return
	}

	result := r.baseResult(e)
	result.Slug = outcome.Slug
	result.Labels = outcome.Labels
	if outcome.Applied {
		result.Outcome = ledger.OutcomeSuccess
	} else {
		result.Outcome = ledger.OutcomeSkipped
		result.Reason = outcome.Reason
	}
	r.complete(ctx, e, result, nil)
}

func (r *run) fail(ctx context.Context, e *entryRun, err error) {
	result := r.baseResult(e)
	if e.outcome.Slug != "" {
		result.Slug = e.outcome.Slug
	}
	if result.Slug == "" && e.doc != nil {
		result.Slug = e.doc.Slug
	}
	result.Outcome = ledger.OutcomeError
	result.ErrorCode = syncerr.Code(err)
	r.complete(ctx, e, result, err)
}

func (r *run) baseResult(e *entryRun) EntryResult {
	result := EntryResult{
		Path:      e.entry.Path,
		Operation: e.operation,
		Kind:      string(e.entry.Kind),
		Attempts:  e.attempts,
	}
	if e.doc != nil {
		result.Slug = e.doc.Slug
	}
	return result
}

// complete moves e to done and writes its ledger entry.
func (r *run) complete(ctx context.Context, e *entryRun, result EntryResult, err error) {
	e.mu.Lock()
	e.state = StateDone
	e.outcome = result
	e.err = err
	e.mu.Unlock()

	switch result.Outcome {
	case ledger.OutcomeError:
		e.logger.Warn("sync.entry.failed", "code", result.ErrorCode, "error", err)
	case ledger.OutcomeSkipped:
		e.logger.Debug("sync.entry.skipped", "reason", result.Reason)
	default:
		e.logger.Debug("sync.entry.succeeded", "slug", result.Slug)
	}

	r.o.ledger.Record(ctx, ledger.Entry{
		ChangesetID: r.cs.ID,
		Operation:   string(result.Operation),
		EntityKind:  result.Kind,
		EntitySlug:  result.Slug,
		SourcePath:  result.Path,
		Revision:    r.cs.Revision.ID,
		Outcome:     result.Outcome,
		Reason:      result.Reason,
		ErrorCode:   result.ErrorCode,
		ErrorDetail: errorDetail(err),
		CreatedAt:   r.o.now(),
	})
}

// finish defers whatever did not reach a terminal state and assembles the
// result in changeset order.
func (r *run) finish(ctx context.Context) *Result {
	for _, e := range r.entries {
		if e.currentState() == StateDone {
			continue
		}
		result := r.baseResult(e)
		result.Outcome = ledger.OutcomeSkipped
		result.Reason = ReasonDeferred
		r.complete(ctx, e, result, nil)
	}
	for _, e := range r.entries {
		e.mu.Lock()
		r.result.add(e.outcome, e.err)
		e.mu.Unlock()
	}
	r.result.FinishedAt = r.o.now()
	return r.result
}

func (e *entryRun) setState(state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

func (e *entryRun) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	issues := syncerr.Issues(err)
	if len(issues) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return strings.Join(parts, "; ")
}
