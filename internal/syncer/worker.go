package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// processor runs one deferred job to completion. Per-entry failures are
// part of the result, so a job always finishes.
type processor interface {
	Process(ctx context.Context, job *Job) *Result
}

type processorFunc func(ctx context.Context, job *Job) *Result

func (f processorFunc) Process(ctx context.Context, job *Job) *Result {
	return f(ctx, job)
}

// deferrer records the entries of a job that will not run.
type deferrer func(ctx context.Context, job *Job) *Result

// Worker drains a Queue through the orchestrator.
type Worker struct {
	queue        *Queue
	processor    processor
	deferrer     deferrer
	logger       interfaces.Logger
	batchSize    int
	pollInterval time.Duration
}

// WorkerOption customises a Worker.
type WorkerOption func(*Worker)

// WithBatchSize caps how many jobs one Process call claims.
func WithBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithPollInterval sets how often Run checks the queue without a signal.
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger interfaces.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker returns a worker draining the orchestrator queue.
func (o *Orchestrator) NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{
		queue: o.queue,
		processor: processorFunc(func(ctx context.Context, job *Job) *Result {
			return o.process(ctx, job.Changeset, job.Options)
		}),
		deferrer: func(ctx context.Context, job *Job) *Result {
			return o.Defer(ctx, job.Changeset, job.Options)
		},
		logger:       o.logger,
		batchSize:    1,
		pollInterval: time.Second,
	}
	if w.logger == nil {
		w.logger = logging.NoOp()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Process runs one batch of pending jobs and returns how many ran.
func (w *Worker) Process(ctx context.Context) (int, error) {
	if w.queue == nil {
		return 0, errors.New("syncer: worker has no queue")
	}
	if ctx.Err() != nil {
		return 0, nil
	}
	jobs := w.queue.Claim(w.batchSize)
	for _, job := range jobs {
		result := w.processor.Process(ctx, job)
		_ = w.queue.MarkDone(job.ID, result)
		w.logger.Info("sync.job.completed",
			"job_id", job.ID,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"skipped", result.Skipped,
		)
	}
	return len(jobs), nil
}

// Run processes jobs until ctx is done. Jobs still pending at that point
// are drained and their entries recorded as deferred, so every queued entry
// ends with a ledger outcome.
func (w *Worker) Run(ctx context.Context) error {
	if w.queue == nil {
		return errors.New("syncer: worker has no queue")
	}
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		for {
			n, err := w.Process(ctx)
			if err != nil {
				return err
			}
			if n == 0 || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-w.queue.Ready():
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	if w.deferrer == nil {
		return
	}
	for _, job := range w.queue.DrainPending() {
		result := w.deferrer(ctx, job)
		w.logger.Warn("sync.job.deferred",
			"job_id", job.ID,
			"entries", job.Changeset.Len(),
			"skipped", result.Skipped,
		)
	}
}
