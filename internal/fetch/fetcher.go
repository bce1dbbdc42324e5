// Package fetch retrieves document bytes from a source with bounded retries
// on transient failures.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/syncerr"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 100 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
)

// File is one fetched content file.
type File struct {
	Path     string
	Revision string
	Content  []byte
	Attempts int
}

// Fetcher wraps a DocumentSource with retry and backoff.
type Fetcher struct {
	source      interfaces.DocumentSource
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error
	logger      interfaces.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxAttempts bounds the number of tries, including the first.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBackoff sets the base and cap of the exponential delay.
func WithBackoff(base, max time.Duration) Option {
	return func(f *Fetcher) {
		if base > 0 {
			f.baseDelay = base
		}
		if max > 0 {
			f.maxDelay = max
		}
	}
}

// WithSleep replaces the wait function, used by tests to avoid real delays.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New builds a Fetcher.
func New(source interfaces.DocumentSource, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:      source,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       sleepContext,
		logger:      logging.NoOp(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch reads path at revision. NotFound is returned immediately; transient
// failures are retried until attempts run out, then surface as
// TRANSIENT_FETCH_FAILURE.
func (f *Fetcher) Fetch(ctx context.Context, path, revision string) (*File, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		data, err := f.source.GetFileAt(ctx, path, revision)
		if err == nil {
			return &File{Path: path, Revision: revision, Content: data, Attempts: attempt}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !syncerr.IsTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == f.maxAttempts {
			break
		}

		delay := f.delay(attempt, err)
		f.logger.Warn("fetch.retry", "path", path, "revision", revision, "attempt", attempt, "delay", delay, "error", err)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, syncerr.New(syncerr.KindTransientFetch, path, lastErr)
}

// delay returns the wait before the next attempt: the server hint when one
// was given, otherwise base doubled per attempt, always capped.
func (f *Fetcher) delay(attempt int, err error) time.Duration {
	var transient *syncerr.Transient
	if errors.As(err, &transient) && transient.RetryAfter > 0 {
		return min(transient.RetryAfter, f.maxDelay)
	}
	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= f.maxDelay {
			return f.maxDelay
		}
	}
	return min(delay, f.maxDelay)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
