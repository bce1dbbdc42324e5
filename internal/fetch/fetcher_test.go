package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-content-sync/internal/syncerr"
)

type scriptedSource struct {
	results []error
	calls   int
}

func (s *scriptedSource) GetFileAt(_ context.Context, path, _ string) ([]byte, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return nil, s.results[idx]
	}
	return []byte("content:" + path), nil
}

func recordSleeps(delays *[]time.Duration) Option {
	return WithSleep(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	src := &scriptedSource{results: []error{
		&syncerr.Transient{Err: errors.New("503")},
		&syncerr.Transient{Err: errors.New("reset")},
	}}
	var delays []time.Duration
	f := New(src, WithMaxAttempts(3), WithBackoff(100*time.Millisecond, time.Second), recordSleeps(&delays))

	file, err := f.Fetch(context.Background(), "posts/a.md", "r1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if file.Attempts != 3 || string(file.Content) != "content:posts/a.md" {
		t.Fatalf("unexpected file %+v", file)
	}
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Fatalf("unexpected delays %v", delays)
	}
}

func TestFetchSurfacesExhaustedRetries(t *testing.T) {
	transient := &syncerr.Transient{Err: errors.New("503")}
	src := &scriptedSource{results: []error{transient, transient}}
	var delays []time.Duration
	f := New(src, WithMaxAttempts(2), recordSleeps(&delays))

	_, err := f.Fetch(context.Background(), "posts/a.md", "r1")
	if syncerr.KindOf(err) != syncerr.KindTransientFetch {
		t.Fatalf("expected TRANSIENT_FETCH_FAILURE, got %v", err)
	}
	if src.calls != 2 || len(delays) != 1 {
		t.Fatalf("expected 2 calls and 1 sleep, got %d and %d", src.calls, len(delays))
	}
}

func TestFetchNeverRetriesNotFound(t *testing.T) {
	src := &scriptedSource{results: []error{syncerr.New(syncerr.KindNotFound, "posts/a.md", nil)}}
	f := New(src, WithSleep(func(context.Context, time.Duration) error {
		t.Fatalf("unexpected sleep")
		return nil
	}))
	_, err := f.Fetch(context.Background(), "posts/a.md", "r1")
	if !errors.Is(err, syncerr.ErrNotFound) || src.calls != 1 {
		t.Fatalf("expected single NotFound call, got %v after %d calls", err, src.calls)
	}
}

func TestFetchHonorsRetryAfterWithinCap(t *testing.T) {
	src := &scriptedSource{results: []error{&syncerr.Transient{Err: errors.New("429"), RetryAfter: 10 * time.Second}}}
	var delays []time.Duration
	f := New(src, WithBackoff(50*time.Millisecond, 2*time.Second), recordSleeps(&delays))
	if _, err := f.Fetch(context.Background(), "posts/a.md", "r1"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Fatalf("expected capped retry-after delay, got %v", delays)
	}
}

func TestFetchStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{results: []error{&syncerr.Transient{Err: errors.New("503")}}}
	f := New(src, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	if _, err := f.Fetch(ctx, "posts/a.md", "r1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDelayDoublesUntilCap(t *testing.T) {
	f := New(nil, WithBackoff(100*time.Millisecond, 300*time.Millisecond))
	plain := errors.New("x")
	if d := f.delay(1, plain); d != 100*time.Millisecond {
		t.Fatalf("attempt 1 delay = %v", d)
	}
	if d := f.delay(2, plain); d != 200*time.Millisecond {
		t.Fatalf("attempt 2 delay = %v", d)
	}
	if d := f.delay(3, plain); d != 300*time.Millisecond {
		t.Fatalf("attempt 3 delay = %v", d)
	}
}
