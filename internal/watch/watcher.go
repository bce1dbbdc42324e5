// Package watch turns local file system changes under the content roots into
// sync notifications. It backs the development watch mode.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

const defaultDebounce = 300 * time.Millisecond

// Handler receives one aggregated notification per quiet period.
type Handler func(ctx context.Context, n changeset.Notification) error

// Watcher observes the content roots below a directory.
type Watcher struct {
	dir      string
	roots    document.Roots
	debounce time.Duration
	handler  Handler
	logger   interfaces.Logger
	now      func() time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before pending changes are flushed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp revisions.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// New builds a watcher over dir. Only the configured roots are observed.
func New(dir string, roots document.Roots, handler Handler, opts ...Option) *Watcher {
	if len(roots) == 0 {
		roots = document.DefaultRoots()
	}
	w := &Watcher{
		dir:      filepath.Clean(dir),
		roots:    roots,
		debounce: defaultDebounce,
		handler:  handler,
		logger:   logging.NoOp(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. Pending changes are flushed before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	if w.handler == nil {
		return errors.New("watch: handler is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	watched := 0
	for _, root := range w.roots.Dirs() {
		dir := filepath.Join(w.dir, filepath.FromSlash(root))
		n, err := w.addTree(fsw, dir)
		if err != nil {
			return err
		}
		watched += n
	}
	if watched == 0 {
		return fmt.Errorf("watch: no content roots found under %s", w.dir)
	}
	w.logger.Info("watch.started", "dir", w.dir, "directories", watched)

	pending := newAggregator()
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx), pending)
			w.logger.Info("watch.stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fsw, pending, event) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch.error", "error", err)
		case <-timer.C:
			w.flush(ctx, pending)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, pending *aggregator, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(fsw, event.Name); err != nil {
				w.logger.Warn("watch.add_failed", "dir", event.Name, "error", err)
			}
			return false
		}
	}
	rel, ok := w.relative(event.Name)
	if !ok {
		return false
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pending.add(rel, changeset.OpDelete)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		pending.add(rel, changeset.OpUpsert)
	default:
		return false
	}
	return true
}

func (w *Watcher) flush(ctx context.Context, pending *aggregator) {
	n, ok := pending.drain(w.now())
	if !ok {
		return
	}
	w.logger.Debug("watch.flush", "revision", n.Revision, "modified", len(n.Modified), "removed", len(n.Removed))
	if err := w.handler(ctx, n); err != nil {
		w.logger.Error("watch.handler_failed", "revision", n.Revision, "error", err)
	}
}

func (w *Watcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add %s: %w", p, err)
		}
		count++
		return nil
	})
	return count, err
}

// aggregator folds events for the same path; the latest operation wins.
type aggregator struct {
	mu    sync.Mutex
	order []string
	ops   map[string]changeset.Operation
}

func newAggregator() *aggregator {
	return &aggregator{ops: map[string]changeset.Operation{}}
}

func (a *aggregator) add(p string, op changeset.Operation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.ops[p]; !ok {
		a.order = append(a.order, p)
	}
	a.ops[p] = op
}

func (a *aggregator) drain(now time.Time) (changeset.Notification, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.order) == 0 {
		return changeset.Notification{}, false
	}
	n := changeset.Notification{
		Revision:  fmt.Sprintf("worktree-%d", now.UnixNano()),
		Timestamp: now,
	}
	for _, p := range a.order {
		switch a.ops[p] {
		case changeset.OpDelete:
			n.Removed = append(n.Removed, p)
		default:
			n.Modified = append(n.Modified, p)
		}
	}
	a.order = nil
	a.ops = map[string]changeset.Operation{}
	return n, true
}
