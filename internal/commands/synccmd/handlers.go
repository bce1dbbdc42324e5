package synccmd

import (
	"context"
	"strings"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/commands"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/syncer"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// ChangesetRunner runs a normalized changeset. *syncer.Orchestrator satisfies it.
type ChangesetRunner interface {
	Sync(ctx context.Context, cs changeset.Changeset, opts syncer.Options) (*syncer.Result, error)
}

// SyncChangesetHandler turns explicit path lists into changesets.
type SyncChangesetHandler struct {
	inner *commands.Handler[SyncChangesetCommand]
}

// NewSyncChangesetHandler constructs a handler wired to the extractor and runner.
func NewSyncChangesetHandler(extractor *changeset.Extractor, runner ChangesetRunner, logger interfaces.Logger, opts ...commands.HandlerOption[SyncChangesetCommand]) *SyncChangesetHandler {
	if logger == nil {
		logger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg SyncChangesetCommand) error {
		rev := changeset.Revision{ID: strings.TrimSpace(msg.Revision), Seq: msg.Sequence}
		cs, err := extractor.FromExplicit(rev, msg.Entries)
		if err != nil {
			return err
		}
		result, err := runner.Sync(ctx, cs, syncer.Options{Force: msg.Force})
		invokeCallback(msg.ResultCallback, result)
		return err
	}

	handlerOpts := []commands.HandlerOption[SyncChangesetCommand]{
		commands.WithLogger[SyncChangesetCommand](logger),
		commands.WithOperation[SyncChangesetCommand]("sync.changeset"),
		commands.WithMessageFields(func(msg SyncChangesetCommand) map[string]any {
			fields := map[string]any{
				"revision": strings.TrimSpace(msg.Revision),
				"entries":  len(msg.Entries),
			}
			if msg.Force {
				fields["force"] = true
			}
			return fields
		}),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &SyncChangesetHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[SyncChangesetCommand].
func (h *SyncChangesetHandler) Execute(ctx context.Context, msg SyncChangesetCommand) error {
	return h.inner.Execute(ctx, msg)
}

// FullResyncHandler enumerates the source and forces every file through.
type FullResyncHandler struct {
	inner *commands.Handler[FullResyncCommand]
}

// NewFullResyncHandler constructs a handler wired to a lister and runner.
func NewFullResyncHandler(lister interfaces.DocumentLister, extractor *changeset.Extractor, runner ChangesetRunner, logger interfaces.Logger, opts ...commands.HandlerOption[FullResyncCommand]) *FullResyncHandler {
	if logger == nil {
		logger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg FullResyncCommand) error {
		revision := strings.TrimSpace(msg.Revision)
		paths, err := lister.ListFiles(ctx, revision)
		if err != nil {
			return err
		}
		cs := extractor.FullResync(changeset.Revision{ID: revision, Seq: msg.Sequence}, paths)
		logger.Info("sync.resync.enumerated", "revision", revision, "files", len(paths), "entries", cs.Len())
		result, err := runner.Sync(ctx, cs, syncer.Options{Force: true})
		invokeCallback(msg.ResultCallback, result)
		return err
	}

	handlerOpts := []commands.HandlerOption[FullResyncCommand]{
		commands.WithLogger[FullResyncCommand](logger),
		commands.WithOperation[FullResyncCommand]("sync.resync"),
		commands.WithMessageFields(func(msg FullResyncCommand) map[string]any {
			return map[string]any{"revision": strings.TrimSpace(msg.Revision)}
		}),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &FullResyncHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[FullResyncCommand].
func (h *FullResyncHandler) Execute(ctx context.Context, msg FullResyncCommand) error {
	return h.inner.Execute(ctx, msg)
}
