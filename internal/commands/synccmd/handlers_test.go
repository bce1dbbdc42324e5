package synccmd

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/syncer"
	goerrors "github.com/goliatone/go-errors"
)

type recordingRunner struct {
	changesets []changeset.Changeset
	options    []syncer.Options
	err        error
}

func (r *recordingRunner) Sync(_ context.Context, cs changeset.Changeset, opts syncer.Options) (*syncer.Result, error) {
	r.changesets = append(r.changesets, cs)
	r.options = append(r.options, opts)
	return &syncer.Result{ChangesetID: cs.ID, Total: cs.Len(), Succeeded: cs.Len()}, r.err
}

type stubLister struct {
	paths []string
	err   error
}

func (s stubLister) ListFiles(context.Context, string) ([]string, error) {
	return s.paths, s.err
}

func newExtractor() *changeset.Extractor {
	return changeset.NewExtractor(document.DefaultRoots(), ".md")
}

func TestSyncChangesetCommandValidation(t *testing.T) {
	cases := []struct {
		name string
		msg  SyncChangesetCommand
		ok   bool
	}{
		{"valid", SyncChangesetCommand{Revision: "r1", Entries: []changeset.ExplicitEntry{{Path: "posts/a.md", Operation: "upsert"}}}, true},
		{"missing revision", SyncChangesetCommand{Entries: []changeset.ExplicitEntry{{Path: "posts/a.md", Operation: "upsert"}}}, false},
		{"no entries", SyncChangesetCommand{Revision: "r1"}, false},
		{"bad operation", SyncChangesetCommand{Revision: "r1", Entries: []changeset.ExplicitEntry{{Path: "posts/a.md", Operation: "rename"}}}, false},
		{"blank path", SyncChangesetCommand{Revision: "r1", Entries: []changeset.ExplicitEntry{{Path: " ", Operation: "delete"}}}, false},
		{"option-like revision", SyncChangesetCommand{Revision: "--output=/tmp/x", Entries: []changeset.ExplicitEntry{{Path: "posts/a.md", Operation: "upsert"}}}, false},
		{"revision with spaces", SyncChangesetCommand{Revision: "r1 r2", Entries: []changeset.ExplicitEntry{{Path: "posts/a.md", Operation: "upsert"}}}, false},
		{"negative sequence", SyncChangesetCommand{Revision: "r1", Sequence: -1, Entries: []changeset.ExplicitEntry{{Path: "posts/a.md", Operation: "upsert"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid message, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSyncChangesetHandlerRunsExplicitChangeset(t *testing.T) {
	runner := &recordingRunner{}
	handler := NewSyncChangesetHandler(newExtractor(), runner, nil)

	var got *syncer.Result
	err := handler.Execute(context.Background(), SyncChangesetCommand{
		Revision: "r7",
		Sequence: 7,
		Force:    true,
		Entries: []changeset.ExplicitEntry{
			{Path: "posts/2024-01-15-hello.md", Operation: "upsert"},
			{Path: "authors/jane.md", Operation: "delete"},
			{Path: "README.md", Operation: "upsert"},
		},
		ResultCallback: func(result *syncer.Result) { got = result },
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(runner.changesets) != 1 {
		t.Fatalf("expected one changeset, got %d", len(runner.changesets))
	}
	cs := runner.changesets[0]
	if cs.Revision.ID != "r7" || cs.Revision.Seq != 7 {
		t.Fatalf("unexpected revision %+v", cs.Revision)
	}
	if cs.Len() != 2 {
		t.Fatalf("expected unrecognized paths to be dropped, got %+v", cs.Entries)
	}
	if !runner.options[0].Force {
		t.Fatal("expected force to be forwarded")
	}
	if got == nil || got.ChangesetID != cs.ID {
		t.Fatalf("expected result callback, got %+v", got)
	}
}

func TestSyncChangesetHandlerRejectsInvalidMessage(t *testing.T) {
	runner := &recordingRunner{}
	handler := NewSyncChangesetHandler(newExtractor(), runner, nil)

	err := handler.Execute(context.Background(), SyncChangesetCommand{Revision: "r1"})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if len(runner.changesets) != 0 {
		t.Fatal("expected runner not to be called")
	}
}

func TestFullResyncHandlerForcesEveryFile(t *testing.T) {
	runner := &recordingRunner{}
	lister := stubLister{paths: []string{"posts/a.md", "pages/about.md", "assets/logo.png"}}
	handler := NewFullResyncHandler(lister, newExtractor(), runner, nil)

	if err := handler.Execute(context.Background(), FullResyncCommand{Revision: "head"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cs := runner.changesets[0]
	if cs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %+v", cs.Entries)
	}
	for _, entry := range cs.Entries {
		if entry.Operation != changeset.OpUpsert {
			t.Fatalf("expected upserts only, got %+v", entry)
		}
	}
	if !runner.options[0].Force {
		t.Fatal("expected resync to force writes")
	}
}

func TestFullResyncHandlerWrapsListingError(t *testing.T) {
	runner := &recordingRunner{}
	handler := NewFullResyncHandler(stubLister{err: errors.New("git unavailable")}, newExtractor(), runner, nil)

	err := handler.Execute(context.Background(), FullResyncCommand{Revision: "head"})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if len(runner.changesets) != 0 {
		t.Fatal("expected runner not to be called")
	}
}
