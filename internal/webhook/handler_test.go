package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/syncer"
)

type recordingRunner struct {
	changesets []changeset.Changeset
	ctxErr     error
}

func (r *recordingRunner) Sync(ctx context.Context, cs changeset.Changeset, _ syncer.Options) (*syncer.Result, error) {
	r.changesets = append(r.changesets, cs)
	r.ctxErr = ctx.Err()
	return &syncer.Result{
		ChangesetID: cs.ID,
		Revision:    cs.Revision,
		Total:       cs.Len(),
		Succeeded:   cs.Len(),
	}, nil
}

func setupAPI(t *testing.T, opts ...Option) (*http.ServeMux, *recordingRunner) {
	t.Helper()
	runner := &recordingRunner{}
	api := New(changeset.NewExtractor(document.DefaultRoots(), ".md"), runner, opts...)
	mux := http.NewServeMux()
	if err := api.Register(mux); err != nil {
		t.Fatalf("register: %v", err)
	}
	return mux, runner
}

func doRequest(t *testing.T, mux http.Handler, method, path, event string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if event != "" {
		req.Header.Set(eventHeader, event)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGenericNotificationAccepted(t *testing.T) {
	mux, runner := setupAPI(t)
	body := []byte(`{"revision":"r1","sequence":1,"added":["posts/2024-01-15-hello.md","README.md"],"removed":["authors/old.md"]}`)

	rec := doRequest(t, mux, http.MethodPost, "/hooks/content", "", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	var summary Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total != 2 || summary.Revision.ID != "r1" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(runner.changesets) != 1 || runner.changesets[0].Entries[1].Operation != changeset.OpDelete {
		t.Fatalf("unexpected changesets %+v", runner.changesets)
	}
}

func TestPushEventAccepted(t *testing.T) {
	mux, runner := setupAPI(t)
	body := []byte(`{
		"ref": "refs/heads/main",
		"after": "abc123",
		"commits": [
			{"id": "c1", "timestamp": "2024-01-15T10:00:00Z", "added": ["posts/a.md"]},
			{"id": "c2", "timestamp": "2024-01-15T11:00:00Z", "modified": ["pages/about.md"]}
		]
	}`)

	rec := doRequest(t, mux, http.MethodPost, "/hooks/content", "push", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	cs := runner.changesets[0]
	if cs.Revision.ID != "abc123" || cs.Len() != 2 {
		t.Fatalf("unexpected changeset %+v", cs)
	}
	if cs.Revision.Seq == 0 {
		t.Fatal("expected commit timestamp to order the revision")
	}
}

func TestPingAnswersOK(t *testing.T) {
	mux, runner := setupAPI(t)
	rec := doRequest(t, mux, http.MethodPost, "/hooks/content", "ping", []byte(`{"zen":"keep it simple"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(runner.changesets) != 0 {
		t.Fatal("expected ping not to sync")
	}
}

func TestMalformedPayloadRejected(t *testing.T) {
	mux, runner := setupAPI(t)
	cases := map[string][]byte{
		"invalid json":     []byte(`{"revision":`),
		"missing revision": []byte(`{"added":["posts/a.md"]}`),
		"empty":            nil,
		"option revision":  []byte(`{"revision":"--output=/tmp/x","added":["posts/a.md"]}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, mux, http.MethodPost, "/hooks/content", "", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
		})
	}

	push := []byte(`{"after":"-c core.pager=sh","commits":[{"added":["posts/a.md"]}]}`)
	if rec := doRequest(t, mux, http.MethodPost, "/hooks/content", "push", push); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for option-like push revision, got %d", rec.Code)
	}
	if len(runner.changesets) != 0 {
		t.Fatal("expected malformed payloads not to sync")
	}
}

func TestMethodAndSizeLimits(t *testing.T) {
	mux, _ := setupAPI(t, WithMaxBodyBytes(16))

	rec := doRequest(t, mux, http.MethodGet, "/hooks/content", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}

	big := []byte(`{"revision":"r1","added":["` + strings.Repeat("a", 64) + `"]}`)
	rec = doRequest(t, mux, http.MethodPost, "/hooks/content", "", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", rec.Code)
	}
}

func TestSyncSurvivesCallerCancellation(t *testing.T) {
	mux, runner := setupAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/hooks/content", strings.NewReader(`{"revision":"r1","added":["posts/a.md"]}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rec.Code)
	}
	if runner.ctxErr != nil {
		t.Fatalf("expected detached context, got %v", runner.ctxErr)
	}
}

func TestJobStatusRoute(t *testing.T) {
	queue := syncer.NewQueue(4)
	cs := changeset.Changeset{ID: "cs-1", Revision: changeset.Revision{ID: "r9"}, Entries: []changeset.Entry{{Path: "posts/a.md", Operation: changeset.OpUpsert}}}
	if _, err := queue.Enqueue(context.Background(), cs, syncer.Options{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	mux, _ := setupAPI(t, WithJobs(queue), WithPath("/sync/"))

	rec := doRequest(t, mux, http.MethodGet, "/sync/jobs/cs-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var status jobStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != string(syncer.JobStatusPending) || status.Entries != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	rec = doRequest(t, mux, http.MethodGet, "/sync/jobs/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
