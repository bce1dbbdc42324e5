package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/syncerr"
)

func TestFSGetFileAt(t *testing.T) {
	src := NewFS(fstest.MapFS{
		"posts/a.md": {Data: []byte("---\ntitle: A\n---\nbody")},
	})
	ctx := context.Background()

	data, err := src.GetFileAt(ctx, "posts/a.md", "ignored")
	if err != nil || string(data) != "---\ntitle: A\n---\nbody" {
		t.Fatalf("GetFileAt() = %q, %v", data, err)
	}
	if _, err := src.GetFileAt(ctx, "posts/missing.md", ""); !errors.Is(err, syncerr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFSListFilesSkipsHiddenDirs(t *testing.T) {
	src := NewFS(fstest.MapFS{
		"posts/b.md":        {Data: []byte("b")},
		"posts/a.md":        {Data: []byte("a")},
		".git/config":       {Data: []byte("x")},
		"authors/jane.md":   {Data: []byte("j")},
		"pages/nested/x.md": {Data: []byte("x")},
	})
	files, err := src.ListFiles(context.Background(), "")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	want := []string{"authors/jane.md", "pages/nested/x.md", "posts/a.md", "posts/b.md"}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("ListFiles() = %v, want %v", files, want)
	}
}

func TestGitGetFileAtMapsErrors(t *testing.T) {
	var calls [][]string
	runner := func(_ context.Context, dir string, args ...string) ([]byte, error) {
		calls = append(calls, args)
		switch args[len(args)-1] {
		case "r1:posts/a.md":
			return []byte("content"), nil
		case "r1:posts/gone.md":
			return nil, &GitCommandError{Args: args, Stderr: "fatal: path 'posts/gone.md' does not exist in 'r1'", Err: errors.New("exit status 128")}
		default:
			return nil, &GitCommandError{Args: args, Stderr: "fatal: unable to access remote", Err: errors.New("exit status 128")}
		}
	}
	src := NewGit("/repo", WithRunner(runner))
	ctx := context.Background()

	data, err := src.GetFileAt(ctx, "posts/a.md", "r1")
	if err != nil || string(data) != "content" {
		t.Fatalf("GetFileAt() = %q, %v", data, err)
	}
	if _, err := src.GetFileAt(ctx, "posts/gone.md", "r1"); !errors.Is(err, syncerr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := src.GetFileAt(ctx, "posts/x.md", "r1"); !syncerr.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls[0][0] != "show" {
		t.Fatalf("unexpected git invocation %v", calls[0])
	}
}

func TestGitRejectsOptionLikeRevisions(t *testing.T) {
	calls := 0
	runner := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return nil, nil
	}
	src := NewGit("/repo", WithRunner(runner))
	ctx := context.Background()

	for _, rev := range []string{"--output=/tmp/pwned", "-p", "main..evil", "r1:posts/a.md"} {
		_, err := src.GetFileAt(ctx, "posts/x.md", rev)
		if !errors.Is(err, changeset.ErrInvalidRevision) {
			t.Fatalf("GetFileAt(%q) error = %v, want invalid revision", rev, err)
		}
		if syncerr.IsTransient(err) || syncerr.KindOf(err) != syncerr.KindValidation {
			t.Fatalf("GetFileAt(%q) should fail permanently, got kind %s", rev, syncerr.KindOf(err))
		}
		if _, err := src.ListFiles(ctx, rev); !errors.Is(err, changeset.ErrInvalidRevision) {
			t.Fatalf("ListFiles(%q) error = %v", rev, err)
		}
		if _, _, err := src.ResolveRevision(ctx, rev); !errors.Is(err, changeset.ErrInvalidRevision) {
			t.Fatalf("ResolveRevision(%q) error = %v", rev, err)
		}
	}
	if calls != 0 {
		t.Fatalf("git ran %d times for invalid revisions", calls)
	}
}

func TestGitPassesEndOfOptions(t *testing.T) {
	var seen [][]string
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		seen = append(seen, args)
		if args[0] == "show" && args[1] == "-s" {
			return []byte("abc123 1\n"), nil
		}
		return []byte("posts/a.md\n"), nil
	}
	src := NewGit("/repo", WithRunner(runner))
	ctx := context.Background()
	_, _ = src.GetFileAt(ctx, "posts/a.md", "main")
	_, _ = src.ListFiles(ctx, "main")
	_, _, _ = src.ResolveRevision(ctx, "main")

	for _, args := range seen {
		if len(args) < 2 || args[len(args)-2] != "--end-of-options" {
			t.Fatalf("revision not guarded by --end-of-options: %v", args)
		}
	}
}

func TestGitListFilesAndResolveRevision(t *testing.T) {
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[0] == "ls-tree" {
			return []byte("posts/a.md\nauthors/jane.md\n\n"), nil
		}
		return []byte("abc123 1705312800\n"), nil
	}
	src := NewGit("/repo", WithRunner(runner))

	files, err := src.ListFiles(context.Background(), "")
	if err != nil || !reflect.DeepEqual(files, []string{"posts/a.md", "authors/jane.md"}) {
		t.Fatalf("ListFiles() = %v, %v", files, err)
	}
	id, seq, err := src.ResolveRevision(context.Background(), "main")
	if err != nil || id != "abc123" || seq != 1705312800 {
		t.Fatalf("ResolveRevision() = %q, %d, %v", id, seq, err)
	}
}

func TestHTTPGetFileAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/r1/posts/a.md":
			_, _ = w.Write([]byte("doc"))
		case "/r1/posts/limited.md":
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/r1/posts/broken.md":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL+"/{revision}/{path}", WithToken("secret"), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	data, err := src.GetFileAt(ctx, "posts/a.md", "r1")
	if err != nil || string(data) != "doc" {
		t.Fatalf("GetFileAt() = %q, %v", data, err)
	}
	if _, err := src.GetFileAt(ctx, "posts/missing.md", "r1"); !errors.Is(err, syncerr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	_, err = src.GetFileAt(ctx, "posts/limited.md", "r1")
	var transient *syncerr.Transient
	if !errors.As(err, &transient) || transient.RetryAfter != 3*time.Second {
		t.Fatalf("expected transient with retry-after, got %v", err)
	}
	if _, err := src.GetFileAt(ctx, "posts/broken.md", "r1"); !syncerr.IsTransient(err) {
		t.Fatalf("expected transient for 502, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if parseRetryAfter("2") != 2*time.Second {
		t.Fatalf("expected seconds form to parse")
	}
	if parseRetryAfter("soon") != 0 {
		t.Fatalf("expected garbage to yield zero")
	}
}
