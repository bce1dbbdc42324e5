package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// Runner executes git with args inside dir and returns stdout. Tests swap it
// to avoid spawning processes.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Git reads documents from a local clone using the git CLI.
type Git struct {
	repoRoot string
	run      Runner
}

// GitOption configures a Git source.
type GitOption func(*Git)

// WithRunner overrides command execution.
func WithRunner(run Runner) GitOption {
	return func(g *Git) {
		if run != nil {
			g.run = run
		}
	}
}

// NewGit creates a source backed by the repository at repoRoot.
func NewGit(repoRoot string, opts ...GitOption) *Git {
	g := &Git{repoRoot: repoRoot, run: execGit}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GitCommandError carries the stderr of a failed git invocation.
type GitCommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitCommandError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Stderr))
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

func execGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, &GitCommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return out, nil
}

// GetFileAt runs `git show <revision>:<path>`. An invalid revision is a
// permanent validation failure and never reaches git.
func (g *Git) GetFileAt(ctx context.Context, p, revision string) ([]byte, error) {
	rev, err := revisionOrHead(revision)
	if err != nil {
		return nil, syncerr.New(syncerr.KindValidation, p, err)
	}
	out, err := g.run(ctx, g.repoRoot, "show", "--end-of-options", rev+":"+p)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if isMissingPath(err) {
		return nil, syncerr.New(syncerr.KindNotFound, p, err)
	}
	return nil, &syncerr.Transient{Err: err}
}

// ListFiles runs `git ls-tree -r --name-only <revision>`.
func (g *Git) ListFiles(ctx context.Context, revision string) ([]string, error) {
	rev, err := revisionOrHead(revision)
	if err != nil {
		return nil, err
	}
	out, err := g.run(ctx, g.repoRoot, "ls-tree", "-r", "--name-only", "--end-of-options", rev)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ResolveRevision returns the full commit id and its committer timestamp.
func (g *Git) ResolveRevision(ctx context.Context, revision string) (string, int64, error) {
	rev, err := revisionOrHead(revision)
	if err != nil {
		return "", 0, err
	}
	out, err := g.run(ctx, g.repoRoot, "show", "-s", "--format=%H %ct", "--end-of-options", rev)
	if err != nil {
		return "", 0, fmt.Errorf("resolve revision: %w", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("resolve revision: unexpected output %q", strings.TrimSpace(string(out)))
	}
	seq, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("resolve revision: %w", err)
	}
	return fields[0], seq, nil
}

func revisionOrHead(revision string) (string, error) {
	rev := strings.TrimSpace(revision)
	if rev == "" {
		return "HEAD", nil
	}
	if err := changeset.ValidateRevision(rev); err != nil {
		return "", err
	}
	return rev, nil
}

func isMissingPath(err error) bool {
	var cmdErr *GitCommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	stderr := cmdErr.Stderr
	return strings.Contains(stderr, "does not exist in") ||
		strings.Contains(stderr, "exists on disk, but not in")
}
