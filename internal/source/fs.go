// Package source implements document repositories: a local filesystem, a git
// checkout driven through the git CLI, and a raw-content HTTP endpoint.
package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// FS reads documents from an fs.FS. Revisions are ignored because the tree
// only has one state.
type FS struct {
	fsys fs.FS
}

// NewFS wraps an existing filesystem.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// NewDir reads documents rooted at dir on the local disk.
func NewDir(dir string) *FS {
	return &FS{fsys: os.DirFS(dir)}
}

// GetFileAt returns the file bytes.
func (s *FS) GetFileAt(ctx context.Context, p, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, syncerr.New(syncerr.KindNotFound, p, err)
		}
		return nil, &syncerr.Transient{Err: err}
	}
	return data, nil
}

// ListFiles walks the tree and returns every regular file path.
func (s *FS) ListFiles(ctx context.Context, _ string) ([]string, error) {
	var files []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
