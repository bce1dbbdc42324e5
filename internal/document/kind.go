package document

import (
	"fmt"
	"strings"
)

// Kind is the document variant resolved from a file's content root.
type Kind string

const (
	KindPost   Kind = "post"
	KindAuthor Kind = "author"
	KindPage   Kind = "page"
)

// ParseKind validates a configured kind name.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindPost:
		return KindPost, nil
	case KindAuthor:
		return KindAuthor, nil
	case KindPage:
		return KindPage, nil
	}
	return "", fmt.Errorf("document: unknown kind %q", value)
}

func (k Kind) String() string {
	return string(k)
}

// Roots maps top-level repository directories to document kinds.
type Roots map[string]Kind

// DefaultRoots returns the conventional posts/authors/pages layout.
func DefaultRoots() Roots {
	return Roots{
		"posts":   KindPost,
		"authors": KindAuthor,
		"pages":   KindPage,
	}
}

// ParseRoots converts a configuration map into Roots.
func ParseRoots(raw map[string]string) (Roots, error) {
	if len(raw) == 0 {
		return DefaultRoots(), nil
	}
	roots := make(Roots, len(raw))
	for dir, name := range raw {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		dir = strings.Trim(strings.TrimSpace(dir), "/")
		if dir == "" || strings.Contains(dir, "/") {
			return nil, fmt.Errorf("document: content root %q must be a top-level directory", dir)
		}
		roots[dir] = kind
	}
	return roots, nil
}

// KindFor returns the kind owning a cleaned repository path.
func (r Roots) KindFor(path string) (Kind, bool) {
	head, rest, found := strings.Cut(path, "/")
	if !found || rest == "" {
		return "", false
	}
	kind, ok := r[head]
	return kind, ok
}

// Dirs lists the configured root directories.
func (r Roots) Dirs() []string {
	dirs := make([]string, 0, len(r))
	for dir := range r {
		dirs = append(dirs, dir)
	}
	return dirs
}
