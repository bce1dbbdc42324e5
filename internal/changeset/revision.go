package changeset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRevision reports a revision identifier that is not a commit id or
// a plain ref expression.
var ErrInvalidRevision = errors.New("changeset: invalid revision")

const maxRevisionLength = 255

// revisionPattern accepts hex commit ids, ref names (refs/heads/main,
// v1.2.0) and ancestry suffixes (HEAD~1, main^2). The first character may not
// be '-' so a revision is never read as a git option.
var revisionPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._/~^+-]*$`)

// ValidateRevision rejects identifiers that could not name a revision.
func ValidateRevision(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidRevision)
	case len(id) > maxRevisionLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidRevision, maxRevisionLength)
	case !revisionPattern.MatchString(id):
		return fmt.Errorf("%w: %q", ErrInvalidRevision, id)
	case strings.Contains(id, ".."), strings.Contains(id, "//"), strings.HasSuffix(id, ".lock"), strings.HasSuffix(id, "/"):
		return fmt.Errorf("%w: %q", ErrInvalidRevision, id)
	}
	return nil
}
