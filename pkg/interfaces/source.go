package interfaces

import "context"

// DocumentSource reads a content file as it existed at a revision.
//
// Implementations return an error matching syncerr.ErrNotFound when the path
// does not exist at that revision and wrap retryable failures in
// *syncerr.Transient. Retries are the caller's responsibility.
type DocumentSource interface {
	GetFileAt(ctx context.Context, path, revision string) ([]byte, error)
}

// DocumentLister enumerates every file known to a source at a revision. It
// backs the full resync trigger.
type DocumentLister interface {
	ListFiles(ctx context.Context, revision string) ([]string, error)
}

// RevisionResolver resolves a symbolic revision (branch name, HEAD) to a
// concrete identifier and its ordering sequence.
type RevisionResolver interface {
	ResolveRevision(ctx context.Context, revision string) (id string, seq int64, err error)
}
