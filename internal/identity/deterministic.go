package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must prefix keys by entity type to avoid cross-entity collisions.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// EntryUUID identifies the entity projected for (kind, slug).
func EntryUUID(kind, slug string) uuid.UUID {
	return UUID("contentsync:entry:" + strings.ToLower(strings.TrimSpace(kind)) + ":" + strings.TrimSpace(slug))
}

// LabelUUID identifies a label by slug.
func LabelUUID(slug string) uuid.UUID {
	return UUID("contentsync:label:" + strings.TrimSpace(slug))
}

// ChangesetID derives a short stable identifier for a changeset from its
// revision and normalized entries.
func ChangesetID(revision string, entries []string) string {
	key := "contentsync:changeset:" + strings.TrimSpace(revision) + ":" + strings.Join(entries, ",")
	return UUID(key).String()[:8]
}
