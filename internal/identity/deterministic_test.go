package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestEntryUUIDIsStablePerKindAndSlug(t *testing.T) {
	a := EntryUUID("post", "hello")
	b := EntryUUID("post", "hello")
	if a == uuid.Nil || a != b {
		t.Fatalf("expected stable non-nil id, got %s and %s", a, b)
	}
	if EntryUUID("page", "hello") == a {
		t.Fatalf("expected kind to partition identifiers")
	}
	if LabelUUID("hello") == a {
		t.Fatalf("expected label ids to differ from entry ids")
	}
}

func TestUUIDEmptyKey(t *testing.T) {
	if UUID("  ") != uuid.Nil {
		t.Fatalf("expected nil uuid for empty key")
	}
}

func TestChangesetID(t *testing.T) {
	first := ChangesetID("r1", []string{"upsert:posts/a.md"})
	if len(first) != 8 {
		t.Fatalf("expected 8 character id, got %q", first)
	}
	if first != ChangesetID("r1", []string{"upsert:posts/a.md"}) {
		t.Fatalf("expected deterministic id")
	}
	if first == ChangesetID("r2", []string{"upsert:posts/a.md"}) {
		t.Fatalf("expected revision to change id")
	}
}
