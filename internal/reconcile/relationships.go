package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-content-sync/internal/document"
	"github.com/goliatone/go-content-sync/internal/identity"
	"github.com/goliatone/go-content-sync/internal/store"
)

// LabelDiff lists label slugs by how their association changed.
type LabelDiff struct {
	Inserted  []string `json:"inserted,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// Empty reports whether no association was written.
func (d LabelDiff) Empty() bool {
	return len(d.Inserted) == 0 && len(d.Deleted) == 0
}

// SyncLabels makes the stored associations of entryID equal to desired.
// Missing labels are created, absent associations inserted and stale ones
// deleted. Associations present on both sides are never written. New
// associations are positioned after the highest stored position, in declared
// order.
func SyncLabels(ctx context.Context, tx store.Tx, entryID uuid.UUID, desired []document.Label) (LabelDiff, error) {
	var diff LabelDiff

	wanted := make([]store.Label, 0, len(desired))
	for _, label := range desired {
		wanted = append(wanted, store.Label{
			ID:   identity.LabelUUID(label.Slug),
			Slug: label.Slug,
			Name: label.Name,
		})
	}
	labels, err := tx.EnsureLabels(ctx, wanted)
	if err != nil {
		return diff, err
	}

	current, err := tx.ListEntryLabels(ctx, entryID)
	if err != nil {
		return diff, err
	}
	stored := make(map[uuid.UUID]store.EntryLabel, len(current))
	next := 0
	for _, row := range current {
		stored[row.LabelID] = row
		if row.Position >= next {
			next = row.Position + 1
		}
	}

	keep := make(map[uuid.UUID]struct{}, len(labels))
	var inserts []store.EntryLabel
	for _, label := range labels {
		keep[label.ID] = struct{}{}
		if _, ok := stored[label.ID]; ok {
			diff.Unchanged = append(diff.Unchanged, label.Slug)
			continue
		}
		inserts = append(inserts, store.EntryLabel{EntryID: entryID, LabelID: label.ID, Position: next})
		diff.Inserted = append(diff.Inserted, label.Slug)
		next++
	}

	var stale []uuid.UUID
	for _, row := range current {
		if _, ok := keep[row.LabelID]; ok {
			continue
		}
		stale = append(stale, row.LabelID)
		if row.Label != nil {
			diff.Deleted = append(diff.Deleted, row.Label.Slug)
		} else {
			diff.Deleted = append(diff.Deleted, row.LabelID.String())
		}
	}
	if _, err := tx.DeleteEntryLabels(ctx, entryID, stale); err != nil {
		return diff, err
	}

	if err := tx.InsertEntryLabels(ctx, inserts); err != nil {
		return diff, err
	}
	return diff, nil
}
