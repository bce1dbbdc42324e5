package synccmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/syncer"
)

const (
	syncChangesetMessageType = "contentsync.sync.changeset"
	fullResyncMessageType    = "contentsync.sync.resync"
)

// ResultCallback receives the aggregate result of a sync. It is invoked
// synchronously from the handler, also when the run failed part way.
type ResultCallback func(*syncer.Result)

// SyncChangesetCommand synchronizes an explicit list of paths at a revision.
type SyncChangesetCommand struct {
	Revision       string                    `json:"revision"`
	Sequence       int64                     `json:"sequence,omitempty"`
	Entries        []changeset.ExplicitEntry `json:"entries"`
	Force          bool                      `json:"force,omitempty"`
	ResultCallback ResultCallback            `json:"-"`
}

// Type implements command.Message.
func (SyncChangesetCommand) Type() string { return syncChangesetMessageType }

// Validate requires a revision and at least one well-formed entry.
func (m SyncChangesetCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Revision,
			validation.By(requiredText("contentsync.sync.changeset.revision_required", "revision is required")),
			validation.By(validRevision("contentsync.sync.changeset.revision_invalid")),
		),
		validation.Field(&m.Sequence, validation.Min(int64(0))),
		validation.Field(&m.Entries,
			validation.Required.ErrorObject(validation.NewError("contentsync.sync.changeset.entries_required", "at least one entry is required")),
			validation.Each(validation.By(validEntry)),
		),
	)
}

// FullResyncCommand re-reads every content file at a revision and rewrites
// the store unconditionally.
type FullResyncCommand struct {
	Revision       string         `json:"revision"`
	Sequence       int64          `json:"sequence,omitempty"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (FullResyncCommand) Type() string { return fullResyncMessageType }

// Validate requires a revision.
func (m FullResyncCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Revision,
			validation.By(requiredText("contentsync.sync.resync.revision_required", "revision is required")),
			validation.By(validRevision("contentsync.sync.resync.revision_invalid")),
		),
		validation.Field(&m.Sequence, validation.Min(int64(0))),
	)
}

func requiredText(code, message string) validation.RuleFunc {
	return func(value any) error {
		text, _ := value.(string)
		if strings.TrimSpace(text) == "" {
			return validation.NewError(code, message)
		}
		return nil
	}
}

func validRevision(code string) validation.RuleFunc {
	return func(value any) error {
		text, _ := value.(string)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if err := changeset.ValidateRevision(text); err != nil {
			return validation.NewError(code, "revision must be a commit id or ref name")
		}
		return nil
	}
}

func validEntry(value any) error {
	entry, ok := value.(changeset.ExplicitEntry)
	if !ok {
		return validation.NewError("contentsync.sync.changeset.entry_invalid", "entry is malformed")
	}
	if strings.TrimSpace(entry.Path) == "" {
		return validation.NewError("contentsync.sync.changeset.path_required", "entry path is required")
	}
	if _, err := changeset.ParseOperation(entry.Operation); err != nil {
		return validation.NewError("contentsync.sync.changeset.operation_invalid", "entry operation must be upsert or delete")
	}
	return nil
}

func invokeCallback(cb ResultCallback, result *syncer.Result) {
	if cb == nil || result == nil {
		return
	}
	cb(result)
}
