package syncer

import (
	"time"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/ledger"
	"github.com/goliatone/go-content-sync/internal/reconcile"
	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// ReasonDeferred marks entries left unprocessed when a changeset ran out of
// time. A later sync or a full resync picks them up.
const ReasonDeferred = "deferred"

// State is the lifecycle position of one changeset entry.
type State string

const (
	StatePending     State = "pending"
	StateFetching    State = "fetching"
	StateDecoding    State = "decoding"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
)

// EntryResult is the terminal record of one changeset entry.
type EntryResult struct {
	Path      string              `json:"path"`
	Operation changeset.Operation `json:"operation"`
	Kind      string              `json:"kind,omitempty"`
	Slug      string              `json:"slug,omitempty"`
	Outcome   ledger.Outcome      `json:"outcome"`
	Reason    string              `json:"reason,omitempty"`
	ErrorCode string              `json:"error_code,omitempty"`
	Attempts  int                 `json:"attempts,omitempty"`
	Labels    reconcile.LabelDiff `json:"labels,omitempty"`
}

// EntryError describes one failed entry.
type EntryError struct {
	Path    string          `json:"path"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Issues  []syncerr.Issue `json:"issues,omitempty"`
}

// Result summarises a changeset run. A queued result only carries the
// identifiers and the entry total.
type Result struct {
	ChangesetID string             `json:"changeset_id"`
	Revision    changeset.Revision `json:"revision"`
	Queued      bool               `json:"queued,omitempty"`
	Total       int                `json:"total"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Skipped     int                `json:"skipped"`
	Entries     []EntryResult      `json:"entries,omitempty"`
	Errors      []EntryError       `json:"errors,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at,omitempty"`
}

// HasFailures reports whether any entry ended in error.
func (r *Result) HasFailures() bool {
	return r != nil && r.Failed > 0
}

func (r *Result) add(entry EntryResult, err error) {
	r.Entries = append(r.Entries, entry)
	switch entry.Outcome {
	case ledger.OutcomeSuccess:
		r.Succeeded++
	case ledger.OutcomeSkipped:
		r.Skipped++
	case ledger.OutcomeError:
		r.Failed++
		r.Errors = append(r.Errors, EntryError{
			Path:    entry.Path,
			Code:    entry.ErrorCode,
			Message: errorMessage(err),
			Issues:  syncerr.Issues(err),
		})
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
