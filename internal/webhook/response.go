package webhook

import (
	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/syncer"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Summary is the 202 body returned for accepted notifications.
type Summary struct {
	ChangesetID string              `json:"changeset_id"`
	Revision    changeset.Revision  `json:"revision"`
	Queued      bool                `json:"queued"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	Skipped     int                 `json:"skipped"`
	Errors      []syncer.EntryError `json:"errors,omitempty"`
}

type jobStatus struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Entries int      `json:"entries"`
	Result  *Summary `json:"result,omitempty"`
}

func newSummary(result *syncer.Result) Summary {
	if result == nil {
		return Summary{}
	}
	return Summary{
		ChangesetID: result.ChangesetID,
		Revision:    result.Revision,
		Queued:      result.Queued,
		Total:       result.Total,
		Succeeded:   result.Succeeded,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
		Errors:      result.Errors,
	}
}

func summaryOrNil(result *syncer.Result) *Summary {
	if result == nil {
		return nil
	}
	summary := newSummary(result)
	return &summary
}
