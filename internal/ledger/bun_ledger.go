package ledger

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/store"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

// NewRecordRepository creates a repository for ledger rows.
func NewRecordRepository(db *bun.DB) repository.Repository[*store.LedgerRecord] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*store.LedgerRecord]{
		NewRecord: func() *store.LedgerRecord { return &store.LedgerRecord{} },
		GetID: func(r *store.LedgerRecord) uuid.UUID {
			return r.ID
		},
		SetID: func(r *store.LedgerRecord, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(r *store.LedgerRecord) string {
			return r.ID.String()
		},
	})
}

// BunLedger appends ledger rows to the sync_ledger table.
type BunLedger struct {
	repo   repository.Repository[*store.LedgerRecord]
	logger interfaces.Logger
	now    func() time.Time
}

// NewBunLedger builds a ledger over db.
func NewBunLedger(db *bun.DB, logger interfaces.Logger) *BunLedger {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &BunLedger{
		repo:   NewRecordRepository(db),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record inserts entry. The write runs on a context detached from caller
// cancellation so that deferred and timed out entries are still recorded.
func (l *BunLedger) Record(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	record := toRecord(entry)
	if _, err := l.repo.Create(context.WithoutCancel(ctx), record); err != nil {
		l.logger.Error("ledger.record.failed",
			"changeset_id", entry.ChangesetID,
			"path", entry.SourcePath,
			"outcome", string(entry.Outcome),
			"error", err,
		)
	}
}

func (l *BunLedger) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	where := repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.ChangesetID != "" {
			q = q.Where("?TableAlias.changeset_id = ?", filter.ChangesetID)
		}
		if filter.SourcePath != "" {
			q = q.Where("?TableAlias.source_path = ?", filter.SourcePath)
		}
		if filter.Revision != "" {
			q = q.Where("?TableAlias.revision = ?", filter.Revision)
		}
		if filter.Outcome != "" {
			q = q.Where("?TableAlias.outcome = ?", string(filter.Outcome))
		}
		return q.OrderExpr("?TableAlias.created_at DESC")
	})

	var (
		records []*store.LedgerRecord
		total   int
		err     error
	)
	if filter.Limit > 0 {
		records, total, err = l.repo.List(ctx, where, repository.SelectPaginate(filter.Limit, filter.Offset))
	} else {
		records, total, err = l.repo.List(ctx, where)
	}
	if err != nil {
		return nil, 0, err
	}
	out := make([]Entry, 0, len(records))
	for _, record := range records {
		out = append(out, fromRecord(record))
	}
	return out, total, nil
}

func toRecord(entry Entry) *store.LedgerRecord {
	return &store.LedgerRecord{
		ID:          uuid.New(),
		ChangesetID: entry.ChangesetID,
		Operation:   entry.Operation,
		EntityKind:  entry.EntityKind,
		EntitySlug:  entry.EntitySlug,
		SourcePath:  entry.SourcePath,
		Revision:    entry.Revision,
		Outcome:     string(entry.Outcome),
		Reason:      entry.Reason,
		ErrorCode:   entry.ErrorCode,
		ErrorDetail: entry.ErrorDetail,
		CreatedAt:   entry.CreatedAt,
	}
}

func fromRecord(record *store.LedgerRecord) Entry {
	return Entry{
		ChangesetID: record.ChangesetID,
		Operation:   record.Operation,
		EntityKind:  record.EntityKind,
		EntitySlug:  record.EntitySlug,
		SourcePath:  record.SourcePath,
		Revision:    record.Revision,
		Outcome:     Outcome(record.Outcome),
		Reason:      record.Reason,
		ErrorCode:   record.ErrorCode,
		ErrorDetail: record.ErrorDetail,
		CreatedAt:   record.CreatedAt,
	}
}
