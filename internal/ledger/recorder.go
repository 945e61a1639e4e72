package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tiplinehq/tipline/pkg/common/constant"
	"github.com/tiplinehq/tipline/pkg/common/enum"
	"github.com/tiplinehq/tipline/pkg/common/logger"
	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
	"github.com/tiplinehq/tipline/pkg/seencache"
)

// Human-readable reasons stored on skipped/failed rows. Stable strings: the
// dedup path relies on rows existing, ops dashboards rely on these values.
const (
	ReasonQuoteNotCommand   = "quote-not-command"
	ReasonNotACommand       = "not-a-command"
	ReasonSenderNotFound    = "sender-not-found"
	ReasonRecipientNotFound = "recipient-not-found"
	ReasonNoPayAddress      = "no-pay-address"
	ReasonInsufficientFunds = "insufficient-funds"
	ReasonTransferFailed    = "transfer-failed"
	ReasonFeeLegFailed      = "fee-leg-failed"
)

// Recorder owns the append-only transaction ledger. The check-then-insert
// sequence here is an optimization only; the correctness guarantee is the
// unique index on source_event_id, surfaced as repository.ErrDuplicate and
// treated as already-recorded.
type Recorder struct {
	records   repository.Repository[model.TransactionRecord]
	campaigns repository.Repository[model.Campaign]
	seen      *seencache.Cache
}

func NewRecorder(
	records repository.Repository[model.TransactionRecord],
	campaigns repository.Repository[model.Campaign],
	seen *seencache.Cache,
) *Recorder {
	return &Recorder{
		records:   records,
		campaigns: campaigns,
		seen:      seen,
	}
}

// LegKey derives the ledger key for one recipient leg of a multi-recipient
// intent. Every leg gets a positional suffix; the bare event id is reserved
// for whole-event rows (skips, pre-flight failures). Keeping the keys
// disjoint lets a retried cycle dedup each leg independently, so a record
// write that failed mid-batch only replays the legs that are still missing.
func LegKey(sourceEventID string, leg int) string {
	return fmt.Sprintf("%s#%d", sourceEventID, leg)
}

// AlreadyRecorded reports whether any ledger row exists for the source
// event. The bloom cache short-circuits the common "never seen" case; a
// positive is always confirmed against the database.
func (r *Recorder) AlreadyRecorded(ctx context.Context, sourceEventID string) (bool, error) {
	if r.seen != nil && !r.seen.MaybeSeen(sourceEventID) {
		return false, nil
	}

	count, err := r.records.Count(ctx, repository.FindOptions{
		Where: repository.WhereType{"source_event_id": sourceEventID},
	})
	if err != nil {
		return false, fmt.Errorf("already recorded %s: %w", sourceEventID, err)
	}
	return count > 0, nil
}

// Record appends one ledger row. Returns inserted=false when a row for the
// same source event id already exists (lost a race to another process or a
// previous cycle), which callers treat as successful completion.
func (r *Recorder) Record(ctx context.Context, rec *model.TransactionRecord) (bool, error) {
	err := r.records.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Debug("Ledger row already exists", "source_event_id", rec.SourceEventID)
			return false, nil
		}
		return false, fmt.Errorf("record %s: %w", rec.SourceEventID, err)
	}

	if r.seen != nil {
		r.seen.Add(rec.SourceEventID)
	}
	return true, nil
}

// RecordGrant appends the grant's ledger row and, when the row was actually
// inserted, bumps the campaign's participant and budget counters in a
// single expression UPDATE so concurrent processes cannot lose increments.
// Counters move for every grant that paid the recipient, which includes the
// partially completed fee-leg case. Capacity remains a soft limit: it is
// checked before execution, not reserved here.
func (r *Recorder) RecordGrant(ctx context.Context, rec *model.TransactionRecord, campaign *model.Campaign) (bool, error) {
	inserted, err := r.Record(ctx, rec)
	if err != nil || !inserted {
		return inserted, err
	}

	if rec.Status != enum.TxStatusCompleted && rec.Status != enum.TxStatusPartial {
		return true, nil
	}

	_, err = r.campaigns.UpdateFields(ctx,
		repository.WhereType{"id": campaign.ID},
		map[string]any{
			"current_participants": gorm.Expr("current_participants + 1"),
			"budget_spent":         gorm.Expr("budget_spent + ?", rec.Amount),
		},
	)
	if err != nil {
		// The grant itself is recorded; a failed counter bump is logged and
		// left for reconciliation rather than unwinding the ledger row.
		logger.Error("Failed to update campaign counters",
			"campaign_id", campaign.ID,
			"source_event_id", rec.SourceEventID,
			"err", err,
		)
	}
	return true, nil
}

// Skipped builds a full ledger row for an event that produced no transfer.
// Skips are first-class entries so retried cycles recognize them as done.
func Skipped(sourceEventID, chain string, kind enum.TxKind, reason string) *model.TransactionRecord {
	return &model.TransactionRecord{
		SourceEventID: sourceEventID,
		Chain:         chain,
		TxHash:        constant.TxHashSkipped,
		Amount:        decimal.Zero,
		Fee:           decimal.Zero,
		Kind:          kind,
		Status:        enum.TxStatusSkipped,
		ErrorReason:   &reason,
	}
}

// Failed builds a full ledger row for an event whose transfer was rejected
// or errored before or during execution.
func Failed(sourceEventID, chain string, kind enum.TxKind, amount decimal.Decimal, reason string) *model.TransactionRecord {
	return &model.TransactionRecord{
		SourceEventID: sourceEventID,
		Chain:         chain,
		TxHash:        constant.TxHashFailed,
		Amount:        amount,
		Fee:           decimal.Zero,
		Kind:          kind,
		Status:        enum.TxStatusFailed,
		ErrorReason:   &reason,
	}
}
