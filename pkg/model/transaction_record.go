package model

import (
	"github.com/shopspring/decimal"

	"github.com/tiplinehq/tipline/pkg/common/enum"
)

// TransactionRecord is the append-only outcome row for one source event.
// The unique index on SourceEventID is the idempotency guarantee for the
// whole pipeline: at most one row may ever exist per social post, and the
// database enforces that even across racing processes. Rows are never
// updated or deleted.
type TransactionRecord struct {
	BaseModel
	SourceEventID string          `gorm:"not null;type:varchar(64);uniqueIndex:idx_unique_source_event" json:"source_event_id"`
	Chain         string          `gorm:"not null;type:varchar(32)"       json:"chain"`
	// TxHash holds the on-chain hash, or a sentinel string for rows with no
	// chain effect (skips, pre-flight failures).
	TxHash string `gorm:"not null;type:varchar(128)"      json:"tx_hash"`
	// SenderID and ReceiverID are nil when the row involves no resolved
	// party (skips, pre-flight failures, operator-funded grants). They must
	// stay pointers: the columns are uuid typed and an empty string does not
	// bind as NULL.
	SenderID    *string         `gorm:"type:uuid"                       json:"sender_id"`
	ReceiverID  *string         `gorm:"type:uuid"                       json:"receiver_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(30,18);not null"    json:"amount"`
	Fee         decimal.Decimal `gorm:"type:numeric(30,18);not null"    json:"fee"`
	Kind        enum.TxKind     `gorm:"type:varchar(16);not null"       json:"kind"`
	Status      enum.TxStatus   `gorm:"type:varchar(24);not null;index" json:"status"`
	ErrorReason *string         `gorm:"type:text"                       json:"error_reason"`
	CampaignID  *string         `gorm:"type:uuid;index"                 json:"campaign_id"`
}
