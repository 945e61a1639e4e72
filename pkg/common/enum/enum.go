package enum

type KVStoreType string

const (
	KVStoreTypeBadger KVStoreType = "badger"
	KVStoreTypeConsul KVStoreType = "consul"
)

// TxKind distinguishes campaign payouts from user-initiated transfers.
type TxKind string

const (
	TxKindGrant      TxKind = "grant"
	TxKindP2PCommand TxKind = "p2p_command"
)

// TxStatus is the terminal outcome of one source event's processing.
// Rows are written once and never transition between statuses.
type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusSkipped   TxStatus = "skipped"
	// TxStatusPartial marks a two-leg fallback transfer whose recipient leg
	// confirmed but whose fee leg failed. Never retried automatically.
	TxStatusPartial TxStatus = "partially_completed"
)

type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusInactive CampaignStatus = "inactive"
	CampaignStatusDepleted CampaignStatus = "depleted"
)

type PollerKind string

const (
	PollerKindCommand  PollerKind = "command"
	PollerKindCampaign PollerKind = "campaign"
)
