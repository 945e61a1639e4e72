package constant

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	CursorKeyPrefix = "poll_cursor_"

	// Sentinel tx hashes for ledger rows with no on-chain effect.
	TxHashSkipped      = "SKIPPED"
	TxHashFailed       = "FAILED"
	TxHashInsufficient = "INSUFFICIENT_FUNDS"
)
