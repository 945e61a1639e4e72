package chain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrConfirmTimeout = errors.New("confirmation wait timed out")
	ErrTxReverted     = errors.New("transaction reverted")
)

// Receipt is the daemon's view of a submitted transaction.
type Receipt struct {
	TxHash    string `json:"tx_hash"`
	Status    string `json:"status"` // "pending" | "confirmed" | "reverted"
	BlockHash string `json:"block_hash,omitempty"`
}

// Wallet is the boundary to the value-transfer primitive. All amounts are
// integer values in the asset's smallest unit. Write calls return a tx hash
// which must be confirmed via WaitForConfirmation before the caller may
// treat the transfer as done.
type Wallet interface {
	// BalanceOf returns the spendable balance of address in smallest units.
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, error)
	// Transfer submits a direct transfer and returns the tx hash.
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error)
	// TransferRouted submits a single call through the fee-splitting router
	// contract: the recipient receives amount minus fee and the treasury
	// receives the fee atomically.
	TransferRouted(ctx context.Context, router, from, to string, amount, fee decimal.Decimal, ref string) (string, error)
	// WaitForConfirmation blocks until the tx confirms, reverts, or ctx
	// expires. A revert or timeout is an error, never a partial success.
	WaitForConfirmation(ctx context.Context, txHash string) error
}
