package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tiplinehq/tipline/internal/chain"
	"github.com/tiplinehq/tipline/pkg/common/logger"
)

// ErrFeeLegFailed marks the two-leg fallback's partial failure: the
// recipient leg confirmed but the fee leg did not. The recipient has been
// paid; retrying would double-pay them, so callers must record the partial
// state and stop.
var ErrFeeLegFailed = errors.New("fee leg failed after recipient leg confirmed")

var bpsDivisor = decimal.NewFromInt(10000)

// Result describes one executed transfer. All values are integer smallest
// units of the asset.
type Result struct {
	TxHash    string
	FeeTxHash string // second-leg hash, empty on the routed path
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	NetAmount decimal.Decimal
}

type Config struct {
	ChainName     string
	AssetDecimals int32
	FeeBps        int64
	// RouterAddress enables the single-call fee-splitting path. Empty means
	// the two-leg fallback (net to recipient, fee to treasury).
	RouterAddress   string
	TreasuryAddress string
	SourceAddress   string
}

// Executor drives the value-transfer primitive: scales user amounts to
// smallest units, computes the basis-point fee, and picks the routed or
// two-leg execution strategy.
type Executor struct {
	wallet chain.Wallet
	cfg    Config
}

func NewExecutor(wallet chain.Wallet, cfg Config) *Executor {
	return &Executor{wallet: wallet, cfg: cfg}
}

// ToBaseUnits scales a user-entered decimal amount to integer smallest
// units, truncating anything below the asset's precision. All fee math
// happens after this conversion so there is no floating drift.
func (e *Executor) ToBaseUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(e.cfg.AssetDecimals).Truncate(0)
}

// FromBaseUnits converts smallest units back to the user-facing decimal.
func (e *Executor) FromBaseUnits(base decimal.Decimal) decimal.Decimal {
	return base.Shift(-e.cfg.AssetDecimals)
}

// FeeFor returns floor(amount * feeBps / 10000) in smallest units.
func (e *Executor) FeeFor(amountBase decimal.Decimal) decimal.Decimal {
	if e.cfg.FeeBps == 0 {
		return decimal.Zero
	}
	return amountBase.Mul(decimal.NewFromInt(e.cfg.FeeBps)).DivRound(bpsDivisor, 8).Floor()
}

// BalanceOf returns the spendable balance of address in smallest units.
func (e *Executor) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	return e.wallet.BalanceOf(ctx, address)
}

// SourceBalance returns the funding account's balance in smallest units.
func (e *Executor) SourceBalance(ctx context.Context) (decimal.Decimal, error) {
	return e.wallet.BalanceOf(ctx, e.cfg.SourceAddress)
}

// Grant pays amountBase from the funding account to address on behalf of a
// campaign. campaignRef travels with the transfer for traceability.
func (e *Executor) Grant(ctx context.Context, address string, amountBase decimal.Decimal, campaignRef string) (*Result, error) {
	return e.execute(ctx, e.cfg.SourceAddress, address, amountBase, campaignRef)
}

// Transfer pays amountBase from the funding account to address with a free
// -form memo.
func (e *Executor) Transfer(ctx context.Context, address string, amountBase decimal.Decimal, memo string) (*Result, error) {
	return e.execute(ctx, e.cfg.SourceAddress, address, amountBase, memo)
}

// TransferFrom pays amountBase from a specific custodial account (p2p
// command path: the commanding user's own address funds the transfer).
func (e *Executor) TransferFrom(ctx context.Context, from, to string, amountBase decimal.Decimal, memo string) (*Result, error) {
	return e.execute(ctx, from, to, amountBase, memo)
}

func (e *Executor) execute(ctx context.Context, from, to string, amountBase decimal.Decimal, ref string) (*Result, error) {
	if !amountBase.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amountBase)
	}

	fee := e.FeeFor(amountBase)
	net := amountBase.Sub(fee)

	if e.cfg.RouterAddress != "" {
		return e.executeRouted(ctx, from, to, amountBase, fee, net, ref)
	}
	return e.executeTwoLeg(ctx, from, to, amountBase, fee, net, ref)
}

func (e *Executor) executeRouted(ctx context.Context, from, to string, amount, fee, net decimal.Decimal, ref string) (*Result, error) {
	txHash, err := e.wallet.TransferRouted(ctx, e.cfg.RouterAddress, from, to, amount, fee, ref)
	if err != nil {
		return nil, fmt.Errorf("routed transfer to %s: %w", to, err)
	}
	if err := e.wallet.WaitForConfirmation(ctx, txHash); err != nil {
		return nil, fmt.Errorf("routed transfer %s: %w", txHash, err)
	}

	logger.Info("Routed transfer confirmed",
		"chain", e.cfg.ChainName,
		"tx_hash", txHash,
		"to", to,
		"amount", amount,
		"fee", fee,
	)
	return &Result{TxHash: txHash, Amount: amount, Fee: fee, NetAmount: net}, nil
}

// executeTwoLeg sends net to the recipient, then the fee to the treasury.
// The two legs are not atomic: a fee-leg failure after the recipient leg
// confirmed returns the partial Result together with ErrFeeLegFailed.
func (e *Executor) executeTwoLeg(ctx context.Context, from, to string, amount, fee, net decimal.Decimal, ref string) (*Result, error) {
	txHash, err := e.wallet.Transfer(ctx, from, to, net, ref)
	if err != nil {
		return nil, fmt.Errorf("transfer to %s: %w", to, err)
	}
	if err := e.wallet.WaitForConfirmation(ctx, txHash); err != nil {
		return nil, fmt.Errorf("transfer %s: %w", txHash, err)
	}

	result := &Result{TxHash: txHash, Amount: amount, Fee: fee, NetAmount: net}
	if fee.IsZero() {
		return result, nil
	}

	feeTxHash, err := e.wallet.Transfer(ctx, from, e.cfg.TreasuryAddress, fee, "fee:"+ref)
	if err == nil {
		err = e.wallet.WaitForConfirmation(ctx, feeTxHash)
	}
	if err != nil {
		logger.Error("Fee leg failed after recipient leg confirmed",
			"chain", e.cfg.ChainName,
			"recipient_tx", txHash,
			"fee", fee,
			"err", err,
		)
		return result, fmt.Errorf("%w: recipient tx %s: %v", ErrFeeLegFailed, txHash, err)
	}

	result.FeeTxHash = feeTxHash
	return result, nil
}
