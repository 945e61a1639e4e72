package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWallet records calls and fails on demand.
type fakeWallet struct {
	balance        decimal.Decimal
	transfers      []fakeTransfer
	routedCalls    int
	failTransferAt int // 1-based call index that errors, 0 = never
	failConfirmFor string
}

type fakeTransfer struct {
	to     string
	amount decimal.Decimal
}

func (f *fakeWallet) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeWallet) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error) {
	f.transfers = append(f.transfers, fakeTransfer{to: to, amount: amount})
	if f.failTransferAt == len(f.transfers) {
		return "", errors.New("rpc error")
	}
	return fmt.Sprintf("0xleg%d", len(f.transfers)), nil
}

func (f *fakeWallet) TransferRouted(ctx context.Context, router, from, to string, amount, fee decimal.Decimal, ref string) (string, error) {
	f.routedCalls++
	return "0xrouted", nil
}

func (f *fakeWallet) WaitForConfirmation(ctx context.Context, txHash string) error {
	if f.failConfirmFor == txHash {
		return errors.New("confirmation timeout")
	}
	return nil
}

func sixDecimalExecutor(w *fakeWallet, router string) *Executor {
	return NewExecutor(w, Config{
		ChainName:       "base",
		AssetDecimals:   6,
		FeeBps:          130,
		RouterAddress:   router,
		TreasuryAddress: "0xTREASURY",
		SourceAddress:   "0xSOURCE",
	})
}

func TestFeeArithmetic(t *testing.T) {
	e := sixDecimalExecutor(&fakeWallet{}, "")

	// amount=10.00, feeBps=130 -> fee=0.13, net=9.87
	base := e.ToBaseUnits(decimal.RequireFromString("10.00"))
	assert.True(t, base.Equal(decimal.NewFromInt(10_000_000)))

	fee := e.FeeFor(base)
	assert.True(t, fee.Equal(decimal.NewFromInt(130_000)), "fee = 0.13 in base units, got %s", fee)

	net := base.Sub(fee)
	assert.True(t, net.Equal(decimal.NewFromInt(9_870_000)), "net = 9.87 in base units")

	assert.True(t, e.FromBaseUnits(fee).Equal(decimal.RequireFromString("0.13")))
	assert.True(t, e.FromBaseUnits(net).Equal(decimal.RequireFromString("9.87")))
}

func TestFeeArithmetic_FloorsOddAmounts(t *testing.T) {
	e := sixDecimalExecutor(&fakeWallet{}, "")

	// 0.000077 * 130 / 10000 = 0.000001001 -> floors to 1 base unit
	fee := e.FeeFor(decimal.NewFromInt(77))
	assert.True(t, fee.Equal(decimal.NewFromInt(1)), "got %s", fee)

	// below one base unit of fee floors to zero
	fee = e.FeeFor(decimal.NewFromInt(76))
	assert.True(t, fee.Equal(decimal.Zero), "got %s", fee)
}

func TestToBaseUnits_TruncatesBelowPrecision(t *testing.T) {
	e := sixDecimalExecutor(&fakeWallet{}, "")

	base := e.ToBaseUnits(decimal.RequireFromString("1.0000009"))
	assert.True(t, base.Equal(decimal.NewFromInt(1_000_000)))
}

func TestExecuteRouted_SingleCall(t *testing.T) {
	w := &fakeWallet{}
	e := sixDecimalExecutor(w, "0xROUTER")

	res, err := e.Transfer(context.Background(), "0xALICE", decimal.NewFromInt(10_000_000), "memo")
	require.NoError(t, err)
	assert.Equal(t, "0xrouted", res.TxHash)
	assert.Empty(t, res.FeeTxHash)
	assert.Equal(t, 1, w.routedCalls)
	assert.Empty(t, w.transfers, "routed path must not issue direct legs")
	assert.True(t, res.NetAmount.Equal(decimal.NewFromInt(9_870_000)))
}

func TestExecuteTwoLeg_BothLegs(t *testing.T) {
	w := &fakeWallet{}
	e := sixDecimalExecutor(w, "")

	res, err := e.Transfer(context.Background(), "0xALICE", decimal.NewFromInt(10_000_000), "memo")
	require.NoError(t, err)
	require.Len(t, w.transfers, 2)
	assert.Equal(t, "0xALICE", w.transfers[0].to)
	assert.True(t, w.transfers[0].amount.Equal(decimal.NewFromInt(9_870_000)))
	assert.Equal(t, "0xTREASURY", w.transfers[1].to)
	assert.True(t, w.transfers[1].amount.Equal(decimal.NewFromInt(130_000)))
	assert.Equal(t, "0xleg1", res.TxHash)
	assert.Equal(t, "0xleg2", res.FeeTxHash)
}

func TestExecuteTwoLeg_FeeLegFailureIsPartial(t *testing.T) {
	w := &fakeWallet{failTransferAt: 2}
	e := sixDecimalExecutor(w, "")

	res, err := e.Transfer(context.Background(), "0xALICE", decimal.NewFromInt(10_000_000), "memo")
	require.ErrorIs(t, err, ErrFeeLegFailed)
	require.NotNil(t, res, "recipient leg result must survive the partial failure")
	assert.Equal(t, "0xleg1", res.TxHash)
	assert.Empty(t, res.FeeTxHash)
}

func TestExecuteTwoLeg_RecipientConfirmFailure(t *testing.T) {
	w := &fakeWallet{failConfirmFor: "0xleg1"}
	e := sixDecimalExecutor(w, "")

	res, err := e.Transfer(context.Background(), "0xALICE", decimal.NewFromInt(10_000_000), "memo")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFeeLegFailed)
	assert.Nil(t, res)
	assert.Len(t, w.transfers, 1, "fee leg must not run after a failed recipient leg")
}

func TestExecute_RejectsNonPositive(t *testing.T) {
	e := sixDecimalExecutor(&fakeWallet{}, "")

	_, err := e.Transfer(context.Background(), "0xALICE", decimal.Zero, "memo")
	assert.Error(t, err)
}

func TestExecuteTwoLeg_ZeroFeeSkipsFeeLeg(t *testing.T) {
	w := &fakeWallet{}
	e := NewExecutor(w, Config{
		ChainName:       "base",
		AssetDecimals:   6,
		FeeBps:          0,
		TreasuryAddress: "0xTREASURY",
		SourceAddress:   "0xSOURCE",
	})

	res, err := e.Transfer(context.Background(), "0xALICE", decimal.NewFromInt(1_000_000), "memo")
	require.NoError(t, err)
	assert.Len(t, w.transfers, 1)
	assert.True(t, res.Fee.IsZero())
	assert.True(t, res.NetAmount.Equal(decimal.NewFromInt(1_000_000)))
}
