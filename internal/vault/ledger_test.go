package vault

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositValidation(t *testing.T) {
	tests := []struct {
		name    string
		caller  string
		user    string
		asset   string
		amount  decimal.Decimal
		pause   bool
		wantErr error
	}{
		{name: "stranger caller", caller: bob, user: alice, asset: "ALPHA", amount: e18("1"), wantErr: ErrNotAllowed},
		{name: "empty caller", caller: "", user: alice, asset: "ALPHA", amount: e18("1"), wantErr: ErrNotAllowed},
		{name: "empty user", caller: teller, user: "", asset: "ALPHA", amount: e18("1"), wantErr: ErrInvalidUserOrAsset},
		{name: "empty asset", caller: teller, user: alice, asset: "", amount: e18("1"), wantErr: ErrInvalidUserOrAsset},
		{name: "not eligible", caller: teller, user: alice, asset: "BETA", amount: e18("1"), wantErr: ErrStabAssetNotSupported},
		{name: "unknown asset", caller: teller, user: alice, asset: "NOPE", amount: e18("1"), wantErr: ErrStabAssetNotSupported},
		{name: "zero amount", caller: teller, user: alice, asset: "ALPHA", amount: decimal.Zero, wantErr: ErrInvalidDepositAmount},
		{name: "empty wallet", caller: teller, user: bob, asset: "ALPHA", amount: e18("1"), wantErr: ErrInvalidDepositAmount},
		{name: "paused", caller: teller, user: alice, asset: "ALPHA", amount: e18("1"), pause: true, wantErr: ErrPaused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mint("ALPHA", alice, e18("10"))
			if tt.pause {
				require.NoError(t, h.v.SetPaused(h.ctx, governance, true))
			}

			_, err := h.v.Deposit(h.ctx, tt.caller, tt.user, tt.asset, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)
			assertAmount(t, e18("10"), h.balance("ALPHA", alice))
			h.checkInvariants()
		})
	}
}

func TestDepositClampsToWallet(t *testing.T) {
	h := newHarness(t)
	h.mint("ALPHA", alice, e18("10"))

	got, err := h.v.Deposit(h.ctx, alice, alice, "ALPHA", e18("25"))
	require.NoError(t, err)
	assertAmount(t, e18("10"), got.Amount)
	assertAmount(t, e18("10"), got.Shares)
	assert.True(t, h.balance("ALPHA", alice).IsZero())
	assertAmount(t, e18("10"), h.position("ALPHA", alice).Shares)
}

func TestDepositAfterGainMintsFewerShares(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("100"))
	h.liquidate("ALPHA", e18("100"), "BETA", e18("150"))

	h.mint("ALPHA", bob, e18("150"))
	got, err := h.v.Deposit(h.ctx, teller, bob, "ALPHA", e18("150"))
	require.NoError(t, err)
	assertAmount(t, e18("150"), got.Amount)
	assertAmount(t, e18("100"), got.Shares)
	pos := h.position("ALPHA", bob)
	assertAmount(t, e18("100"), pos.Shares)
	assertAmount(t, e18("150"), pos.USDValue)
	assertAmount(t, e18("150"), h.position("ALPHA", alice).USDValue)
	h.checkInvariants()
}

func TestDepositDecimals(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "USDC", units("100", 6))

	pos := h.position("USDC", alice)
	assertAmount(t, e18("100"), pos.Shares)
	assertAmount(t, e18("100"), pos.USDValue)
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("100"))

	res, err := h.v.Withdraw(h.ctx, teller, alice, "ALPHA", e18("40"), "")
	require.NoError(t, err)
	assertAmount(t, e18("40"), res.Amount)
	assertAmount(t, e18("40"), res.Shares)
	assert.False(t, res.Depleted)
	assertAmount(t, e18("40"), h.balance("ALPHA", alice))

	res, err = h.v.Withdraw(h.ctx, alice, alice, "ALPHA", e18("1000"), bob)
	require.NoError(t, err)
	assertAmount(t, e18("60"), res.Amount)
	assert.True(t, res.Depleted)
	assertAmount(t, e18("60"), h.balance("ALPHA", bob))
	assert.True(t, h.position("ALPHA", alice).Shares.IsZero())

	_, err = h.v.Withdraw(h.ctx, alice, alice, "ALPHA", e18("1"), "")
	require.ErrorIs(t, err, ErrNoUserShares)
	h.checkInvariants()
}

func TestWithdrawBoundedByPoolTokens(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("100"))
	h.liquidate("ALPHA", e18("50"), "BETA", e18("75"))

	res, err := h.v.Withdraw(h.ctx, alice, alice, "ALPHA", e18("100"), "")
	require.NoError(t, err)
	assertAmount(t, e18("50"), res.Amount)
	assertAmount(t, e18("40"), res.Shares)
	assert.False(t, res.Depleted)

	pos := h.position("ALPHA", alice)
	assertAmount(t, e18("60"), pos.Shares)
	assertAmount(t, e18("75"), pos.USDValue)

	_, err = h.v.Withdraw(h.ctx, alice, alice, "ALPHA", e18("1"), "")
	require.ErrorIs(t, err, ErrNothingToWithdraw)
	h.checkInvariants()
}

func TestWithdrawValidation(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("10"))

	_, err := h.v.Withdraw(h.ctx, bob, alice, "ALPHA", e18("1"), "")
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = h.v.Withdraw(h.ctx, alice, alice, "", e18("1"), "")
	assert.ErrorIs(t, err, ErrInvalidUserOrAsset)
	_, err = h.v.Withdraw(h.ctx, alice, alice, "ALPHA", decimal.Zero, "")
	assert.ErrorIs(t, err, ErrInvalidWithdrawAmount)
}

func TestTransferWithinVault(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("100"))

	_, err := h.v.TransferWithinVault(h.ctx, teller, "ALPHA", alice, bob, e18("30"))
	require.ErrorIs(t, err, ErrNotAllowed)
	_, err = h.v.TransferWithinVault(h.ctx, auctionHouse, "ALPHA", alice, alice, e18("30"))
	require.ErrorIs(t, err, ErrInvalidUserOrAsset)
	_, err = h.v.TransferWithinVault(h.ctx, auctionHouse, "ALPHA", bob, alice, e18("30"))
	require.ErrorIs(t, err, ErrNoUserShares)

	res, err := h.v.TransferWithinVault(h.ctx, auctionHouse, "ALPHA", alice, bob, e18("30"))
	require.NoError(t, err)
	assertAmount(t, e18("30"), res.Amount)
	assertAmount(t, e18("30"), res.Shares)
	assert.False(t, res.Depleted)
	assertAmount(t, e18("30"), h.position("ALPHA", bob).USDValue)

	res, err = h.v.TransferWithinVault(h.ctx, auctionHouse, "ALPHA", alice, bob, e18("500"))
	require.NoError(t, err)
	assertAmount(t, e18("70"), res.Amount)
	assert.True(t, res.Depleted)
	assertAmount(t, e18("100"), h.position("ALPHA", bob).Shares)

	summary, err := h.v.PoolSummary(h.ctx, "ALPHA")
	require.NoError(t, err)
	assertAmount(t, e18("100"), summary.TokenBalance)
	h.checkInvariants()
}
