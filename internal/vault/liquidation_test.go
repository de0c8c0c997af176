package vault

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapForLiquidatedCollateralValidation(t *testing.T) {
	valid := LiquidationSwap{
		PoolAsset:   "ALPHA",
		PoolAmount:  e18("10"),
		ClaimAsset:  "BETA",
		ClaimAmount: e18("12"),
		Recipient:   keeper,
	}

	tests := []struct {
		name    string
		caller  string
		modify  func(*LiquidationSwap)
		wantErr error
	}{
		{name: "not auction house", caller: teller, wantErr: ErrOnlyAuctionHouse},
		{name: "empty pool", modify: func(r *LiquidationSwap) { r.PoolAsset = "" }, wantErr: ErrStabAssetNotSupported},
		{name: "pool without shares", modify: func(r *LiquidationSwap) { r.PoolAsset = "USDC" }, wantErr: ErrStabAssetNotSupported},
		{name: "ineligible pool", modify: func(r *LiquidationSwap) { r.PoolAsset = "WETH" }, wantErr: ErrStabAssetNotSupported},
		{name: "empty claim", modify: func(r *LiquidationSwap) { r.ClaimAsset = "" }, wantErr: ErrInvalidLiqAsset},
		{name: "unknown claim", modify: func(r *LiquidationSwap) { r.ClaimAsset = "NOPE" }, wantErr: ErrInvalidLiqAsset},
		{name: "claim is pool asset", modify: func(r *LiquidationSwap) { r.ClaimAsset = "ALPHA" }, wantErr: ErrLiqAssetIsVaultAsset},
		{name: "zero claim amount", modify: func(r *LiquidationSwap) { r.ClaimAmount = decimal.Zero }, wantErr: ErrInvalidLiqAmount},
		{name: "burn non green", modify: func(r *LiquidationSwap) { r.Recipient = "" }, wantErr: ErrMustBeGreen},
		{name: "auction house short of collateral", modify: func(r *LiquidationSwap) { r.ClaimAmount = e18("1000") }, wantErr: ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.deposit(alice, "ALPHA", e18("100"))
			h.mint("BETA", auctionHouse, e18("12"))
			events := h.eventCount()

			req := valid
			if tt.modify != nil {
				tt.modify(&req)
			}
			caller := auctionHouse
			if tt.caller != "" {
				caller = tt.caller
			}

			_, err := h.v.SwapForLiquidatedCollateral(h.ctx, caller, req)
			require.ErrorIs(t, err, tt.wantErr)
			assertAmount(t, e18("100"), h.totalValue("ALPHA"))
			assertAmount(t, e18("12"), h.balance("BETA", auctionHouse))
			assert.Equal(t, events, h.eventCount())
			h.checkInvariants()
		})
	}
}

func TestLiquidationDeltaIsProportional(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("300"))
	h.deposit(bob, "ALPHA", e18("100"))

	// 0.1 WETH at $2000 for 100 ALPHA
	res := h.liquidate("ALPHA", e18("100"), "WETH", e18("0.1"))
	assertAmount(t, e18("100"), res.ValueDelta())
	assertAmount(t, e18("400"), res.ValueBefore)
	assertAmount(t, e18("500"), res.ValueAfter)

	assertAmount(t, e18("375"), h.position("ALPHA", alice).USDValue)
	assertAmount(t, e18("125"), h.position("ALPHA", bob).USDValue)
	assertAmount(t, e18("300"), h.position("ALPHA", alice).Shares)
	assert.InDelta(t, 100.0, h.recorder.liquidated, 1e-9)
	h.checkInvariants()
}

func TestLiquidationClampsToAvailableTokens(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("40"))

	res := h.liquidate("ALPHA", e18("100"), "BETA", e18("50"))
	assertAmount(t, e18("40"), res.PoolAmount)
	assertAmount(t, e18("40"), h.balance("ALPHA", keeper))

	h.mint("BETA", auctionHouse, e18("5"))
	_, err := h.v.SwapForLiquidatedCollateral(h.ctx, auctionHouse, LiquidationSwap{
		PoolAsset: "ALPHA", PoolAmount: e18("1"), ClaimAsset: "BETA", ClaimAmount: e18("5"), Recipient: keeper,
	})
	require.ErrorIs(t, err, ErrNoStabAssetAvailable)
	h.checkInvariants()
}

func TestLiquidationBurnsGreen(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "GREEN", e18("100"))
	h.mint("WETH", auctionHouse, e18("0.02"))

	res, err := h.v.SwapForLiquidatedCollateral(h.ctx, auctionHouse, LiquidationSwap{
		PoolAsset:   "GREEN",
		PoolAmount:  e18("40"),
		ClaimAsset:  "WETH",
		ClaimAmount: e18("0.02"),
	})
	require.NoError(t, err)
	assertAmount(t, e18("40"), res.PoolAmount)
	assert.True(t, res.ValueDelta().IsZero())

	supply, err := h.v.TotalSupply(h.ctx, "GREEN")
	require.NoError(t, err)
	assertAmount(t, e18("60"), supply)
	assertAmount(t, e18("60"), h.balance("GREEN", "stability-vault"))
	assertAmount(t, e18("100"), h.position("GREEN", alice).USDValue)
	h.checkInvariants()
}

func TestLiquidationUnwrapsAndBurnsSavingsGreen(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "sGREEN", e18("100"))
	assertAmount(t, e18("100"), h.balance("GREEN", "savings-green"))

	h.mint("WETH", auctionHouse, e18("0.025"))
	_, err := h.v.SwapForLiquidatedCollateral(h.ctx, auctionHouse, LiquidationSwap{
		PoolAsset:   "sGREEN",
		PoolAmount:  e18("50"),
		ClaimAsset:  "WETH",
		ClaimAmount: e18("0.025"),
	})
	require.NoError(t, err)

	greenSupply, err := h.v.TotalSupply(h.ctx, "GREEN")
	require.NoError(t, err)
	savingsSupply, err := h.v.TotalSupply(h.ctx, "sGREEN")
	require.NoError(t, err)
	assertAmount(t, e18("50"), greenSupply)
	assertAmount(t, e18("50"), savingsSupply)
	assertAmount(t, e18("50"), h.balance("GREEN", "savings-green"))
	assertAmount(t, e18("100"), h.position("sGREEN", alice).USDValue)
	h.checkInvariants()
}

func TestSwapWithClaimableGreen(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("100"))
	h.liquidate("ALPHA", e18("100"), "BETA", e18("150"))
	h.mint("GREEN", redeemer, e18("50"))
	_, err := h.v.RedeemFromStabilityPool(h.ctx, redeemer, RedeemRequest{ClaimAsset: "BETA", GreenAmount: e18("50")})
	require.NoError(t, err)
	assertAmount(t, e18("50"), h.claimable("ALPHA", "GREEN"))

	h.mint("WETH", auctionHouse, e18("0.025"))
	swap := GreenSwap{PoolAsset: "ALPHA", GreenAmount: e18("80"), ClaimAsset: "WETH", ClaimAmount: e18("0.025")}

	_, err = h.v.SwapWithClaimableGreen(h.ctx, teller, swap)
	require.ErrorIs(t, err, ErrOnlyAuctionHouse)
	bad := swap
	bad.ClaimAsset = "ALPHA"
	_, err = h.v.SwapWithClaimableGreen(h.ctx, auctionHouse, bad)
	require.ErrorIs(t, err, ErrLiqAssetIsVaultAsset)
	bad = swap
	bad.PoolAsset = "USDC"
	_, err = h.v.SwapWithClaimableGreen(h.ctx, auctionHouse, bad)
	require.ErrorIs(t, err, ErrStabAssetNotSupported)

	no, yes := false, true
	_, err = h.v.SetAssetConfig(h.ctx, governance, "ALPHA", AssetUpdate{StabEligible: &no})
	require.NoError(t, err)
	_, err = h.v.SwapWithClaimableGreen(h.ctx, auctionHouse, swap)
	require.ErrorIs(t, err, ErrStabAssetNotSupported)
	_, err = h.v.SetAssetConfig(h.ctx, governance, "ALPHA", AssetUpdate{StabEligible: &yes})
	require.NoError(t, err)

	swapped, err := h.v.SwapWithClaimableGreen(h.ctx, auctionHouse, swap)
	require.NoError(t, err)
	assertAmount(t, e18("50"), swapped)
	assert.True(t, h.claimable("ALPHA", "GREEN").IsZero())
	assertAmount(t, e18("0.025"), h.claimable("ALPHA", "WETH"))

	totals, err := h.v.ClaimTotals(h.ctx, "GREEN")
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
	assert.Empty(t, totals.Holders)

	supply, err := h.v.TotalSupply(h.ctx, "GREEN")
	require.NoError(t, err)
	assert.True(t, supply.IsZero())
	assertAmount(t, e18("150"), h.position("ALPHA", alice).USDValue)

	h.mint("WETH", auctionHouse, e18("0.025"))
	_, err = h.v.SwapWithClaimableGreen(h.ctx, auctionHouse, swap)
	require.ErrorIs(t, err, ErrNoGreen)
	h.checkInvariants()
}
