package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernanceRequiresGovernanceCaller(t *testing.T) {
	h := newHarness(t)
	yes := true

	assert.ErrorIs(t, h.v.SetPaused(h.ctx, alice, true), ErrNotAllowed)
	assert.ErrorIs(t, h.v.SetRedemptionsEnabled(h.ctx, "", false), ErrNotAllowed)
	assert.ErrorIs(t, h.v.Mint(h.ctx, teller, "GREEN", alice, e18("1")), ErrNotAllowed)
	_, err := h.v.SetAssetConfig(h.ctx, auctionHouse, "ALPHA", AssetUpdate{CanRedeem: &yes})
	assert.ErrorIs(t, err, ErrNotAllowed)

	status := h.status()
	assert.False(t, status.Paused)
	assert.True(t, status.RedemptionsEnabled)
}

func TestPauseBlocksMutations(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "ALPHA", e18("10"))

	require.NoError(t, h.v.SetPaused(h.ctx, governance, true))
	assert.True(t, h.status().Paused)

	_, err := h.v.Withdraw(h.ctx, alice, alice, "ALPHA", e18("1"), "")
	assert.ErrorIs(t, err, ErrPaused)
	_, err = h.v.SwapForLiquidatedCollateral(h.ctx, auctionHouse, LiquidationSwap{PoolAsset: "ALPHA"})
	assert.ErrorIs(t, err, ErrPaused)

	// reads and governance keep working
	_, err = h.v.PoolSummary(h.ctx, "ALPHA")
	require.NoError(t, err)
	require.NoError(t, h.v.SetPaused(h.ctx, governance, false))

	_, err = h.v.Withdraw(h.ctx, alice, alice, "ALPHA", e18("1"), "")
	require.NoError(t, err)
}

func TestSetAssetConfig(t *testing.T) {
	h := newHarness(t)
	yes, no := true, false

	meta, err := h.v.SetAssetConfig(h.ctx, governance, "ALPHA", AssetUpdate{StabEligible: &no})
	require.NoError(t, err)
	assert.False(t, meta.StabEligible)
	h.mint("ALPHA", alice, e18("1"))
	_, err = h.v.Deposit(h.ctx, alice, alice, "ALPHA", e18("1"))
	assert.ErrorIs(t, err, ErrStabAssetNotSupported)

	meta, err = h.v.SetAssetConfig(h.ctx, governance, "ALPHA", AssetUpdate{CanRedeem: &yes})
	require.NoError(t, err)
	assert.True(t, meta.CanRedeem)
	assert.False(t, meta.StabEligible)

	_, err = h.v.SetAssetConfig(h.ctx, governance, "GREEN", AssetUpdate{CanRedeem: &yes})
	assert.ErrorIs(t, err, ErrCannotRedeemGreen)
	_, err = h.v.SetAssetConfig(h.ctx, governance, "NOPE", AssetUpdate{CanRedeem: &yes})
	assert.ErrorIs(t, err, ErrInvalidUserOrAsset)
}

func TestGovernanceStateIsShared(t *testing.T) {
	h := newHarness(t)
	no := false
	h.deposit(alice, "ALPHA", e18("10"))

	require.NoError(t, h.v.SetPaused(h.ctx, governance, true))
	require.NoError(t, h.v.SetRedemptionsEnabled(h.ctx, governance, false))
	_, err := h.v.SetAssetConfig(h.ctx, governance, "ALPHA", AssetUpdate{StabEligible: &no})
	require.NoError(t, err)

	// a second vault over the same database, as after a restart or on another replica
	replica, err := New(h.v.Config(), h.db, h.v.oracle, h.v.assets, nil)
	require.NoError(t, err)

	status, err := replica.Status(h.ctx)
	require.NoError(t, err)
	assert.True(t, status.Paused)
	assert.False(t, status.RedemptionsEnabled)

	meta, err := replica.Asset(h.ctx, "ALPHA")
	require.NoError(t, err)
	assert.False(t, meta.StabEligible)

	_, err = replica.Withdraw(h.ctx, alice, alice, "ALPHA", e18("1"), "")
	assert.ErrorIs(t, err, ErrPaused)

	require.NoError(t, replica.SetPaused(h.ctx, governance, false))
	assert.False(t, h.status().Paused)

	h.mint("ALPHA", bob, e18("1"))
	_, err = h.v.Deposit(h.ctx, bob, bob, "ALPHA", e18("1"))
	assert.ErrorIs(t, err, ErrStabAssetNotSupported)
	h.mint("GREEN", redeemer, e18("1"))
	_, err = replica.RedeemFromStabilityPool(h.ctx, redeemer, RedeemRequest{ClaimAsset: "BETA", GreenAmount: e18("1")})
	assert.ErrorIs(t, err, ErrRedemptionsNotAllowed)
}

func TestRejectedGovernanceLeavesFlags(t *testing.T) {
	h := newHarness(t)
	yes := true

	_, err := h.v.SetAssetConfig(h.ctx, governance, "GREEN", AssetUpdate{StabEligible: &yes, CanRedeem: &yes})
	require.ErrorIs(t, err, ErrCannotRedeemGreen)
	meta, err := h.v.Asset(h.ctx, "GREEN")
	require.NoError(t, err)
	assert.False(t, meta.CanRedeem)

	_, err = h.v.Asset(h.ctx, "NOPE")
	assert.ErrorIs(t, err, ErrInvalidUserOrAsset)
}

func TestMintSavingsGreenIsBacked(t *testing.T) {
	h := newHarness(t)
	h.mint("sGREEN", alice, e18("10"))

	assertAmount(t, e18("10"), h.balance("sGREEN", alice))
	assertAmount(t, e18("10"), h.balance("GREEN", "savings-green"))
	assert.True(t, h.balance("GREEN", alice).IsZero())

	paid, err := h.v.UnstakeGreen(h.ctx, alice, e18("4"))
	require.NoError(t, err)
	assertAmount(t, e18("4"), paid)
	assertAmount(t, e18("4"), h.balance("GREEN", alice))

	shares, err := h.v.StakeGreen(h.ctx, alice, e18("4"))
	require.NoError(t, err)
	assertAmount(t, e18("4"), shares)
	assertAmount(t, e18("10"), h.balance("sGREEN", alice))
}
