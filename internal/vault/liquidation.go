package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/shopspring/decimal"
)

// LiquidationSwap is the auction house's request to trade pool assets for
// seized collateral. An empty Recipient burns the pool asset, which is only
// possible for GREEN and sGREEN.
type LiquidationSwap struct {
	PoolAsset   string          `json:"poolAsset"`
	PoolAmount  decimal.Decimal `json:"poolAmount"`
	ClaimAsset  string          `json:"claimAsset"`
	ClaimAmount decimal.Decimal `json:"claimAmount"`
	Recipient   string          `json:"recipient"`
}

// LiquidationResult reports what the pool gave up and how its value moved
type LiquidationResult struct {
	PoolAmount  decimal.Decimal `json:"poolAmount"`
	ClaimAmount decimal.Decimal `json:"claimAmount"`
	ValueBefore decimal.Decimal `json:"valueBefore"`
	ValueAfter  decimal.Decimal `json:"valueAfter"`
}

// ValueDelta is the signed change in the pool's USD value
func (r LiquidationResult) ValueDelta() decimal.Decimal {
	return r.ValueAfter.Sub(r.ValueBefore)
}

type liquidationEvent struct {
	PoolAsset   string          `json:"poolAsset"`
	PoolAmount  decimal.Decimal `json:"poolAmount"`
	ClaimAsset  string          `json:"claimAsset"`
	ClaimAmount decimal.Decimal `json:"claimAmount"`
	Recipient   string          `json:"recipient,omitempty"`
	Burned      bool            `json:"burned"`
	ValueDelta  decimal.Decimal `json:"valueDelta"`
}

// GreenSwap trades GREEN a pool holds as a claim for other collateral
type GreenSwap struct {
	PoolAsset   string          `json:"poolAsset"`
	GreenAmount decimal.Decimal `json:"greenAmount"`
	ClaimAsset  string          `json:"claimAsset"`
	ClaimAmount decimal.Decimal `json:"claimAmount"`
}

type greenSwapEvent struct {
	PoolAsset   string          `json:"poolAsset"`
	GreenBurned decimal.Decimal `json:"greenBurned"`
	ClaimAsset  string          `json:"claimAsset"`
	ClaimAmount decimal.Decimal `json:"claimAmount"`
}

func (v *Vault) requireAuctionHouse(caller string) error {
	if caller == "" || caller != v.cfg.AuctionHouse {
		return ErrOnlyAuctionHouse
	}
	return nil
}

// liquidPool returns the pool's metadata when it can absorb liquidations
func (op *operation) liquidPool(ctx context.Context, pool string) (assets.Asset, error) {
	meta, ok, err := op.asset(ctx, pool)
	if err != nil {
		return assets.Asset{}, err
	}
	if !ok || !meta.StabEligible {
		return assets.Asset{}, ErrStabAssetNotSupported
	}
	total, err := op.ledger.total(ctx, pool)
	if err != nil {
		return assets.Asset{}, err
	}
	if total.Sign() <= 0 {
		return assets.Asset{}, ErrStabAssetNotSupported
	}
	return meta, nil
}

// SwapForLiquidatedCollateral takes up to req.PoolAmount of the pool asset
// out of the vault and credits the pool with req.ClaimAmount of collateral
// received from the auction house.
func (v *Vault) SwapForLiquidatedCollateral(ctx context.Context, caller string, req LiquidationSwap) (LiquidationResult, error) {
	var result LiquidationResult
	err := v.run(ctx, "liquidation", func(ctx context.Context, op *operation) error {
		if err := v.requireAuctionHouse(caller); err != nil {
			return err
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if _, err := op.liquidPool(ctx, req.PoolAsset); err != nil {
			return err
		}
		if req.ClaimAsset == "" {
			return ErrInvalidLiqAsset
		}
		if _, ok := v.assets.Get(req.ClaimAsset); !ok {
			return ErrInvalidLiqAsset
		}
		if req.ClaimAsset == req.PoolAsset {
			return ErrLiqAssetIsVaultAsset
		}
		if req.ClaimAmount.Sign() <= 0 || req.PoolAmount.Sign() <= 0 {
			return ErrInvalidLiqAmount
		}
		burn := req.Recipient == ""
		if burn && !op.isGreen(req.PoolAsset) {
			return ErrMustBeGreen
		}

		available, err := op.poolTokenBalance(ctx, req.PoolAsset)
		if err != nil {
			return err
		}
		amount := minDecimal(req.PoolAmount, available)
		if amount.Sign() <= 0 {
			return ErrNoStabAssetAvailable
		}
		before, err := op.markValue(ctx, req.PoolAsset)
		if err != nil {
			return err
		}

		if err := op.bank.transfer(ctx, req.ClaimAsset, caller, v.cfg.VaultAddress, req.ClaimAmount); err != nil {
			return err
		}
		if burn {
			if err := op.burnGreen(ctx, req.PoolAsset, amount); err != nil {
				return err
			}
		} else if err := op.bank.transfer(ctx, req.PoolAsset, v.cfg.VaultAddress, req.Recipient, amount); err != nil {
			return err
		}
		if err := op.claims.credit(ctx, req.PoolAsset, req.ClaimAsset, req.ClaimAmount); err != nil {
			return err
		}

		after, err := op.markValue(ctx, req.PoolAsset)
		if err != nil {
			return err
		}
		result = LiquidationResult{
			PoolAmount:  amount,
			ClaimAmount: req.ClaimAmount,
			ValueBefore: before,
			ValueAfter:  after,
		}
		op.touch(req.PoolAsset)
		op.afterCommit = append(op.afterCommit, func() {
			if v.recorder != nil {
				v.recorder.RecordLiquidation(ctx, req.PoolAsset, req.ClaimAsset, toFloat(result.ValueDelta(), 18))
			}
		})
		return op.emit(EventLiquidation, liquidationEvent{
			PoolAsset:   req.PoolAsset,
			PoolAmount:  amount,
			ClaimAsset:  req.ClaimAsset,
			ClaimAmount: req.ClaimAmount,
			Recipient:   req.Recipient,
			Burned:      burn,
			ValueDelta:  result.ValueDelta(),
		})
	})
	if err != nil {
		return LiquidationResult{}, err
	}
	return result, nil
}

// burnGreen destroys vault-held GREEN, unwrapping sGREEN first
func (op *operation) burnGreen(ctx context.Context, asset string, amount decimal.Decimal) error {
	cfg := op.v.cfg
	green := amount
	if asset == cfg.SavingsGreen {
		unwrapped, err := op.unstake(ctx, cfg.VaultAddress, cfg.VaultAddress, amount)
		if err != nil {
			return err
		}
		green = unwrapped
	}
	return op.bank.burn(ctx, cfg.GreenToken, cfg.VaultAddress, green)
}

// SwapWithClaimableGreen burns up to req.GreenAmount of the GREEN the pool
// holds as a claim and credits req.ClaimAmount of collateral in its place.
// Returns the GREEN swapped.
func (v *Vault) SwapWithClaimableGreen(ctx context.Context, caller string, req GreenSwap) (decimal.Decimal, error) {
	var swapped decimal.Decimal
	err := v.run(ctx, "green_swap", func(ctx context.Context, op *operation) error {
		if err := v.requireAuctionHouse(caller); err != nil {
			return err
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if _, err := op.liquidPool(ctx, req.PoolAsset); err != nil {
			return err
		}
		if req.ClaimAsset == "" || req.ClaimAsset == v.cfg.GreenToken {
			return ErrInvalidLiqAsset
		}
		if _, ok := v.assets.Get(req.ClaimAsset); !ok {
			return ErrInvalidLiqAsset
		}
		if req.ClaimAsset == req.PoolAsset {
			return ErrLiqAssetIsVaultAsset
		}
		if req.ClaimAmount.Sign() <= 0 {
			return ErrInvalidLiqAmount
		}

		held, err := op.claims.balance(ctx, req.PoolAsset, v.cfg.GreenToken)
		if err != nil {
			return err
		}
		amount := minDecimal(req.GreenAmount, held)
		if amount.Sign() <= 0 {
			return ErrNoGreen
		}

		removed, err := op.claims.debit(ctx, req.PoolAsset, v.cfg.GreenToken, amount)
		if err != nil {
			return err
		}
		if err := op.bank.burn(ctx, v.cfg.GreenToken, v.cfg.VaultAddress, removed); err != nil {
			return err
		}
		if err := op.bank.transfer(ctx, req.ClaimAsset, caller, v.cfg.VaultAddress, req.ClaimAmount); err != nil {
			return err
		}
		if err := op.claims.credit(ctx, req.PoolAsset, req.ClaimAsset, req.ClaimAmount); err != nil {
			return err
		}

		swapped = removed
		op.touch(req.PoolAsset)
		return op.emit(EventGreenSwap, greenSwapEvent{
			PoolAsset:   req.PoolAsset,
			GreenBurned: removed,
			ClaimAsset:  req.ClaimAsset,
			ClaimAmount: req.ClaimAmount,
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return swapped, nil
}
