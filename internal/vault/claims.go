package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
)

// claimRegistry tracks collateral owed to each pool. A claim asset is listed
// in a pool's index exactly while its bucket is non-zero.
type claimRegistry struct {
	tx interfaces.Transaction
}

func (r claimRegistry) balance(ctx context.Context, pool, claim string) (decimal.Decimal, error) {
	return r.tx.Claimable(ctx, pool, claim)
}

func (r claimRegistry) total(ctx context.Context, claim string) (decimal.Decimal, error) {
	return r.tx.TotalClaimable(ctx, claim)
}

func (r claimRegistry) assets(ctx context.Context, pool string) ([]string, error) {
	return r.tx.ClaimAssets(ctx, pool)
}

func (r claimRegistry) credit(ctx context.Context, pool, claim string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return nil
	}
	held, err := r.tx.Claimable(ctx, pool, claim)
	if err != nil {
		return err
	}
	total, err := r.tx.TotalClaimable(ctx, claim)
	if err != nil {
		return err
	}
	if err := r.tx.SetClaimable(ctx, pool, claim, held.Add(amount)); err != nil {
		return err
	}
	if err := r.tx.SetTotalClaimable(ctx, claim, total.Add(amount)); err != nil {
		return err
	}
	if _, listed, err := r.tx.ClaimAssetPosition(ctx, pool, claim); err != nil {
		return err
	} else if !listed {
		return r.tx.PushClaimAsset(ctx, pool, claim)
	}
	return nil
}

// debit removes up to amount from the bucket and returns what was removed.
// An empty bucket is a no-op.
func (r claimRegistry) debit(ctx context.Context, pool, claim string, amount decimal.Decimal) (decimal.Decimal, error) {
	held, err := r.tx.Claimable(ctx, pool, claim)
	if err != nil {
		return decimal.Zero, err
	}
	if held.Sign() <= 0 || amount.Sign() <= 0 {
		return decimal.Zero, nil
	}
	actual := minDecimal(amount, held)
	total, err := r.tx.TotalClaimable(ctx, claim)
	if err != nil {
		return decimal.Zero, err
	}
	nextTotal, ok := calc.SafeSub(total, actual)
	if !ok {
		return decimal.Zero, ErrClaimUnderflow
	}
	next := held.Sub(actual)
	if err := r.tx.SetClaimable(ctx, pool, claim, next); err != nil {
		return decimal.Zero, err
	}
	if err := r.tx.SetTotalClaimable(ctx, claim, nextTotal); err != nil {
		return decimal.Zero, err
	}
	if next.Sign() == 0 {
		if err := r.unlist(ctx, pool, claim); err != nil {
			return decimal.Zero, err
		}
	}
	return actual, nil
}

// unlist swaps the claim with the last slot and pops
func (r claimRegistry) unlist(ctx context.Context, pool, claim string) error {
	pos, listed, err := r.tx.ClaimAssetPosition(ctx, pool, claim)
	if err != nil || !listed {
		return err
	}
	last, err := r.tx.PopClaimAsset(ctx, pool)
	if err != nil {
		return err
	}
	if last == claim {
		return nil
	}
	return r.tx.PutClaimAssetAt(ctx, pool, pos, last)
}

// PoolClaim is one pool's bucket of a claim asset
type PoolClaim struct {
	PoolAsset string          `json:"poolAsset"`
	Amount    decimal.Decimal `json:"amount"`
}

// holders lists the pools with a non-zero bucket of claim, in pool
// registration order
func (r claimRegistry) holders(ctx context.Context, claim string) ([]PoolClaim, error) {
	pools, err := r.tx.PoolAssets(ctx)
	if err != nil {
		return nil, err
	}
	var out []PoolClaim
	for _, pool := range pools {
		amount, err := r.tx.Claimable(ctx, pool, claim)
		if err != nil {
			return nil, err
		}
		if amount.Sign() > 0 {
			out = append(out, PoolClaim{PoolAsset: pool, Amount: amount})
		}
	}
	return out, nil
}
