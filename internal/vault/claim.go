package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/shopspring/decimal"
)

// ClaimRequest asks for part of a pool's claimable collateral. A zero MaxUSD
// means no cap.
type ClaimRequest struct {
	PoolAsset  string          `json:"poolAsset"`
	ClaimAsset string          `json:"claimAsset"`
	MaxUSD     decimal.Decimal `json:"maxUsdValue"`
}

type ClaimResult struct {
	USDValue decimal.Decimal `json:"usdValue"`
	Amount   decimal.Decimal `json:"amount"`
	Shares   decimal.Decimal `json:"shares"`
	Depleted bool            `json:"depleted"`
}

// BatchClaimResult sums the claims that went through. Depleted lists the
// pools the user has no shares left in.
type BatchClaimResult struct {
	USDValue decimal.Decimal `json:"usdValue"`
	Claims   []ClaimFill     `json:"claims"`
	Depleted []string        `json:"depleted,omitempty"`
}

type ClaimFill struct {
	PoolAsset  string          `json:"poolAsset"`
	ClaimAsset string          `json:"claimAsset"`
	Amount     decimal.Decimal `json:"amount"`
	USDValue   decimal.Decimal `json:"usdValue"`
}

type claimEvent struct {
	User       string          `json:"user"`
	PoolAsset  string          `json:"poolAsset"`
	ClaimAsset string          `json:"claimAsset"`
	Recipient  string          `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
	USDValue   decimal.Decimal `json:"usdValue"`
	Shares     decimal.Decimal `json:"shares"`
	Depleted   bool            `json:"depleted"`
}

// ClaimFromStabilityPool pays the user their share of one claim bucket and
// burns the shares that value represented.
func (v *Vault) ClaimFromStabilityPool(ctx context.Context, caller, user string, req ClaimRequest, recipient string) (ClaimResult, error) {
	var result ClaimResult
	err := v.run(ctx, "claim", func(ctx context.Context, op *operation) error {
		if err := v.requireTellerOrSelf(caller, user); err != nil {
			return err
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if user == "" {
			return ErrInvalidUserOrAsset
		}
		if recipient == "" {
			recipient = user
		}
		res, err := op.claim(ctx, user, req, recipient)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	return result, nil
}

// ClaimManyFromStabilityPool runs up to MaxClaims claims in one operation.
// Entries that cannot be claimed are skipped; repeated (pool, claim) pairs
// are honored once.
func (v *Vault) ClaimManyFromStabilityPool(ctx context.Context, caller, user string, reqs []ClaimRequest, recipient string) (BatchClaimResult, error) {
	var result BatchClaimResult
	err := v.run(ctx, "claim_many", func(ctx context.Context, op *operation) error {
		if err := v.requireTellerOrSelf(caller, user); err != nil {
			return err
		}
		if len(reqs) > v.cfg.MaxClaims {
			return ErrTooManyClaims
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if user == "" {
			return ErrInvalidUserOrAsset
		}
		if recipient == "" {
			recipient = user
		}

		result = BatchClaimResult{USDValue: decimal.Zero}
		seen := make(map[[2]string]struct{}, len(reqs))
		for _, req := range reqs {
			key := [2]string{req.PoolAsset, req.ClaimAsset}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			res, err := op.claim(ctx, user, req, recipient)
			if err != nil {
				if skippable(err) {
					continue
				}
				return err
			}
			result.USDValue = result.USDValue.Add(res.USDValue)
			result.Claims = append(result.Claims, ClaimFill{
				PoolAsset:  req.PoolAsset,
				ClaimAsset: req.ClaimAsset,
				Amount:     res.Amount,
				USDValue:   res.USDValue,
			})
			if res.Depleted {
				result.Depleted = append(result.Depleted, req.PoolAsset)
			}
		}
		if len(result.Claims) == 0 {
			return ErrNoClaims
		}
		return nil
	})
	if err != nil {
		return BatchClaimResult{}, err
	}
	return result, nil
}

// skippable reports whether a batch entry failed validation before mutating
func skippable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindState:
		return true
	}
	return false
}

// claim validates fully before its first write, so a validation or state
// error leaves the transaction untouched
func (op *operation) claim(ctx context.Context, user string, req ClaimRequest, recipient string) (ClaimResult, error) {
	if req.PoolAsset == "" || req.ClaimAsset == "" {
		return ClaimResult{}, ErrInvalidUserOrAsset
	}
	if _, ok := op.v.assets.Get(req.PoolAsset); !ok {
		return ClaimResult{}, ErrInvalidUserOrAsset
	}
	if _, ok := op.v.assets.Get(req.ClaimAsset); !ok {
		return ClaimResult{}, ErrInvalidUserOrAsset
	}

	bucket, err := op.claims.balance(ctx, req.PoolAsset, req.ClaimAsset)
	if err != nil {
		return ClaimResult{}, err
	}
	if bucket.Sign() <= 0 {
		return ClaimResult{}, ErrNoClaimableBalance
	}
	bucketValue, err := op.usd(ctx, req.ClaimAsset, bucket, false)
	if err != nil {
		return ClaimResult{}, err
	}
	if bucketValue.Sign() <= 0 {
		return ClaimResult{}, ErrNothingToClaim
	}

	userShares, totalShares, totalValue, userValue, err := op.position(ctx, req.PoolAsset, user)
	if err != nil {
		return ClaimResult{}, err
	}
	if userShares.Sign() <= 0 {
		return ClaimResult{}, ErrNoUserShares
	}
	value := minDecimal(userValue, bucketValue)
	if req.MaxUSD.Sign() > 0 {
		value = minDecimal(value, req.MaxUSD)
	}
	if value.Sign() <= 0 {
		return ClaimResult{}, ErrNothingToClaim
	}

	amount := bucket
	if !value.Equal(bucketValue) {
		amount = minDecimal(bucket, calc.MulDiv(bucket, value, bucketValue, false))
	}
	if amount.Sign() <= 0 {
		return ClaimResult{}, ErrNothingToClaim
	}
	shares := minDecimal(calc.SharesFromValue(value, totalShares, totalValue, true), userShares)

	if err := op.ledger.burn(ctx, req.PoolAsset, user, shares); err != nil {
		return ClaimResult{}, err
	}
	if _, err := op.claims.debit(ctx, req.PoolAsset, req.ClaimAsset, amount); err != nil {
		return ClaimResult{}, err
	}
	if err := op.bank.transfer(ctx, req.ClaimAsset, op.v.cfg.VaultAddress, recipient, amount); err != nil {
		return ClaimResult{}, err
	}

	result := ClaimResult{USDValue: value, Amount: amount, Shares: shares, Depleted: shares.Equal(userShares)}
	op.touch(req.PoolAsset)
	if err := op.emit(EventClaim, claimEvent{
		User:       user,
		PoolAsset:  req.PoolAsset,
		ClaimAsset: req.ClaimAsset,
		Recipient:  recipient,
		Amount:     amount,
		USDValue:   value,
		Shares:     shares,
		Depleted:   result.Depleted,
	}); err != nil {
		return ClaimResult{}, err
	}
	return result, nil
}
