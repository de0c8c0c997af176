package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/shopspring/decimal"
)

// RefundPolicy decides where unspent GREEN goes. With Refund the redeemer
// gets it back, otherwise it travels to the recipient with the collateral.
// Stake delivers it as sGREEN.
type RefundPolicy struct {
	Refund bool `json:"shouldRefund"`
	Stake  bool `json:"shouldStakeRefund"`
}

type RedeemRequest struct {
	ClaimAsset  string          `json:"claimAsset"`
	GreenAmount decimal.Decimal `json:"greenAmount"`
	Recipient   string          `json:"recipient"`
	RefundPolicy
}

type RedemptionEntry struct {
	ClaimAsset     string          `json:"claimAsset"`
	MaxGreenAmount decimal.Decimal `json:"maxGreenAmount"`
}

type BatchRedeemRequest struct {
	Entries     []RedemptionEntry `json:"entries"`
	GreenBudget decimal.Decimal   `json:"greenBudget"`
	Recipient   string            `json:"recipient"`
	RefundPolicy
}

// PoolFill is one pool's contribution to a redemption
type PoolFill struct {
	PoolAsset   string          `json:"poolAsset"`
	ClaimAsset  string          `json:"claimAsset"`
	ClaimAmount decimal.Decimal `json:"claimAmount"`
	GreenIn     decimal.Decimal `json:"greenIn"`
}

type RedeemResult struct {
	USDValue     decimal.Decimal `json:"usdValue"`
	GreenSpent   decimal.Decimal `json:"greenSpent"`
	ClaimAmount  decimal.Decimal `json:"claimAmount"`
	Refunded     decimal.Decimal `json:"refunded"`
	RefundShares decimal.Decimal `json:"refundShares"`
	Fills        []PoolFill      `json:"fills"`
}

type redemptionEvent struct {
	Redeemer   string          `json:"redeemer"`
	Recipient  string          `json:"recipient"`
	GreenSpent decimal.Decimal `json:"greenSpent"`
	Refunded   decimal.Decimal `json:"refunded"`
	Staked     bool            `json:"staked"`
	Fills      []PoolFill      `json:"fills"`
}

// RedeemFromStabilityPool trades up to req.GreenAmount of the redeemer's GREEN
// for req.ClaimAsset drawn from every pool holding it. Each pool is credited
// GREEN for exactly the value it gave up. Returns the USD value redeemed.
func (v *Vault) RedeemFromStabilityPool(ctx context.Context, redeemer string, req RedeemRequest) (RedeemResult, error) {
	var result RedeemResult
	err := v.run(ctx, "redeem", func(ctx context.Context, op *operation) error {
		if redeemer == "" {
			return ErrNotAllowed
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if op.isGreen(req.ClaimAsset) {
			return ErrCannotRedeemGreen
		}
		if req.GreenAmount.Sign() <= 0 {
			return ErrNoGreenToRedeem
		}
		redeemable, err := op.redeemable(ctx, req.ClaimAsset)
		if err != nil {
			return err
		}
		if !redeemable {
			return ErrRedemptionsNotAllowed
		}
		recipient := req.Recipient
		if recipient == "" {
			recipient = redeemer
		}

		budget, err := op.pullGreen(ctx, redeemer, req.GreenAmount)
		if err != nil {
			return err
		}
		budgetUSD, err := op.usd(ctx, v.cfg.GreenToken, budget, false)
		if err != nil {
			return err
		}
		fills, err := op.drain(ctx, req.ClaimAsset, budgetUSD, recipient)
		if err != nil {
			return err
		}
		if len(fills) == 0 {
			return ErrNoRedemptions
		}

		result = summarize(fills)
		return op.settle(ctx, redeemer, recipient, budget, req.RefundPolicy, &result)
	})
	if err != nil {
		return RedeemResult{}, err
	}
	return result, nil
}

// RedeemManyFromStabilityPool spends one GREEN budget across several claim
// assets in order. Each entry takes at most its own cap; invalid entries are
// skipped and a repeated claim asset is honored only the first time.
func (v *Vault) RedeemManyFromStabilityPool(ctx context.Context, redeemer string, req BatchRedeemRequest) (RedeemResult, error) {
	var result RedeemResult
	err := v.run(ctx, "redeem_many", func(ctx context.Context, op *operation) error {
		if redeemer == "" {
			return ErrNotAllowed
		}
		if len(req.Entries) > v.cfg.MaxRedemptions {
			return ErrTooManyRedemptions
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if req.GreenBudget.Sign() <= 0 {
			return ErrNoGreenToRedeem
		}
		enabled, err := op.redemptionsEnabled(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			return ErrRedemptionsNotAllowed
		}
		recipient := req.Recipient
		if recipient == "" {
			recipient = redeemer
		}

		budget, err := op.pullGreen(ctx, redeemer, req.GreenBudget)
		if err != nil {
			return err
		}

		var fills []PoolFill
		remaining := budget
		seen := make(map[string]struct{}, len(req.Entries))
		for _, entry := range req.Entries {
			if remaining.Sign() <= 0 {
				break
			}
			if _, dup := seen[entry.ClaimAsset]; dup {
				continue
			}
			seen[entry.ClaimAsset] = struct{}{}
			if entry.ClaimAsset == "" || op.isGreen(entry.ClaimAsset) || entry.MaxGreenAmount.Sign() <= 0 {
				continue
			}
			redeemable, err := op.redeemable(ctx, entry.ClaimAsset)
			if err != nil {
				return err
			}
			if !redeemable {
				continue
			}

			limit := minDecimal(entry.MaxGreenAmount, remaining)
			limitUSD, err := op.usd(ctx, v.cfg.GreenToken, limit, false)
			if err != nil {
				return err
			}
			entryFills, err := op.drain(ctx, entry.ClaimAsset, limitUSD, recipient)
			if err != nil {
				return err
			}
			for _, f := range entryFills {
				remaining = remaining.Sub(f.GreenIn)
			}
			fills = append(fills, entryFills...)
		}
		if len(fills) == 0 {
			return ErrNoRedemptions
		}

		result = summarize(fills)
		return op.settle(ctx, redeemer, recipient, budget, req.RefundPolicy, &result)
	})
	if err != nil {
		return RedeemResult{}, err
	}
	return result, nil
}

func (op *operation) redeemable(ctx context.Context, claim string) (bool, error) {
	enabled, err := op.redemptionsEnabled(ctx)
	if err != nil || !enabled {
		return false, err
	}
	meta, ok, err := op.asset(ctx, claim)
	if err != nil {
		return false, err
	}
	return ok && meta.CanRedeem, nil
}

// pullGreen takes up to amount of GREEN from the redeemer into the vault
func (op *operation) pullGreen(ctx context.Context, redeemer string, amount decimal.Decimal) (decimal.Decimal, error) {
	wallet, err := op.bank.balance(ctx, op.v.cfg.GreenToken, redeemer)
	if err != nil {
		return decimal.Zero, err
	}
	budget := minDecimal(amount, wallet)
	if budget.Sign() <= 0 {
		return decimal.Zero, ErrNoGreenToRedeem
	}
	if err := op.bank.transfer(ctx, op.v.cfg.GreenToken, redeemer, op.v.cfg.VaultAddress, budget); err != nil {
		return decimal.Zero, err
	}
	return budget, nil
}

// drain walks pools in registration order, swapping each pool's claim bucket
// for GREEN until budgetUSD is spent, and sends the collateral to recipient.
func (op *operation) drain(ctx context.Context, claim string, budgetUSD decimal.Decimal, recipient string) ([]PoolFill, error) {
	pools, err := op.tx.PoolAssets(ctx)
	if err != nil {
		return nil, err
	}

	var fills []PoolFill
	out := decimal.Zero
	remaining := budgetUSD
	for _, pool := range pools {
		if remaining.Sign() <= 0 {
			break
		}
		bucket, err := op.claims.balance(ctx, pool, claim)
		if err != nil {
			return nil, err
		}
		if bucket.Sign() <= 0 {
			continue
		}
		bucketValue, err := op.usd(ctx, claim, bucket, false)
		if err != nil {
			return nil, err
		}
		if bucketValue.Sign() <= 0 {
			continue
		}

		drawn := minDecimal(remaining, bucketValue)
		native := bucket
		if !drawn.Equal(bucketValue) {
			native = minDecimal(bucket, calc.MulDiv(bucket, drawn, bucketValue, false))
		}
		if native.Sign() <= 0 {
			continue
		}
		green, err := op.fromUSD(ctx, op.v.cfg.GreenToken, drawn, false)
		if err != nil {
			return nil, err
		}
		if green.Sign() <= 0 {
			continue
		}

		if _, err := op.claims.debit(ctx, pool, claim, native); err != nil {
			return nil, err
		}
		if err := op.claims.credit(ctx, pool, op.v.cfg.GreenToken, green); err != nil {
			return nil, err
		}
		remaining = remaining.Sub(drawn)
		out = out.Add(native)
		op.touch(pool)
		fills = append(fills, PoolFill{PoolAsset: pool, ClaimAsset: claim, ClaimAmount: native, GreenIn: green})
	}

	if err := op.bank.transfer(ctx, claim, op.v.cfg.VaultAddress, recipient, out); err != nil {
		return nil, err
	}
	return fills, nil
}

func summarize(fills []PoolFill) RedeemResult {
	r := RedeemResult{
		USDValue:     decimal.Zero,
		GreenSpent:   decimal.Zero,
		ClaimAmount:  decimal.Zero,
		Refunded:     decimal.Zero,
		RefundShares: decimal.Zero,
		Fills:        fills,
	}
	for _, f := range fills {
		r.GreenSpent = r.GreenSpent.Add(f.GreenIn)
		r.ClaimAmount = r.ClaimAmount.Add(f.ClaimAmount)
	}
	return r
}

// settle returns unspent GREEN per the refund policy and journals the redemption
func (op *operation) settle(ctx context.Context, redeemer, recipient string, budget decimal.Decimal, policy RefundPolicy, result *RedeemResult) error {
	cfg := op.v.cfg
	usd, err := op.usd(ctx, cfg.GreenToken, result.GreenSpent, false)
	if err != nil {
		return err
	}
	result.USDValue = usd

	refund, ok := calc.SafeSub(budget, result.GreenSpent)
	if !ok {
		return ErrInsufficientBalance
	}
	if refund.Sign() > 0 {
		to := recipient
		if policy.Refund {
			to = redeemer
		}
		if policy.Stake {
			shares, err := op.stake(ctx, cfg.VaultAddress, to, refund)
			if err != nil {
				return err
			}
			result.RefundShares = shares
		} else if err := op.bank.transfer(ctx, cfg.GreenToken, cfg.VaultAddress, to, refund); err != nil {
			return err
		}
		result.Refunded = refund
	}

	fills := result.Fills
	op.afterCommit = append(op.afterCommit, func() {
		if op.v.recorder == nil {
			return
		}
		for _, f := range fills {
			op.v.recorder.RecordRedemption(ctx, f.ClaimAsset, toFloat(f.GreenIn, 18))
		}
	})
	return op.emit(EventRedemption, redemptionEvent{
		Redeemer:   redeemer,
		Recipient:  recipient,
		GreenSpent: result.GreenSpent,
		Refunded:   result.Refunded,
		Staked:     policy.Stake && result.Refunded.Sign() > 0,
		Fills:      result.Fills,
	})
}
