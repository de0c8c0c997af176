package vault

import (
	"context"
	"fmt"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
)

type ClaimBucket struct {
	ClaimAsset string          `json:"claimAsset"`
	Amount     decimal.Decimal `json:"amount"`
	USDValue   decimal.Decimal `json:"usdValue"`
}

type PoolSummary struct {
	Asset        string          `json:"asset"`
	TotalShares  decimal.Decimal `json:"totalShares"`
	TokenBalance decimal.Decimal `json:"tokenBalance"`
	TokenValue   decimal.Decimal `json:"tokenValue"`
	Claims       []ClaimBucket   `json:"claims"`
	TotalValue   decimal.Decimal `json:"totalValue"`
}

type UserPosition struct {
	Asset    string          `json:"asset"`
	User     string          `json:"user"`
	Shares   decimal.Decimal `json:"shares"`
	USDValue decimal.Decimal `json:"usdValue"`
	Depleted bool            `json:"depleted"`
}

type ClaimTotals struct {
	ClaimAsset string          `json:"claimAsset"`
	Total      decimal.Decimal `json:"total"`
	Holders    []PoolClaim     `json:"holders"`
}

// view runs a read-only operation with its own price session
func (v *Vault) view(ctx context.Context, fn func(ctx context.Context, op *operation) error) error {
	return v.db.Transaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		return fn(ctx, &operation{
			v:       v,
			tx:      tx,
			prices:  v.oracle.NewSession(),
			ledger:  shareLedger{tx: tx},
			claims:  claimRegistry{tx: tx},
			bank:    bank{tx: tx},
			touched: make(map[string]struct{}),
		})
	})
}

// PoolAssets lists pools in registration order
func (v *Vault) PoolAssets(ctx context.Context) ([]string, error) {
	var pools []string
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		pools, err = op.tx.PoolAssets(ctx)
		return err
	})
	return pools, err
}

func (v *Vault) PoolSummary(ctx context.Context, pool string) (PoolSummary, error) {
	if _, ok := v.assets.Get(pool); !ok {
		return PoolSummary{}, ErrInvalidUserOrAsset
	}
	summary := PoolSummary{Asset: pool, Claims: []ClaimBucket{}}
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		if summary.TotalShares, err = op.ledger.total(ctx, pool); err != nil {
			return err
		}
		if summary.TokenBalance, err = op.poolTokenBalance(ctx, pool); err != nil {
			return err
		}
		if summary.TokenValue, err = op.usd(ctx, pool, summary.TokenBalance, false); err != nil {
			return err
		}
		summary.TotalValue = summary.TokenValue

		claimAssets, err := op.claims.assets(ctx, pool)
		if err != nil {
			return err
		}
		for _, claim := range claimAssets {
			amount, err := op.claims.balance(ctx, pool, claim)
			if err != nil {
				return err
			}
			value, err := op.usd(ctx, claim, amount, false)
			if err != nil {
				return err
			}
			summary.Claims = append(summary.Claims, ClaimBucket{ClaimAsset: claim, Amount: amount, USDValue: value})
			summary.TotalValue = summary.TotalValue.Add(value)
		}
		return nil
	})
	return summary, err
}

// TotalValue is the pool's USD value at current prices
func (v *Vault) TotalValue(ctx context.Context, pool string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		total, err = op.totalValue(ctx, pool)
		return err
	})
	return total, err
}

func (v *Vault) UserPosition(ctx context.Context, pool, user string) (UserPosition, error) {
	if _, ok := v.assets.Get(pool); !ok || user == "" {
		return UserPosition{}, ErrInvalidUserOrAsset
	}
	pos := UserPosition{Asset: pool, User: user}
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		shares, _, _, value, err := op.position(ctx, pool, user)
		if err != nil {
			return err
		}
		pos.Shares = shares
		pos.USDValue = value
		pos.Depleted = shares.Sign() == 0
		return nil
	})
	return pos, err
}

// ClaimTotals reports the vault-wide total of a claim asset and the pools holding it
func (v *Vault) ClaimTotals(ctx context.Context, claim string) (ClaimTotals, error) {
	if _, ok := v.assets.Get(claim); !ok {
		return ClaimTotals{}, ErrInvalidUserOrAsset
	}
	totals := ClaimTotals{ClaimAsset: claim, Holders: []PoolClaim{}}
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		if totals.Total, err = op.claims.total(ctx, claim); err != nil {
			return err
		}
		holders, err := op.claims.holders(ctx, claim)
		if err != nil {
			return err
		}
		totals.Holders = append(totals.Holders, holders...)
		return nil
	})
	return totals, err
}

// Claimable is one pool's bucket of a claim asset
func (v *Vault) Claimable(ctx context.Context, pool, claim string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		amount, err = op.claims.balance(ctx, pool, claim)
		return err
	})
	return amount, err
}

// Balances returns every custodied token balance of holder
func (v *Vault) Balances(ctx context.Context, holder string) (map[string]decimal.Decimal, error) {
	var out map[string]decimal.Decimal
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		out, err = op.tx.Holdings(ctx, holder)
		return err
	})
	return out, err
}

// Events returns the most recent journal entries, newest first
func (v *Vault) Events(ctx context.Context, limit int) ([]interfaces.Event, error) {
	var events []interfaces.Event
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		events, err = op.tx.Events(ctx, limit)
		return err
	})
	return events, err
}

// CheckInvariants verifies the ledger's accounting identities: share totals
// match their rows, claim totals match their buckets, and the claim index
// lists exactly the non-empty buckets.
func (v *Vault) CheckInvariants(ctx context.Context) error {
	return v.view(ctx, func(ctx context.Context, op *operation) error {
		pools, err := op.tx.PoolAssets(ctx)
		if err != nil {
			return err
		}
		claimSums := make(map[string]decimal.Decimal)
		for _, pool := range pools {
			holders, err := op.tx.Shareholders(ctx, pool)
			if err != nil {
				return err
			}
			sum := decimal.Zero
			for _, h := range holders {
				sum = sum.Add(h.Shares)
			}
			total, err := op.ledger.total(ctx, pool)
			if err != nil {
				return err
			}
			if !sum.Equal(total) {
				return fmt.Errorf("pool %s: shares sum %s != total %s", pool, sum, total)
			}

			listed, err := op.claims.assets(ctx, pool)
			if err != nil {
				return err
			}
			seen := make(map[string]bool, len(listed))
			for _, claim := range listed {
				if seen[claim] {
					return fmt.Errorf("pool %s: claim %s listed twice", pool, claim)
				}
				seen[claim] = true
				amount, err := op.claims.balance(ctx, pool, claim)
				if err != nil {
					return err
				}
				if amount.Sign() <= 0 {
					return fmt.Errorf("pool %s: claim %s listed with empty bucket", pool, claim)
				}
				claimSums[claim] = claimSums[claim].Add(amount)
			}
		}

		for _, asset := range v.assets.List() {
			total, err := op.claims.total(ctx, asset.ID)
			if err != nil {
				return err
			}
			if sum := claimSums[asset.ID]; !sum.Equal(total) {
				return fmt.Errorf("claim %s: buckets sum %s != total %s", asset.ID, sum, total)
			}
			held, err := op.bank.balance(ctx, asset.ID, v.cfg.VaultAddress)
			if err != nil {
				return err
			}
			if _, ok := calc.SafeSub(held, total); !ok {
				return fmt.Errorf("claim %s: vault holds %s but owes %s", asset.ID, held, total)
			}
		}
		return nil
	})
}

// TotalSupply is the custodied supply of asset
func (v *Vault) TotalSupply(ctx context.Context, asset string) (decimal.Decimal, error) {
	var supply decimal.Decimal
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		supply, err = op.tx.TotalSupply(ctx, asset)
		return err
	})
	return supply, err
}
