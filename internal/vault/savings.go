package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/shopspring/decimal"
)

// stake moves GREEN from `from` into the savings wrapper and mints sGREEN to
// owner at the wrapper's current exchange rate
func (op *operation) stake(ctx context.Context, from, owner string, amount decimal.Decimal) (decimal.Decimal, error) {
	cfg := op.v.cfg
	reserves, err := op.bank.balance(ctx, cfg.GreenToken, cfg.SavingsAddress)
	if err != nil {
		return decimal.Zero, err
	}
	supply, err := op.tx.TotalSupply(ctx, cfg.SavingsGreen)
	if err != nil {
		return decimal.Zero, err
	}
	shares := calc.SharesFromValue(amount, supply, reserves, false)
	if shares.Sign() <= 0 {
		return decimal.Zero, ErrZeroShares
	}
	if err := op.bank.transfer(ctx, cfg.GreenToken, from, cfg.SavingsAddress, amount); err != nil {
		return decimal.Zero, err
	}
	if err := op.bank.mint(ctx, cfg.SavingsGreen, owner, shares); err != nil {
		return decimal.Zero, err
	}
	return shares, nil
}

// unstake burns holder's sGREEN and pays the GREEN it represents to `to`
func (op *operation) unstake(ctx context.Context, holder, to string, shares decimal.Decimal) (decimal.Decimal, error) {
	cfg := op.v.cfg
	reserves, err := op.bank.balance(ctx, cfg.GreenToken, cfg.SavingsAddress)
	if err != nil {
		return decimal.Zero, err
	}
	supply, err := op.tx.TotalSupply(ctx, cfg.SavingsGreen)
	if err != nil {
		return decimal.Zero, err
	}
	green := calc.ValueFromShares(shares, supply, reserves, false)
	if err := op.bank.burn(ctx, cfg.SavingsGreen, holder, shares); err != nil {
		return decimal.Zero, err
	}
	if err := op.bank.transfer(ctx, cfg.GreenToken, cfg.SavingsAddress, to, green); err != nil {
		return decimal.Zero, err
	}
	return green, nil
}

type stakeEvent struct {
	Holder string          `json:"holder"`
	Green  decimal.Decimal `json:"green"`
	Shares decimal.Decimal `json:"shares"`
}

// StakeGreen wraps the caller's GREEN into sGREEN
func (v *Vault) StakeGreen(ctx context.Context, caller string, amount decimal.Decimal) (decimal.Decimal, error) {
	var minted decimal.Decimal
	err := v.run(ctx, "stake", func(ctx context.Context, op *operation) error {
		if caller == "" {
			return ErrNotAllowed
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if calc.ValidateAmount(amount, "stake") != nil {
			return ErrInvalidAmount
		}
		shares, err := op.stake(ctx, caller, caller, amount)
		if err != nil {
			return err
		}
		minted = shares
		return op.emit(EventStake, stakeEvent{Holder: caller, Green: amount, Shares: shares})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return minted, nil
}

// UnstakeGreen burns the caller's sGREEN for GREEN
func (v *Vault) UnstakeGreen(ctx context.Context, caller string, shares decimal.Decimal) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := v.run(ctx, "unstake", func(ctx context.Context, op *operation) error {
		if caller == "" {
			return ErrNotAllowed
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if shares.Sign() <= 0 {
			return ErrInvalidAmount
		}
		green, err := op.unstake(ctx, caller, caller, shares)
		if err != nil {
			return err
		}
		paid = green
		return op.emit(EventUnstake, stakeEvent{Holder: caller, Green: green, Shares: shares})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return paid, nil
}
