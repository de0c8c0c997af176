package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
)

// shareLedger keeps per-user shares and the per-pool total in lockstep
type shareLedger struct {
	tx interfaces.Transaction
}

func (l shareLedger) shares(ctx context.Context, pool, user string) (decimal.Decimal, error) {
	return l.tx.UserShares(ctx, pool, user)
}

func (l shareLedger) total(ctx context.Context, pool string) (decimal.Decimal, error) {
	return l.tx.TotalShares(ctx, pool)
}

func (l shareLedger) mint(ctx context.Context, pool, user string, shares decimal.Decimal) error {
	held, err := l.tx.UserShares(ctx, pool, user)
	if err != nil {
		return err
	}
	total, err := l.tx.TotalShares(ctx, pool)
	if err != nil {
		return err
	}
	if err := l.tx.SetUserShares(ctx, pool, user, held.Add(shares)); err != nil {
		return err
	}
	return l.tx.SetTotalShares(ctx, pool, total.Add(shares))
}

func (l shareLedger) burn(ctx context.Context, pool, user string, shares decimal.Decimal) error {
	held, err := l.tx.UserShares(ctx, pool, user)
	if err != nil {
		return err
	}
	total, err := l.tx.TotalShares(ctx, pool)
	if err != nil {
		return err
	}
	nextHeld, ok := calc.SafeSub(held, shares)
	if !ok {
		return ErrShareUnderflow
	}
	nextTotal, ok := calc.SafeSub(total, shares)
	if !ok {
		return ErrShareUnderflow
	}
	if err := l.tx.SetUserShares(ctx, pool, user, nextHeld); err != nil {
		return err
	}
	return l.tx.SetTotalShares(ctx, pool, nextTotal)
}

func (l shareLedger) move(ctx context.Context, pool, from, to string, shares decimal.Decimal) error {
	fromHeld, err := l.tx.UserShares(ctx, pool, from)
	if err != nil {
		return err
	}
	next, ok := calc.SafeSub(fromHeld, shares)
	if !ok {
		return ErrShareUnderflow
	}
	toHeld, err := l.tx.UserShares(ctx, pool, to)
	if err != nil {
		return err
	}
	if err := l.tx.SetUserShares(ctx, pool, from, next); err != nil {
		return err
	}
	return l.tx.SetUserShares(ctx, pool, to, toHeld.Add(shares))
}

// Movement is the result of a withdrawal or an in-vault transfer
type Movement struct {
	Amount   decimal.Decimal `json:"amount"`
	Shares   decimal.Decimal `json:"shares"`
	Depleted bool            `json:"depleted"`
}

type depositEvent struct {
	Caller    string          `json:"caller"`
	User      string          `json:"user"`
	PoolAsset string          `json:"poolAsset"`
	Amount    decimal.Decimal `json:"amount"`
	Value     decimal.Decimal `json:"usdValue"`
	Shares    decimal.Decimal `json:"shares"`
}

type withdrawEvent struct {
	User      string          `json:"user"`
	PoolAsset string          `json:"poolAsset"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Shares    decimal.Decimal `json:"shares"`
	Depleted  bool            `json:"depleted"`
}

type transferEvent struct {
	PoolAsset string          `json:"poolAsset"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Shares    decimal.Decimal `json:"shares"`
	Depleted  bool            `json:"depleted"`
}

func (v *Vault) requireTellerOrSelf(caller, user string) error {
	if caller == "" {
		return ErrNotAllowed
	}
	if caller == user || (v.cfg.Teller != "" && caller == v.cfg.Teller) {
		return nil
	}
	return ErrNotAllowed
}

// Deposit moves up to amount of poolAsset from the user's wallet into the
// vault and mints shares against the pool's value before the deposit.
// Shares round down. Returns the amount actually deposited and the shares minted.
func (v *Vault) Deposit(ctx context.Context, caller, user, poolAsset string, amount decimal.Decimal) (Movement, error) {
	var deposited Movement
	err := v.run(ctx, "deposit", func(ctx context.Context, op *operation) error {
		if err := v.requireTellerOrSelf(caller, user); err != nil {
			return err
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if user == "" || poolAsset == "" {
			return ErrInvalidUserOrAsset
		}
		meta, ok, err := op.asset(ctx, poolAsset)
		if err != nil {
			return err
		}
		if !ok || !meta.StabEligible {
			return ErrStabAssetNotSupported
		}
		if amount.Sign() <= 0 {
			return ErrInvalidDepositAmount
		}

		wallet, err := op.bank.balance(ctx, poolAsset, user)
		if err != nil {
			return err
		}
		actual := minDecimal(amount, wallet)
		if actual.Sign() <= 0 {
			return ErrInvalidDepositAmount
		}
		if err := op.bank.transfer(ctx, poolAsset, user, v.cfg.VaultAddress, actual); err != nil {
			return err
		}

		depositValue, err := op.usd(ctx, poolAsset, actual, false)
		if err != nil {
			return err
		}
		if depositValue.Sign() <= 0 {
			return ErrZeroShares
		}
		totalValue, err := op.totalValue(ctx, poolAsset)
		if err != nil {
			return err
		}
		totalShares, err := op.ledger.total(ctx, poolAsset)
		if err != nil {
			return err
		}
		priorValue := calc.ClampZero(totalValue.Sub(depositValue))
		shares := calc.SharesFromValue(depositValue, totalShares, priorValue, false)
		if shares.Sign() <= 0 {
			return ErrZeroShares
		}

		if err := op.ledger.mint(ctx, poolAsset, user, shares); err != nil {
			return err
		}
		if err := op.tx.AddPoolAsset(ctx, poolAsset); err != nil {
			return err
		}
		op.touch(poolAsset)
		deposited = Movement{Amount: actual, Shares: shares}
		return op.emit(EventDeposit, depositEvent{
			Caller:    caller,
			User:      user,
			PoolAsset: poolAsset,
			Amount:    actual,
			Value:     depositValue,
			Shares:    shares,
		})
	})
	if err != nil {
		return Movement{}, err
	}
	return deposited, nil
}

// Withdraw pays out up to amount of poolAsset, bounded by the user's value
// and by the tokens the pool still holds. Shares burned round up.
func (v *Vault) Withdraw(ctx context.Context, caller, user, poolAsset string, amount decimal.Decimal, recipient string) (Movement, error) {
	var result Movement
	err := v.run(ctx, "withdraw", func(ctx context.Context, op *operation) error {
		if err := v.requireTellerOrSelf(caller, user); err != nil {
			return err
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if user == "" || poolAsset == "" {
			return ErrInvalidUserOrAsset
		}
		if _, ok := v.assets.Get(poolAsset); !ok {
			return ErrInvalidUserOrAsset
		}
		if amount.Sign() <= 0 {
			return ErrInvalidWithdrawAmount
		}
		if recipient == "" {
			recipient = user
		}

		userShares, totalShares, totalValue, userValue, err := op.position(ctx, poolAsset, user)
		if err != nil {
			return err
		}
		if userShares.Sign() <= 0 {
			return ErrNoUserShares
		}
		maxAmount, err := op.fromUSD(ctx, poolAsset, userValue, false)
		if err != nil {
			return err
		}
		available, err := op.poolTokenBalance(ctx, poolAsset)
		if err != nil {
			return err
		}
		actual := minDecimal(amount, available, maxAmount)
		if actual.Sign() <= 0 {
			return ErrNothingToWithdraw
		}

		value, err := op.usd(ctx, poolAsset, actual, true)
		if err != nil {
			return err
		}
		shares := minDecimal(calc.SharesFromValue(value, totalShares, totalValue, true), userShares)
		if err := op.ledger.burn(ctx, poolAsset, user, shares); err != nil {
			return err
		}
		if err := op.bank.transfer(ctx, poolAsset, v.cfg.VaultAddress, recipient, actual); err != nil {
			return err
		}

		op.touch(poolAsset)
		result = Movement{Amount: actual, Shares: shares, Depleted: shares.Equal(userShares)}
		return op.emit(EventWithdraw, withdrawEvent{
			User:      user,
			PoolAsset: poolAsset,
			Recipient: recipient,
			Amount:    actual,
			Shares:    shares,
			Depleted:  result.Depleted,
		})
	})
	if err != nil {
		return Movement{}, err
	}
	return result, nil
}

// TransferWithinVault moves amount worth of poolAsset shares between two
// users without any token leaving the vault. Only the auction house may call it.
func (v *Vault) TransferWithinVault(ctx context.Context, caller, poolAsset, from, to string, amount decimal.Decimal) (Movement, error) {
	var result Movement
	err := v.run(ctx, "transfer", func(ctx context.Context, op *operation) error {
		if caller == "" || caller != v.cfg.AuctionHouse {
			return ErrNotAllowed
		}
		if err := op.requireActive(ctx); err != nil {
			return err
		}
		if poolAsset == "" || from == "" || to == "" || from == to {
			return ErrInvalidUserOrAsset
		}
		if _, ok := v.assets.Get(poolAsset); !ok {
			return ErrInvalidUserOrAsset
		}
		if amount.Sign() <= 0 {
			return ErrInvalidTransferAmount
		}

		fromShares, totalShares, totalValue, fromValue, err := op.position(ctx, poolAsset, from)
		if err != nil {
			return err
		}
		if fromShares.Sign() <= 0 {
			return ErrNoUserShares
		}
		maxAmount, err := op.fromUSD(ctx, poolAsset, fromValue, false)
		if err != nil {
			return err
		}
		actual := minDecimal(amount, maxAmount)
		if actual.Sign() <= 0 {
			return ErrInvalidTransferAmount
		}

		value, err := op.usd(ctx, poolAsset, actual, true)
		if err != nil {
			return err
		}
		shares := minDecimal(calc.SharesFromValue(value, totalShares, totalValue, true), fromShares)
		if err := op.ledger.move(ctx, poolAsset, from, to, shares); err != nil {
			return err
		}

		op.touch(poolAsset)
		result = Movement{Amount: actual, Shares: shares, Depleted: shares.Equal(fromShares)}
		return op.emit(EventTransfer, transferEvent{
			PoolAsset: poolAsset,
			From:      from,
			To:        to,
			Amount:    actual,
			Shares:    shares,
			Depleted:  result.Depleted,
		})
	})
	if err != nil {
		return Movement{}, err
	}
	return result, nil
}
