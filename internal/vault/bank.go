package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
)

// bank holds custodied token balances in the ledger's transaction so token
// movements roll back with the accounting that caused them
type bank struct {
	tx interfaces.Transaction
}

func (b bank) balance(ctx context.Context, asset, holder string) (decimal.Decimal, error) {
	return b.tx.Balance(ctx, asset, holder)
}

func (b bank) transfer(ctx context.Context, asset, from, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 || from == to {
		return nil
	}
	fromBal, err := b.tx.Balance(ctx, asset, from)
	if err != nil {
		return err
	}
	next, ok := calc.SafeSub(fromBal, amount)
	if !ok {
		return ErrInsufficientBalance
	}
	toBal, err := b.tx.Balance(ctx, asset, to)
	if err != nil {
		return err
	}
	if err := b.tx.SetBalance(ctx, asset, from, next); err != nil {
		return err
	}
	return b.tx.SetBalance(ctx, asset, to, toBal.Add(amount))
}

func (b bank) mint(ctx context.Context, asset, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return nil
	}
	bal, err := b.tx.Balance(ctx, asset, to)
	if err != nil {
		return err
	}
	supply, err := b.tx.TotalSupply(ctx, asset)
	if err != nil {
		return err
	}
	if err := b.tx.SetBalance(ctx, asset, to, bal.Add(amount)); err != nil {
		return err
	}
	return b.tx.SetTotalSupply(ctx, asset, supply.Add(amount))
}

func (b bank) burn(ctx context.Context, asset, from string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return nil
	}
	bal, err := b.tx.Balance(ctx, asset, from)
	if err != nil {
		return err
	}
	next, ok := calc.SafeSub(bal, amount)
	if !ok {
		return ErrInsufficientBalance
	}
	supply, err := b.tx.TotalSupply(ctx, asset)
	if err != nil {
		return err
	}
	nextSupply, ok := calc.SafeSub(supply, amount)
	if !ok {
		return ErrInsufficientBalance
	}
	if err := b.tx.SetBalance(ctx, asset, from, next); err != nil {
		return err
	}
	return b.tx.SetTotalSupply(ctx, asset, nextSupply)
}
