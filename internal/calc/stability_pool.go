package calc

import (
	"github.com/shopspring/decimal"
)

// MulDiv returns a*b/c truncated to an integer, rounded up when roundUp is set
// and the division leaves a remainder. A zero divisor yields zero.
func MulDiv(a, b, c decimal.Decimal, roundUp bool) decimal.Decimal {
	if c.IsZero() {
		return decimal.Zero
	}
	q, r := a.Mul(b).QuoRem(c, 0)
	if roundUp && !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

// Pow10 returns 10^n as an integer decimal.
func Pow10(n int32) decimal.Decimal {
	return decimal.New(1, n)
}

// SharesFromValue converts a USD value into pool shares.
// shares = value * totalShares / totalValue, 1:1 while no shares exist. A pool
// with shares but no value yields zero.
func SharesFromValue(value, totalShares, totalValue decimal.Decimal, roundUp bool) decimal.Decimal {
	if value.Sign() <= 0 {
		return decimal.Zero
	}
	if totalShares.IsZero() {
		return value
	}
	return MulDiv(value, totalShares, totalValue, roundUp)
}

// ValueFromShares converts pool shares into their USD value.
// value = shares * totalValue / totalShares, zero while the pool is empty.
func ValueFromShares(shares, totalShares, totalValue decimal.Decimal, roundUp bool) decimal.Decimal {
	if shares.Sign() <= 0 || totalShares.IsZero() {
		return decimal.Zero
	}
	return MulDiv(shares, totalValue, totalShares, roundUp)
}

// USDValue prices amount base units of a token with the given decimals using
// an 18-decimal USD price.
func USDValue(amount, price decimal.Decimal, decimals int32, roundUp bool) decimal.Decimal {
	if amount.Sign() <= 0 || price.Sign() <= 0 {
		return decimal.Zero
	}
	return MulDiv(amount, price, Pow10(decimals), roundUp)
}

// AmountFromUSD is the inverse of USDValue.
func AmountFromUSD(value, price decimal.Decimal, decimals int32, roundUp bool) decimal.Decimal {
	if value.Sign() <= 0 || price.Sign() <= 0 {
		return decimal.Zero
	}
	return MulDiv(value, Pow10(decimals), price, roundUp)
}

// ScaleDecimals moves an integer amount between decimal bases, truncating when
// the target has fewer decimals.
func ScaleDecimals(amount decimal.Decimal, from, to int32, roundUp bool) decimal.Decimal {
	switch {
	case from == to:
		return amount
	case to > from:
		return amount.Shift(to - from)
	default:
		return MulDiv(amount, decimal.NewFromInt(1), Pow10(from-to), roundUp)
	}
}

// SafeSub subtracts b from a and reports false instead of going negative.
func SafeSub(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if b.GreaterThan(a) {
		return decimal.Zero, false
	}
	return a.Sub(b), true
}

// ClampZero floors a value at zero.
func ClampZero(v decimal.Decimal) decimal.Decimal {
	if v.Sign() < 0 {
		return decimal.Zero
	}
	return v
}
