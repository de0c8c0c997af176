package calc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxUint256 bounds every amount the vault stores.
var MaxUint256 = decimal.RequireFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")

// ValidateOracleAge checks if oracle data is fresh enough
func ValidateOracleAge(oracleTimestamp time.Time, maxAge time.Duration) error {
	if oracleTimestamp.IsZero() {
		return fmt.Errorf("oracle data has no timestamp")
	}
	age := time.Since(oracleTimestamp)
	if maxAge > 0 && age > maxAge {
		return fmt.Errorf("oracle data too stale: %v > %v", age, maxAge)
	}
	return nil
}

// ValidateAmount checks that an amount is a positive integer that fits in uint256
func ValidateAmount(amount decimal.Decimal, operation string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("invalid %s amount: must be positive", operation)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("invalid %s amount: must be an integer", operation)
	}
	if amount.GreaterThan(MaxUint256) {
		return fmt.Errorf("invalid %s amount: too large", operation)
	}
	return nil
}

// ValidatePrice checks that an oracle price is usable
func ValidatePrice(price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("invalid price: must be positive")
	}
	return nil
}
