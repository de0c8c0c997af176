package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/leafsii/stability-vault/internal/vault"
	"github.com/shopspring/decimal"
)

var (
	errMissingCaller = errors.New("caller address required")
	errInvalidAmount = errors.New("amount must be a non-negative integer that fits in 256 bits")
)

// statusForError maps a vault error kind to an HTTP status and error code
func statusForError(err error) (int, string) {
	switch vault.KindOf(err) {
	case vault.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case vault.KindAuthorization:
		return http.StatusForbidden, "NOT_AUTHORIZED"
	case vault.KindState:
		return http.StatusConflict, "STATE_ERROR"
	case vault.KindArithmetic:
		return http.StatusUnprocessableEntity, "ARITHMETIC_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// errorMessage returns the stable vault message. Anything else stays in the
// server log.
func errorMessage(err error) string {
	var vErr *vault.Error
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return "internal error"
}

// parseAmount reads a base-unit amount; empty means zero
func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, errInvalidAmount)
	}
	return decimal.NewFromBigInt(n.ToBig(), 0), nil
}
