package vault

import "errors"

// Kind classifies vault failures
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindArithmetic    Kind = "arithmetic"
)

// Error is a vault failure with a stable message. Compare with errors.Is
// against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of a vault error, or "" for anything else
func KindOf(err error) Kind {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Kind
	}
	return ""
}

var (
	ErrInvalidUserOrAsset    = newError(KindValidation, "invalid user or asset")
	ErrInvalidDepositAmount  = newError(KindValidation, "invalid deposit amount")
	ErrInvalidWithdrawAmount = newError(KindValidation, "invalid withdrawal amount")
	ErrInvalidTransferAmount = newError(KindValidation, "invalid transfer amount")
	ErrStabAssetNotSupported = newError(KindValidation, "stab asset not supported")
	ErrInvalidLiqAsset       = newError(KindValidation, "invalid liq asset")
	ErrInvalidLiqAmount      = newError(KindValidation, "invalid liq amount")
	ErrMustBeGreen           = newError(KindValidation, "must be green token or savings green token")
	ErrLiqAssetIsVaultAsset  = newError(KindValidation, "liq asset cannot be vault asset")
	ErrNoGreenToRedeem       = newError(KindValidation, "no green to redeem")
	ErrCannotRedeemGreen     = newError(KindValidation, "cannot redeem green")
	ErrTooManyRedemptions    = newError(KindValidation, "too many redemptions")
	ErrTooManyClaims         = newError(KindValidation, "too many claims")
	ErrInvalidAmount         = newError(KindValidation, "invalid amount")

	ErrNotAllowed       = newError(KindAuthorization, "not allowed")
	ErrOnlyAuctionHouse = newError(KindAuthorization, "only AuctionHouse allowed")

	ErrPaused                = newError(KindState, "contract paused")
	ErrZeroShares            = newError(KindState, "cannot receive 0 shares")
	ErrNoUserShares          = newError(KindState, "user has no shares")
	ErrNothingToWithdraw     = newError(KindState, "nothing to withdraw")
	ErrNoStabAssetAvailable  = newError(KindState, "no stab asset available")
	ErrNoGreen               = newError(KindState, "no green")
	ErrNoRedemptions         = newError(KindState, "no redemptions occurred")
	ErrRedemptionsNotAllowed = newError(KindState, "redemptions not allowed")
	ErrNoClaimableBalance    = newError(KindState, "no claimable balance")
	ErrNothingToClaim        = newError(KindState, "nothing to claim")
	ErrNoClaims              = newError(KindState, "no claims occurred")
	ErrPriceUnavailable      = newError(KindState, "price unavailable")

	ErrInsufficientBalance = newError(KindArithmetic, "insufficient balance")
	ErrShareUnderflow      = newError(KindArithmetic, "share balance underflow")
	ErrClaimUnderflow      = newError(KindArithmetic, "claimable balance underflow")
)
