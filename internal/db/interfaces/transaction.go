package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transaction represents a database transaction over the vault ledger.
// Missing rows read as zero.
type Transaction interface {
	// Commit commits the transaction
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction
	Rollback(ctx context.Context) error

	// IsCompleted returns true if the transaction has been committed or rolled back
	IsCompleted() bool

	// Share ledger
	TotalShares(ctx context.Context, poolAsset string) (decimal.Decimal, error)
	SetTotalShares(ctx context.Context, poolAsset string, shares decimal.Decimal) error
	UserShares(ctx context.Context, poolAsset, user string) (decimal.Decimal, error)
	SetUserShares(ctx context.Context, poolAsset, user string, shares decimal.Decimal) error
	Shareholders(ctx context.Context, poolAsset string) ([]ShareBalance, error)

	// Pool assets in first-deposit order
	PoolAssets(ctx context.Context) ([]string, error)
	AddPoolAsset(ctx context.Context, poolAsset string) error

	// Claimable registry
	Claimable(ctx context.Context, poolAsset, claimAsset string) (decimal.Decimal, error)
	SetClaimable(ctx context.Context, poolAsset, claimAsset string, amount decimal.Decimal) error
	TotalClaimable(ctx context.Context, claimAsset string) (decimal.Decimal, error)
	SetTotalClaimable(ctx context.Context, claimAsset string, amount decimal.Decimal) error

	// Claim asset index: an ordered slot list per pool asset
	ClaimAssets(ctx context.Context, poolAsset string) ([]string, error)
	ClaimAssetPosition(ctx context.Context, poolAsset, claimAsset string) (int, bool, error)
	PushClaimAsset(ctx context.Context, poolAsset, claimAsset string) error
	PopClaimAsset(ctx context.Context, poolAsset string) (string, error)
	PutClaimAssetAt(ctx context.Context, poolAsset string, position int, claimAsset string) error

	// Token custody
	Balance(ctx context.Context, asset, holder string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, asset, holder string, amount decimal.Decimal) error
	Holdings(ctx context.Context, holder string) (map[string]decimal.Decimal, error)
	TotalSupply(ctx context.Context, asset string) (decimal.Decimal, error)
	SetTotalSupply(ctx context.Context, asset string, amount decimal.Decimal) error

	// Governance settings; ok is false for a key never written
	Setting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error

	// Operation journal
	AppendEvent(ctx context.Context, event Event) error
	Events(ctx context.Context, limit int) ([]Event, error)
}
