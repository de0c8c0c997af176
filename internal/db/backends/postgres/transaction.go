package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
)

// Transaction wraps a pgx transaction. NUMERIC columns travel as text so no
// precision is lost between postgres and decimal.Decimal.
type Transaction struct {
	tx pgx.Tx

	mu        sync.Mutex
	completed bool
}

func newTransaction(tx pgx.Tx) *Transaction {
	return &Transaction{tx: tx}
}

// Commit commits the transaction
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		return interfaces.ErrTransactionCompleted
	}
	t.completed = true
	if err := t.tx.Commit(ctx); err != nil {
		return &interfaces.DatabaseError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		return interfaces.ErrTransactionCompleted
	}
	t.completed = true
	if err := t.tx.Rollback(ctx); err != nil {
		return &interfaces.DatabaseError{Op: "rollback", Err: err}
	}
	return nil
}

// IsCompleted returns true if the transaction has been committed or rolled back
func (t *Transaction) IsCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// amount reads one NUMERIC column; no row reads as zero
func (t *Transaction) amount(ctx context.Context, op, query string, args ...any) (decimal.Decimal, error) {
	var text string
	err := t.tx.QueryRow(ctx, query, args...).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, &interfaces.DatabaseError{Op: op, Err: err}
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, &interfaces.DatabaseError{Op: op, Err: err}
	}
	return v, nil
}

func (t *Transaction) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return &interfaces.DatabaseError{Op: op, Err: err}
	}
	return nil
}

func (t *Transaction) upsertAmount(ctx context.Context, op, query string, amount decimal.Decimal, keys ...any) error {
	if amount.Sign() < 0 {
		return &interfaces.DatabaseError{Op: op, Err: interfaces.ErrNegativeValue}
	}
	return t.exec(ctx, op, query, append(keys, amount.String())...)
}

func (t *Transaction) TotalShares(ctx context.Context, poolAsset string) (decimal.Decimal, error) {
	return t.amount(ctx, "total shares",
		`SELECT shares::text FROM vault_total_shares WHERE asset = $1`, poolAsset)
}

func (t *Transaction) SetTotalShares(ctx context.Context, poolAsset string, shares decimal.Decimal) error {
	return t.upsertAmount(ctx, "set total shares",
		`INSERT INTO vault_total_shares (asset, shares) VALUES ($1, $2::numeric)
		 ON CONFLICT (asset) DO UPDATE SET shares = EXCLUDED.shares`, shares, poolAsset)
}

func (t *Transaction) UserShares(ctx context.Context, poolAsset, user string) (decimal.Decimal, error) {
	return t.amount(ctx, "user shares",
		`SELECT shares::text FROM vault_user_shares WHERE asset = $1 AND user_addr = $2`, poolAsset, user)
}

func (t *Transaction) SetUserShares(ctx context.Context, poolAsset, user string, shares decimal.Decimal) error {
	return t.upsertAmount(ctx, "set user shares",
		`INSERT INTO vault_user_shares (asset, user_addr, shares) VALUES ($1, $2, $3::numeric)
		 ON CONFLICT (asset, user_addr) DO UPDATE SET shares = EXCLUDED.shares`, shares, poolAsset, user)
}

func (t *Transaction) Shareholders(ctx context.Context, poolAsset string) ([]interfaces.ShareBalance, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT user_addr, shares::text FROM vault_user_shares WHERE asset = $1 ORDER BY user_addr`, poolAsset)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "shareholders", Err: err}
	}
	defer rows.Close()

	var out []interfaces.ShareBalance
	for rows.Next() {
		var user, text string
		if err := rows.Scan(&user, &text); err != nil {
			return nil, &interfaces.DatabaseError{Op: "shareholders", Err: err}
		}
		shares, err := decimal.NewFromString(text)
		if err != nil {
			return nil, &interfaces.DatabaseError{Op: "shareholders", Err: err}
		}
		out = append(out, interfaces.ShareBalance{User: user, Shares: shares})
	}
	return out, rows.Err()
}

func (t *Transaction) PoolAssets(ctx context.Context) ([]string, error) {
	return t.strings(ctx, "pool assets", `SELECT asset FROM vault_pool_assets ORDER BY seq`)
}

func (t *Transaction) AddPoolAsset(ctx context.Context, poolAsset string) error {
	return t.exec(ctx, "add pool asset",
		`INSERT INTO vault_pool_assets (asset) VALUES ($1) ON CONFLICT (asset) DO NOTHING`, poolAsset)
}

func (t *Transaction) Claimable(ctx context.Context, poolAsset, claimAsset string) (decimal.Decimal, error) {
	return t.amount(ctx, "claimable",
		`SELECT amount::text FROM vault_claimable WHERE pool_asset = $1 AND claim_asset = $2`, poolAsset, claimAsset)
}

func (t *Transaction) SetClaimable(ctx context.Context, poolAsset, claimAsset string, amount decimal.Decimal) error {
	return t.upsertAmount(ctx, "set claimable",
		`INSERT INTO vault_claimable (pool_asset, claim_asset, amount) VALUES ($1, $2, $3::numeric)
		 ON CONFLICT (pool_asset, claim_asset) DO UPDATE SET amount = EXCLUDED.amount`, amount, poolAsset, claimAsset)
}

func (t *Transaction) TotalClaimable(ctx context.Context, claimAsset string) (decimal.Decimal, error) {
	return t.amount(ctx, "total claimable",
		`SELECT amount::text FROM vault_total_claimable WHERE claim_asset = $1`, claimAsset)
}

func (t *Transaction) SetTotalClaimable(ctx context.Context, claimAsset string, amount decimal.Decimal) error {
	return t.upsertAmount(ctx, "set total claimable",
		`INSERT INTO vault_total_claimable (claim_asset, amount) VALUES ($1, $2::numeric)
		 ON CONFLICT (claim_asset) DO UPDATE SET amount = EXCLUDED.amount`, amount, claimAsset)
}

func (t *Transaction) ClaimAssets(ctx context.Context, poolAsset string) ([]string, error) {
	return t.strings(ctx, "claim assets",
		`SELECT claim_asset FROM vault_claim_index WHERE pool_asset = $1 ORDER BY position`, poolAsset)
}

func (t *Transaction) ClaimAssetPosition(ctx context.Context, poolAsset, claimAsset string) (int, bool, error) {
	var pos int
	err := t.tx.QueryRow(ctx,
		`SELECT position FROM vault_claim_index WHERE pool_asset = $1 AND claim_asset = $2`,
		poolAsset, claimAsset).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &interfaces.DatabaseError{Op: "claim asset position", Err: err}
	}
	return pos, true, nil
}

func (t *Transaction) PushClaimAsset(ctx context.Context, poolAsset, claimAsset string) error {
	return t.exec(ctx, "push claim asset",
		`INSERT INTO vault_claim_index (pool_asset, position, claim_asset)
		 SELECT $1, COUNT(*), $2 FROM vault_claim_index WHERE pool_asset = $1`, poolAsset, claimAsset)
}

func (t *Transaction) PopClaimAsset(ctx context.Context, poolAsset string) (string, error) {
	var claim string
	err := t.tx.QueryRow(ctx,
		`DELETE FROM vault_claim_index
		 WHERE pool_asset = $1
		   AND position = (SELECT MAX(position) FROM vault_claim_index WHERE pool_asset = $1)
		 RETURNING claim_asset`, poolAsset).Scan(&claim)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &interfaces.DatabaseError{Op: "pop claim asset", Err: interfaces.ErrIndexOutOfRange}
	}
	if err != nil {
		return "", &interfaces.DatabaseError{Op: "pop claim asset", Err: err}
	}
	return claim, nil
}

func (t *Transaction) PutClaimAssetAt(ctx context.Context, poolAsset string, position int, claimAsset string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE vault_claim_index SET claim_asset = $3 WHERE pool_asset = $1 AND position = $2`,
		poolAsset, position, claimAsset)
	if err != nil {
		return &interfaces.DatabaseError{Op: "put claim asset", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &interfaces.DatabaseError{Op: "put claim asset", Err: interfaces.ErrIndexOutOfRange}
	}
	return nil
}

func (t *Transaction) Balance(ctx context.Context, asset, holder string) (decimal.Decimal, error) {
	return t.amount(ctx, "balance",
		`SELECT amount::text FROM vault_balances WHERE asset = $1 AND holder = $2`, asset, holder)
}

func (t *Transaction) SetBalance(ctx context.Context, asset, holder string, amount decimal.Decimal) error {
	return t.upsertAmount(ctx, "set balance",
		`INSERT INTO vault_balances (asset, holder, amount) VALUES ($1, $2, $3::numeric)
		 ON CONFLICT (asset, holder) DO UPDATE SET amount = EXCLUDED.amount`, amount, asset, holder)
}

func (t *Transaction) Holdings(ctx context.Context, holder string) (map[string]decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT asset, amount::text FROM vault_balances WHERE holder = $1 AND amount > 0`, holder)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "holdings", Err: err}
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var asset, text string
		if err := rows.Scan(&asset, &text); err != nil {
			return nil, &interfaces.DatabaseError{Op: "holdings", Err: err}
		}
		v, err := decimal.NewFromString(text)
		if err != nil {
			return nil, &interfaces.DatabaseError{Op: "holdings", Err: err}
		}
		out[asset] = v
	}
	return out, rows.Err()
}

func (t *Transaction) TotalSupply(ctx context.Context, asset string) (decimal.Decimal, error) {
	return t.amount(ctx, "total supply", `SELECT amount::text FROM vault_supply WHERE asset = $1`, asset)
}

func (t *Transaction) SetTotalSupply(ctx context.Context, asset string, amount decimal.Decimal) error {
	return t.upsertAmount(ctx, "set total supply",
		`INSERT INTO vault_supply (asset, amount) VALUES ($1, $2::numeric)
		 ON CONFLICT (asset) DO UPDATE SET amount = EXCLUDED.amount`, amount, asset)
}

func (t *Transaction) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.tx.QueryRow(ctx, `SELECT value FROM vault_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &interfaces.DatabaseError{Op: "setting", Err: err}
	}
	return value, true, nil
}

func (t *Transaction) SetSetting(ctx context.Context, key, value string) error {
	return t.exec(ctx, "set setting",
		`INSERT INTO vault_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, value)
}

func (t *Transaction) AppendEvent(ctx context.Context, event interfaces.Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return t.exec(ctx, "append event",
		`INSERT INTO vault_events (id, kind, payload, created_at) VALUES ($1, $2, $3::jsonb, $4)`,
		event.ID, event.Kind, string(payload), createdAt)
}

// Events returns up to limit events, newest first
func (t *Transaction) Events(ctx context.Context, limit int) ([]interfaces.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.tx.Query(ctx,
		`SELECT id::text, kind, payload::text, created_at FROM vault_events ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "events", Err: err}
	}
	defer rows.Close()

	var out []interfaces.Event
	for rows.Next() {
		var e interfaces.Event
		var payload string
		if err := rows.Scan(&e.ID, &e.Kind, &payload, &e.CreatedAt); err != nil {
			return nil, &interfaces.DatabaseError{Op: "events", Err: err}
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *Transaction) strings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: op, Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, &interfaces.DatabaseError{Op: op, Err: fmt.Errorf("scan: %w", err)}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
