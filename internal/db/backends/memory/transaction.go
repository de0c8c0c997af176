package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
)

// Transaction records an undo entry for every write so Rollback can restore
// the exact prior state.
type Transaction struct {
	mu         sync.Mutex
	db         *Database
	t          *tables
	undo       []func()
	committed  bool
	rolledBack bool
}

// NewTransaction creates a new in-memory transaction. The caller must hold the writer lock.
func NewTransaction(db *Database) *Transaction {
	return &Transaction{db: db, t: db.data}
}

// Commit commits the transaction
func (tx *Transaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	tx.committed = true
	tx.undo = nil
	return nil
}

// Rollback rolls back the transaction
func (tx *Transaction) Rollback(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.rolledBack = true
	return nil
}

// IsCompleted returns true if the transaction has been committed or rolled back
func (tx *Transaction) IsCompleted() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.committed || tx.rolledBack
}

func (tx *Transaction) check() error {
	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}
	return nil
}

// setEntry writes m[k] = v and records how to restore the previous entry
func setEntry[K comparable, V any](tx *Transaction, m map[K]V, k K, v V) {
	prev, existed := m[k]
	tx.undo = append(tx.undo, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

func deleteEntry[K comparable, V any](tx *Transaction, m map[K]V, k K) {
	prev, existed := m[k]
	if !existed {
		return
	}
	tx.undo = append(tx.undo, func() { m[k] = prev })
	delete(m, k)
}

func (tx *Transaction) setAmount(op string, amount decimal.Decimal, write func()) error {
	if err := tx.check(); err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return &interfaces.DatabaseError{Op: op, Err: interfaces.ErrNegativeValue}
	}
	write()
	return nil
}

func (tx *Transaction) TotalShares(ctx context.Context, poolAsset string) (decimal.Decimal, error) {
	return tx.t.totalShares[poolAsset], tx.check()
}

func (tx *Transaction) SetTotalShares(ctx context.Context, poolAsset string, shares decimal.Decimal) error {
	return tx.setAmount("set total shares", shares, func() {
		setEntry(tx, tx.t.totalShares, poolAsset, shares)
	})
}

func (tx *Transaction) UserShares(ctx context.Context, poolAsset, user string) (decimal.Decimal, error) {
	return tx.t.userShares[shareKey{poolAsset, user}], tx.check()
}

func (tx *Transaction) SetUserShares(ctx context.Context, poolAsset, user string, shares decimal.Decimal) error {
	return tx.setAmount("set user shares", shares, func() {
		setEntry(tx, tx.t.userShares, shareKey{poolAsset, user}, shares)
	})
}

func (tx *Transaction) Shareholders(ctx context.Context, poolAsset string) ([]interfaces.ShareBalance, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	var out []interfaces.ShareBalance
	for k, v := range tx.t.userShares {
		if k.asset == poolAsset {
			out = append(out, interfaces.ShareBalance{User: k.user, Shares: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}

func (tx *Transaction) PoolAssets(ctx context.Context) ([]string, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	out := make([]string, len(tx.t.poolAssets))
	copy(out, tx.t.poolAssets)
	return out, nil
}

func (tx *Transaction) AddPoolAsset(ctx context.Context, poolAsset string) error {
	if err := tx.check(); err != nil {
		return err
	}
	if _, ok := tx.t.poolAssetSet[poolAsset]; ok {
		return nil
	}
	setEntry(tx, tx.t.poolAssetSet, poolAsset, struct{}{})
	n := len(tx.t.poolAssets)
	tx.t.poolAssets = append(tx.t.poolAssets, poolAsset)
	tx.undo = append(tx.undo, func() { tx.t.poolAssets = tx.t.poolAssets[:n] })
	return nil
}

func (tx *Transaction) Claimable(ctx context.Context, poolAsset, claimAsset string) (decimal.Decimal, error) {
	return tx.t.claimable[claimKey{poolAsset, claimAsset}], tx.check()
}

func (tx *Transaction) SetClaimable(ctx context.Context, poolAsset, claimAsset string, amount decimal.Decimal) error {
	return tx.setAmount("set claimable", amount, func() {
		setEntry(tx, tx.t.claimable, claimKey{poolAsset, claimAsset}, amount)
	})
}

func (tx *Transaction) TotalClaimable(ctx context.Context, claimAsset string) (decimal.Decimal, error) {
	return tx.t.totalClaimable[claimAsset], tx.check()
}

func (tx *Transaction) SetTotalClaimable(ctx context.Context, claimAsset string, amount decimal.Decimal) error {
	return tx.setAmount("set total claimable", amount, func() {
		setEntry(tx, tx.t.totalClaimable, claimAsset, amount)
	})
}

func (tx *Transaction) ClaimAssets(ctx context.Context, poolAsset string) ([]string, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	slots := tx.t.claimSlots[poolAsset]
	out := make([]string, len(slots))
	copy(out, slots)
	return out, nil
}

func (tx *Transaction) ClaimAssetPosition(ctx context.Context, poolAsset, claimAsset string) (int, bool, error) {
	pos, ok := tx.t.claimPosition[claimKey{poolAsset, claimAsset}]
	return pos, ok, tx.check()
}

func (tx *Transaction) PushClaimAsset(ctx context.Context, poolAsset, claimAsset string) error {
	if err := tx.check(); err != nil {
		return err
	}
	slots := tx.t.claimSlots[poolAsset]
	setEntry(tx, tx.t.claimPosition, claimKey{poolAsset, claimAsset}, len(slots))
	setEntry(tx, tx.t.claimSlots, poolAsset, append(append([]string(nil), slots...), claimAsset))
	return nil
}

func (tx *Transaction) PopClaimAsset(ctx context.Context, poolAsset string) (string, error) {
	if err := tx.check(); err != nil {
		return "", err
	}
	slots := tx.t.claimSlots[poolAsset]
	if len(slots) == 0 {
		return "", &interfaces.DatabaseError{Op: "pop claim asset", Err: interfaces.ErrIndexOutOfRange}
	}
	last := slots[len(slots)-1]
	setEntry(tx, tx.t.claimSlots, poolAsset, append([]string(nil), slots[:len(slots)-1]...))
	deleteEntry(tx, tx.t.claimPosition, claimKey{poolAsset, last})
	return last, nil
}

func (tx *Transaction) PutClaimAssetAt(ctx context.Context, poolAsset string, position int, claimAsset string) error {
	if err := tx.check(); err != nil {
		return err
	}
	slots := tx.t.claimSlots[poolAsset]
	if position < 0 || position >= len(slots) {
		return &interfaces.DatabaseError{Op: "put claim asset", Err: interfaces.ErrIndexOutOfRange}
	}
	next := append([]string(nil), slots...)
	deleteEntry(tx, tx.t.claimPosition, claimKey{poolAsset, slots[position]})
	next[position] = claimAsset
	setEntry(tx, tx.t.claimSlots, poolAsset, next)
	setEntry(tx, tx.t.claimPosition, claimKey{poolAsset, claimAsset}, position)
	return nil
}

func (tx *Transaction) Balance(ctx context.Context, asset, holder string) (decimal.Decimal, error) {
	return tx.t.balances[balanceKey{asset, holder}], tx.check()
}

func (tx *Transaction) SetBalance(ctx context.Context, asset, holder string, amount decimal.Decimal) error {
	return tx.setAmount("set balance", amount, func() {
		setEntry(tx, tx.t.balances, balanceKey{asset, holder}, amount)
	})
}

func (tx *Transaction) Holdings(ctx context.Context, holder string) (map[string]decimal.Decimal, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal)
	for k, v := range tx.t.balances {
		if k.holder == holder && !v.IsZero() {
			out[k.asset] = v
		}
	}
	return out, nil
}

func (tx *Transaction) TotalSupply(ctx context.Context, asset string) (decimal.Decimal, error) {
	return tx.t.supply[asset], tx.check()
}

func (tx *Transaction) SetTotalSupply(ctx context.Context, asset string, amount decimal.Decimal) error {
	return tx.setAmount("set total supply", amount, func() {
		setEntry(tx, tx.t.supply, asset, amount)
	})
}

func (tx *Transaction) Setting(ctx context.Context, key string) (string, bool, error) {
	value, ok := tx.t.settings[key]
	return value, ok, tx.check()
}

func (tx *Transaction) SetSetting(ctx context.Context, key, value string) error {
	if err := tx.check(); err != nil {
		return err
	}
	setEntry(tx, tx.t.settings, key, value)
	return nil
}

func (tx *Transaction) AppendEvent(ctx context.Context, event interfaces.Event) error {
	if err := tx.check(); err != nil {
		return err
	}
	n := len(tx.t.events)
	tx.t.events = append(tx.t.events, event)
	tx.undo = append(tx.undo, func() { tx.t.events = tx.t.events[:n] })
	return nil
}

// Events returns up to limit events, newest first
func (tx *Transaction) Events(ctx context.Context, limit int) ([]interfaces.Event, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	n := len(tx.t.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]interfaces.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, tx.t.events[i])
	}
	return out, nil
}
