package memory

import (
	"context"
	"sync"

	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type shareKey struct{ asset, user string }

type claimKey struct{ pool, claim string }

type balanceKey struct{ asset, holder string }

// tables is the whole ledger state
type tables struct {
	totalShares    map[string]decimal.Decimal
	userShares     map[shareKey]decimal.Decimal
	poolAssets     []string
	poolAssetSet   map[string]struct{}
	claimable      map[claimKey]decimal.Decimal
	totalClaimable map[string]decimal.Decimal
	claimSlots     map[string][]string
	claimPosition  map[claimKey]int
	balances       map[balanceKey]decimal.Decimal
	supply         map[string]decimal.Decimal
	settings       map[string]string
	events         []interfaces.Event
}

func newTables() *tables {
	return &tables{
		totalShares:    make(map[string]decimal.Decimal),
		userShares:     make(map[shareKey]decimal.Decimal),
		poolAssetSet:   make(map[string]struct{}),
		claimable:      make(map[claimKey]decimal.Decimal),
		totalClaimable: make(map[string]decimal.Decimal),
		claimSlots:     make(map[string][]string),
		claimPosition:  make(map[claimKey]int),
		balances:       make(map[balanceKey]decimal.Decimal),
		supply:         make(map[string]decimal.Decimal),
		settings:       make(map[string]string),
	}
}

// Database implements the Database interface for in-memory storage.
// A single writer lock is held for the life of each transaction.
type Database struct {
	writer sync.Mutex
	data   *tables

	stateMu   sync.RWMutex
	connected bool
	logger    *zap.SugaredLogger
}

// NewDatabase creates a new in-memory database
func NewDatabase(logger *zap.SugaredLogger) *Database {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Database{
		data:   newTables(),
		logger: logger,
	}
}

// Connect establishes a connection to the database
func (db *Database) Connect(ctx context.Context) error {
	db.stateMu.Lock()
	defer db.stateMu.Unlock()

	db.connected = true
	db.logger.Infow("Connected to in-memory database")
	return nil
}

// Disconnect closes the database connection and drops all data
func (db *Database) Disconnect(ctx context.Context) error {
	db.writer.Lock()
	defer db.writer.Unlock()
	db.stateMu.Lock()
	defer db.stateMu.Unlock()

	db.connected = false
	db.data = newTables()
	db.logger.Infow("Disconnected from in-memory database")
	return nil
}

// IsHealthy checks if the database connection is healthy
func (db *Database) IsHealthy(ctx context.Context) bool {
	db.stateMu.RLock()
	defer db.stateMu.RUnlock()

	return db.connected
}

// Transaction executes a function within a database transaction
func (db *Database) Transaction(ctx context.Context, fn interfaces.TxFunc) (err error) {
	if !db.IsHealthy(ctx) {
		return interfaces.ErrDatabaseNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db.writer.Lock()
	defer db.writer.Unlock()

	tx := NewTransaction(db)

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback(ctx)
			panic(r)
		}
		if !tx.IsCompleted() {
			tx.Rollback(ctx)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// Migrate is a no-op: the in-memory tables exist from construction
func (db *Database) Migrate(ctx context.Context) error {
	if !db.IsHealthy(ctx) {
		return interfaces.ErrDatabaseNotConnected
	}
	return nil
}
