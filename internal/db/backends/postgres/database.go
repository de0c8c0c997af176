package postgres

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrations holds the goose migration files
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations
const MigrationsDir = "migrations"

// ledgerLockKey serializes vault transactions across every API replica
const ledgerLockKey int64 = 0x5354414256 // "STABV"

// Database implements the Database interface on top of a pgx pool
type Database struct {
	dsn      string
	maxConns int32
	logger   *zap.SugaredLogger

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewDatabase creates a postgres database; call Connect before use
func NewDatabase(dsn string, maxConns int32, logger *zap.SugaredLogger) *Database {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Database{dsn: dsn, maxConns: maxConns, logger: logger}
}

// Connect establishes a connection to the database
func (db *Database) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(db.dsn)
	if err != nil {
		return &interfaces.DatabaseError{Op: "parse dsn", Err: err}
	}
	if db.maxConns > 0 {
		cfg.MaxConns = db.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return &interfaces.DatabaseError{Op: "connect", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &interfaces.DatabaseError{Op: "ping", Err: err}
	}

	db.mu.Lock()
	db.pool = pool
	db.mu.Unlock()

	db.logger.Infow("Connected to postgres", "maxConns", cfg.MaxConns)
	return nil
}

// Disconnect closes the database connection
func (db *Database) Disconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	db.logger.Infow("Disconnected from postgres")
	return nil
}

func (db *Database) getPool() *pgxpool.Pool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pool
}

// IsHealthy checks if the database connection is healthy
func (db *Database) IsHealthy(ctx context.Context) bool {
	pool := db.getPool()
	if pool == nil {
		return false
	}
	return pool.Ping(ctx) == nil
}

// Transaction runs fn inside a read-committed transaction that first takes the
// ledger advisory lock, so vault operations are totally ordered.
func (db *Database) Transaction(ctx context.Context, fn interfaces.TxFunc) (err error) {
	pool := db.getPool()
	if pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	pgxTx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return &interfaces.DatabaseError{Op: "begin", Err: err}
	}
	tx := newTransaction(pgxTx)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
		if !tx.IsCompleted() {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if _, err := pgxTx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return &interfaces.DatabaseError{Op: "lock ledger", Err: err}
	}

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	return tx.Commit(ctx)
}

// Migrate applies the embedded goose migrations
func (db *Database) Migrate(ctx context.Context) error {
	pool := db.getPool()
	if pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, MigrationsDir); err != nil {
		return &interfaces.DatabaseError{Op: "migrate", Err: err}
	}
	return nil
}
