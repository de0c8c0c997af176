package db

import (
	"context"
	"fmt"

	"github.com/leafsii/stability-vault/internal/db/backends/memory"
	"github.com/leafsii/stability-vault/internal/db/backends/postgres"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Type     string // "memory" or "postgres"
	DSN      string // Data Source Name / Connection String
	MaxConns int32  // Maximum pool connections for postgres
}

// NewDatabase creates a new database instance based on configuration
func NewDatabase(config Config, logger *zap.SugaredLogger) (interfaces.Database, error) {
	switch config.Type {
	case "", "memory":
		logger.Infow("Using in-memory database")
		return memory.NewDatabase(logger), nil
	case "postgres":
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		logger.Infow("Using postgres database")
		return postgres.NewDatabase(config.DSN, config.MaxConns, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// NewInMemoryDatabase creates a new in-memory database instance
func NewInMemoryDatabase() interfaces.Database {
	return memory.NewDatabase(nil)
}

// ConnectAndMigrate connects to the database and runs migrations
func ConnectAndMigrate(ctx context.Context, db interfaces.Database) error {
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if !db.IsHealthy(ctx) {
		return fmt.Errorf("database health check failed")
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
