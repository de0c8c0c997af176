package interfaces

import "context"

// TxFunc is the body of a transaction. Returning an error rolls every write back.
type TxFunc func(ctx context.Context, tx Transaction) error

// Database represents the main database interface
type Database interface {
	// Connect establishes a connection to the database
	Connect(ctx context.Context) error

	// Disconnect closes the database connection
	Disconnect(ctx context.Context) error

	// IsHealthy checks if the database connection is healthy
	IsHealthy(ctx context.Context) bool

	// Transaction executes fn atomically. Transactions are totally ordered:
	// no two observe each other's partial writes.
	Transaction(ctx context.Context, fn TxFunc) error

	// Migrate creates tables and applies schema changes
	Migrate(ctx context.Context) error
}
