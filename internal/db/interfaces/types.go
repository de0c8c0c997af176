package interfaces

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ShareBalance is one user's share row for a pool asset
type ShareBalance struct {
	User   string          `json:"user"`
	Shares decimal.Decimal `json:"shares"`
}

// Event is a journal row written in the same transaction as the operation
type Event struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Common database errors
var (
	ErrNotFound             = errors.New("record not found")
	ErrTransactionCompleted = errors.New("transaction already completed")
	ErrDatabaseNotConnected = errors.New("database not connected")
	ErrNegativeValue        = errors.New("negative value")
	ErrIndexOutOfRange      = errors.New("claim index out of range")
)

// DatabaseError wraps database-specific errors
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
