package prices

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the fixed-point precision the vault prices in.
const PriceDecimals = 18

// Tick represents a single price update
type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"` // USD per whole token
	TsMs   int64           `json:"ts"`    // milliseconds since epoch
}

// Time returns the tick timestamp
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.TsMs)
}

// Scaled returns the price as an integer with PriceDecimals decimals
func (t Tick) Scaled() decimal.Decimal {
	return t.Price.Shift(PriceDecimals).Truncate(0)
}

// Provider defines the interface for price data sources
type Provider interface {
	// LatestPrice returns the most recent price for a provider symbol
	LatestPrice(ctx context.Context, symbol string) (Tick, error)

	// SubscribeLive subscribes to real-time price updates
	// symbol: provider-specific symbol
	// out: channel to receive tick updates
	SubscribeLive(ctx context.Context, symbol string, out chan<- Tick) error

	// Name returns the provider identifier
	Name() string

	// Health returns current provider health status
	Health() ProviderHealth
}

// ProviderHealth represents the current status of a provider
type ProviderHealth struct {
	Healthy     bool      `json:"healthy"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Reconnects  int       `json:"reconnects"`
}
