package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Generator provides mock price data for testing and fallback scenarios
type Generator struct {
	logger     *zap.SugaredLogger
	mu         sync.RWMutex
	basePrices map[string]decimal.Decimal
	current    map[string]decimal.Decimal
	volatility float64
	health     prices.ProviderHealth
	rng        *rand.Rand
}

// NewGenerator creates a new mock data generator
func NewGenerator(logger *zap.SugaredLogger, volatility float64) *Generator {
	if volatility < 0 {
		volatility = 0.002 // 0.2% volatility
	}

	return &Generator{
		logger:     logger,
		basePrices: make(map[string]decimal.Decimal),
		current:    make(map[string]decimal.Decimal),
		volatility: volatility,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		health: prices.ProviderHealth{
			Healthy:     true,
			LastSuccess: time.Now(),
		},
	}
}

// Name returns the provider identifier
func (g *Generator) Name() string {
	return "mock"
}

// Health returns current provider health status
func (g *Generator) Health() prices.ProviderHealth {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.health
}

// SetPrice pins the price of a symbol; the live feed wanders around it
func (g *Generator) SetPrice(symbol string, price decimal.Decimal) {
	symbol = strings.ToUpper(symbol)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.basePrices[symbol] = price
	g.current[symbol] = price
}

// LatestPrice returns the current mock price for a symbol
func (g *Generator) LatestPrice(ctx context.Context, symbol string) (prices.Tick, error) {
	symbol = strings.ToUpper(symbol)
	g.mu.Lock()
	defer g.mu.Unlock()

	price, ok := g.current[symbol]
	if !ok {
		return prices.Tick{}, fmt.Errorf("no mock price for symbol %s", symbol)
	}
	g.health.LastSuccess = time.Now()
	return prices.Tick{Symbol: symbol, Price: price, TsMs: time.Now().UnixMilli()}, nil
}

// SubscribeLive generates mock real-time price updates
func (g *Generator) SubscribeLive(ctx context.Context, symbol string, out chan<- prices.Tick) error {
	symbol = strings.ToUpper(symbol)

	g.mu.RLock()
	base, ok := g.basePrices[symbol]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no mock price for symbol %s", symbol)
	}

	g.logger.Infow("Starting mock live price feed", "symbol", symbol, "basePrice", base)

	ticker := time.NewTicker(1500 * time.Millisecond) // ~1.5s intervals
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick := g.step(symbol)

			// Send tick (non-blocking)
			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			default:
				// Channel full, skip this tick
			}
		}
	}
}

// step moves the symbol's price by one random increment, kept within ±50% of base
func (g *Generator) step(symbol string) prices.Tick {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.basePrices[symbol]
	price := g.current[symbol]
	if g.volatility > 0 {
		change := decimal.NewFromFloat(g.generatePriceChange())
		price = price.Mul(decimal.NewFromInt(1).Add(change)).Round(8)

		minPrice := base.Div(decimal.NewFromInt(2))
		maxPrice := base.Add(minPrice)
		if price.LessThan(minPrice) {
			price = minPrice
		} else if price.GreaterThan(maxPrice) {
			price = maxPrice
		}
		g.current[symbol] = price
	}
	g.health.LastSuccess = time.Now()

	return prices.Tick{Symbol: symbol, Price: price, TsMs: time.Now().UnixMilli()}
}

// generatePriceChange creates a realistic price movement
func (g *Generator) generatePriceChange() float64 {
	baseChange := g.rng.NormFloat64() * g.volatility

	// Add some trending behavior occasionally
	if g.rng.Float64() < 0.1 {
		trend := (g.rng.Float64() - 0.5) * g.volatility * 2
		baseChange += trend
	}

	// Clamp extreme movements
	maxChange := g.volatility * 5
	if baseChange > maxChange {
		baseChange = maxChange
	} else if baseChange < -maxChange {
		baseChange = -maxChange
	}

	return baseChange
}
