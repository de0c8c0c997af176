// Package oracle values token amounts in an 18-decimal USD base. GREEN and its
// savings wrapper are pinned at 1.00 and never reach the price source.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// USDDecimals is the precision of every USD value the adapter returns
const USDDecimals = 18

// ErrUnknownAsset is returned for assets missing from the registry
var ErrUnknownAsset = errors.New("unknown asset")

// PriceSource is the external price capability
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (prices.Tick, error)
}

// PriceCache stores the last tick per symbol
type PriceCache interface {
	GetOraclePrice(ctx context.Context, symbol string, dest interface{}) error
	SetOraclePrice(ctx context.Context, symbol string, value interface{}, ttl time.Duration) error
}

type Config struct {
	GreenToken   string
	SavingsGreen string
	MaxAge       time.Duration
	CacheTTL     time.Duration
}

type Adapter struct {
	cfg     Config
	assets  *assets.Registry
	symbols *prices.Registry
	source  PriceSource
	cache   PriceCache
	logger  *zap.SugaredLogger
	group   singleflight.Group
}

// NewAdapter wires the adapter; cache may be nil
func NewAdapter(cfg Config, registry *assets.Registry, symbols *prices.Registry, source PriceSource, cache PriceCache, logger *zap.SugaredLogger) *Adapter {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cfg.MaxAge
	}
	return &Adapter{
		cfg:     cfg,
		assets:  registry,
		symbols: symbols,
		source:  source,
		cache:   cache,
		logger:  logger,
	}
}

// IsUnitOfAccount reports whether asset is GREEN or sGREEN
func (a *Adapter) IsUnitOfAccount(asset string) bool {
	return asset == a.cfg.GreenToken || asset == a.cfg.SavingsGreen
}

// Price returns the 18-decimal USD price of one whole token. A missing, zero
// or stale quote yields zero.
func (a *Adapter) Price(ctx context.Context, asset string) (decimal.Decimal, error) {
	if _, ok := a.assets.Get(asset); !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if a.IsUnitOfAccount(asset) {
		return calc.Pow10(USDDecimals), nil
	}

	symbol, err := a.symbols.GetProviderSymbol(asset)
	if err != nil {
		a.logger.Warnw("Asset has no price feed", "asset", asset)
		return decimal.Zero, nil
	}

	tick, ok := a.quote(ctx, symbol)
	if !ok {
		return decimal.Zero, nil
	}
	if err := calc.ValidateOracleAge(tick.Time(), a.cfg.MaxAge); err != nil {
		a.logger.Warnw("Rejecting stale price", "asset", asset, "symbol", symbol, "error", err)
		return decimal.Zero, nil
	}
	price := tick.Scaled()
	if err := calc.ValidatePrice(price); err != nil {
		a.logger.Warnw("Rejecting price", "asset", asset, "symbol", symbol, "error", err)
		return decimal.Zero, nil
	}
	return price, nil
}

// quote reads the cached tick, refreshing it from the source when absent or stale
func (a *Adapter) quote(ctx context.Context, symbol string) (prices.Tick, bool) {
	if a.cache != nil {
		var cached prices.Tick
		if err := a.cache.GetOraclePrice(ctx, symbol, &cached); err == nil {
			if calc.ValidateOracleAge(cached.Time(), a.cfg.MaxAge) == nil {
				return cached, true
			}
		}
	}
	if a.source == nil {
		return prices.Tick{}, false
	}

	v, err, _ := a.group.Do(symbol, func() (interface{}, error) {
		tick, err := a.source.LatestPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			if err := a.cache.SetOraclePrice(ctx, symbol, tick, a.cfg.CacheTTL); err != nil {
				a.logger.Warnw("Failed to cache price", "symbol", symbol, "error", err)
			}
		}
		return tick, nil
	})
	if err != nil {
		a.logger.Warnw("Price source failed", "symbol", symbol, "error", err)
		return prices.Tick{}, false
	}
	return v.(prices.Tick), true
}

// USDValue values amount base units of asset
func (a *Adapter) USDValue(ctx context.Context, asset string, amount decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	return a.NewSession().USDValue(ctx, asset, amount, roundUp)
}

// AmountFromUSD converts a USD value into base units of asset
func (a *Adapter) AmountFromUSD(ctx context.Context, asset string, usd decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	return a.NewSession().AmountFromUSD(ctx, asset, usd, roundUp)
}

// NewSession starts a price memo for one vault operation
func (a *Adapter) NewSession() *Session {
	return &Session{adapter: a, prices: make(map[string]decimal.Decimal)}
}

// Session pins each asset to the first price it sees so an operation values
// both sides of a swap consistently.
type Session struct {
	adapter *Adapter
	prices  map[string]decimal.Decimal
}

func (s *Session) Price(ctx context.Context, asset string) (decimal.Decimal, error) {
	if p, ok := s.prices[asset]; ok {
		return p, nil
	}
	p, err := s.adapter.Price(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	s.prices[asset] = p
	return p, nil
}

func (s *Session) USDValue(ctx context.Context, asset string, amount decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	meta, ok := s.adapter.assets.Get(asset)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, nil
	}
	if s.adapter.IsUnitOfAccount(asset) {
		return calc.ScaleDecimals(amount, meta.Decimals, USDDecimals, roundUp), nil
	}
	price, err := s.Price(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return calc.USDValue(amount, price, meta.Decimals, roundUp), nil
}

func (s *Session) AmountFromUSD(ctx context.Context, asset string, usd decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	meta, ok := s.adapter.assets.Get(asset)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if usd.Sign() <= 0 {
		return decimal.Zero, nil
	}
	if s.adapter.IsUnitOfAccount(asset) {
		return calc.ScaleDecimals(usd, USDDecimals, meta.Decimals, roundUp), nil
	}
	price, err := s.Price(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return calc.AmountFromUSD(usd, price, meta.Decimals, roundUp), nil
}

var _ PriceCache = (*store.Cache)(nil)
