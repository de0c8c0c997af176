package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/leafsii/stability-vault/internal/prices/binance"
	"github.com/leafsii/stability-vault/internal/prices/mock"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceCache is where ticks land for the oracle and live clients
type PriceCache interface {
	GetOraclePrice(ctx context.Context, symbol string, dest interface{}) error
	SetOraclePrice(ctx context.Context, symbol string, value interface{}, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message interface{}) error
}

// PriceRecorder counts ticks per symbol and source
type PriceRecorder interface {
	RecordPriceUpdate(ctx context.Context, symbol, source string)
}

// PricePublisher keeps the oracle's price cache warm from a live provider,
// falling back to the mock generator while the provider is unhealthy.
type PricePublisher struct {
	provider     prices.Provider
	mockProvider *mock.Generator
	registry     *prices.Registry
	cache        PriceCache
	recorder     PriceRecorder
	logger       *zap.SugaredLogger
	config       PricePublisherConfig

	mu        sync.RWMutex
	usingMock bool
	// subCtx is cancelled whenever the active provider changes
	subCtx    context.Context
	subCancel context.CancelFunc
	cancelCtx context.CancelFunc
}

type PricePublisherConfig struct {
	ProviderType   string                     // "binance" or "mock"
	RetryInterval  time.Duration              // How long to wait before retrying failed provider
	PollInterval   time.Duration              // REST poll cadence between live ticks
	TTL            time.Duration              // Cache TTL for latest prices
	MockVolatility float64                    // Volatility for mock data
	MockPrices     map[string]decimal.Decimal // Seed prices for the mock generator
}

type PublisherOption func(*PricePublisher)

// WithProvider replaces the primary provider
func WithProvider(provider prices.Provider) PublisherOption {
	return func(p *PricePublisher) { p.provider = provider }
}

func WithRecorder(recorder PriceRecorder) PublisherOption {
	return func(p *PricePublisher) { p.recorder = recorder }
}

func NewPricePublisher(cache PriceCache, registry *prices.Registry, logger *zap.SugaredLogger, config PricePublisherConfig, opts ...PublisherOption) *PricePublisher {
	mockProvider := mock.NewGenerator(logger, config.MockVolatility)
	for symbol, price := range config.MockPrices {
		mockProvider.SetPrice(symbol, price)
	}

	var provider prices.Provider
	switch config.ProviderType {
	case "mock":
		provider = mockProvider
	default:
		provider = binance.NewProvider(logger)
	}

	p := &PricePublisher{
		provider:     provider,
		mockProvider: mockProvider,
		registry:     registry,
		cache:        cache,
		logger:       logger,
		config:       config,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PricePublisher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancelCtx = cancel
	p.subCtx, p.subCancel = context.WithCancel(ctx)
	p.mu.Unlock()
	defer cancel()

	symbols := p.registry.GetProviderSymbols()
	p.logger.Infow("Starting price publisher",
		"provider", p.provider.Name(),
		"symbols", symbols,
		"mappings", p.registry.GetAllMappings(),
	)

	for _, symbol := range symbols {
		go p.subscribeLiveData(ctx, symbol)
	}
	p.poll(ctx, symbols)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()
	retryTicker := time.NewTicker(p.config.RetryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Price publisher stopping due to context cancellation")
			return ctx.Err()
		case <-pollTicker.C:
			p.poll(ctx, symbols)
		case <-retryTicker.C:
			p.checkProviderHealth(ctx, symbols)
		}
	}
}

func (p *PricePublisher) Stop() {
	p.mu.RLock()
	cancel := p.cancelCtx
	p.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// UsingMock reports whether the fallback generator is active
func (p *PricePublisher) UsingMock() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usingMock
}

// LatestPrice reads from the active provider so the oracle and the feed
// agree on the source.
func (p *PricePublisher) LatestPrice(ctx context.Context, symbol string) (prices.Tick, error) {
	return p.currentProvider().LatestPrice(ctx, symbol)
}

// subscribeLiveData streams ticks for one symbol from whichever provider is
// active, resubscribing after failures and provider switches
func (p *PricePublisher) subscribeLiveData(ctx context.Context, symbol string) {
	ticks := make(chan prices.Tick, 100)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticks:
				p.processTick(ctx, tick, p.currentProvider().Name())
			}
		}
	}()

	for {
		provider, subCtx := p.subscription()
		p.logger.Infow("Starting live subscription", "symbol", symbol, "provider", provider.Name())

		err := provider.SubscribeLive(subCtx, symbol, ticks)
		if ctx.Err() != nil {
			return
		}
		if err != nil && subCtx.Err() == nil {
			p.logger.Warnw("Live subscription failed", "symbol", symbol, "provider", provider.Name(), "error", err)
			if provider != prices.Provider(p.mockProvider) {
				p.switchToMock(ctx, symbol, "live subscription failed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.config.RetryInterval):
		}
	}
}

// poll fetches the latest price of every symbol so quiet markets stay fresh
func (p *PricePublisher) poll(ctx context.Context, symbols []string) {
	provider := p.currentProvider()
	for _, symbol := range symbols {
		tick, err := provider.LatestPrice(ctx, symbol)
		if err != nil {
			p.logger.Debugw("Price poll failed", "symbol", symbol, "provider", provider.Name(), "error", err)
			continue
		}
		p.processTick(ctx, tick, provider.Name())
	}
}

// processTick caches the tick for the oracle and fans it out to live clients
func (p *PricePublisher) processTick(ctx context.Context, tick prices.Tick, source string) {
	if tick.Price.Sign() <= 0 {
		p.logger.Warnw("Dropping non-positive tick", "symbol", tick.Symbol, "price", tick.Price)
		return
	}

	if err := p.cache.SetOraclePrice(ctx, tick.Symbol, tick, p.config.TTL); err != nil {
		p.logger.Warnw("Failed to cache tick", "symbol", tick.Symbol, "error", err)
	}

	if err := p.cache.Publish(ctx, store.ChannelPrices, tick); err != nil {
		p.logger.Warnw("Failed to publish tick", "symbol", tick.Symbol, "channel", store.ChannelPrices, "error", err)
	} else {
		p.logger.Debugw("Published tick", "symbol", tick.Symbol, "price", tick.Price)
	}

	if p.recorder != nil {
		p.recorder.RecordPriceUpdate(ctx, tick.Symbol, source)
	}
}

// currentProvider returns the currently active provider
func (p *PricePublisher) currentProvider() prices.Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.usingMock {
		return p.mockProvider
	}
	return p.provider
}

func (p *PricePublisher) subscription() (prices.Provider, context.Context) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.usingMock {
		return p.mockProvider, p.subCtx
	}
	return p.provider, p.subCtx
}

// resubscribe cancels running subscriptions; caller holds p.mu
func (p *PricePublisher) resubscribe(ctx context.Context) {
	if p.subCancel != nil {
		p.subCancel()
	}
	p.subCtx, p.subCancel = context.WithCancel(ctx)
}

// switchToMock switches to mock provider with logging
func (p *PricePublisher) switchToMock(ctx context.Context, symbol, reason string) {
	p.seedMock(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.usingMock {
		p.usingMock = true
		p.logger.Warnw("Switching to mock provider",
			"symbol", symbol,
			"reason", reason,
			"provider", p.provider.Name(),
		)
		p.resubscribe(ctx)
	}
}

// seedMock continues the mock feed from the last real prices
func (p *PricePublisher) seedMock(ctx context.Context) {
	for _, symbol := range p.registry.GetProviderSymbols() {
		if _, err := p.mockProvider.LatestPrice(ctx, symbol); err == nil {
			continue
		}
		var lastTick prices.Tick
		if err := p.cache.GetOraclePrice(ctx, symbol, &lastTick); err == nil && lastTick.Price.Sign() > 0 {
			p.mockProvider.SetPrice(symbol, lastTick.Price)
		}
	}
}

// checkProviderHealth checks and potentially switches providers
func (p *PricePublisher) checkProviderHealth(ctx context.Context, symbols []string) {
	if p.provider == prices.Provider(p.mockProvider) {
		return
	}

	if p.UsingMock() && len(symbols) > 0 {
		// the primary only updates its health when used
		if _, err := p.provider.LatestPrice(ctx, symbols[0]); err != nil {
			p.logger.Debugw("Primary provider still failing", "provider", p.provider.Name(), "error", err)
		}
	}
	providerHealth := p.provider.Health()

	if !providerHealth.Healthy && !p.UsingMock() {
		p.logger.Warnw("Primary provider unhealthy, switching to mock",
			"provider", p.provider.Name(),
			"lastError", providerHealth.LastError,
			"reconnects", providerHealth.Reconnects,
		)
		for _, symbol := range symbols {
			p.switchToMock(ctx, symbol, "provider health check failed")
		}
	} else if providerHealth.Healthy && p.UsingMock() {
		p.logger.Infow("Primary provider recovered, switching back",
			"provider", p.provider.Name(),
		)

		p.mu.Lock()
		p.usingMock = false
		p.resubscribe(ctx)
		p.mu.Unlock()
	}
}

// DefaultPricePublisherConfig returns a reasonable default configuration
func DefaultPricePublisherConfig() PricePublisherConfig {
	return PricePublisherConfig{
		ProviderType:   "binance",
		RetryInterval:  5 * time.Second,
		PollInterval:   10 * time.Second,
		TTL:            30 * time.Second,
		MockVolatility: 0.002, // 0.2% volatility for mock data
		MockPrices:     map[string]decimal.Decimal{},
	}
}
