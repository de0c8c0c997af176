package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type downProvider struct{}

func (downProvider) LatestPrice(ctx context.Context, symbol string) (prices.Tick, error) {
	return prices.Tick{}, errors.New("exchange down")
}

func (downProvider) SubscribeLive(ctx context.Context, symbol string, out chan<- prices.Tick) error {
	return errors.New("exchange down")
}

func (downProvider) Name() string { return "down" }

func (downProvider) Health() prices.ProviderHealth {
	return prices.ProviderHealth{Healthy: false, LastError: "exchange down"}
}

type countingRecorder struct {
	mu      sync.Mutex
	sources map[string]int
}

func (r *countingRecorder) RecordPriceUpdate(ctx context.Context, symbol, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source]++
}

func (r *countingRecorder) count(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources[source]
}

func testConfig() PricePublisherConfig {
	cfg := DefaultPricePublisherConfig()
	cfg.ProviderType = "mock"
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.MockPrices = map[string]decimal.Decimal{"ETHUSDT": decimal.NewFromInt(2000)}
	return cfg
}

func testRegistry() *prices.Registry {
	registry := prices.NewRegistry()
	registry.AddMapping("WETH", "ETHUSDT")
	return registry
}

func TestPricePublisherCachesAndPublishes(t *testing.T) {
	logger := zap.NewNop().Sugar()
	cache := store.NewMemoryCache(logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := cache.SubscribeInMemory(ctx, store.ChannelPrices)
	require.NotNil(t, sub)
	defer sub.Close()

	recorder := &countingRecorder{sources: map[string]int{}}
	p := NewPricePublisher(cache, testRegistry(), logger, testConfig(), WithRecorder(recorder))
	go p.Start(ctx)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, store.ChannelPrices, msg.Channel)
		assert.Contains(t, msg.Payload, "ETHUSDT")
	case <-time.After(2 * time.Second):
		t.Fatal("no price published")
	}

	var tick prices.Tick
	require.Eventually(t, func() bool {
		return cache.GetOraclePrice(ctx, "ETHUSDT", &tick) == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, tick.Price.IsPositive())
	assert.Greater(t, recorder.count("mock"), 0)
	assert.False(t, p.UsingMock())

	p.Stop()
}

func TestPricePublisherFallsBackToMock(t *testing.T) {
	logger := zap.NewNop().Sugar()
	cache := store.NewMemoryCache(logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.ProviderType = "binance"
	p := NewPricePublisher(cache, testRegistry(), logger, cfg, WithProvider(downProvider{}))
	go p.Start(ctx)

	require.Eventually(t, p.UsingMock, 2*time.Second, 10*time.Millisecond)

	var tick prices.Tick
	require.Eventually(t, func() bool {
		return cache.GetOraclePrice(ctx, "ETHUSDT", &tick) == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "ETHUSDT", tick.Symbol)

	latest, err := p.LatestPrice(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, latest.Price.IsPositive())
}

func TestProcessTickDropsNonPositivePrices(t *testing.T) {
	logger := zap.NewNop().Sugar()
	cache := store.NewMemoryCache(logger, nil)
	p := NewPricePublisher(cache, testRegistry(), logger, testConfig())
	ctx := context.Background()

	p.processTick(ctx, prices.Tick{Symbol: "ETHUSDT", Price: decimal.Zero, TsMs: time.Now().UnixMilli()}, "mock")

	var tick prices.Tick
	assert.ErrorIs(t, cache.GetOraclePrice(ctx, "ETHUSDT", &tick), store.ErrCacheMiss)
}
