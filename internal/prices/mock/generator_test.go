package mock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLatestPrice(t *testing.T) {
	g := NewGenerator(zap.NewNop().Sugar(), 0)
	g.SetPrice("ethusdt", decimal.NewFromInt(2500))

	tick, err := g.LatestPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", tick.Symbol)
	assert.True(t, decimal.NewFromInt(2500).Equal(tick.Price))

	_, err = g.LatestPrice(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}

func TestStepStaysInBand(t *testing.T) {
	g := NewGenerator(zap.NewNop().Sugar(), 0.2)
	g.SetPrice("SUIUSDT", decimal.NewFromInt(2))

	for i := 0; i < 200; i++ {
		tick := g.step("SUIUSDT")
		assert.True(t, tick.Price.GreaterThanOrEqual(decimal.NewFromInt(1)), "price %s below band", tick.Price)
		assert.True(t, tick.Price.LessThanOrEqual(decimal.NewFromInt(3)), "price %s above band", tick.Price)
	}
}

func TestZeroVolatilityIsFlat(t *testing.T) {
	g := NewGenerator(zap.NewNop().Sugar(), 0)
	g.SetPrice("USDCUSDT", decimal.NewFromInt(1))

	for i := 0; i < 5; i++ {
		assert.True(t, decimal.NewFromInt(1).Equal(g.step("USDCUSDT").Price))
	}
}
