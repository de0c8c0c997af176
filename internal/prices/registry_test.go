package prices

import (
	"sort"
	"testing"

	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFromAssets(t *testing.T) {
	r := NewRegistryFromAssets([]assets.Asset{
		{ID: "GREEN", Decimals: 18},
		{ID: "WETH", Decimals: 18, PriceSymbol: "ETHUSDT"},
		{ID: "stETH", Decimals: 18, PriceSymbol: "ethusdt"},
	})

	sym, err := r.GetProviderSymbol("stETH")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", sym)

	_, err = r.GetProviderSymbol("GREEN")
	assert.Error(t, err)

	symbols := r.GetProviderSymbols()
	sort.Strings(symbols)
	assert.Equal(t, []string{"ETHUSDT"}, symbols)
	assert.Len(t, r.GetAllMappings(), 2)
}

func TestTickScaled(t *testing.T) {
	tick := Tick{Price: decimal.RequireFromString("0.000000000000000000123")}
	assert.True(t, tick.Scaled().IsZero())

	tick = Tick{Price: decimal.RequireFromString("1.5")}
	assert.Equal(t, "1500000000000000000", tick.Scaled().String())
}
