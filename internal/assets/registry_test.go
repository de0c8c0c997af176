package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPreservesOrder(t *testing.T) {
	r, err := NewRegistry(Defaults("GREEN", "sGREEN")...)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 6)
	assert.Equal(t, "GREEN", list[0].ID)
	assert.Equal(t, "sGREEN", list[1].ID)
	assert.Equal(t, "SUI", list[5].ID)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	_, err := NewRegistry(Asset{ID: ""})
	assert.Error(t, err)

	_, err = NewRegistry(Asset{ID: "X", Decimals: 40})
	assert.Error(t, err)

	_, err = NewRegistry(Asset{ID: "X"}, Asset{ID: "X"})
	assert.Error(t, err)
}

func TestRegistryToggles(t *testing.T) {
	r, err := NewRegistry(Asset{ID: "WETH", Decimals: 18, PriceSymbol: "ethusdt"})
	require.NoError(t, err)

	a, ok := r.Get("WETH")
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", a.PriceSymbol)
	assert.Equal(t, "WETH", a.Symbol)
	assert.False(t, a.StabEligible)

	_, ok = r.Get("NOPE")
	assert.False(t, ok)
}

func TestPriceSymbols(t *testing.T) {
	r, err := NewRegistry(
		Asset{ID: "GREEN", Decimals: 18},
		Asset{ID: "WETH", Decimals: 18, PriceSymbol: "ETHUSDT"},
		Asset{ID: "stETH", Decimals: 18, PriceSymbol: "ETHUSDT"},
		Asset{ID: "WBTC", Decimals: 8, PriceSymbol: "BTCUSDT"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, r.PriceSymbols())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")
	content := `{
  "assets": [
    {"id": "GREEN", "decimals": 18, "stab_eligible": true},
    {"id": "WETH", "decimals": 18, "price_symbol": "ETHUSDT", "can_redeem": true}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)

	green, ok := r.Get("GREEN")
	require.True(t, ok)
	assert.True(t, green.StabEligible)
	assert.Equal(t, int32(18), green.Decimals)

	weth, ok := r.Get("WETH")
	require.True(t, ok)
	assert.True(t, weth.CanRedeem)
	assert.Equal(t, "ETHUSDT", weth.PriceSymbol)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
