// Package assets holds the configured list of tokens the vault knows about:
// their decimals, the symbol their price is quoted under and the default
// deposit and redemption eligibility. Governance overrides live in the vault
// settings table.
package assets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const maxDecimals = 36

// Asset describes a token the vault can custody
type Asset struct {
	ID           string `mapstructure:"id" json:"id"`
	Symbol       string `mapstructure:"symbol" json:"symbol"`
	Decimals     int32  `mapstructure:"decimals" json:"decimals"`
	PriceSymbol  string `mapstructure:"price_symbol" json:"priceSymbol,omitempty"`
	StabEligible bool   `mapstructure:"stab_eligible" json:"stabEligible"`
	CanRedeem    bool   `mapstructure:"can_redeem" json:"canRedeem"`
}

// Registry is a concurrency-safe asset table that preserves registration order
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Asset
	order []string
}

// NewRegistry builds a registry from the given assets
func NewRegistry(list ...Asset) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Asset)}
	for _, a := range list {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadFile reads an assets file (json, yaml or toml, picked by extension)
// holding an "assets" list.
func LoadFile(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read assets file %s: %w", path, err)
	}

	var list []Asset
	if err := v.UnmarshalKey("assets", &list); err != nil {
		return nil, fmt.Errorf("failed to decode assets file %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("assets file %s defines no assets", path)
	}
	return NewRegistry(list...)
}

// Defaults is the asset set used when no assets file is configured.
func Defaults(green, savingsGreen string) []Asset {
	return []Asset{
		{ID: green, Symbol: green, Decimals: 18, StabEligible: true},
		{ID: savingsGreen, Symbol: savingsGreen, Decimals: 18, StabEligible: true},
		{ID: "USDC", Symbol: "USDC", Decimals: 6, PriceSymbol: "USDCUSDT", StabEligible: true, CanRedeem: true},
		{ID: "WETH", Symbol: "WETH", Decimals: 18, PriceSymbol: "ETHUSDT", CanRedeem: true},
		{ID: "WBTC", Symbol: "WBTC", Decimals: 8, PriceSymbol: "BTCUSDT", CanRedeem: true},
		{ID: "SUI", Symbol: "SUI", Decimals: 9, PriceSymbol: "SUIUSDT", CanRedeem: true},
	}
}

// Add registers a new asset
func (r *Registry) Add(a Asset) error {
	a.ID = strings.TrimSpace(a.ID)
	if a.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	if a.Decimals < 0 || a.Decimals > maxDecimals {
		return fmt.Errorf("asset %s: decimals %d out of range", a.ID, a.Decimals)
	}
	if a.Symbol == "" {
		a.Symbol = a.ID
	}
	a.PriceSymbol = strings.ToUpper(a.PriceSymbol)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("asset %s already registered", a.ID)
	}
	r.byID[a.ID] = &a
	r.order = append(r.order, a.ID)
	return nil
}

// Get returns a copy of the asset with the given id
func (r *Registry) Get(id string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return Asset{}, false
	}
	return *a, true
}

// List returns every asset in registration order
func (r *Registry) List() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Asset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// PriceSymbols returns the distinct symbols that need a price feed
func (r *Registry) PriceSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, a := range r.byID {
		if a.PriceSymbol == "" {
			continue
		}
		if _, ok := seen[a.PriceSymbol]; ok {
			continue
		}
		seen[a.PriceSymbol] = struct{}{}
		out = append(out, a.PriceSymbol)
	}
	sort.Strings(out)
	return out
}
