package prices

import (
	"fmt"
	"strings"

	"github.com/leafsii/stability-vault/internal/assets"
)

// Registry maps vault asset ids to provider symbols
type Registry struct {
	mappings map[string]string // asset id -> provider symbol
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		mappings: make(map[string]string),
	}
}

// NewRegistryFromAssets maps every priced asset to its price symbol
func NewRegistryFromAssets(list []assets.Asset) *Registry {
	r := NewRegistry()
	for _, a := range list {
		if a.PriceSymbol != "" {
			r.AddMapping(a.ID, a.PriceSymbol)
		}
	}
	return r
}

// AddMapping adds an asset to provider symbol mapping
func (r *Registry) AddMapping(assetID, providerSymbol string) {
	r.mappings[assetID] = strings.ToUpper(providerSymbol)
}

// GetProviderSymbol returns the provider symbol for an asset
func (r *Registry) GetProviderSymbol(assetID string) (string, error) {
	symbol, exists := r.mappings[assetID]
	if !exists {
		return "", fmt.Errorf("no price mapping found for asset: %s", assetID)
	}
	return symbol, nil
}

// GetAllMappings returns all configured mappings
func (r *Registry) GetAllMappings() map[string]string {
	result := make(map[string]string, len(r.mappings))
	for k, v := range r.mappings {
		result[k] = v
	}
	return result
}

// GetProviderSymbols returns the unique provider symbols we need to subscribe to
func (r *Registry) GetProviderSymbols() []string {
	seen := make(map[string]struct{})
	symbols := make([]string, 0, len(r.mappings))

	for _, sym := range r.mappings {
		if _, exists := seen[sym]; exists {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}

	return symbols
}
