package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	BinanceRestAPI = "https://api.binance.com"
	BinanceWS      = "wss://stream.binance.com:9443/ws"
)

// Provider implements the prices.Provider interface for Binance
type Provider struct {
	logger  *zap.SugaredLogger
	client  *http.Client
	restURL string
	wsURL   string

	mu     sync.RWMutex
	health prices.ProviderHealth
}

// Option customizes a Provider
type Option func(*Provider)

// WithEndpoints points the provider at alternate REST and WebSocket hosts
func WithEndpoints(restURL, wsURL string) Option {
	return func(p *Provider) {
		if restURL != "" {
			p.restURL = strings.TrimRight(restURL, "/")
		}
		if wsURL != "" {
			p.wsURL = strings.TrimRight(wsURL, "/")
		}
	}
}

// NewProvider creates a new Binance provider
func NewProvider(logger *zap.SugaredLogger, opts ...Option) *Provider {
	p := &Provider{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		restURL: BinanceRestAPI,
		wsURL:   BinanceWS,
		health: prices.ProviderHealth{
			Healthy:     true,
			LastSuccess: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "binance"
}

// Health returns current provider health status
func (p *Provider) Health() prices.ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

// updateHealth updates the provider health status
func (p *Provider) updateHealth(healthy bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.health.Healthy = healthy
	if healthy {
		p.health.LastSuccess = time.Now()
		p.health.LastError = ""
	} else if err != nil {
		p.health.LastError = err.Error()
	}
}

// tickerPrice is the /api/v3/ticker/price response body
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LatestPrice fetches the last traded price for a symbol
func (p *Provider) LatestPrice(ctx context.Context, symbol string) (prices.Tick, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	requestURL := fmt.Sprintf("%s/api/v3/ticker/price?%s", p.restURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		p.updateHealth(false, err)
		return prices.Tick{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.updateHealth(false, err)
		return prices.Tick{}, fmt.Errorf("failed to fetch from Binance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("Binance API error: %d", resp.StatusCode)
		p.updateHealth(false, err)
		return prices.Tick{}, err
	}

	var body tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.updateHealth(false, err)
		return prices.Tick{}, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		p.updateHealth(false, err)
		return prices.Tick{}, fmt.Errorf("invalid price %q: %w", body.Price, err)
	}

	p.updateHealth(true, nil)
	p.logger.Debugw("Fetched latest price from Binance", "symbol", symbol, "price", price)

	return prices.Tick{
		Symbol: strings.ToUpper(symbol),
		Price:  price,
		TsMs:   time.Now().UnixMilli(),
	}, nil
}

// SubscribeLive subscribes to real-time trade data via WebSocket
func (p *Provider) SubscribeLive(ctx context.Context, symbol string, out chan<- prices.Tick) error {
	// stream names are lowercase on Binance
	wsURL := fmt.Sprintf("%s/%s@trade", p.wsURL, strings.ToLower(symbol))

	p.logger.Infow("Connecting to Binance WebSocket", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		p.updateHealth(false, err)
		return fmt.Errorf("failed to connect to Binance WebSocket: %w", err)
	}
	defer conn.Close()

	p.updateHealth(true, nil)
	p.logger.Infow("Connected to Binance WebSocket", "symbol", symbol)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		_, message, err := conn.ReadMessage()
		if err != nil {
			p.updateHealth(false, err)
			p.mu.Lock()
			p.health.Reconnects++
			p.mu.Unlock()
			return fmt.Errorf("WebSocket read error: %w", err)
		}

		var trade BinanceTrade
		if err := json.Unmarshal(message, &trade); err != nil {
			p.logger.Warnw("Failed to parse trade message", "error", err, "message", string(message))
			continue
		}

		price, err := decimal.NewFromString(trade.Price)
		if err != nil {
			p.logger.Warnw("Failed to parse trade price", "error", err, "price", trade.Price)
			continue
		}

		tick := prices.Tick{
			Symbol: strings.ToUpper(symbol),
			Price:  price,
			TsMs:   trade.EventTime,
		}

		// Send tick (non-blocking)
		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		default:
			p.logger.Debugw("Tick channel full, skipping", "symbol", symbol)
		}

		p.updateHealth(true, nil)
	}
}

// BinanceTrade represents a trade message from Binance WebSocket
type BinanceTrade struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}
