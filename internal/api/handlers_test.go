package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/leafsii/stability-vault/internal/db/backends/memory"
	"github.com/leafsii/stability-vault/internal/oracle"
	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/leafsii/stability-vault/internal/vault"
	"github.com/leafsii/stability-vault/internal/ws"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	teller       = "teller"
	auctionHouse = "auction-house"
	governance   = "governance"
)

// MockPriceSource serves fixed prices
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) LatestPrice(ctx context.Context, symbol string) (prices.Tick, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(prices.Tick), args.Error(1)
}

type testServer struct {
	t      *testing.T
	router http.Handler
	vault  *vault.Vault
	db     *memory.Database
	cache  *store.Cache
}

func newTestServer(t *testing.T, cfg RouteConfig) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	registry, err := assets.NewRegistry(
		assets.Asset{ID: "GREEN", Symbol: "GREEN", Decimals: 18, StabEligible: true},
		assets.Asset{ID: "sGREEN", Symbol: "sGREEN", Decimals: 18, StabEligible: true},
		assets.Asset{ID: "USDC", Symbol: "USDC", Decimals: 6, PriceSymbol: "USDCUSD", StabEligible: true},
		assets.Asset{ID: "WETH", Symbol: "WETH", Decimals: 18, PriceSymbol: "ETHUSD", CanRedeem: true},
	)
	require.NoError(t, err)

	source := &MockPriceSource{}
	source.On("LatestPrice", mock.Anything, "USDCUSD").Return(prices.Tick{Symbol: "USDCUSD", Price: decimal.NewFromInt(1), TsMs: time.Now().UnixMilli()}, nil)
	source.On("LatestPrice", mock.Anything, "ETHUSD").Return(prices.Tick{Symbol: "ETHUSD", Price: decimal.NewFromInt(2000), TsMs: time.Now().UnixMilli()}, nil)

	cache := store.NewMemoryCache(logger, nil)
	t.Cleanup(func() { cache.Close() })

	adapter := oracle.NewAdapter(
		oracle.Config{GreenToken: "GREEN", SavingsGreen: "sGREEN", MaxAge: time.Minute},
		registry, prices.NewRegistryFromAssets(registry.List()), source, nil, logger,
	)

	database := memory.NewDatabase(logger)
	require.NoError(t, database.Connect(ctx))

	v, err := vault.New(vault.Config{
		GreenToken:         "GREEN",
		SavingsGreen:       "sGREEN",
		VaultAddress:       "stability-vault",
		SavingsAddress:     "savings-green",
		Teller:             teller,
		AuctionHouse:       auctionHouse,
		Governance:         governance,
		RedemptionsEnabled: true,
	}, database, adapter, registry, logger, vault.WithPublisher(cache))
	require.NoError(t, err)

	channels := ws.ChannelSet(vault.EventKinds)
	h := NewHandler(v, database, cache,
		ws.NewHub(cache, channels, nil, logger, nil),
		ws.NewSSEHandler(cache, channels, nil, logger),
		logger,
	)

	return &testServer{t: t, router: h.Routes(NewMiddleware(logger, nil), cfg), vault: v, db: database, cache: cache}
}

func (s *testServer) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) mustDo(method, path, caller string, body any) map[string]any {
	s.t.Helper()
	rec := s.do(method, path, caller, body)
	require.Less(s.t, rec.Code, 300, rec.Body.String())
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return out
}

func (s *testServer) mint(asset, to, amount string) {
	s.t.Helper()
	s.mustDo(http.MethodPost, "/v1/admin/mint", governance, MintRequest{Asset: asset, To: to, Amount: amount})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, RouteConfig{})

	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMutationsRequireCaller(t *testing.T) {
	s := newTestServer(t, RouteConfig{})

	rec := s.do(http.MethodPost, "/v1/vault/deposit", "", DepositRequest{User: "alice", PoolAsset: "USDC", Amount: "1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_CALLER", decodeError(t, rec).Code)
}

func TestVaultErrorsMapToStatus(t *testing.T) {
	s := newTestServer(t, RouteConfig{})
	s.mint("GREEN", "redeemer", "100000000000000000000")

	tests := []struct {
		name     string
		path     string
		caller   string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "unauthorized deposit",
			path:     "/v1/vault/deposit",
			caller:   "mallory",
			body:     DepositRequest{User: "alice", PoolAsset: "USDC", Amount: "1"},
			wantCode: http.StatusForbidden,
			wantErr:  "not allowed",
		},
		{
			name:     "ineligible pool asset",
			path:     "/v1/vault/deposit",
			caller:   teller,
			body:     DepositRequest{User: "alice", PoolAsset: "WETH", Amount: "1"},
			wantCode: http.StatusBadRequest,
			wantErr:  "stab asset not supported",
		},
		{
			name:     "liquidation from outsider",
			path:     "/v1/liquidations/swap",
			caller:   "mallory",
			body:     LiquidationSwapRequest{PoolAsset: "USDC", PoolAmount: "1", ClaimAsset: "WETH", ClaimAmount: "1", Recipient: "keeper"},
			wantCode: http.StatusForbidden,
			wantErr:  "only AuctionHouse allowed",
		},
		{
			name:     "redeem with nothing claimable",
			path:     "/v1/redemptions",
			caller:   "redeemer",
			body:     RedeemRequest{ClaimAsset: "WETH", GreenAmount: "100000000000000000000"},
			wantCode: http.StatusConflict,
			wantErr:  "no redemptions occurred",
		},
		{
			name:     "governance from outsider",
			path:     "/v1/admin/pause",
			caller:   "mallory",
			body:     PauseRequest{Paused: true},
			wantCode: http.StatusForbidden,
			wantErr:  "not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Message)
		})
	}
}

func TestDepositReportsSharesAfterGain(t *testing.T) {
	s := newTestServer(t, RouteConfig{})

	s.mint("USDC", "alice", "1000000000")
	s.mustDo(http.MethodPost, "/v1/vault/deposit", teller, DepositRequest{User: "alice", PoolAsset: "USDC", Amount: "1000000000"})

	// 500 USDC out for 0.5 WETH ($1000) lifts the pool to $1500
	s.mint("WETH", auctionHouse, "500000000000000000")
	s.mustDo(http.MethodPost, "/v1/liquidations/swap", auctionHouse, LiquidationSwapRequest{
		PoolAsset: "USDC", PoolAmount: "500000000", ClaimAsset: "WETH", ClaimAmount: "500000000000000000", Recipient: "keeper",
	})

	s.mint("USDC", "bob", "300000000")
	dep := s.mustDo(http.MethodPost, "/v1/vault/deposit", teller, DepositRequest{User: "bob", PoolAsset: "USDC", Amount: "300000000"})
	assert.Equal(t, "300000000", dep["amount"])
	assert.Equal(t, "200000000000000000000", dep["shares"])
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := newTestServer(t, RouteConfig{})
	require.NoError(t, s.db.Disconnect(context.Background()))

	rec := s.do(http.MethodGet, "/v1/status", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.Equal(t, "internal error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "database")
}

func TestAmountValidation(t *testing.T) {
	s := newTestServer(t, RouteConfig{})
	overflow := "115792089237316195423570985008687907853269984665640564039457584007913129639936" // 2^256

	for _, amount := range []string{"-5", "1.5", "abc", overflow} {
		t.Run(amount, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/v1/vault/deposit", teller, DepositRequest{User: "alice", PoolAsset: "USDC", Amount: amount})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_AMOUNT", decodeError(t, rec).Code)
		})
	}

	rec := s.do(http.MethodPost, "/v1/vault/deposit", teller, map[string]string{"bogus": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
}

func TestLiquidationAndRedemptionFlow(t *testing.T) {
	s := newTestServer(t, RouteConfig{})

	// 1000 USDC deposited for alice
	s.mint("USDC", "alice", "1000000000")
	dep := s.mustDo(http.MethodPost, "/v1/vault/deposit", teller, DepositRequest{User: "alice", PoolAsset: "USDC", Amount: "1000000000"})
	assert.Equal(t, "1000000000", dep["amount"])
	assert.Equal(t, "1000000000000000000000", dep["shares"])

	// the auction house swaps 0.25 WETH for 500 USDC
	s.mint("WETH", auctionHouse, "250000000000000000")
	liq := s.mustDo(http.MethodPost, "/v1/liquidations/swap", auctionHouse, LiquidationSwapRequest{
		PoolAsset: "USDC", PoolAmount: "500000000", ClaimAsset: "WETH", ClaimAmount: "250000000000000000", Recipient: "keeper",
	})
	assert.Equal(t, "500000000", liq["poolAmount"])
	assert.Equal(t, "0", liq["valueDelta"])

	claims := s.mustDo(http.MethodGet, "/v1/claims/WETH", "", nil)
	assert.Equal(t, "250000000000000000", claims["total"])

	// 100 GREEN redeems $100 of WETH
	s.mint("GREEN", "redeemer", "100000000000000000000")
	red := s.mustDo(http.MethodPost, "/v1/redemptions", "redeemer", RedeemRequest{ClaimAsset: "WETH", GreenAmount: "100000000000000000000"})
	assert.Equal(t, "50000000000000000", red["claimAmount"])
	assert.Equal(t, "100000000000000000000", red["greenSpent"])

	balances := s.mustDo(http.MethodGet, "/v1/balances/redeemer", "", nil)
	assert.Equal(t, "50000000000000000", balances["balances"].(map[string]any)["WETH"])

	events := s.mustDo(http.MethodGet, "/v1/events?limit=1", "", nil)
	list := events["events"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, vault.EventRedemption, list[0].(map[string]any)["kind"])

	require.NoError(t, s.vault.CheckInvariants(context.Background()))
}

func TestPoolSummaryCacheIsInvalidated(t *testing.T) {
	s := newTestServer(t, RouteConfig{})
	ctx := context.Background()

	s.mint("USDC", "alice", "2000000000")
	s.mustDo(http.MethodPost, "/v1/vault/deposit", teller, DepositRequest{User: "alice", PoolAsset: "USDC", Amount: "1000000000"})

	first := s.mustDo(http.MethodGet, "/v1/pools/USDC", "", nil)
	exists, err := s.cache.Exists(ctx, store.KeyPoolSummary+":USDC")
	require.NoError(t, err)
	assert.True(t, exists)

	s.mustDo(http.MethodPost, "/v1/vault/deposit", teller, DepositRequest{User: "alice", PoolAsset: "USDC", Amount: "1000000000"})
	exists, err = s.cache.Exists(ctx, store.KeyPoolSummary+":USDC")
	require.NoError(t, err)
	assert.False(t, exists)

	second := s.mustDo(http.MethodGet, "/v1/pools/USDC", "", nil)
	assert.NotEqual(t, first["totalShares"], second["totalShares"])
	assert.Equal(t, "2000000000", second["tokenBalance"])

	pools := s.mustDo(http.MethodGet, "/v1/pools", "", nil)
	assert.Equal(t, []any{"USDC"}, pools["pools"])
}

func TestJWTCaller(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, RouteConfig{JWTSecret: secret})

	sign := func(sub string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	post := func(auth string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/pause", &buf)
		req.Header.Set(CallerHeader, governance) // ignored when tokens are enabled
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("", PauseRequest{Paused: true}).Code)
	assert.Equal(t, http.StatusUnauthorized, post("not-a-token", PauseRequest{Paused: true}).Code)
	assert.Equal(t, http.StatusForbidden, post(sign("mallory"), PauseRequest{Paused: true}).Code)

	rec := post(sign(governance), PauseRequest{Paused: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status, err := s.vault.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Paused)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, RouteConfig{RateLimitRPM: 6})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(http.MethodGet, "/v1/status", "", nil).Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests, fmt.Sprint(codes))
}
