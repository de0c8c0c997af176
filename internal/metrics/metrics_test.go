package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupExposesVaultInstruments(t *testing.T) {
	m, handler, err := Setup("stability-vault-test")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/v1/pools", 200, 5*time.Millisecond)
	m.RecordVaultOperation(ctx, "deposit", "ok")
	m.RecordRedemption(ctx, "WETH", 50)
	m.RecordLiquidation(ctx, "USDC", "WETH", 12.5)
	m.RecordPriceUpdate(ctx, "ETHUSDT", "mock")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "sv_vault_operations_total")
	assert.Contains(t, string(body), "sv_green_redeemed_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordVaultOperation(context.Background(), "deposit", "ok")
		m.RecordCacheHit(context.Background(), "k")
		m.IncrementConnections(context.Background())
	})
}
