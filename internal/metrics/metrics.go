package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter

	VaultOperations  metric.Int64Counter
	GreenRedeemed    metric.Float64Counter
	LiquidationValue metric.Float64Histogram
	PriceUpdates     metric.Int64Counter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.Handler()
	return m, handler, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequests, err = meter.Int64Counter(
		"sv_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"sv_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"sv_cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"sv_cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"sv_websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	m.VaultOperations, err = meter.Int64Counter(
		"sv_vault_operations_total",
		metric.WithDescription("Vault entrypoint calls by operation and result"),
	)
	if err != nil {
		return nil, err
	}

	m.GreenRedeemed, err = meter.Float64Counter(
		"sv_green_redeemed_total",
		metric.WithDescription("GREEN spent on redemptions, in whole tokens"),
	)
	if err != nil {
		return nil, err
	}

	m.LiquidationValue, err = meter.Float64Histogram(
		"sv_liquidation_value_delta_usd",
		metric.WithDescription("Pool value change per absorbed liquidation, in USD"),
	)
	if err != nil {
		return nil, err
	}

	m.PriceUpdates, err = meter.Int64Counter(
		"sv_price_updates_total",
		metric.WithDescription("Oracle price updates written to the cache"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1)
}

// RecordVaultOperation counts an entrypoint call; result is "ok" or the error kind
func (m *Metrics) RecordVaultOperation(ctx context.Context, operation, result string) {
	if m == nil {
		return
	}
	m.VaultOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

func (m *Metrics) RecordRedemption(ctx context.Context, claimAsset string, green float64) {
	if m == nil {
		return
	}
	m.GreenRedeemed.Add(ctx, green, metric.WithAttributes(attribute.String("claim_asset", claimAsset)))
}

func (m *Metrics) RecordLiquidation(ctx context.Context, poolAsset, claimAsset string, valueDelta float64) {
	if m == nil {
		return
	}
	m.LiquidationValue.Record(ctx, valueDelta, metric.WithAttributes(
		attribute.String("pool_asset", poolAsset),
		attribute.String("claim_asset", claimAsset),
	))
}

func (m *Metrics) RecordPriceUpdate(ctx context.Context, symbol, source string) {
	if m == nil {
		return
	}
	m.PriceUpdates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("source", source),
	))
}
