package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leafsii/stability-vault/internal/api"
	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/leafsii/stability-vault/internal/config"
	gdb "github.com/leafsii/stability-vault/internal/db"
	"github.com/leafsii/stability-vault/internal/jobs"
	"github.com/leafsii/stability-vault/internal/log"
	"github.com/leafsii/stability-vault/internal/metrics"
	"github.com/leafsii/stability-vault/internal/oracle"
	"github.com/leafsii/stability-vault/internal/prices"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/leafsii/stability-vault/internal/vault"
	"github.com/leafsii/stability-vault/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, log.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting stability vault API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"db", cfg.Database.Type,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("stability-vault")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Asset registry
	registry, err := loadAssets(cfg)
	if err != nil {
		logger.Fatalw("Failed to load assets", "error", err)
	}
	logger.Infow("Assets loaded", "count", len(registry.List()), "file", cfg.Vault.AssetsFile)

	// Initialize database
	database, err := gdb.NewDatabase(gdb.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatalw("Failed to create database", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gdb.ConnectAndMigrate(ctx, database); err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer database.Disconnect(context.Background())
	logger.Infow("Database initialized")

	// Setup Redis cache; falls back to in-memory when Redis is unreachable
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()
	logger.Infow("Cache ready", "inMemory", cache.IsInMemoryMode())

	// Price feed keeps the oracle cache warm
	symbols := prices.NewRegistryFromAssets(registry.List())
	pricePublisherConfig := jobs.DefaultPricePublisherConfig()
	pricePublisherConfig.ProviderType = cfg.Prices.Provider
	pricePublisherConfig.RetryInterval = cfg.Prices.RetryInterval
	pricePublisherConfig.PollInterval = cfg.Prices.PollInterval
	pricePublisherConfig.TTL = cfg.Oracle.CacheTTL
	pricePublisherConfig.MockVolatility = cfg.Prices.MockVolatility
	pricePublisher := jobs.NewPricePublisher(cache, symbols, logger, pricePublisherConfig, jobs.WithRecorder(metricsObj))

	adapter := oracle.NewAdapter(oracle.Config{
		GreenToken:   cfg.Vault.GreenToken,
		SavingsGreen: cfg.Vault.SavingsGreen,
		MaxAge:       cfg.Oracle.MaxAge,
		CacheTTL:     cfg.Oracle.CacheTTL,
	}, registry, symbols, pricePublisher, cache, logger)

	v, err := vault.New(vault.Config{
		GreenToken:         cfg.Vault.GreenToken,
		SavingsGreen:       cfg.Vault.SavingsGreen,
		VaultAddress:       cfg.Vault.VaultAddress,
		SavingsAddress:     cfg.Vault.SavingsAddress,
		Teller:             cfg.Vault.Teller,
		AuctionHouse:       cfg.Vault.AuctionHouse,
		Governance:         cfg.Vault.Governance,
		MaxRedemptions:     cfg.Vault.MaxRedemptions,
		MaxClaims:          cfg.Vault.MaxClaims,
		RedemptionsEnabled: cfg.Vault.RedemptionsEnabled,
	}, database, adapter, registry, logger, vault.WithPublisher(cache), vault.WithRecorder(metricsObj))
	if err != nil {
		logger.Fatalw("Failed to create vault", "error", err)
	}

	// Setup WebSocket hub and SSE handler
	channels := ws.ChannelSet(vault.EventKinds)
	wsHub := ws.NewHub(cache, channels, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(cache, channels, cfg.Security.CORSAllowedOrigins, logger)

	// Create context for background services
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go wsHub.Run(bgCtx)
	go func() {
		logger.Infow("Starting price publisher",
			"provider", cfg.Prices.Provider,
			"retryInterval", cfg.Prices.RetryInterval,
		)
		if err := pricePublisher.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Price publisher error", "error", err)
		}
	}()

	// Setup API handler and middleware
	handler := api.NewHandler(v, database, cache, wsHub, sseHandler, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, api.RouteConfig{
		CORSOrigins:  cfg.Security.CORSAllowedOrigins,
		RateLimitRPM: cfg.Security.RateLimitRPM,
		JWTSecret:    cfg.Security.JWTSecret,
	})
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)
	if cfg.Security.JWTSecret == "" {
		logger.Warnw("Bearer tokens disabled; callers are taken from the X-Caller-Address header")
	}

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// Setup HTTP server; no write timeout so streams stay open
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())
		bgCancel()

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}

func loadAssets(cfg *config.Config) (*assets.Registry, error) {
	if cfg.Vault.AssetsFile != "" {
		return assets.LoadFile(cfg.Vault.AssetsFile)
	}
	return assets.NewRegistry(assets.Defaults(cfg.Vault.GreenToken, cfg.Vault.SavingsGreen)...)
}
