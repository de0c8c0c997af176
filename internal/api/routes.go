package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteConfig carries the knobs main reads from config
type RouteConfig struct {
	CORSOrigins  []string
	RateLimitRPM int
	JWTSecret    string
	Timeout      time.Duration
}

func (h *Handler) Routes(m *Middleware, cfg RouteConfig) *chi.Mux {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(cfg.CORSOrigins))
	r.Use(m.RateLimit(cfg.RateLimitRPM))
	r.Use(m.Caller(cfg.JWTSecret))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		// Live updates hold the connection open, so they skip the timeout
		r.Get("/stream", h.HandleSSE)
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(m.Compress)
			r.Use(m.Timeout(cfg.Timeout))

			// Read model
			r.Get("/status", h.Status)
			r.Get("/pools", h.ListPools)
			r.Get("/pools/{asset}", h.GetPool)
			r.Get("/pools/{asset}/users/{user}", h.GetUserPosition)
			r.Get("/claims/{asset}", h.GetClaimTotals)
			r.Get("/balances/{holder}", h.GetBalances)
			r.Get("/events", h.GetEvents)

			// Mutations need a caller
			r.Group(func(r chi.Router) {
				r.Use(m.RequireCaller)

				r.Route("/vault", func(r chi.Router) {
					r.Post("/deposit", h.Deposit)
					r.Post("/withdraw", h.Withdraw)
					r.Post("/transfer", h.Transfer)
					r.Post("/claim", h.Claim)
				})

				r.Route("/liquidations", func(r chi.Router) {
					r.Post("/swap", h.SwapForLiquidatedCollateral)
					r.Post("/swap-green", h.SwapWithClaimableGreen)
				})

				r.Post("/redemptions", h.Redeem)
				r.Post("/redemptions/batch", h.RedeemBatch)

				r.Route("/admin", func(r chi.Router) {
					r.Post("/pause", h.SetPaused)
					r.Post("/redemptions", h.SetRedemptionsEnabled)
					r.Post("/assets/{asset}", h.SetAssetConfig)
					r.Post("/mint", h.Mint)
				})
			})
		})
	})

	return r
}
