package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/leafsii/stability-vault/internal/vault"
	"github.com/leafsii/stability-vault/internal/ws"
	"go.uber.org/zap"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
	maxBodyBytes      = 1 << 20
)

type Handler struct {
	vault      *vault.Vault
	db         interfaces.Database
	cache      *store.Cache
	wsHub      *ws.Hub
	sseHandler *ws.SSEHandler
	logger     *zap.SugaredLogger
}

func NewHandler(
	v *vault.Vault,
	db interfaces.Database,
	cache *store.Cache,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		vault:      v,
		db:         db,
		cache:      cache,
		wsHub:      wsHub,
		sseHandler: sseHandler,
		logger:     logger,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz checks the database and the cache
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var reasons []string
	if h.db != nil && !h.db.IsHealthy(r.Context()) {
		reasons = append(reasons, "DATABASE_UNAVAILABLE")
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			reasons = append(reasons, "CACHE_UNAVAILABLE")
		}
	}
	if status, err := h.vault.Status(r.Context()); err != nil {
		reasons = append(reasons, "VAULT_STATUS_UNAVAILABLE")
	} else if status.Paused {
		reasons = append(reasons, "VAULT_PAUSED")
	}

	status := http.StatusOK
	dto := HealthDTO{Status: "ok", Reasons: reasons}
	for _, reason := range reasons {
		if reason != "VAULT_PAUSED" {
			status = http.StatusServiceUnavailable
			dto.Status = "unavailable"
			break
		}
		dto.Status = "warn"
	}
	h.writeJSON(w, status, dto)
}

// WebSocket endpoint
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleWebSocket(w, r)
}

// SSE endpoint
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.HandleSSE(w, r)
}

// Utility methods

// decode reads a JSON body into dst, writing the error response itself
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return false
	}
	return true
}

func caller(r *http.Request) string {
	c, _ := CallerFrom(r.Context())
	return c
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.logger.Warnw("API error",
		"request_id", middleware.GetReqID(r.Context()),
		"code", code,
		"message", message,
		"status", status,
	)
	writeErrorBody(w, status, code, message)
}

// writeVaultError maps vault failures onto status codes
func (h *Handler) writeVaultError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.writeError(w, r, http.StatusServiceUnavailable, "REQUEST_CANCELED", err.Error())
		return
	}
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("Vault operation failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	h.writeError(w, r, status, code, errorMessage(err))
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func eventLimit(r *http.Request) int {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return limit
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
