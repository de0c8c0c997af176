package api

import (
	"net/http"

	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/leafsii/stability-vault/internal/vault"
	"github.com/shopspring/decimal"
)

// Ledger

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := h.amount(w, r, "amount", req.Amount)
	if !ok {
		return
	}

	res, err := h.vault.Deposit(r.Context(), caller(r), req.User, req.PoolAsset, amount)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DepositResponse{Amount: res.Amount.String(), Shares: res.Shares.String()})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := h.amount(w, r, "amount", req.Amount)
	if !ok {
		return
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = req.User
	}

	moved, err := h.vault.Withdraw(r.Context(), caller(r), req.User, req.PoolAsset, amount, recipient)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, moved)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := h.amount(w, r, "amount", req.Amount)
	if !ok {
		return
	}

	moved, err := h.vault.TransferWithinVault(r.Context(), caller(r), req.PoolAsset, req.From, req.To, amount)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, moved)
}

// Claims

// Claim runs a single claim for one entry and a batch claim otherwise
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Claims) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "claims must not be empty")
		return
	}

	claims := make([]vault.ClaimRequest, 0, len(req.Claims))
	for _, item := range req.Claims {
		maxUSD, ok := h.amount(w, r, "maxUsdValue", item.MaxUSDValue)
		if !ok {
			return
		}
		claims = append(claims, vault.ClaimRequest{PoolAsset: item.PoolAsset, ClaimAsset: item.ClaimAsset, MaxUSD: maxUSD})
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = req.User
	}

	if len(claims) == 1 {
		res, err := h.vault.ClaimFromStabilityPool(r.Context(), caller(r), req.User, claims[0], recipient)
		if err != nil {
			h.writeVaultError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := h.vault.ClaimManyFromStabilityPool(r.Context(), caller(r), req.User, claims, recipient)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Liquidations

func (h *Handler) SwapForLiquidatedCollateral(w http.ResponseWriter, r *http.Request) {
	var req LiquidationSwapRequest
	if !h.decode(w, r, &req) {
		return
	}
	poolAmount, ok := h.amount(w, r, "poolAmount", req.PoolAmount)
	if !ok {
		return
	}
	claimAmount, ok := h.amount(w, r, "claimAmount", req.ClaimAmount)
	if !ok {
		return
	}

	res, err := h.vault.SwapForLiquidatedCollateral(r.Context(), caller(r), vault.LiquidationSwap{
		PoolAsset:   req.PoolAsset,
		PoolAmount:  poolAmount,
		ClaimAsset:  req.ClaimAsset,
		ClaimAmount: claimAmount,
		Recipient:   req.Recipient,
	})
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LiquidationSwapResponse{LiquidationResult: res, ValueDelta: res.ValueDelta().String()})
}

func (h *Handler) SwapWithClaimableGreen(w http.ResponseWriter, r *http.Request) {
	var req GreenSwapRequest
	if !h.decode(w, r, &req) {
		return
	}
	greenAmount, ok := h.amount(w, r, "greenAmount", req.GreenAmount)
	if !ok {
		return
	}
	claimAmount, ok := h.amount(w, r, "claimAmount", req.ClaimAmount)
	if !ok {
		return
	}

	swapped, err := h.vault.SwapWithClaimableGreen(r.Context(), caller(r), vault.GreenSwap{
		PoolAsset:   req.PoolAsset,
		GreenAmount: greenAmount,
		ClaimAsset:  req.ClaimAsset,
		ClaimAmount: claimAmount,
	})
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, GreenSwapResponse{GreenSwapped: swapped.String()})
}

// Redemptions

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	green, ok := h.amount(w, r, "greenAmount", req.GreenAmount)
	if !ok {
		return
	}
	redeemer := caller(r)
	recipient := req.Recipient
	if recipient == "" {
		recipient = redeemer
	}

	res, err := h.vault.RedeemFromStabilityPool(r.Context(), redeemer, vault.RedeemRequest{
		ClaimAsset:   req.ClaimAsset,
		GreenAmount:  green,
		Recipient:    recipient,
		RefundPolicy: vault.RefundPolicy{Refund: req.ShouldRefund, Stake: req.ShouldStakeRefund},
	})
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) RedeemBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	budget, ok := h.amount(w, r, "greenAmount", req.GreenAmount)
	if !ok {
		return
	}
	entries := make([]vault.RedemptionEntry, 0, len(req.Redemptions))
	for _, item := range req.Redemptions {
		maxGreen, ok := h.amount(w, r, "maxGreenAmount", item.MaxGreenAmount)
		if !ok {
			return
		}
		entries = append(entries, vault.RedemptionEntry{ClaimAsset: item.ClaimAsset, MaxGreenAmount: maxGreen})
	}
	redeemer := caller(r)
	recipient := req.Recipient
	if recipient == "" {
		recipient = redeemer
	}

	res, err := h.vault.RedeemManyFromStabilityPool(r.Context(), redeemer, vault.BatchRedeemRequest{
		Entries:      entries,
		GreenBudget:  budget,
		Recipient:    recipient,
		RefundPolicy: vault.RefundPolicy{Refund: req.ShouldRefund, Stake: req.ShouldStakeRefund},
	})
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Governance

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r)
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.vault.Status(r.Context())
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Paused: status.Paused, RedemptionsEnabled: status.RedemptionsEnabled})
}

func (h *Handler) SetPaused(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.vault.SetPaused(r.Context(), caller(r), req.Paused); err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeStatus(w, r)
}

func (h *Handler) SetRedemptionsEnabled(w http.ResponseWriter, r *http.Request) {
	var req RedemptionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.vault.SetRedemptionsEnabled(r.Context(), caller(r), req.Enabled); err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeStatus(w, r)
}

func (h *Handler) SetAssetConfig(w http.ResponseWriter, r *http.Request) {
	var req vault.AssetUpdate
	if !h.decode(w, r, &req) {
		return
	}
	asset, err := h.vault.SetAssetConfig(r.Context(), caller(r), pathParam(r, "asset"), req)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := h.amount(w, r, "amount", req.Amount)
	if !ok {
		return
	}
	if err := h.vault.Mint(r.Context(), caller(r), req.Asset, req.To, amount); err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Read model

func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.vault.PoolAssets(r.Context())
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	if pools == nil {
		pools = []string{}
	}
	h.writeJSON(w, http.StatusOK, PoolsResponse{Pools: pools})
}

// GetPool serves the pool summary from cache, rebuilding it on a miss.
// Summaries are invalidated by the vault after every committed write.
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")

	var summary vault.PoolSummary
	if h.cache != nil {
		if err := h.cache.GetPoolSummary(r.Context(), asset, &summary); err == nil {
			h.writeJSON(w, http.StatusOK, summary)
			return
		}
	}

	summary, err := h.vault.PoolSummary(r.Context(), asset)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetPoolSummary(r.Context(), asset, summary); err != nil {
			h.logger.Warnw("Failed to cache pool summary", "asset", asset, "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetUserPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.vault.UserPosition(r.Context(), pathParam(r, "asset"), pathParam(r, "user"))
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pos)
}

func (h *Handler) GetClaimTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.vault.ClaimTotals(r.Context(), pathParam(r, "asset"))
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, totals)
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	holder := pathParam(r, "holder")
	balances, err := h.vault.Balances(r.Context(), holder)
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	out := make(map[string]string, len(balances))
	for asset, amount := range balances {
		out[asset] = amount.String()
	}
	h.writeJSON(w, http.StatusOK, BalancesResponse{Holder: holder, Balances: out})
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.vault.Events(r.Context(), eventLimit(r))
	if err != nil {
		h.writeVaultError(w, r, err)
		return
	}
	resp := EventsResponse{Events: events}
	if resp.Events == nil {
		resp.Events = []interfaces.Event{}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) amount(w http.ResponseWriter, r *http.Request, field, raw string) (decimal.Decimal, bool) {
	amount, err := parseAmount(field, raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return decimal.Zero, false
	}
	return amount, true
}
