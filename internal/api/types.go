package api

import (
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/leafsii/stability-vault/internal/vault"
)

// Amounts travel as decimal strings of integer base units.

type DepositRequest struct {
	User      string `json:"user"`
	PoolAsset string `json:"poolAsset"`
	Amount    string `json:"amount"`
}

type DepositResponse struct {
	Amount string `json:"amount"`
	Shares string `json:"shares"`
}

type WithdrawRequest struct {
	User      string `json:"user"`
	PoolAsset string `json:"poolAsset"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
}

type TransferRequest struct {
	PoolAsset string `json:"poolAsset"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
}

type ClaimItem struct {
	PoolAsset   string `json:"poolAsset"`
	ClaimAsset  string `json:"claimAsset"`
	MaxUSDValue string `json:"maxUsdValue"`
}

// ClaimRequest takes a single claim or a batch
type ClaimRequest struct {
	User      string      `json:"user"`
	Recipient string      `json:"recipient,omitempty"`
	Claims    []ClaimItem `json:"claims"`
}

type LiquidationSwapRequest struct {
	PoolAsset   string `json:"poolAsset"`
	PoolAmount  string `json:"poolAmount"`
	ClaimAsset  string `json:"claimAsset"`
	ClaimAmount string `json:"claimAmount"`
	Recipient   string `json:"recipient,omitempty"` // empty burns the pool asset
}

type LiquidationSwapResponse struct {
	vault.LiquidationResult
	ValueDelta string `json:"valueDelta"`
}

type GreenSwapRequest struct {
	PoolAsset   string `json:"poolAsset"`
	GreenAmount string `json:"greenAmount"`
	ClaimAsset  string `json:"claimAsset"`
	ClaimAmount string `json:"claimAmount"`
}

type GreenSwapResponse struct {
	GreenSwapped string `json:"greenSwapped"`
}

type RedeemRequest struct {
	ClaimAsset        string `json:"claimAsset"`
	GreenAmount       string `json:"greenAmount"`
	Recipient         string `json:"recipient,omitempty"`
	ShouldRefund      bool   `json:"shouldRefund"`
	ShouldStakeRefund bool   `json:"shouldStakeRefund"`
}

type RedemptionItem struct {
	ClaimAsset     string `json:"claimAsset"`
	MaxGreenAmount string `json:"maxGreenAmount"`
}

type BatchRedeemRequest struct {
	Redemptions       []RedemptionItem `json:"redemptions"`
	GreenAmount       string           `json:"greenAmount"`
	Recipient         string           `json:"recipient,omitempty"`
	ShouldRefund      bool             `json:"shouldRefund"`
	ShouldStakeRefund bool             `json:"shouldStakeRefund"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type RedemptionsRequest struct {
	Enabled bool `json:"enabled"`
}

type MintRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type StatusResponse struct {
	Paused             bool `json:"paused"`
	RedemptionsEnabled bool `json:"redemptionsEnabled"`
}

type PoolsResponse struct {
	Pools []string `json:"pools"`
}

type BalancesResponse struct {
	Holder   string            `json:"holder"`
	Balances map[string]string `json:"balances"`
}

type EventsResponse struct {
	Events []interfaces.Event `json:"events"`
}

type HealthDTO struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
