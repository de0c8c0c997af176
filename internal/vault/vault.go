// Package vault is the stability pool: a share ledger per pool asset, a
// registry of claimable collateral absorbed from liquidations, and the
// redemption engine that trades GREEN for that collateral.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/leafsii/stability-vault/internal/db/interfaces"
	"github.com/leafsii/stability-vault/internal/oracle"
	"github.com/leafsii/stability-vault/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event kinds written to the journal and published on sv:events:<kind>
const (
	EventDeposit     = "DEPOSIT"
	EventWithdraw    = "WITHDRAW"
	EventTransfer    = "TRANSFER"
	EventClaim       = "CLAIM"
	EventLiquidation = "LIQUIDATION"
	EventGreenSwap   = "GREEN_SWAP"
	EventRedemption  = "REDEMPTION"
	EventStake       = "STAKE"
	EventUnstake     = "UNSTAKE"
	EventGovernance  = "GOVERNANCE"
	EventMint        = "MINT"
)

// EventKinds lists every kind the vault emits
var EventKinds = []string{
	EventDeposit, EventWithdraw, EventTransfer, EventClaim, EventLiquidation,
	EventGreenSwap, EventRedemption, EventStake, EventUnstake, EventGovernance, EventMint,
}

type Config struct {
	GreenToken     string
	SavingsGreen   string
	VaultAddress   string
	SavingsAddress string
	Teller         string
	AuctionHouse   string
	Governance     string

	MaxRedemptions     int
	MaxClaims          int
	RedemptionsEnabled bool
}

// Publisher fans committed events out to subscribers
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type poolInvalidator interface {
	InvalidatePools(ctx context.Context, assets ...string) error
}

// Recorder receives operation metrics
type Recorder interface {
	RecordVaultOperation(ctx context.Context, operation, result string)
	RecordRedemption(ctx context.Context, claimAsset string, green float64)
	RecordLiquidation(ctx context.Context, poolAsset, claimAsset string, valueDelta float64)
}

type Vault struct {
	cfg       Config
	db        interfaces.Database
	oracle    *oracle.Adapter
	assets    *assets.Registry
	logger    *zap.SugaredLogger
	publisher Publisher
	recorder  Recorder
}

type Option func(*Vault)

// WithPublisher publishes events after commit. A publisher that can also
// invalidate pool summaries has them dropped for every touched pool.
func WithPublisher(p Publisher) Option {
	return func(v *Vault) { v.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(v *Vault) { v.recorder = r }
}

// New builds the vault over an already connected database
func New(cfg Config, db interfaces.Database, adapter *oracle.Adapter, registry *assets.Registry, logger *zap.SugaredLogger, opts ...Option) (*Vault, error) {
	if cfg.GreenToken == "" || cfg.SavingsGreen == "" {
		return nil, fmt.Errorf("green token and savings green token are required")
	}
	if cfg.VaultAddress == "" || cfg.SavingsAddress == "" {
		return nil, fmt.Errorf("vault and savings addresses are required")
	}
	for _, id := range []string{cfg.GreenToken, cfg.SavingsGreen} {
		if _, ok := registry.Get(id); !ok {
			return nil, fmt.Errorf("asset %s is not registered", id)
		}
	}
	if cfg.MaxRedemptions <= 0 {
		cfg.MaxRedemptions = 15
	}
	if cfg.MaxClaims <= 0 {
		cfg.MaxClaims = 15
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	v := &Vault{
		cfg:    cfg,
		db:     db,
		oracle: adapter,
		assets: registry,
		logger: logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Vault) Config() Config {
	return v.cfg
}

// operation is the state of one entrypoint inside its transaction
type operation struct {
	v      *Vault
	tx     interfaces.Transaction
	prices *oracle.Session
	ledger shareLedger
	claims claimRegistry
	bank   bank

	events      []interfaces.Event
	touched     map[string]struct{}
	afterCommit []func()
}

// run executes fn atomically. Events are journaled in the same transaction and
// published only once it commits.
func (v *Vault) run(ctx context.Context, name string, fn func(ctx context.Context, op *operation) error) error {
	var op *operation
	err := v.db.Transaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		op = &operation{
			v:       v,
			tx:      tx,
			prices:  v.oracle.NewSession(),
			ledger:  shareLedger{tx: tx},
			claims:  claimRegistry{tx: tx},
			bank:    bank{tx: tx},
			touched: make(map[string]struct{}),
		}
		if err := fn(ctx, op); err != nil {
			return err
		}
		for _, event := range op.events {
			if err := tx.AppendEvent(ctx, event); err != nil {
				return fmt.Errorf("failed to journal %s: %w", event.Kind, err)
			}
		}
		return nil
	})

	if v.recorder != nil {
		v.recorder.RecordVaultOperation(ctx, name, resultLabel(err))
	}
	if err != nil {
		if KindOf(err) == "" {
			v.logger.Errorw("Vault operation failed", "operation", name, "error", err)
		} else {
			v.logger.Debugw("Vault operation rejected", "operation", name, "error", err)
		}
		return err
	}

	for _, hook := range op.afterCommit {
		hook()
	}
	v.broadcast(ctx, op)
	return nil
}

func (v *Vault) broadcast(ctx context.Context, op *operation) {
	if v.publisher == nil {
		return
	}
	if inv, ok := v.publisher.(poolInvalidator); ok && len(op.touched) > 0 {
		pools := make([]string, 0, len(op.touched))
		for asset := range op.touched {
			pools = append(pools, asset)
		}
		if err := inv.InvalidatePools(ctx, pools...); err != nil {
			v.logger.Warnw("Failed to invalidate pool summaries", "error", err)
		}
	}
	for _, event := range op.events {
		if err := v.publisher.Publish(ctx, store.EventChannel(event.Kind), event); err != nil {
			v.logger.Warnw("Failed to publish event", "kind", event.Kind, "id", event.ID, "error", err)
		}
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

func (op *operation) emit(kind string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	op.events = append(op.events, interfaces.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (op *operation) touch(pools ...string) {
	for _, p := range pools {
		op.touched[p] = struct{}{}
	}
}

func (op *operation) requireActive(ctx context.Context) error {
	paused, err := op.paused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func (op *operation) isGreen(asset string) bool {
	return asset == op.v.cfg.GreenToken || asset == op.v.cfg.SavingsGreen
}

func (op *operation) usd(ctx context.Context, asset string, amount decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	return op.prices.USDValue(ctx, asset, amount, roundUp)
}

func (op *operation) fromUSD(ctx context.Context, asset string, value decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	return op.prices.AmountFromUSD(ctx, asset, value, roundUp)
}

// poolTokenBalance is the pool asset held by the vault that is not owed to
// any claim bucket
func (op *operation) poolTokenBalance(ctx context.Context, pool string) (decimal.Decimal, error) {
	held, err := op.bank.balance(ctx, pool, op.v.cfg.VaultAddress)
	if err != nil {
		return decimal.Zero, err
	}
	owed, err := op.claims.total(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	return calc.ClampZero(held.Sub(owed)), nil
}

// totalValue is the USD value of the pool's tokens plus every claim bucket it
// holds. Share conversions depend on it, so a nonzero holding without a usable
// price fails with ErrPriceUnavailable.
func (op *operation) totalValue(ctx context.Context, pool string) (decimal.Decimal, error) {
	return op.poolValue(ctx, pool, true)
}

// markValue values the pool like totalValue but counts unpriced holdings as 0
func (op *operation) markValue(ctx context.Context, pool string) (decimal.Decimal, error) {
	return op.poolValue(ctx, pool, false)
}

func (op *operation) poolValue(ctx context.Context, pool string, strict bool) (decimal.Decimal, error) {
	tokens, err := op.poolTokenBalance(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := op.holdingValue(ctx, pool, tokens, strict)
	if err != nil {
		return decimal.Zero, err
	}
	claimAssets, err := op.claims.assets(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	for _, claim := range claimAssets {
		amount, err := op.claims.balance(ctx, pool, claim)
		if err != nil {
			return decimal.Zero, err
		}
		value, err := op.holdingValue(ctx, claim, amount, strict)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(value)
	}
	return total, nil
}

func (op *operation) holdingValue(ctx context.Context, asset string, amount decimal.Decimal, strict bool) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, nil
	}
	if strict {
		price, err := op.prices.Price(ctx, asset)
		if err != nil {
			return decimal.Zero, err
		}
		if price.Sign() <= 0 {
			op.v.logger.Warnw("Pool holding has no usable price", "asset", asset)
			return decimal.Zero, ErrPriceUnavailable
		}
	}
	return op.usd(ctx, asset, amount, false)
}

// position returns the user's shares, the pool totals and the user's value
func (op *operation) position(ctx context.Context, pool, user string) (userShares, totalShares, totalValue, userValue decimal.Decimal, err error) {
	if userShares, err = op.ledger.shares(ctx, pool, user); err != nil {
		return
	}
	if totalShares, err = op.ledger.total(ctx, pool); err != nil {
		return
	}
	if totalValue, err = op.totalValue(ctx, pool); err != nil {
		return
	}
	userValue = calc.ValueFromShares(userShares, totalShares, totalValue, false)
	return
}

func minDecimal(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	m := first
	for _, d := range rest {
		if d.LessThan(m) {
			m = d
		}
	}
	return m
}

func toFloat(amount decimal.Decimal, decimals int32) float64 {
	return amount.Shift(-decimals).InexactFloat64()
}
