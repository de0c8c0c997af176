package vault

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leafsii/stability-vault/internal/assets"
)

// Governance flags live in the settings table so every replica and every
// restart sees what governance last committed.
const (
	settingPaused      = "paused"
	settingRedemptions = "redemptions_enabled"

	assetStabEligible = "stab_eligible"
	assetCanRedeem    = "can_redeem"
)

func assetSettingKey(asset, flag string) string {
	return "asset:" + asset + ":" + flag
}

// Status is the vault-wide governance state
type Status struct {
	Paused             bool `json:"paused"`
	RedemptionsEnabled bool `json:"redemptionsEnabled"`
}

// Status reads the committed governance flags
func (v *Vault) Status(ctx context.Context) (Status, error) {
	var status Status
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		var err error
		if status.Paused, err = op.paused(ctx); err != nil {
			return err
		}
		status.RedemptionsEnabled, err = op.redemptionsEnabled(ctx)
		return err
	})
	return status, err
}

// Asset returns the registered asset with governance overrides applied
func (v *Vault) Asset(ctx context.Context, id string) (assets.Asset, error) {
	var meta assets.Asset
	err := v.view(ctx, func(ctx context.Context, op *operation) error {
		m, ok, err := op.asset(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidUserOrAsset
		}
		meta = m
		return nil
	})
	return meta, err
}

func (op *operation) flag(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, ok, err := op.tx.Setting(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return fallback, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return enabled, nil
}

func (op *operation) setFlag(ctx context.Context, key string, enabled bool) error {
	return op.tx.SetSetting(ctx, key, strconv.FormatBool(enabled))
}

func (op *operation) paused(ctx context.Context) (bool, error) {
	return op.flag(ctx, settingPaused, false)
}

func (op *operation) redemptionsEnabled(ctx context.Context) (bool, error) {
	return op.flag(ctx, settingRedemptions, op.v.cfg.RedemptionsEnabled)
}

// asset overlays the committed eligibility flags on the registry entry
func (op *operation) asset(ctx context.Context, id string) (assets.Asset, bool, error) {
	meta, ok := op.v.assets.Get(id)
	if id == "" || !ok {
		return assets.Asset{}, false, nil
	}
	var err error
	if meta.StabEligible, err = op.flag(ctx, assetSettingKey(id, assetStabEligible), meta.StabEligible); err != nil {
		return assets.Asset{}, false, err
	}
	if meta.CanRedeem, err = op.flag(ctx, assetSettingKey(id, assetCanRedeem), meta.CanRedeem); err != nil {
		return assets.Asset{}, false, err
	}
	return meta, true, nil
}
