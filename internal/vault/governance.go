package vault

import (
	"context"

	"github.com/leafsii/stability-vault/internal/assets"
	"github.com/leafsii/stability-vault/internal/calc"
	"github.com/shopspring/decimal"
)

// AssetUpdate toggles asset flags; nil fields are left alone
type AssetUpdate struct {
	StabEligible *bool `json:"stabEligible,omitempty"`
	CanRedeem    *bool `json:"canRedeem,omitempty"`
}

type governanceEvent struct {
	Action  string      `json:"action"`
	Caller  string      `json:"caller"`
	Asset   string      `json:"asset,omitempty"`
	Enabled *bool       `json:"enabled,omitempty"`
	Update  AssetUpdate `json:"update,omitempty"`
}

type mintEvent struct {
	Asset  string          `json:"asset"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (v *Vault) requireGovernance(caller string) error {
	if caller == "" || caller != v.cfg.Governance {
		return ErrNotAllowed
	}
	return nil
}

// SetPaused stops or resumes every mutating entrypoint except governance
func (v *Vault) SetPaused(ctx context.Context, caller string, paused bool) error {
	return v.run(ctx, "set_paused", func(ctx context.Context, op *operation) error {
		if err := v.requireGovernance(caller); err != nil {
			return err
		}
		if err := op.setFlag(ctx, settingPaused, paused); err != nil {
			return err
		}
		return op.emit(EventGovernance, governanceEvent{Action: "pause", Caller: caller, Enabled: &paused})
	})
}

// SetRedemptionsEnabled is the global redemption switch
func (v *Vault) SetRedemptionsEnabled(ctx context.Context, caller string, enabled bool) error {
	return v.run(ctx, "set_redemptions", func(ctx context.Context, op *operation) error {
		if err := v.requireGovernance(caller); err != nil {
			return err
		}
		if err := op.setFlag(ctx, settingRedemptions, enabled); err != nil {
			return err
		}
		return op.emit(EventGovernance, governanceEvent{Action: "redemptions", Caller: caller, Enabled: &enabled})
	})
}

// SetAssetConfig changes deposit eligibility or redeemability of one asset
func (v *Vault) SetAssetConfig(ctx context.Context, caller, asset string, update AssetUpdate) (assets.Asset, error) {
	var meta assets.Asset
	err := v.run(ctx, "set_asset", func(ctx context.Context, op *operation) error {
		if err := v.requireGovernance(caller); err != nil {
			return err
		}
		if _, ok := v.assets.Get(asset); asset == "" || !ok {
			return ErrInvalidUserOrAsset
		}
		if update.CanRedeem != nil && *update.CanRedeem && op.isGreen(asset) {
			return ErrCannotRedeemGreen
		}
		if update.StabEligible != nil {
			if err := op.setFlag(ctx, assetSettingKey(asset, assetStabEligible), *update.StabEligible); err != nil {
				return err
			}
		}
		if update.CanRedeem != nil {
			if err := op.setFlag(ctx, assetSettingKey(asset, assetCanRedeem), *update.CanRedeem); err != nil {
				return err
			}
		}
		current, _, err := op.asset(ctx, asset)
		if err != nil {
			return err
		}
		meta = current
		return op.emit(EventGovernance, governanceEvent{Action: "asset", Caller: caller, Asset: asset, Update: update})
	})
	if err != nil {
		return assets.Asset{}, err
	}
	return meta, nil
}

// Mint creates tokens out of thin air. It backs the development faucet.
func (v *Vault) Mint(ctx context.Context, caller, asset, to string, amount decimal.Decimal) error {
	return v.run(ctx, "mint", func(ctx context.Context, op *operation) error {
		if err := v.requireGovernance(caller); err != nil {
			return err
		}
		if _, ok := v.assets.Get(asset); asset == "" || to == "" || !ok {
			return ErrInvalidUserOrAsset
		}
		if calc.ValidateAmount(amount, "mint") != nil {
			return ErrInvalidAmount
		}
		if asset == v.cfg.SavingsGreen {
			// sGREEN is only minted against GREEN reserves
			if err := op.bank.mint(ctx, v.cfg.GreenToken, to, amount); err != nil {
				return err
			}
			if _, err := op.stake(ctx, to, to, amount); err != nil {
				return err
			}
		} else if err := op.bank.mint(ctx, asset, to, amount); err != nil {
			return err
		}
		return op.emit(EventMint, mintEvent{Asset: asset, To: to, Amount: amount})
	})
}
