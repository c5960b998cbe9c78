package giftcard

import (
	"strconv"

	"solbox/core/types"
)

const (
	EventTypeInitialized             = "giftcard.initialized"
	EventTypeConfigUpdated           = "giftcard.config_updated"
	EventTypeCommissionConfigUpdated = "giftcard.commission_config_updated"
	EventTypePauseToggled            = "giftcard.pause_toggled"
	EventTypeBlacklistUpdated        = "giftcard.blacklist_updated"
	EventTypePackageGranted          = "giftcard.package_granted"
	EventTypePackageUpgraded         = "giftcard.package_upgraded"
	EventTypePurchased               = "giftcard.purchased"
)

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// NewInitializedEvent returns the canonical payload emitted when the ledger is
// created.
func NewInitializedEvent(ledger *LedgerState) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"owner":         ledger.Owner.Hex(),
			"founderWallet": ledger.FounderWallet.Hex(),
			"referralLimit": uintToString(uint64(ledger.Config.ReferralLimit)),
		},
	}
}

// NewConfigUpdatedEvent returns the payload emitted after a full config
// replacement.
func NewConfigUpdatedEvent(cfg *ContractConfig) *types.Event {
	return &types.Event{
		Type: EventTypeConfigUpdated,
		Attributes: map[string]string{
			"referralLimit":        uintToString(uint64(cfg.ReferralLimit)),
			"commissionPercentage": uintToString(uint64(cfg.CommissionPercentage)),
			"bonusPercentage":      uintToString(uint64(cfg.BonusPercentage)),
		},
	}
}

// NewCommissionConfigUpdatedEvent returns the payload emitted when only the
// commission parameters change.
func NewCommissionConfigUpdatedEvent(pct uint32, levels []uint32) *types.Event {
	return &types.Event{
		Type: EventTypeCommissionConfigUpdated,
		Attributes: map[string]string{
			"commissionPercentage": uintToString(uint64(pct)),
			"commissionLevels":     uintToString(uint64(len(levels))),
		},
	}
}

// NewPauseToggledEvent returns the payload carrying the new pause state.
func NewPauseToggledEvent(paused bool) *types.Event {
	return &types.Event{
		Type: EventTypePauseToggled,
		Attributes: map[string]string{
			"paused": strconv.FormatBool(paused),
		},
	}
}

// NewBlacklistUpdatedEvent returns the payload for a blacklist change tagged
// with the action ("add" or "remove").
func NewBlacklistUpdatedEvent(user Principal, action string) *types.Event {
	return &types.Event{
		Type: EventTypeBlacklistUpdated,
		Attributes: map[string]string{
			"user":   user.Hex(),
			"action": action,
		},
	}
}

// NewPackageGrantedEvent returns the payload for an administrative grant.
func NewPackageGrantedEvent(user Principal, pkg uint64) *types.Event {
	return &types.Event{
		Type: EventTypePackageGranted,
		Attributes: map[string]string{
			"user":    user.Hex(),
			"package": uintToString(pkg),
		},
	}
}

// NewPackageUpgradedEvent returns the payload for a paid upgrade.
func NewPackageUpgradedEvent(user Principal, oldPkg, newPkg, difference uint64) *types.Event {
	return &types.Event{
		Type: EventTypePackageUpgraded,
		Attributes: map[string]string{
			"user":       user.Hex(),
			"oldPackage": uintToString(oldPkg),
			"newPackage": uintToString(newPkg),
			"difference": uintToString(difference),
		},
	}
}

// NewPurchasedEvent returns the payload for a completed gift card purchase.
func NewPurchasedEvent(user, referrer Principal, amount uint64, split Breakdown) *types.Event {
	return &types.Event{
		Type: EventTypePurchased,
		Attributes: map[string]string{
			"user":       user.Hex(),
			"referrer":   referrer.Hex(),
			"amount":     uintToString(amount),
			"commission": uintToString(split.Commission),
			"bonus":      uintToString(split.Bonus),
			"residual":   uintToString(split.Residual),
		},
	}
}
