package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"perpcore/core/types"
)

const (
	EventTypeDeposit           = "vault.deposit"
	EventTypeWithdrawRequested = "vault.withdraw_requested"
	EventTypeWithdrawCancelled = "vault.withdraw_cancelled"
	EventTypeRedeemed          = "vault.redeemed"
	EventTypeEpochAdvanced     = "vault.epoch_advanced"
	EventTypeLockedCreated     = "vault.locked_deposit_created"
	EventTypeLockedUnlocked    = "vault.locked_deposit_unlocked"
	EventTypeRewardDistributed = "vault.reward_distributed"
	EventTypeAssetsSent        = "vault.assets_sent"
	EventTypeAssetsReceived    = "vault.assets_received"
)

func stateAttrs(attrs map[string]string, state *VaultState) map[string]string {
	if state == nil {
		return attrs
	}
	attrs["totalShares"] = state.TotalShares.String()
	attrs["accPnlPerToken"] = state.AccPnlPerToken.String()
	attrs["accPnlPerTokenUsed"] = state.AccPnlPerTokenUsed.String()
	attrs["accRewardsPerToken"] = state.AccRewardsPerToken.String()
	attrs["sharePrice"] = state.ShareToAssetPrice.String()
	attrs["epoch"] = strconv.FormatUint(state.CurrentEpoch, 10)
	return attrs
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewDepositEvent records a share mint against the pool.
func NewDepositEvent(owner [20]byte, assets, shares *big.Int, state *VaultState) *types.Event {
	attrs := map[string]string{
		"owner":  hex.EncodeToString(owner[:]),
		"assets": amount(assets),
		"shares": amount(shares),
	}
	return &types.Event{Type: EventTypeDeposit, Attributes: stateAttrs(attrs, state)}
}

// NewWithdrawRequestedEvent records a queued redemption and its unlock epoch.
func NewWithdrawRequestedEvent(owner [20]byte, shares *big.Int, unlockEpoch uint64, state *VaultState) *types.Event {
	attrs := map[string]string{
		"owner":       hex.EncodeToString(owner[:]),
		"shares":      amount(shares),
		"unlockEpoch": strconv.FormatUint(unlockEpoch, 10),
	}
	return &types.Event{Type: EventTypeWithdrawRequested, Attributes: stateAttrs(attrs, state)}
}

// NewWithdrawCancelledEvent records a reversed request.
func NewWithdrawCancelledEvent(owner [20]byte, shares *big.Int, unlockEpoch uint64) *types.Event {
	return &types.Event{Type: EventTypeWithdrawCancelled, Attributes: map[string]string{
		"owner":       hex.EncodeToString(owner[:]),
		"shares":      amount(shares),
		"unlockEpoch": strconv.FormatUint(unlockEpoch, 10),
	}}
}

// NewRedeemedEvent records a consumed request and the assets released.
func NewRedeemedEvent(owner [20]byte, shares, assets *big.Int, state *VaultState) *types.Event {
	attrs := map[string]string{
		"owner":  hex.EncodeToString(owner[:]),
		"shares": amount(shares),
		"assets": amount(assets),
	}
	return &types.Event{Type: EventTypeRedeemed, Attributes: stateAttrs(attrs, state)}
}

// NewEpochAdvancedEvent records the committed open-PnL delta and the
// before/after accumulator snapshots of an epoch boundary.
func NewEpochAdvancedEvent(before, after *VaultState, appliedDelta *big.Int) *types.Event {
	attrs := map[string]string{
		"appliedDelta": amount(appliedDelta),
	}
	if before != nil {
		attrs["accPnlPerTokenBefore"] = before.AccPnlPerToken.String()
		attrs["accPnlPerTokenUsedBefore"] = before.AccPnlPerTokenUsed.String()
	}
	return &types.Event{Type: EventTypeEpochAdvanced, Attributes: stateAttrs(attrs, after)}
}

// NewLockedDepositCreatedEvent records a discounted locked deposit.
func NewLockedDepositCreatedEvent(deposit *LockedDeposit, state *VaultState) *types.Event {
	attrs := map[string]string{
		"id":           strconv.FormatUint(deposit.ID, 10),
		"owner":        hex.EncodeToString(deposit.Owner[:]),
		"shares":       amount(deposit.Shares),
		"assets":       amount(deposit.AssetsDeposited),
		"discount":     amount(deposit.AssetsDiscount),
		"lockDuration": strconv.FormatInt(deposit.LockDuration, 10),
	}
	return &types.Event{Type: EventTypeLockedCreated, Attributes: stateAttrs(attrs, state)}
}

// NewLockedDepositUnlockedEvent records the amortized discount and released
// shares.
func NewLockedDepositUnlockedEvent(deposit *LockedDeposit, state *VaultState) *types.Event {
	attrs := map[string]string{
		"id":       strconv.FormatUint(deposit.ID, 10),
		"owner":    hex.EncodeToString(deposit.Owner[:]),
		"shares":   amount(deposit.Shares),
		"discount": amount(deposit.AssetsDiscount),
	}
	return &types.Event{Type: EventTypeLockedUnlocked, Attributes: stateAttrs(attrs, state)}
}

// NewRewardDistributedEvent records a rewards inflow.
func NewRewardDistributedEvent(from [20]byte, assets *big.Int, before, after *VaultState) *types.Event {
	attrs := map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"assets": amount(assets),
	}
	if before != nil {
		attrs["accRewardsPerTokenBefore"] = before.AccRewardsPerToken.String()
	}
	return &types.Event{Type: EventTypeRewardDistributed, Attributes: stateAttrs(attrs, after)}
}

// NewAssetsSentEvent records a profit payout from the pool.
func NewAssetsSentEvent(to [20]byte, assets *big.Int, before, after *VaultState) *types.Event {
	attrs := map[string]string{
		"to":     hex.EncodeToString(to[:]),
		"assets": amount(assets),
	}
	if before != nil {
		attrs["accPnlPerTokenBefore"] = before.AccPnlPerToken.String()
		attrs["dailyAccPnlDeltaBefore"] = before.DailyAccPnlDelta.String()
	}
	attrs["dailyAccPnlDelta"] = after.DailyAccPnlDelta.String()
	return &types.Event{Type: EventTypeAssetsSent, Attributes: stateAttrs(attrs, after)}
}

// NewAssetsReceivedEvent records a loss inflow into the pool.
func NewAssetsReceivedEvent(from [20]byte, assets *big.Int, before, after *VaultState) *types.Event {
	attrs := map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"assets": amount(assets),
	}
	if before != nil {
		attrs["accPnlPerTokenBefore"] = before.AccPnlPerToken.String()
	}
	return &types.Event{Type: EventTypeAssetsReceived, Attributes: stateAttrs(attrs, after)}
}
