package vault

import (
	"math/big"

	"perpcore/fixedmath"
)

// VaultState is the global accounting record backing the pooled-liquidity
// vault. Per-share accumulators are signed values against fixedmath.One;
// share and asset amounts are integers in the settlement asset's smallest
// unit.
type VaultState struct {
	// TotalShares is the outstanding share supply, including shares held by
	// locked deposits.
	TotalShares *big.Int
	// AccRewardsPerToken accrues distributed rewards per share. It never
	// decreases.
	AccRewardsPerToken *big.Int
	// AccPnlPerToken is the running signed trader-profit accumulator per
	// share. Positive values reduce the vault's backing.
	AccPnlPerToken *big.Int
	// AccPnlPerTokenUsed is the snapshot committed once per epoch; it is
	// what backs the share price between epochs.
	AccPnlPerTokenUsed *big.Int
	// DailyAccPnlDelta tracks per-share PnL movement inside the rolling
	// 24h window guarded by the daily circuit breaker.
	DailyAccPnlDelta *big.Int
	// DailyWindowStart is the unix time the current 24h PnL window opened.
	DailyWindowStart int64
	// CurrentEpoch and EpochStart track the external-aggregator-driven
	// accounting period.
	CurrentEpoch uint64
	EpochStart   int64
	// MaxSupply is the configured base share-supply cap; CurrentMaxSupply
	// grows from it by at most the configured percent per elapsed day.
	MaxSupply        *big.Int
	CurrentMaxSupply *big.Int
	// SupplyWindowStart is the unix time the supply-growth window opened.
	SupplyWindowStart int64
	// EpochAdvanceRequested gates withdraw requests and redemptions while
	// the aggregator's epoch update is in flight.
	EpochAdvanceRequested bool
	// ShareToAssetPrice is the derived price persisted for observers; it is
	// recomputed after every committing operation.
	ShareToAssetPrice *big.Int
}

// Clone returns a deep copy to protect internal references.
func (s *VaultState) Clone() *VaultState {
	if s == nil {
		return nil
	}
	return &VaultState{
		TotalShares:           fixedmath.Copy(s.TotalShares),
		AccRewardsPerToken:    fixedmath.Copy(s.AccRewardsPerToken),
		AccPnlPerToken:        fixedmath.Copy(s.AccPnlPerToken),
		AccPnlPerTokenUsed:    fixedmath.Copy(s.AccPnlPerTokenUsed),
		DailyAccPnlDelta:      fixedmath.Copy(s.DailyAccPnlDelta),
		DailyWindowStart:      s.DailyWindowStart,
		CurrentEpoch:          s.CurrentEpoch,
		EpochStart:            s.EpochStart,
		MaxSupply:             fixedmath.Copy(s.MaxSupply),
		CurrentMaxSupply:      fixedmath.Copy(s.CurrentMaxSupply),
		SupplyWindowStart:     s.SupplyWindowStart,
		EpochAdvanceRequested: s.EpochAdvanceRequested,
		ShareToAssetPrice:     fixedmath.Copy(s.ShareToAssetPrice),
	}
}

// MaxAccPnlPerToken is the solvency bound: one unit plus accrued rewards.
// AccPnlPerToken may never exceed it after a committing operation.
func (s *VaultState) MaxAccPnlPerToken() *big.Int {
	max := new(big.Int).Set(fixedmath.One)
	if s.AccRewardsPerToken != nil {
		max.Add(max, s.AccRewardsPerToken)
	}
	return max
}

// SharePrice derives the asset value of one share from the committed PnL
// snapshot: maxAccPnlPerToken - max(accPnlPerTokenUsed, 0). The price
// deliberately ignores in-flight (uncommitted) PnL.
func (s *VaultState) SharePrice() *big.Int {
	price := s.MaxAccPnlPerToken()
	if s.AccPnlPerTokenUsed != nil && s.AccPnlPerTokenUsed.Sign() > 0 {
		price.Sub(price, s.AccPnlPerTokenUsed)
	}
	return price
}

// CollateralizationP expresses the vault's committed PnL headroom as a
// percent against fixedmath.One: 100 * (max - used) / max. A fully backed
// vault with zero committed PnL sits at exactly 100%.
func (s *VaultState) CollateralizationP() *big.Int {
	max := s.MaxAccPnlPerToken()
	headroom := new(big.Int).Set(max)
	if s.AccPnlPerTokenUsed != nil {
		headroom.Sub(headroom, s.AccPnlPerTokenUsed)
	}
	return fixedmath.MulDiv(headroom, fixedmath.Hundred, max)
}

// LockedDeposit is a share position minted at a discount and locked for a
// fixed duration. It exists from creation until unlock, which burns its
// receipt, amortizes the discount and releases the shares.
type LockedDeposit struct {
	ID              uint64
	Owner           [20]byte
	Shares          *big.Int
	AssetsDeposited *big.Int
	AssetsDiscount  *big.Int
	LockStart       int64
	LockDuration    int64
}

// Clone returns a deep copy to protect internal references.
func (d *LockedDeposit) Clone() *LockedDeposit {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Shares = fixedmath.Copy(d.Shares)
	clone.AssetsDeposited = fixedmath.Copy(d.AssetsDeposited)
	clone.AssetsDiscount = fixedmath.Copy(d.AssetsDiscount)
	return &clone
}

// UnlocksAt returns the unix time the deposit becomes redeemable.
func (d *LockedDeposit) UnlocksAt() int64 {
	return d.LockStart + d.LockDuration
}
