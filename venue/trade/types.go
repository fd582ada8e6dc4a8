package trade

import (
	"math/big"

	"perpcore/fixedmath"
	"perpcore/venue/funding"
)

// Position is an open leveraged position. Leverage is expressed against
// fixedmath.One so collateral top-ups and removals, which keep the notional
// size fixed, can carry fractional leverage. Snapshot holds the funding and
// rollover accumulators at open time; fees are charged lazily against the
// delta at settlement.
type Position struct {
	Trader     [20]byte
	PairIndex  uint32
	Slot       uint32
	Long       bool
	Collateral *big.Int
	Leverage   *big.Int
	OpenPrice  *big.Int
	Tp         *big.Int
	Sl         *big.Int
	Snapshot   funding.FeeSnapshot
	OpenBlock  uint64
}

// Notional returns the position's exposure: collateral * leverage.
func (p *Position) Notional() *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return fixedmath.MulOne(fixedmath.Copy(p.Collateral), p.Leverage)
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Collateral = fixedmath.Copy(p.Collateral)
	clone.Leverage = fixedmath.Copy(p.Leverage)
	clone.OpenPrice = fixedmath.Copy(p.OpenPrice)
	clone.Tp = fixedmath.Copy(p.Tp)
	clone.Sl = fixedmath.Copy(p.Sl)
	clone.Snapshot = *p.Snapshot.Clone()
	return &clone
}

// DynamicSpread tracks recent one-sided taker volume per pair. Both sides
// decay exponentially between observations; the prevailing imbalance widens
// the execution price for orders that deepen it.
type DynamicSpread struct {
	BuyVolume  *big.Int
	SellVolume *big.Int
	LastUpdate int64
}

// Clone returns a deep copy of the spread tracker.
func (d *DynamicSpread) Clone() *DynamicSpread {
	if d == nil {
		return nil
	}
	return &DynamicSpread{
		BuyVolume:  fixedmath.Copy(d.BuyVolume),
		SellVolume: fixedmath.Copy(d.SellVolume),
		LastUpdate: d.LastUpdate,
	}
}

// Quote is a price observation delivered by the oracle layer for a specific
// request. Price is the mid against fixedmath.One; MarketClosed suppresses
// execution without cancelling resting state.
type Quote struct {
	Price        *big.Int
	MarketClosed bool
}

// OpenOrder carries the parameters of a requested position open. Leverage
// is against fixedmath.One. DesiredPrice and MaxSlippageP bound the
// execution price after impact; Tp and Sl may be zero for none.
type OpenOrder struct {
	Trader       [20]byte
	PairIndex    uint32
	Long         bool
	Collateral   *big.Int
	Leverage     *big.Int
	DesiredPrice *big.Int
	MaxSlippageP *big.Int
	Tp           *big.Int
	Sl           *big.Int
}

// PendingOrder is a resting market order awaiting its price callback. It
// becomes eligible for caller-invoked timeout cancellation once enough
// blocks elapse without execution.
type PendingOrder struct {
	ID          uint64
	Trader      [20]byte
	PairIndex   uint32
	Slot        uint32
	Open        bool
	PlacedBlock uint64
}

// CloseSettlement reports the exact distribution of a closed position's
// collateral. CollateralClosed always equals AmountToTrader plus
// LiquidationFee plus VaultDelta.
type CloseSettlement struct {
	Value            *big.Int
	AmountToTrader   *big.Int
	LiquidationFee   *big.Int
	VaultDelta       *big.Int
	RolloverFee      *big.Int
	FundingFee       *big.Int
	CollateralClosed *big.Int
	ClosePrice       *big.Int
	Liquidated       bool
}

// PriceFeed resolves the quote recorded for an order's request id. The
// settlement core never pulls prices on its own schedule.
type PriceFeed interface {
	Quote(requestID string) (*Quote, error)
}

// AssetLedger moves collateral between traders and the venue's trading
// pool. Implementations must be atomic per call.
type AssetLedger interface {
	PullFromTrader(trader [20]byte, amount *big.Int) error
	PushToTrader(trader [20]byte, amount *big.Int) error
}

// VaultAdapter settles pool gains and losses against the counterparty
// vault. SendAssets draws vault assets into the pool; ReceiveAssets pays
// pool assets into the vault.
type VaultAdapter interface {
	SendAssets(to [20]byte, amount *big.Int) error
	ReceiveAssets(from [20]byte, amount *big.Int) error
}

// FeeEngine commits and reads the funding and rollover accumulators for a
// pair. *funding.Engine satisfies it.
type FeeEngine interface {
	StoreAccFundingFees(pairIndex uint32) error
	StoreAccRolloverFees(pairIndex uint32) error
	PendingFunding(pairIndex uint32) (*funding.PendingFunding, error)
	PendingRollover(pairIndex uint32, long bool) (*big.Int, error)
}
