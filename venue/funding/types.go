package funding

import (
	"math/big"

	"perpcore/fixedmath"
)

// PairFunding captures the lazily-committed funding accumulators for one
// trading pair. Accumulator values are signed and expressed per unit of open
// interest against fixedmath.One; they only move when StoreAccFundingFees is
// invoked, never on a background clock.
type PairFunding struct {
	// AccPerOiLong accrues the fee owed (positive) or received (negative)
	// per unit of long open interest.
	AccPerOiLong *big.Int
	// AccPerOiShort mirrors AccPerOiLong for the short side.
	AccPerOiShort *big.Int
	// LastRatePerBlock is the instantaneous per-block rate at the last
	// commit, bounded to the pair's MaxRatePerBlock.
	LastRatePerBlock *big.Int
	// LastUpdateBlock records the block height of the last commit.
	LastUpdateBlock uint64
	// LastOiDelta stores the normalized open-interest imbalance observed at
	// the last commit.
	LastOiDelta *big.Int
}

// Clone returns a deep copy to protect internal references.
func (p *PairFunding) Clone() *PairFunding {
	if p == nil {
		return nil
	}
	return &PairFunding{
		AccPerOiLong:     fixedmath.Copy(p.AccPerOiLong),
		AccPerOiShort:    fixedmath.Copy(p.AccPerOiShort),
		LastRatePerBlock: fixedmath.Copy(p.LastRatePerBlock),
		LastUpdateBlock:  p.LastUpdateBlock,
		LastOiDelta:      fixedmath.Copy(p.LastOiDelta),
	}
}

// PairRollover captures the linear carrying-cost accumulators for one pair.
type PairRollover struct {
	// AccLong and AccShort are signed percent accumulators against
	// fixedmath.One.
	AccLong  *big.Int
	AccShort *big.Int
	// LastPureRatePerBlock is the signed base rollover rate excluding the
	// broker premium.
	LastPureRatePerBlock *big.Int
	// BrokerPremium is the non-negative premium layered onto the pure rate.
	BrokerPremium *big.Int
	// LastUpdateBlock records the block height of the last commit.
	LastUpdateBlock uint64
}

// Clone returns a deep copy to protect internal references.
func (p *PairRollover) Clone() *PairRollover {
	if p == nil {
		return nil
	}
	return &PairRollover{
		AccLong:              fixedmath.Copy(p.AccLong),
		AccShort:             fixedmath.Copy(p.AccShort),
		LastPureRatePerBlock: fixedmath.Copy(p.LastPureRatePerBlock),
		BrokerPremium:        fixedmath.Copy(p.BrokerPremium),
		LastUpdateBlock:      p.LastUpdateBlock,
	}
}

// PairOpenInterest carries the aggregate notional open on each side of a
// pair. The settlement pipeline owns the values; the accrual engine only
// reads them.
type PairOpenInterest struct {
	Long  *big.Int
	Short *big.Int
}

// FeeSnapshot is captured once when a position opens and stays immutable
// until it closes. Fees are always computed as a delta between the current
// accumulator and this snapshot.
type FeeSnapshot struct {
	Rollover *big.Int
	Funding  *big.Int
}

// Clone returns a deep copy to protect internal references.
func (s *FeeSnapshot) Clone() *FeeSnapshot {
	if s == nil {
		return nil
	}
	return &FeeSnapshot{
		Rollover: fixedmath.Copy(s.Rollover),
		Funding:  fixedmath.Copy(s.Funding),
	}
}

// PendingFunding is the side-effect-free projection of a pair's funding
// accumulators to the engine's current block.
type PendingFunding struct {
	AccPerOiLong      *big.Int
	AccPerOiShort     *big.Int
	RatePerBlock      *big.Int
	NormalizedOiDelta *big.Int
}
