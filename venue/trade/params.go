package trade

import (
	"errors"
	"math/big"

	"perpcore/fixedmath"
)

var (
	errNilParams        = errors.New("trade engine: params must not be nil")
	errSpreadBound      = errors.New("trade engine: spread percent out of range")
	errLeverageBounds   = errors.New("trade engine: leverage bounds invalid")
	errExposureCap      = errors.New("trade engine: exposure cap must be positive")
	errImpactBound      = errors.New("trade engine: max price impact out of range")
	errDepthBound       = errors.New("trade engine: impact depth must be positive")
	errDecayBound       = errors.New("trade engine: spread decay rate must be positive")
	errTimeoutBound     = errors.New("trade engine: order timeout must be positive")
	errThresholdBound   = errors.New("trade engine: liquidation threshold out of range")
	errMaxTradesBound   = errors.New("trade engine: max trades per pair must be positive")
)

// PairParams governs execution on a single pair. Percent fields are against
// fixedmath.One; MinLeverage and MaxLeverage are leverage multipliers
// against fixedmath.One.
type PairParams struct {
	// SpreadP is the static half-spread applied to every execution.
	SpreadP *big.Int
	// DynamicSpreadEnabled adds the inventory-imbalance impact term on top
	// of the static half-spread.
	DynamicSpreadEnabled bool
	// DecayRatePerSec drives the exponential decay of tracked one-sided
	// volume, against fixedmath.One per second.
	DecayRatePerSec *big.Int
	// NeutralThreshold is the absolute volume imbalance, in asset units,
	// below which no dynamic impact applies.
	NeutralThreshold *big.Int
	// ImpactDepth normalizes excess imbalance for the superlinear impact
	// term, in asset units.
	ImpactDepth *big.Int
	// ImpactSensitivity scales the squared normalized imbalance into a
	// percent, against fixedmath.One. Calibrated off-line per market.
	ImpactSensitivity *big.Int
	// MaxPriceImpactP cancels orders whose total impact exceeds it.
	MaxPriceImpactP *big.Int

	MinLeverage *big.Int
	MaxLeverage *big.Int
	// MaxOpenInterest caps per-side exposure in asset units.
	MaxOpenInterest *big.Int
	// MaxGainP caps the leveraged percent profit at close, as a plain
	// percent.
	MaxGainP uint64
	// LiqThresholdP is the percent of collateral below which a position is
	// liquidated, scaled by leverage relative to MaxLeverage.
	LiqThresholdP uint64
	// MaxTradesPerPair bounds concurrent position slots per trader.
	MaxTradesPerPair uint32
	// OrderTimeoutBlocks is the age after which a resting order becomes
	// eligible for timeout cancellation.
	OrderTimeoutBlocks uint64
}

// Validate checks the parameter set for internal consistency.
func (p *PairParams) Validate() error {
	if p == nil {
		return errNilParams
	}
	if p.SpreadP == nil || p.SpreadP.Sign() < 0 || p.SpreadP.Cmp(fixedmath.Hundred) > 0 {
		return errSpreadBound
	}
	if p.MinLeverage == nil || p.MaxLeverage == nil ||
		p.MinLeverage.Cmp(fixedmath.One) < 0 || p.MaxLeverage.Cmp(p.MinLeverage) < 0 {
		return errLeverageBounds
	}
	if p.MaxOpenInterest == nil || p.MaxOpenInterest.Sign() <= 0 {
		return errExposureCap
	}
	if p.MaxPriceImpactP == nil || p.MaxPriceImpactP.Sign() < 0 || p.MaxPriceImpactP.Cmp(fixedmath.Hundred) > 0 {
		return errImpactBound
	}
	if p.LiqThresholdP == 0 || p.LiqThresholdP > 100 {
		return errThresholdBound
	}
	if p.MaxTradesPerPair == 0 {
		return errMaxTradesBound
	}
	if p.OrderTimeoutBlocks == 0 {
		return errTimeoutBound
	}
	if p.DynamicSpreadEnabled {
		if p.DecayRatePerSec == nil || p.DecayRatePerSec.Sign() <= 0 {
			return errDecayBound
		}
		if p.ImpactDepth == nil || p.ImpactDepth.Sign() <= 0 {
			return errDepthBound
		}
		if p.ImpactSensitivity == nil || p.ImpactSensitivity.Sign() < 0 {
			return errImpactBound
		}
		if p.NeutralThreshold == nil || p.NeutralThreshold.Sign() < 0 {
			return errExposureCap
		}
	}
	return nil
}

// Clone returns a deep copy of the parameter set.
func (p *PairParams) Clone() *PairParams {
	if p == nil {
		return nil
	}
	clone := *p
	clone.SpreadP = fixedmath.Copy(p.SpreadP)
	clone.DecayRatePerSec = fixedmath.Copy(p.DecayRatePerSec)
	clone.NeutralThreshold = fixedmath.Copy(p.NeutralThreshold)
	clone.ImpactDepth = fixedmath.Copy(p.ImpactDepth)
	clone.ImpactSensitivity = fixedmath.Copy(p.ImpactSensitivity)
	clone.MaxPriceImpactP = fixedmath.Copy(p.MaxPriceImpactP)
	clone.MinLeverage = fixedmath.Copy(p.MinLeverage)
	clone.MaxLeverage = fixedmath.Copy(p.MaxLeverage)
	clone.MaxOpenInterest = fixedmath.Copy(p.MaxOpenInterest)
	return &clone
}

// CancelReason classifies why an order did not execute. Checks run in a
// fixed priority order so callers always see the highest-priority reason.
type CancelReason uint8

const (
	CancelNone CancelReason = iota
	CancelPaused
	CancelSlippage
	CancelTpReached
	CancelSlReached
	CancelExposureLimits
	CancelPriceImpact
	CancelLeverage
	CancelTimeout
)

// String implements fmt.Stringer.
func (r CancelReason) String() string {
	switch r {
	case CancelNone:
		return "none"
	case CancelPaused:
		return "paused"
	case CancelSlippage:
		return "slippage"
	case CancelTpReached:
		return "tp_reached"
	case CancelSlReached:
		return "sl_reached"
	case CancelExposureLimits:
		return "exposure_limits"
	case CancelPriceImpact:
		return "price_impact"
	case CancelLeverage:
		return "leverage"
	case CancelTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
