package funding

import (
	"math/big"

	"perpcore/fixedmath"
	"perpcore/venue/common"
)

// hillDenomOffset is the 0.16 constant of the saturating target curve,
// against fixedmath.One.
var hillDenomOffset = big.NewInt(160_000_000_000_000_000)

// hillInputScaleP is the 1.84 multiplier applied to the normalized imbalance
// before it enters the curve, in hundredths.
var hillInputScaleP = big.NewInt(184)

// PendingFunding projects a pair's funding accumulators to the engine's
// current block without mutating state. Calling it twice at the same height
// yields identical output.
func (e *Engine) PendingFunding(pairIndex uint32) (*PendingFunding, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, params, err := e.fundingPair(pairIndex)
	if err != nil {
		return nil, err
	}
	oi, err := e.openInterest(pairIndex)
	if err != nil {
		return nil, err
	}
	return projectFunding(state, params, oi, e.blockHeight)
}

// StoreAccFundingFees commits the pending projection and advances the pair's
// last-update block. It must run before any parameter mutation and before a
// trade open or close reads the accumulators.
func (e *Engine) StoreAccFundingFees(pairIndex uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleFunding); err != nil {
		return err
	}
	state, params, err := e.fundingPair(pairIndex)
	if err != nil {
		return err
	}
	oi, err := e.openInterest(pairIndex)
	if err != nil {
		return err
	}
	pending, err := projectFunding(state, params, oi, e.blockHeight)
	if err != nil {
		return err
	}

	before := state.Clone()
	state.AccPerOiLong = pending.AccPerOiLong
	state.AccPerOiShort = pending.AccPerOiShort
	state.LastRatePerBlock = pending.RatePerBlock
	state.LastOiDelta = pending.NormalizedOiDelta
	state.LastUpdateBlock = e.blockHeight

	if err := e.state.PutFundingState(pairIndex, state); err != nil {
		return err
	}
	e.emit(NewFundingUpdatedEvent(pairIndex, before, state))
	return nil
}

func projectFunding(state *PairFunding, params *FundingParams, oi *PairOpenInterest, block uint64) (*PendingFunding, error) {
	if block < state.LastUpdateBlock {
		return nil, errStaleBlock
	}

	oiDelta := normalizedOiDelta(oi, params.OiCap)
	target := targetRate(oiDelta, params)
	last := fixedmath.Copy(state.LastRatePerBlock)

	pending := &PendingFunding{
		AccPerOiLong:      fixedmath.Copy(state.AccPerOiLong),
		AccPerOiShort:     fixedmath.Copy(state.AccPerOiShort),
		RatePerBlock:      last,
		NormalizedOiDelta: oiDelta,
	}

	elapsed := block - state.LastUpdateBlock
	if elapsed == 0 {
		return pending, nil
	}

	speed := springSpeed(last, target, params)
	diff := new(big.Int).Sub(last, target)

	// Decay factor over the elapsed window: e^(-speed*blocks).
	exponent := new(big.Int).Mul(speed, new(big.Int).SetUint64(elapsed))
	decay := fixedmath.Decay(exponent)

	// Closed-form integral of the damped rate over the window:
	// target*blocks + (1-decay)*(last-target)/speed.
	accrued := new(big.Int).Mul(target, new(big.Int).SetUint64(elapsed))
	if speed.Sign() > 0 {
		tail := new(big.Int).Sub(fixedmath.One, decay)
		tail.Mul(tail, diff)
		tail.Quo(tail, speed)
		accrued.Add(accrued, tail)
	}

	rate := fixedmath.MulOne(diff, decay)
	rate.Add(rate, target)
	pending.RatePerBlock = fixedmath.Clamp(rate, params.MaxRatePerBlock)

	distributeFunding(pending, accrued, oi)
	return pending, nil
}

// normalizedOiDelta computes (long-short) / max(cap, max(long, short))
// clamped to one unit either way. A zero denominator yields zero imbalance.
func normalizedOiDelta(oi *PairOpenInterest, cap *big.Int) *big.Int {
	denom := fixedmath.Max(cap, fixedmath.Max(oi.Long, oi.Short))
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(oi.Long, oi.Short)
	norm := fixedmath.MulDiv(delta, fixedmath.One, denom)
	return fixedmath.Clamp(norm, fixedmath.One)
}

// targetRate maps the normalized imbalance through the saturating curve
// x^2/(0.16+x^2) with x = 1.84*delta, scales it by the side-specific percent,
// shifts by the inflection point and bounds the result to the pair's maximum
// per-block rate.
func targetRate(oiDelta *big.Int, params *FundingParams) *big.Int {
	x := fixedmath.MulDiv(oiDelta, hillInputScaleP, big.NewInt(100))
	xSq := fixedmath.MulOne(x, x)
	den := new(big.Int).Add(hillDenomOffset, xSq)
	hill := fixedmath.DivOne(xSq, den)

	scaleP := params.PosScaleP
	if oiDelta.Sign() < 0 {
		scaleP = params.NegScaleP
	}
	scaled := fixedmath.MulDiv(hill, new(big.Int).SetUint64(scaleP), big.NewInt(100))
	if oiDelta.Sign() < 0 {
		scaled.Neg(scaled)
	}
	if params.InflectionPoint != nil {
		scaled.Add(scaled, params.InflectionPoint)
	}
	norm := fixedmath.Clamp(scaled, fixedmath.One)
	return fixedmath.MulOne(norm, params.MaxRatePerBlock)
}

// springSpeed selects the convergence speed: full spring when the target
// pulls the rate further out on the same side, the down-scaled spring when
// the rate is converging, and the up-scaled spring when it must cross the
// sign boundary.
func springSpeed(last, target *big.Int, params *FundingParams) *big.Int {
	speed := fixedmath.Copy(params.SpringFactor)
	crossing := last.Sign()*target.Sign() < 0
	switch {
	case crossing:
		return fixedmath.MulDiv(speed, new(big.Int).SetUint64(params.UpScaleP), big.NewInt(100))
	case target.CmpAbs(last) >= 0:
		return speed
	default:
		return fixedmath.MulDiv(speed, new(big.Int).SetUint64(params.DownScaleP), big.NewInt(100))
	}
}

// distributeFunding applies the accrued integral to the paying side in full
// and credits the opposite side scaled by the ratio of opposing open
// interest. A receiving side with zero open interest is left untouched.
func distributeFunding(pending *PendingFunding, accrued *big.Int, oi *PairOpenInterest) {
	switch accrued.Sign() {
	case 1:
		pending.AccPerOiLong = new(big.Int).Add(pending.AccPerOiLong, accrued)
		if oi.Short.Sign() > 0 {
			credit := fixedmath.MulDiv(accrued, oi.Long, oi.Short)
			pending.AccPerOiShort = new(big.Int).Sub(pending.AccPerOiShort, credit)
		}
	case -1:
		paid := new(big.Int).Neg(accrued)
		pending.AccPerOiShort = new(big.Int).Add(pending.AccPerOiShort, paid)
		if oi.Long.Sign() > 0 {
			credit := fixedmath.MulDiv(paid, oi.Short, oi.Long)
			pending.AccPerOiLong = new(big.Int).Sub(pending.AccPerOiLong, credit)
		}
	}
}
