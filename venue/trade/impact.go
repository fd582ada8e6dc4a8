package trade

import (
	"math/big"

	"perpcore/fixedmath"
)

// decaySpread ages the tracked one-sided volume to now. Both sides decay by
// exp(-rate*elapsed); the tracker is mutated in place.
func decaySpread(spread *DynamicSpread, ratePerSec *big.Int, now int64) {
	if spread.LastUpdate >= now {
		spread.LastUpdate = now
		return
	}
	elapsed := new(big.Int).SetInt64(now - spread.LastUpdate)
	factor := fixedmath.Decay(new(big.Int).Mul(ratePerSec, elapsed))
	spread.BuyVolume = fixedmath.MulOne(spread.BuyVolume, factor)
	spread.SellVolume = fixedmath.MulOne(spread.SellVolume, factor)
	spread.LastUpdate = now
}

// takerBuys reports whether an order takes liquidity on the buy side:
// opening a long or closing a short lifts the offer.
func takerBuys(long, opening bool) bool {
	return long == opening
}

// priceImpactP computes the total impact percent for an order of the given
// notional, after recording it in the tracker. The static half-spread
// always applies; when dynamic spread is enabled and the order deepens an
// imbalance beyond the neutral threshold, a superlinear term in the excess
// imbalance is added on top.
func priceImpactP(params *PairParams, spread *DynamicSpread, notional *big.Int, buys bool, now int64) *big.Int {
	impact := fixedmath.Copy(params.SpreadP)
	if !params.DynamicSpreadEnabled {
		return impact
	}

	decaySpread(spread, params.DecayRatePerSec, now)
	preMagnitude := new(big.Int).Sub(spread.BuyVolume, spread.SellVolume)
	preMagnitude.Abs(preMagnitude)
	if buys {
		spread.BuyVolume = new(big.Int).Add(spread.BuyVolume, notional)
	} else {
		spread.SellVolume = new(big.Int).Add(spread.SellVolume, notional)
	}

	imbalance := new(big.Int).Sub(spread.BuyVolume, spread.SellVolume)
	if !buys {
		imbalance.Neg(imbalance)
	}
	// Orders that do not deepen the book's imbalance pay only the static
	// half-spread. That covers orders against the prevailing side and
	// crossing orders whose post-trade imbalance stays within the
	// pre-trade magnitude.
	if imbalance.Cmp(preMagnitude) <= 0 {
		return impact
	}
	excess := imbalance.Sub(imbalance, params.NeutralThreshold)
	if excess.Sign() <= 0 {
		return impact
	}

	ratio := fixedmath.MulDiv(excess, fixedmath.One, params.ImpactDepth)
	extra := fixedmath.MulOne(fixedmath.MulOne(ratio, ratio), params.ImpactSensitivity)
	return impact.Add(impact, extra)
}

// applyImpact shifts the mid price against the taker: buyers pay
// price*(1+impactP/100), sellers receive price*(1-impactP/100).
func applyImpact(price, impactP *big.Int, buys bool) *big.Int {
	shift := fixedmath.MulDiv(fixedmath.Copy(price), impactP, fixedmath.Hundred)
	out := fixedmath.Copy(price)
	if buys {
		return out.Add(out, shift)
	}
	out.Sub(out, shift)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}
