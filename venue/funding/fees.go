package funding

import (
	"math/big"

	"perpcore/fixedmath"
)

// TradeRolloverFee charges the rollover accrued between a position's
// snapshot and the current accumulator: delta*collateral*leverage/(100*One),
// truncated toward zero. Leverage is expressed against fixedmath.One so
// collateral adjustments can carry fractional leverage. A nonzero delta
// never truncates to a zero fee: the smallest unit is charged in the delta's
// direction instead, so dust cannot leak through repeated settlement.
func TradeRolloverFee(snapshot, endAcc, collateral, leverage *big.Int) *big.Int {
	return accrualFee(snapshot, endAcc, collateral, leverage)
}

// TradeFundingFee charges the funding accrued between a position's snapshot
// and the current per-OI accumulator, with the same rounding and anti-dust
// convention as TradeRolloverFee. Negative results are credits.
func TradeFundingFee(snapshot, endAcc, collateral, leverage *big.Int) *big.Int {
	return accrualFee(snapshot, endAcc, collateral, leverage)
}

func accrualFee(snapshot, endAcc, collateral, leverage *big.Int) *big.Int {
	delta := new(big.Int).Sub(fixedmath.Copy(endAcc), fixedmath.Copy(snapshot))
	if delta.Sign() == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(delta, fixedmath.Copy(collateral))
	fee.Mul(fee, fixedmath.Copy(leverage))
	fee.Quo(fee, new(big.Int).Mul(fixedmath.Hundred, fixedmath.One))
	if fee.Sign() == 0 {
		// Anti-dust rule: charge one smallest unit in the delta's direction.
		return big.NewInt(int64(delta.Sign()))
	}
	return fee
}

// TradeValue prices a position at close: collateral plus the leveraged
// percent profit capped at maxGainP, minus carrying fees, floored at zero.
// percentProfit is a signed percent against fixedmath.One.
func TradeValue(collateral, percentProfit *big.Int, maxGainP uint64, rolloverFee, fundingFee *big.Int) *big.Int {
	maxGain := new(big.Int).Mul(fixedmath.One, new(big.Int).SetUint64(maxGainP))
	profitP := fixedmath.Min(fixedmath.Copy(percentProfit), maxGain)

	value := fixedmath.MulDiv(fixedmath.Copy(collateral), profitP, fixedmath.Hundred)
	value.Add(value, collateral)
	value.Sub(value, rolloverFee)
	value.Sub(value, fundingFee)
	if value.Sign() < 0 {
		return big.NewInt(0)
	}
	return value
}

// LiquidationMargin computes the minimum trade value below which a position
// is force-closed: collateral * liqThresholdP * leverage / maxLeverage /
// 100. Both leverages are against fixedmath.One.
func LiquidationMargin(collateral *big.Int, liqThresholdP uint64, leverage, maxLeverage *big.Int) *big.Int {
	if maxLeverage == nil || maxLeverage.Sign() == 0 {
		return big.NewInt(0)
	}
	margin := new(big.Int).Mul(fixedmath.Copy(collateral), new(big.Int).SetUint64(liqThresholdP))
	margin.Mul(margin, fixedmath.Copy(leverage))
	margin.Quo(margin, new(big.Int).Mul(maxLeverage, big.NewInt(100)))
	return margin
}

// PercentProfit derives the leveraged percent profit of a position against
// fixedmath.One: (close-open)/open * 100 * leverage, sign flipped for
// shorts.
func PercentProfit(openPrice, closePrice *big.Int, long bool, leverage *big.Int) *big.Int {
	if openPrice == nil || openPrice.Sign() == 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(fixedmath.Copy(closePrice), openPrice)
	if !long {
		delta.Neg(delta)
	}
	profit := fixedmath.MulDiv(delta, fixedmath.Hundred, openPrice)
	return fixedmath.MulOne(profit, leverage)
}
