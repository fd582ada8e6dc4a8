package trade

import (
	"math/big"

	"perpcore/fixedmath"
	"perpcore/venue/funding"
)

// CloseTrade settles a position at the quote recorded for requestID. The
// trader receives the position's remaining value; the difference between
// closed collateral and that value settles against the vault. A non-none
// reason without a settlement means the close was suppressed, not failed.
func (e *Engine) CloseTrade(trader [20]byte, pairIndex, slot uint32, requestID string) (*CloseSettlement, CancelReason, error) {
	return e.settleClose(trader, pairIndex, slot, requestID, false)
}

// Liquidate force-closes a position whose value fell below its liquidation
// margin. The whole closed collateral is forfeited to the vault as the
// liquidation fee; neither the trader nor the caller receives anything.
func (e *Engine) Liquidate(caller, trader [20]byte, pairIndex, slot uint32, requestID string) (*CloseSettlement, CancelReason, error) {
	return e.settleClose(trader, pairIndex, slot, requestID, true)
}

func (e *Engine) settleClose(trader [20]byte, pairIndex, slot uint32, requestID string, liquidation bool) (*CloseSettlement, CancelReason, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, CancelNone, err
	}
	pos, err := e.state.Position(trader, pairIndex, slot)
	if err != nil {
		return nil, CancelNone, err
	}
	if pos == nil {
		return nil, CancelNone, errPositionNotFound
	}
	params, err := e.pairParams(pairIndex)
	if err != nil {
		return nil, CancelNone, err
	}
	quote, err := e.feed.Quote(requestID)
	if err != nil {
		return nil, CancelNone, err
	}
	// Liquidations run even while the module is paused so the vault's
	// exposure keeps shrinking.
	if !liquidation && (e.paused() || quote.MarketClosed) {
		e.emit(NewTradeCancelledEvent(trader, pairIndex, CancelPaused))
		return nil, CancelPaused, nil
	}
	if liquidation && quote.MarketClosed {
		e.emit(NewTradeCancelledEvent(trader, pairIndex, CancelPaused))
		return nil, CancelPaused, nil
	}
	if err := e.commitAccruals(pairIndex); err != nil {
		return nil, CancelNone, err
	}

	notional := pos.Notional()
	spread, err := e.dynamicSpread(pairIndex)
	if err != nil {
		return nil, CancelNone, err
	}
	buys := takerBuys(pos.Long, false)
	impactP := priceImpactP(params, spread, notional, buys, e.nowFn())
	closePrice := applyImpact(quote.Price, impactP, buys)

	settlement, err := e.valuePosition(pos, params, closePrice)
	if err != nil {
		return nil, CancelNone, err
	}
	if liquidation && !settlement.Liquidated {
		return nil, CancelNone, errNotLiquidatable
	}
	if settlement.Liquidated {
		// Forfeited collateral goes to the vault in full.
		settlement.AmountToTrader = big.NewInt(0)
		settlement.LiquidationFee = fixedmath.Copy(pos.Collateral)
		settlement.VaultDelta = big.NewInt(0)
	} else {
		settlement.AmountToTrader = settlement.Value
		settlement.LiquidationFee = big.NewInt(0)
		settlement.VaultDelta = new(big.Int).Sub(fixedmath.Copy(pos.Collateral), settlement.Value)
	}
	settlement.CollateralClosed = fixedmath.Copy(pos.Collateral)

	// Money moves before any position state is touched. The vault can
	// reject on its solvency bound, the daily breaker, or a pause; a
	// rejected settlement must leave the position intact.
	if settlement.LiquidationFee.Sign() > 0 {
		if err := e.vault.ReceiveAssets(e.poolAddr, settlement.LiquidationFee); err != nil {
			return nil, CancelNone, err
		}
	}
	if settlement.VaultDelta.Sign() > 0 {
		if err := e.vault.ReceiveAssets(e.poolAddr, settlement.VaultDelta); err != nil {
			return nil, CancelNone, err
		}
	} else if settlement.VaultDelta.Sign() < 0 {
		if err := e.vault.SendAssets(e.poolAddr, new(big.Int).Neg(settlement.VaultDelta)); err != nil {
			return nil, CancelNone, err
		}
	}
	if settlement.AmountToTrader.Sign() > 0 {
		if err := e.ledger.PushToTrader(trader, settlement.AmountToTrader); err != nil {
			return nil, CancelNone, err
		}
	}

	oi, err := e.openInterest(pairIndex)
	if err != nil {
		return nil, CancelNone, err
	}
	side := oi.Long
	if !pos.Long {
		side = oi.Short
	}
	side.Sub(side, notional)
	if side.Sign() < 0 {
		side.SetInt64(0)
	}

	if err := e.state.DeletePosition(trader, pairIndex, slot); err != nil {
		return nil, CancelNone, err
	}
	if err := e.state.PutOpenInterest(pairIndex, oi); err != nil {
		return nil, CancelNone, err
	}
	if err := e.state.PutDynamicSpread(pairIndex, spread); err != nil {
		return nil, CancelNone, err
	}

	e.emit(NewTradeClosedEvent(pos, settlement))
	return settlement, CancelNone, nil
}

// valuePosition computes a position's remaining value at closePrice after
// carrying fees, and whether that value sits below the liquidation margin.
func (e *Engine) valuePosition(pos *Position, params *PairParams, closePrice *big.Int) (*CloseSettlement, error) {
	rolloverAcc, err := e.fees.PendingRollover(pos.PairIndex, pos.Long)
	if err != nil {
		return nil, err
	}
	pending, err := e.fees.PendingFunding(pos.PairIndex)
	if err != nil {
		return nil, err
	}
	fundingAcc := pending.AccPerOiLong
	if !pos.Long {
		fundingAcc = pending.AccPerOiShort
	}

	rolloverFee := funding.TradeRolloverFee(pos.Snapshot.Rollover, rolloverAcc, pos.Collateral, pos.Leverage)
	fundingFee := funding.TradeFundingFee(pos.Snapshot.Funding, fundingAcc, pos.Collateral, pos.Leverage)
	profitP := funding.PercentProfit(pos.OpenPrice, closePrice, pos.Long, pos.Leverage)
	value := funding.TradeValue(pos.Collateral, profitP, params.MaxGainP, rolloverFee, fundingFee)
	margin := funding.LiquidationMargin(pos.Collateral, params.LiqThresholdP, pos.Leverage, params.MaxLeverage)

	return &CloseSettlement{
		Value:       value,
		RolloverFee: rolloverFee,
		FundingFee:  fundingFee,
		ClosePrice:  closePrice,
		Liquidated:  value.Cmp(margin) < 0,
	}, nil
}
