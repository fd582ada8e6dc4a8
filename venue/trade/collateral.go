package trade

import (
	"math/big"

	"perpcore/fixedmath"
	"perpcore/venue/common"
	"perpcore/venue/funding"
)

// realizeFees deducts funding and rollover accrued since the position's
// snapshot from its collateral and re-snapshots the accumulators. Collateral
// adjustments must not retroactively change the base already-accrued fees
// were charged on.
func (e *Engine) realizeFees(pos *Position) error {
	if err := e.commitAccruals(pos.PairIndex); err != nil {
		return err
	}
	snapshot, err := e.feeSnapshot(pos.PairIndex, pos.Long)
	if err != nil {
		return err
	}
	rolloverFee := funding.TradeRolloverFee(pos.Snapshot.Rollover, snapshot.Rollover, pos.Collateral, pos.Leverage)
	fundingFee := funding.TradeFundingFee(pos.Snapshot.Funding, snapshot.Funding, pos.Collateral, pos.Leverage)
	pos.Collateral = new(big.Int).Sub(pos.Collateral, rolloverFee)
	pos.Collateral.Sub(pos.Collateral, fundingFee)
	if pos.Collateral.Sign() <= 0 {
		return errInsufficientCollat
	}
	pos.Snapshot = *snapshot
	return nil
}

// reshapePosition applies a new collateral amount while keeping the
// notional size fixed, recomputing leverage and re-clamping TP and SL to
// the new gearing.
func reshapePosition(pos *Position, params *PairParams, notional, newCollateral *big.Int) error {
	newLeverage := fixedmath.MulDiv(fixedmath.Copy(notional), fixedmath.One, newCollateral)
	if newLeverage.Cmp(params.MinLeverage) < 0 || newLeverage.Cmp(params.MaxLeverage) > 0 {
		return errLeverageOutOfRange
	}
	pos.Collateral = newCollateral
	pos.Leverage = newLeverage
	pos.Tp, pos.Sl = clampTpSl(pos.Tp, pos.Sl, pos.OpenPrice, newLeverage, params.MaxGainP, pos.Long)
	return nil
}

// TopUpCollateral adds collateral to an open position. The notional size is
// unchanged, so leverage falls; accrued fees are realized first so the new
// collateral does not inflate fees already owed.
func (e *Engine) TopUpCollateral(trader [20]byte, pairIndex, slot uint32, amount *big.Int) (*Position, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, common.ModuleTrade); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pos, err := e.state.Position(trader, pairIndex, slot)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, errPositionNotFound
	}
	params, err := e.pairParams(pairIndex)
	if err != nil {
		return nil, err
	}

	notional := pos.Notional()
	if err := e.realizeFees(pos); err != nil {
		return nil, err
	}
	newCollateral := new(big.Int).Add(pos.Collateral, amount)
	if err := reshapePosition(pos, params, notional, newCollateral); err != nil {
		return nil, err
	}
	if err := e.ledger.PullFromTrader(trader, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos.Clone()); err != nil {
		return nil, err
	}
	e.emit(NewCollateralUpdatedEvent(pos, amount, true))
	return pos, nil
}

// RemoveCollateral withdraws collateral from an open position. Leverage
// rises against the unchanged notional and must stay within the pair's
// bounds.
func (e *Engine) RemoveCollateral(trader [20]byte, pairIndex, slot uint32, amount *big.Int) (*Position, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, common.ModuleTrade); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pos, err := e.state.Position(trader, pairIndex, slot)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, errPositionNotFound
	}
	params, err := e.pairParams(pairIndex)
	if err != nil {
		return nil, err
	}

	notional := pos.Notional()
	if err := e.realizeFees(pos); err != nil {
		return nil, err
	}
	newCollateral := new(big.Int).Sub(pos.Collateral, amount)
	if newCollateral.Sign() <= 0 {
		return nil, errInsufficientCollat
	}
	if err := reshapePosition(pos, params, notional, newCollateral); err != nil {
		return nil, err
	}
	// The push can fail on an underfunded pool; the stored position must
	// keep its old collateral in that case.
	if err := e.ledger.PushToTrader(trader, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos.Clone()); err != nil {
		return nil, err
	}
	e.emit(NewCollateralUpdatedEvent(pos, amount, false))
	return pos, nil
}

// UpdateTpSl replaces a position's take-profit and stop-loss, clamped to
// the pair's gain cap and the position's gearing.
func (e *Engine) UpdateTpSl(trader [20]byte, pairIndex, slot uint32, tp, sl *big.Int) (*Position, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleTrade); err != nil {
		return nil, err
	}
	pos, err := e.state.Position(trader, pairIndex, slot)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, errPositionNotFound
	}
	params, err := e.pairParams(pairIndex)
	if err != nil {
		return nil, err
	}
	pos.Tp, pos.Sl = clampTpSl(tp, sl, pos.OpenPrice, pos.Leverage, params.MaxGainP, pos.Long)
	if err := e.state.PutPosition(pos.Clone()); err != nil {
		return nil, err
	}
	e.emit(NewTpSlUpdatedEvent(pos))
	return pos, nil
}
