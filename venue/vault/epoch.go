package vault

import (
	"math/big"

	"perpcore/fixedmath"
)

// RequestEpochAdvance marks an epoch update as in flight, gating withdraw
// requests and redemptions until AdvanceEpoch commits. The external
// aggregator drives both calls; enforcing at-most-once-per-epoch is its
// responsibility, not the core's.
func (e *Engine) RequestEpochAdvance() error {
	if err := e.guard(); err != nil {
		return err
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	if state.EpochAdvanceRequested {
		return errEpochPending
	}
	state.EpochAdvanceRequested = true
	return e.commit(state)
}

// AdvanceEpoch commits the aggregator's open-PnL delta, snapshots the
// per-share accumulator that backs the share price, and opens the next
// epoch. The delta is clamped to the lesser of the remaining solvency
// headroom and the configured per-epoch movement cap.
func (e *Engine) AdvanceEpoch(prevOpenPnl, newOpenPnl *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	if !state.EpochAdvanceRequested {
		return errNoEpochPending
	}
	now := e.nowFn()
	e.refreshWindows(state, now)

	before := state.Clone()
	delta := new(big.Int).Sub(fixedmath.Copy(newOpenPnl), fixedmath.Copy(prevOpenPnl))

	if state.TotalShares.Sign() > 0 {
		maxAcc := state.MaxAccPnlPerToken()
		headroom := new(big.Int).Sub(maxAcc, state.AccPnlPerToken)
		headroomAssets := fixedmath.MulDiv(headroom, state.TotalShares, fixedmath.One)
		epochCap := fixedmath.MulDiv(e.params.MaxAccOpenPnlDelta, state.TotalShares, fixedmath.One)

		if delta.Sign() > 0 {
			delta = fixedmath.Min(delta, fixedmath.Min(headroomAssets, epochCap))
		} else if delta.Sign() < 0 {
			floor := new(big.Int).Neg(epochCap)
			delta = fixedmath.Max(delta, floor)
		}

		deltaPerToken := fixedmath.MulDiv(delta, fixedmath.One, state.TotalShares)
		state.AccPnlPerToken = new(big.Int).Add(state.AccPnlPerToken, deltaPerToken)
	}

	state.AccPnlPerTokenUsed = fixedmath.Copy(state.AccPnlPerToken)
	state.CurrentEpoch++
	state.EpochStart = now
	state.EpochAdvanceRequested = false

	if err := e.commit(state); err != nil {
		return err
	}
	e.emit(NewEpochAdvancedEvent(before, state, delta))
	return nil
}
