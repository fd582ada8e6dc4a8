package vault

import (
	"math/big"

	"perpcore/fixedmath"
)

// DistributeReward pulls assets into the pool as yield owed to every share:
// the rewards accumulator rises, lifting both the solvency bound and the
// share price.
func (e *Engine) DistributeReward(from [20]byte, assets *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if assets == nil || assets.Sign() <= 0 {
		return errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	e.refreshWindows(state, e.nowFn())
	before := state.Clone()

	if state.TotalShares.Sign() > 0 {
		perToken := fixedmath.MulDiv(assets, fixedmath.One, state.TotalShares)
		state.AccRewardsPerToken = new(big.Int).Add(state.AccRewardsPerToken, perToken)
	}
	// The pull clears before the accumulator persists.
	if err := e.ledger.Pull(from, assets); err != nil {
		return err
	}
	if err := e.commit(state); err != nil {
		return err
	}
	e.emit(NewRewardDistributedEvent(from, assets, before, state))
	return nil
}

// SendAssets pays trader profit out of the pool. The per-share PnL
// accumulator rises and is checked against both the solvency bound and the
// rolling daily circuit breaker before anything commits.
func (e *Engine) SendAssets(to [20]byte, assets *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if assets == nil || assets.Sign() <= 0 {
		return errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	e.refreshWindows(state, e.nowFn())
	before := state.Clone()

	if state.TotalShares.Sign() > 0 {
		perToken := fixedmath.MulDivRoundUp(assets, fixedmath.One, state.TotalShares)
		next := new(big.Int).Add(state.AccPnlPerToken, perToken)
		if next.Cmp(state.MaxAccPnlPerToken()) > 0 {
			return errSolvencyBound
		}
		daily := new(big.Int).Add(state.DailyAccPnlDelta, perToken)
		if daily.Cmp(e.params.MaxDailyAccPnlDelta) > 0 {
			return errDailyCapExceeded
		}
		state.AccPnlPerToken = next
		state.DailyAccPnlDelta = daily
	}
	// Caps are validated above, so the push runs before the charged PnL
	// persists; an unpaid recipient must not leave the accumulator moved.
	if err := e.ledger.Push(to, assets); err != nil {
		return err
	}
	if err := e.commit(state); err != nil {
		return err
	}
	e.emit(NewAssetsSentEvent(to, assets, before, state))
	return nil
}

// ReceiveAssets pulls trader losses into the pool, lowering the per-share
// PnL accumulator. Inflows are not subject to the daily breaker.
func (e *Engine) ReceiveAssets(from [20]byte, assets *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if assets == nil || assets.Sign() <= 0 {
		return errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	e.refreshWindows(state, e.nowFn())
	before := state.Clone()

	if state.TotalShares.Sign() > 0 {
		perToken := fixedmath.MulDiv(assets, fixedmath.One, state.TotalShares)
		state.AccPnlPerToken = new(big.Int).Sub(state.AccPnlPerToken, perToken)
	}
	if err := e.ledger.Pull(from, assets); err != nil {
		return err
	}
	if err := e.commit(state); err != nil {
		return err
	}
	e.emit(NewAssetsReceivedEvent(from, assets, before, state))
	return nil
}
