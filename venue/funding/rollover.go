package funding

import (
	"math/big"

	"perpcore/fixedmath"
	"perpcore/venue/common"
)

// PendingRollover projects the rollover accumulator for one side of a pair
// to the engine's current block without mutating state.
func (e *Engine) PendingRollover(pairIndex uint32, long bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, params, err := e.rolloverPair(pairIndex)
	if err != nil {
		return nil, err
	}
	if e.blockHeight < state.LastUpdateBlock {
		return nil, errStaleBlock
	}
	return pendingRolloverAcc(state, params, long, e.blockHeight), nil
}

// StoreAccRolloverFees commits both sides' pending rollover accumulators and
// advances the pair's last-update block.
func (e *Engine) StoreAccRolloverFees(pairIndex uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleFunding); err != nil {
		return err
	}
	state, params, err := e.rolloverPair(pairIndex)
	if err != nil {
		return err
	}
	if e.blockHeight < state.LastUpdateBlock {
		return errStaleBlock
	}

	before := state.Clone()
	state.AccLong = pendingRolloverAcc(state, params, true, e.blockHeight)
	state.AccShort = pendingRolloverAcc(state, params, false, e.blockHeight)
	state.LastUpdateBlock = e.blockHeight

	if err := e.state.PutRolloverState(pairIndex, state); err != nil {
		return err
	}
	e.emit(NewRolloverUpdatedEvent(pairIndex, before, state))
	return nil
}

// SetRolloverRate installs a new pure rate and broker premium after
// committing the accrual owed under the outgoing rate. The invariant
// |pureRate| + premium <= MaxRatePerBlock is enforced before any state
// changes.
func (e *Engine) SetRolloverRate(pairIndex uint32, pureRate, premium *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleFunding); err != nil {
		return err
	}
	_, params, err := e.rolloverPair(pairIndex)
	if err != nil {
		return err
	}
	if err := params.ValidateRolloverRate(pureRate, premium); err != nil {
		return err
	}
	if err := e.StoreAccRolloverFees(pairIndex); err != nil {
		return err
	}
	state, _, err := e.rolloverPair(pairIndex)
	if err != nil {
		return err
	}
	state.LastPureRatePerBlock = fixedmath.Copy(pureRate)
	state.BrokerPremium = fixedmath.Copy(premium)
	if err := e.state.PutRolloverState(pairIndex, state); err != nil {
		return err
	}
	e.emit(NewRolloverRateUpdatedEvent(pairIndex, state))
	return nil
}

// pendingRolloverAcc applies the linear model acc + rate*blocks, where the
// side-signed pure rate plus premium is clamped to zero unless the pair
// allows negative rollover.
func pendingRolloverAcc(state *PairRollover, params *RolloverParams, long bool, block uint64) *big.Int {
	rate := fixedmath.Copy(state.LastPureRatePerBlock)
	if !long {
		rate.Neg(rate)
	}
	rate.Add(rate, state.BrokerPremium)
	if rate.Sign() < 0 && !params.AllowNegative {
		rate.SetInt64(0)
	}

	acc := fixedmath.Copy(state.AccLong)
	if !long {
		acc = fixedmath.Copy(state.AccShort)
	}
	elapsed := new(big.Int).SetUint64(block - state.LastUpdateBlock)
	return acc.Add(acc, elapsed.Mul(elapsed, rate))
}
