package vault

import (
	"math/big"

	"perpcore/fixedmath"
)

// RequestWithdraw queues shares for redemption in a future epoch. The lock
// length grows with the vault's collateralization: a thinly backed vault
// releases capital sooner, a richly backed one holds it longer. Requests are
// rejected while an epoch advance is outstanding.
func (e *Engine) RequestWithdraw(owner [20]byte, shares *big.Int) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return 0, err
	}
	if state.EpochAdvanceRequested {
		return 0, errEpochPending
	}
	bal, err := e.shareBalance(owner)
	if err != nil {
		return 0, err
	}
	if bal.Cmp(shares) < 0 {
		return 0, errInsufficientShare
	}

	unlockEpoch := state.CurrentEpoch + e.params.LockEpochs(state.CollateralizationP())
	existing, err := e.state.WithdrawRequest(owner, unlockEpoch)
	if err != nil {
		return 0, err
	}
	queued := fixedmath.Copy(existing)
	queued.Add(queued, shares)
	if err := e.state.PutWithdrawRequest(owner, unlockEpoch, queued); err != nil {
		return 0, err
	}
	e.emit(NewWithdrawRequestedEvent(owner, shares, unlockEpoch, state))
	return unlockEpoch, nil
}

// CancelWithdraw reverses a not-yet-consumed request for the given epoch.
func (e *Engine) CancelWithdraw(owner [20]byte, unlockEpoch uint64, shares *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if shares == nil || shares.Sign() <= 0 {
		return errInvalidAmount
	}
	queued, err := e.state.WithdrawRequest(owner, unlockEpoch)
	if err != nil {
		return err
	}
	if queued == nil || queued.Sign() == 0 {
		return errRequestNotFound
	}
	if queued.Cmp(shares) < 0 {
		return errInsufficientShare
	}
	remaining := new(big.Int).Sub(queued, shares)
	if remaining.Sign() == 0 {
		if err := e.state.DeleteWithdrawRequest(owner, unlockEpoch); err != nil {
			return err
		}
	} else if err := e.state.PutWithdrawRequest(owner, unlockEpoch, remaining); err != nil {
		return err
	}
	e.emit(NewWithdrawCancelledEvent(owner, shares, unlockEpoch))
	return nil
}

// Redeem burns queued shares and pushes the corresponding assets to the
// owner. It is permitted only in the exact epoch the request unlocks, only
// against that epoch's bucket, and never while an epoch advance is
// outstanding.
func (e *Engine) Redeem(owner [20]byte, shares *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if state.EpochAdvanceRequested {
		return nil, errEpochPending
	}
	queued, err := e.state.WithdrawRequest(owner, state.CurrentEpoch)
	if err != nil {
		return nil, err
	}
	if queued == nil || queued.Sign() == 0 {
		return nil, errWrongEpoch
	}
	if queued.Cmp(shares) < 0 {
		return nil, errInsufficientShare
	}
	e.refreshWindows(state, e.nowFn())

	assets := fixedmath.MulDiv(shares, state.SharePrice(), fixedmath.One)
	if err := e.burnShares(state, owner, shares); err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(queued, shares)
	if remaining.Sign() == 0 {
		if err := e.state.DeleteWithdrawRequest(owner, state.CurrentEpoch); err != nil {
			return nil, err
		}
	} else if err := e.state.PutWithdrawRequest(owner, state.CurrentEpoch, remaining); err != nil {
		return nil, err
	}
	if err := e.commit(state); err != nil {
		return nil, err
	}
	if err := e.ledger.Push(owner, assets); err != nil {
		return nil, err
	}
	e.emit(NewRedeemedEvent(owner, shares, assets, state))
	return assets, nil
}
