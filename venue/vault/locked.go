package vault

import (
	"math/big"

	"perpcore/fixedmath"
)

// DepositWithDiscount mints shares on the deposited assets plus a discount
// that rewards locking capital into a well-collateralized vault. The shares
// stay bound to the deposit record until unlock; the record doubles as the
// transferable receipt.
func (e *Engine) DepositWithDiscount(owner [20]byte, assets *big.Int, lockDuration int64) (*LockedDeposit, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if assets == nil || assets.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if lockDuration <= 0 || lockDuration > e.params.MaxLockDuration {
		return nil, errLockDuration
	}
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	e.refreshWindows(state, now)

	discountP := e.params.LockDiscountP(state.CollateralizationP(), lockDuration)
	assetsDiscount := fixedmath.MulDiv(assets, discountP, fixedmath.Hundred)
	credited := new(big.Int).Add(assets, assetsDiscount)
	shares := fixedmath.MulDiv(credited, fixedmath.One, state.SharePrice())
	if shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	supply := new(big.Int).Add(state.TotalShares, shares)
	if state.CurrentMaxSupply.Sign() > 0 && supply.Cmp(state.CurrentMaxSupply) > 0 {
		return nil, errMaxSupplyExceeded
	}

	// Assets move first; a failed pull must leave neither a deposit
	// record nor minted supply behind.
	if err := e.ledger.Pull(owner, assets); err != nil {
		return nil, err
	}
	id, err := e.state.NextLockedDepositID()
	if err != nil {
		return nil, err
	}
	deposit := &LockedDeposit{
		ID:              id,
		Owner:           owner,
		Shares:          shares,
		AssetsDeposited: fixedmath.Copy(assets),
		AssetsDiscount:  assetsDiscount,
		LockStart:       now,
		LockDuration:    lockDuration,
	}
	if err := e.state.PutLockedDeposit(deposit); err != nil {
		return nil, err
	}
	state.TotalShares = supply
	if err := e.commit(state); err != nil {
		return nil, err
	}
	e.emit(NewLockedDepositCreatedEvent(deposit, state))
	return deposit.Clone(), nil
}

// TransferDepositReceipt moves receipt ownership, and with it the right to
// unlock.
func (e *Engine) TransferDepositReceipt(id uint64, from, to [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	deposit, err := e.state.LockedDeposit(id)
	if err != nil {
		return err
	}
	if deposit == nil {
		return errDepositNotFound
	}
	if deposit.Owner != from {
		return errNotReceiptHolder
	}
	deposit = deposit.Clone()
	deposit.Owner = to
	return e.state.PutLockedDeposit(deposit)
}

// UnlockDeposit burns the receipt after the lock elapses, amortizes the
// discount into the PnL accumulator exactly once, and releases the shares to
// the receipt holder. The amortization is a one-time cost to the vault and
// is rejected outright if it would breach the solvency bound.
func (e *Engine) UnlockDeposit(caller [20]byte, id uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	deposit, err := e.state.LockedDeposit(id)
	if err != nil {
		return err
	}
	if deposit == nil {
		return errDepositNotFound
	}
	if deposit.Owner != caller {
		return errNotReceiptHolder
	}
	now := e.nowFn()
	if now < deposit.UnlocksAt() {
		return errDepositLocked
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	e.refreshWindows(state, now)

	if deposit.AssetsDiscount.Sign() > 0 && state.TotalShares.Sign() > 0 {
		deltaPerToken := fixedmath.MulDiv(deposit.AssetsDiscount, fixedmath.One, state.TotalShares)
		next := new(big.Int).Add(state.AccPnlPerToken, deltaPerToken)
		if next.Cmp(state.MaxAccPnlPerToken()) > 0 {
			return errSolvencyBound
		}
		state.AccPnlPerToken = next
	}

	bal, err := e.shareBalance(caller)
	if err != nil {
		return err
	}
	if err := e.state.PutShareBalance(caller, bal.Add(bal, deposit.Shares)); err != nil {
		return err
	}
	if err := e.state.DeleteLockedDeposit(id); err != nil {
		return err
	}
	if err := e.commit(state); err != nil {
		return err
	}
	e.emit(NewLockedDepositUnlockedEvent(deposit, state))
	return nil
}
