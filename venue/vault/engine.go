package vault

import (
	"errors"
	"math/big"
	"time"

	"perpcore/core/events"
	"perpcore/core/types"
	"perpcore/fixedmath"
	"perpcore/venue/common"
)

const secondsPerDay = 86_400

var (
	errNilState          = errors.New("vault engine: state not configured")
	errNilLedger         = errors.New("vault engine: asset ledger not configured")
	errInvalidAmount     = errors.New("vault engine: amount must be positive")
	errMaxSupplyExceeded = errors.New("vault engine: share supply cap exceeded")
	errInsufficientShare = errors.New("vault engine: insufficient share balance")
	errSolvencyBound     = errors.New("vault engine: operation breaches pnl solvency bound")
	errDailyCapExceeded  = errors.New("vault engine: daily pnl circuit breaker tripped")
	errEpochPending      = errors.New("vault engine: epoch advance outstanding")
	errNoEpochPending    = errors.New("vault engine: no epoch advance outstanding")
	errWrongEpoch        = errors.New("vault engine: request not redeemable this epoch")
	errRequestNotFound   = errors.New("vault engine: withdraw request not found")
	errRequestExists     = errors.New("vault engine: withdraw request already queued for epoch")
	errDepositNotFound   = errors.New("vault engine: locked deposit not found")
	errDepositLocked     = errors.New("vault engine: deposit still locked")
	errNotReceiptHolder  = errors.New("vault engine: caller does not hold the deposit receipt")
	errLockDuration      = errors.New("vault engine: lock duration out of range")
)

type engineState interface {
	VaultState() (*VaultState, error)
	PutVaultState(*VaultState) error
	ShareBalance(owner [20]byte) (*big.Int, error)
	PutShareBalance(owner [20]byte, shares *big.Int) error
	WithdrawRequest(owner [20]byte, unlockEpoch uint64) (*big.Int, error)
	PutWithdrawRequest(owner [20]byte, unlockEpoch uint64, shares *big.Int) error
	DeleteWithdrawRequest(owner [20]byte, unlockEpoch uint64) error
	LockedDeposit(id uint64) (*LockedDeposit, error)
	PutLockedDeposit(*LockedDeposit) error
	DeleteLockedDeposit(id uint64) error
	NextLockedDepositID() (uint64, error)
}

// AssetLedger moves the settlement asset between the vault pool and
// external parties. Moves are exact-amount and assumed atomic with the call
// they are part of.
type AssetLedger interface {
	Pull(from [20]byte, amount *big.Int) error
	Push(to [20]byte, amount *big.Int) error
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine owns the vault's share pricing and PnL accounting. Every committing
// operation stages its changes on a copy of the state, validates the
// solvency bound and the supply/daily caps, and only then persists and
// dispatches transfers.
type Engine struct {
	state   engineState
	ledger  AssetLedger
	emitter events.Emitter
	pauses  common.PauseView
	params  *Params
	nowFn   func() int64
}

// NewEngine creates a vault engine with a no-op emitter and wall-clock time.
func NewEngine(params *Params) *Engine {
	return &Engine{
		params:  params.Clone(),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the asset-transfer collaborator.
func (e *Engine) SetLedger(ledger AssetLedger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause switchboard consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now != nil {
		e.nowFn = now
	}
}

// Params returns a copy of the configured limits.
func (e *Engine) Params() *Params { return e.params.Clone() }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if err := e.params.Validate(); err != nil {
		return err
	}
	return common.Guard(e.pauses, common.ModuleVault)
}

func (e *Engine) loadState() (*VaultState, error) {
	state, err := e.state.VaultState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &VaultState{
			TotalShares:        big.NewInt(0),
			AccRewardsPerToken: big.NewInt(0),
			AccPnlPerToken:     big.NewInt(0),
			AccPnlPerTokenUsed: big.NewInt(0),
			DailyAccPnlDelta:   big.NewInt(0),
			MaxSupply:          big.NewInt(0),
			CurrentMaxSupply:   big.NewInt(0),
		}
		state.ShareToAssetPrice = state.SharePrice()
	}
	return state.Clone(), nil
}

func (e *Engine) shareBalance(owner [20]byte) (*big.Int, error) {
	bal, err := e.state.ShareBalance(owner)
	if err != nil {
		return nil, err
	}
	return fixedmath.Copy(bal), nil
}

// refreshWindows lazily resets the daily PnL window and grows the supply cap
// when 24h windows are found to have elapsed. There is no periodic job; this
// runs at the head of every committing operation.
func (e *Engine) refreshWindows(state *VaultState, now int64) {
	if state.DailyWindowStart == 0 {
		state.DailyWindowStart = now
	} else if now-state.DailyWindowStart >= secondsPerDay {
		state.DailyAccPnlDelta = big.NewInt(0)
		state.DailyWindowStart = now
	}

	if state.SupplyWindowStart == 0 {
		state.SupplyWindowStart = now
		return
	}
	days := (now - state.SupplyWindowStart) / secondsPerDay
	if days <= 0 || e.params.MaxSupplyIncreaseDailyP == 0 {
		return
	}
	growthP := new(big.Int).SetUint64(e.params.MaxSupplyIncreaseDailyP)
	for i := int64(0); i < days; i++ {
		growth := fixedmath.MulDiv(state.CurrentMaxSupply, growthP, big.NewInt(100))
		state.CurrentMaxSupply.Add(state.CurrentMaxSupply, growth)
	}
	state.SupplyWindowStart += days * secondsPerDay
}

func checkSolvency(state *VaultState) error {
	if state.AccPnlPerToken.Cmp(state.MaxAccPnlPerToken()) > 0 {
		return errSolvencyBound
	}
	return nil
}

func (e *Engine) commit(state *VaultState) error {
	state.ShareToAssetPrice = state.SharePrice()
	if err := checkSolvency(state); err != nil {
		return err
	}
	return e.state.PutVaultState(state)
}

// SetSupplyCap records the configured share-supply cap as the growth base.
// The live cap is raised to the base when it lags it and keeps any daily
// growth already accrued beyond it.
func (e *Engine) SetSupplyCap(cap *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if cap == nil || cap.Sign() <= 0 {
		return errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	state.MaxSupply = fixedmath.Copy(cap)
	if state.CurrentMaxSupply.Cmp(state.MaxSupply) < 0 {
		state.CurrentMaxSupply = fixedmath.Copy(cap)
	}
	return e.commit(state)
}

// Deposit converts assets to shares at the committed share price and pulls
// the assets into the pool.
func (e *Engine) Deposit(owner [20]byte, assets *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if assets == nil || assets.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	e.refreshWindows(state, e.nowFn())

	shares := fixedmath.MulDiv(assets, fixedmath.One, state.SharePrice())
	if err := e.checkSupply(state, shares); err != nil {
		return nil, err
	}
	// Assets move first; a depositor whose pull fails must leave no
	// minted supply behind.
	if err := e.ledger.Pull(owner, assets); err != nil {
		return nil, err
	}
	if err := e.mintShares(state, owner, shares); err != nil {
		return nil, err
	}
	if err := e.commit(state); err != nil {
		return nil, err
	}
	e.emit(NewDepositEvent(owner, assets, shares, state))
	return shares, nil
}

// Mint converts a requested share amount to the asset cost, rounded against
// the depositor so the pool never undercollects.
func (e *Engine) Mint(owner [20]byte, shares *big.Int) (*big.Int, error) {
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
	e.refreshWindows(state, e.nowFn())

	assets := fixedmath.MulDivRoundUp(shares, state.SharePrice(), fixedmath.One)
	if err := e.checkSupply(state, shares); err != nil {
		return nil, err
	}
	if err := e.ledger.Pull(owner, assets); err != nil {
		return nil, err
	}
	if err := e.mintShares(state, owner, shares); err != nil {
		return nil, err
	}
	if err := e.commit(state); err != nil {
		return nil, err
	}
	e.emit(NewDepositEvent(owner, assets, shares, state))
	return assets, nil
}

func (e *Engine) checkSupply(state *VaultState, shares *big.Int) error {
	if shares.Sign() <= 0 {
		return errInvalidAmount
	}
	supply := new(big.Int).Add(state.TotalShares, shares)
	if state.CurrentMaxSupply.Sign() > 0 && supply.Cmp(state.CurrentMaxSupply) > 0 {
		return errMaxSupplyExceeded
	}
	return nil
}

func (e *Engine) mintShares(state *VaultState, owner [20]byte, shares *big.Int) error {
	if err := e.checkSupply(state, shares); err != nil {
		return err
	}
	bal, err := e.shareBalance(owner)
	if err != nil {
		return err
	}
	if err := e.state.PutShareBalance(owner, bal.Add(bal, shares)); err != nil {
		return err
	}
	state.TotalShares = new(big.Int).Add(state.TotalShares, shares)
	return nil
}

func (e *Engine) burnShares(state *VaultState, owner [20]byte, shares *big.Int) error {
	bal, err := e.shareBalance(owner)
	if err != nil {
		return err
	}
	if bal.Cmp(shares) < 0 {
		return errInsufficientShare
	}
	if err := e.state.PutShareBalance(owner, bal.Sub(bal, shares)); err != nil {
		return err
	}
	state.TotalShares = new(big.Int).Sub(state.TotalShares, shares)
	return nil
}
