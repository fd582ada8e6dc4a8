package vault

import (
	"fmt"
	"math/big"

	"perpcore/fixedmath"
)

type mockEngineState struct {
	state    *VaultState
	shares   map[[20]byte]*big.Int
	requests map[string]*big.Int
	deposits map[uint64]*LockedDeposit
	nextID   uint64
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		shares:   make(map[[20]byte]*big.Int),
		requests: make(map[string]*big.Int),
		deposits: make(map[uint64]*LockedDeposit),
	}
}

func requestKey(owner [20]byte, epoch uint64) string {
	return fmt.Sprintf("%x/%d", owner, epoch)
}

func (m *mockEngineState) VaultState() (*VaultState, error) {
	return m.state.Clone(), nil
}

func (m *mockEngineState) PutVaultState(state *VaultState) error {
	m.state = state.Clone()
	return nil
}

func (m *mockEngineState) ShareBalance(owner [20]byte) (*big.Int, error) {
	return fixedmath.Copy(m.shares[owner]), nil
}

func (m *mockEngineState) PutShareBalance(owner [20]byte, shares *big.Int) error {
	m.shares[owner] = fixedmath.Copy(shares)
	return nil
}

func (m *mockEngineState) WithdrawRequest(owner [20]byte, unlockEpoch uint64) (*big.Int, error) {
	queued, ok := m.requests[requestKey(owner, unlockEpoch)]
	if !ok {
		return nil, nil
	}
	return fixedmath.Copy(queued), nil
}

func (m *mockEngineState) PutWithdrawRequest(owner [20]byte, unlockEpoch uint64, shares *big.Int) error {
	m.requests[requestKey(owner, unlockEpoch)] = fixedmath.Copy(shares)
	return nil
}

func (m *mockEngineState) DeleteWithdrawRequest(owner [20]byte, unlockEpoch uint64) error {
	delete(m.requests, requestKey(owner, unlockEpoch))
	return nil
}

func (m *mockEngineState) LockedDeposit(id uint64) (*LockedDeposit, error) {
	return m.deposits[id].Clone(), nil
}

func (m *mockEngineState) PutLockedDeposit(deposit *LockedDeposit) error {
	m.deposits[deposit.ID] = deposit.Clone()
	return nil
}

func (m *mockEngineState) DeleteLockedDeposit(id uint64) error {
	delete(m.deposits, id)
	return nil
}

func (m *mockEngineState) NextLockedDepositID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

type move struct {
	party  [20]byte
	amount *big.Int
}

type mockLedger struct {
	pulls   []move
	pushs   []move
	pullErr error
	pushErr error
}

func (m *mockLedger) Pull(from [20]byte, amount *big.Int) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulls = append(m.pulls, move{party: from, amount: fixedmath.Copy(amount)})
	return nil
}

func (m *mockLedger) Push(to [20]byte, amount *big.Int) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushs = append(m.pushs, move{party: to, amount: fixedmath.Copy(amount)})
	return nil
}

type mockPauses map[string]bool

func (m mockPauses) IsPaused(module string) bool { return m[module] }

func defaultVaultParams() *Params {
	return &Params{
		MaxDailyAccPnlDelta:     new(big.Int).Rsh(fixedmath.One, 1),
		MaxAccOpenPnlDelta:      new(big.Int).Rsh(fixedmath.One, 2),
		MaxSupplyIncreaseDailyP: 2,
		WithdrawLockThresholdsP: [2]uint64{110, 130},
		MaxDiscountP:            10,
		MaxDiscountThresholdP:   150,
		MaxLockDuration:         100_000,
		EpochDuration:           3_600,
	}
}

type testClock struct {
	now int64
}

func (c *testClock) unix() int64 { return c.now }

func newTestEngine(params *Params) (*Engine, *mockEngineState, *mockLedger, *testClock) {
	if params == nil {
		params = defaultVaultParams()
	}
	state := newMockEngineState()
	ledger := &mockLedger{}
	clock := &testClock{now: 1_000}
	engine := NewEngine(params)
	engine.SetState(state)
	engine.SetLedger(ledger)
	engine.SetNowFunc(clock.unix)
	return engine, state, ledger, clock
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func units(v int64) *big.Int { return big.NewInt(v) }

func perToken(hundredths int64) *big.Int {
	v := new(big.Int).Mul(fixedmath.One, big.NewInt(hundredths))
	return v.Quo(v, big.NewInt(100))
}
