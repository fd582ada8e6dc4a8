package vault

import (
	"errors"
	"math/big"
	"testing"

	"perpcore/core/events"
	"perpcore/fixedmath"
	"perpcore/venue/common"
)

func TestDepositMintsAtParPrice(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(nil)
	recorder := &events.Recorder{}
	engine.SetEmitter(recorder)
	owner := addr(0x01)

	shares, err := engine.Deposit(owner, units(1_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(units(1_000)) != 0 {
		t.Fatalf("shares = %s, want 1000", shares)
	}
	if got := state.shares[owner]; got.Cmp(units(1_000)) != 0 {
		t.Fatalf("share balance = %s, want 1000", got)
	}
	if state.state.TotalShares.Cmp(units(1_000)) != 0 {
		t.Fatalf("total shares = %s, want 1000", state.state.TotalShares)
	}
	if state.state.ShareToAssetPrice.Cmp(fixedmath.One) != 0 {
		t.Fatalf("share price = %s, want One", state.state.ShareToAssetPrice)
	}
	if len(ledger.pulls) != 1 || ledger.pulls[0].amount.Cmp(units(1_000)) != 0 {
		t.Fatalf("expected one pull of 1000, got %+v", ledger.pulls)
	}
	if got := recorder.ByType(EventTypeDeposit); len(got) != 1 {
		t.Fatalf("deposit events = %d, want 1", len(got))
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	engine, _, _, _ := newTestEngine(nil)
	if _, err := engine.Deposit(addr(0x01), units(0)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("zero deposit err = %v, want errInvalidAmount", err)
	}
	if _, err := engine.Deposit(addr(0x01), units(-5)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("negative deposit err = %v, want errInvalidAmount", err)
	}
}

func TestRewardLiftsSharePriceAndMintRoundsUp(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(nil)
	owner := addr(0x01)
	if _, err := engine.Deposit(owner, units(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.DistributeReward(addr(0x02), units(500)); err != nil {
		t.Fatalf("reward: %v", err)
	}
	// 500 rewards over 1000 shares lifts the price to 1.5.
	if state.state.ShareToAssetPrice.Cmp(perToken(150)) != 0 {
		t.Fatalf("share price = %s, want 1.5 units", state.state.ShareToAssetPrice)
	}

	// Deposit truncates shares in the pool's favor.
	shares, err := engine.Deposit(owner, units(5))
	if err != nil {
		t.Fatalf("deposit at premium: %v", err)
	}
	if shares.Cmp(units(3)) != 0 {
		t.Fatalf("shares = %s, want 3", shares)
	}

	// Mint rounds the asset cost up for the same reason.
	assets, err := engine.Mint(owner, units(3))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if assets.Cmp(units(5)) != 0 {
		t.Fatalf("mint cost = %s, want 5", assets)
	}
	last := ledger.pulls[len(ledger.pulls)-1]
	if last.amount.Cmp(units(5)) != 0 {
		t.Fatalf("mint pulled %s, want 5", last.amount)
	}
}

func TestDepositRespectsSupplyCap(t *testing.T) {
	engine, state, _, _ := newTestEngine(nil)
	state.state = &VaultState{
		TotalShares:      big.NewInt(0),
		MaxSupply:        units(1_500),
		CurrentMaxSupply: units(1_500),
	}
	if _, err := engine.Deposit(addr(0x01), units(1_000)); err != nil {
		t.Fatalf("deposit under cap: %v", err)
	}
	if _, err := engine.Deposit(addr(0x01), units(1_000)); !errors.Is(err, errMaxSupplyExceeded) {
		t.Fatalf("deposit over cap err = %v, want errMaxSupplyExceeded", err)
	}
}

func TestSupplyCapGrowsDaily(t *testing.T) {
	engine, state, _, clock := newTestEngine(nil)
	state.state = &VaultState{
		TotalShares:       big.NewInt(0),
		MaxSupply:         units(1_000),
		CurrentMaxSupply:  units(1_000),
		SupplyWindowStart: clock.now,
	}
	if _, err := engine.Deposit(addr(0x01), units(1_020)); !errors.Is(err, errMaxSupplyExceeded) {
		t.Fatalf("deposit over cap err = %v, want errMaxSupplyExceeded", err)
	}
	// Two percent growth after one elapsed day admits the same deposit.
	clock.now += secondsPerDay
	if _, err := engine.Deposit(addr(0x01), units(1_020)); err != nil {
		t.Fatalf("deposit after growth: %v", err)
	}
}

func TestDepositFailedPullMintsNothing(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(nil)
	owner := addr(0x01)
	ledger.pullErr = errors.New("pool account underfunded")

	if _, err := engine.Deposit(owner, units(1_000)); !errors.Is(err, ledger.pullErr) {
		t.Fatalf("deposit err = %v, want the pull error", err)
	}
	if state.state != nil {
		t.Fatalf("vault state persisted after failed pull: %+v", state.state)
	}
	if bal, ok := state.shares[owner]; ok {
		t.Fatalf("share balance = %s, want none", bal)
	}

	ledger.pullErr = nil
	if _, err := engine.Deposit(owner, units(1_000)); err != nil {
		t.Fatalf("deposit after recovery: %v", err)
	}
	if state.state.TotalShares.Cmp(units(1_000)) != 0 {
		t.Fatalf("total shares = %s, want 1000", state.state.TotalShares)
	}
}

func TestSetSupplyCapSeedsGrowthBase(t *testing.T) {
	engine, state, _, _ := newTestEngine(nil)

	if err := engine.SetSupplyCap(units(0)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("zero cap err = %v, want errInvalidAmount", err)
	}
	if err := engine.SetSupplyCap(units(1_500)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	if state.state.MaxSupply.Cmp(units(1_500)) != 0 {
		t.Fatalf("max supply = %s, want 1500", state.state.MaxSupply)
	}
	if state.state.CurrentMaxSupply.Cmp(units(1_500)) != 0 {
		t.Fatalf("live cap = %s, want 1500", state.state.CurrentMaxSupply)
	}

	if _, err := engine.Deposit(addr(0x01), units(1_000)); err != nil {
		t.Fatalf("deposit under cap: %v", err)
	}
	if _, err := engine.Deposit(addr(0x01), units(1_000)); !errors.Is(err, errMaxSupplyExceeded) {
		t.Fatalf("deposit over cap err = %v, want errMaxSupplyExceeded", err)
	}

	// A live cap that already grew past the base is kept.
	state.state.CurrentMaxSupply = units(2_000)
	if err := engine.SetSupplyCap(units(1_800)); err != nil {
		t.Fatalf("reseed cap: %v", err)
	}
	if state.state.MaxSupply.Cmp(units(1_800)) != 0 {
		t.Fatalf("max supply = %s, want 1800", state.state.MaxSupply)
	}
	if state.state.CurrentMaxSupply.Cmp(units(2_000)) != 0 {
		t.Fatalf("live cap = %s, want 2000", state.state.CurrentMaxSupply)
	}
}

func TestSendAssetsEnforcesSolvencyBound(t *testing.T) {
	params := defaultVaultParams()
	params.MaxDailyAccPnlDelta = new(big.Int).Mul(fixedmath.One, big.NewInt(10))
	engine, state, ledger, _ := newTestEngine(params)
	if _, err := engine.Deposit(addr(0x01), units(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	trader := addr(0x02)
	if err := engine.SendAssets(trader, units(600)); err != nil {
		t.Fatalf("send within bound: %v", err)
	}
	if state.state.AccPnlPerToken.Cmp(perToken(60)) != 0 {
		t.Fatalf("acc pnl = %s, want 0.60 units", state.state.AccPnlPerToken)
	}
	// Share price ignores PnL until an epoch commits it.
	if state.state.ShareToAssetPrice.Cmp(fixedmath.One) != 0 {
		t.Fatalf("share price = %s, want One", state.state.ShareToAssetPrice)
	}
	if len(ledger.pushs) != 1 || ledger.pushs[0].party != trader {
		t.Fatalf("expected one push to trader, got %+v", ledger.pushs)
	}

	if err := engine.SendAssets(trader, units(500)); !errors.Is(err, errSolvencyBound) {
		t.Fatalf("send past bound err = %v, want errSolvencyBound", err)
	}
	// Rejected sends must not move the accumulator or the ledger.
	if state.state.AccPnlPerToken.Cmp(perToken(60)) != 0 {
		t.Fatalf("acc pnl moved on rejected send: %s", state.state.AccPnlPerToken)
	}
	if len(ledger.pushs) != 1 {
		t.Fatalf("rejected send reached the ledger: %+v", ledger.pushs)
	}
}

func TestSendAssetsDailyBreakerResets(t *testing.T) {
	engine, _, _, clock := newTestEngine(nil)
	if _, err := engine.Deposit(addr(0x01), units(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	trader := addr(0x02)
	if err := engine.SendAssets(trader, units(400)); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := engine.SendAssets(trader, units(200)); !errors.Is(err, errDailyCapExceeded) {
		t.Fatalf("breaker err = %v, want errDailyCapExceeded", err)
	}
	clock.now += secondsPerDay
	if err := engine.SendAssets(trader, units(200)); err != nil {
		t.Fatalf("send in fresh window: %v", err)
	}
}

func TestReceiveAssetsLowersPnl(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(nil)
	if _, err := engine.Deposit(addr(0x01), units(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	trader := addr(0x02)
	if err := engine.ReceiveAssets(trader, units(500)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	want := new(big.Int).Neg(perToken(50))
	if state.state.AccPnlPerToken.Cmp(want) != 0 {
		t.Fatalf("acc pnl = %s, want -0.50 units", state.state.AccPnlPerToken)
	}
	last := ledger.pulls[len(ledger.pulls)-1]
	if last.party != trader || last.amount.Cmp(units(500)) != 0 {
		t.Fatalf("expected pull of 500 from trader, got %+v", last)
	}
}

func TestPausedVaultRejectsMutations(t *testing.T) {
	engine, _, _, _ := newTestEngine(nil)
	engine.SetPauses(mockPauses{common.ModuleVault: true})
	if _, err := engine.Deposit(addr(0x01), units(100)); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("deposit err = %v, want ErrModulePaused", err)
	}
	if err := engine.SendAssets(addr(0x02), units(100)); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("send err = %v, want ErrModulePaused", err)
	}
}
