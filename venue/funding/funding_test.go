package funding

import (
	"errors"
	"math/big"
	"testing"

	"perpcore/fixedmath"
	"perpcore/venue/common"
)

func TestPendingFundingIdempotentAtHeight(t *testing.T) {
	state := newMockEngineState()
	state.fundingParams[1] = defaultFundingParams()
	state.openInterest[1] = &PairOpenInterest{Long: scaled(500), Short: scaled(200)}

	engine := newTestEngine(state)
	engine.SetBlockHeight(50)

	first, err := engine.PendingFunding(1)
	if err != nil {
		t.Fatalf("pending funding: %v", err)
	}
	second, err := engine.PendingFunding(1)
	if err != nil {
		t.Fatalf("pending funding again: %v", err)
	}
	if first.AccPerOiLong.Cmp(second.AccPerOiLong) != 0 ||
		first.AccPerOiShort.Cmp(second.AccPerOiShort) != 0 ||
		first.RatePerBlock.Cmp(second.RatePerBlock) != 0 {
		t.Fatalf("projection not idempotent: %+v vs %+v", first, second)
	}
}

func TestStoreAccFundingFeesIdempotentSameBlock(t *testing.T) {
	state := newMockEngineState()
	state.fundingParams[1] = defaultFundingParams()
	state.openInterest[1] = &PairOpenInterest{Long: scaled(500), Short: scaled(200)}

	engine := newTestEngine(state)
	engine.SetBlockHeight(10)
	if err := engine.StoreAccFundingFees(1); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	committed := state.fundingStates[1].Clone()

	if err := engine.StoreAccFundingFees(1); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	after := state.fundingStates[1]
	if committed.AccPerOiLong.Cmp(after.AccPerOiLong) != 0 ||
		committed.AccPerOiShort.Cmp(after.AccPerOiShort) != 0 {
		t.Fatalf("same-height recommit changed accumulators: %v vs %v", committed, after)
	}
}

func TestLongHeavyImbalanceChargesLongs(t *testing.T) {
	state := newMockEngineState()
	state.fundingParams[1] = defaultFundingParams()
	state.openInterest[1] = &PairOpenInterest{Long: scaled(900), Short: scaled(300)}

	engine := newTestEngine(state)
	engine.SetBlockHeight(1000)
	if err := engine.StoreAccFundingFees(1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got := state.fundingStates[1]
	if got.AccPerOiLong.Sign() <= 0 {
		t.Fatalf("long accumulator should charge longs, got %s", got.AccPerOiLong)
	}
	if got.AccPerOiShort.Sign() >= 0 {
		t.Fatalf("short accumulator should credit shorts, got %s", got.AccPerOiShort)
	}
	if got.LastRatePerBlock.Sign() <= 0 {
		t.Fatalf("rate should be positive under long pressure, got %s", got.LastRatePerBlock)
	}
}

func TestFundingRateNeverExceedsBound(t *testing.T) {
	state := newMockEngineState()
	params := defaultFundingParams()
	state.fundingParams[1] = params
	state.openInterest[1] = &PairOpenInterest{Long: scaled(1_000_000), Short: big.NewInt(0)}

	engine := newTestEngine(state)
	for height := uint64(100); height <= 100_000; height += 9_900 {
		engine.SetBlockHeight(height)
		if err := engine.StoreAccFundingFees(1); err != nil {
			t.Fatalf("commit at %d: %v", height, err)
		}
		rate := state.fundingStates[1].LastRatePerBlock
		if rate.CmpAbs(params.MaxRatePerBlock) > 0 {
			t.Fatalf("rate %s exceeds bound %s at height %d", rate, params.MaxRatePerBlock, height)
		}
	}
}

func TestRateConvergesTowardTargetWithoutOvershoot(t *testing.T) {
	state := newMockEngineState()
	params := defaultFundingParams()
	state.fundingParams[1] = params
	state.openInterest[1] = &PairOpenInterest{Long: scaled(1_000_000), Short: big.NewInt(0)}

	engine := newTestEngine(state)
	var prev *big.Int
	for height := uint64(10); height <= 2_000; height += 10 {
		engine.SetBlockHeight(height)
		if err := engine.StoreAccFundingFees(1); err != nil {
			t.Fatalf("commit at %d: %v", height, err)
		}
		rate := state.fundingStates[1].LastRatePerBlock
		if rate.Sign() < 0 {
			t.Fatalf("rate crossed zero against a one-sided book: %s", rate)
		}
		if prev != nil && rate.Cmp(prev) < 0 {
			t.Fatalf("rate moved away from target: %s after %s", rate, prev)
		}
		prev = rate
	}
}

func TestPendingFundingRejectsStaleHeight(t *testing.T) {
	state := newMockEngineState()
	state.fundingParams[1] = defaultFundingParams()
	state.openInterest[1] = &PairOpenInterest{Long: scaled(10), Short: scaled(10)}

	engine := newTestEngine(state)
	engine.SetBlockHeight(20)
	if err := engine.StoreAccFundingFees(1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	engine.SetBlockHeight(5)
	if _, err := engine.PendingFunding(1); !errors.Is(err, errStaleBlock) {
		t.Fatalf("expected stale block error, got %v", err)
	}
}

func TestUnconfiguredPairRejected(t *testing.T) {
	engine := newTestEngine(newMockEngineState())
	if _, err := engine.PendingFunding(7); !errors.Is(err, errPairNotFound) {
		t.Fatalf("expected pair not found, got %v", err)
	}
}

func TestPausedModuleBlocksCommit(t *testing.T) {
	state := newMockEngineState()
	state.fundingParams[1] = defaultFundingParams()

	engine := newTestEngine(state)
	engine.SetPauses(mockPauses{common.ModuleFunding: true})
	if err := engine.StoreAccFundingFees(1); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	if _, err := engine.PendingFunding(1); err != nil {
		t.Fatalf("read path should stay open while paused: %v", err)
	}
}

func TestNormalizedOiDeltaClampsToOne(t *testing.T) {
	oi := &PairOpenInterest{Long: scaled(100), Short: big.NewInt(0)}
	delta := normalizedOiDelta(oi, big.NewInt(1))
	if delta.Cmp(fixedmath.One) != 0 {
		t.Fatalf("one-sided book should normalize to one unit, got %s", delta)
	}

	balanced := normalizedOiDelta(&PairOpenInterest{Long: scaled(5), Short: scaled(5)}, scaled(10))
	if balanced.Sign() != 0 {
		t.Fatalf("balanced book should normalize to zero, got %s", balanced)
	}

	empty := normalizedOiDelta(&PairOpenInterest{Long: big.NewInt(0), Short: big.NewInt(0)}, big.NewInt(0))
	if empty.Sign() != 0 {
		t.Fatalf("empty book should normalize to zero, got %s", empty)
	}
}

func TestTargetRateSaturatesBelowMax(t *testing.T) {
	params := defaultFundingParams()
	target := targetRate(fixedmath.Copy(fixedmath.One), params)
	if target.Sign() <= 0 {
		t.Fatalf("positive imbalance must give positive target, got %s", target)
	}
	if target.Cmp(params.MaxRatePerBlock) > 0 {
		t.Fatalf("target %s exceeds max %s", target, params.MaxRatePerBlock)
	}

	negated := targetRate(new(big.Int).Neg(fixedmath.One), params)
	if negated.Sign() >= 0 {
		t.Fatalf("negative imbalance must give negative target, got %s", negated)
	}
	if new(big.Int).Neg(negated).Cmp(target) != 0 {
		t.Fatalf("symmetric scale percents should mirror: %s vs %s", target, negated)
	}
}

func TestSpringSpeedSelection(t *testing.T) {
	params := defaultFundingParams()

	full := springSpeed(big.NewInt(10), big.NewInt(100), params)
	if full.Cmp(params.SpringFactor) != 0 {
		t.Fatalf("diverging target should use full spring, got %s", full)
	}

	down := springSpeed(big.NewInt(100), big.NewInt(10), params)
	want := fixedmath.MulDiv(params.SpringFactor, new(big.Int).SetUint64(params.DownScaleP), big.NewInt(100))
	if down.Cmp(want) != 0 {
		t.Fatalf("converging target should use down-scaled spring, got %s want %s", down, want)
	}

	crossing := springSpeed(big.NewInt(-100), big.NewInt(10), params)
	wantCross := fixedmath.MulDiv(params.SpringFactor, new(big.Int).SetUint64(params.UpScaleP), big.NewInt(100))
	if crossing.Cmp(wantCross) != 0 {
		t.Fatalf("sign crossing should use up-scaled spring, got %s want %s", crossing, wantCross)
	}
}
