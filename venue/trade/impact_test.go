package trade

import (
	"math/big"
	"testing"

	"perpcore/fixedmath"
)

func dynamicParams() *PairParams {
	params := defaultPairParams()
	params.DynamicSpreadEnabled = true
	params.DecayRatePerSec = fixedmath.One
	params.NeutralThreshold = big.NewInt(0)
	params.ImpactDepth = big.NewInt(10_000)
	params.ImpactSensitivity = fixedmath.One
	params.MaxPriceImpactP = scaled(100)
	return params
}

func TestTakerBuys(t *testing.T) {
	cases := []struct {
		long, opening, want bool
	}{
		{true, true, true},
		{true, false, false},
		{false, true, false},
		{false, false, true},
	}
	for _, tc := range cases {
		if got := takerBuys(tc.long, tc.opening); got != tc.want {
			t.Fatalf("takerBuys(long=%v, opening=%v) = %v, want %v", tc.long, tc.opening, got, tc.want)
		}
	}
}

func TestPriceImpactStaticOnly(t *testing.T) {
	params := defaultPairParams()
	params.SpreadP = new(big.Int).Quo(fixedmath.One, big.NewInt(10))
	spread := &DynamicSpread{BuyVolume: big.NewInt(0), SellVolume: big.NewInt(0)}

	impactP := priceImpactP(params, spread, big.NewInt(5_000), true, 1_000)
	if impactP.Cmp(params.SpreadP) != 0 {
		t.Fatalf("impact = %s, want static spread %s", impactP, params.SpreadP)
	}
	// The tracker is untouched when dynamic spread is off.
	if spread.BuyVolume.Sign() != 0 {
		t.Fatalf("buy volume recorded with dynamic spread off: %s", spread.BuyVolume)
	}
}

func TestPriceImpactChargesDeepeningSide(t *testing.T) {
	params := dynamicParams()
	spread := &DynamicSpread{BuyVolume: big.NewInt(0), SellVolume: big.NewInt(0), LastUpdate: 1_000}

	// 5000 notional over 10000 depth squares to a quarter unit.
	impactP := priceImpactP(params, spread, big.NewInt(5_000), true, 1_000)
	want := new(big.Int).Quo(fixedmath.One, big.NewInt(4))
	if impactP.Cmp(want) != 0 {
		t.Fatalf("impact = %s, want %s", impactP, want)
	}
	if spread.BuyVolume.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("buy volume = %s, want 5000", spread.BuyVolume)
	}

	// Selling against the imbalance pays only the static spread.
	impactP = priceImpactP(params, spread, big.NewInt(2_000), false, 1_000)
	if impactP.Sign() != 0 {
		t.Fatalf("counter-imbalance impact = %s, want 0", impactP)
	}
}

func TestPriceImpactRespectsNeutralBand(t *testing.T) {
	params := dynamicParams()
	params.NeutralThreshold = big.NewInt(6_000)
	spread := &DynamicSpread{BuyVolume: big.NewInt(0), SellVolume: big.NewInt(0), LastUpdate: 1_000}

	if got := priceImpactP(params, spread, big.NewInt(5_000), true, 1_000); got.Sign() != 0 {
		t.Fatalf("inside neutral band impact = %s, want 0", got)
	}
	// The next buy pushes the imbalance 4000 past the threshold.
	got := priceImpactP(params, spread, big.NewInt(5_000), true, 1_000)
	want := fixedmath.MulOne(
		fixedmath.MulDiv(big.NewInt(4_000), fixedmath.One, big.NewInt(10_000)),
		fixedmath.MulDiv(big.NewInt(4_000), fixedmath.One, big.NewInt(10_000)),
	)
	if got.Cmp(want) != 0 {
		t.Fatalf("impact = %s, want %s", got, want)
	}
}

func TestPriceImpactSkipsCrossingTrade(t *testing.T) {
	params := dynamicParams()
	params.NeutralThreshold = big.NewInt(50)
	spread := &DynamicSpread{BuyVolume: big.NewInt(0), SellVolume: big.NewInt(100), LastUpdate: 1_000}

	// A buy of 180 flips the book from 100 sell-heavy to 80 buy-heavy:
	// past the neutral threshold, but smaller in magnitude than before,
	// so only the static spread applies.
	if got := priceImpactP(params, spread, big.NewInt(180), true, 1_000); got.Sign() != 0 {
		t.Fatalf("crossing trade impact = %s, want 0", got)
	}
	// Pushing the new buy side beyond the old magnitude is charged.
	if got := priceImpactP(params, spread, big.NewInt(40), true, 1_000); got.Sign() == 0 {
		t.Fatal("deepening trade escaped dynamic impact")
	}
}

func TestDecaySpreadAgesVolume(t *testing.T) {
	spread := &DynamicSpread{
		BuyVolume:  big.NewInt(10_000),
		SellVolume: big.NewInt(4_000),
		LastUpdate: 1_000,
	}
	rate := new(big.Int).Quo(fixedmath.One, big.NewInt(100))

	decaySpread(spread, rate, 1_010)
	if spread.LastUpdate != 1_010 {
		t.Fatalf("last update = %d, want 1010", spread.LastUpdate)
	}
	// Ten seconds at 0.01/s decays both sides by e^-0.1.
	if spread.BuyVolume.Cmp(big.NewInt(10_000)) >= 0 || spread.BuyVolume.Cmp(big.NewInt(9_000)) <= 0 {
		t.Fatalf("buy volume = %s, want just below 10000", spread.BuyVolume)
	}
	ratio := new(big.Int).Mul(spread.SellVolume, big.NewInt(10))
	diff := new(big.Int).Sub(ratio, new(big.Int).Mul(spread.BuyVolume, big.NewInt(4)))
	if diff.CmpAbs(big.NewInt(40)) > 0 {
		t.Fatalf("sides decayed unevenly: buy %s sell %s", spread.BuyVolume, spread.SellVolume)
	}

	// A stale clock never rewinds the tracker.
	decaySpread(spread, rate, 900)
	if spread.LastUpdate != 900 {
		t.Fatalf("last update = %d, want clamped to 900", spread.LastUpdate)
	}
}

func TestApplyImpactShiftsAgainstTaker(t *testing.T) {
	price := scaled(100)
	impactP := new(big.Int).Quo(fixedmath.One, big.NewInt(4))

	buy := applyImpact(price, impactP, true)
	want := new(big.Int).Add(scaled(100), new(big.Int).Quo(fixedmath.One, big.NewInt(4)))
	if buy.Cmp(want) != 0 {
		t.Fatalf("buy price = %s, want %s", buy, want)
	}
	sell := applyImpact(price, impactP, false)
	want = new(big.Int).Sub(scaled(100), new(big.Int).Quo(fixedmath.One, big.NewInt(4)))
	if sell.Cmp(want) != 0 {
		t.Fatalf("sell price = %s, want %s", sell, want)
	}

	if got := applyImpact(scaled(1), scaled(200), false); got.Sign() != 0 {
		t.Fatalf("sell price = %s, want floored at 0", got)
	}
}

func TestOpenTradeCancelsOnExcessImpact(t *testing.T) {
	params := dynamicParams()
	params.MaxPriceImpactP = new(big.Int).Quo(fixedmath.One, big.NewInt(10))
	h := newTestHarness(params)

	// 10000 notional over 10000 depth is a full unit of impact, over the cap.
	h.feed.record("req", scaled(100), false)
	_, reason, err := h.engine.OpenTrade(marketOrder(addr(0x01), true, 1_000, 10), "req")
	if err != nil || reason != CancelPriceImpact {
		t.Fatalf("reason=%s err=%v, want CancelPriceImpact", reason, err)
	}
}
