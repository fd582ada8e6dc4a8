package fixedmath

import "math/big"

// Decay evaluates e^(-m) for a non-negative magnitude m expressed against
// One. It is shared by the funding-rate spring model and the dynamic-spread
// volume tracker, so both relax on exactly the same curve.
//
// Three regimes keep the approximation cheap across the whole input range:
// a Padé [2/2] rational for small magnitudes, a binary-exponent expansion of
// 2^(-m*log2(e)) for mid magnitudes, and zero once the true value would
// truncate below one unit of One anyway.
var (
	// log2E is log2(e) against One.
	log2E = mustBigInt("1442695040888963407")

	// decaySmall bounds the Padé regime at 1/8.
	decaySmall = new(big.Int).Rsh(One, 3)

	// decayCutoff is ln(1e18): beyond it e^-m < 1/One, so the result is 0.
	decayCutoff = mustBigInt("41446531673892822312")

	// decayLUT holds 2^(-2^-i) for i = 1..10 against One. Fractional bits
	// below 2^-10 are dropped; the residual error is below 7 bps, inside the
	// tolerance of the convergence model it feeds.
	decayLUT = []*big.Int{
		mustBigInt("707106781186547524"),
		mustBigInt("840896415253714543"),
		mustBigInt("917004043204671232"),
		mustBigInt("957603280698573647"),
		mustBigInt("978572062087700135"),
		mustBigInt("989228013193975484"),
		mustBigInt("994599423483633176"),
		mustBigInt("997296056085470126"),
		mustBigInt("998647112890970174"),
		mustBigInt("999323327502650752"),
	}
)

// Decay returns e^(-m) against One. Negative inputs are treated as zero
// magnitude and return One.
func Decay(m *big.Int) *big.Int {
	if m == nil || m.Sign() <= 0 {
		return new(big.Int).Set(One)
	}
	if m.Cmp(decayCutoff) > 0 {
		return big.NewInt(0)
	}
	if m.Cmp(decaySmall) < 0 {
		return decayPade(m)
	}
	return decayBinary(m)
}

// decayPade evaluates the Padé [2/2] rational form
// (12 - 6m + m^2) / (12 + 6m + m^2) with every term against One.
func decayPade(m *big.Int) *big.Int {
	twelve := new(big.Int).Mul(One, big.NewInt(12))
	sixM := new(big.Int).Mul(m, big.NewInt(6))
	mSq := MulOne(m, m)

	num := new(big.Int).Sub(twelve, sixM)
	num.Add(num, mSq)
	den := new(big.Int).Add(twelve, sixM)
	den.Add(den, mSq)
	return DivOne(num, den)
}

// decayBinary rewrites e^-m as 2^-y with y = m*log2(e), applies the integer
// bits of y as a right shift and the top ten fractional bits through the
// lookup table.
func decayBinary(m *big.Int) *big.Int {
	y := MulOne(m, log2E)
	intPart := new(big.Int).Quo(y, One)
	frac := new(big.Int).Rem(y, One)

	result := new(big.Int).Set(One)
	// Walk the fractional bits: bit i set means multiply by 2^(-2^-i).
	step := new(big.Int).Rsh(One, 1)
	for i := 0; i < len(decayLUT); i++ {
		if frac.Cmp(step) >= 0 {
			frac.Sub(frac, step)
			result = MulOne(result, decayLUT[i])
		}
		step = new(big.Int).Rsh(step, 1)
	}

	shift := uint(intPart.Uint64())
	return result.Rsh(result, shift)
}
