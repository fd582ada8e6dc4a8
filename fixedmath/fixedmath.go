package fixedmath

import "math/big"

// One is the 18-decimal fixed-point unit shared by every accumulator in the
// venue. Rates, percentages and per-share indexes are all expressed against
// this scale.
var One = mustBigInt("1000000000000000000")

// Hundred is One scaled to a whole percent denominator.
var Hundred = new(big.Int).Mul(One, big.NewInt(100))

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// MulDiv computes a*b/den truncated toward zero. Truncation direction is part
// of the settlement contract: collateral conservation depends on every caller
// rounding the same way.
func MulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den)
}

// MulDivRoundUp computes a*b/den rounded away from zero when a remainder
// exists.
func MulDivRoundUp(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).QuoRem(product, den, new(big.Int))
	if rem.Sign() == 0 {
		return quo
	}
	if (product.Sign() < 0) != (den.Sign() < 0) {
		return quo.Sub(quo, big.NewInt(1))
	}
	return quo.Add(quo, big.NewInt(1))
}

// MulOne computes a*b/One truncated toward zero.
func MulOne(a, b *big.Int) *big.Int {
	return MulDiv(a, b, One)
}

// DivOne computes a*One/b truncated toward zero.
func DivOne(a, b *big.Int) *big.Int {
	return MulDiv(a, One, b)
}

// Clamp bounds v to [-bound, bound]. The bound must be non-negative. A fresh
// big.Int is returned so callers may mutate the result freely.
func Clamp(v, bound *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if bound == nil || bound.Sign() < 0 {
		return new(big.Int).Set(v)
	}
	if v.CmpAbs(bound) <= 0 {
		return new(big.Int).Set(v)
	}
	if v.Sign() < 0 {
		return new(big.Int).Neg(bound)
	}
	return new(big.Int).Set(bound)
}

// Max returns a fresh copy of the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Min returns a fresh copy of the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Copy returns a defensive copy, mapping nil to zero.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
