package funding

import (
	"errors"
	"math/big"

	"perpcore/fixedmath"
)

var (
	errNilParams         = errors.New("funding engine: params not configured")
	errMaxRateBound      = errors.New("funding engine: max rate per block exceeds 1.0")
	errSpringFactor      = errors.New("funding engine: spring factor must be positive")
	errScalePercent      = errors.New("funding engine: scale percent exceeds 100")
	errInflectionBound   = errors.New("funding engine: inflection point exceeds 1.0")
	errOiCap             = errors.New("funding engine: open interest cap must be positive")
	errPremiumNegative   = errors.New("funding engine: broker premium cannot be negative")
	errRolloverRateBound = errors.New("funding engine: pure rate plus premium exceeds max rate per block")
)

// FundingParams shapes how a pair's funding rate converges toward the
// imbalance-driven target.
type FundingParams struct {
	// MaxRatePerBlock bounds the instantaneous rate, against fixedmath.One.
	MaxRatePerBlock *big.Int
	// SpringFactor is the per-block convergence speed of the damped spring.
	SpringFactor *big.Int
	// InflectionPoint shifts the normalized target curve, against
	// fixedmath.One.
	InflectionPoint *big.Int
	// UpScaleP and DownScaleP scale the spring factor (percent) when the
	// rate diverges across the sign boundary or converges toward the target.
	UpScaleP   uint64
	DownScaleP uint64
	// PosScaleP and NegScaleP scale the saturating target curve (percent)
	// for positive and negative imbalance.
	PosScaleP uint64
	NegScaleP uint64
	// OiCap floors the normalization denominator of the imbalance ratio.
	OiCap *big.Int
}

// Validate rejects out-of-range configuration before any state changes.
func (p *FundingParams) Validate() error {
	if p == nil {
		return errNilParams
	}
	if p.MaxRatePerBlock == nil || p.MaxRatePerBlock.Sign() < 0 || p.MaxRatePerBlock.Cmp(fixedmath.One) > 0 {
		return errMaxRateBound
	}
	if p.SpringFactor == nil || p.SpringFactor.Sign() <= 0 {
		return errSpringFactor
	}
	if p.UpScaleP > 100 || p.DownScaleP > 100 || p.PosScaleP > 100 || p.NegScaleP > 100 {
		return errScalePercent
	}
	if p.InflectionPoint != nil && p.InflectionPoint.CmpAbs(fixedmath.One) > 0 {
		return errInflectionBound
	}
	if p.OiCap == nil || p.OiCap.Sign() <= 0 {
		return errOiCap
	}
	return nil
}

// Clone returns a deep copy to protect internal references.
func (p *FundingParams) Clone() *FundingParams {
	if p == nil {
		return nil
	}
	return &FundingParams{
		MaxRatePerBlock: fixedmath.Copy(p.MaxRatePerBlock),
		SpringFactor:    fixedmath.Copy(p.SpringFactor),
		InflectionPoint: fixedmath.Copy(p.InflectionPoint),
		UpScaleP:        p.UpScaleP,
		DownScaleP:      p.DownScaleP,
		PosScaleP:       p.PosScaleP,
		NegScaleP:       p.NegScaleP,
		OiCap:           fixedmath.Copy(p.OiCap),
	}
}

// RolloverParams bounds the linear carrying-cost model for one pair.
type RolloverParams struct {
	// MaxRatePerBlock bounds |pure rate| + premium, against fixedmath.One.
	MaxRatePerBlock *big.Int
	// AllowNegative permits a negative effective rollover rate instead of
	// clamping it to zero.
	AllowNegative bool
}

// Validate rejects out-of-range configuration before any state changes.
func (p *RolloverParams) Validate() error {
	if p == nil {
		return errNilParams
	}
	if p.MaxRatePerBlock == nil || p.MaxRatePerBlock.Sign() < 0 || p.MaxRatePerBlock.Cmp(fixedmath.One) > 0 {
		return errMaxRateBound
	}
	return nil
}

// Clone returns a deep copy to protect internal references.
func (p *RolloverParams) Clone() *RolloverParams {
	if p == nil {
		return nil
	}
	return &RolloverParams{
		MaxRatePerBlock: fixedmath.Copy(p.MaxRatePerBlock),
		AllowNegative:   p.AllowNegative,
	}
}

// ValidateRolloverRate checks the invariant |pureRate| + premium <= max.
func (p *RolloverParams) ValidateRolloverRate(pureRate, premium *big.Int) error {
	if p == nil {
		return errNilParams
	}
	if premium == nil || premium.Sign() < 0 {
		return errPremiumNegative
	}
	bound := new(big.Int).Abs(fixedmath.Copy(pureRate))
	bound.Add(bound, premium)
	if p.MaxRatePerBlock == nil || bound.Cmp(p.MaxRatePerBlock) > 0 {
		return errRolloverRateBound
	}
	return nil
}
