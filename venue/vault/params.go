package vault

import (
	"errors"
	"math/big"

	"perpcore/fixedmath"
)

var (
	errNilParams          = errors.New("vault engine: params not configured")
	errDailyCapConfig     = errors.New("vault engine: max daily pnl delta must be positive")
	errEpochCapConfig     = errors.New("vault engine: max epoch open pnl delta must be positive")
	errThresholdOrder     = errors.New("vault engine: withdraw lock thresholds must be increasing and above 100")
	errDiscountConfig     = errors.New("vault engine: max discount percent exceeds 100")
	errDiscountThreshold  = errors.New("vault engine: max discount threshold must exceed 100")
	errLockDurationConfig = errors.New("vault engine: max lock duration must be positive")
	errEpochDuration      = errors.New("vault engine: epoch duration must be positive")
	errSupplyGrowthConfig = errors.New("vault engine: daily supply growth percent exceeds 100")
)

// Params groups the governance-controlled limits of the vault.
type Params struct {
	// MaxDailyAccPnlDelta caps the per-share PnL the vault may pay out
	// inside one 24h window, against fixedmath.One.
	MaxDailyAccPnlDelta *big.Int
	// MaxAccOpenPnlDelta caps the per-share open-PnL movement a single
	// epoch advance may commit, against fixedmath.One.
	MaxAccOpenPnlDelta *big.Int
	// MaxSupplyIncreaseDailyP bounds the daily growth of the share-supply
	// cap, in whole percent.
	MaxSupplyIncreaseDailyP uint64
	// WithdrawLockThresholdsP are the two collateralization percents that
	// lengthen the withdraw lock: at or below the first, requests unlock
	// after one epoch; at or below the second, two; above it, three.
	WithdrawLockThresholdsP [2]uint64
	// MaxDiscountP is the largest locked-deposit discount, in whole
	// percent, reached at MaxDiscountThresholdP collateralization with the
	// maximum lock duration.
	MaxDiscountP uint64
	// MaxDiscountThresholdP is the collateralization percent at which the
	// discount stops growing. Must exceed 100.
	MaxDiscountThresholdP uint64
	// MaxLockDuration bounds locked-deposit durations, in seconds.
	MaxLockDuration int64
	// EpochDuration is the nominal accounting period length, in seconds.
	EpochDuration int64
}

// Validate rejects out-of-range configuration before any state changes.
func (p *Params) Validate() error {
	if p == nil {
		return errNilParams
	}
	if p.MaxDailyAccPnlDelta == nil || p.MaxDailyAccPnlDelta.Sign() <= 0 {
		return errDailyCapConfig
	}
	if p.MaxAccOpenPnlDelta == nil || p.MaxAccOpenPnlDelta.Sign() <= 0 {
		return errEpochCapConfig
	}
	if p.MaxSupplyIncreaseDailyP > 100 {
		return errSupplyGrowthConfig
	}
	if p.WithdrawLockThresholdsP[0] < 100 || p.WithdrawLockThresholdsP[1] <= p.WithdrawLockThresholdsP[0] {
		return errThresholdOrder
	}
	if p.MaxDiscountP > 100 {
		return errDiscountConfig
	}
	if p.MaxDiscountThresholdP <= 100 {
		return errDiscountThreshold
	}
	if p.MaxLockDuration <= 0 {
		return errLockDurationConfig
	}
	if p.EpochDuration <= 0 {
		return errEpochDuration
	}
	return nil
}

// Clone returns a deep copy to protect internal references.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MaxDailyAccPnlDelta = fixedmath.Copy(p.MaxDailyAccPnlDelta)
	clone.MaxAccOpenPnlDelta = fixedmath.Copy(p.MaxAccOpenPnlDelta)
	return &clone
}

// LockEpochs maps collateralization to the number of epochs a withdraw
// request stays locked: better collateralization queues longer.
func (p *Params) LockEpochs(collateralizationP *big.Int) uint64 {
	t0 := new(big.Int).Mul(fixedmath.One, new(big.Int).SetUint64(p.WithdrawLockThresholdsP[0]))
	t1 := new(big.Int).Mul(fixedmath.One, new(big.Int).SetUint64(p.WithdrawLockThresholdsP[1]))
	switch {
	case collateralizationP.Cmp(t0) <= 0:
		return 1
	case collateralizationP.Cmp(t1) <= 0:
		return 2
	default:
		return 3
	}
}

// LockDiscountP derives the locked-deposit discount percent against
// fixedmath.One. The discount is zero at or below 100% collateralization and
// grows linearly to MaxDiscountP at MaxDiscountThresholdP, scaled by
// lockDuration/MaxLockDuration.
func (p *Params) LockDiscountP(collateralizationP *big.Int, lockDuration int64) *big.Int {
	hundred := fixedmath.Hundred
	if collateralizationP.Cmp(hundred) <= 0 {
		return big.NewInt(0)
	}
	maxDiscount := new(big.Int).Mul(fixedmath.One, new(big.Int).SetUint64(p.MaxDiscountP))
	span := new(big.Int).SetUint64(p.MaxDiscountThresholdP - 100)
	span.Mul(span, fixedmath.One)

	over := new(big.Int).Sub(collateralizationP, hundred)
	discount := fixedmath.MulDiv(maxDiscount, fixedmath.Min(over, span), span)
	return fixedmath.MulDiv(discount, big.NewInt(lockDuration), big.NewInt(p.MaxLockDuration))
}
