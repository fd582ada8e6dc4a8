package funding

import (
	"strconv"

	"perpcore/core/types"
)

const (
	EventTypeFundingUpdated       = "funding.updated"
	EventTypeFundingParamsUpdated = "funding.params_updated"
	EventTypeRolloverUpdated      = "rollover.updated"
	EventTypeRolloverRateUpdated  = "rollover.rate_updated"
)

// NewFundingUpdatedEvent records the before/after accumulator values of a
// funding commit so observers can reconstruct the accrual history.
func NewFundingUpdatedEvent(pairIndex uint32, before, after *PairFunding) *types.Event {
	attrs := map[string]string{
		"pair": strconv.FormatUint(uint64(pairIndex), 10),
	}
	if before != nil {
		attrs["accLongBefore"] = before.AccPerOiLong.String()
		attrs["accShortBefore"] = before.AccPerOiShort.String()
		attrs["rateBefore"] = before.LastRatePerBlock.String()
	}
	if after != nil {
		attrs["accLong"] = after.AccPerOiLong.String()
		attrs["accShort"] = after.AccPerOiShort.String()
		attrs["rate"] = after.LastRatePerBlock.String()
		attrs["oiDelta"] = after.LastOiDelta.String()
		attrs["block"] = strconv.FormatUint(after.LastUpdateBlock, 10)
	}
	return &types.Event{Type: EventTypeFundingUpdated, Attributes: attrs}
}

// NewFundingParamsUpdatedEvent records an installed parameter set.
func NewFundingParamsUpdatedEvent(pairIndex uint32, params *FundingParams) *types.Event {
	attrs := map[string]string{
		"pair": strconv.FormatUint(uint64(pairIndex), 10),
	}
	if params != nil {
		attrs["maxRatePerBlock"] = params.MaxRatePerBlock.String()
		attrs["springFactor"] = params.SpringFactor.String()
		if params.InflectionPoint != nil {
			attrs["inflectionPoint"] = params.InflectionPoint.String()
		}
		attrs["upScaleP"] = strconv.FormatUint(params.UpScaleP, 10)
		attrs["downScaleP"] = strconv.FormatUint(params.DownScaleP, 10)
		attrs["posScaleP"] = strconv.FormatUint(params.PosScaleP, 10)
		attrs["negScaleP"] = strconv.FormatUint(params.NegScaleP, 10)
		attrs["oiCap"] = params.OiCap.String()
	}
	return &types.Event{Type: EventTypeFundingParamsUpdated, Attributes: attrs}
}

// NewRolloverUpdatedEvent records the before/after rollover accumulators of
// a commit.
func NewRolloverUpdatedEvent(pairIndex uint32, before, after *PairRollover) *types.Event {
	attrs := map[string]string{
		"pair": strconv.FormatUint(uint64(pairIndex), 10),
	}
	if before != nil {
		attrs["accLongBefore"] = before.AccLong.String()
		attrs["accShortBefore"] = before.AccShort.String()
	}
	if after != nil {
		attrs["accLong"] = after.AccLong.String()
		attrs["accShort"] = after.AccShort.String()
		attrs["block"] = strconv.FormatUint(after.LastUpdateBlock, 10)
	}
	return &types.Event{Type: EventTypeRolloverUpdated, Attributes: attrs}
}

// NewRolloverRateUpdatedEvent records an installed rollover rate.
func NewRolloverRateUpdatedEvent(pairIndex uint32, state *PairRollover) *types.Event {
	attrs := map[string]string{
		"pair": strconv.FormatUint(uint64(pairIndex), 10),
	}
	if state != nil {
		attrs["pureRate"] = state.LastPureRatePerBlock.String()
		attrs["brokerPremium"] = state.BrokerPremium.String()
	}
	return &types.Event{Type: EventTypeRolloverRateUpdated, Attributes: attrs}
}
