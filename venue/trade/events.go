package trade

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"perpcore/core/types"
)

const (
	EventTypeTradeOpened       = "trade.opened"
	EventTypeTradeClosed       = "trade.closed"
	EventTypeTradeCancelled    = "trade.cancelled"
	EventTypeCollateralUpdated = "trade.collateral_updated"
	EventTypeTpSlUpdated       = "trade.tp_sl_updated"
	EventTypePairParamsUpdated = "trade.params_updated"
)

func positionAttrs(pos *Position) map[string]string {
	attrs := map[string]string{
		"trader": hex.EncodeToString(pos.Trader[:]),
		"pair":   strconv.FormatUint(uint64(pos.PairIndex), 10),
		"slot":   strconv.FormatUint(uint64(pos.Slot), 10),
		"long":   strconv.FormatBool(pos.Long),
	}
	attrs["collateral"] = pos.Collateral.String()
	attrs["leverage"] = pos.Leverage.String()
	attrs["openPrice"] = pos.OpenPrice.String()
	attrs["tp"] = pos.Tp.String()
	attrs["sl"] = pos.Sl.String()
	return attrs
}

// NewTradeOpenedEvent records a filled open with its execution impact.
func NewTradeOpenedEvent(pos *Position, impactP *big.Int) *types.Event {
	attrs := positionAttrs(pos)
	attrs["impactP"] = impactP.String()
	return &types.Event{Type: EventTypeTradeOpened, Attributes: attrs}
}

// NewTradeClosedEvent records a settled close with the full collateral
// distribution, so observers can audit conservation leg by leg.
func NewTradeClosedEvent(pos *Position, s *CloseSettlement) *types.Event {
	attrs := positionAttrs(pos)
	attrs["closePrice"] = s.ClosePrice.String()
	attrs["value"] = s.Value.String()
	attrs["toTrader"] = s.AmountToTrader.String()
	attrs["liquidationFee"] = s.LiquidationFee.String()
	attrs["vaultDelta"] = s.VaultDelta.String()
	attrs["rolloverFee"] = s.RolloverFee.String()
	attrs["fundingFee"] = s.FundingFee.String()
	attrs["collateralClosed"] = s.CollateralClosed.String()
	attrs["liquidated"] = strconv.FormatBool(s.Liquidated)
	return &types.Event{Type: EventTypeTradeClosed, Attributes: attrs}
}

// NewTradeCancelledEvent records a suppressed order with its reason.
func NewTradeCancelledEvent(trader [20]byte, pairIndex uint32, reason CancelReason) *types.Event {
	return &types.Event{Type: EventTypeTradeCancelled, Attributes: map[string]string{
		"trader": hex.EncodeToString(trader[:]),
		"pair":   strconv.FormatUint(uint64(pairIndex), 10),
		"reason": reason.String(),
	}}
}

// NewCollateralUpdatedEvent records a collateral top-up or removal and the
// resulting gearing.
func NewCollateralUpdatedEvent(pos *Position, amount *big.Int, added bool) *types.Event {
	attrs := positionAttrs(pos)
	attrs["amount"] = amount.String()
	attrs["added"] = strconv.FormatBool(added)
	return &types.Event{Type: EventTypeCollateralUpdated, Attributes: attrs}
}

// NewTpSlUpdatedEvent records replaced triggers after clamping.
func NewTpSlUpdatedEvent(pos *Position) *types.Event {
	return &types.Event{Type: EventTypeTpSlUpdated, Attributes: positionAttrs(pos)}
}

// NewPairParamsUpdatedEvent records an installed execution parameter set.
func NewPairParamsUpdatedEvent(pairIndex uint32, params *PairParams) *types.Event {
	attrs := map[string]string{
		"pair": strconv.FormatUint(uint64(pairIndex), 10),
	}
	if params != nil {
		attrs["spreadP"] = params.SpreadP.String()
		attrs["dynamicSpread"] = strconv.FormatBool(params.DynamicSpreadEnabled)
		attrs["maxPriceImpactP"] = params.MaxPriceImpactP.String()
		attrs["minLeverage"] = params.MinLeverage.String()
		attrs["maxLeverage"] = params.MaxLeverage.String()
		attrs["maxOpenInterest"] = params.MaxOpenInterest.String()
		attrs["maxGainP"] = strconv.FormatUint(params.MaxGainP, 10)
		attrs["liqThresholdP"] = strconv.FormatUint(params.LiqThresholdP, 10)
	}
	return &types.Event{Type: EventTypePairParamsUpdated, Attributes: attrs}
}
