package trade

import (
	"errors"
	"math/big"
	"time"

	"perpcore/core/events"
	"perpcore/core/types"
	"perpcore/fixedmath"
	"perpcore/venue/common"
	"perpcore/venue/funding"
)

var (
	errNilState              = errors.New("trade engine: state not configured")
	errNilFeed               = errors.New("trade engine: price feed not configured")
	errNilLedger             = errors.New("trade engine: asset ledger not configured")
	errNilVault              = errors.New("trade engine: vault adapter not configured")
	errNilFeeEngine          = errors.New("trade engine: fee engine not configured")
	errNilOrder              = errors.New("trade engine: order must not be nil")
	errInvalidCollateral     = errors.New("trade engine: collateral must be positive")
	errInvalidAmount         = errors.New("trade engine: amount must be positive")
	errPairNotConfigured     = errors.New("trade engine: pair not configured")
	errPositionNotFound      = errors.New("trade engine: position not found")
	errNoFreeSlot            = errors.New("trade engine: no free position slot")
	errNotLiquidatable       = errors.New("trade engine: position above liquidation margin")
	errInsufficientCollat    = errors.New("trade engine: accrued fees exceed collateral")
	errOrderNotFound         = errors.New("trade engine: pending order not found")
	errOrderNotTimedOut      = errors.New("trade engine: order has not timed out")
	errLeverageOutOfRange    = errors.New("trade engine: leverage out of range")
)

// engineState is the persistence surface the settlement pipeline needs.
type engineState interface {
	Position(trader [20]byte, pairIndex, slot uint32) (*Position, error)
	PutPosition(pos *Position) error
	DeletePosition(trader [20]byte, pairIndex, slot uint32) error
	OpenInterest(pairIndex uint32) (*funding.PairOpenInterest, error)
	PutOpenInterest(pairIndex uint32, oi *funding.PairOpenInterest) error
	DynamicSpread(pairIndex uint32) (*DynamicSpread, error)
	PutDynamicSpread(pairIndex uint32, spread *DynamicSpread) error
	PairParams(pairIndex uint32) (*PairParams, error)
	PutPairParams(pairIndex uint32, params *PairParams) error
	PendingOrder(id uint64) (*PendingOrder, error)
	PutPendingOrder(order *PendingOrder) error
	DeletePendingOrder(id uint64) error
	NextPendingOrderID() (uint64, error)
}

type tradeEvent struct {
	evt *types.Event
}

func (e tradeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tradeEvent) Event() *types.Event { return e.evt }

// Engine settles leveraged positions against the counterparty vault. It
// owns position slots, per-pair exposure, and the execution price pipeline;
// funding and rollover accruals are committed through the fee engine before
// any settlement math reads them.
type Engine struct {
	state       engineState
	feed        PriceFeed
	ledger      AssetLedger
	vault       VaultAdapter
	fees        FeeEngine
	emitter     events.Emitter
	pauses      common.PauseView
	blockHeight uint64
	nowFn       func() int64
	poolAddr    [20]byte
}

// NewEngine returns an engine with no collaborators wired.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the persistence backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPriceFeed wires the oracle quote source.
func (e *Engine) SetPriceFeed(feed PriceFeed) { e.feed = feed }

// SetLedger wires the collateral ledger.
func (e *Engine) SetLedger(ledger AssetLedger) { e.ledger = ledger }

// SetVault wires the counterparty vault.
func (e *Engine) SetVault(vault VaultAdapter) { e.vault = vault }

// SetFeeEngine wires the funding and rollover accrual engine.
func (e *Engine) SetFeeEngine(fees FeeEngine) { e.fees = fees }

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetBlockHeight records the current block for order aging and position
// stamps.
func (e *Engine) SetBlockHeight(height uint64) { e.blockHeight = height }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now != nil {
		e.nowFn = now
	}
}

// SetPoolAddress sets the ledger account holding open collateral.
func (e *Engine) SetPoolAddress(addr [20]byte) { e.poolAddr = addr }

func (e *Engine) emit(event *types.Event) {
	if event == nil {
		return
	}
	e.emitter.Emit(tradeEvent{evt: event})
}

func (e *Engine) requireCollaborators() error {
	switch {
	case e.state == nil:
		return errNilState
	case e.feed == nil:
		return errNilFeed
	case e.ledger == nil:
		return errNilLedger
	case e.vault == nil:
		return errNilVault
	case e.fees == nil:
		return errNilFeeEngine
	}
	return nil
}

func (e *Engine) paused() bool {
	return common.Guard(e.pauses, common.ModuleTrade) != nil
}

func (e *Engine) pairParams(pairIndex uint32) (*PairParams, error) {
	params, err := e.state.PairParams(pairIndex)
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, errPairNotConfigured
	}
	return params.Clone(), nil
}

// SetPairParams validates and stores the execution parameters for a pair.
func (e *Engine) SetPairParams(pairIndex uint32, params *PairParams) error {
	if e.state == nil {
		return errNilState
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := e.state.PutPairParams(pairIndex, params.Clone()); err != nil {
		return err
	}
	e.emit(NewPairParamsUpdatedEvent(pairIndex, params))
	return nil
}

func (e *Engine) openInterest(pairIndex uint32) (*funding.PairOpenInterest, error) {
	oi, err := e.state.OpenInterest(pairIndex)
	if err != nil {
		return nil, err
	}
	if oi == nil {
		return &funding.PairOpenInterest{Long: big.NewInt(0), Short: big.NewInt(0)}, nil
	}
	return &funding.PairOpenInterest{
		Long:  fixedmath.Copy(oi.Long),
		Short: fixedmath.Copy(oi.Short),
	}, nil
}

func (e *Engine) dynamicSpread(pairIndex uint32) (*DynamicSpread, error) {
	spread, err := e.state.DynamicSpread(pairIndex)
	if err != nil {
		return nil, err
	}
	if spread == nil {
		return &DynamicSpread{
			BuyVolume:  big.NewInt(0),
			SellVolume: big.NewInt(0),
			LastUpdate: e.nowFn(),
		}, nil
	}
	return spread.Clone(), nil
}

func (e *Engine) firstEmptySlot(trader [20]byte, pairIndex, maxTrades uint32) (uint32, error) {
	for slot := uint32(0); slot < maxTrades; slot++ {
		pos, err := e.state.Position(trader, pairIndex, slot)
		if err != nil {
			return 0, err
		}
		if pos == nil {
			return slot, nil
		}
	}
	return 0, errNoFreeSlot
}

// commitAccruals folds all funding and rollover accrued up to the current
// block into the stored accumulators so settlement reads are exact.
func (e *Engine) commitAccruals(pairIndex uint32) error {
	if err := e.fees.StoreAccRolloverFees(pairIndex); err != nil {
		return err
	}
	return e.fees.StoreAccFundingFees(pairIndex)
}

func (e *Engine) feeSnapshot(pairIndex uint32, long bool) (*funding.FeeSnapshot, error) {
	rollover, err := e.fees.PendingRollover(pairIndex, long)
	if err != nil {
		return nil, err
	}
	pending, err := e.fees.PendingFunding(pairIndex)
	if err != nil {
		return nil, err
	}
	acc := pending.AccPerOiLong
	if !long {
		acc = pending.AccPerOiShort
	}
	return &funding.FeeSnapshot{Rollover: rollover, Funding: fixedmath.Copy(acc)}, nil
}

// OpenTrade executes a requested open against the quote recorded for
// requestID. A nil position with a non-none reason is a cancellation, not
// an error; errors mean the request itself was malformed or state failed.
func (e *Engine) OpenTrade(order *OpenOrder, requestID string) (*Position, CancelReason, error) {
	if err := e.requireCollaborators(); err != nil {
		return nil, CancelNone, err
	}
	if order == nil {
		return nil, CancelNone, errNilOrder
	}
	if order.Collateral == nil || order.Collateral.Sign() <= 0 {
		return nil, CancelNone, errInvalidCollateral
	}
	if order.Leverage == nil || order.Leverage.Sign() <= 0 {
		return nil, CancelNone, errLeverageOutOfRange
	}
	params, err := e.pairParams(order.PairIndex)
	if err != nil {
		return nil, CancelNone, err
	}
	quote, err := e.feed.Quote(requestID)
	if err != nil {
		return nil, CancelNone, err
	}
	if e.paused() || quote.MarketClosed {
		e.emit(NewTradeCancelledEvent(order.Trader, order.PairIndex, CancelPaused))
		return nil, CancelPaused, nil
	}
	if err := e.commitAccruals(order.PairIndex); err != nil {
		return nil, CancelNone, err
	}

	notional := fixedmath.MulOne(fixedmath.Copy(order.Collateral), order.Leverage)
	spread, err := e.dynamicSpread(order.PairIndex)
	if err != nil {
		return nil, CancelNone, err
	}
	impactP := priceImpactP(params, spread, notional, takerBuys(order.Long, true), e.nowFn())
	price := applyImpact(quote.Price, impactP, takerBuys(order.Long, true))

	oi, err := e.openInterest(order.PairIndex)
	if err != nil {
		return nil, CancelNone, err
	}
	if reason := openCancelReason(order, params, price, impactP, notional, oi); reason != CancelNone {
		e.emit(NewTradeCancelledEvent(order.Trader, order.PairIndex, reason))
		return nil, reason, nil
	}

	slot, err := e.firstEmptySlot(order.Trader, order.PairIndex, params.MaxTradesPerPair)
	if err != nil {
		return nil, CancelNone, err
	}
	snapshot, err := e.feeSnapshot(order.PairIndex, order.Long)
	if err != nil {
		return nil, CancelNone, err
	}

	pos := &Position{
		Trader:     order.Trader,
		PairIndex:  order.PairIndex,
		Slot:       slot,
		Long:       order.Long,
		Collateral: fixedmath.Copy(order.Collateral),
		Leverage:   fixedmath.Copy(order.Leverage),
		OpenPrice:  price,
		Snapshot:   *snapshot,
		OpenBlock:  e.blockHeight,
	}
	pos.Tp, pos.Sl = clampTpSl(order.Tp, order.Sl, price, order.Leverage, params.MaxGainP, order.Long)

	// Collateral is secured before any exposure exists.
	if err := e.ledger.PullFromTrader(order.Trader, pos.Collateral); err != nil {
		return nil, CancelNone, err
	}
	if pos.Long {
		oi.Long.Add(oi.Long, notional)
	} else {
		oi.Short.Add(oi.Short, notional)
	}
	if err := e.state.PutPosition(pos.Clone()); err != nil {
		return nil, CancelNone, err
	}
	if err := e.state.PutOpenInterest(order.PairIndex, oi); err != nil {
		return nil, CancelNone, err
	}
	if err := e.state.PutDynamicSpread(order.PairIndex, spread); err != nil {
		return nil, CancelNone, err
	}
	e.emit(NewTradeOpenedEvent(pos, impactP))
	return pos, CancelNone, nil
}

// openCancelReason evaluates cancellation checks in priority order. The
// first failing check wins; callers never see a lower-priority reason when
// a higher one also applies.
func openCancelReason(order *OpenOrder, params *PairParams, price, impactP, notional *big.Int, oi *funding.PairOpenInterest) CancelReason {
	if slippageExceeded(order, price) {
		return CancelSlippage
	}
	if order.Tp != nil && order.Tp.Sign() > 0 {
		if (order.Long && price.Cmp(order.Tp) >= 0) || (!order.Long && price.Cmp(order.Tp) <= 0) {
			return CancelTpReached
		}
	}
	if order.Sl != nil && order.Sl.Sign() > 0 {
		if (order.Long && price.Cmp(order.Sl) <= 0) || (!order.Long && price.Cmp(order.Sl) >= 0) {
			return CancelSlReached
		}
	}
	side := oi.Long
	if !order.Long {
		side = oi.Short
	}
	if new(big.Int).Add(side, notional).Cmp(params.MaxOpenInterest) > 0 {
		return CancelExposureLimits
	}
	if impactP.Cmp(params.MaxPriceImpactP) > 0 {
		return CancelPriceImpact
	}
	if order.Leverage.Cmp(params.MinLeverage) < 0 || order.Leverage.Cmp(params.MaxLeverage) > 0 {
		return CancelLeverage
	}
	return CancelNone
}

func slippageExceeded(order *OpenOrder, price *big.Int) bool {
	if order.DesiredPrice == nil || order.DesiredPrice.Sign() <= 0 {
		return false
	}
	slippage := fixedmath.Copy(order.MaxSlippageP)
	tolerance := fixedmath.MulDiv(fixedmath.Copy(order.DesiredPrice), slippage, fixedmath.Hundred)
	if order.Long {
		bound := new(big.Int).Add(order.DesiredPrice, tolerance)
		return price.Cmp(bound) > 0
	}
	bound := new(big.Int).Sub(fixedmath.Copy(order.DesiredPrice), tolerance)
	return price.Cmp(bound) < 0
}

// clampTpSl bounds the take-profit to the maximum leveraged gain and the
// stop-loss to a full-collateral loss. Zero means none.
func clampTpSl(tp, sl, price, leverage *big.Int, maxGainP uint64, long bool) (*big.Int, *big.Int) {
	maxTpDist := fixedmath.MulDiv(fixedmath.Copy(price), new(big.Int).SetUint64(maxGainP), big.NewInt(100))
	maxTpDist = fixedmath.MulDiv(maxTpDist, fixedmath.One, leverage)
	maxSlDist := fixedmath.MulDiv(fixedmath.Copy(price), fixedmath.One, leverage)

	outTp := fixedmath.Copy(tp)
	outSl := fixedmath.Copy(sl)
	if long {
		maxTp := new(big.Int).Add(fixedmath.Copy(price), maxTpDist)
		if outTp == nil || outTp.Sign() == 0 || outTp.Cmp(maxTp) > 0 {
			outTp = maxTp
		}
		minSl := new(big.Int).Sub(fixedmath.Copy(price), maxSlDist)
		if minSl.Sign() < 0 {
			minSl = big.NewInt(0)
		}
		if outSl != nil && outSl.Sign() > 0 && outSl.Cmp(minSl) < 0 {
			outSl = minSl
		}
	} else {
		minTp := new(big.Int).Sub(fixedmath.Copy(price), maxTpDist)
		if minTp.Sign() < 0 {
			minTp = big.NewInt(0)
		}
		if outTp == nil || outTp.Sign() == 0 || outTp.Cmp(minTp) < 0 {
			outTp = minTp
		}
		maxSl := new(big.Int).Add(fixedmath.Copy(price), maxSlDist)
		if outSl != nil && outSl.Sign() > 0 && outSl.Cmp(maxSl) > 0 {
			outSl = maxSl
		}
	}
	if outTp == nil {
		outTp = big.NewInt(0)
	}
	if outSl == nil {
		outSl = big.NewInt(0)
	}
	return outTp, outSl
}
