package funding

import (
	"errors"
	"math/big"

	"perpcore/core/events"
	"perpcore/core/types"
	"perpcore/venue/common"
)

var (
	errNilState     = errors.New("funding engine: state not configured")
	errPairNotFound = errors.New("funding engine: pair not configured")
	errStaleBlock   = errors.New("funding engine: block height behind last update")
)

type engineState interface {
	FundingState(pairIndex uint32) (*PairFunding, error)
	PutFundingState(pairIndex uint32, state *PairFunding) error
	FundingParams(pairIndex uint32) (*FundingParams, error)
	PutFundingParams(pairIndex uint32, params *FundingParams) error
	RolloverState(pairIndex uint32) (*PairRollover, error)
	PutRolloverState(pairIndex uint32, state *PairRollover) error
	RolloverParams(pairIndex uint32) (*RolloverParams, error)
	PutRolloverParams(pairIndex uint32, params *RolloverParams) error
	OpenInterest(pairIndex uint32) (*PairOpenInterest, error)
}

type fundingEvent struct {
	evt *types.Event
}

func (e fundingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e fundingEvent) Event() *types.Event { return e.evt }

// Engine accrues funding and rollover fees per pair. All accrual is
// pull-based: pending values are closed-form projections over the blocks
// elapsed since the last commit, so arbitrarily long gaps between calls do
// not drift.
type Engine struct {
	state       engineState
	emitter     events.Emitter
	pauses      common.PauseView
	blockHeight uint64
}

// NewEngine creates a funding engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause switchboard consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockHeight records the block height accruals are projected to.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// BlockHeight returns the engine's current block height.
func (e *Engine) BlockHeight() uint64 {
	if e == nil {
		return 0
	}
	return e.blockHeight
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(fundingEvent{evt: event})
}

func (e *Engine) fundingPair(pairIndex uint32) (*PairFunding, *FundingParams, error) {
	params, err := e.state.FundingParams(pairIndex)
	if err != nil {
		return nil, nil, err
	}
	if params == nil {
		return nil, nil, errPairNotFound
	}
	state, err := e.state.FundingState(pairIndex)
	if err != nil {
		return nil, nil, err
	}
	if state == nil {
		state = &PairFunding{
			AccPerOiLong:     big.NewInt(0),
			AccPerOiShort:    big.NewInt(0),
			LastRatePerBlock: big.NewInt(0),
			LastOiDelta:      big.NewInt(0),
		}
	}
	return state.Clone(), params, nil
}

func (e *Engine) rolloverPair(pairIndex uint32) (*PairRollover, *RolloverParams, error) {
	params, err := e.state.RolloverParams(pairIndex)
	if err != nil {
		return nil, nil, err
	}
	if params == nil {
		return nil, nil, errPairNotFound
	}
	state, err := e.state.RolloverState(pairIndex)
	if err != nil {
		return nil, nil, err
	}
	if state == nil {
		state = &PairRollover{
			AccLong:              big.NewInt(0),
			AccShort:             big.NewInt(0),
			LastPureRatePerBlock: big.NewInt(0),
			BrokerPremium:        big.NewInt(0),
		}
	}
	return state.Clone(), params, nil
}

func (e *Engine) openInterest(pairIndex uint32) (*PairOpenInterest, error) {
	oi, err := e.state.OpenInterest(pairIndex)
	if err != nil {
		return nil, err
	}
	if oi == nil {
		oi = &PairOpenInterest{Long: big.NewInt(0), Short: big.NewInt(0)}
	}
	if oi.Long == nil {
		oi.Long = big.NewInt(0)
	}
	if oi.Short == nil {
		oi.Short = big.NewInt(0)
	}
	return oi, nil
}

// SetFundingParams validates and installs new funding parameters for a pair.
// Any pending accrual is committed under the old parameters first so the
// change never rewrites history.
func (e *Engine) SetFundingParams(pairIndex uint32, params *FundingParams) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleFunding); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if existing, err := e.state.FundingParams(pairIndex); err == nil && existing != nil {
		if err := e.StoreAccFundingFees(pairIndex); err != nil {
			return err
		}
	}
	if err := e.state.PutFundingParams(pairIndex, params.Clone()); err != nil {
		return err
	}
	e.emit(NewFundingParamsUpdatedEvent(pairIndex, params))
	return nil
}

// SetRolloverParams validates and installs new rollover parameters for a
// pair, committing pending rollover accrual first when the pair already
// exists.
func (e *Engine) SetRolloverParams(pairIndex uint32, params *RolloverParams) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleFunding); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if existing, err := e.state.RolloverParams(pairIndex); err == nil && existing != nil {
		if err := e.StoreAccRolloverFees(pairIndex); err != nil {
			return err
		}
	}
	return e.state.PutRolloverParams(pairIndex, params.Clone())
}
