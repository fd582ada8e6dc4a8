package funding

import (
	"math/big"

	"perpcore/fixedmath"
)

type mockEngineState struct {
	fundingStates  map[uint32]*PairFunding
	fundingParams  map[uint32]*FundingParams
	rolloverStates map[uint32]*PairRollover
	rolloverParams map[uint32]*RolloverParams
	openInterest   map[uint32]*PairOpenInterest
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		fundingStates:  make(map[uint32]*PairFunding),
		fundingParams:  make(map[uint32]*FundingParams),
		rolloverStates: make(map[uint32]*PairRollover),
		rolloverParams: make(map[uint32]*RolloverParams),
		openInterest:   make(map[uint32]*PairOpenInterest),
	}
}

func (m *mockEngineState) FundingState(pairIndex uint32) (*PairFunding, error) {
	return m.fundingStates[pairIndex], nil
}

func (m *mockEngineState) PutFundingState(pairIndex uint32, state *PairFunding) error {
	m.fundingStates[pairIndex] = state.Clone()
	return nil
}

func (m *mockEngineState) FundingParams(pairIndex uint32) (*FundingParams, error) {
	return m.fundingParams[pairIndex], nil
}

func (m *mockEngineState) PutFundingParams(pairIndex uint32, params *FundingParams) error {
	m.fundingParams[pairIndex] = params.Clone()
	return nil
}

func (m *mockEngineState) RolloverState(pairIndex uint32) (*PairRollover, error) {
	return m.rolloverStates[pairIndex], nil
}

func (m *mockEngineState) PutRolloverState(pairIndex uint32, state *PairRollover) error {
	m.rolloverStates[pairIndex] = state.Clone()
	return nil
}

func (m *mockEngineState) RolloverParams(pairIndex uint32) (*RolloverParams, error) {
	return m.rolloverParams[pairIndex], nil
}

func (m *mockEngineState) PutRolloverParams(pairIndex uint32, params *RolloverParams) error {
	m.rolloverParams[pairIndex] = params.Clone()
	return nil
}

func (m *mockEngineState) OpenInterest(pairIndex uint32) (*PairOpenInterest, error) {
	return m.openInterest[pairIndex], nil
}

type mockPauses map[string]bool

func (m mockPauses) IsPaused(module string) bool { return m[module] }

func scaled(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), fixedmath.One)
}

func defaultFundingParams() *FundingParams {
	return &FundingParams{
		// One basis point per block.
		MaxRatePerBlock: new(big.Int).Div(fixedmath.One, big.NewInt(10_000)),
		SpringFactor:    new(big.Int).Div(fixedmath.One, big.NewInt(100)),
		UpScaleP:        100,
		DownScaleP:      50,
		PosScaleP:       100,
		NegScaleP:       100,
		OiCap:           scaled(1_000_000),
	}
}

func defaultRolloverParams() *RolloverParams {
	return &RolloverParams{
		MaxRatePerBlock: new(big.Int).Div(fixedmath.One, big.NewInt(1_000)),
	}
}

func newTestEngine(state *mockEngineState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	return engine
}
