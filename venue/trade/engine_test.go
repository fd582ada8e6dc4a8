package trade

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"perpcore/fixedmath"
	"perpcore/venue/funding"
)

type mockEngineState struct {
	positions map[string]*Position
	oi        map[uint32]*funding.PairOpenInterest
	spreads   map[uint32]*DynamicSpread
	params    map[uint32]*PairParams
	orders    map[uint64]*PendingOrder
	nextOrder uint64
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		positions: make(map[string]*Position),
		oi:        make(map[uint32]*funding.PairOpenInterest),
		spreads:   make(map[uint32]*DynamicSpread),
		params:    make(map[uint32]*PairParams),
		orders:    make(map[uint64]*PendingOrder),
	}
}

func positionKey(trader [20]byte, pairIndex, slot uint32) string {
	return fmt.Sprintf("%x/%d/%d", trader, pairIndex, slot)
}

func (m *mockEngineState) Position(trader [20]byte, pairIndex, slot uint32) (*Position, error) {
	return m.positions[positionKey(trader, pairIndex, slot)].Clone(), nil
}

func (m *mockEngineState) PutPosition(pos *Position) error {
	m.positions[positionKey(pos.Trader, pos.PairIndex, pos.Slot)] = pos.Clone()
	return nil
}

func (m *mockEngineState) DeletePosition(trader [20]byte, pairIndex, slot uint32) error {
	delete(m.positions, positionKey(trader, pairIndex, slot))
	return nil
}

func (m *mockEngineState) OpenInterest(pairIndex uint32) (*funding.PairOpenInterest, error) {
	oi := m.oi[pairIndex]
	if oi == nil {
		return nil, nil
	}
	return &funding.PairOpenInterest{
		Long:  fixedmath.Copy(oi.Long),
		Short: fixedmath.Copy(oi.Short),
	}, nil
}

func (m *mockEngineState) PutOpenInterest(pairIndex uint32, oi *funding.PairOpenInterest) error {
	m.oi[pairIndex] = &funding.PairOpenInterest{
		Long:  fixedmath.Copy(oi.Long),
		Short: fixedmath.Copy(oi.Short),
	}
	return nil
}

func (m *mockEngineState) DynamicSpread(pairIndex uint32) (*DynamicSpread, error) {
	return m.spreads[pairIndex].Clone(), nil
}

func (m *mockEngineState) PutDynamicSpread(pairIndex uint32, spread *DynamicSpread) error {
	m.spreads[pairIndex] = spread.Clone()
	return nil
}

func (m *mockEngineState) PairParams(pairIndex uint32) (*PairParams, error) {
	return m.params[pairIndex].Clone(), nil
}

func (m *mockEngineState) PutPairParams(pairIndex uint32, params *PairParams) error {
	m.params[pairIndex] = params.Clone()
	return nil
}

func (m *mockEngineState) PendingOrder(id uint64) (*PendingOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *order
	return &clone, nil
}

func (m *mockEngineState) PutPendingOrder(order *PendingOrder) error {
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *mockEngineState) DeletePendingOrder(id uint64) error {
	delete(m.orders, id)
	return nil
}

func (m *mockEngineState) NextPendingOrderID() (uint64, error) {
	m.nextOrder++
	return m.nextOrder, nil
}

type mockFeed struct {
	quotes map[string]*Quote
	err    error
}

var errNoQuote = errors.New("no quote recorded")

func (m *mockFeed) Quote(requestID string) (*Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	quote, ok := m.quotes[requestID]
	if !ok {
		return nil, errNoQuote
	}
	return &Quote{Price: fixedmath.Copy(quote.Price), MarketClosed: quote.MarketClosed}, nil
}

func (m *mockFeed) record(requestID string, price *big.Int, closed bool) {
	m.quotes[requestID] = &Quote{Price: fixedmath.Copy(price), MarketClosed: closed}
}

type move struct {
	party  [20]byte
	amount *big.Int
}

type mockLedger struct {
	pulls   []move
	pushs   []move
	pullErr error
	pushErr error
}

func (m *mockLedger) PullFromTrader(trader [20]byte, amount *big.Int) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulls = append(m.pulls, move{party: trader, amount: fixedmath.Copy(amount)})
	return nil
}

func (m *mockLedger) PushToTrader(trader [20]byte, amount *big.Int) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushs = append(m.pushs, move{party: trader, amount: fixedmath.Copy(amount)})
	return nil
}

type mockVault struct {
	sends      []move
	receives   []move
	sendErr    error
	receiveErr error
}

func (m *mockVault) SendAssets(to [20]byte, amount *big.Int) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, move{party: to, amount: fixedmath.Copy(amount)})
	return nil
}

func (m *mockVault) ReceiveAssets(from [20]byte, amount *big.Int) error {
	if m.receiveErr != nil {
		return m.receiveErr
	}
	m.receives = append(m.receives, move{party: from, amount: fixedmath.Copy(amount)})
	return nil
}

type mockFees struct {
	rolloverLong  map[uint32]*big.Int
	rolloverShort map[uint32]*big.Int
	funding       map[uint32]*funding.PendingFunding
	commits       int
}

func newMockFees() *mockFees {
	return &mockFees{
		rolloverLong:  make(map[uint32]*big.Int),
		rolloverShort: make(map[uint32]*big.Int),
		funding:       make(map[uint32]*funding.PendingFunding),
	}
}

func (m *mockFees) StoreAccFundingFees(pairIndex uint32) error { m.commits++; return nil }

func (m *mockFees) StoreAccRolloverFees(pairIndex uint32) error { m.commits++; return nil }

func (m *mockFees) PendingFunding(pairIndex uint32) (*funding.PendingFunding, error) {
	pending := m.funding[pairIndex]
	if pending == nil {
		return &funding.PendingFunding{
			AccPerOiLong:  big.NewInt(0),
			AccPerOiShort: big.NewInt(0),
		}, nil
	}
	return &funding.PendingFunding{
		AccPerOiLong:  fixedmath.Copy(pending.AccPerOiLong),
		AccPerOiShort: fixedmath.Copy(pending.AccPerOiShort),
	}, nil
}

func (m *mockFees) PendingRollover(pairIndex uint32, long bool) (*big.Int, error) {
	if long {
		return fixedmath.Copy(m.rolloverLong[pairIndex]), nil
	}
	return fixedmath.Copy(m.rolloverShort[pairIndex]), nil
}

type mockPauses map[string]bool

func (m mockPauses) IsPaused(module string) bool { return m[module] }

func scaled(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), fixedmath.One)
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func defaultPairParams() *PairParams {
	return &PairParams{
		SpreadP:            big.NewInt(0),
		MaxPriceImpactP:    scaled(1),
		MinLeverage:        scaled(1),
		MaxLeverage:        scaled(100),
		MaxOpenInterest:    big.NewInt(1_000_000),
		MaxGainP:           900,
		LiqThresholdP:      90,
		MaxTradesPerPair:   3,
		OrderTimeoutBlocks: 10,
	}
}

type testHarness struct {
	engine *Engine
	state  *mockEngineState
	feed   *mockFeed
	ledger *mockLedger
	vault  *mockVault
	fees   *mockFees
	now    int64
}

var poolAccount = addr(0xee)

func newTestHarness(params *PairParams) *testHarness {
	if params == nil {
		params = defaultPairParams()
	}
	h := &testHarness{
		state:  newMockEngineState(),
		feed:   &mockFeed{quotes: make(map[string]*Quote)},
		ledger: &mockLedger{},
		vault:  &mockVault{},
		fees:   newMockFees(),
		now:    1_000,
	}
	h.state.params[0] = params.Clone()

	engine := NewEngine()
	engine.SetState(h.state)
	engine.SetPriceFeed(h.feed)
	engine.SetLedger(h.ledger)
	engine.SetVault(h.vault)
	engine.SetFeeEngine(h.fees)
	engine.SetPoolAddress(poolAccount)
	engine.SetBlockHeight(100)
	engine.SetNowFunc(func() int64 { return h.now })
	h.engine = engine
	return h
}

func marketOrder(trader [20]byte, long bool, collateral, leverage int64) *OpenOrder {
	return &OpenOrder{
		Trader:     trader,
		PairIndex:  0,
		Long:       long,
		Collateral: big.NewInt(collateral),
		Leverage:   scaled(leverage),
	}
}

// openAt records a quote and opens a position, failing the test on any
// cancellation.
func (h *testHarness) openAt(t *testing.T, order *OpenOrder, priceUnits int64) *Position {
	t.Helper()
	requestID := fmt.Sprintf("open-%d", len(h.feed.quotes))
	h.feed.record(requestID, scaled(priceUnits), false)
	pos, reason, err := h.engine.OpenTrade(order, requestID)
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if reason != CancelNone {
		t.Fatalf("open cancelled: %s", reason)
	}
	return pos
}
