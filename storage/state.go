package storage

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"perpcore/venue/funding"
	"perpcore/venue/trade"
	"perpcore/venue/vault"
)

// Manager persists venue state as RLP records in a key-value Database. It
// satisfies the state interfaces of the funding, vault and trade engines so
// one store backs the whole venue.
type Manager struct {
	db Database
}

// NewManager wraps a Database in a state manager.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil || !ok {
		return false, err
	}
	raw, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, v interface{}) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// nextSequence increments and persists a uint64 counter. IDs start at 1 so
// zero stays available as a sentinel.
func (m *Manager) nextSequence(key []byte) (uint64, error) {
	var seq uint64
	if _, err := m.get(key, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.put(key, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// signedInt carries a signed big.Int through RLP, which only encodes
// non-negative integers.
type signedInt struct {
	Neg bool
	Abs *big.Int
}

func toSigned(v *big.Int) signedInt {
	if v == nil {
		return signedInt{Abs: big.NewInt(0)}
	}
	return signedInt{Neg: v.Sign() < 0, Abs: new(big.Int).Abs(v)}
}

func fromSigned(s signedInt) *big.Int {
	v := new(big.Int)
	if s.Abs != nil {
		v.Set(s.Abs)
	}
	if s.Neg {
		v.Neg(v)
	}
	return v
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func fundingStateKey(pair uint32) []byte  { return []byte(fmt.Sprintf("funding/state/%d", pair)) }
func fundingParamsKey(pair uint32) []byte { return []byte(fmt.Sprintf("funding/params/%d", pair)) }
func rolloverStateKey(pair uint32) []byte { return []byte(fmt.Sprintf("rollover/state/%d", pair)) }
func rolloverParamsKey(pair uint32) []byte {
	return []byte(fmt.Sprintf("rollover/params/%d", pair))
}
func openInterestKey(pair uint32) []byte { return []byte(fmt.Sprintf("oi/%d", pair)) }

var (
	vaultStateKey       = []byte("vault/state")
	lockedDepositSeqKey = []byte("vault/deposit-seq")
	pendingOrderSeqKey  = []byte("trade/order-seq")
	blockHeightKey      = []byte("chain/height")
)

// BlockHeight returns the last persisted block height, zero when fresh.
func (m *Manager) BlockHeight() (uint64, error) {
	var height uint64
	if _, err := m.get(blockHeightKey, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// PutBlockHeight persists the current block height so accrual clocks
// survive restarts.
func (m *Manager) PutBlockHeight(height uint64) error {
	return m.put(blockHeightKey, height)
}

func shareBalanceKey(owner [20]byte) []byte {
	return []byte("vault/shares/" + hex.EncodeToString(owner[:]))
}

func withdrawRequestKey(owner [20]byte, epoch uint64) []byte {
	return []byte(fmt.Sprintf("vault/withdraw/%s/%d", hex.EncodeToString(owner[:]), epoch))
}

func lockedDepositKey(id uint64) []byte {
	return []byte(fmt.Sprintf("vault/deposit/%d", id))
}

func positionKey(trader [20]byte, pair, slot uint32) []byte {
	return []byte(fmt.Sprintf("trade/pos/%s/%d/%d", hex.EncodeToString(trader[:]), pair, slot))
}

func pairParamsKey(pair uint32) []byte   { return []byte(fmt.Sprintf("trade/params/%d", pair)) }
func spreadKey(pair uint32) []byte       { return []byte(fmt.Sprintf("trade/spread/%d", pair)) }
func pendingOrderKey(id uint64) []byte   { return []byte(fmt.Sprintf("trade/order/%d", id)) }

// --- funding engine state ---

type fundingStateRecord struct {
	AccPerOiLong     signedInt
	AccPerOiShort    signedInt
	LastRatePerBlock signedInt
	LastOiDelta      signedInt
	LastUpdateBlock  uint64
}

// FundingState loads the funding accumulators for a pair, nil when the pair
// has never committed.
func (m *Manager) FundingState(pairIndex uint32) (*funding.PairFunding, error) {
	var rec fundingStateRecord
	ok, err := m.get(fundingStateKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &funding.PairFunding{
		AccPerOiLong:     fromSigned(rec.AccPerOiLong),
		AccPerOiShort:    fromSigned(rec.AccPerOiShort),
		LastRatePerBlock: fromSigned(rec.LastRatePerBlock),
		LastOiDelta:      fromSigned(rec.LastOiDelta),
		LastUpdateBlock:  rec.LastUpdateBlock,
	}, nil
}

// PutFundingState persists the funding accumulators for a pair.
func (m *Manager) PutFundingState(pairIndex uint32, state *funding.PairFunding) error {
	return m.put(fundingStateKey(pairIndex), &fundingStateRecord{
		AccPerOiLong:     toSigned(state.AccPerOiLong),
		AccPerOiShort:    toSigned(state.AccPerOiShort),
		LastRatePerBlock: toSigned(state.LastRatePerBlock),
		LastOiDelta:      toSigned(state.LastOiDelta),
		LastUpdateBlock:  state.LastUpdateBlock,
	})
}

type fundingParamsRecord struct {
	MaxRatePerBlock *big.Int
	SpringFactor    *big.Int
	HasInflection   bool
	Inflection      signedInt
	UpScaleP        uint64
	DownScaleP      uint64
	PosScaleP       uint64
	NegScaleP       uint64
	OiCap           *big.Int
}

// FundingParams loads the funding parameter set for a pair, nil when unset.
func (m *Manager) FundingParams(pairIndex uint32) (*funding.FundingParams, error) {
	var rec fundingParamsRecord
	ok, err := m.get(fundingParamsKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	params := &funding.FundingParams{
		MaxRatePerBlock: bigOrZero(rec.MaxRatePerBlock),
		SpringFactor:    bigOrZero(rec.SpringFactor),
		UpScaleP:        rec.UpScaleP,
		DownScaleP:      rec.DownScaleP,
		PosScaleP:       rec.PosScaleP,
		NegScaleP:       rec.NegScaleP,
		OiCap:           bigOrZero(rec.OiCap),
	}
	if rec.HasInflection {
		params.InflectionPoint = fromSigned(rec.Inflection)
	}
	return params, nil
}

// PutFundingParams persists the funding parameter set for a pair.
func (m *Manager) PutFundingParams(pairIndex uint32, params *funding.FundingParams) error {
	rec := &fundingParamsRecord{
		MaxRatePerBlock: bigOrZero(params.MaxRatePerBlock),
		SpringFactor:    bigOrZero(params.SpringFactor),
		UpScaleP:        params.UpScaleP,
		DownScaleP:      params.DownScaleP,
		PosScaleP:       params.PosScaleP,
		NegScaleP:       params.NegScaleP,
		OiCap:           bigOrZero(params.OiCap),
	}
	if params.InflectionPoint != nil {
		rec.HasInflection = true
		rec.Inflection = toSigned(params.InflectionPoint)
	}
	return m.put(fundingParamsKey(pairIndex), rec)
}

type rolloverStateRecord struct {
	AccLong              signedInt
	AccShort             signedInt
	LastPureRatePerBlock signedInt
	BrokerPremium        *big.Int
	LastUpdateBlock      uint64
}

// RolloverState loads the rollover accumulators for a pair, nil when the
// pair has never committed.
func (m *Manager) RolloverState(pairIndex uint32) (*funding.PairRollover, error) {
	var rec rolloverStateRecord
	ok, err := m.get(rolloverStateKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &funding.PairRollover{
		AccLong:              fromSigned(rec.AccLong),
		AccShort:             fromSigned(rec.AccShort),
		LastPureRatePerBlock: fromSigned(rec.LastPureRatePerBlock),
		BrokerPremium:        bigOrZero(rec.BrokerPremium),
		LastUpdateBlock:      rec.LastUpdateBlock,
	}, nil
}

// PutRolloverState persists the rollover accumulators for a pair.
func (m *Manager) PutRolloverState(pairIndex uint32, state *funding.PairRollover) error {
	return m.put(rolloverStateKey(pairIndex), &rolloverStateRecord{
		AccLong:              toSigned(state.AccLong),
		AccShort:             toSigned(state.AccShort),
		LastPureRatePerBlock: toSigned(state.LastPureRatePerBlock),
		BrokerPremium:        bigOrZero(state.BrokerPremium),
		LastUpdateBlock:      state.LastUpdateBlock,
	})
}

type rolloverParamsRecord struct {
	MaxRatePerBlock *big.Int
	AllowNegative   bool
}

// RolloverParams loads the rollover parameter set for a pair, nil when
// unset.
func (m *Manager) RolloverParams(pairIndex uint32) (*funding.RolloverParams, error) {
	var rec rolloverParamsRecord
	ok, err := m.get(rolloverParamsKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &funding.RolloverParams{
		MaxRatePerBlock: bigOrZero(rec.MaxRatePerBlock),
		AllowNegative:   rec.AllowNegative,
	}, nil
}

// PutRolloverParams persists the rollover parameter set for a pair.
func (m *Manager) PutRolloverParams(pairIndex uint32, params *funding.RolloverParams) error {
	return m.put(rolloverParamsKey(pairIndex), &rolloverParamsRecord{
		MaxRatePerBlock: bigOrZero(params.MaxRatePerBlock),
		AllowNegative:   params.AllowNegative,
	})
}

type openInterestRecord struct {
	Long  *big.Int
	Short *big.Int
}

// OpenInterest loads the per-side exposure for a pair, nil when nothing was
// ever recorded.
func (m *Manager) OpenInterest(pairIndex uint32) (*funding.PairOpenInterest, error) {
	var rec openInterestRecord
	ok, err := m.get(openInterestKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &funding.PairOpenInterest{
		Long:  bigOrZero(rec.Long),
		Short: bigOrZero(rec.Short),
	}, nil
}

// PutOpenInterest persists the per-side exposure for a pair.
func (m *Manager) PutOpenInterest(pairIndex uint32, oi *funding.PairOpenInterest) error {
	return m.put(openInterestKey(pairIndex), &openInterestRecord{
		Long:  bigOrZero(oi.Long),
		Short: bigOrZero(oi.Short),
	})
}

// --- vault engine state ---

type vaultStateRecord struct {
	TotalShares           *big.Int
	AccRewardsPerToken    *big.Int
	AccPnlPerToken        signedInt
	AccPnlPerTokenUsed    signedInt
	DailyAccPnlDelta      signedInt
	DailyWindowStart      uint64
	CurrentEpoch          uint64
	EpochStart            uint64
	MaxSupply             *big.Int
	CurrentMaxSupply      *big.Int
	SupplyWindowStart     uint64
	EpochAdvanceRequested bool
	ShareToAssetPrice     *big.Int
}

// VaultState loads the vault accounting record, nil before first use.
func (m *Manager) VaultState() (*vault.VaultState, error) {
	var rec vaultStateRecord
	ok, err := m.get(vaultStateKey, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &vault.VaultState{
		TotalShares:           bigOrZero(rec.TotalShares),
		AccRewardsPerToken:    bigOrZero(rec.AccRewardsPerToken),
		AccPnlPerToken:        fromSigned(rec.AccPnlPerToken),
		AccPnlPerTokenUsed:    fromSigned(rec.AccPnlPerTokenUsed),
		DailyAccPnlDelta:      fromSigned(rec.DailyAccPnlDelta),
		DailyWindowStart:      int64(rec.DailyWindowStart),
		CurrentEpoch:          rec.CurrentEpoch,
		EpochStart:            int64(rec.EpochStart),
		MaxSupply:             bigOrZero(rec.MaxSupply),
		CurrentMaxSupply:      bigOrZero(rec.CurrentMaxSupply),
		SupplyWindowStart:     int64(rec.SupplyWindowStart),
		EpochAdvanceRequested: rec.EpochAdvanceRequested,
		ShareToAssetPrice:     bigOrZero(rec.ShareToAssetPrice),
	}, nil
}

// PutVaultState persists the vault accounting record.
func (m *Manager) PutVaultState(state *vault.VaultState) error {
	return m.put(vaultStateKey, &vaultStateRecord{
		TotalShares:           bigOrZero(state.TotalShares),
		AccRewardsPerToken:    bigOrZero(state.AccRewardsPerToken),
		AccPnlPerToken:        toSigned(state.AccPnlPerToken),
		AccPnlPerTokenUsed:    toSigned(state.AccPnlPerTokenUsed),
		DailyAccPnlDelta:      toSigned(state.DailyAccPnlDelta),
		DailyWindowStart:      uint64(state.DailyWindowStart),
		CurrentEpoch:          state.CurrentEpoch,
		EpochStart:            uint64(state.EpochStart),
		MaxSupply:             bigOrZero(state.MaxSupply),
		CurrentMaxSupply:      bigOrZero(state.CurrentMaxSupply),
		SupplyWindowStart:     uint64(state.SupplyWindowStart),
		EpochAdvanceRequested: state.EpochAdvanceRequested,
		ShareToAssetPrice:     bigOrZero(state.ShareToAssetPrice),
	})
}

// ShareBalance loads an owner's share balance, nil when absent.
func (m *Manager) ShareBalance(owner [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(shareBalanceKey(owner), balance)
	if err != nil || !ok {
		return nil, err
	}
	return balance, nil
}

// PutShareBalance persists an owner's share balance.
func (m *Manager) PutShareBalance(owner [20]byte, shares *big.Int) error {
	return m.put(shareBalanceKey(owner), bigOrZero(shares))
}

// WithdrawRequest loads the share amount an owner queued for an unlock
// epoch, nil when none exists.
func (m *Manager) WithdrawRequest(owner [20]byte, unlockEpoch uint64) (*big.Int, error) {
	shares := new(big.Int)
	ok, err := m.get(withdrawRequestKey(owner, unlockEpoch), shares)
	if err != nil || !ok {
		return nil, err
	}
	return shares, nil
}

// PutWithdrawRequest persists a queued withdraw request.
func (m *Manager) PutWithdrawRequest(owner [20]byte, unlockEpoch uint64, shares *big.Int) error {
	return m.put(withdrawRequestKey(owner, unlockEpoch), bigOrZero(shares))
}

// DeleteWithdrawRequest removes a queued withdraw request.
func (m *Manager) DeleteWithdrawRequest(owner [20]byte, unlockEpoch uint64) error {
	return m.db.Delete(withdrawRequestKey(owner, unlockEpoch))
}

type lockedDepositRecord struct {
	ID              uint64
	Owner           [20]byte
	Shares          *big.Int
	AssetsDeposited *big.Int
	AssetsDiscount  *big.Int
	LockStart       uint64
	LockDuration    uint64
}

// LockedDeposit loads a locked deposit receipt by id, nil when absent.
func (m *Manager) LockedDeposit(id uint64) (*vault.LockedDeposit, error) {
	var rec lockedDepositRecord
	ok, err := m.get(lockedDepositKey(id), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &vault.LockedDeposit{
		ID:              rec.ID,
		Owner:           rec.Owner,
		Shares:          bigOrZero(rec.Shares),
		AssetsDeposited: bigOrZero(rec.AssetsDeposited),
		AssetsDiscount:  bigOrZero(rec.AssetsDiscount),
		LockStart:       int64(rec.LockStart),
		LockDuration:    int64(rec.LockDuration),
	}, nil
}

// PutLockedDeposit persists a locked deposit receipt.
func (m *Manager) PutLockedDeposit(deposit *vault.LockedDeposit) error {
	return m.put(lockedDepositKey(deposit.ID), &lockedDepositRecord{
		ID:              deposit.ID,
		Owner:           deposit.Owner,
		Shares:          bigOrZero(deposit.Shares),
		AssetsDeposited: bigOrZero(deposit.AssetsDeposited),
		AssetsDiscount:  bigOrZero(deposit.AssetsDiscount),
		LockStart:       uint64(deposit.LockStart),
		LockDuration:    uint64(deposit.LockDuration),
	})
}

// DeleteLockedDeposit removes an unlocked deposit receipt.
func (m *Manager) DeleteLockedDeposit(id uint64) error {
	return m.db.Delete(lockedDepositKey(id))
}

// NextLockedDepositID allocates the next deposit receipt id.
func (m *Manager) NextLockedDepositID() (uint64, error) {
	return m.nextSequence(lockedDepositSeqKey)
}

// --- trade engine state ---

type positionRecord struct {
	Trader       [20]byte
	PairIndex    uint32
	Slot         uint32
	Long         bool
	Collateral   *big.Int
	Leverage     *big.Int
	OpenPrice    *big.Int
	Tp           *big.Int
	Sl           *big.Int
	SnapRollover signedInt
	SnapFunding  signedInt
	OpenBlock    uint64
}

// Position loads an open position by trader, pair and slot, nil when the
// slot is free.
func (m *Manager) Position(trader [20]byte, pairIndex, slot uint32) (*trade.Position, error) {
	var rec positionRecord
	ok, err := m.get(positionKey(trader, pairIndex, slot), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &trade.Position{
		Trader:     rec.Trader,
		PairIndex:  rec.PairIndex,
		Slot:       rec.Slot,
		Long:       rec.Long,
		Collateral: bigOrZero(rec.Collateral),
		Leverage:   bigOrZero(rec.Leverage),
		OpenPrice:  bigOrZero(rec.OpenPrice),
		Tp:         bigOrZero(rec.Tp),
		Sl:         bigOrZero(rec.Sl),
		Snapshot: funding.FeeSnapshot{
			Rollover: fromSigned(rec.SnapRollover),
			Funding:  fromSigned(rec.SnapFunding),
		},
		OpenBlock: rec.OpenBlock,
	}, nil
}

// PutPosition persists an open position in its slot.
func (m *Manager) PutPosition(pos *trade.Position) error {
	return m.put(positionKey(pos.Trader, pos.PairIndex, pos.Slot), &positionRecord{
		Trader:       pos.Trader,
		PairIndex:    pos.PairIndex,
		Slot:         pos.Slot,
		Long:         pos.Long,
		Collateral:   bigOrZero(pos.Collateral),
		Leverage:     bigOrZero(pos.Leverage),
		OpenPrice:    bigOrZero(pos.OpenPrice),
		Tp:           bigOrZero(pos.Tp),
		Sl:           bigOrZero(pos.Sl),
		SnapRollover: toSigned(pos.Snapshot.Rollover),
		SnapFunding:  toSigned(pos.Snapshot.Funding),
		OpenBlock:    pos.OpenBlock,
	})
}

// DeletePosition frees a position slot after settlement.
func (m *Manager) DeletePosition(trader [20]byte, pairIndex, slot uint32) error {
	return m.db.Delete(positionKey(trader, pairIndex, slot))
}

type pairParamsRecord struct {
	SpreadP              *big.Int
	DynamicSpreadEnabled bool
	DecayRatePerSec      *big.Int
	NeutralThreshold     *big.Int
	ImpactDepth          *big.Int
	ImpactSensitivity    *big.Int
	MaxPriceImpactP      *big.Int
	MinLeverage          *big.Int
	MaxLeverage          *big.Int
	MaxOpenInterest      *big.Int
	MaxGainP             uint64
	LiqThresholdP        uint64
	MaxTradesPerPair     uint32
	OrderTimeoutBlocks   uint64
}

// PairParams loads the execution parameters for a pair, nil when unset.
func (m *Manager) PairParams(pairIndex uint32) (*trade.PairParams, error) {
	var rec pairParamsRecord
	ok, err := m.get(pairParamsKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &trade.PairParams{
		SpreadP:              bigOrZero(rec.SpreadP),
		DynamicSpreadEnabled: rec.DynamicSpreadEnabled,
		DecayRatePerSec:      bigOrZero(rec.DecayRatePerSec),
		NeutralThreshold:     bigOrZero(rec.NeutralThreshold),
		ImpactDepth:          bigOrZero(rec.ImpactDepth),
		ImpactSensitivity:    bigOrZero(rec.ImpactSensitivity),
		MaxPriceImpactP:      bigOrZero(rec.MaxPriceImpactP),
		MinLeverage:          bigOrZero(rec.MinLeverage),
		MaxLeverage:          bigOrZero(rec.MaxLeverage),
		MaxOpenInterest:      bigOrZero(rec.MaxOpenInterest),
		MaxGainP:             rec.MaxGainP,
		LiqThresholdP:        rec.LiqThresholdP,
		MaxTradesPerPair:     rec.MaxTradesPerPair,
		OrderTimeoutBlocks:   rec.OrderTimeoutBlocks,
	}, nil
}

// PutPairParams persists the execution parameters for a pair.
func (m *Manager) PutPairParams(pairIndex uint32, params *trade.PairParams) error {
	return m.put(pairParamsKey(pairIndex), &pairParamsRecord{
		SpreadP:              bigOrZero(params.SpreadP),
		DynamicSpreadEnabled: params.DynamicSpreadEnabled,
		DecayRatePerSec:      bigOrZero(params.DecayRatePerSec),
		NeutralThreshold:     bigOrZero(params.NeutralThreshold),
		ImpactDepth:          bigOrZero(params.ImpactDepth),
		ImpactSensitivity:    bigOrZero(params.ImpactSensitivity),
		MaxPriceImpactP:      bigOrZero(params.MaxPriceImpactP),
		MinLeverage:          bigOrZero(params.MinLeverage),
		MaxLeverage:          bigOrZero(params.MaxLeverage),
		MaxOpenInterest:      bigOrZero(params.MaxOpenInterest),
		MaxGainP:             params.MaxGainP,
		LiqThresholdP:        params.LiqThresholdP,
		MaxTradesPerPair:     params.MaxTradesPerPair,
		OrderTimeoutBlocks:   params.OrderTimeoutBlocks,
	})
}

type spreadRecord struct {
	BuyVolume  *big.Int
	SellVolume *big.Int
	LastUpdate uint64
}

// DynamicSpread loads the volume tracker for a pair, nil when never used.
func (m *Manager) DynamicSpread(pairIndex uint32) (*trade.DynamicSpread, error) {
	var rec spreadRecord
	ok, err := m.get(spreadKey(pairIndex), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &trade.DynamicSpread{
		BuyVolume:  bigOrZero(rec.BuyVolume),
		SellVolume: bigOrZero(rec.SellVolume),
		LastUpdate: int64(rec.LastUpdate),
	}, nil
}

// PutDynamicSpread persists the volume tracker for a pair.
func (m *Manager) PutDynamicSpread(pairIndex uint32, spread *trade.DynamicSpread) error {
	return m.put(spreadKey(pairIndex), &spreadRecord{
		BuyVolume:  bigOrZero(spread.BuyVolume),
		SellVolume: bigOrZero(spread.SellVolume),
		LastUpdate: uint64(spread.LastUpdate),
	})
}

type pendingOrderRecord struct {
	ID          uint64
	Trader      [20]byte
	PairIndex   uint32
	Slot        uint32
	Open        bool
	PlacedBlock uint64
}

// PendingOrder loads a resting order by id, nil when absent.
func (m *Manager) PendingOrder(id uint64) (*trade.PendingOrder, error) {
	var rec pendingOrderRecord
	ok, err := m.get(pendingOrderKey(id), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &trade.PendingOrder{
		ID:          rec.ID,
		Trader:      rec.Trader,
		PairIndex:   rec.PairIndex,
		Slot:        rec.Slot,
		Open:        rec.Open,
		PlacedBlock: rec.PlacedBlock,
	}, nil
}

// PutPendingOrder persists a resting order.
func (m *Manager) PutPendingOrder(order *trade.PendingOrder) error {
	return m.put(pendingOrderKey(order.ID), &pendingOrderRecord{
		ID:          order.ID,
		Trader:      order.Trader,
		PairIndex:   order.PairIndex,
		Slot:        order.Slot,
		Open:        order.Open,
		PlacedBlock: order.PlacedBlock,
	})
}

// DeletePendingOrder removes a resolved or cancelled resting order.
func (m *Manager) DeletePendingOrder(id uint64) error {
	return m.db.Delete(pendingOrderKey(id))
}

// NextPendingOrderID allocates the next resting order id.
func (m *Manager) NextPendingOrderID() (uint64, error) {
	return m.nextSequence(pendingOrderSeqKey)
}
