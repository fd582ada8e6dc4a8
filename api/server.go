package api

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perpcore/config"
	"perpcore/storage"
	"perpcore/venue/common"
	"perpcore/venue/funding"
	"perpcore/venue/trade"
	"perpcore/venue/vault"
)

// Server exposes the venue's read model and order entry over HTTP.
type Server struct {
	funding *funding.Engine
	vault   *vault.Engine
	trade   *trade.Engine
	state   *storage.Manager
	journal *storage.Journal
	ledger  *storage.AccountLedger
	pauses  *common.PauseSet
	quotes  *QuoteStore
	log     *slog.Logger
}

// NewServer wires the HTTP surface over the engines.
func NewServer(fundingEngine *funding.Engine, vaultEngine *vault.Engine, tradeEngine *trade.Engine,
	state *storage.Manager, journal *storage.Journal, ledger *storage.AccountLedger,
	pauses *common.PauseSet, quotes *QuoteStore, log *slog.Logger) *Server {
	return &Server{
		funding: fundingEngine,
		vault:   vaultEngine,
		trade:   tradeEngine,
		state:   state,
		journal: journal,
		ledger:  ledger,
		pauses:  pauses,
		quotes:  quotes,
		log:     log,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/vault", s.handleVaultState)
		r.Get("/pairs/{index}/funding", s.handlePendingFunding)
		r.Get("/pairs/{index}/rollover", s.handlePendingRollover)
		r.Get("/pairs/{index}/oi", s.handleOpenInterest)
		r.Get("/positions/{trader}/{index}/{slot}", s.handlePosition)
		r.Get("/events/recent", s.handleRecentEvents)

		r.Post("/quotes", s.handleRecordQuote)
		r.Post("/orders/open", s.handleOpenTrade)
		r.Post("/orders/close", s.handleCloseTrade)
		r.Post("/orders/liquidate", s.handleLiquidate)

		r.Post("/admin/pause", s.handlePause)
		r.Post("/admin/credit", s.handleCredit)
	})
	return r
}

func (s *Server) handleVaultState(w http.ResponseWriter, _ *http.Request) {
	state, err := s.state.VaultState()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if state == nil {
		state = &vault.VaultState{}
	}
	s.writeJSON(w, map[string]any{
		"totalShares":           bigString(state.TotalShares),
		"accRewardsPerToken":    bigString(state.AccRewardsPerToken),
		"accPnlPerToken":        bigString(state.AccPnlPerToken),
		"accPnlPerTokenUsed":    bigString(state.AccPnlPerTokenUsed),
		"sharePrice":            state.SharePrice().String(),
		"collateralizationP":    state.CollateralizationP().String(),
		"currentEpoch":          state.CurrentEpoch,
		"epochAdvanceRequested": state.EpochAdvanceRequested,
		"maxSupply":             bigString(state.MaxSupply),
		"currentMaxSupply":      bigString(state.CurrentMaxSupply),
	})
}

func (s *Server) handlePendingFunding(w http.ResponseWriter, r *http.Request) {
	pairIndex, ok := s.pairIndex(w, r)
	if !ok {
		return
	}
	pending, err := s.funding.PendingFunding(pairIndex)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, map[string]any{
		"pair":              pairIndex,
		"accPerOiLong":      pending.AccPerOiLong.String(),
		"accPerOiShort":     pending.AccPerOiShort.String(),
		"ratePerBlock":      pending.RatePerBlock.String(),
		"normalizedOiDelta": pending.NormalizedOiDelta.String(),
	})
}

func (s *Server) handlePendingRollover(w http.ResponseWriter, r *http.Request) {
	pairIndex, ok := s.pairIndex(w, r)
	if !ok {
		return
	}
	long, err := s.funding.PendingRollover(pairIndex, true)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	short, err := s.funding.PendingRollover(pairIndex, false)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, map[string]any{
		"pair":     pairIndex,
		"accLong":  long.String(),
		"accShort": short.String(),
	})
}

func (s *Server) handleOpenInterest(w http.ResponseWriter, r *http.Request) {
	pairIndex, ok := s.pairIndex(w, r)
	if !ok {
		return
	}
	oi, err := s.state.OpenInterest(pairIndex)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if oi == nil {
		oi = &funding.PairOpenInterest{Long: big.NewInt(0), Short: big.NewInt(0)}
	}
	s.writeJSON(w, map[string]any{
		"pair":  pairIndex,
		"long":  oi.Long.String(),
		"short": oi.Short.String(),
	})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	trader, err := config.ParseAddress(chi.URLParam(r, "trader"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pairIndex, ok := s.pairIndex(w, r)
	if !ok {
		return
	}
	slot, err := strconv.ParseUint(chi.URLParam(r, "slot"), 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := s.state.Position(trader, pairIndex, uint32(slot))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pos == nil {
		s.writeError(w, http.StatusNotFound, errQuoteNotFound)
		return
	}
	s.writeJSON(w, positionPayload(pos))
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = parsed
	}
	entries, err := s.journal.Recent(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, entries)
}

type quoteRequest struct {
	RequestID    string `json:"requestId"`
	Price        string `json:"price"`
	MarketClosed bool   `json:"marketClosed"`
}

func (s *Server) handleRecordQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(req.Price), 10)
	if !ok || strings.TrimSpace(req.RequestID) == "" {
		s.writeError(w, http.StatusBadRequest, errQuoteNotFound)
		return
	}
	s.quotes.Record(req.RequestID, price, req.MarketClosed)
	w.WriteHeader(http.StatusAccepted)
}

type openRequest struct {
	Trader       string `json:"trader"`
	Pair         uint32 `json:"pair"`
	Long         bool   `json:"long"`
	Collateral   string `json:"collateral"`
	Leverage     string `json:"leverage"`
	DesiredPrice string `json:"desiredPrice"`
	MaxSlippageP string `json:"maxSlippageP"`
	Tp           string `json:"tp"`
	Sl           string `json:"sl"`
	RequestID    string `json:"requestId"`
}

func (s *Server) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	trader, err := config.ParseAddress(req.Trader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	order := &trade.OpenOrder{
		Trader:       trader,
		PairIndex:    req.Pair,
		Long:         req.Long,
		Collateral:   parseBigOrNil(req.Collateral),
		Leverage:     parseBigOrNil(req.Leverage),
		DesiredPrice: parseBigOrNil(req.DesiredPrice),
		MaxSlippageP: parseBigOrNil(req.MaxSlippageP),
		Tp:           parseBigOrNil(req.Tp),
		Sl:           parseBigOrNil(req.Sl),
	}
	pos, reason, err := s.trade.OpenTrade(order, req.RequestID)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if reason != trade.CancelNone {
		s.writeJSON(w, map[string]any{"cancelled": reason.String()})
		return
	}
	s.writeJSON(w, positionPayload(pos))
}

type closeRequest struct {
	Caller    string `json:"caller,omitempty"`
	Trader    string `json:"trader"`
	Pair      uint32 `json:"pair"`
	Slot      uint32 `json:"slot"`
	RequestID string `json:"requestId"`
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, false)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, true)
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request, liquidation bool) {
	var req closeRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	trader, err := config.ParseAddress(req.Trader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var settlement *trade.CloseSettlement
	var reason trade.CancelReason
	if liquidation {
		caller := trader
		if strings.TrimSpace(req.Caller) != "" {
			if caller, err = config.ParseAddress(req.Caller); err != nil {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		settlement, reason, err = s.trade.Liquidate(caller, trader, req.Pair, req.Slot, req.RequestID)
	} else {
		settlement, reason, err = s.trade.CloseTrade(trader, req.Pair, req.Slot, req.RequestID)
	}
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if reason != trade.CancelNone {
		s.writeJSON(w, map[string]any{"cancelled": reason.String()})
		return
	}
	s.writeJSON(w, map[string]any{
		"value":            settlement.Value.String(),
		"toTrader":         settlement.AmountToTrader.String(),
		"liquidationFee":   settlement.LiquidationFee.String(),
		"vaultDelta":       settlement.VaultDelta.String(),
		"rolloverFee":      settlement.RolloverFee.String(),
		"fundingFee":       settlement.FundingFee.String(),
		"collateralClosed": settlement.CollateralClosed.String(),
		"closePrice":       settlement.ClosePrice.String(),
		"liquidated":       settlement.Liquidated,
	})
}

type pauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	module := strings.TrimSpace(req.Module)
	switch module {
	case common.ModuleFunding, common.ModuleVault, common.ModuleTrade:
	default:
		s.writeError(w, http.StatusBadRequest, common.ErrModulePaused)
		return
	}
	s.pauses.SetPaused(module, req.Paused)
	s.log.Info("module pause updated", "module", module, "paused", req.Paused)
	w.WriteHeader(http.StatusNoContent)
}

type creditRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	addr, err := config.ParseAddress(req.Address)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
	if !ok {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Credit(addr, amount); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pairIndex(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := chi.URLParam(r, "index")
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return uint32(parsed), true
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func positionPayload(pos *trade.Position) map[string]any {
	return map[string]any{
		"trader":     strings.ToLower(addrHex(pos.Trader)),
		"pair":       pos.PairIndex,
		"slot":       pos.Slot,
		"long":       pos.Long,
		"collateral": bigString(pos.Collateral),
		"leverage":   bigString(pos.Leverage),
		"openPrice":  bigString(pos.OpenPrice),
		"tp":         bigString(pos.Tp),
		"sl":         bigString(pos.Sl),
		"openBlock":  pos.OpenBlock,
	}
}

func addrHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBigOrNil(raw string) *big.Int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil
	}
	return v
}
