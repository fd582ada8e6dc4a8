package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"perpcore/core/events"
	"perpcore/venue/trade"
	"perpcore/venue/vault"
)

type VenueMetrics struct {
	eventsEmitted    *prometheus.CounterVec
	tradesCancelled  *prometheus.CounterVec
	liquidations     prometheus.Counter
	sharePrice       prometheus.Gauge
	collateralization prometheus.Gauge
	fundingRate      *prometheus.GaugeVec
	openInterest     *prometheus.GaugeVec
}

var (
	venueOnce     sync.Once
	venueRegistry *VenueMetrics
)

func Venue() *VenueMetrics {
	venueOnce.Do(func() {
		venueRegistry = &VenueMetrics{
			eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "venue_events_total",
				Help: "Count of engine events emitted by type.",
			}, []string{"type"}),
			tradesCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "venue_trades_cancelled_total",
				Help: "Count of cancelled orders by reason.",
			}, []string{"reason"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "venue_liquidations_total",
				Help: "Count of forced position closes.",
			}),
			sharePrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "venue_vault_share_price",
				Help: "Current vault share price in asset units per share.",
			}),
			collateralization: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "venue_vault_collateralization_percent",
				Help: "Current vault collateralization percent.",
			}),
			fundingRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "venue_funding_rate_per_block",
				Help: "Latest committed funding rate per block by pair.",
			}, []string{"pair"}),
			openInterest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "venue_open_interest",
				Help: "Per-side open interest in asset units by pair.",
			}, []string{"pair", "side"}),
		}
		prometheus.MustRegister(
			venueRegistry.eventsEmitted,
			venueRegistry.tradesCancelled,
			venueRegistry.liquidations,
			venueRegistry.sharePrice,
			venueRegistry.collateralization,
			venueRegistry.fundingRate,
			venueRegistry.openInterest,
		)
	})
	return venueRegistry
}

// ObserveEvent counts an emitted event and updates any gauges derivable
// from its attributes.
func (m *VenueMetrics) ObserveEvent(eventType string, attrs map[string]string) {
	if m == nil || eventType == "" {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()

	switch eventType {
	case trade.EventTypeTradeCancelled:
		reason := attrs["reason"]
		if reason == "" {
			reason = "unknown"
		}
		m.tradesCancelled.WithLabelValues(reason).Inc()
	case trade.EventTypeTradeClosed:
		if attrs["liquidated"] == "true" {
			m.liquidations.Inc()
		}
	}
	if price, ok := attrs["sharePrice"]; ok {
		m.setBigGauge(m.sharePrice, price)
	}
	if rate, ok := attrs["rate"]; ok {
		if pair, okPair := attrs["pair"]; okPair {
			m.setBigGauge(m.fundingRate.WithLabelValues(pair), rate)
		}
	}
}

// ObserveVaultState refreshes the vault gauges from a state snapshot.
func (m *VenueMetrics) ObserveVaultState(state *vault.VaultState) {
	if m == nil || state == nil {
		return
	}
	m.sharePrice.Set(bigToFloat(state.SharePrice()))
	m.collateralization.Set(bigToFloat(state.CollateralizationP()))
}

// ObserveOpenInterest refreshes the per-side exposure gauges for a pair.
func (m *VenueMetrics) ObserveOpenInterest(pairIndex uint32, long, short *big.Int) {
	if m == nil {
		return
	}
	pair := strconv.FormatUint(uint64(pairIndex), 10)
	m.openInterest.WithLabelValues(pair, "long").Set(bigToFloat(long))
	m.openInterest.WithLabelValues(pair, "short").Set(bigToFloat(short))
}

func (m *VenueMetrics) setBigGauge(gauge prometheus.Gauge, raw string) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return
	}
	gauge.Set(bigToFloat(v))
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// Emitter adapts the metrics registry to events.Emitter so engines feed the
// counters directly through their event fan-out.
type Emitter struct {
	metrics *VenueMetrics
}

// NewEmitter returns an emitter backed by the shared registry.
func NewEmitter() *Emitter {
	return &Emitter{metrics: Venue()}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	e.metrics.ObserveEvent(payload.Type, payload.Attributes)
}
