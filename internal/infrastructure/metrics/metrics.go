// Package metrics holds the Prometheus instruments of the converter
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh kinds
const (
	KindRates   = "rates"
	KindCatalog = "catalog"
)

// Outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuperseded = "superseded"
	OutcomeSkipped    = "skipped"
)

// ExchangeMetrics collects refresh, conversion and connectivity metrics.
// A nil *ExchangeMetrics is valid and records nothing.
type ExchangeMetrics struct {
	RefreshTotal       *prometheus.CounterVec
	RefreshDuration    *prometheus.HistogramVec
	RateTableSize      prometheus.Gauge
	ConversionsTotal   *prometheus.CounterVec
	DebounceCoalesced  prometheus.Counter
	HistoryLength      prometheus.Gauge
	FavoritesCount     prometheus.Gauge
	NetworkOffline     prometheus.Gauge
	NetworkTransitions *prometheus.CounterVec
}

// NewExchangeMetrics registers the instruments on reg
func NewExchangeMetrics(reg prometheus.Registerer) *ExchangeMetrics {
	factory := promauto.With(reg)

	return &ExchangeMetrics{
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_refresh_total",
			Help: "Remote refreshes by kind and outcome",
		}, []string{"kind", "outcome"}),
		RefreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fx_refresh_duration_seconds",
			Help:    "Duration of remote refresh requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		RateTableSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fx_rate_table_currencies",
			Help: "Currencies in the cached rate table",
		}),
		ConversionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_conversions_total",
			Help: "Conversion computations by outcome",
		}, []string{"outcome"}),
		DebounceCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "fx_debounce_coalesced_total",
			Help: "Input changes absorbed by a later change within the debounce window",
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fx_history_entries",
			Help: "Entries in the conversion history",
		}),
		FavoritesCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fx_favorite_pairs",
			Help: "Favorite currency pairs",
		}),
		NetworkOffline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fx_network_offline",
			Help: "1 while the network is considered offline",
		}),
		NetworkTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_network_transitions_total",
			Help: "Connectivity transitions by direction",
		}, []string{"to"}),
	}
}

// ObserveRefresh records one refresh attempt
func (m *ExchangeMetrics) ObserveRefresh(kind, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(kind, outcome).Inc()
	m.RefreshDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// SetRateTableSize records the size of the current table
func (m *ExchangeMetrics) SetRateTableSize(n int) {
	if m == nil {
		return
	}
	m.RateTableSize.Set(float64(n))
}

// ObserveConversion records a computation outcome
func (m *ExchangeMetrics) ObserveConversion(outcome string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(outcome).Inc()
}

// IncCoalesced records a debounce re-arm that replaced a pending timer
func (m *ExchangeMetrics) IncCoalesced() {
	if m == nil {
		return
	}
	m.DebounceCoalesced.Inc()
}

// SetHistoryLength records the history size
func (m *ExchangeMetrics) SetHistoryLength(n int) {
	if m == nil {
		return
	}
	m.HistoryLength.Set(float64(n))
}

// SetFavoritesCount records the number of favorites
func (m *ExchangeMetrics) SetFavoritesCount(n int) {
	if m == nil {
		return
	}
	m.FavoritesCount.Set(float64(n))
}

// SetOffline records the connectivity state and counts the transition
func (m *ExchangeMetrics) SetOffline(offline bool) {
	if m == nil {
		return
	}
	if offline {
		m.NetworkOffline.Set(1)
		m.NetworkTransitions.WithLabelValues("offline").Inc()
		return
	}
	m.NetworkOffline.Set(0)
	m.NetworkTransitions.WithLabelValues("online").Inc()
}
