// Package monitoring - metrics.go exposes Prometheus counters for the
// billing engine. Scraped from the management server's /metrics endpoint.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Ticks            prometheus.Counter
	Charges          *prometheus.CounterVec // label: result = ok|failed
	BilledAmount     prometheus.Counter     // currency units, successful charges only
	ThresholdActions *prometheus.CounterVec // label: kind = lowbal|nobal|percall
	ActiveRecords    prometheus.Gauge
}

// NewMetrics registers the billing collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nibblebill_ticks_total",
			Help: "Metering ticks processed, including no-op ticks.",
		}),
		Charges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nibblebill_charges_total",
			Help: "Ledger charge attempts by result.",
		}, []string{"result"}),
		BilledAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "nibblebill_billed_amount_total",
			Help: "Total currency successfully billed across all calls.",
		}),
		ThresholdActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nibblebill_threshold_actions_total",
			Help: "Threshold actions dispatched by kind.",
		}, []string{"kind"}),
		ActiveRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nibblebill_active_records",
			Help: "Billing records currently held for active calls.",
		}),
	}
}

// ObserveCharge updates charge counters for one attempt.
func (m *Metrics) ObserveCharge(amount float64, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Charges.WithLabelValues("ok").Inc()
		// Counters reject negative deltas; a charge can be negative when
		// pause adjustments exceed the window's cost.
		if amount > 0 {
			m.BilledAmount.Add(amount)
		}
	} else {
		m.Charges.WithLabelValues("failed").Inc()
	}
}

// ObserveTick counts one metering tick.
func (m *Metrics) ObserveTick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

// ObserveThreshold counts one threshold action dispatch.
func (m *Metrics) ObserveThreshold(kind string) {
	if m == nil {
		return
	}
	m.ThresholdActions.WithLabelValues(kind).Inc()
}

// SetActiveRecords publishes the current record count.
func (m *Metrics) SetActiveRecords(n int) {
	if m == nil {
		return
	}
	m.ActiveRecords.Set(float64(n))
}
