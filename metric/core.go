package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core query-protocol metrics (not transport-specific)
type Metrics struct {
	QueriesTotal     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	QueriesInFlight  prometheus.Gauge
	ComponentsMoved  *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	EntitiesResolved *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all protocol metrics
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "layr",
				Subsystem: "query",
				Name:      "total",
				Help:      "Total number of queries served",
			},
			[]string{"transport", "method", "status"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "layr",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"transport", "method"},
		),

		QueriesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "layr",
				Subsystem: "query",
				Name:      "in_flight",
				Help:      "Number of queries currently executing",
			},
		),

		ComponentsMoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "layr",
				Subsystem: "wire",
				Name:      "components_total",
				Help:      "Total number of component payloads serialized or deserialized",
			},
			[]string{"direction"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "layr",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of query errors by wire code",
			},
			[]string{"code"},
		),

		EntitiesResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "layr",
				Subsystem: "entity",
				Name:      "resolved_total",
				Help:      "Total number of entity lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordQuery records one served query with its duration.
func (m *Metrics) RecordQuery(transport, method, status string, seconds float64) {
	m.QueriesTotal.WithLabelValues(transport, method, status).Inc()
	m.QueryDuration.WithLabelValues(transport, method).Observe(seconds)
}

// QueryStarted marks a query as in flight.
func (m *Metrics) QueryStarted() {
	m.QueriesInFlight.Inc()
}

// QueryFinished marks an in-flight query as done.
func (m *Metrics) QueryFinished() {
	m.QueriesInFlight.Dec()
}

// RecordComponents records component payloads crossing the wire.
// Direction is "in" or "out".
func (m *Metrics) RecordComponents(direction string, count int) {
	m.ComponentsMoved.WithLabelValues(direction).Add(float64(count))
}

// RecordError records a query error by its wire code.
func (m *Metrics) RecordError(code string) {
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

// RecordEntityLookup records an identity-map reconciliation outcome
// ("hit", "created").
func (m *Metrics) RecordEntityLookup(outcome string) {
	m.EntitiesResolved.WithLabelValues(outcome).Inc()
}

// collectors returns every core collector for bulk registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.QueriesTotal,
		m.QueryDuration,
		m.QueriesInFlight,
		m.ComponentsMoved,
		m.ErrorsTotal,
		m.EntitiesResolved,
	}
}
