package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of an engine. A nil *Metrics
// records nothing.
type Metrics struct {
	queries       prometheus.Counter
	queryDuration *prometheus.HistogramVec
	resolutions   prometheus.Counter
	tableLookups  *prometheus.CounterVec
	deriveIters   prometheus.Counter
}

// NewMetrics registers engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounter(prometheus.CounterOpts{
			Name: "koloss_queries_total",
			Help: "Queries started",
		}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "koloss_query_duration_seconds",
			Help:    "Query duration from start to exhaustion or error",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"result"}),
		resolutions: f.NewCounter(prometheus.CounterOpts{
			Name: "koloss_resolutions_total",
			Help: "Clause resolution steps",
		}),
		tableLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "koloss_table_lookups_total",
			Help: "Tabled calls by outcome",
		}, []string{"result"}),
		deriveIters: f.NewCounter(prometheus.CounterOpts{
			Name: "koloss_derive_iterations_total",
			Help: "Forward-chaining passes",
		}),
	}
}

func (m *Metrics) query() {
	if m != nil {
		m.queries.Inc()
	}
}

func (m *Metrics) queryDone(result string, d time.Duration) {
	if m != nil {
		m.queryDuration.WithLabelValues(result).Observe(d.Seconds())
	}
}

func (m *Metrics) resolution() {
	if m != nil {
		m.resolutions.Inc()
	}
}

func (m *Metrics) tableHit() {
	if m != nil {
		m.tableLookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) tableMiss() {
	if m != nil {
		m.tableLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) deriveIteration() {
	if m != nil {
		m.deriveIters.Inc()
	}
}
