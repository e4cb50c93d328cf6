package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "heatpulse"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	eventsIngested   prometheus.Counter
	batchesIngested  prometheus.Counter
	batchesRejected  *prometheus.CounterVec
	sessionsCreated  prometheus.Counter
	sessionsSwept    prometheus.Counter
	queryDuration    *prometheus.HistogramVec
	rateLimitedTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		eventsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Events accepted and stored",
		}),
		batchesIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Batches accepted and stored",
		}),
		// reason: validation, store
		batchesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_rejected_total",
			Help:      "Batches rejected by reason",
		}, []string{"reason"}),
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Sessions issued",
		}),
		sessionsSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "swept_total",
			Help:      "Expired sessions removed by the sweeper",
		}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "query_duration_seconds",
			Help:      "Aggregation query latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"query", "status"}),
		rateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"group"}),
	}
}

func (m *Metrics) BatchIngested(events int) {
	if m == nil {
		return
	}
	m.batchesIngested.Inc()
	m.eventsIngested.Add(float64(events))
}

func (m *Metrics) BatchRejected(reason string) {
	if m == nil {
		return
	}
	m.batchesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

// ObserveQuery records the latency of one aggregation query.
func (m *Metrics) ObserveQuery(query string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.queryDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RateLimited(group string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(group).Inc()
}
