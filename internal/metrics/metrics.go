package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes recorded in JobsTotal.
const (
	ResultNoSignal     = "no_signal"
	ResultSignal       = "signal"
	ResultInsufficient = "insufficient_data"
	ResultDataError    = "data_error"
	ResultNotifyError  = "notify_error"
	ResultPanic        = "panic"
	ResultDuplicate    = "duplicate"
	ResultInFlight     = "in_flight"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	TicksTotal        prometheus.Counter
	TickDur           prometheus.Histogram
	LastTickTimestamp prometheus.Gauge

	// Per-job outcomes, labels: result
	JobsTotal *prometheus.CounterVec
	InFlight  prometheus.Gauge

	FetchDur   prometheus.Histogram
	ComputeDur prometheus.Histogram

	// labels: kind, interval
	SignalsTotal *prometheus.CounterVec
	// labels: path=primary|alternate, result=ok|error
	NotifyTotal *prometheus.CounterVec

	DedupErrors prometheus.Counter

	// Market data circuit breaker, labels: pair
	BreakerState *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisherbot_ticks_total",
			Help: "Scheduler ticks processed",
		}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fisherbot_tick_duration_seconds",
			Help:    "Wall time from tick start until every job of the tick finished",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastTickTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fisherbot_last_tick_timestamp_seconds",
			Help: "Unix time of the last processed tick",
		}),

		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fisherbot_jobs_total",
			Help: "Scan jobs by outcome",
		}, []string{"result"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fisherbot_jobs_in_flight",
			Help: "Scan jobs currently executing",
		}),

		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fisherbot_fetch_duration_seconds",
			Help:    "Market data window fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fisherbot_compute_duration_seconds",
			Help:    "Oscillator computation latency per window",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fisherbot_signals_total",
			Help: "Band-crossing signals detected",
		}, []string{"kind", "interval"}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fisherbot_notifications_total",
			Help: "Notification attempts by delivery path and result",
		}, []string{"path", "result"}),

		DedupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisherbot_dedup_errors_total",
			Help: "Dedup claims that failed and were skipped",
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fisherbot_breaker_state",
			Help: "Market data circuit breaker state per pair (0=closed, 1=open, 2=half-open)",
		}, []string{"pair"}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisherbot_breaker_trips_total",
			Help: "Times a market data circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDur,
		m.LastTickTimestamp,
		m.JobsTotal,
		m.InFlight,
		m.FetchDur,
		m.ComputeDur,
		m.SignalsTotal,
		m.NotifyTotal,
		m.DedupErrors,
		m.BreakerState,
		m.BreakerTrips,
	)

	return m
}

// BreakerChanged records a breaker transition. state follows the breaker's
// numbering; open is 1.
func (m *Metrics) BreakerChanged(pair string, state int) {
	m.BreakerState.WithLabelValues(pair).Set(float64(state))
	if state == 1 {
		m.BreakerTrips.Inc()
	}
}
