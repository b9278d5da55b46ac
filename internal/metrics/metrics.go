// Package metrics exposes run and detection counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "price_tracker"

// Metrics holds all prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	RunInProgress    prometheus.Gauge
	UnitsTotal       *prometheus.CounterVec
	DropsTotal       *prometheus.CounterVec
	NewOffersTotal   prometheus.Counter
	NotifyFailures   prometheus.Counter
	RecordsPurged    *prometheus.CounterVec
	HTTPRequestsSeen *prometheus.CounterVec
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Runs by final state (success, error, busy).",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		RunInProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_in_progress",
			Help:      "1 while a run holds the gate.",
		}),
		UnitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "units_total",
			Help:      "Units of work by module and outcome.",
		}, []string{"module", "status"}),
		DropsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "price_drops_total",
			Help:      "Notifiable price drops detected.",
		}, []string{"record_type"}),
		NewOffersTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "new_offers_total",
			Help:      "Offers seen for the first time.",
		}),
		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}),
		RecordsPurged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_purged_total",
			Help:      "Rows removed by the retention purge.",
		}, []string{"table"}),
		HTTPRequestsSeen: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route pattern and status class.",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RunStarted marks the gate as held.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunInProgress.Set(1)
}

// RunFinished records the outcome of a run that held the gate.
func (m *Metrics) RunFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunInProgress.Set(0)
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// RunRejected counts a run turned away by the gate.
func (m *Metrics) RunRejected() {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues("busy").Inc()
}

// Unit counts one unit of work.
func (m *Metrics) Unit(module, status string) {
	if m == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(module, status).Inc()
}

// Drop counts one notifiable drop.
func (m *Metrics) Drop(recordType string) {
	if m == nil {
		return
	}
	m.DropsTotal.WithLabelValues(recordType).Inc()
}

// NewOffer counts one first sighting.
func (m *Metrics) NewOffer() {
	if m == nil {
		return
	}
	m.NewOffersTotal.Inc()
}

// NotifyFailed counts one failed delivery.
func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

// Purged counts rows removed from table.
func (m *Metrics) Purged(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsPurged.WithLabelValues(table).Add(float64(n))
}

// Request counts one API request.
func (m *Metrics) Request(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequestsSeen.WithLabelValues(route, statusClass(code)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
