package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/cruise-price-tracker/internal/metrics"
)

func TestMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RunStarted()
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RunInProgress), 0)

	m.Unit("cruise", "success")
	m.Unit("cruise", "error")
	m.Drop("addon")
	m.Purged("price_history", 3)
	m.RunFinished("success", 2*time.Second)
	m.RunRejected()

	assert.InDelta(t, 0.0, testutil.ToFloat64(m.RunInProgress), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("busy")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("cruise", "error")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.DropsTotal.WithLabelValues("addon")), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.RecordsPurged.WithLabelValues("price_history")), 0)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.RunStarted()
		m.Unit("addons", "success")
		m.Drop("cruise")
		m.NewOffer()
		m.NotifyFailed()
		m.Request("/api/prices", 200)
		m.RunFinished("error", time.Second)
	})
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Request("/api/prices", 404)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `price_tracker_http_requests_total{code="4xx",route="/api/prices"} 1`)
}
