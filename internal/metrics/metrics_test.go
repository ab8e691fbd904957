package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveProvider(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveProvider("news_api", 3, time.Second, nil)
	m.ObserveProvider("news_api", 0, time.Second, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.providerRuns.WithLabelValues("news_api", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.providerRuns.WithLabelValues("news_api", "error")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.providerArticles.WithLabelValues("news_api")))
}

func TestObserveSweep(t *testing.T) {
	m := New(prometheus.NewRegistry())
	started := time.Unix(1700000000, 0)

	m.ObserveSweep("skipped", started)
	require.Equal(t, 0.0, testutil.ToFloat64(m.lastSweep))

	m.ObserveSweep("ran", started)
	require.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("ran")))
	require.Equal(t, float64(1700000000), testutil.ToFloat64(m.lastSweep))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveProvider("x", 1, time.Second, nil)
		m.ObserveSweep("ran", time.Now())
		m.ObserveSearch("search", nil)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveSearch("search", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `news_aggregator_search_requests_total{kind="search",outcome="ok"} 1`)
}
