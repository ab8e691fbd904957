// metrics собирает prometheus-метрики ингестии и поиска.
// Все методы допускают nil-получатель: без метрик код работает так же.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news_aggregator"

type Metrics struct {
	gatherer prometheus.Gatherer

	providerRuns     *prometheus.CounterVec
	providerArticles *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	sweeps           *prometheus.CounterVec
	lastSweep        prometheus.Gauge
	searches         *prometheus.CounterVec
}

// New регистрирует метрики в reg. Для тестов удобно передавать prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		providerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_runs_total",
			Help:      "Provider runs by outcome.",
		}, []string{"provider", "outcome"}),
		providerArticles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_articles_upserted_total",
			Help:      "Articles upserted per provider.",
		}, []string{"provider"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Provider run duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Sweep attempts by status (ran, skipped, busy).",
		}, []string{"status"}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Start time of the last completed sweep.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.providerRuns,
		m.providerArticles,
		m.providerDuration,
		m.sweeps,
		m.lastSweep,
		m.searches,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveProvider фиксирует один запуск провайдера.
func (m *Metrics) ObserveProvider(provider string, upserted int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerRuns.WithLabelValues(provider, outcome(err)).Inc()
	m.providerArticles.WithLabelValues(provider).Add(float64(upserted))
	m.providerDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) ObserveSweep(status string, startedAt time.Time) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(status).Inc()
	if status == "ran" {
		m.lastSweep.Set(float64(startedAt.Unix()))
	}
}

func (m *Metrics) ObserveSearch(kind string, err error) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(kind, outcome(err)).Inc()
}

// Handler отдаёт метрики в формате prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
