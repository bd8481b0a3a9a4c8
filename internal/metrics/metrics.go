// internal/metrics/metrics.go
//
// Prometheus instrumentation for the game server.
// Tracks games started/finished, moves by outcome, live games and request
// latency. Collectors are registered on an explicit registry so tests and
// multiple servers never collide on the global one.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the server updates.
type Metrics struct {
	GamesStarted   *prometheus.CounterVec
	GamesFinished  *prometheus.CounterVec
	Moves          *prometheus.CounterVec
	LiveGames      prometheus.Gauge
	RequestLatency *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors under namespace and registers them on a fresh
// registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		GamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Games created, by kind (custom, level, daily).",
		}, []string{"kind"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that ended, by final state.",
		}, []string{"state"}),
		Moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Reveal and flag commands, by outcome.",
		}, []string{"outcome"}),
		LiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_games",
			Help:      "Games currently held in memory.",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"route"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.GamesStarted,
		m.GamesFinished,
		m.Moves,
		m.LiveGames,
		m.RequestLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records how long a request on route took.
func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.RequestLatency.WithLabelValues(route).Observe(d.Seconds())
}
