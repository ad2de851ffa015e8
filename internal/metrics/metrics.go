// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leveler_messages_total",
		Help: "Inbound messages by outcome (awarded, ignored, failed).",
	}, []string{"outcome"})

	XPAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leveler_xp_awarded_total",
		Help: "Total XP committed to the ledger.",
	})

	LevelUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leveler_level_ups_total",
		Help: "Level transitions emitted by the progression engine.",
	})

	AwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leveler_award_duration_seconds",
		Help:    "Time spent in one award read-modify-write cycle.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	CacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leveler_cache_errors_total",
		Help: "Leaderboard cache failures by operation.",
	}, []string{"op"})

	PingRunnersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leveler_ping_runners_active",
		Help: "Ping demo timers currently running.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
