package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parcelpeer/authcore/internal/repository/postgres"
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RegisterPoolStats exports pool occupancy on the default registry.
func RegisterPoolStats(stats func() postgres.Stats) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "db_pool_connections_total",
			Help: "Connections currently open in the pool.",
		}, func() float64 { return float64(stats().Total) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "db_pool_connections_idle",
			Help: "Idle connections in the pool.",
		}, func() float64 { return float64(stats().Idle) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "db_pool_acquire_waiting",
			Help: "Goroutines currently waiting to acquire a pooled connection.",
		}, func() float64 { return float64(stats().Waiting) }),
	)
}

// RegisterSessionCount exports the size of the in-memory session
// registry.
func RegisterSessionCount(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "auth_active_sessions",
		Help: "Sessions tracked by the in-memory registry.",
	}, func() float64 { return float64(count()) }))
}
