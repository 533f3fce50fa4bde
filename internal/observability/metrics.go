package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domestic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin API requests.",
		},
		[]string{"supervisor", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "domestic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"supervisor", "method", "path", "status"},
	)
	unitUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "domestic",
			Subsystem: "fleet",
			Name:      "unit_up",
			Help:      "Whether a fleet unit is ready (1) or not (0).",
		},
		[]string{"unit"},
	)
	unitStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domestic",
			Subsystem: "fleet",
			Name:      "unit_starts_total",
			Help:      "Unit start attempts by outcome.",
		},
		[]string{"unit", "outcome"},
	)
	unitStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domestic",
			Subsystem: "fleet",
			Name:      "unit_stops_total",
			Help:      "Unit stop attempts by outcome.",
		},
		[]string{"unit", "outcome"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "domestic",
			Subsystem: "fleet",
			Name:      "probe_duration_seconds",
			Help:      "Readiness probe duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"unit", "ready"},
	)
	portEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domestic",
			Subsystem: "fleet",
			Name:      "port_evictions_total",
			Help:      "Processes evicted from a unit port before launch.",
		},
		[]string{"unit", "port"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			unitUp, unitStarts, unitStops,
			probeDuration, portEvictions,
		)
	})
}

func RecordHTTPRequest(supervisor, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(supervisor, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(supervisor, method, path, statusLabel).Observe(duration.Seconds())
}

func SetUnitUp(unit string, up bool) {
	RegisterMetrics()
	v := 0.0
	if up {
		v = 1.0
	}
	unitUp.WithLabelValues(unit).Set(v)
}

func RecordUnitStart(unit string, outcome string) {
	RegisterMetrics()
	unitStarts.WithLabelValues(unit, outcome).Inc()
}

func RecordUnitStop(unit string, outcome string) {
	RegisterMetrics()
	unitStops.WithLabelValues(unit, outcome).Inc()
}

func RecordProbe(unit string, ready bool, duration time.Duration) {
	RegisterMetrics()
	probeDuration.WithLabelValues(unit, strconv.FormatBool(ready)).Observe(duration.Seconds())
}

func RecordPortEviction(unit string, port int) {
	RegisterMetrics()
	portEvictions.WithLabelValues(unit, strconv.Itoa(port)).Inc()
}
