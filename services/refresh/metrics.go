package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runs          *prometheus.CounterVec
	refused       *prometheus.CounterVec
	entities      prometheus.Counter
	sources       *prometheus.CounterVec
	persistErrors prometheus.Counter
	runDuration   prometheus.Histogram
	active        prometheus.Gauge
}

// newMetrics registers the scheduler's collectors on reg, a nil reg gets a
// private registry so that several schedulers can coexist in tests.
func newMetrics(reg prometheus.Registerer) metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	auto := promauto.With(reg)

	return metrics{
		runs: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Refresh runs started, by trigger.",
		}, []string{"trigger"}),
		refused: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "runs_refused_total",
			Help:      "Refresh runs refused because another run was active, by trigger.",
		}, []string{"trigger"}),
		entities: auto.NewCounter(prometheus.CounterOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "entities_refreshed_total",
			Help:      "Entities that went through the orchestrator.",
		}),
		sources: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "source_results_total",
			Help:      "Adapter outcomes by source and result kind.",
		}, []string{"source", "result"}),
		persistErrors: auto.NewCounter(prometheus.CounterOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "persist_errors_total",
			Help:      "Entity refreshes that could not be written.",
		}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole refresh run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		active: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: "cptracker",
			Subsystem: "refresh",
			Name:      "run_active",
			Help:      "1 while a refresh run is in progress.",
		}),
	}
}
