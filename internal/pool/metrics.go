package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	poolRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edgelord",
		Subsystem: "pool",
		Name:      "rotations_total",
		Help:      "Number of connections preemptively rotated before TTL expiry.",
	})
	poolRestartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edgelord",
		Subsystem: "pool",
		Name:      "restarts_total",
		Help:      "Number of connections restarted after a crash or silence timeout.",
	})
	poolEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edgelord",
		Subsystem: "pool",
		Name:      "events_dropped_total",
		Help:      "Number of market events dropped because the merged event channel was full.",
	})
)

func init() {
	prometheus.MustRegister(poolRotationsTotal, poolRestartsTotal, poolEventsDropped)
}
