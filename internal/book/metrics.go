package book

import "github.com/prometheus/client_golang/prometheus"

var bookDropNotices = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "edgelord",
	Subsystem: "book_cache",
	Name:      "notices_dropped_total",
	Help:      "Number of subscriber notices dropped because the subscriber channel was full.",
})

func init() {
	prometheus.MustRegister(bookDropNotices)
}
