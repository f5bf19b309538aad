package api

import "github.com/prometheus/client_golang/prometheus"

var (
	wsClientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "edgelord",
		Subsystem: "dashboard",
		Name:      "ws_clients",
		Help:      "Number of WebSocket dashboard clients currently connected.",
	})
	wsBroadcastsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edgelord",
		Subsystem: "dashboard",
		Name:      "ws_broadcasts_dropped_total",
		Help:      "Number of event broadcasts dropped because a client's send buffer was full.",
	})
)

func init() {
	prometheus.MustRegister(wsClientsConnected, wsBroadcastsDropped)
}
