// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tickstream"

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ticks_total", Help: "Count of ticks recorded into the store"},
		[]string{"symbol"},
	)
	FeedReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "feed_reconnects_total", Help: "Reconnects scheduled after an unexpected feed disconnect"},
		[]string{"symbol"},
	)
	FeedActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "feed_active_connections", Help: "Feed connections currently open"},
	)
	FeedDroppedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "feed_dropped_messages_total", Help: "Inbound feed messages that failed to parse"},
		[]string{"symbol"},
	)
	FanoutSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "fanout_subscribers", Help: "Live tick subscribers"},
	)
	FanoutDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "fanout_dropped_total", Help: "Ticks dropped for subscribers with a full buffer"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		FeedReconnectsTotal,
		FeedActiveConnections,
		FeedDroppedMessagesTotal,
		FanoutSubscribers,
		FanoutDroppedTotal,
	)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
