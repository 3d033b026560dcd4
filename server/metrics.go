package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests      *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	activeStreams prometheus.Gauge
}

// newMetrics registers on a private registry so multiple Server values
// (notably in tests) never collide on metric names.
func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cargomesh_requests_total",
			Help: "Requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cargomesh_routing_decisions_total",
			Help: "Routing decisions by primary domain.",
		}, []string{"domain"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cargomesh_request_duration_seconds",
			Help:    "End-to-end request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cargomesh_active_streams",
			Help: "Open SSE streams.",
		}),
	}
}
