package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors of the HTTP surface.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests          *prometheus.CounterVec
	StreamClients     prometheus.Gauge
	SnapshotsStreamed prometheus.Counter
}

// NewMetrics registers the server metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "missionctl_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "missionctl_http_requests_total")
	if err != nil {
		return nil, err
	}

	clients, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "missionctl_stream_clients",
		Help: "Current number of connected mission stream clients.",
	}), "missionctl_stream_clients")
	if err != nil {
		return nil, err
	}

	streamed, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "missionctl_snapshots_streamed_total",
		Help: "Total number of snapshots written to stream clients.",
	}), "missionctl_snapshots_streamed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:          gatherer,
		Requests:          requests,
		StreamClients:     clients,
		SnapshotsStreamed: streamed,
	}, nil
}

// Handler exposes the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// register adds c to reg, returning the existing collector when an
// identical one is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
