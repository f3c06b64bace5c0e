package client

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "adaptest"
	metricsSubsystem = "client"
)

// Metrics holds the Prometheus collectors of the transport.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the transport collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "requests_total",
				Help:      "Requests sent to the adaptive-testing service by endpoint, method and status",
			},
			[]string{"endpoint", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Round-trip latency of service requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint", "method"},
		),
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe records one finished request. status 0 means a transport failure.
func (m *Metrics) observe(endpoint, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(endpoint, method, label).Inc()
	m.requestDuration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}
