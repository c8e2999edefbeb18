package connector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chazu/instancegraph/pkg/proxy"
)

// Metrics are the connector's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	items      *prometheus.CounterVec
	purged     prometheus.Counter
	bytes      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instancegraph",
			Name:      "operations_total",
			Help:      "Send and receive operations by result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "instancegraph",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of send and receive operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instancegraph",
			Name:      "baked_items_total",
			Help:      "Baked items by kind and status.",
		}, []string{"kind", "status"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "instancegraph",
			Name:      "purged_definitions_total",
			Help:      "Definitions erased before a receive.",
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instancegraph",
			Name:      "payload_bytes_total",
			Help:      "Encoded payload bytes moved through the store.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.duration, m.items, m.purged, m.bytes)
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) payloadBytes(op string, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) purge(definitions int) {
	if m == nil {
		return
	}
	m.purged.Add(float64(definitions))
}

func (m *Metrics) bake(r *proxy.BakeResult) {
	if m == nil || r == nil {
		return
	}
	for _, o := range r.Outcomes {
		m.items.WithLabelValues(o.Kind, o.Status.String()).Inc()
	}
}
