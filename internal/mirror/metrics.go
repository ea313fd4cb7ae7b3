package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts applied, skipped and dropped deliveries.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics registers the mirror collectors on reg (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "panelmirror"
	}
	return &Metrics{
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mirror",
				Name:      "events_total",
				Help:      "Webhook deliveries applied to the mirror, by outcome.",
			},
			[]string{"kind", "operation", "outcome"},
		),
	}
}

func (m *Metrics) observe(t EventType, outcome Outcome) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(t.Kind.String(), t.Op.String(), outcome.String()).Inc()
}
