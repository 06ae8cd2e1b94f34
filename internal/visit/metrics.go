package visit

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts visit write outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	written prometheus.Counter
	failed  prometheus.Counter
	dropped prometheus.Counter
}

// NewMetrics registers the visit counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quoteedge",
			Subsystem: "visits",
			Name:      "written_total",
			Help:      "Visit records written to the sink",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quoteedge",
			Subsystem: "visits",
			Name:      "failed_total",
			Help:      "Visit records the sink rejected or that panicked while writing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quoteedge",
			Subsystem: "visits",
			Name:      "dropped_total",
			Help:      "Visit records dropped because the queue was full or closed",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.written, m.failed, m.dropped)
	}
	return m
}

func (m *Metrics) incWritten() {
	if m != nil {
		m.written.Inc()
	}
}

func (m *Metrics) incFailed() {
	if m != nil {
		m.failed.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}
