package comm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts link activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesIn    prometheus.Counter
	FramesOut   prometheus.Counter
	FrameErrors *prometheus.CounterVec
	Acks        *prometheus.CounterVec
	Pending     prometheus.Gauge
}

// NewMetrics creates unregistered metrics. constLabels usually identifies
// the device.
func NewMetrics(namespace string, constLabels prometheus.Labels) *Metrics {
	return &Metrics{
		FramesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "frames_received_total",
			Help:        "frames received, including acks",
			ConstLabels: constLabels,
		}),
		FramesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "frames_sent_total",
			Help:        "frames written to the transport, including acks",
			ConstLabels: constLabels,
		}),
		FrameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "frame_errors_total",
			Help:        "dropped frames by stage",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		Acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "acks_total",
			Help:        "request outcomes: acked, unmatched, evicted, expired, canceled",
			ConstLabels: constLabels,
		}, []string{"result"}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "pending_requests",
			Help:        "requests waiting for ack",
			ConstLabels: constLabels,
		}),
	}
}

// Register registers all collectors.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.FramesIn, m.FramesOut, m.FrameErrors, m.Acks, m.Pending} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) frameIn() {
	if m != nil {
		m.FramesIn.Inc()
	}
}

func (m *Metrics) frameOut() {
	if m != nil {
		m.FramesOut.Inc()
	}
}

func (m *Metrics) frameError(stage string) {
	if m != nil {
		m.FrameErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ack(result string, n int) {
	if m != nil && n > 0 {
		m.Acks.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) pending(n int) {
	if m != nil {
		m.Pending.Set(float64(n))
	}
}
