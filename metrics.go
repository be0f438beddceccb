package ecengine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments accelerator dispatches and the signing retry loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Dispatches   *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	SignRetries  prometheus.Counter
	TrapsTripped *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecengine",
			Name:      "dispatches_total",
			Help:      "Accelerator dispatches by operation and outcome.",
		}, []string{"op", "result"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecengine",
			Name:      "dispatch_seconds",
			Help:      "Time spent holding the accelerator mutex.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"op"}),
		SignRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecengine",
			Name:      "sign_retries_total",
			Help:      "ECDSA signing iterations restarted on a zero r or s.",
		}),
		TrapsTripped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecengine",
			Name:      "zero_result_traps_total",
			Help:      "Point multiplications rejected for a zero result.",
		}, []string{"curve"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Dispatches, m.Latency, m.SignRetries, m.TrapsTripped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = Class(err).String()
	}
	m.Dispatches.WithLabelValues(op, result).Inc()
	m.Latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) signRetry() {
	if m == nil {
		return
	}
	m.SignRetries.Inc()
}

func (m *Metrics) trapTripped(curve string) {
	if m == nil {
		return
	}
	m.TrapsTripped.WithLabelValues(curve).Inc()
}
