// Package prom counts cachegate events with Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cachegate"
)

// Hooks holds the Prometheus collectors. Keys are never used as labels.
type Hooks struct {
	fireFailed   *prometheus.CounterVec
	safeTimedOut *prometheus.CounterVec
	safeFailed   *prometheus.CounterVec
	decodeFailed prometheus.Counter
	generation   prometheus.Gauge
	stopped      prometheus.Counter
}

var _ cachegate.Hooks = (*Hooks)(nil)

// New creates unregistered collectors under namespace (e.g. "myapp").
func New(namespace string) *Hooks {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "cachegate", Name: name, Help: help}
	}
	return &Hooks{
		fireFailed: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"fire_failed_total", "Fire-and-forget operations that failed in the background.")), []string{"op"}),
		safeTimedOut: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"safe_timeouts_total", "Safe operations abandoned at the timeout.")), []string{"op"}),
		safeFailed: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"safe_failed_total", "Safe operations that returned an error other than a timeout.")), []string{"op"}),
		decodeFailed: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"decode_failed_total", "Stored values the codec could not decode."))),
		generation: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"connection_generation", "Generation of the current backend connection."))),
		stopped: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"stopped_total", "Times the cache was stopped."))),
	}
}

// Register creates the collectors and registers them with reg.
func Register(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := New(namespace)
	for _, c := range h.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Collectors() []prometheus.Collector {
	return []prometheus.Collector{h.fireFailed, h.safeTimedOut, h.safeFailed, h.decodeFailed, h.generation, h.stopped}
}

func (h *Hooks) FireFailed(op cachegate.Op, _ string, _ error) {
	h.fireFailed.WithLabelValues(string(op)).Inc()
}

func (h *Hooks) SafeTimedOut(op cachegate.Op, _ string) {
	h.safeTimedOut.WithLabelValues(string(op)).Inc()
}

func (h *Hooks) SafeFailed(op cachegate.Op, _ string, _ error) {
	h.safeFailed.WithLabelValues(string(op)).Inc()
}

func (h *Hooks) DecodeFailed(string, error) { h.decodeFailed.Inc() }

func (h *Hooks) Reinitialized(generation uint64) { h.generation.Set(float64(generation)) }

func (h *Hooks) Stopped() { h.stopped.Inc() }
