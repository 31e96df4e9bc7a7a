// Package promhooks exports nscache events as Prometheus metrics.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/nscache"
)

// Hooks holds the collectors fed by nscache events.
type Hooks struct {
	connectAttemptFailures prometheus.Counter
	connects               *prometheus.CounterVec
	connectDuration        prometheus.Histogram
	decodeFailures         prometheus.Counter
	patternKeys            *prometheus.CounterVec
}

var _ nscache.Hooks = (*Hooks)(nil)

// New creates the collectors and registers them with reg. An empty namespace
// selects "nscache"; a nil reg selects prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) (*Hooks, error) {
	if namespace == "" {
		namespace = "nscache"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &Hooks{
		connectAttemptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "attempt_failures_total",
			Help:      "Total number of failed store connect attempts",
		}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "initializations_total",
			Help:      "Total number of completed connection initializations by result",
		}, []string{"result"}),
		connectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "connect_duration_seconds",
			Help:      "Time from first attempt to an established store handle",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 20, 40},
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Total number of cached values that could not be decoded",
		}),
		patternKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pattern_keys_total",
			Help:      "Keys handled by pattern removal by outcome",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		h.connectAttemptFailures,
		h.connects,
		h.connectDuration,
		h.decodeFailures,
		h.patternKeys,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) ConnectAttemptFailed(int, time.Duration, error) {
	h.connectAttemptFailures.Inc()
}

func (h *Hooks) Connected(_ int, elapsed time.Duration) {
	h.connects.WithLabelValues("success").Inc()
	h.connectDuration.Observe(elapsed.Seconds())
}

func (h *Hooks) ConnectFailed(int, error) {
	h.connects.WithLabelValues("failure").Inc()
}

func (h *Hooks) DecodeFailed(string, error) {
	h.decodeFailures.Inc()
}

func (h *Hooks) PatternRemoved(_ string, matched, deleted, failed int) {
	h.patternKeys.WithLabelValues("matched").Add(float64(matched))
	h.patternKeys.WithLabelValues("deleted").Add(float64(deleted))
	h.patternKeys.WithLabelValues("failed").Add(float64(failed))
}
