// Package metrics exports authorization decisions as prometheus metrics.
package metrics

import (
	"context"
	"strconv"

	"github.com/goliatone/go-authz"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authz"

// Collector counts decisions and observes pipeline latency
type Collector struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Authorization decisions by outcome, reason and stage.",
			},
			[]string{"allowed", "reason", "stage", "optional"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Authorization pipeline latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}

	if reg != nil {
		reg.MustRegister(c.decisions, c.duration)
	}
	return c
}

// Observe records a single decision
func (c *Collector) Observe(d authz.Decision) {
	reason := string(d.Reason)
	if reason == "" {
		reason = "none"
	}

	c.decisions.WithLabelValues(
		strconv.FormatBool(d.Allowed),
		reason,
		string(d.Stage),
		strconv.FormatBool(d.Optional),
	).Inc()
	c.duration.WithLabelValues(string(d.Stage)).Observe(d.Duration.Seconds())
}

// Listener returns a DecisionListener feeding the collector
func (c *Collector) Listener() authz.DecisionListener {
	return func(_ context.Context, d authz.Decision) {
		c.Observe(d)
	}
}

// Decisions exposes the decision counter, mostly for tests
func (c *Collector) Decisions() *prometheus.CounterVec {
	return c.decisions
}
