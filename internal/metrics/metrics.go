// Package metrics implements ports.Metrics with Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fieldsync"

// Collector holds the queue instruments.
type Collector struct {
	queueDepth prometheus.Gauge
	online     prometheus.Gauge
	drains     *prometheus.CounterVec
	operations *prometheus.CounterVec
	drainTime  prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg means the
// default registerer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Operations waiting in the retry queue.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 while the connectivity signal reports online.",
		}),
		drains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drains_total",
			Help:      "Drain passes by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operation outcomes across direct execution and replay.",
		}, []string{"outcome"}),
		drainTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Time spent in drain passes that attempted work.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	for _, col := range []prometheus.Collector{c.queueDepth, c.online, c.drains, c.operations, c.drainTime} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) SetQueueDepth(n int) { c.queueDepth.Set(float64(n)) }

func (c *Collector) SetOnline(online bool) {
	if online {
		c.online.Set(1)
		return
	}
	c.online.Set(0)
}

// ObserveDrain counts a pass and, unless it was skipped, records its duration.
func (c *Collector) ObserveDrain(trigger, outcome string, took time.Duration) {
	c.drains.WithLabelValues(trigger, outcome).Inc()
	if outcome != "skipped" {
		c.drainTime.Observe(took.Seconds())
	}
}

func (c *Collector) CountOperation(outcome string) {
	c.operations.WithLabelValues(outcome).Inc()
}
