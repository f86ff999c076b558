package ports

import "time"

// Metrics receives queue instrumentation. The zero-cost default discards
// everything; internal/metrics provides the Prometheus implementation.
type Metrics interface {
	SetQueueDepth(n int)
	SetOnline(online bool)
	ObserveDrain(trigger, outcome string, took time.Duration)
	CountOperation(outcome string)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) SetQueueDepth(int)                          {}
func (NoopMetrics) SetOnline(bool)                             {}
func (NoopMetrics) ObserveDrain(string, string, time.Duration) {}
func (NoopMetrics) CountOperation(string)                      {}
