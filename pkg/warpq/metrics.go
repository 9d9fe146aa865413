package warpq

import (
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// Metric names registered by the scheduler.
const (
	MetricAdded      = "warpq.added"
	MetricRemoved    = "warpq.removed"
	MetricDispatched = "warpq.dispatched"
	MetricSucceeded  = "warpq.succeeded"
	MetricFailed     = "warpq.failed"
	MetricAborted    = "warpq.aborted"
	MetricInFlight   = "warpq.inflight"
	MetricQueued     = "warpq.queued"
	MetricElapsed    = "warpq.elapsed"
)

type schedulerMetrics struct {
	registry   metrics.Registry
	added      metrics.Counter
	removed    metrics.Counter
	dispatched metrics.Counter
	succeeded  metrics.Counter
	failed     metrics.Counter
	aborted    metrics.Counter
	inflight   metrics.Gauge
	queued     metrics.Gauge
	elapsed    metrics.Timer
}

func newSchedulerMetrics(r metrics.Registry) *schedulerMetrics {
	return &schedulerMetrics{
		registry:   r,
		added:      metrics.GetOrRegisterCounter(MetricAdded, r),
		removed:    metrics.GetOrRegisterCounter(MetricRemoved, r),
		dispatched: metrics.GetOrRegisterCounter(MetricDispatched, r),
		succeeded:  metrics.GetOrRegisterCounter(MetricSucceeded, r),
		failed:     metrics.GetOrRegisterCounter(MetricFailed, r),
		aborted:    metrics.GetOrRegisterCounter(MetricAborted, r),
		inflight:   metrics.GetOrRegisterGauge(MetricInFlight, r),
		queued:     metrics.GetOrRegisterGauge(MetricQueued, r),
		elapsed:    metrics.GetOrRegisterTimer(MetricElapsed, r),
	}
}

func (m *schedulerMetrics) observe(ev Event) {
	switch ev.Type {
	case EventAdded:
		m.added.Inc(1)
	case EventRemoved:
		m.removed.Inc(1)
	case EventDownloading:
		m.dispatched.Inc(1)
	case EventSuccess:
		m.succeeded.Inc(1)
		m.elapsed.Update(ev.Elapsed)
	case EventFailed:
		m.failed.Inc(1)
	case EventAborted:
		m.aborted.Inc(1)
	}
}

// snapshot flattens the registry into name -> value. Timers report their
// count and mean duration in milliseconds.
func (m *schedulerMetrics) snapshot() map[string]float64 {
	out := make(map[string]float64)
	m.registry.Each(func(name string, i interface{}) {
		switch v := i.(type) {
		case metrics.Counter:
			out[name] = float64(v.Count())
		case metrics.Gauge:
			out[name] = float64(v.Value())
		case metrics.Timer:
			out[name+".count"] = float64(v.Count())
			out[name+".mean_ms"] = v.Mean() / float64(time.Millisecond)
		}
	})
	return out
}
