package goAuthClient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter.
type MetricID uint16

const (
	// MetricRequests counts Execute calls.
	MetricRequests MetricID = iota
	// MetricRequestFailures counts Execute calls that returned an error.
	MetricRequestFailures
	// MetricExpiredDetected counts attempts classified as credential-expired.
	MetricExpiredDetected
	// MetricRefreshStarted counts refreshes actually sent.
	MetricRefreshStarted
	MetricRefreshSucceeded
	MetricRefreshFailed
	// MetricRefreshWaiters counts callers queued behind an in-flight refresh.
	MetricRefreshWaiters
	// MetricRetriesIssued counts replays after a successful refresh.
	MetricRetriesIssued
	// MetricRetryExhausted counts replays that were rejected as expired again.
	MetricRetryExhausted
	// MetricPassthroughFailures counts non-expiry failures returned unchanged.
	MetricPassthroughFailures
	// MetricSessionEnded counts failed refresh generations.
	MetricSessionEnded
	// MetricLogout counts Logout calls.
	MetricLogout
	// MetricRefreshLatency is the refresh duration histogram.
	MetricRefreshLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRequests:            "requests",
	MetricRequestFailures:     "request_failures",
	MetricExpiredDetected:     "expired_detected",
	MetricRefreshStarted:      "refresh_started",
	MetricRefreshSucceeded:    "refresh_succeeded",
	MetricRefreshFailed:       "refresh_failed",
	MetricRefreshWaiters:      "refresh_waiters",
	MetricRetriesIssued:       "retries_issued",
	MetricRetryExhausted:      "retry_exhausted",
	MetricPassthroughFailures: "passthrough_failures",
	MetricSessionEnded:        "session_ended",
	MetricLogout:              "logout",
	MetricRefreshLatency:      "refresh_latency",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs lists every defined metric.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the inclusive upper bounds, in milliseconds, of
// the first seven histogram buckets. The eighth bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]int64{5, 10, 25, 50, 100, 250, 500}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricRefreshLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRefreshLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRefreshLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range HistogramBucketBounds {
		if ms <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
